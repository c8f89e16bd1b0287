package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/childsim/internal/sim"
)

// RK4 is the classical fourth-order Runge-Kutta stepper. Stage states are
// perturbed by dt-scaled slopes (x + dt/2*k1, x + dt/2*k2, x + dt*k3), and the
// update is x + dt/6*(k1 + 2k2 + 2k3 + k4).
type RK4 struct {
	k1, k2, k3, k4 sim.State
	scratch        sim.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(sim.State, n)
		r.k2 = make(sim.State, n)
		r.k3 = make(sim.State, n)
		r.k4 = make(sim.State, n)
		r.scratch = make(sim.State, n)
	}
}

func (r *RK4) Step(dyn sim.Dynamics, x sim.State, t, dt float64) (sim.State, error) {
	n := len(x)
	r.ensureScratch(n)

	k1, err := dyn.Derivative(x, t)
	if err != nil {
		return nil, err
	}
	copy(r.k1, k1)

	floats.AddScaledTo(r.scratch, x, 0.5*dt, r.k1)
	k2, err := dyn.Derivative(r.scratch, t+0.5*dt)
	if err != nil {
		return nil, err
	}
	copy(r.k2, k2)

	floats.AddScaledTo(r.scratch, x, 0.5*dt, r.k2)
	k3, err := dyn.Derivative(r.scratch, t+0.5*dt)
	if err != nil {
		return nil, err
	}
	copy(r.k3, k3)

	floats.AddScaledTo(r.scratch, x, dt, r.k3)
	k4, err := dyn.Derivative(r.scratch, t+dt)
	if err != nil {
		return nil, err
	}
	copy(r.k4, k4)

	result := make(sim.State, n)
	copy(result, x)
	dt6 := dt / 6.0
	floats.AddScaled(result, dt6, r.k1)
	floats.AddScaled(result, 2*dt6, r.k2)
	floats.AddScaled(result, 2*dt6, r.k3)
	floats.AddScaled(result, dt6, r.k4)

	return result, nil
}
