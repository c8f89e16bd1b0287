package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/childsim/internal/sim"
)

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn sim.Dynamics, x sim.State, t float64, dt float64) (sim.State, error) {
	dx, err := dyn.Derivative(x, t)
	if err != nil {
		return nil, err
	}
	result := make(sim.State, len(x))
	floats.AddScaledTo(result, x, dt, dx)
	return result, nil
}
