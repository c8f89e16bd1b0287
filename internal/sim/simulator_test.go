package sim

import (
	"context"
	"errors"
	"math"
	"testing"
)

type testDynamics struct{}

func (t *testDynamics) Derivative(x State, time float64) (State, error) {
	return State{-x[0]}, nil
}

func (t *testDynamics) StateDim() int { return 1 }

type testIntegrator struct{}

func (t *testIntegrator) Step(dyn Dynamics, x State, time float64, dt float64) (State, error) {
	dx, err := dyn.Derivative(x, time)
	if err != nil {
		return nil, err
	}
	return State{x[0] + dt*dx[0]}, nil
}

type failingDynamics struct {
	failAt float64
}

func (f *failingDynamics) Derivative(x State, time float64) (State, error) {
	if time >= f.failAt {
		return nil, ErrNumericDegeneracy
	}
	return State{1}, nil
}

func (f *failingDynamics) StateDim() int { return 1 }

type nanDynamics struct{}

func (n *nanDynamics) Derivative(x State, time float64) (State, error) {
	return State{math.NaN()}, nil
}

func (n *nanDynamics) StateDim() int { return 1 }

func TestSimulatorRun(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{})

	cfg := Config{
		Dt:       0.1,
		Duration: 1.0,
	}

	x0 := State{1.0}
	result, err := sim.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.States) != 11 {
		t.Errorf("expected 11 states, got %d", len(result.States))
	}

	if len(result.Times) != 11 {
		t.Errorf("expected 11 times, got %d", len(result.Times))
	}

	finalState := result.States[len(result.States)-1][0]
	expected := 1.0 * math.Exp(-1.0)
	if math.Abs(finalState-expected) > 0.2 {
		t.Errorf("expected final state ~%.4f, got %.4f", expected, finalState)
	}

	if sim.Phase() != Complete {
		t.Errorf("expected phase complete, got %s", sim.Phase())
	}
}

func TestSimulatorTimesMonotonic(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{})

	result, err := sim.Run(context.Background(), State{1.0}, Config{Dt: 0.5, Duration: 10})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for i, tm := range result.Times {
		if math.Abs(tm-float64(i)*0.5) > 1e-9 {
			t.Errorf("time[%d] = %f, want %f", i, tm, float64(i)*0.5)
		}
		if i > 0 && tm <= result.Times[i-1] {
			t.Errorf("time not strictly increasing at %d", i)
		}
	}
}

func TestSimulatorZeroSteps(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{})

	result, err := sim.Run(context.Background(), State{2.5}, Config{Dt: 1.0, Duration: 0.5})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.States) != 1 {
		t.Fatalf("expected only the initial state, got %d states", len(result.States))
	}
	if result.States[0][0] != 2.5 || result.Times[0] != 0 {
		t.Errorf("initial state not preserved: %v at t=%f", result.States[0], result.Times[0])
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"nan dt", Config{Dt: math.NaN(), Duration: 1.0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
		{"infinite duration", Config{Dt: 0.1, Duration: math.Inf(1)}},
		{"horizon past step limit", Config{Dt: 1, Duration: 1e20}},
		{"subnormal dt", Config{Dt: 1e-310, Duration: 365}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x0 := State{1.0}
			_, err := sim.Run(context.Background(), x0, tt.cfg)
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestSimulatorDimensionMismatch(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{})

	_, err := sim.Run(context.Background(), State{1, 2}, Config{Dt: 1, Duration: 1})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSimulatorStepError(t *testing.T) {
	sim := New(&failingDynamics{failAt: 3}, &testIntegrator{})

	_, err := sim.Run(context.Background(), State{0}, Config{Dt: 1, Duration: 10})
	if !errors.Is(err, ErrNumericDegeneracy) {
		t.Fatalf("expected ErrNumericDegeneracy, got %v", err)
	}

	var simErr *SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected *SimulationError, got %T", err)
	}
	if simErr.Step != 4 {
		t.Errorf("expected failure at step 4, got %d", simErr.Step)
	}
}

func TestSimulatorValidateState(t *testing.T) {
	sim := New(&nanDynamics{}, &testIntegrator{})

	_, err := sim.Run(context.Background(), State{0}, Config{Dt: 1, Duration: 5, ValidateState: true})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestSimulatorCanceled(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Run(ctx, State{1}, Config{Dt: 1, Duration: 10})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(x State, time float64) {
	t.count++
	t.sum += x[0]
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

func TestSimulatorMetrics(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{})

	metric := &testMetric{}
	sim.AddMetric(metric)

	cfg := Config{Dt: 0.1, Duration: 1.0}
	x0 := State{1.0}

	result, err := sim.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}

	if metric.count != 11 {
		t.Errorf("expected 11 observations, got %d", metric.count)
	}
}

type stepCounter struct {
	steps []int
}

func (s *stepCounter) OnStep(step int, x State, t float64) {
	s.steps = append(s.steps, step)
}

func TestSimulatorObserver(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{})
	obs := &stepCounter{}
	sim.AddObserver(obs)

	if _, err := sim.Run(context.Background(), State{1}, Config{Dt: 1, Duration: 3}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []int{0, 1, 2, 3}
	if len(obs.steps) != len(want) {
		t.Fatalf("expected %d observer calls, got %d", len(want), len(obs.steps))
	}
	for i := range want {
		if obs.steps[i] != want[i] {
			t.Errorf("observer step[%d] = %d, want %d", i, obs.steps[i], want[i])
		}
	}
}

func TestEnsembleRun(t *testing.T) {
	jobs := []Job{
		{Name: "a", Dyn: &testDynamics{}, Integrator: &testIntegrator{}, X0: State{1}, Cfg: Config{Dt: 0.1, Duration: 1}},
		{Name: "b", Dyn: &testDynamics{}, Integrator: &testIntegrator{}, X0: State{2}, Cfg: Config{Dt: 0.1, Duration: 2}},
	}

	results, err := NewEnsemble().Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("ensemble failed: %v", err)
	}

	if len(results[0].States) != 11 || len(results[1].States) != 21 {
		t.Errorf("unexpected state counts: %d, %d", len(results[0].States), len(results[1].States))
	}
}

func TestEnsembleError(t *testing.T) {
	jobs := []Job{
		{Name: "ok", Dyn: &testDynamics{}, Integrator: &testIntegrator{}, X0: State{1}, Cfg: Config{Dt: 0.1, Duration: 1}},
		{Name: "bad", Dyn: &failingDynamics{failAt: 0}, Integrator: &testIntegrator{}, X0: State{1}, Cfg: Config{Dt: 1, Duration: 2}},
	}

	if _, err := NewEnsemble().Run(context.Background(), jobs); !errors.Is(err, ErrNumericDegeneracy) {
		t.Errorf("expected ErrNumericDegeneracy, got %v", err)
	}
}

func TestSimulatorPhaseAfterFailure(t *testing.T) {
	sim := New(&failingDynamics{failAt: 2}, &testIntegrator{})

	if _, err := sim.Run(context.Background(), State{0}, Config{Dt: 1, Duration: 5}); err == nil {
		t.Fatal("expected step failure")
	}
	if sim.Phase() != Failed {
		t.Errorf("expected phase failed, got %s", sim.Phase())
	}

	if _, err := sim.Run(context.Background(), State{0}, Config{Dt: 1, Duration: 1}); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if sim.Phase() != Complete {
		t.Errorf("expected phase complete after rerun, got %s", sim.Phase())
	}

	if _, err := sim.Run(context.Background(), State{0}, Config{Dt: -1, Duration: 1}); err == nil {
		t.Fatal("expected invalid configuration")
	}
	if sim.Phase() != NotStarted {
		t.Errorf("expected phase not_started after rejected config, got %s", sim.Phase())
	}
}

func TestSimulatorPhaseAfterCancel(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sim.Run(ctx, State{1}, Config{Dt: 1, Duration: 5}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sim.Phase() != Failed {
		t.Errorf("expected phase failed, got %s", sim.Phase())
	}
}
