package sim

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Dynamics interface {
	Derivative(x State, t float64) (State, error)
	StateDim() int
}

type Integrator interface {
	Step(dyn Dynamics, x State, t float64, dt float64) (State, error)
}

type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(step int, x State, t float64)
}

// Phase is the lifecycle position of a Simulator.
type Phase int

const (
	NotStarted Phase = iota
	Stepping
	Complete
	Failed
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case Stepping:
		return "stepping"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type Config struct {
	Dt            float64
	Duration      float64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            1.0,
		Duration:      365.0,
		ValidateState: true,
	}
}

// MaxSteps bounds the number of steps of a single run.
const MaxSteps = math.MaxInt32

// Steps returns floor(duration/dt), saturating at MaxSteps. The small relative
// guard keeps exact multiples such as 365/1 or 3/0.1 from losing a step to
// rounding.
func Steps(duration, dt float64) int {
	if !(dt > 0) || !(duration > 0) {
		return 0
	}
	n := math.Floor(duration/dt + 1e-9)
	if !(n < MaxSteps) {
		return MaxSteps
	}
	return int(n)
}

// CheckHorizon rejects a step size and duration that cannot drive a run.
func CheckHorizon(duration, dt float64) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidConfiguration, dt)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return fmt.Errorf("%w: duration must be non-negative, got %g", ErrInvalidConfiguration, duration)
	}
	if r := duration / dt; math.IsInf(r, 0) || r > MaxSteps {
		return fmt.Errorf("%w: %g days at dt %g exceeds %d steps", ErrInvalidConfiguration, duration, dt, MaxSteps)
	}
	return nil
}

type Result struct {
	States     []State
	Times      []float64
	Metrics    map[string]float64
	StepsTaken int
}
