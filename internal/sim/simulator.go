package sim

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type Simulator struct {
	dyn        Dynamics
	integrator Integrator
	metrics    []Metric
	observers  []Observer
	logger     log.Logger
	phase      Phase
}

type Option func(*Simulator)

// WithLogger routes run progress to l instead of discarding it.
func WithLogger(l log.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

func New(dyn Dynamics, integrator Integrator, opts ...Option) *Simulator {
	s := &Simulator{
		dyn:        dyn,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
		logger:     log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) Phase() Phase           { return s.phase }

// Run integrates from x0 over cfg.Duration. A run that fails while stepping
// leaves the simulator in the Failed phase.
func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	s.phase = NotStarted
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if len(x0) != s.dyn.StateDim() {
		return nil, fmt.Errorf("%w: initial state has %d entries, dynamics expects %d",
			ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}

	steps := Steps(cfg.Duration, cfg.Dt)
	result := &Result{
		States:  make([]State, 0, steps+1),
		Times:   make([]float64, 0, steps+1),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt

	s.phase = Stepping
	s.record(result, 0, x, t)
	level.Debug(s.logger).Log("msg", "simulation started", "steps", steps, "dt", dt, "dim", len(x))

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			s.phase = Failed
			return nil, ctx.Err()
		default:
		}

		newX, err := s.integrator.Step(s.dyn, x, t, dt)
		if err != nil {
			level.Error(s.logger).Log("msg", "step failed", "step", i, "t", t, "err", err)
			s.phase = Failed
			return nil, &SimulationError{Step: i, Time: t, Wrapped: err}
		}

		if cfg.ValidateState && !newX.IsValid() {
			s.phase = Failed
			return nil, &SimulationError{Step: i, Time: t, Wrapped: ErrInvalidState}
		}

		x = newX
		t += dt
		result.StepsTaken++
		s.record(result, i, x, t)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	s.phase = Complete
	level.Debug(s.logger).Log("msg", "simulation complete", "steps", result.StepsTaken, "t", t)
	return result, nil
}

func (s *Simulator) record(result *Result, step int, x State, t float64) {
	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)
	for _, m := range s.metrics {
		m.Observe(x, t)
	}
	for _, obs := range s.observers {
		obs.OnStep(step, x, t)
	}
}

func (s *Simulator) validateConfig(cfg Config) error {
	return CheckHorizon(cfg.Duration, cfg.Dt)
}
