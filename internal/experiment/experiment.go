package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/san-kum/childsim/internal/config"
	"github.com/san-kum/childsim/internal/intake"
	"github.com/san-kum/childsim/internal/integrators"
	"github.com/san-kum/childsim/internal/models"
	"github.com/san-kum/childsim/internal/sim"
)

// Outcome is a finished run: the trajectory plus the metric values.
type Outcome struct {
	Name       string
	Integrator string
	Trajectory *models.Trajectory
	Metrics    map[string]float64
	Elapsed    time.Duration
}

type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	logger    log.Logger
	child     *models.Child
	simulator *sim.Simulator
}

type Option func(*Experiment)

func WithLogger(l log.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

func New(cfg *config.Config, opts ...Option) *Experiment {
	e := &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build resolves a scenario into its model without attaching a simulator.
func Build(cfg *config.Config) (*models.Child, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cohort, err := cfg.Cohort()
	if err != nil {
		return nil, err
	}
	spec, err := cfg.IntakeSpec()
	if err != nil {
		return nil, err
	}
	child, err := models.NewChild(cohort, spec, cfg.Dt, models.WithCheckValues(cfg.CheckValues))
	if err != nil {
		return nil, err
	}
	if err := checkIntakeCoverage(child, cfg.Steps()); err != nil {
		return nil, err
	}
	return child, nil
}

// checkIntakeCoverage fails fast when a tabulated intake cannot serve every
// RK4 stage. The last stage of step nsims reads column nsims.
func checkIntakeCoverage(child *models.Child, steps int) error {
	tab, ok := child.Intake().(*intake.Tabulated)
	if !ok {
		return nil
	}
	if tab.Steps() < steps+1 {
		return fmt.Errorf("%w: intake table covers %d steps, run needs %d",
			sim.ErrIndexOutOfRange, tab.Steps(), steps+1)
	}
	return nil
}

func (e *Experiment) Setup() error {
	child, err := Build(e.cfg)
	if err != nil {
		return err
	}
	integrator, err := e.registry.GetIntegrator(e.cfg.Integrator)
	if err != nil {
		return err
	}

	e.child = child
	e.simulator = sim.New(child, integrator, sim.WithLogger(e.logger))
	for _, m := range e.registry.DefaultMetrics(child.Len()) {
		e.simulator.AddMetric(m)
	}
	e.simulator.AddObserver(newYearlyProgress(e.logger, child.Len()))
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	start := time.Now()
	level.Info(e.logger).Log("msg", "run started", "scenario", e.cfg.Name,
		"individuals", e.child.Len(), "days", e.cfg.Days, "dt", e.cfg.Dt, "integrator", e.cfg.Integrator)

	res, err := e.simulator.Run(ctx, e.child.InitialState(), e.simConfig())
	if err != nil {
		level.Error(e.logger).Log("msg", "run failed", "scenario", e.cfg.Name, "err", err)
		return nil, err
	}
	tr, err := models.NewTrajectory(e.child, res)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Name:       e.cfg.Name,
		Integrator: e.cfg.Integrator,
		Trajectory: tr,
		Metrics:    res.Metrics,
		Elapsed:    time.Since(start),
	}
	level.Info(e.logger).Log("msg", "run finished", "scenario", e.cfg.Name,
		"steps", res.StepsTaken, "valid", tr.Valid, "elapsed", out.Elapsed)
	return out, nil
}

func (e *Experiment) simConfig() sim.Config {
	return sim.Config{Dt: e.cfg.Dt, Duration: e.cfg.Days, ValidateState: true}
}

// Simulator returns the underlying simulator for adding observers.
func (e *Experiment) Simulator() *sim.Simulator {
	return e.simulator
}

func (e *Experiment) Child() *models.Child {
	return e.child
}

// Simulate runs a cohort with RK4 and returns its trajectory.
func Simulate(ctx context.Context, cohort models.Cohort, spec intake.Spec, dt, days float64) (*models.Trajectory, error) {
	if err := sim.CheckHorizon(days, dt); err != nil {
		return nil, err
	}
	child, err := models.NewChild(cohort, spec, dt)
	if err != nil {
		return nil, err
	}
	cfg := sim.Config{Dt: dt, Duration: days, ValidateState: true}
	if err := checkIntakeCoverage(child, sim.Steps(days, dt)); err != nil {
		return nil, err
	}
	res, err := sim.New(child, integrators.NewRK4()).Run(ctx, child.InitialState(), cfg)
	if err != nil {
		return nil, err
	}
	return models.NewTrajectory(child, res)
}
