package experiment

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/san-kum/childsim/internal/config"
	"github.com/san-kum/childsim/internal/models"
	"github.com/san-kum/childsim/internal/sim"
)

// Compare runs one scenario with several integrators concurrently. The model
// is shared, each job owns its integrator and metrics.
func Compare(ctx context.Context, cfg *config.Config, names []string, logger log.Logger) ([]*Outcome, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	child, err := Build(cfg)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry()
	jobs := make([]sim.Job, len(names))
	for i, name := range names {
		integrator, err := reg.GetIntegrator(name)
		if err != nil {
			return nil, err
		}
		jobs[i] = sim.Job{
			Name:       name,
			Dyn:        child,
			Integrator: integrator,
			X0:         child.InitialState(),
			Cfg:        sim.Config{Dt: cfg.Dt, Duration: cfg.Days, ValidateState: true},
			Metrics:    reg.DefaultMetrics(child.Len()),
		}
	}

	start := time.Now()
	results, err := sim.NewEnsemble(sim.WithLogger(logger)).Run(ctx, jobs)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	outcomes := make([]*Outcome, len(results))
	for i, res := range results {
		tr, err := models.NewTrajectory(child, res)
		if err != nil {
			return nil, err
		}
		outcomes[i] = &Outcome{
			Name:       cfg.Name,
			Integrator: names[i],
			Trajectory: tr,
			Metrics:    res.Metrics,
			Elapsed:    elapsed,
		}
	}
	level.Info(logger).Log("msg", "comparison finished", "scenario", cfg.Name, "integrators", len(names), "elapsed", elapsed)
	return outcomes, nil
}
