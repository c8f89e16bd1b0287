package automation

import (
	"context"
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/childsim/internal/config"
	"github.com/san-kum/childsim/internal/experiment"
	"github.com/san-kum/childsim/internal/sim"
)

// Batch is a list of scenarios run one after the other.
type Batch struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Scenarios   []*config.Config `yaml:"scenarios"`
}

// LoadBatch loads a batch from a YAML file. Scenario fields that are left out
// keep their defaults.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Name        string      `yaml:"name"`
		Description string      `yaml:"description"`
		Scenarios   []yaml.Node `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	batch := &Batch{Name: raw.Name, Description: raw.Description}
	for i := range raw.Scenarios {
		cfg := config.DefaultConfig()
		if err := raw.Scenarios[i].Decode(cfg); err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i+1, err)
		}
		batch.Scenarios = append(batch.Scenarios, cfg)
	}
	return batch, nil
}

// RunBatch executes every scenario in order and stops at the first failure.
func RunBatch(ctx context.Context, batch *Batch, logger log.Logger) ([]*experiment.Outcome, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	outcomes := make([]*experiment.Outcome, 0, len(batch.Scenarios))

	for i, cfg := range batch.Scenarios {
		level.Info(logger).Log("msg", "batch step", "step", i+1, "of", len(batch.Scenarios), "scenario", cfg.Name)

		exp := experiment.New(cfg, experiment.WithLogger(logger))
		if err := exp.Setup(); err != nil {
			return outcomes, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		out, err := exp.Run(ctx)
		if err != nil {
			return outcomes, fmt.Errorf("step %d run: %w", i+1, err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// ParameterSweep runs a scenario across evenly spaced values of one
// parameter, see config.Tunable.
type ParameterSweep struct {
	Base     *config.Config
	Param    string
	Min      float64
	Max      float64
	NumSteps int
}

// SweepResult summarizes one sweep point over the cohort.
type SweepResult struct {
	Value            float64
	MeanFinalWeight  float64
	MeanFinalFat     float64
	MeanFinalFatFree float64
	Valid            bool
	Metrics          map[string]float64
}

func RunSweep(ctx context.Context, sweep *ParameterSweep, logger log.Logger) ([]SweepResult, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("%w: sweep needs at least one step", sim.ErrInvalidConfiguration)
	}

	step := 0.0
	if sweep.NumSteps > 1 {
		step = (sweep.Max - sweep.Min) / float64(sweep.NumSteps-1)
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i := 0; i < sweep.NumSteps; i++ {
		val := sweep.Min + float64(i)*step
		cfg := sweep.Base.Clone()
		if err := cfg.Set(sweep.Param, val); err != nil {
			return nil, err
		}

		exp := experiment.New(cfg, experiment.WithLogger(logger))
		if err := exp.Setup(); err != nil {
			return nil, fmt.Errorf("%s=%g: %w", sweep.Param, val, err)
		}
		out, err := exp.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", sweep.Param, val, err)
		}

		ffm, fm, bw := out.Trajectory.Final()
		results = append(results, SweepResult{
			Value:            val,
			MeanFinalWeight:  stat.Mean(bw, nil),
			MeanFinalFat:     stat.Mean(fm, nil),
			MeanFinalFatFree: stat.Mean(ffm, nil),
			Valid:            out.Trajectory.Valid,
			Metrics:          out.Metrics,
		})

		level.Debug(logger).Log("msg", "sweep point", "n", i+1, "of", sweep.NumSteps, "param", sweep.Param, "value", val)
	}

	return results, nil
}
