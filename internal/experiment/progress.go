package experiment

import (
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/childsim/internal/params"
	"github.com/san-kum/childsim/internal/sim"
)

// yearlyProgress logs the cohort's mean body weight once per simulated year.
type yearlyProgress struct {
	logger   log.Logger
	n        int
	lastYear int
}

func newYearlyProgress(logger log.Logger, n int) *yearlyProgress {
	return &yearlyProgress{logger: logger, n: n, lastYear: -1}
}

func (p *yearlyProgress) OnStep(step int, x sim.State, t float64) {
	year := int(math.Floor(t/params.DaysPerYear + 1e-9))
	if year == p.lastYear || p.n == 0 {
		return
	}
	p.lastYear = year
	level.Debug(p.logger).Log("msg", "progress", "year", year, "step", step,
		"mean_weight", floats.Sum(x)/float64(p.n))
}
