package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/childsim/internal/sim"
)

// cohortState splits a [FFM..., FM...] state into body weights.
type cohortState struct {
	n  int
	bw []float64
}

func newCohortState(n int) cohortState {
	return cohortState{n: n, bw: make([]float64, n)}
}

func (c *cohortState) load(x sim.State) bool {
	if len(x) != 2*c.n {
		return false
	}
	floats.AddTo(c.bw, x[:c.n], x[c.n:])
	return true
}

// MeanWeight is the cohort mean body weight (kg) of the last observed state.
type MeanWeight struct {
	cohortState
	value float64
}

func NewMeanWeight(n int) *MeanWeight {
	return &MeanWeight{cohortState: newCohortState(n)}
}

func (m *MeanWeight) Name() string { return "mean_weight" }

func (m *MeanWeight) Observe(x sim.State, t float64) {
	if m.load(x) {
		m.value = stat.Mean(m.bw, nil)
	}
}

func (m *MeanWeight) Value() float64 { return m.value }
func (m *MeanWeight) Reset()         { m.value = 0 }

// WeightSpread is the sample standard deviation of body weight across the
// cohort at the last observed state. Zero for a single individual.
type WeightSpread struct {
	cohortState
	value float64
}

func NewWeightSpread(n int) *WeightSpread {
	return &WeightSpread{cohortState: newCohortState(n)}
}

func (w *WeightSpread) Name() string { return "weight_spread" }

func (w *WeightSpread) Observe(x sim.State, t float64) {
	if !w.load(x) {
		return
	}
	if w.n < 2 {
		w.value = 0
		return
	}
	w.value = stat.StdDev(w.bw, nil)
}

func (w *WeightSpread) Value() float64 { return w.value }
func (w *WeightSpread) Reset()         { w.value = 0 }

// MaxDailyChange is the largest body-weight change rate (kg/day) of any
// individual between consecutive observations.
type MaxDailyChange struct {
	cohortState
	prev    []float64
	prevT   float64
	samples int
	max     float64
}

func NewMaxDailyChange(n int) *MaxDailyChange {
	return &MaxDailyChange{cohortState: newCohortState(n), prev: make([]float64, n)}
}

func (m *MaxDailyChange) Name() string { return "max_daily_change" }

func (m *MaxDailyChange) Observe(x sim.State, t float64) {
	if !m.load(x) {
		return
	}
	if m.samples > 0 && t > m.prevT {
		dt := t - m.prevT
		for i, w := range m.bw {
			m.max = math.Max(m.max, math.Abs(w-m.prev[i])/dt)
		}
	}
	copy(m.prev, m.bw)
	m.prevT = t
	m.samples++
}

func (m *MaxDailyChange) Value() float64 { return m.max }

func (m *MaxDailyChange) Reset() {
	m.samples = 0
	m.max = 0
	m.prevT = 0
}

// FatFraction is the cohort mean of FM/(FFM+FM) at the last observed state.
type FatFraction struct {
	cohortState
	frac  []float64
	value float64
}

func NewFatFraction(n int) *FatFraction {
	return &FatFraction{cohortState: newCohortState(n), frac: make([]float64, n)}
}

func (f *FatFraction) Name() string { return "fat_fraction" }

func (f *FatFraction) Observe(x sim.State, t float64) {
	if !f.load(x) {
		return
	}
	floats.DivTo(f.frac, x[f.n:], f.bw)
	f.value = stat.Mean(f.frac, nil)
}

func (f *FatFraction) Value() float64 { return f.value }
func (f *FatFraction) Reset()         { f.value = 0 }

// WeightGain is the cohort mean body-weight change (kg) since the first
// observed state.
type WeightGain struct {
	cohortState
	initial float64
	current float64
	samples int
}

func NewWeightGain(n int) *WeightGain {
	return &WeightGain{cohortState: newCohortState(n)}
}

func (g *WeightGain) Name() string { return "weight_gain" }

func (g *WeightGain) Observe(x sim.State, t float64) {
	if !g.load(x) {
		return
	}
	g.current = stat.Mean(g.bw, nil)
	if g.samples == 0 {
		g.initial = g.current
	}
	g.samples++
}

func (g *WeightGain) Value() float64 { return g.current - g.initial }

func (g *WeightGain) Reset() {
	g.initial = 0
	g.current = 0
	g.samples = 0
}

// Cohort returns the standard metric set for a cohort of n individuals.
func Cohort(n int) []sim.Metric {
	return []sim.Metric{
		NewMeanWeight(n),
		NewWeightSpread(n),
		NewWeightGain(n),
		NewMaxDailyChange(n),
		NewFatFraction(n),
		NewValidity(),
	}
}
