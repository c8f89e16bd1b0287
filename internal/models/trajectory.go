package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/childsim/internal/params"
	"github.com/san-kum/childsim/internal/sim"
)

// ModelType tags every trajectory produced by this package.
const ModelType = "Children"

// Trajectory is the columnar output of a cohort run. Rows are step indices
// 0..nsims, columns are individuals.
type Trajectory struct {
	Times         []float64   `json:"time"`
	Age           [][]float64 `json:"age"`
	FFM           [][]float64 `json:"fat_free_mass"`
	FM            [][]float64 `json:"fat_mass"`
	BodyWeight    [][]float64 `json:"body_weight"`
	CorrectValues bool        `json:"correct_values"`
	Valid         bool        `json:"valid"`
	ModelType     string      `json:"model_type"`
}

// NewTrajectory unpacks the state history of a run of c.
func NewTrajectory(c *Child, res *sim.Result) (*Trajectory, error) {
	n := c.Len()
	steps := len(res.States)
	if len(res.Times) != steps {
		return nil, fmt.Errorf("%w: %d states but %d times", sim.ErrDimensionMismatch, steps, len(res.Times))
	}

	tr := &Trajectory{
		Times:         append([]float64(nil), res.Times...),
		Age:           make([][]float64, steps),
		FFM:           make([][]float64, steps),
		FM:            make([][]float64, steps),
		BodyWeight:    make([][]float64, steps),
		CorrectValues: c.CheckValues(),
		ModelType:     ModelType,
	}

	for k, x := range res.States {
		if len(x) != 2*n {
			return nil, fmt.Errorf("%w: step %d has %d entries, expected %d", sim.ErrDimensionMismatch, k, len(x), 2*n)
		}
		ages := make([]float64, n)
		c.agesAt(res.Times[k], ages)
		tr.Age[k] = ages
		tr.FFM[k] = append([]float64(nil), x[:n]...)
		tr.FM[k] = append([]float64(nil), x[n:]...)
		bw := make([]float64, n)
		floats.AddTo(bw, tr.FFM[k], tr.FM[k])
		tr.BodyWeight[k] = bw
	}
	tr.Valid = tr.check()
	return tr, nil
}

// check reports whether every mass is finite and non-negative.
func (t *Trajectory) check() bool {
	for k := range t.FFM {
		for _, row := range [][]float64{t.FFM[k], t.FM[k]} {
			for _, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
					return false
				}
			}
		}
	}
	return true
}

// Steps is the number of recorded rows, nsims+1.
func (t *Trajectory) Steps() int { return len(t.Times) }

// Individuals is the cohort size.
func (t *Trajectory) Individuals() int {
	if len(t.FFM) == 0 {
		return 0
	}
	return len(t.FFM[0])
}

// Column extracts the time series of individual i from a row-major field.
func Column(rows [][]float64, i int) []float64 {
	out := make([]float64, len(rows))
	for k, row := range rows {
		out[k] = row[i]
	}
	return out
}

// Final returns the last recorded row of each mass field.
func (t *Trajectory) Final() (ffm, fm, bw []float64) {
	last := len(t.Times) - 1
	if last < 0 {
		return nil, nil, nil
	}
	return t.FFM[last], t.FM[last], t.BodyWeight[last]
}

// Years is the elapsed simulated time in years.
func (t *Trajectory) Years() float64 {
	if len(t.Times) == 0 {
		return 0
	}
	return t.Times[len(t.Times)-1] / params.DaysPerYear
}
