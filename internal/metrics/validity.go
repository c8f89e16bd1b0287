package metrics

import (
	"math"

	"github.com/san-kum/childsim/internal/sim"
)

// Validity is the fraction of recorded states whose masses are all finite
// and non-negative.
type Validity struct {
	name       string
	violations int
	samples    int
}

func NewValidity() *Validity {
	return &Validity{
		name: "validity",
	}
}

func (v *Validity) Name() string {
	return v.name
}

func (v *Validity) Observe(x sim.State, t float64) {
	v.samples++
	for _, val := range x {
		if math.IsNaN(val) || math.IsInf(val, 0) || val < 0 {
			v.violations++
			break
		}
	}
}

func (v *Validity) Value() float64 {
	if v.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(v.violations)/float64(v.samples)
}

func (v *Validity) Reset() {
	v.violations = 0
	v.samples = 0
}
