// Package intake provides the energy-intake sources that drive the model.
//
// An intake Spec is a tagged variant resolved once into a Provider: either a
// per-individual table indexed by elapsed time, or a generalised logistic
// (Richards) curve of age shared by the cohort.
package intake

import (
	"fmt"
	"math"

	"github.com/san-kum/childsim/internal/sim"
)

type Kind string

const (
	KindTabulated Kind = "tabulated"
	KindLogistic  Kind = "logistic"
)

// Provider returns daily energy intake (kcal/day) for every individual.
// ages are in years, elapsed is days since the start of the simulation.
type Provider interface {
	Intake(ages []float64, elapsed float64, out []float64) error
	Kind() Kind
}

// LogisticParams are the parameters of A + (K-A) / (C + Q*exp(-B*t))^(1/Nu).
type LogisticParams struct {
	K  float64 `yaml:"k" json:"k"`
	Q  float64 `yaml:"q" json:"q"`
	A  float64 `yaml:"a" json:"a"`
	B  float64 `yaml:"b" json:"b"`
	Nu float64 `yaml:"nu" json:"nu"`
	C  float64 `yaml:"c" json:"c"`
}

// Constant returns logistic parameters whose curve equals kcal at every age.
func Constant(kcal float64) LogisticParams {
	return LogisticParams{K: kcal, Q: 0, A: kcal, B: 0, Nu: 1, C: 1}
}

// Spec selects exactly one intake variant.
type Spec struct {
	Kind     Kind
	Matrix   [][]float64
	Logistic LogisticParams
}

func TabulatedSpec(matrix [][]float64) Spec {
	return Spec{Kind: KindTabulated, Matrix: matrix}
}

func LogisticSpec(p LogisticParams) Spec {
	return Spec{Kind: KindLogistic, Logistic: p}
}

// New resolves spec into a Provider for a cohort of n individuals stepped with dt days.
func New(spec Spec, n int, dt float64) (Provider, error) {
	switch spec.Kind {
	case KindTabulated:
		return NewTabulated(spec.Matrix, n, dt)
	case KindLogistic:
		return NewLogistic(spec.Logistic)
	default:
		return nil, fmt.Errorf("%w: unknown intake kind %q", sim.ErrInvalidInput, spec.Kind)
	}
}

// Tabulated looks intake up in an individual-major matrix [N][T] whose
// columns are consecutive dt-day steps.
type Tabulated struct {
	matrix [][]float64
	dt     float64
	rows   int
}

func NewTabulated(matrix [][]float64, n int, dt float64) (*Tabulated, error) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: dt must be positive, got %f", sim.ErrInvalidConfiguration, dt)
	}
	if len(matrix) != n {
		return nil, fmt.Errorf("%w: intake matrix has %d individuals, cohort has %d",
			sim.ErrDimensionMismatch, len(matrix), n)
	}
	rows := -1
	for i, row := range matrix {
		if rows < 0 {
			rows = len(row)
		}
		if len(row) != rows {
			return nil, fmt.Errorf("%w: intake row %d has %d steps, expected %d",
				sim.ErrDimensionMismatch, i, len(row), rows)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return nil, fmt.Errorf("%w: intake[%d][%d] = %f", sim.ErrInvalidInput, i, j, v)
			}
		}
	}
	if rows < 0 {
		rows = 0
	}
	return &Tabulated{matrix: matrix, dt: dt, rows: rows}, nil
}

func (t *Tabulated) Kind() Kind { return KindTabulated }

// Steps returns the number of time steps the table covers.
func (t *Tabulated) Steps() int { return t.rows }

// Index maps elapsed days to a table column. The cohort shares a single
// clock, so the same column applies to every individual.
func (t *Tabulated) Index(elapsed float64) int {
	return int(math.Floor(elapsed/t.dt + 1e-9))
}

func (t *Tabulated) Intake(ages []float64, elapsed float64, out []float64) error {
	if len(out) != len(t.matrix) {
		return fmt.Errorf("%w: output has %d entries, table has %d individuals",
			sim.ErrDimensionMismatch, len(out), len(t.matrix))
	}
	idx := t.Index(elapsed)
	if idx < 0 || idx >= t.rows {
		return fmt.Errorf("%w: step %d requested, table covers %d steps",
			sim.ErrIndexOutOfRange, idx, t.rows)
	}
	for i, row := range t.matrix {
		out[i] = row[idx]
	}
	return nil
}

// Logistic evaluates a generalised logistic curve of age in years.
type Logistic struct {
	p LogisticParams
}

func NewLogistic(p LogisticParams) (*Logistic, error) {
	for name, v := range map[string]float64{"k": p.K, "q": p.Q, "a": p.A, "b": p.B, "nu": p.Nu, "c": p.C} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: logistic parameter %s is not finite", sim.ErrInvalidInput, name)
		}
	}
	if p.Nu == 0 {
		return nil, fmt.Errorf("%w: logistic nu must be non-zero", sim.ErrInvalidInput)
	}
	return &Logistic{p: p}, nil
}

func (l *Logistic) Kind() Kind { return KindLogistic }

func (l *Logistic) Params() LogisticParams { return l.p }

// At evaluates the curve at age t.
func (l *Logistic) At(t float64) float64 {
	p := l.p
	return p.A + (p.K-p.A)/math.Pow(p.C+p.Q*math.Exp(-p.B*t), 1/p.Nu)
}

func (l *Logistic) Intake(ages []float64, elapsed float64, out []float64) error {
	if len(out) != len(ages) {
		return fmt.Errorf("%w: output has %d entries, %d ages given",
			sim.ErrDimensionMismatch, len(out), len(ages))
	}
	for i, t := range ages {
		v := l.At(t)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: logistic intake at age %.4f is %v", sim.ErrNumericDegeneracy, t, v)
		}
		out[i] = v
	}
	return nil
}
