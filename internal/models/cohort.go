package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/childsim/internal/sim"
)

// Sex is the binary sex indicator used to blend male and female coefficients.
type Sex int

const (
	Male   Sex = 0
	Female Sex = 1
)

func (s Sex) Valid() bool { return s == Male || s == Female }

func (s Sex) String() string {
	switch s {
	case Male:
		return "male"
	case Female:
		return "female"
	}
	return fmt.Sprintf("sex(%d)", int(s))
}

// ParseSex accepts "male"/"female", "m"/"f" or the numeric codes "0"/"1".
func ParseSex(v string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "male", "m", "0":
		return Male, nil
	case "female", "f", "1":
		return Female, nil
	}
	return 0, fmt.Errorf("%w: unknown sex %q", sim.ErrInvalidInput, v)
}

// Category is the BMI class that selects the reference body-composition curve.
type Category int

const (
	Underweight Category = 1
	Normal      Category = 2
	Overweight  Category = 3
	Obese       Category = 4
)

var categoryNames = map[Category]string{
	Underweight: "underweight",
	Normal:      "normal",
	Overweight:  "overweight",
	Obese:       "obese",
}

func (c Category) Valid() bool { return c >= Underweight && c <= Obese }

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// index is the 0-based column of c in the reference tables.
func (c Category) index() int { return int(c) - 1 }

func ParseCategory(v string) (Category, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for c, name := range categoryNames {
		if v == name || v == fmt.Sprint(int(c)) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown body-composition category %q", sim.ErrInvalidInput, v)
}

// Individual is one child at the start of the simulation.
type Individual struct {
	Age      float64  `json:"age"`
	Sex      Sex      `json:"sex"`
	Category Category `json:"category"`
	FFM      float64  `json:"ffm"`
	FM       float64  `json:"fm"`
}

// validateCodes checks only the enumerated fields, which index the
// reference tables and must never be out of range.
func (ind Individual) validateCodes() error {
	if !ind.Sex.Valid() {
		return fmt.Errorf("%w: sex must be 0 (male) or 1 (female), got %d", sim.ErrInvalidInput, int(ind.Sex))
	}
	if !ind.Category.Valid() {
		return fmt.Errorf("%w: category must be 1-4, got %d", sim.ErrInvalidInput, int(ind.Category))
	}
	return nil
}

func (ind Individual) Validate() error {
	if err := ind.validateCodes(); err != nil {
		return err
	}
	for name, v := range map[string]float64{"age": ind.Age, "ffm": ind.FFM, "fm": ind.FM} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", sim.ErrInvalidInput, name)
		}
	}
	if ind.Age < 0 {
		return fmt.Errorf("%w: age must be non-negative, got %f", sim.ErrInvalidInput, ind.Age)
	}
	if ind.FFM <= 0 {
		return fmt.Errorf("%w: fat-free mass must be positive, got %f", sim.ErrInvalidInput, ind.FFM)
	}
	if ind.FM < 0 {
		return fmt.Errorf("%w: fat mass must be non-negative, got %f", sim.ErrInvalidInput, ind.FM)
	}
	return nil
}

// Cohort is an ordered set of individuals sharing one simulation clock.
type Cohort []Individual

func NewCohort(individuals ...Individual) (Cohort, error) {
	c := Cohort(individuals)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c Cohort) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("%w: cohort is empty", sim.ErrInvalidInput)
	}
	for i, ind := range c {
		if err := ind.Validate(); err != nil {
			return fmt.Errorf("individual %d: %w", i, err)
		}
	}
	return nil
}

func (c Cohort) validateCodes() error {
	if len(c) == 0 {
		return fmt.Errorf("%w: cohort is empty", sim.ErrInvalidInput)
	}
	for i, ind := range c {
		if err := ind.validateCodes(); err != nil {
			return fmt.Errorf("individual %d: %w", i, err)
		}
	}
	return nil
}

func (c Cohort) Len() int { return len(c) }

func (c Cohort) Ages() []float64 {
	out := make([]float64, len(c))
	for i, ind := range c {
		out[i] = ind.Age
	}
	return out
}

// SexWeights returns the sex indicators as blending weights.
func (c Cohort) SexWeights() []float64 {
	out := make([]float64, len(c))
	for i, ind := range c {
		out[i] = float64(ind.Sex)
	}
	return out
}

// InitialState lays the cohort out as [FFM_0..FFM_{N-1}, FM_0..FM_{N-1}].
func (c Cohort) InitialState() sim.State {
	n := len(c)
	x := make(sim.State, 2*n)
	for i, ind := range c {
		x[i] = ind.FFM
		x[n+i] = ind.FM
	}
	return x
}
