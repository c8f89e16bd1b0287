package models

import (
	"math"

	"github.com/san-kum/childsim/internal/params"
)

const (
	referenceMinAge = 2
	referenceRows   = 17
)

// sexPair holds a {male, female} reference value in kg.
type sexPair [2]float64

// referenceTable rows are ages 2..18; columns are underweight, normal,
// overweight and obese.
type referenceTable [referenceRows][4]sexPair

func uniformRow(male, female float64) [4]sexPair {
	p := sexPair{male, female}
	return [4]sexPair{p, p, p, p}
}

// Reference fat-free mass (kg) by age and BMI class (Ellis et al. 2000, Haschke 1989, Fomon et al. 1982).
var ffmReference = referenceTable{
	uniformRow(10.134, 9.477),
	uniformRow(12.099, 11.494),
	uniformRow(14.0, 13.2),
	{{13.54, 12.45}, {14.85, 13.78}, {16.21, 15.71}, {18.37, 18.81}},
	{{15.68, 12.69}, {16.09, 14.95}, {17.97, 17.54}, {21.24, 20.16}},
	{{18.85, 14.42}, {17.84, 17.13}, {20.14, 20.15}, {24.47, 23.31}},
	{{19.08, 15.98}, {19.98, 18.51}, {23.46, 22.86}, {28.09, 26.66}},
	{{20.23, 19.52}, {22.49, 20.97}, {25.96, 25.51}, {30.82, 30.43}},
	{{20.37, 20.12}, {24.89, 24.04}, {29.20, 28.86}, {34.86, 32.19}},
	{{21.89, 25.15}, {26.92, 27.03}, {32.76, 34.25}, {37.89, 38.15}},
	{{25.60, 26.63}, {29.91, 30.50}, {37.16, 36.51}, {43.62, 42.63}},
	{{30.52, 26.47}, {34.82, 34.59}, {43.11, 40.20}, {47.03, 45.31}},
	{{31.05, 29.63}, {39.96, 36.49}, {45.87, 41.33}, {52.54, 46.58}},
	{{36.28, 37.05}, {43.25, 38.77}, {49.94, 42.44}, {55.78, 47.64}},
	{{41.04, 34.60}, {45.41, 38.45}, {53.66, 44.30}, {59.45, 49.83}},
	{{44.75, 36.61}, {47.55, 39.81}, {55.59, 44.43}, {61.07, 48.59}},
	{{41.59, 36.38}, {48.67, 41.01}, {56.70, 46.73}, {62.52, 49.89}},
}

// Reference fat mass (kg) by age and BMI class.
var fmReference = referenceTable{
	uniformRow(2.456, 2.433),
	uniformRow(2.576, 2.606),
	uniformRow(2.7, 2.8),
	{{2.05, 2.33}, {3.10, 3.72}, {4.13, 5.19}, {5.60, 7.58}},
	{{2.13, 2.33}, {3.23, 3.80}, {4.43, 5.67}, {6.91, 8.27}},
	{{2.36, 2.38}, {3.49, 4.20}, {5.08, 6.50}, {8.05, 9.60}},
	{{2.49, 2.61}, {3.85, 4.41}, {5.75, 7.35}, {9.80, 11.61}},
	{{2.49, 3.36}, {4.25, 5.00}, {6.41, 8.39}, {10.41, 14.26}},
	{{2.58, 3.28}, {4.50, 5.69}, {7.64, 9.61}, {13.15, 15.76}},
	{{2.90, 4.16}, {4.89, 6.44}, {8.92, 12.13}, {14.56, 19.70}},
	{{2.80, 4.45}, {5.52, 7.57}, {10.43, 13.45}, {18.72, 21.80}},
	{{3.65, 3.63}, {6.86, 9.41}, {12.58, 15.76}, {21.70, 25.10}},
	{{3.09, 5.11}, {7.72, 10.38}, {14.07, 16.88}, {23.93, 29.30}},
	{{4.33, 5.79}, {8.71, 11.07}, {16.44, 17.06}, {26.63, 28.89}},
	{{4.86, 5.32}, {9.22, 10.74}, {17.43, 18.07}, {28.70, 30.17}},
	{{5.29, 5.68}, {10.04, 10.78}, {18.74, 17.86}, {29.78, 30.29}},
	{{4.65, 6.74}, {10.05, 11.19}, {18.89, 19.14}, {34.51, 29.10}},
}

// curve is one individual's reference values, already blended by sex and
// selected by category.
type curve [referenceRows]float64

func (c *curve) at(age float64) float64 {
	if age >= referenceMinAge+referenceRows-1 {
		return c[referenceRows-1]
	}
	floor := math.Floor(age)
	j := int(math.Max(floor, referenceMinAge)) - referenceMinAge
	jHigh := j + 1
	if jHigh > referenceRows-1 {
		jHigh = referenceRows - 1
	}
	frac := age - floor
	return c[j] + frac*(c[jHigh]-c[j])
}

// ReferenceCurves interpolates reference fat-free and fat mass for a cohort.
type ReferenceCurves struct {
	ffm []curve
	fm  []curve
}

func NewReferenceCurves(c Cohort) *ReferenceCurves {
	r := &ReferenceCurves{
		ffm: make([]curve, len(c)),
		fm:  make([]curve, len(c)),
	}
	for i, ind := range c {
		r.ffm[i] = selectCurve(&ffmReference, ind)
		r.fm[i] = selectCurve(&fmReference, ind)
	}
	return r
}

func selectCurve(table *referenceTable, ind Individual) curve {
	var out curve
	col := ind.Category.index()
	sex := float64(ind.Sex)
	for row := range table {
		v := table[row][col]
		out[row] = params.Blend(v[0], v[1], sex)
	}
	return out
}

// FFMAt returns the reference fat-free mass of individual i at age (years).
func (r *ReferenceCurves) FFMAt(i int, age float64) float64 { return r.ffm[i].at(age) }

// FMAt returns the reference fat mass of individual i at age (years).
func (r *ReferenceCurves) FMAt(i int, age float64) float64 { return r.fm[i].at(age) }

// FFM fills out with the reference fat-free mass at each age.
func (r *ReferenceCurves) FFM(ages, out []float64) {
	for i, age := range ages {
		out[i] = r.ffm[i].at(age)
	}
}

// FM fills out with the reference fat mass at each age.
func (r *ReferenceCurves) FM(ages, out []float64) {
	for i, age := range ages {
		out[i] = r.fm[i].at(age)
	}
}
