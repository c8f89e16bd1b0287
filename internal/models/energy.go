package models

import (
	"fmt"
	"math"

	"github.com/san-kum/childsim/internal/params"
	"github.com/san-kum/childsim/internal/sim"
)

// FFMEnergyDensity returns rhoFFM in kcal/kg for a fat-free mass in kg.
func FFMEnergyDensity(ffm float64) float64 {
	return params.FFMDensitySlope*ffm + params.FFMDensityIntercept
}

// PartitionFraction returns the share p of an energy imbalance directed to
// fat-free mass (Forbes), C/(C+FM) with C = 10.4*rhoFFM/rhoFM.
func PartitionFraction(ffm, fm float64) (float64, error) {
	c := params.ForbesConstant * FFMEnergyDensity(ffm) / params.RhoFM
	den := c + fm
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return 0, fmt.Errorf("%w: partition denominator C+FM = %v (ffm=%.4f, fm=%.4f)",
			sim.ErrNumericDegeneracy, den, ffm, fm)
	}
	return c / den, nil
}

// Delta is the age-dependent physical activity coefficient (kcal/kg/day).
func Delta(t, deltaMax float64) float64 {
	return params.DeltaMin + (deltaMax-params.DeltaMin)/(1+math.Pow(t/params.DeltaP, params.DeltaH))
}

// EnergyPartition closes the energy balance: reference intake along the
// population curves and actual expenditure for a given state.
type EnergyPartition struct {
	p    params.SexParams
	refs *ReferenceCurves
	kin  *GrowthKinetics
}

func NewEnergyPartition(p params.SexParams, refs *ReferenceCurves, kin *GrowthKinetics) *EnergyPartition {
	return &EnergyPartition{p: p, refs: refs, kin: kin}
}

// ReferenceIntakeAt is the daily intake (kcal) that keeps individual i on its
// reference body-composition trajectory at age t.
func (e *EnergyPartition) ReferenceIntakeAt(i int, t float64) (float64, error) {
	eb := e.kin.EnergyBalanceImpactAt(i, t)
	growth := e.kin.GrowthDynamicAt(i, t)
	ffmRef := e.refs.FFMAt(i, t)
	fmRef := e.refs.FMAt(i, t)
	delta := Delta(t, e.p.DeltaMax[i])

	p, err := PartitionFraction(ffmRef, fmRef)
	if err != nil {
		return 0, fmt.Errorf("reference intake: %w", err)
	}
	rhoFFM := FFMEnergyDensity(ffmRef)

	ref := eb + e.p.K[i] +
		(params.FFMMaintenance+delta)*ffmRef +
		(params.FMMaintenance+delta)*fmRef +
		params.FFMSynthesisCost/rhoFFM*(p*eb+growth) +
		params.FMSynthesisCost/params.RhoFM*((1-p)*eb-growth)
	if math.IsNaN(ref) || math.IsInf(ref, 0) {
		return 0, fmt.Errorf("%w: reference intake is %v at age %.4f", sim.ErrNumericDegeneracy, ref, t)
	}
	return ref, nil
}

// ExpenditureAt is the daily energy expenditure (kcal) of individual i at
// age t with the given masses and intake. Expenditure also appears on the
// intake side through tissue synthesis costs; the normalising denominator is
// the closed-form solution of that identity.
func (e *EnergyPartition) ExpenditureAt(i int, t, ffm, fm, intake float64) (float64, error) {
	ref, err := e.ReferenceIntakeAt(i, t)
	if err != nil {
		return 0, err
	}
	p, err := PartitionFraction(ffm, fm)
	if err != nil {
		return 0, err
	}
	delta := Delta(t, e.p.DeltaMax[i])
	growth := e.kin.GrowthDynamicAt(i, t)
	rhoFFM := FFMEnergyDensity(ffm)

	synthesis := params.FFMSynthesisCost/rhoFFM*p + params.FMSynthesisCost/params.RhoFM*(1-p)
	num := e.p.K[i] +
		(params.FFMMaintenance+delta)*ffm +
		(params.FMMaintenance+delta)*fm +
		params.ThermicEffect*(intake-ref) +
		synthesis*intake +
		growth*(params.FFMSynthesisCost/rhoFFM-params.FMSynthesisCost/params.RhoFM)
	den := 1 + synthesis
	if den == 0 || rhoFFM == 0 {
		return 0, fmt.Errorf("%w: expenditure denominator vanished (ffm=%.4f, fm=%.4f)",
			sim.ErrNumericDegeneracy, ffm, fm)
	}

	expend := num / den
	if math.IsNaN(expend) || math.IsInf(expend, 0) {
		return 0, fmt.Errorf("%w: expenditure is %v at age %.4f", sim.ErrNumericDegeneracy, expend, t)
	}
	return expend, nil
}

// ReferenceIntake fills out with the reference intake at each age.
func (e *EnergyPartition) ReferenceIntake(ages, out []float64) error {
	for i, t := range ages {
		v, err := e.ReferenceIntakeAt(i, t)
		if err != nil {
			return fmt.Errorf("individual %d: %w", i, err)
		}
		out[i] = v
	}
	return nil
}

// Expenditure fills out with the expenditure of every individual.
func (e *EnergyPartition) Expenditure(ages, ffm, fm, intake, out []float64) error {
	for i, t := range ages {
		v, err := e.ExpenditureAt(i, t, ffm[i], fm[i], intake[i])
		if err != nil {
			return fmt.Errorf("individual %d: %w", i, err)
		}
		out[i] = v
	}
	return nil
}
