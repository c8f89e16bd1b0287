package models

import "github.com/san-kum/childsim/internal/params"

// GrowthKinetics evaluates the three growth kernels of the model. All three
// share params.Kernel and differ only in their coefficients.
type GrowthKinetics struct {
	p params.SexParams
}

func NewGrowthKinetics(p params.SexParams) *GrowthKinetics {
	return &GrowthKinetics{p: p}
}

// GrowthDynamicAt is the net growth term (kcal/day) of individual i at age t.
func (g *GrowthKinetics) GrowthDynamicAt(i int, t float64) float64 {
	return g.p.Growth[i].Eval(t)
}

func (g *GrowthKinetics) GrowthImpactAt(i int, t float64) float64 {
	return g.p.GrowthImpact[i].Eval(t)
}

func (g *GrowthKinetics) EnergyBalanceImpactAt(i int, t float64) float64 {
	return g.p.EnergyBalance[i].Eval(t)
}

func (g *GrowthKinetics) GrowthDynamic(ages, out []float64) {
	evalKernels(g.p.Growth, ages, out)
}

func (g *GrowthKinetics) GrowthImpact(ages, out []float64) {
	evalKernels(g.p.GrowthImpact, ages, out)
}

func (g *GrowthKinetics) EnergyBalanceImpact(ages, out []float64) {
	evalKernels(g.p.EnergyBalance, ages, out)
}

func evalKernels(kernels []params.Kernel, ages, out []float64) {
	for i, t := range ages {
		out[i] = kernels[i].Eval(t)
	}
}
