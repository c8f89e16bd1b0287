package params

import "math"

// Kernel holds the nine coefficients of the growth kernel
//
//	A*exp(-(t-TA)/TauA) + B*exp(-0.5*((t-TB)/TauB)^2) + D*exp(-0.5*((t-TD)/TauD)^2)
//
// with t, TA, TB, TD and the Tau* values in years.
type Kernel struct {
	A, B, D          float64
	TA, TB, TD       float64
	TauA, TauB, TauD float64
}

// Eval evaluates the kernel at age t (years).
func (k Kernel) Eval(t float64) float64 {
	zb := (t - k.TB) / k.TauB
	zd := (t - k.TD) / k.TauD
	return k.A*math.Exp(-(t-k.TA)/k.TauA) +
		k.B*math.Exp(-0.5*zb*zb) +
		k.D*math.Exp(-0.5*zd*zd)
}

// BlendKernel mixes a male and a female kernel coefficient by coefficient.
func BlendKernel(male, female Kernel, sex float64) Kernel {
	return Kernel{
		A:    Blend(male.A, female.A, sex),
		B:    Blend(male.B, female.B, sex),
		D:    Blend(male.D, female.D, sex),
		TA:   Blend(male.TA, female.TA, sex),
		TB:   Blend(male.TB, female.TB, sex),
		TD:   Blend(male.TD, female.TD, sex),
		TauA: Blend(male.TauA, female.TauA, sex),
		TauB: Blend(male.TauB, female.TauB, sex),
		TauD: Blend(male.TauD, female.TauD, sex),
	}
}

// Blend returns male*(1-sex) + female*sex, sex being 0 for male and 1 for female.
func Blend(male, female, sex float64) float64 {
	return male*(1-sex) + female*sex
}

var (
	maleK, femaleK               = 800.0, 700.0
	maleDeltaMax, femaleDeltaMax = 19.0, 17.0

	maleGrowth = Kernel{
		A: 3.2, B: 9.6, D: 10.1,
		TA: 4.7, TB: 12.5, TD: 15.0,
		TauA: 2.5, TauB: 1.0, TauD: 1.5,
	}
	femaleGrowth = Kernel{
		A: 2.3, B: 8.4, D: 1.1,
		TA: 4.5, TB: 11.7, TD: 16.2,
		TauA: 1.0, TauB: 0.9, TauD: 0.7,
	}

	maleGrowthImpact = Kernel{
		A: 3.2, B: 9.6, D: 10.0,
		TA: 4.7, TB: 12.5, TD: 15.0,
		TauA: 1.0, TauB: 0.94, TauD: 0.69,
	}
	femaleGrowthImpact = Kernel{
		A: 2.3, B: 8.4, D: 1.1,
		TA: 4.5, TB: 11.7, TD: 16.0,
		TauA: 1.0, TauB: 0.94, TauD: 0.69,
	}

	maleEnergyBalance = Kernel{
		A: 7.2, B: 30.0, D: 21.0,
		TA: 5.6, TB: 9.8, TD: 15.0,
		TauA: 15.0, TauB: 1.5, TauD: 2.0,
	}
	femaleEnergyBalance = Kernel{
		A: 16.5, B: 47.0, D: 41.0,
		TA: 4.8, TB: 9.1, TD: 13.5,
		TauA: 7.0, TauB: 1.0, TauD: 1.5,
	}
)

// SexParams is the per-individual coefficient set derived from the sex
// indicator. It is built once per cohort and only read afterwards.
type SexParams struct {
	K             []float64
	DeltaMax      []float64
	Growth        []Kernel
	GrowthImpact  []Kernel
	EnergyBalance []Kernel
}

func NewSexParams(sex []float64) SexParams {
	n := len(sex)
	p := SexParams{
		K:             make([]float64, n),
		DeltaMax:      make([]float64, n),
		Growth:        make([]Kernel, n),
		GrowthImpact:  make([]Kernel, n),
		EnergyBalance: make([]Kernel, n),
	}
	for i, s := range sex {
		p.K[i] = Blend(maleK, femaleK, s)
		p.DeltaMax[i] = Blend(maleDeltaMax, femaleDeltaMax, s)
		p.Growth[i] = BlendKernel(maleGrowth, femaleGrowth, s)
		p.GrowthImpact[i] = BlendKernel(maleGrowthImpact, femaleGrowthImpact, s)
		p.EnergyBalance[i] = BlendKernel(maleEnergyBalance, femaleEnergyBalance, s)
	}
	return p
}

func (p SexParams) Len() int { return len(p.K) }
