// Package params holds the physical constants and the sex-specific
// coefficients of the childhood energy-balance model (Hall et al. 2013).
package params

const (
	// DaysPerYear converts elapsed simulation days into age in years.
	DaysPerYear = 365.0

	// RhoFM is the energy density of fat mass in kcal/kg.
	RhoFM = 9400.0

	// Fat-free mass energy density, rhoFFM = FFMDensitySlope*FFM + FFMDensityIntercept (kcal/kg).
	FFMDensitySlope     = 4.3
	FFMDensityIntercept = 837.0

	// ForbesConstant scales the Forbes partition C = 10.4*rhoFFM/rhoFM.
	ForbesConstant = 10.4

	// Delta(t) = DeltaMin + (deltaMax-DeltaMin) / (1 + (t/DeltaP)^DeltaH), kcal/kg/day.
	DeltaMin = 10.0
	DeltaP   = 12.0
	DeltaH   = 10.0

	// Maintenance costs per kg of tissue per day.
	FFMMaintenance = 22.4
	FMMaintenance  = 4.5

	// Tissue synthesis costs (kcal/kg).
	FFMSynthesisCost = 230.0
	FMSynthesisCost  = 180.0

	// ThermicEffect is the fraction of an intake deviation spent as adaptive thermogenesis.
	ThermicEffect = 0.24
)
