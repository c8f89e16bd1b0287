package config

import (
	"math"
	"sort"

	"github.com/san-kum/childsim/internal/intake"
)

func logistic(p intake.LogisticParams) IntakeConfig {
	return IntakeConfig{Kind: string(intake.KindLogistic), Logistic: &p}
}

var Presets = map[string]*Config{
	"constant-1600": {
		Name: "constant-1600", Integrator: "rk4", Dt: 1, Days: 365, CheckValues: true,
		Individuals: []IndividualConfig{
			{Age: 5, Sex: "male", Category: "normal", FFM: 15, FM: 3},
		},
		Intake: logistic(intake.Constant(1600)),
	},
	"obese-girl-10y": {
		Name: "obese-girl-10y", Integrator: "rk4", Dt: 1, Days: 3650, CheckValues: true,
		Individuals: []IndividualConfig{
			{Age: 8, Sex: "female", Category: "obese", FFM: 26.66, FM: 11.61},
		},
		Intake: logistic(intake.Constant(2000)),
	},
	"puberty-ramp": {
		Name: "puberty-ramp", Integrator: "rk4", Dt: 1, Days: 3650, CheckValues: true,
		Individuals: []IndividualConfig{
			{Age: 8, Sex: "male", Category: "normal", FFM: 19.98, FM: 3.85},
		},
		// 1500 kcal rising to 2600 kcal, half way at age 12.
		Intake: logistic(intake.LogisticParams{K: 2600, Q: math.Exp(9.6), A: 1500, B: 0.8, Nu: 1, C: 1}),
	},
	"mixed-cohort": {
		Name: "mixed-cohort", Integrator: "rk4", Dt: 1, Days: 730, CheckValues: true,
		Individuals: []IndividualConfig{
			{Age: 4, Sex: "male", Category: "underweight", FFM: 13.2, FM: 2.6},
			{Age: 6, Sex: "female", Category: "normal", FFM: 14.95, FM: 3.8},
			{Age: 9, Sex: "male", Category: "overweight", FFM: 25.96, FM: 6.41},
			{Age: 11, Sex: "female", Category: "obese", FFM: 38.15, FM: 19.70},
		},
		Intake: logistic(intake.Constant(1800)),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
