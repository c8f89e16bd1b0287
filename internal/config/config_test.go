package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/childsim/internal/intake"
	"github.com/san-kum/childsim/internal/models"
	"github.com/san-kum/childsim/internal/sim"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Integrator != "rk4" {
		t.Errorf("expected integrator rk4, got %s", cfg.Integrator)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Steps() != 365 {
		t.Errorf("expected 365 steps, got %d", cfg.Steps())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("constant-1600")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Individuals[0].FFM != 15 {
		t.Errorf("expected ffm 15, got %f", cfg.Individuals[0].FFM)
	}

	cfg.Individuals[0].FFM = 99
	cfg.Intake.Logistic.K = 1
	again := GetPreset("constant-1600")
	if again.Individuals[0].FFM != 15 || again.Intake.Logistic.K != 1600 {
		t.Error("mutating a preset copy changed the preset")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(presets))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i-1] > presets[i] {
			t.Errorf("presets not sorted: %v", presets)
		}
	}
}

func TestPresetsResolve(t *testing.T) {
	for _, name := range ListPresets() {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			if err := cfg.Validate(); err != nil {
				t.Fatalf("validate: %v", err)
			}
			cohort, err := cfg.Cohort()
			if err != nil {
				t.Fatalf("cohort: %v", err)
			}
			spec, err := cfg.IntakeSpec()
			if err != nil {
				t.Fatalf("intake: %v", err)
			}
			if _, err := models.NewChild(cohort, spec, cfg.Dt); err != nil {
				t.Fatalf("model: %v", err)
			}
		})
	}
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	cfg := GetPreset("mixed-cohort")
	cfg.Days = 100

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Days != 100 || len(loaded.Individuals) != 4 {
		t.Errorf("unexpected round trip: %+v", loaded)
	}
	if loaded.Individuals[3].Category != "obese" {
		t.Errorf("expected obese, got %s", loaded.Individuals[3].Category)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("name: short\ndays: 30\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dt != DefaultDt || cfg.Days != 30 || len(cfg.Individuals) != 1 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero dt", func(c *Config) { c.Dt = 0 }, sim.ErrInvalidConfiguration},
		{"negative days", func(c *Config) { c.Days = -1 }, sim.ErrInvalidConfiguration},
		{"nan dt", func(c *Config) { c.Dt = math.NaN() }, sim.ErrInvalidConfiguration},
		{"horizon past step limit", func(c *Config) { c.Days = 1e20 }, sim.ErrInvalidConfiguration},
		{"no individuals", func(c *Config) { c.Individuals = nil }, sim.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCohort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Individuals = []IndividualConfig{
		{Age: 5, Sex: "f", Category: "3", FFM: 15, FM: 3},
	}
	cohort, err := cfg.Cohort()
	if err != nil {
		t.Fatal(err)
	}
	if cohort[0].Sex != models.Female || cohort[0].Category != models.Overweight {
		t.Errorf("unexpected individual: %+v", cohort[0])
	}

	cfg.Individuals[0].Sex = "other"
	if _, err := cfg.Cohort(); !errors.Is(err, sim.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}

	cfg.Individuals[0].Sex = "male"
	cfg.Individuals[0].FFM = 0
	if _, err := cfg.Cohort(); !errors.Is(err, sim.ErrInvalidInput) {
		t.Errorf("expected range check with check_values, got %v", err)
	}
	cfg.CheckValues = false
	if _, err := cfg.Cohort(); err != nil {
		t.Errorf("expected no range check without check_values, got %v", err)
	}
}

func TestIntakeSpecFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.csv")
	data := "# kcal per day\n1600,1610,1620\n1500, 1500, 1500\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Intake = IntakeConfig{Kind: "tabulated", File: path}
	spec, err := cfg.IntakeSpec()
	if err != nil {
		t.Fatal(err)
	}
	if spec.Kind != intake.KindTabulated {
		t.Errorf("expected tabulated, got %s", spec.Kind)
	}
	if len(spec.Matrix) != 2 || spec.Matrix[0][2] != 1620 || spec.Matrix[1][1] != 1500 {
		t.Errorf("unexpected matrix: %v", spec.Matrix)
	}
}

func TestIntakeSpecErrors(t *testing.T) {
	tests := []struct {
		name string
		in   IntakeConfig
	}{
		{"unknown kind", IntakeConfig{Kind: "buffet"}},
		{"logistic without params", IntakeConfig{Kind: "logistic"}},
		{"tabulated without matrix", IntakeConfig{Kind: "tabulated"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Intake = tt.in
			if _, err := cfg.IntakeSpec(); !errors.Is(err, sim.ErrInvalidInput) {
				t.Errorf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestReadMatrixBadNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("1600,abc\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadMatrix(path); !errors.Is(err, sim.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestSet(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Set("intake", 1800); err != nil {
		t.Fatal(err)
	}
	if cfg.Intake.Kind != string(intake.KindLogistic) || cfg.Intake.Logistic.K != 1800 {
		t.Errorf("intake not replaced: %+v", cfg.Intake)
	}

	if err := cfg.Set("days", 30); err != nil || cfg.Days != 30 {
		t.Errorf("days = %f, err %v", cfg.Days, err)
	}
	if err := cfg.Set("dt", 0.5); err != nil || cfg.Dt != 0.5 {
		t.Errorf("dt = %f, err %v", cfg.Dt, err)
	}

	if err := cfg.Set("mass_scale", 2); err != nil {
		t.Fatal(err)
	}
	if cfg.Individuals[0].FFM != 30 || cfg.Individuals[0].FM != 6 {
		t.Errorf("masses not scaled: %+v", cfg.Individuals[0])
	}

	if err := cfg.Set("gravity", 9.8); !errors.Is(err, sim.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
