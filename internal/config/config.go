package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/childsim/internal/intake"
	"github.com/san-kum/childsim/internal/models"
	"github.com/san-kum/childsim/internal/sim"
)

const (
	DefaultDt         = 1.0
	DefaultDays       = 365.0
	DefaultIntegrator = "rk4"
	DefaultIntake     = 1600.0
)

// Config is a cohort scenario as stored in YAML files.
type Config struct {
	Name        string             `yaml:"name" json:"name"`
	Integrator  string             `yaml:"integrator" json:"integrator"`
	Dt          float64            `yaml:"dt" json:"dt"`
	Days        float64            `yaml:"days" json:"days"`
	CheckValues bool               `yaml:"check_values" json:"check_values"`
	Individuals []IndividualConfig `yaml:"individuals" json:"individuals"`
	Intake      IntakeConfig       `yaml:"intake" json:"intake"`
}

type IndividualConfig struct {
	Age      float64 `yaml:"age" json:"age"`
	Sex      string  `yaml:"sex" json:"sex"`
	Category string  `yaml:"category" json:"category"`
	FFM      float64 `yaml:"ffm" json:"ffm"`
	FM       float64 `yaml:"fm" json:"fm"`
}

// IntakeConfig selects the intake source. A tabulated intake is read from
// Matrix or, when File is set, from a CSV file with one row per individual.
type IntakeConfig struct {
	Kind     string                 `yaml:"kind" json:"kind"`
	Logistic *intake.LogisticParams `yaml:"logistic,omitempty" json:"logistic,omitempty"`
	Matrix   [][]float64            `yaml:"matrix,omitempty" json:"matrix,omitempty"`
	File     string                 `yaml:"file,omitempty" json:"file,omitempty"`
}

func DefaultConfig() *Config {
	constant := intake.Constant(DefaultIntake)
	return &Config{
		Name:        "default",
		Integrator:  DefaultIntegrator,
		Dt:          DefaultDt,
		Days:        DefaultDays,
		CheckValues: true,
		Individuals: []IndividualConfig{
			{Age: 5, Sex: "male", Category: "normal", FFM: 15, FM: 3},
		},
		Intake: IntakeConfig{Kind: string(intake.KindLogistic), Logistic: &constant},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Individuals = append([]IndividualConfig(nil), c.Individuals...)
	if c.Intake.Logistic != nil {
		p := *c.Intake.Logistic
		out.Intake.Logistic = &p
	}
	if c.Intake.Matrix != nil {
		out.Intake.Matrix = make([][]float64, len(c.Intake.Matrix))
		for i, row := range c.Intake.Matrix {
			out.Intake.Matrix[i] = append([]float64(nil), row...)
		}
	}
	return &out
}

// Validate checks the run parameters. Cohort and intake contents are checked
// when they are resolved.
func (c *Config) Validate() error {
	if err := sim.CheckHorizon(c.Days, c.Dt); err != nil {
		return err
	}
	if len(c.Individuals) == 0 {
		return fmt.Errorf("%w: scenario %q has no individuals", sim.ErrInvalidInput, c.Name)
	}
	return nil
}

func (c *Config) Steps() int {
	return sim.Steps(c.Days, c.Dt)
}

// Cohort parses the individuals. With CheckValues the physical ranges are
// validated as well as the sex and category codes.
func (c *Config) Cohort() (models.Cohort, error) {
	cohort := make(models.Cohort, len(c.Individuals))
	for i, ic := range c.Individuals {
		sex, err := models.ParseSex(ic.Sex)
		if err != nil {
			return nil, fmt.Errorf("individual %d: %w", i, err)
		}
		cat, err := models.ParseCategory(ic.Category)
		if err != nil {
			return nil, fmt.Errorf("individual %d: %w", i, err)
		}
		cohort[i] = models.Individual{Age: ic.Age, Sex: sex, Category: cat, FFM: ic.FFM, FM: ic.FM}
	}
	if c.CheckValues {
		if err := cohort.Validate(); err != nil {
			return nil, err
		}
	}
	return cohort, nil
}

// Tunable lists the parameter names accepted by Set.
var Tunable = []string{"intake", "dt", "days", "mass_scale"}

// Set assigns a named scalar parameter. "intake" replaces the intake with a
// constant daily intake, "mass_scale" multiplies every initial mass.
func (c *Config) Set(name string, v float64) error {
	switch name {
	case "intake":
		constant := intake.Constant(v)
		c.Intake = IntakeConfig{Kind: string(intake.KindLogistic), Logistic: &constant}
	case "dt":
		c.Dt = v
	case "days":
		c.Days = v
	case "mass_scale":
		for i := range c.Individuals {
			c.Individuals[i].FFM *= v
			c.Individuals[i].FM *= v
		}
	default:
		return fmt.Errorf("%w: unknown parameter %q (want one of %v)", sim.ErrInvalidInput, name, Tunable)
	}
	return nil
}

// IntakeSpec resolves the intake section into an intake.Spec.
func (c *Config) IntakeSpec() (intake.Spec, error) {
	switch intake.Kind(c.Intake.Kind) {
	case intake.KindLogistic:
		if c.Intake.Logistic == nil {
			return intake.Spec{}, fmt.Errorf("%w: logistic intake needs parameters", sim.ErrInvalidInput)
		}
		return intake.LogisticSpec(*c.Intake.Logistic), nil
	case intake.KindTabulated:
		matrix := c.Intake.Matrix
		if c.Intake.File != "" {
			m, err := ReadMatrix(c.Intake.File)
			if err != nil {
				return intake.Spec{}, err
			}
			matrix = m
		}
		if len(matrix) == 0 {
			return intake.Spec{}, fmt.Errorf("%w: tabulated intake needs a matrix or file", sim.ErrInvalidInput)
		}
		return intake.TabulatedSpec(matrix), nil
	}
	return intake.Spec{}, fmt.Errorf("%w: unknown intake kind %q", sim.ErrInvalidInput, c.Intake.Kind)
}

// ReadMatrix loads an intake table from CSV: one row per individual, one
// column per dt step. Lines starting with '#' are skipped.
func ReadMatrix(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read intake table %s: %w", path, err)
	}

	matrix := make([][]float64, len(records))
	for i, rec := range records {
		row := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: intake table %s row %d column %d: %v", sim.ErrInvalidInput, path, i+1, j+1, err)
			}
			row[j] = v
		}
		matrix[i] = row
	}
	return matrix, nil
}
