package repository

import (
	"time"

	"gonum.org/v1/gonum/stat"
	"gorm.io/gorm"

	"github.com/san-kum/childsim/internal/models"
)

// RunSummary is the per-run row kept in PostgreSQL.
type RunSummary struct {
	gorm.Model
	RunID          string `gorm:"uniqueIndex;size:128"`
	Scenario       string `gorm:"index;size:128"`
	Integrator     string `gorm:"size:32"`
	Individuals    int
	Days           float64
	Dt             float64
	Valid          bool
	CorrectValues  bool
	InitialWeight  float64
	FinalWeight    float64
	FinalFatMass   float64
	FinalFatFree   float64
	MaxDailyChange float64
	SimulatedAt    time.Time
}

// Summarize condenses a trajectory into cohort means at the first and last step.
func Summarize(runID, scenario, integrator string, dt, days float64, tr *models.Trajectory, metrics map[string]float64) *RunSummary {
	s := &RunSummary{
		RunID:          runID,
		Scenario:       scenario,
		Integrator:     integrator,
		Individuals:    tr.Individuals(),
		Days:           days,
		Dt:             dt,
		Valid:          tr.Valid,
		CorrectValues:  tr.CorrectValues,
		MaxDailyChange: metrics["max_daily_change"],
		SimulatedAt:    time.Now(),
	}
	if tr.Steps() == 0 {
		return s
	}
	ffm, fm, bw := tr.Final()
	s.InitialWeight = stat.Mean(tr.BodyWeight[0], nil)
	s.FinalWeight = stat.Mean(bw, nil)
	s.FinalFatMass = stat.Mean(fm, nil)
	s.FinalFatFree = stat.Mean(ffm, nil)
	return s
}
