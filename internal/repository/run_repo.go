package repository

import (
	"gorm.io/gorm"
)

type RunRepository interface {
	Create(summary *RunSummary) (*RunSummary, error)
	FindByRunID(runID string) (*RunSummary, error)
	ListByScenario(scenario string) ([]*RunSummary, error)
	Count() (int64, error)
}

type runRepo struct {
	db *gorm.DB
}

func NewRunRepo(db *gorm.DB) RunRepository {
	return &runRepo{db: db}
}

func (r *runRepo) Create(summary *RunSummary) (*RunSummary, error) {
	err := r.db.Create(summary).Error
	return summary, err
}

func (r *runRepo) FindByRunID(runID string) (*RunSummary, error) {
	var s RunSummary
	if err := r.db.Where("run_id = ?", runID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *runRepo) ListByScenario(scenario string) ([]*RunSummary, error) {
	var out []*RunSummary
	err := r.db.Where("scenario = ?", scenario).Order("simulated_at").Find(&out).Error
	return out, err
}

func (r *runRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&RunSummary{}).Count(&count).Error
	return count, err
}
