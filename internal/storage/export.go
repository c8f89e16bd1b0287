package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/childsim/internal/models"
)

type ExportData struct {
	Scenario   string             `json:"scenario"`
	Integrator string             `json:"integrator"`
	Dt         float64            `json:"dt"`
	Days       float64            `json:"days"`
	Steps      int                `json:"steps"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Trajectory *models.Trajectory `json:"trajectory"`
}

func NewExportData(meta *RunMetadata, tr *models.Trajectory) ExportData {
	return ExportData{
		Scenario:   meta.Scenario,
		Integrator: meta.Integrator,
		Dt:         meta.Dt,
		Days:       meta.Days,
		Steps:      tr.Steps(),
		Metrics:    meta.Metrics,
		Trajectory: tr,
	}
}

func ExportJSON(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}

func WriteJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportCSV(path string, tr *models.Trajectory) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteCSV(file, tr)
}
