package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/childsim/internal/models"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) BaseDir() string { return s.baseDir }

type RunMetadata struct {
	ID            string              `json:"id"`
	Scenario      string              `json:"scenario"`
	Timestamp     time.Time           `json:"timestamp"`
	Dt            float64             `json:"dt"`
	Days          float64             `json:"days"`
	Steps         int                 `json:"steps"`
	Integrator    string              `json:"integrator"`
	Individuals   int                 `json:"individuals"`
	CorrectValues bool                `json:"correct_values"`
	Valid         bool                `json:"valid"`
	ModelType     string              `json:"model_type"`
	Cohort        []models.Individual `json:"cohort,omitempty"`
	Metrics       map[string]float64  `json:"metrics"`
}

// Run is everything persisted for one simulation.
type Run struct {
	Scenario   string
	Integrator string
	Dt         float64
	Days       float64
	Cohort     models.Cohort
	Trajectory *models.Trajectory
	Metrics    map[string]float64
}

func (s *Store) Save(run Run) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", run.Scenario, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	tr := run.Trajectory
	meta := RunMetadata{
		ID:            runID,
		Scenario:      run.Scenario,
		Timestamp:     now,
		Dt:            run.Dt,
		Days:          run.Days,
		Steps:         tr.Steps(),
		Integrator:    run.Integrator,
		Individuals:   tr.Individuals(),
		CorrectValues: tr.CorrectValues,
		Valid:         tr.Valid,
		ModelType:     tr.ModelType,
		Cohort:        run.Cohort,
		Metrics:       run.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, trajectoryFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, tr); err != nil {
		return "", err
	}
	return runID, nil
}

var csvHeader = []string{"step", "time", "individual", "age", "ffm", "fm", "body_weight"}

// WriteCSV writes tr in long format, one line per step and individual.
func WriteCSV(out io.Writer, tr *models.Trajectory) error {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for k := range tr.Times {
		for i := range tr.FFM[k] {
			row := []string{
				strconv.Itoa(k),
				format(tr.Times[k]),
				strconv.Itoa(i),
				format(tr.Age[k][i]),
				format(tr.FFM[k][i]),
				format(tr.FM[k][i]),
				format(tr.BodyWeight[k][i]),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadTrajectory rebuilds the trajectory of a saved run.
func (s *Store) LoadTrajectory(runID string) (*models.Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tr, err := ReadCSV(file, meta.Individuals)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	tr.CorrectValues = meta.CorrectValues
	tr.Valid = meta.Valid
	tr.ModelType = meta.ModelType
	return tr, nil
}

// ReadCSV parses the long format written by WriteCSV for n individuals.
func ReadCSV(in io.Reader, n int) (*models.Trajectory, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = len(csvHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 1 || n <= 0 {
		return nil, fmt.Errorf("empty trajectory")
	}
	rows := records[1:]
	if len(rows)%n != 0 {
		return nil, fmt.Errorf("%d rows do not split into %d individuals", len(rows), n)
	}

	steps := len(rows) / n
	tr := &models.Trajectory{
		Times:      make([]float64, steps),
		Age:        make([][]float64, steps),
		FFM:        make([][]float64, steps),
		FM:         make([][]float64, steps),
		BodyWeight: make([][]float64, steps),
	}
	for k := 0; k < steps; k++ {
		tr.Age[k] = make([]float64, n)
		tr.FFM[k] = make([]float64, n)
		tr.FM[k] = make([]float64, n)
		tr.BodyWeight[k] = make([]float64, n)
	}

	for line, rec := range rows {
		var vals [7]float64
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line+2, csvHeader[j], err)
			}
			vals[j] = v
		}
		k, i := int(vals[0]), int(vals[2])
		if k < 0 || k >= steps || i < 0 || i >= n {
			return nil, fmt.Errorf("line %d: step %d individual %d out of range", line+2, k, i)
		}
		tr.Times[k] = vals[1]
		tr.Age[k][i] = vals[3]
		tr.FFM[k][i] = vals[4]
		tr.FM[k][i] = vals[5]
		tr.BodyWeight[k][i] = vals[6]
	}
	return tr, nil
}
