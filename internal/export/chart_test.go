package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/san-kum/childsim/internal/models"
)

func sample() *models.Trajectory {
	return &models.Trajectory{
		Times:      []float64{0, 1, 2},
		Age:        [][]float64{{5, 6}, {5.01, 6.01}, {5.02, 6.02}},
		FFM:        [][]float64{{15, 16}, {15.1, 16.1}, {15.2, 16.2}},
		FM:         [][]float64{{3, 4}, {3.1, 4.1}, {3.2, 4.2}},
		BodyWeight: [][]float64{{18, 20}, {18.2, 20.2}, {18.4, 20.4}},
		Valid:      true,
		ModelType:  models.ModelType,
	}
}

func TestParseField(t *testing.T) {
	for _, s := range []string{"body_weight", "FFM", "fm"} {
		if _, err := ParseField(s); err != nil {
			t.Errorf("%s: %v", s, err)
		}
	}
	if _, err := ParseField("height"); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sample(), BodyWeight, chart.PNG, DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("expected PNG output")
	}
}

func TestSaveSVG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fm.svg")
	if err := Save(path, sample(), FM, DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<svg") {
		t.Error("expected SVG output")
	}
}

func TestRenderNeedsTwoSteps(t *testing.T) {
	tr := sample()
	tr.Times = tr.Times[:1]
	if err := Render(&bytes.Buffer{}, tr, FFM, chart.PNG, DefaultOptions()); err == nil {
		t.Error("expected error for a single-step trajectory")
	}
}
