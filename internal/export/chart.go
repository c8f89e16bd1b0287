// Package export renders trajectories as PNG or SVG line charts.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/san-kum/childsim/internal/models"
)

type Field string

const (
	BodyWeight Field = "body_weight"
	FFM        Field = "ffm"
	FM         Field = "fm"
)

var fieldLabels = map[Field]string{
	BodyWeight: "Body weight (kg)",
	FFM:        "Fat-free mass (kg)",
	FM:         "Fat mass (kg)",
}

func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(s))
	if _, ok := fieldLabels[f]; !ok {
		return "", fmt.Errorf("unknown field %q (want body_weight, ffm or fm)", s)
	}
	return f, nil
}

// Rows returns the row-major series of f.
func (f Field) Rows(tr *models.Trajectory) [][]float64 {
	switch f {
	case FFM:
		return tr.FFM
	case FM:
		return tr.FM
	}
	return tr.BodyWeight
}

// MaxSeries caps the number of individuals drawn in one chart.
const MaxSeries = 16

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	chart.ColorOrange,
	{R: 128, G: 0, B: 128, A: 255},
	{R: 0, G: 128, B: 128, A: 255},
	{R: 139, G: 69, B: 19, A: 255},
	{R: 105, G: 105, B: 105, A: 255},
}

type Options struct {
	Title  string
	Width  int
	Height int
}

func DefaultOptions() Options {
	return Options{Width: 1024, Height: 512}
}

// Render draws one field of tr against elapsed days.
func Render(w io.Writer, tr *models.Trajectory, field Field, format chart.RendererProvider, opts Options) error {
	if tr.Steps() < 2 {
		return fmt.Errorf("trajectory has %d steps, need at least 2 to chart", tr.Steps())
	}

	rows := field.Rows(tr)
	n := tr.Individuals()
	if n > MaxSeries {
		n = MaxSeries
	}

	series := make([]chart.Series, 0, n)
	for i := 0; i < n; i++ {
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("#%d", i),
			XValues: tr.Times,
			YValues: models.Column(rows, i),
			Style:   chart.Style{StrokeColor: palette[i%len(palette)], StrokeWidth: 2.0},
		})
	}

	graph := chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		XAxis: chart.XAxis{
			Name:  "Days",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  fieldLabels[field],
			Style: chart.Style{FontSize: 10.0},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(format, w)
}

// Save renders to path, choosing SVG or PNG from the file extension.
func Save(path string, tr *models.Trajectory, field Field, opts Options) error {
	format := chart.PNG
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		format = chart.SVG
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return Render(f, tr, field, format, opts)
}

// Label is the axis caption of f.
func (f Field) Label() string { return fieldLabels[f] }
