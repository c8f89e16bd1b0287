package viz

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/childsim/internal/models"
)

// Field is a mass series the viewer can plot.
type Field int

const (
	FieldBodyWeight Field = iota
	FieldFFM
	FieldFM
	numFields
)

func (f Field) String() string {
	switch f {
	case FieldFFM:
		return "fat-free mass"
	case FieldFM:
		return "fat mass"
	default:
		return "body weight"
	}
}

func (f Field) rows(tr *models.Trajectory) [][]float64 {
	switch f {
	case FieldFFM:
		return tr.FFM
	case FieldFM:
		return tr.FM
	default:
		return tr.BodyWeight
	}
}

const (
	defaultWidth  = 100
	defaultHeight = 30
	chartHeight   = 12
)

// Viewer is a Bubble Tea model that browses a trajectory.
type Viewer struct {
	tr      *models.Trajectory
	title   string
	metrics map[string]float64

	individual int
	field      Field
	step       int
	theme      int
	showHelp   bool

	width  int
	height int
}

func NewViewer(tr *models.Trajectory, title string, metrics map[string]float64) Viewer {
	return Viewer{
		tr:      tr,
		title:   title,
		metrics: metrics,
		step:    tr.Steps() - 1,
		width:   defaultWidth,
		height:  defaultHeight,
	}
}

func (v Viewer) Individual() int   { return v.individual }
func (v Viewer) Field() Field      { return v.field }
func (v Viewer) Step() int         { return v.step }
func (v Viewer) Theme() Theme      { return Themes[v.theme] }
func (v Viewer) ShowingHelp() bool { return v.showHelp }

func (v Viewer) Init() tea.Cmd { return nil }

// stride is the cursor jump, about one percent of the run.
func (v Viewer) stride() int {
	s := v.tr.Steps() / 100
	if s < 1 {
		s = 1
	}
	return s
}

func (v Viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return v, tea.Quit
		case "left", "h":
			v.step -= v.stride()
		case "right", "l":
			v.step += v.stride()
		case "home":
			v.step = 0
		case "end":
			v.step = v.tr.Steps() - 1
		case "up", "k":
			v.individual--
		case "down", "j":
			v.individual++
		case "f":
			v.field = (v.field + 1) % numFields
		case "t":
			v.theme = (v.theme + 1) % len(Themes)
		case "?":
			v.showHelp = !v.showHelp
		}
		v.clamp()
	}
	return v, nil
}

func (v *Viewer) clamp() {
	if last := v.tr.Steps() - 1; v.step > last {
		v.step = last
	}
	if v.step < 0 {
		v.step = 0
	}
	if last := v.tr.Individuals() - 1; v.individual > last {
		v.individual = last
	}
	if v.individual < 0 {
		v.individual = 0
	}
}

func (v Viewer) View() string {
	st := Themes[v.theme].styles()
	if v.tr.Steps() == 0 || v.tr.Individuals() == 0 {
		return st.muted.Render("empty trajectory") + "\n"
	}

	var sb strings.Builder
	title := v.title
	if title == "" {
		title = "trajectory"
	}
	sb.WriteString(st.title.Render(fmt.Sprintf("◈ %s", title)))
	sb.WriteString(st.label.Render(fmt.Sprintf("  individual %d/%d  %s",
		v.individual+1, v.tr.Individuals(), v.field)))
	sb.WriteString("\n\n")

	series := models.Column(v.field.rows(v.tr), v.individual)
	plotWidth := v.width - 12
	if plotWidth < 20 {
		plotWidth = 20
	}
	sb.WriteString(asciigraph.Plot(series,
		asciigraph.Height(chartHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(v.field.String()+" (kg)"),
	))
	sb.WriteString("\n\n")

	frac := 0.0
	if last := v.tr.Steps() - 1; last > 0 {
		frac = float64(v.step) / float64(last)
	}
	sb.WriteString(ProgressBar(frac, plotWidth, st.value))
	sb.WriteString("\n")
	sb.WriteString(Separator(plotWidth, st.label))
	sb.WriteString("\n")

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		st.panel.Render(v.cursorPanel(st)),
		" ",
		st.panel.Render(v.metricsPanel(st)),
	)
	sb.WriteString(panels)
	sb.WriteString("\n")

	if v.showHelp {
		sb.WriteString(st.muted.Render("←/→ time  home/end  ↑/↓ individual  f field  t theme  q quit"))
	} else {
		sb.WriteString(st.muted.Render("? help  q quit"))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (v Viewer) cursorPanel(st styles) string {
	k, i := v.step, v.individual
	status := st.good.Render("valid")
	if !v.tr.Valid {
		status = st.bad.Render("invalid")
	}
	rows := []string{
		row(st, "day", fmt.Sprintf("%.1f", v.tr.Times[k])),
		row(st, "age", fmt.Sprintf("%.2f y", v.tr.Age[k][i])),
		row(st, "fat-free", fmt.Sprintf("%.3f kg", v.tr.FFM[k][i])),
		row(st, "fat", fmt.Sprintf("%.3f kg", v.tr.FM[k][i])),
		row(st, "weight", fmt.Sprintf("%.3f kg", v.tr.BodyWeight[k][i])),
		st.label.Render(fmt.Sprintf("%-18s", "state")) + status,
		Sparkline(models.Column(v.field.rows(v.tr), i), 24),
	}
	return strings.Join(rows, "\n")
}

func (v Viewer) metricsPanel(st styles) string {
	if len(v.metrics) == 0 {
		return st.muted.Render("no metrics")
	}
	names := make([]string, 0, len(v.metrics))
	for name := range v.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]string, len(names))
	for j, name := range names {
		rows[j] = row(st, name, fmt.Sprintf("%.4f", v.metrics[name]))
	}
	return strings.Join(rows, "\n")
}

func row(st styles, label, value string) string {
	return st.label.Render(fmt.Sprintf("%-18s", label)) + st.value.Render(value)
}
