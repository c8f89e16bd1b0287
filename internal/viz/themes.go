package viz

import "github.com/charmbracelet/lipgloss"

// Theme is the color scheme of the viewer.
type Theme struct {
	Name   string
	Title  lipgloss.Color
	Accent lipgloss.Color
	Text   lipgloss.Color
	Muted  lipgloss.Color
	Good   lipgloss.Color
	Warn   lipgloss.Color
	Bad    lipgloss.Color
}

var (
	ThemeClinic = Theme{
		Name:   "clinic",
		Title:  lipgloss.Color("#00a8cc"),
		Accent: lipgloss.Color("#ffd700"),
		Text:   lipgloss.Color("#e0f0ff"),
		Muted:  lipgloss.Color("#4488aa"),
		Good:   lipgloss.Color("#00ff88"),
		Warn:   lipgloss.Color("#ffcc00"),
		Bad:    lipgloss.Color("#ff4444"),
	}

	ThemePaper = Theme{
		Name:   "paper",
		Title:  lipgloss.Color("#ffffff"),
		Accent: lipgloss.Color("#0088ff"),
		Text:   lipgloss.Color("#dddddd"),
		Muted:  lipgloss.Color("#888888"),
		Good:   lipgloss.Color("#00cc00"),
		Warn:   lipgloss.Color("#ffaa00"),
		Bad:    lipgloss.Color("#ff0000"),
	}

	ThemeSunset = Theme{
		Name:   "sunset",
		Title:  lipgloss.Color("#ff6b6b"),
		Accent: lipgloss.Color("#feca57"),
		Text:   lipgloss.Color("#fff5f5"),
		Muted:  lipgloss.Color("#8b6b8c"),
		Good:   lipgloss.Color("#5fd068"),
		Warn:   lipgloss.Color("#ffc048"),
		Bad:    lipgloss.Color("#ff4757"),
	}

	Themes = []Theme{
		ThemeClinic,
		ThemePaper,
		ThemeSunset,
	}
)

// GetTheme returns a theme by name, or the first theme.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

type styles struct {
	title, label, value, muted, good, bad lipgloss.Style
	panel                                 lipgloss.Style
}

func (t Theme) styles() styles {
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(t.Title),
		label: lipgloss.NewStyle().Foreground(t.Muted),
		value: lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		muted: lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		good:  lipgloss.NewStyle().Bold(true).Foreground(t.Good),
		bad:   lipgloss.NewStyle().Bold(true).Foreground(t.Bad),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
	}
}
