package styles

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors every style is built from.
type Theme struct {
	Primary   lipgloss.Color
	User      lipgloss.Color
	Tool      lipgloss.Color
	ToolName  lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Hint      lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Success   lipgloss.Color
	Border    lipgloss.Color
	Selected  lipgloss.Color
	LabelText lipgloss.Color
}

var DarkTheme = Theme{
	Primary:   lipgloss.Color("#B39DDB"),
	User:      lipgloss.Color("#90CAF9"),
	Tool:      lipgloss.Color("#CE93D8"),
	ToolName:  lipgloss.Color("#FFCC80"),
	Text:      lipgloss.Color("#E0E0E0"),
	Muted:     lipgloss.Color("#888888"),
	Hint:      lipgloss.Color("#545454"),
	Error:     lipgloss.Color("#EF9A9A"),
	Warning:   lipgloss.Color("#FFF59D"),
	Success:   lipgloss.Color("#A5D6A7"),
	Border:    lipgloss.Color("#333333"),
	Selected:  lipgloss.Color("#5C5C7A"),
	LabelText: lipgloss.Color("#FFFFFF"),
}

var LightTheme = Theme{
	Primary:   lipgloss.Color("#5E35B1"),
	User:      lipgloss.Color("#1E88E5"),
	Tool:      lipgloss.Color("#8E24AA"),
	ToolName:  lipgloss.Color("#EF6C00"),
	Text:      lipgloss.Color("#333333"),
	Muted:     lipgloss.Color("#666666"),
	Hint:      lipgloss.Color("#9E9E9E"),
	Error:     lipgloss.Color("#C62828"),
	Warning:   lipgloss.Color("#F9A825"),
	Success:   lipgloss.Color("#2E7D32"),
	Border:    lipgloss.Color("#E0E0E0"),
	Selected:  lipgloss.Color("#D1C4E9"),
	LabelText: lipgloss.Color("#FFFFFF"),
}

// CurrentTheme holds the active theme (set at runtime based on terminal)
var CurrentTheme = DarkTheme

// InitTheme picks the theme matching the terminal background and rebuilds
// the styles from it.
func InitTheme() {
	if lipgloss.HasDarkBackground() {
		CurrentTheme = DarkTheme
	} else {
		CurrentTheme = LightTheme
	}
	Apply(CurrentTheme)
}

// GlamourStyle is the glamour style name matching the current theme.
func GlamourStyle() string {
	if CurrentTheme == LightTheme {
		return "light"
	}
	return "dark"
}
