package styles

import "github.com/charmbracelet/lipgloss"

var (
	ContentWidth = 54
)

var (
	TitleStyle           lipgloss.Style
	InfoStyle            lipgloss.Style
	UserLabelStyle       lipgloss.Style
	UserMsgStyle         lipgloss.Style
	AiLabelStyle         lipgloss.Style
	AiMsgStyle           lipgloss.Style
	ErrorStyle           lipgloss.Style
	WarningStyle         lipgloss.Style
	ToolActionStyle      lipgloss.Style
	ToolIconStyle        lipgloss.Style
	ToolNameStyle        lipgloss.Style
	ToolDetailStyle      lipgloss.Style
	InputBoxStyle        lipgloss.Style
	WelcomeArtStyle      lipgloss.Style
	WelcomeSubtitleStyle lipgloss.Style
	ModalStyle           lipgloss.Style
	ModalTitleStyle      lipgloss.Style
	ModalItemStyle       lipgloss.Style
	ModalSelectedStyle   lipgloss.Style
	OnlineStyle          lipgloss.Style
	OfflineStyle         lipgloss.Style
	HintColor            lipgloss.Color
)

func init() {
	Apply(CurrentTheme)
}

// Apply rebuilds every style from t.
func Apply(t Theme) {
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Padding(0, 1)

	InfoStyle = lipgloss.NewStyle().
		Foreground(t.Hint)

	UserLabelStyle = lipgloss.NewStyle().
		Foreground(t.LabelText).
		Background(t.User).
		Bold(true).
		Padding(0, 1).
		MarginRight(1)

	UserMsgStyle = lipgloss.NewStyle().
		Foreground(t.Text).
		PaddingLeft(2).
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(t.User)

	AiLabelStyle = lipgloss.NewStyle().
		Foreground(t.LabelText).
		Background(t.Primary).
		Bold(true).
		Padding(0, 1).
		MarginRight(1)

	AiMsgStyle = lipgloss.NewStyle().
		Foreground(t.Text).
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(t.Primary)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(t.Error).
		Bold(true)

	WarningStyle = lipgloss.NewStyle().
		Foreground(t.Warning)

	ToolActionStyle = lipgloss.NewStyle().
		Foreground(t.Muted).
		PaddingLeft(2)

	ToolIconStyle = lipgloss.NewStyle().
		Foreground(t.Tool).
		Bold(true)

	ToolNameStyle = lipgloss.NewStyle().
		Foreground(t.ToolName).
		Bold(true)

	ToolDetailStyle = lipgloss.NewStyle().
		Foreground(t.Hint)

	InputBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(0, 1)

	WelcomeArtStyle = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	WelcomeSubtitleStyle = lipgloss.NewStyle().
		Foreground(t.Muted)

	ModalStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2)

	ModalTitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		MarginBottom(1)

	ModalItemStyle = lipgloss.NewStyle().
		Padding(0, 1)

	ModalSelectedStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Background(t.Selected).
		Foreground(t.LabelText)

	OnlineStyle = lipgloss.NewStyle().
		Foreground(t.Success)

	OfflineStyle = lipgloss.NewStyle().
		Foreground(t.Error)

	HintColor = t.Hint
}
