package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"robopilot/internal/budget"
	"robopilot/internal/styles"
)

func New(ctx context.Context, sess Session) *Model {
	ti := textarea.New()
	ti.Placeholder = "Tell the robot what to do..."
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = 6
	ti.SetHeight(2)
	ti.SetWidth(80)
	ti.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(styles.CurrentTheme.Primary).Bold(true)
	ti.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(styles.CurrentTheme.Primary).Bold(true)
	ti.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(styles.HintColor)
	ti.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(styles.HintColor)
	ti.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ti.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.CurrentTheme.Primary)

	b := sess.Budget
	if b == nil {
		b = budget.New(budget.LimitForModel(sess.Model.ID), nil, nil)
	}

	m := &Model{
		TextInput:    ti,
		Viewport:     viewport.New(60, 15),
		Spinner:      sp,
		Agent:        sess.Agent,
		Transcript:   sess.Transcript,
		Budget:       b,
		Log:          sess.Log,
		DB:           sess.DB,
		Messages:     []string{},
		CurrentModel: sess.Model,
		BackendUp:    sess.BackendUp,
		Welcome:      sess.Welcome,
		ctx:          ctx,
	}
	if m.Transcript != nil {
		m.ContextTokens = m.Budget.Usage(m.Transcript)
		m.PeakTokens = m.Budget.Peak()
		m.Messages = m.renderHistory(m.Transcript.Messages()[1:])
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.TextInput.Cursor.BlinkCmd(),
		m.Spinner.Tick,
	)
}

// NewProgram builds the program and attaches obs, which must be the
// observer the session's agent reports to.
func NewProgram(ctx context.Context, sess Session, obs *Observer) (*tea.Program, *Model) {
	m := New(ctx, sess)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.Program = p
	if obs != nil {
		obs.Attach(p)
	}
	return p, m
}
