package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"robopilot/internal/db"
	"robopilot/internal/models"
	"robopilot/internal/styles"
)

var errNoHistory = errors.New("history database not initialized")

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.Loading {
			m.UpdateViewport()
		}
		return m, spCmd

	case tea.KeyMsg:
		if m.HistoryOpen {
			return m.updateHistory(msg)
		}

		if m.ShortcutsOpen {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "esc", "enter", "?", "ctrl+s":
				m.ShortcutsOpen = false
				return m, nil
			}
			return m, nil
		}

		if isNewlineShortcut(msg) {
			m.TextInput.InsertString("\n")
			m.updateInputLayout()
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyCtrlS:
			m.ShortcutsOpen = true
			m.HistoryOpen = false
			return m, nil

		case tea.KeyCtrlH:
			m.HistoryOpen = true
			m.ShortcutsOpen = false
			m.HistoryPage = 0
			m.RefreshHistoryFromDB()
			return m, nil

		case tea.KeyEnter:
			if m.Loading {
				return m, nil
			}
			input := strings.TrimSpace(m.TextInput.Value())
			if input == "" {
				return m, nil
			}

			switch strings.ToLower(input) {
			case "exit":
				return m, tea.Quit
			case "help":
				m.TextInput.Reset()
				m.updateInputLayout()
				m.Messages = append(m.Messages, FormatAIMessage(m.Welcome))
				m.UpdateViewport()
				return m, nil
			}

			m.Messages = append(m.Messages, FormatUserMessage(input, m.Viewport.Width, len(m.Messages) == 0))
			m.TextInput.Reset()
			m.updateInputLayout()
			m.Loading = true
			m.Status = ""
			m.UpdateViewport()

			return m, tea.Batch(m.SendMessage(input), m.Spinner.Tick)
		}

	case ToolCallMsg:
		m.ExecutingTool = msg.Name
		m.ToolArguments = msg.Arguments
		m.Status = ""
		m.UpdateViewport()
		return m, nil

	case ToolResultMsg:
		m.ExecutingTool = ""
		m.ToolArguments = ""
		m.ToolActions = append(m.ToolActions, models.ToolAction{
			Name:    msg.Name,
			Summary: msg.Summary,
		})
		m.UpdateViewport()
		return m, nil

	case DiagnosticMsg:
		m.Messages = append(m.Messages, FormatNotice(msg.Text))
		m.UpdateViewport()
		return m, nil

	case RetryMsg:
		m.Status = fmt.Sprintf("Request failed, retrying in %s (attempt %d)", msg.Wait.Round(time.Second), msg.Attempt)
		m.UpdateViewport()
		return m, nil

	case ResponseMsg:
		m.Loading = false
		m.Status = ""
		m.InputTokens += msg.Usage.PromptTokens
		m.OutputTokens += msg.Usage.CompletionTokens
		m.ContextTokens = msg.ContextTokens
		m.PeakTokens = msg.PeakTokens
		m.Messages = append(m.Messages, m.formatReply(msg.Content, m.ToolActions))
		m.ToolActions = nil
		m.UpdateViewport()
		return m, nil

	case FatalMsg:
		m.Loading = false
		m.Fatal = msg.Err
		m.Messages = append(m.Messages, styles.ErrorStyle.Render(fmt.Sprintf("Error: %v", msg.Err)))
		m.UpdateViewport()
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		ModalWidth = msg.Width - 10
		if ModalWidth > 60 {
			ModalWidth = 60
		}
		if ModalWidth < 30 {
			ModalWidth = 30
		}
		styles.ContentWidth = ModalWidth - 6

		chatWidth := min(msg.Width-2, MaxChatWidth)
		m.Viewport.Width = chatWidth - 2

		m.updateInputLayout()
		m.Renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath(styles.GlamourStyle()),
			glamour.WithWordWrap(chatWidth-6),
		)
		m.UpdateViewport()
		return m, tea.Batch(tiCmd, vpCmd)
	}

	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()

	// Terminal background queries can leak into the input as text.
	val := m.TextInput.Value()
	if strings.Contains(val, "]11;rgb:") || strings.Contains(val, "1;rgb:") || strings.Contains(val, "[1;1R") {
		m.TextInput.Reset()
	}

	m.Viewport, vpCmd = m.Viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *Model) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+h":
		m.HistoryOpen = false
		m.HistoryErr = nil
	case "up", "k":
		if len(m.HistorySessions) == 0 {
			return m, nil
		}
		m.HistorySelectedIdx--
		if m.HistorySelectedIdx < 0 {
			m.HistorySelectedIdx = len(m.HistorySessions) - 1
		}
	case "down", "j":
		if len(m.HistorySessions) == 0 {
			return m, nil
		}
		m.HistorySelectedIdx++
		if m.HistorySelectedIdx >= len(m.HistorySessions) {
			m.HistorySelectedIdx = 0
		}
	case "enter":
		if len(m.HistorySessions) == 0 {
			return m, nil
		}
		item := m.HistorySessions[m.HistorySelectedIdx]
		if err := m.ResumeSession(item); err != nil {
			m.HistoryErr = err
			return m, nil
		}
		m.HistoryOpen = false
		m.HistoryErr = nil
	case "left", "h":
		if m.HistoryPage > 0 {
			m.HistoryPage--
			m.RefreshHistoryFromDB()
		}
	case "right", "l":
		totalPages := (m.HistoryCount + HistoryPageSize - 1) / HistoryPageSize
		if m.HistoryPage < totalPages-1 {
			m.HistoryPage++
			m.RefreshHistoryFromDB()
		}
	}
	return m, nil
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "ctrl+enter", "alt+enter":
		return true
	default:
		return false
	}
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}

	inputWidth := m.WindowWidth - 6
	if inputWidth < 20 {
		inputWidth = 20
	}
	contentWidth := inputWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	maxInputHeight := 6
	lineCount := WrappedLineCount(m.TextInput.Value(), contentWidth)
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > maxInputHeight {
		lineCount = maxInputHeight
	}

	m.TextInput.MaxHeight = maxInputHeight
	m.TextInput.SetWidth(inputWidth)
	m.TextInput.SetHeight(lineCount)

	inputBoxHeight := m.TextInput.Height() + 2
	reserved := inputBoxHeight + 5
	viewportHeight := m.WindowHeight - reserved
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.Viewport.Height = viewportHeight
}

func (m *Model) RefreshHistoryFromDB() {
	m.HistoryErr = nil
	m.HistorySessions = nil
	m.HistorySelectedIdx = 0

	if m.DB == nil {
		m.HistoryErr = errNoHistory
		return
	}

	offset := m.HistoryPage * HistoryPageSize
	count, sessions, err := db.GetRecentSessions(m.ctx, m.DB, HistoryPageSize, offset)
	if err != nil {
		m.HistoryErr = err
		return
	}
	m.HistoryCount = count
	m.HistorySessions = sessions
}

// ResumeSession continues a stored session. It is only possible before the
// first message of the current one; the stored messages are appended to the
// transcript and written to the current session log.
func (m *Model) ResumeSession(item models.SessionListItem) error {
	if m.DB == nil {
		return errNoHistory
	}
	if m.Loading || m.Transcript.Len() > 1 {
		return errors.New("a session can only be resumed before the first message")
	}

	msgs, err := db.GetSessionMessages(m.ctx, m.DB, item.ID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 || msgs[0].Role != models.RoleSystem {
		return fmt.Errorf("session %s has no stored transcript", item.ID)
	}
	for _, msg := range msgs[1:] {
		// A dangling function result would break the transcript.
		if msg.Role == models.RoleFunction {
			last := m.Transcript.Last()
			if last.ToolCall == nil || last.ToolCall.Name != msg.Name {
				continue
			}
		}
		m.Transcript.Append(msg)
		if m.Log != nil {
			if err := m.Log.Write(m.ctx, msg); err != nil {
				m.Messages = append(m.Messages, styles.ErrorStyle.Render(fmt.Sprintf("History error: %v", err)))
			}
		}
	}

	m.Budget.Seed(item.UsedTokens)
	m.ContextTokens = m.Budget.Usage(m.Transcript)
	m.PeakTokens = m.Budget.Peak()
	m.Messages = append(m.Messages, m.renderHistory(msgs[1:])...)
	m.UpdateViewport()
	return nil
}

// SendMessage runs one Ask in the background. Progress arrives through the
// Observer; the reply or the fatal error ends the command.
func (m *Model) SendMessage(input string) tea.Cmd {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	a, t, b := m.Agent, m.Transcript, m.Budget

	return func() tea.Msg {
		content, err := a.Ask(ctx, t, input)
		if err != nil {
			return FatalMsg{Err: err}
		}
		return ResponseMsg{
			Content:       content,
			Usage:         a.LastUsage(),
			ContextTokens: b.Usage(t),
			PeakTokens:    b.Peak(),
		}
	}
}
