package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"robopilot/internal/db"
	"robopilot/internal/styles"
)

func (m *Model) RenderHistorySelector() string {
	totalPages := (m.HistoryCount + HistoryPageSize - 1) / HistoryPageSize
	if totalPages < 1 {
		totalPages = 1
	}
	title := styles.ModalTitleStyle.Render(fmt.Sprintf("Recent Sessions (%d) - Page %d/%d", m.HistoryCount, m.HistoryPage+1, totalPages))

	var body string
	if m.HistoryErr != nil {
		body = lipgloss.NewStyle().Width(styles.ContentWidth).Render(styles.ErrorStyle.Render(fmt.Sprintf("Error: %v", m.HistoryErr)))
	} else if len(m.HistorySessions) == 0 {
		body = styles.ModalItemStyle.Render(lipgloss.NewStyle().Foreground(styles.HintColor).Render("No sessions yet"))
	} else {
		items := make([]string, 0, len(m.HistorySessions))
		for i, s := range m.HistorySessions {
			isSelected := i == m.HistorySelectedIdx
			cursor := "  "
			if isSelected {
				cursor = "> "
			}
			timeStr := RelativeTime(time.Unix(s.UpdatedAtUnix, 0))
			prompt := db.PromptPreview(s.LastUserPrompt)
			if prompt == "" {
				prompt = "(no prompt)"
			}
			availableWidth := styles.ContentWidth - 2 - len(cursor) - 1 - len(timeStr)
			prompt = TruncateRunes(prompt, availableWidth)

			itemContent := fmt.Sprintf("%s%s %s", cursor, prompt, lipgloss.NewStyle().Foreground(styles.HintColor).Render(timeStr))
			if isSelected {
				items = append(items, styles.ModalSelectedStyle.Render(itemContent))
			} else {
				items = append(items, styles.ModalItemStyle.Render(itemContent))
			}
		}
		body = lipgloss.JoinVertical(lipgloss.Left, items...)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, body)
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • ←/→: page • Enter: resume • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderShortcutsModal() string {
	title := styles.ModalTitleStyle.Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Ctrl+C", "Quit"},
		{"Ctrl+H", "Session history"},
		{"Ctrl+S", "Shortcuts (this menu)"},
		{"Shift+Enter", "New line"},
		{"help", "List what the robot can do"},
		{"exit", "End the session"},
	}

	keyStyle := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.ToolName).
		Bold(true).
		Width(12)
	descStyle := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.Text)

	var items []string
	for _, s := range shortcuts {
		line := fmt.Sprintf("%s %s", keyStyle.Render(s.key), descStyle.Render(s.desc))
		items = append(items, styles.ModalItemStyle.Render(line))
	}

	listContent := lipgloss.JoinVertical(lipgloss.Left, items...)
	content := lipgloss.JoinVertical(lipgloss.Left, title, listContent)

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("Esc/Enter: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

// ContextPercent is the share of the context limit the transcript uses.
func (m *Model) ContextPercent() int {
	limit := m.Budget.Limit()
	if m.ContextTokens <= 0 || limit <= 0 {
		return 0
	}
	return int(float64(m.ContextTokens) / float64(limit) * 100)
}

func (m *Model) RenderBottomBar() string {
	robotBadge := styles.OfflineStyle.Render("● robot offline")
	if m.BackendUp {
		robotBadge = styles.OnlineStyle.Render("● robot online")
	}

	modelName := m.CurrentModel.Name
	if modelName == "" {
		modelName = m.CurrentModel.ID
	}
	model := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.Primary).
		Render(TruncateRunes(modelName, 25))

	contextPct := m.ContextPercent()
	ctxColor := styles.CurrentTheme.Muted
	if contextPct > 80 {
		ctxColor = styles.CurrentTheme.Error
	} else if contextPct > 60 {
		ctxColor = styles.CurrentTheme.Warning
	}
	ctx := lipgloss.NewStyle().
		Foreground(ctxColor).
		Render(fmt.Sprintf("%d%% (%dk/%dk)", contextPct, m.ContextTokens/1000, m.Budget.Limit()/1000))

	tokens := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.Muted).
		Render(fmt.Sprintf("In:%d Out:%d Peak:%d", m.InputTokens, m.OutputTokens, m.PeakTokens))

	help := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Render("Help: ^S")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, robotBadge, "  ", model)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Center, ctx, "  ", tokens, "  ", help)

	availableWidth := m.WindowWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if availableWidth < 0 {
		availableWidth = 0
	}
	spacer := strings.Repeat(" ", availableWidth)

	bar := lipgloss.JoinHorizontal(lipgloss.Center, leftSide, spacer, rightSide)

	return lipgloss.NewStyle().
		Width(m.WindowWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.CurrentTheme.Border).
		Padding(0, 1).
		Render(bar)
}

func GetWelcomeScreen(width, height int, welcome string) string {
	art := `
 ╭───────────────────────────────────────────────────╮
 │                                                   │
 │    █▀█ █▀█ █▄▄ █▀█ █▀█ █ █   █▀█ ▀█▀               │
 │   █▀▄ █▄█ █▄█ █▄█ █▀▀ █ █▄▄ █▄█  █                │
 │                                                   │
 ╰───────────────────────────────────────────────────╯
`
	styledArt := styles.WelcomeArtStyle.Render(art)
	styledWelcome := styles.WelcomeSubtitleStyle.Render(welcome)

	content := lipgloss.JoinVertical(lipgloss.Center, styledArt, "", styledWelcome)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) UpdateViewport() {
	if len(m.Messages) == 0 && !m.Loading {
		m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height, m.Welcome))
		return
	}

	content := strings.Join(m.Messages, "\n\n")
	if m.Loading {
		statusText := " Thinking..."
		switch {
		case m.Status != "":
			statusText = " " + m.Status
		case m.ExecutingTool != "":
			statusText = fmt.Sprintf(" %s...", m.ExecutingTool)
		}

		var loadingParts []string
		loadingParts = append(loadingParts, styles.AiLabelStyle.Render("ROBOPILOT"))
		if len(m.ToolActions) > 0 {
			loadingParts = append(loadingParts, FormatToolActions(m.ToolActions))
		}
		loadingParts = append(loadingParts, fmt.Sprintf("%s%s", m.Spinner.View(), statusText))

		loadingMsg := strings.Join(loadingParts, "\n")
		if len(m.Messages) > 0 {
			content = content + "\n\n" + loadingMsg
		} else {
			content = loadingMsg
		}
	}
	m.Viewport.SetContent(content)
	m.Viewport.GotoBottom()
}

func (m *Model) View() string {
	inputWidth := m.WindowWidth - 4
	inputBox := styles.InputBoxStyle.Width(inputWidth).Render(m.TextInput.View())

	chatContent := lipgloss.JoinVertical(lipgloss.Center,
		styles.TitleStyle.Render("ROBOPILOT"),
		"",
		m.Viewport.View(),
		"",
		inputBox,
	)
	chatArea := lipgloss.PlaceHorizontal(m.WindowWidth, lipgloss.Center, chatContent)
	bottomBar := m.RenderBottomBar()

	content := lipgloss.JoinVertical(lipgloss.Left, chatArea, bottomBar)

	var modal string
	switch {
	case m.HistoryOpen:
		modal = m.RenderHistorySelector()
	case m.ShortcutsOpen:
		modal = m.RenderShortcutsModal()
	default:
		return content
	}

	return lipgloss.Place(
		m.WindowWidth,
		m.WindowHeight,
		lipgloss.Center,
		lipgloss.Center,
		styles.ModalStyle.Width(ModalWidth).Render(modal),
	)
}
