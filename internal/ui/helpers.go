package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"robopilot/internal/models"
	"robopilot/internal/styles"
	"robopilot/internal/tools"
)

func WrappedLineCount(value string, width int) int {
	if width <= 0 {
		return 1
	}
	lines := strings.Split(value, "\n")
	if len(lines) == 0 {
		return 1
	}
	count := 0
	for _, line := range lines {
		w := runewidth.StringWidth(line)
		if w == 0 {
			count++
			continue
		}
		count += (w-1)/width + 1
	}
	return count
}

// TruncateRunes cuts s to at most max display cells, ending in "…".
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "…")
}

func RelativeTime(t time.Time) string {
	return relativeTimeFrom(time.Now(), t)
}

func relativeTimeFrom(now, t time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = -d
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "min")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hr")
	}
	days := int(d.Hours() / 24)
	if days < 14 {
		return plural(days, "day")
	}
	return t.Format("Jan 2, 2006")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

func FormatUserMessage(content string, width int, isFirst bool) string {
	label := styles.UserLabelStyle.Render("YOU")
	msg := styles.UserMsgStyle.Width(max(width-4, 10)).Render(content)
	if isFirst {
		return fmt.Sprintf("\n%s\n%s", label, msg)
	}
	return fmt.Sprintf("%s\n%s", label, msg)
}

func FormatAIMessage(content string) string {
	label := styles.AiLabelStyle.Render("ROBOPILOT")
	msg := styles.AiMsgStyle.Render(content)
	return fmt.Sprintf("%s\n%s", label, msg)
}

func FormatToolActions(actions []models.ToolAction) string {
	var lines []string
	for _, action := range actions {
		icon := styles.ToolIconStyle.Render("→")
		name := styles.ToolNameStyle.Render(action.Summary)
		lines = append(lines, styles.ToolActionStyle.Render(fmt.Sprintf("%s %s", icon, name)))
	}
	return strings.Join(lines, "\n")
}

func FormatAIMessageWithTools(toolDisplay, content string) string {
	label := styles.AiLabelStyle.Render("ROBOPILOT")
	msg := styles.AiMsgStyle.Render(content)
	return fmt.Sprintf("%s\n%s\n%s", label, toolDisplay, msg)
}

func FormatNotice(text string) string {
	return styles.ToolActionStyle.Render(styles.WarningStyle.Render("! " + text))
}

// renderHistory turns stored messages into display blocks. Tool calls are
// folded into the next assistant reply the way they appear live.
func (m *Model) renderHistory(msgs []models.Message) []string {
	var out []string
	var actions []models.ToolAction
	var pending *models.ToolCall
	for _, msg := range msgs {
		switch msg.Role {
		case models.RoleUser:
			out = append(out, FormatUserMessage(msg.Text(), m.Viewport.Width, len(out) == 0))
		case models.RoleAssistant:
			if msg.ToolCall != nil {
				pending = msg.ToolCall
				continue
			}
			out = append(out, m.formatReply(msg.Text(), actions))
			actions = nil
		case models.RoleFunction:
			args := ""
			if pending != nil {
				args = pending.Arguments
			}
			actions = append(actions, models.ToolAction{
				Name:    msg.Name,
				Summary: tools.Summarize(msg.Name, args, msg.Text()),
			})
			pending = nil
		}
	}
	if len(actions) > 0 {
		out = append(out, FormatAIMessage(FormatToolActions(actions)))
	}
	return out
}

func (m *Model) formatReply(content string, actions []models.ToolAction) string {
	display := content
	if m.Renderer != nil {
		rendered, _ := m.Renderer.Render(content)
		display = strings.TrimSpace(rendered)
	}
	if len(actions) > 0 {
		return FormatAIMessageWithTools(FormatToolActions(actions), display)
	}
	return FormatAIMessage(display)
}
