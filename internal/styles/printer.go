package styles

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Printer writes the line-mode chat. With color off every line is plain
// text so output can be piped or captured.
type Printer struct {
	out      io.Writer
	color    bool
	renderer *glamour.TermRenderer
}

// NewPrinter creates a printer for out. width is the wrap width for
// rendered replies; zero disables markdown rendering.
func NewPrinter(out io.Writer, color bool, width int) *Printer {
	p := &Printer{out: out, color: color}
	if color && width > 0 {
		p.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath(GlamourStyle()),
			glamour.WithWordWrap(width),
		)
	}
	return p
}

func (p *Printer) style(st lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return st.Render(text)
}

// Prompt is the label printed before the user types.
func (p *Printer) Prompt() {
	fmt.Fprint(p.out, p.style(UserLabelStyle, "YOU")+" ")
}

func (p *Printer) Reply(text string) {
	label := p.style(AiLabelStyle, "ROBOPILOT")
	body := text
	if p.renderer != nil {
		if rendered, err := p.renderer.Render(text); err == nil {
			body = strings.Trim(rendered, "\n")
		}
	}
	fmt.Fprintf(p.out, "%s\n%s\n\n", label, body)
}

// ToolAction prints the one-line summary of a finished tool call.
func (p *Printer) ToolAction(summary string) {
	icon := p.style(ToolIconStyle, "→")
	name := p.style(ToolNameStyle, summary)
	fmt.Fprintf(p.out, "  %s %s\n", icon, name)
}

func (p *Printer) Notice(text string) {
	fmt.Fprintln(p.out, p.style(WarningStyle, "! "+text))
}

func (p *Printer) Error(err error) {
	fmt.Fprintln(p.out, p.style(ErrorStyle, "Error: "+err.Error()))
}

func (p *Printer) Info(text string) {
	fmt.Fprintln(p.out, p.style(InfoStyle, text))
}

// Welcome prints the title and the welcome text.
func (p *Printer) Welcome(text string) {
	fmt.Fprintln(p.out, p.style(TitleStyle, "ROBOPILOT"))
	fmt.Fprintf(p.out, "%s\n\n", p.style(WelcomeSubtitleStyle, text))
}
