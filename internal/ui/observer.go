package ui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"robopilot/internal/models"
	"robopilot/internal/tools"
)

// Observer forwards agent progress to a running program. Events before
// Attach are dropped.
type Observer struct {
	mu sync.Mutex
	p  *tea.Program
}

func NewObserver() *Observer {
	return &Observer{}
}

func (o *Observer) Attach(p *tea.Program) {
	o.mu.Lock()
	o.p = p
	o.mu.Unlock()
}

func (o *Observer) send(msg tea.Msg) {
	o.mu.Lock()
	p := o.p
	o.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (o *Observer) OnToolCall(call models.ToolCall) {
	o.send(ToolCallMsg{Name: call.Name, Arguments: call.Arguments})
}

func (o *Observer) OnToolResult(call models.ToolCall, result string) {
	o.send(ToolResultMsg{
		Name:    call.Name,
		Result:  result,
		Summary: tools.Summarize(call.Name, call.Arguments, result),
	})
}

func (o *Observer) OnDiagnostic(text string) {
	o.send(DiagnosticMsg{Text: text})
}

func (o *Observer) OnRetry(attempt int, wait time.Duration, err error) {
	o.send(RetryMsg{Attempt: attempt, Wait: wait, Err: err})
}
