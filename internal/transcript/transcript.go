// Package transcript holds the ordered message history of one conversation.
package transcript

import (
	"fmt"

	"robopilot/internal/models"
)

// Transcript is an append-only message list whose first element is the
// system message. Only bounded prefix deletions after index 0 are allowed.
// It is not safe for concurrent use.
type Transcript struct {
	msgs []models.Message
}

func New(system string) *Transcript {
	return &Transcript{msgs: []models.Message{models.System(system)}}
}

// FromMessages rebuilds a transcript from stored messages, checking the
// same invariants Append enforces.
func FromMessages(msgs []models.Message) (*Transcript, error) {
	if len(msgs) == 0 || msgs[0].Role != models.RoleSystem {
		return nil, fmt.Errorf("transcript must start with a system message")
	}
	t := &Transcript{msgs: []models.Message{msgs[0]}}
	for i, m := range msgs[1:] {
		if err := t.check(m); err != nil {
			return nil, fmt.Errorf("message %d: %w", i+1, err)
		}
		t.msgs = append(t.msgs, m)
	}
	return t, nil
}

func (t *Transcript) check(m models.Message) error {
	switch m.Role {
	case models.RoleSystem:
		return fmt.Errorf("a transcript holds exactly one system message")
	case models.RoleFunction:
		prev := t.msgs[len(t.msgs)-1]
		if prev.Role != models.RoleAssistant || prev.ToolCall == nil {
			return fmt.Errorf("function message %q does not follow a tool call", m.Name)
		}
		if prev.ToolCall.Name != m.Name {
			return fmt.Errorf("function message %q answers tool call %q", m.Name, prev.ToolCall.Name)
		}
	case models.RoleUser, models.RoleAssistant:
	default:
		return fmt.Errorf("unknown role %q", m.Role)
	}
	return nil
}

// Append adds m at the end. Violating the transcript invariants is a
// programming error and panics.
func (t *Transcript) Append(m models.Message) {
	if err := t.check(m); err != nil {
		panic("transcript: " + err.Error())
	}
	t.msgs = append(t.msgs, m)
}

// Trim removes messages [from, to). The system message can never be removed.
func (t *Transcript) Trim(from, to int) {
	if from < 1 || to < from || to > len(t.msgs) {
		panic(fmt.Sprintf("transcript: invalid trim [%d, %d) of %d messages", from, to, len(t.msgs)))
	}
	t.msgs = append(t.msgs[:from], t.msgs[to:]...)
}

// DropOldest removes the n oldest non-system messages, extending the cut
// past function results that would otherwise lose their tool call. It
// returns how many messages were removed.
func (t *Transcript) DropOldest(n int) int {
	if n <= 0 || len(t.msgs) <= 1 {
		return 0
	}
	end := 1 + n
	if end > len(t.msgs) {
		end = len(t.msgs)
	}
	for end < len(t.msgs) && t.msgs[end].Role == models.RoleFunction {
		end++
	}
	t.Trim(1, end)
	return end - 1
}

func (t *Transcript) Len() int {
	return len(t.msgs)
}

func (t *Transcript) At(i int) models.Message {
	return t.msgs[i]
}

func (t *Transcript) Last() models.Message {
	return t.msgs[len(t.msgs)-1]
}

// Messages returns a copy of the message list.
func (t *Transcript) Messages() []models.Message {
	out := make([]models.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}
