// Package budget keeps a transcript inside the model's context window.
package budget

import (
	"strings"

	"go.uber.org/zap"

	"robopilot/internal/models"
	"robopilot/internal/transcript"
)

const (
	LargeContextLimit = 127000
	SmallContextLimit = 15000

	messageFraming = 3
	namedField     = 1
	replyPriming   = 3
)

// LimitForModel picks the context limit for a model id. Catalog entries
// carry their own length; otherwise ids containing "gpt-4" get the large
// tier and everything else the small one.
func LimitForModel(model string) int {
	if m, ok := models.FindModel(model); ok && m.ContextLength > 0 {
		return m.ContextLength
	}
	if strings.Contains(model, "gpt-4") {
		return LargeContextLimit
	}
	return SmallContextLimit
}

// Controller tracks token usage for one session and trims the oldest
// messages when the transcript outgrows the limit.
type Controller struct {
	limit     int
	tokenizer Tokenizer
	logger    *zap.Logger

	reported   int
	reportedAt int // transcript length the reported total covers; 0 = none
	peak       int
}

func New(limit int, tokenizer Tokenizer, logger *zap.Logger) *Controller {
	if tokenizer == nil {
		tokenizer = CharEstimator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{limit: limit, tokenizer: tokenizer, logger: logger}
}

func (c *Controller) Limit() int {
	return c.limit
}

// Observe records the total the LLM reported for a transcript of the given
// length.
func (c *Controller) Observe(total, length int) {
	c.reported = total
	c.reportedAt = length
	if total > c.peak {
		c.peak = total
	}
}

// Seed records usage carried over from a loaded session.
func (c *Controller) Seed(used int) {
	if used > c.peak {
		c.peak = used
	}
}

// Reset forgets the reported total. Called whenever the transcript prefix
// changes.
func (c *Controller) Reset() {
	c.reported = 0
	c.reportedAt = 0
}

// Peak is the highest total the LLM reported in this session.
func (c *Controller) Peak() int {
	return c.peak
}

// MessageCost estimates the tokens one message costs.
func (c *Controller) MessageCost(m models.Message) int {
	cost := messageFraming + c.tokenizer.Count(string(m.Role)) + c.tokenizer.Count(m.Text())
	if m.Name != "" {
		cost += namedField + c.tokenizer.Count(m.Name)
	}
	if m.ToolCall != nil {
		cost += c.tokenizer.Count(m.ToolCall.Name) + c.tokenizer.Count(m.ToolCall.Arguments)
	}
	return cost
}

// Estimate is the local estimate of a request carrying msgs.
func (c *Controller) Estimate(msgs []models.Message) int {
	total := replyPriming
	for _, m := range msgs {
		total += c.MessageCost(m)
	}
	return total
}

// Usage is the best known token usage of t.
func (c *Controller) Usage(t *transcript.Transcript) int {
	if c.reportedAt > 0 && c.reportedAt <= t.Len() {
		usage := c.reported
		for i := c.reportedAt; i < t.Len(); i++ {
			usage += c.MessageCost(t.At(i))
		}
		return usage
	}
	return c.Estimate(t.Messages())
}

// Enforce trims the smallest prefix of non-system messages whose estimated
// cost covers the excess over the limit. It returns the number of messages
// removed; a transcript under the limit is left untouched.
func (c *Controller) Enforce(t *transcript.Transcript) int {
	usage := c.Usage(t)
	if usage < c.limit {
		return 0
	}
	// Trim until strictly under the limit so a second pass is a no-op.
	excess := usage - c.limit + 1

	k, freed := 0, 0
	for k < t.Len()-1 {
		k++
		freed += c.MessageCost(t.At(k))
		if freed >= excess {
			break
		}
	}

	removed := t.DropOldest(k)
	if removed > 0 {
		c.Reset()
		c.logger.Info("trimmed transcript to fit context",
			zap.Int("usage", usage),
			zap.Int("limit", c.limit),
			zap.Int("removed", removed),
			zap.Int("remaining", t.Len()),
		)
	}
	return removed
}
