// Package agent runs the request loop between the transcript, the LLM and
// the tool dispatcher.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"robopilot/internal/budget"
	"robopilot/internal/llm"
	"robopilot/internal/metrics"
	"robopilot/internal/models"
	"robopilot/internal/sessionlog"
	"robopilot/internal/tools"
	"robopilot/internal/transcript"
)

const (
	DefaultMaxOutputTokens   = 800
	DefaultMaxAttempts       = 3
	DefaultBackoffUnit       = 5 * time.Second
	DefaultOverflowTrimBlock = 4
	DefaultMaxMalformedCalls = 3
)

type Config struct {
	Model             string
	MaxOutputTokens   int
	MaxAttempts       int
	BackoffUnit       time.Duration
	OverflowTrimBlock int
	MaxToolRounds     int // 0 = unlimited
	MaxMalformedCalls int // consecutive tool calls with unparsable arguments
}

func DefaultConfig(model string) Config {
	return Config{
		Model:             model,
		MaxOutputTokens:   DefaultMaxOutputTokens,
		MaxAttempts:       DefaultMaxAttempts,
		BackoffUnit:       DefaultBackoffUnit,
		OverflowTrimBlock: DefaultOverflowTrimBlock,
		MaxMalformedCalls: DefaultMaxMalformedCalls,
	}
}

// Backoff is the wait before retry n (1-based).
func Backoff(n int, unit time.Duration) time.Duration {
	return time.Duration(n) * unit
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Observer is told about progress inside Send. Calls happen on the
// goroutine running Send.
type Observer interface {
	OnToolCall(call models.ToolCall)
	OnToolResult(call models.ToolCall, result string)
	OnDiagnostic(text string)
	OnRetry(attempt int, wait time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) OnToolCall(models.ToolCall)           {}
func (nopObserver) OnToolResult(models.ToolCall, string) {}
func (nopObserver) OnDiagnostic(string)                  {}
func (nopObserver) OnRetry(int, time.Duration, error)    {}

type Option func(*Agent)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

func WithSleeper(s Sleeper) Option {
	return func(a *Agent) {
		a.sleep = s
	}
}

func WithObserver(o Observer) Option {
	return func(a *Agent) {
		a.observer = o
	}
}

// Agent drives one conversation. It is not safe for concurrent use; the
// caller owns the transcript and issues one Send at a time.
type Agent struct {
	client     llm.Completer
	dispatcher *tools.Dispatcher
	specs      []models.ToolSpec
	budget     *budget.Controller
	log        sessionlog.Sink
	cfg        Config

	logger   *zap.Logger
	metrics  *metrics.Metrics
	sleep    Sleeper
	observer Observer

	usage models.Usage
}

func New(client llm.Completer, d *tools.Dispatcher, specs []models.ToolSpec, b *budget.Controller, log sessionlog.Sink, cfg Config, opts ...Option) *Agent {
	if log == nil {
		log = sessionlog.Nop{}
	}
	if b == nil {
		b = budget.New(budget.LimitForModel(cfg.Model), nil, nil)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.OverflowTrimBlock <= 0 {
		cfg.OverflowTrimBlock = DefaultOverflowTrimBlock
	}
	if cfg.MaxMalformedCalls <= 0 {
		cfg.MaxMalformedCalls = DefaultMaxMalformedCalls
	}
	a := &Agent{
		client:     client,
		dispatcher: d,
		specs:      specs,
		budget:     b,
		log:        log,
		cfg:        cfg,
		logger:     zap.NewNop(),
		sleep:      sleep,
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Config() Config {
	return a.cfg
}

// LastUsage is the usage reported for the most recent successful request.
func (a *Agent) LastUsage() models.Usage {
	return a.usage
}

// Summary is what the session log records on close.
func (a *Agent) Summary() models.Summary {
	return models.Summary{UsedTokens: a.budget.Peak(), Model: a.cfg.Model}
}

// Ask appends the user's text to t, logs it and runs Send.
func (a *Agent) Ask(ctx context.Context, t *transcript.Transcript, text string) (string, error) {
	msg := models.User(text)
	t.Append(msg)
	a.write(ctx, msg)
	return a.Send(ctx, t)
}

// Send requests completions until the model answers with plain content,
// running every tool call it makes on the way. Failures that end the
// session are returned as *FatalError. The retry budget covers the whole
// call, tool rounds included.
func (a *Agent) Send(ctx context.Context, t *transcript.Transcript) (string, error) {
	attempts := 0
	rounds := 0
	malformed := 0

	for {
		if err := ctx.Err(); err != nil {
			return "", fatal(ReasonAborted, err)
		}

		if removed := a.budget.Enforce(t); removed > 0 {
			a.metrics.ObserveTrim(removed)
		}

		start := time.Now()
		resp, err := a.client.Complete(ctx, llm.Request{
			Model:           a.cfg.Model,
			Messages:        t.Messages(),
			Tools:           a.specs,
			MaxOutputTokens: a.cfg.MaxOutputTokens,
		})
		elapsed := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				a.metrics.ObserveRequest(metrics.OutcomeFatal, elapsed)
				return "", fatal(ReasonAborted, ctx.Err())
			}

			switch llm.Classify(err) {
			case llm.ClassContextOverflow:
				a.metrics.ObserveRequest(metrics.OutcomeOverflow, elapsed)
				removed := t.DropOldest(a.cfg.OverflowTrimBlock)
				if removed == 0 {
					return "", fatal(ReasonContextOverflow, err)
				}
				a.budget.Reset()
				a.metrics.ObserveTrim(removed)
				a.logger.Warn("context overflow, trimmed transcript",
					zap.Int("removed", removed),
					zap.Int("remaining", t.Len()),
					zap.Error(err),
				)
				continue

			case llm.ClassRetryable:
				attempts++
				if attempts >= a.cfg.MaxAttempts {
					a.metrics.ObserveRequest(metrics.OutcomeFatal, elapsed)
					return "", fatal(ReasonRetriesExhausted, err)
				}
				a.metrics.ObserveRequest(metrics.OutcomeRetry, elapsed)
				wait := Backoff(attempts, a.cfg.BackoffUnit)
				a.logger.Warn("request failed, retrying",
					zap.Int("attempt", attempts),
					zap.Duration("wait", wait),
					zap.Error(err),
				)
				a.observer.OnRetry(attempts, wait, err)
				if err := a.sleep(ctx, wait); err != nil {
					return "", fatal(ReasonAborted, err)
				}
				continue

			default:
				a.metrics.ObserveRequest(metrics.OutcomeFatal, elapsed)
				if llm.IsAuthenticationError(err) {
					return "", fatal(ReasonAuthentication, err)
				}
				return "", fatal(ReasonInvalidRequest, err)
			}
		}

		a.metrics.ObserveRequest(metrics.OutcomeSuccess, elapsed)

		msg := resp.Message
		msg.Role = models.RoleAssistant
		t.Append(msg)
		a.usage = resp.Usage
		if resp.Usage.TotalTokens > 0 {
			a.budget.Observe(resp.Usage.TotalTokens, t.Len())
			a.metrics.SetTokens(resp.Usage.TotalTokens)
		}
		if a.cfg.MaxOutputTokens > 0 && resp.Usage.CompletionTokens >= a.cfg.MaxOutputTokens {
			a.logger.Warn("reply reached the output token cap",
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
				zap.Int("cap", a.cfg.MaxOutputTokens),
			)
		}
		a.write(ctx, msg)

		if msg.ToolCall == nil {
			return msg.Text(), nil
		}

		rounds++
		if a.cfg.MaxToolRounds > 0 && rounds > a.cfg.MaxToolRounds {
			return "", fatal(ReasonToolRounds, fmt.Errorf("more than %d tool calls in one reply", a.cfg.MaxToolRounds))
		}

		call := *msg.ToolCall
		a.observer.OnToolCall(call)
		result, err := a.dispatcher.Dispatch(ctx, t, call)
		if err != nil {
			var badArgs *tools.MalformedArgumentsError
			if errors.As(err, &badArgs) {
				malformed++
				if malformed >= a.cfg.MaxMalformedCalls {
					return "", fatal(ReasonMalformedCalls, err)
				}
				diag := fmt.Sprintf("Could not parse the arguments of %s: %v", call.Name, badArgs.Err)
				a.logger.Warn("malformed tool arguments",
					zap.String("tool", call.Name),
					zap.String("arguments", call.Arguments),
					zap.Int("in_a_row", malformed),
					zap.Error(badArgs.Err),
				)
				a.observer.OnDiagnostic(diag)
				continue
			}
			return "", fatal(ReasonUnknownTool, err)
		}
		malformed = 0
		a.observer.OnToolResult(call, result)
	}
}

func (a *Agent) write(ctx context.Context, m models.Message) {
	if err := a.log.Write(ctx, m); err != nil {
		a.logger.Warn("session log write failed", zap.Error(err))
	}
}
