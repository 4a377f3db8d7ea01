package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"robopilot/internal/metrics"
	"robopilot/internal/models"
	"robopilot/internal/sessionlog"
	"robopilot/internal/transcript"
)

// UnknownToolError means the model asked for a tool that is not registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// MalformedArgumentsError means the call arguments are not a JSON object.
type MalformedArgumentsError struct {
	Name      string
	Arguments string
	Err       error
}

func (e *MalformedArgumentsError) Error() string {
	return fmt.Sprintf("malformed arguments for %s: %v", e.Name, e.Err)
}

func (e *MalformedArgumentsError) Unwrap() error {
	return e.Err
}

// ParseArguments decodes the raw argument text. Empty text means no
// arguments.
func ParseArguments(raw string) (Args, error) {
	if strings.TrimSpace(raw) == "" {
		return Args{}, nil
	}
	var args Args
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

// Decode copies args into the struct pointed to by out, converting loosely
// typed values ("12" to 12.0 and so on).
func Decode(args Args, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(args))
}

// Dispatcher executes tool calls against a Registry and records the
// results in the transcript and the session log.
type Dispatcher struct {
	registry *Registry
	log      sessionlog.Sink
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(r *Registry, log sessionlog.Sink, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = sessionlog.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: r, log: log, logger: logger, metrics: m}
}

// Dispatch runs the handler for call exactly once and appends its result
// as a function message. Unknown tools and malformed arguments return an
// error and append nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, t *transcript.Transcript, call models.ToolCall) (string, error) {
	tool, ok := d.registry.Lookup(call.Name)
	if !ok {
		d.metrics.ObserveTool(call.Name, metrics.ToolUnknown, 0)
		return "", &UnknownToolError{Name: call.Name}
	}

	args, err := ParseArguments(call.Arguments)
	if err != nil {
		d.metrics.ObserveTool(call.Name, metrics.ToolMalformed, 0)
		return "", &MalformedArgumentsError{Name: call.Name, Arguments: call.Arguments, Err: err}
	}

	d.logger.Debug("invoking tool", zap.String("tool", call.Name), zap.String("arguments", call.Arguments))
	start := time.Now()
	result := tool.Handler(ctx, args)
	elapsed := time.Since(start)
	d.metrics.ObserveTool(call.Name, metrics.ToolOK, elapsed)

	msg := models.FunctionResult(call.Name, result)
	t.Append(msg)
	if err := d.log.Write(ctx, msg); err != nil {
		d.logger.Warn("session log write failed", zap.Error(err))
	}
	d.logger.Info("tool result",
		zap.String("tool", call.Name),
		zap.Duration("elapsed", elapsed),
		zap.String("result", result),
	)
	return result, nil
}
