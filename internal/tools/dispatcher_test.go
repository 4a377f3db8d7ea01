package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robopilot/internal/models"
	"robopilot/internal/transcript"
)

type recordingSink struct {
	msgs []models.Message
}

func (r *recordingSink) Write(_ context.Context, m models.Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recordingSink) Close(context.Context, models.Summary) error { return nil }

func echoRegistry(t *testing.T, calls *int) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(models.ToolSpec{
		Name:       "echo",
		Parameters: map[string]any{"text": str("text to echo")},
		Required:   []string{"text"},
	}, func(ctx context.Context, args Args) string {
		*calls++
		s, _ := args["text"].(string)
		return s
	}))
	return r
}

func withCall(call models.ToolCall) *transcript.Transcript {
	tr := transcript.New("sys")
	tr.Append(models.User("say hi"))
	tr.Append(models.AssistantToolCall("", call))
	return tr
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, Args) string { return "" }

	assert.Error(t, r.Register(models.ToolSpec{}, noop))
	assert.Error(t, r.Register(models.ToolSpec{Name: "x"}, nil))
	require.NoError(t, r.Register(models.ToolSpec{Name: "x"}, noop))
	assert.Error(t, r.Register(models.ToolSpec{Name: "x"}, noop))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryPublishDropsBackendTools(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, Args) string { return "" }
	require.NoError(t, r.Register(models.ToolSpec{Name: "suck", RequiresBackend: true}, noop))
	require.NoError(t, r.Register(models.ToolSpec{Name: "getDefValues"}, noop))

	names := func(specs []models.ToolSpec) []string {
		var out []string
		for _, s := range specs {
			out = append(out, s.Name)
		}
		return out
	}
	assert.Equal(t, []string{"suck", "getDefValues"}, names(r.Specs()))
	assert.Equal(t, []string{"suck", "getDefValues"}, names(r.Publish(true)))
	assert.Equal(t, []string{"getDefValues"}, names(r.Publish(false)))
}

func TestDispatchEchoRoundTrip(t *testing.T) {
	calls := 0
	sink := &recordingSink{}
	d := NewDispatcher(echoRegistry(t, &calls), sink, nil, nil)
	tr := withCall(models.ToolCall{Name: "echo", Arguments: `{"text":"hi"}`})

	result, err := d.Dispatch(context.Background(), tr, models.ToolCall{Name: "echo", Arguments: `{"text":"hi"}`})

	require.NoError(t, err)
	assert.Equal(t, "hi", result)
	assert.Equal(t, 1, calls)
	require.Equal(t, 4, tr.Len())
	last := tr.Last()
	assert.Equal(t, models.RoleFunction, last.Role)
	assert.Equal(t, "echo", last.Name)
	assert.Equal(t, "hi", last.Text())
	require.Len(t, sink.msgs, 1)
	assert.Equal(t, last, sink.msgs[0])
}

func TestDispatchUnknownTool(t *testing.T) {
	calls := 0
	sink := &recordingSink{}
	d := NewDispatcher(echoRegistry(t, &calls), sink, nil, nil)
	tr := withCall(models.ToolCall{Name: "nope", Arguments: "{}"})

	_, err := d.Dispatch(context.Background(), tr, models.ToolCall{Name: "nope", Arguments: "{}"})

	var unknown *UnknownToolError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "nope", unknown.Name)
	assert.Equal(t, 3, tr.Len())
	assert.Empty(t, sink.msgs)
	assert.Zero(t, calls)
}

func TestDispatchMalformedArguments(t *testing.T) {
	for _, raw := range []string{"{bad json", "[1,2]", `"text"`} {
		t.Run(raw, func(t *testing.T) {
			calls := 0
			d := NewDispatcher(echoRegistry(t, &calls), nil, nil, nil)
			tr := withCall(models.ToolCall{Name: "echo", Arguments: raw})

			_, err := d.Dispatch(context.Background(), tr, models.ToolCall{Name: "echo", Arguments: raw})

			var malformed *MalformedArgumentsError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, raw, malformed.Arguments)
			assert.Equal(t, 3, tr.Len())
			assert.Zero(t, calls)
		})
	}
}

func TestDispatchEmptyArgumentsMeansNone(t *testing.T) {
	calls := 0
	d := NewDispatcher(echoRegistry(t, &calls), nil, nil, nil)
	tr := withCall(models.ToolCall{Name: "echo"})

	result, err := d.Dispatch(context.Background(), tr, models.ToolCall{Name: "echo", Arguments: "  "})

	require.NoError(t, err)
	assert.Equal(t, "", result)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 4, tr.Len())
}

func TestDecodeIsLenient(t *testing.T) {
	var in beltArgs
	require.NoError(t, Decode(Args{"direction": "forward", "velocity": "20", "distance": 0.5}, &in))
	assert.Equal(t, beltArgs{Direction: "forward", Velocity: 20, Distance: 0.5}, in)
}
