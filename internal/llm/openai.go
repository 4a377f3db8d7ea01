package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"robopilot/internal/models"
)

// Compile-time interface guard.
var _ Completer = (*OpenAI)(nil)

// OpenAI implements Completer on the Chat Completions API.
type OpenAI struct {
	client openai.Client
	logger *zap.Logger
}

// NewOpenAI creates the adapter. An empty baseURL keeps the SDK default.
// SDK-level retries are disabled; the agent owns the retry policy.
func NewOpenAI(apiKey, baseURL string, logger *zap.Logger, opts ...option.RequestOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAI{client: openai.NewClient(reqOpts...), logger: logger}, nil
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: toParams(req.Messages),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
		params.ParallelToolCalls = openai.Bool(false)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewProviderError(ErrCodeServerError, "empty response from model", nil)
	}

	choice := resp.Choices[0]
	var msg models.Message
	if len(choice.Message.ToolCalls) > 0 {
		if len(choice.Message.ToolCalls) > 1 {
			o.logger.Warn("model returned several tool calls, keeping the first",
				zap.Int("count", len(choice.Message.ToolCalls)))
		}
		tc := choice.Message.ToolCalls[0]
		msg = models.AssistantToolCall(choice.Message.Content, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	} else {
		msg = models.Assistant(choice.Message.Content)
	}

	return &Response{
		Message: msg,
		Usage: models.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		FinishReason: string(choice.FinishReason),
	}, nil
}

func toTools(specs []models.ToolSpec) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(specs))
	for _, s := range specs {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        s.Name,
			Description: openai.String(s.Description),
			Parameters:  openai.FunctionParameters(s.Schema()),
		}))
	}
	return out
}

// toParams maps the transcript onto the wire. Function results become tool
// messages bound to the preceding call; a tool call that never got a result
// (its arguments were unusable) is sent as plain assistant text.
func toParams(msgs []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	callID := ""
	for i, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text()))
		case models.RoleUser:
			out = append(out, openai.UserMessage(m.Text()))
		case models.RoleAssistant:
			if m.ToolCall == nil {
				out = append(out, openai.AssistantMessage(m.Text()))
				continue
			}
			answered := i+1 < len(msgs) && msgs[i+1].Role == models.RoleFunction
			if !answered {
				text := m.Text()
				if text == "" {
					text = fmt.Sprintf("(called %s with arguments %s)", m.ToolCall.Name, m.ToolCall.Arguments)
				}
				out = append(out, openai.AssistantMessage(text))
				continue
			}
			callID = m.ToolCall.ID
			if callID == "" {
				callID = fmt.Sprintf("call_%d", i)
			}
			args := m.ToolCall.Arguments
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			asst := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: []openai.ChatCompletionMessageToolCallUnionParam{{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: callID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      m.ToolCall.Name,
							Arguments: args,
						},
					},
				}},
			}
			if text := m.Text(); text != "" {
				asst.Content.OfString = openai.String(text)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case models.RoleFunction:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					ToolCallID: callID,
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(m.Text()),
					},
				},
			})
		}
	}
	return out
}

// mapError translates SDK and network errors into *ProviderError values.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(ErrCodeTimeout, "request timed out", err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		lower := strings.ToLower(msg)
		code := ""
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			code = ErrCodeAuthentication
		case apiErr.StatusCode == http.StatusRequestEntityTooLarge ||
			apiErr.Code == "context_length_exceeded" ||
			(apiErr.StatusCode == http.StatusBadRequest &&
				(strings.Contains(lower, "context length") || strings.Contains(lower, "maximum context") ||
					strings.Contains(lower, "max length") || strings.Contains(lower, "too many tokens"))):
			code = ErrCodeContextLength
		case apiErr.StatusCode == http.StatusTooManyRequests:
			code = ErrCodeRateLimit
		case apiErr.StatusCode == http.StatusNotFound && strings.Contains(lower, "model"):
			code = ErrCodeModelNotFound
		case apiErr.StatusCode == http.StatusRequestTimeout:
			code = ErrCodeTimeout
		case apiErr.StatusCode >= 500:
			code = ErrCodeServerError
		case apiErr.StatusCode >= 400:
			code = ErrCodeInvalidRequest
		}
		if code != "" {
			pe := NewProviderError(code, msg, err)
			pe.StatusCode = apiErr.StatusCode
			return pe
		}
	}

	return NewProviderError(ErrCodeServerError, "openai request failed", err)
}
