package models

import "strings"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function" // result of a tool invocation
)

// ToolCall is a request from the model to run one named tool.
// Arguments is kept as the raw text the model produced.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of a conversation transcript. The JSON layout matches
// the session log files.
type Message struct {
	Role     Role      `json:"role"`
	Content  *string   `json:"content"`
	ToolCall *ToolCall `json:"function_call,omitempty"`
	Name     string    `json:"name,omitempty"`
}

// Text returns the content or "" when absent.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

func (m Message) HasToolCall() bool {
	return m.ToolCall != nil
}

func textPtr(s string) *string {
	return &s
}

func System(text string) Message {
	return Message{Role: RoleSystem, Content: textPtr(text)}
}

func User(text string) Message {
	return Message{Role: RoleUser, Content: textPtr(text)}
}

func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Content: textPtr(text)}
}

// AssistantToolCall builds an assistant message carrying a tool call.
// Content is optional; an empty string is stored as null.
func AssistantToolCall(content string, call ToolCall) Message {
	m := Message{Role: RoleAssistant, ToolCall: &call}
	if content != "" {
		m.Content = textPtr(content)
	}
	return m
}

// FunctionResult builds the message that records a tool's output.
func FunctionResult(name, content string) Message {
	return Message{Role: RoleFunction, Name: name, Content: textPtr(content)}
}

// Usage is the token accounting reported by the LLM for one request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Summary is the trailing element written when a session log is closed.
type Summary struct {
	UsedTokens int    `json:"used_tokens"`
	Model      string `json:"model"`
}

// ToolSpec describes a tool offered to the model.
type ToolSpec struct {
	Name            string
	Description     string
	Parameters      map[string]any // JSON schema "properties"
	Required        []string
	RequiresBackend bool
}

// Schema returns the JSON schema object for the tool parameters.
func (s ToolSpec) Schema() map[string]any {
	props := s.Parameters
	if props == nil {
		props = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		schema["required"] = s.Required
	}
	return schema
}

type AIModel struct {
	ID            string
	Name          string
	Provider      string
	Description   string
	ContextLength int // usable context window in tokens
}

// AvailableModels lists the chat models known to work with tool calls.
var AvailableModels = []AIModel{
	{ID: "gpt-3.5-turbo-0125", Name: "GPT-3.5 Turbo", Provider: "OpenAI", Description: "Fast and cheap, small context", ContextLength: 15000},
	{ID: "gpt-4o", Name: "GPT-4o", Provider: "OpenAI", Description: "Flagship multimodal model", ContextLength: 127000},
	{ID: "gpt-4o-mini", Name: "GPT-4o mini", Provider: "OpenAI", Description: "Small and fast", ContextLength: 127000},
	{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Provider: "OpenAI", Description: "Previous generation", ContextLength: 127000},
}

// FindModel looks a model up by id, ignoring case.
func FindModel(id string) (AIModel, bool) {
	for _, m := range AvailableModels {
		if strings.EqualFold(m.ID, id) {
			return m, true
		}
	}
	return AIModel{}, false
}

type SessionListItem struct {
	ID             string
	CreatedAtUnix  int64
	UpdatedAtUnix  int64
	LastUserPrompt string
	ModelID        string
	LogPath        string
	UsedTokens     int
}

// ToolAction represents a completed tool action for display
type ToolAction struct {
	Name    string
	Summary string
}
