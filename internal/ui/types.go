package ui

import (
	"context"
	"database/sql"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"robopilot/internal/agent"
	"robopilot/internal/budget"
	"robopilot/internal/models"
	"robopilot/internal/sessionlog"
	"robopilot/internal/transcript"
)

const (
	MaxChatWidth    = 100
	HistoryPageSize = 10
)

var ModalWidth = 60

// Session is everything the chat UI needs to run one conversation. DB may
// be nil when the history database is disabled.
type Session struct {
	Agent      *agent.Agent
	Transcript *transcript.Transcript
	Budget     *budget.Controller
	Log        sessionlog.Sink
	DB         *sql.DB
	Model      models.AIModel
	BackendUp  bool
	Welcome    string
}

// ResponseMsg is the result of one finished Ask.
type ResponseMsg struct {
	Content       string
	Usage         models.Usage
	ContextTokens int
	PeakTokens    int
}

// FatalMsg ends the session.
type FatalMsg struct{ Err error }

type ToolCallMsg struct {
	Name      string
	Arguments string
}

type ToolResultMsg struct {
	Name    string
	Result  string
	Summary string // Brief summary of the action taken
}

type DiagnosticMsg struct{ Text string }

type RetryMsg struct {
	Attempt int
	Wait    time.Duration
	Err     error
}

type Model struct {
	Viewport           viewport.Model
	Messages           []string
	TextInput          textarea.Model
	Spinner            spinner.Model
	Agent              *agent.Agent
	Transcript         *transcript.Transcript
	Budget             *budget.Controller
	Log                sessionlog.Sink
	DB                 *sql.DB
	Renderer           *glamour.TermRenderer
	Fatal              error
	Loading            bool
	Status             string
	InputTokens        int
	OutputTokens       int
	ContextTokens      int
	PeakTokens         int
	WindowWidth        int
	WindowHeight       int
	HistoryOpen        bool
	HistorySelectedIdx int
	HistoryCount       int
	HistorySessions    []models.SessionListItem
	HistoryErr         error
	HistoryPage        int
	ShortcutsOpen      bool
	CurrentModel       models.AIModel
	BackendUp          bool
	Welcome            string
	ExecutingTool      string
	ToolArguments      string
	ToolActions        []models.ToolAction // Completed tool actions for current response
	Program            *tea.Program

	ctx context.Context
}
