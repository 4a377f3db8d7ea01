package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"robopilot/internal/agent"
	"robopilot/internal/config"
	"robopilot/internal/db"
	"robopilot/internal/llm"
	"robopilot/internal/models"
	"robopilot/internal/robotsim"
	"robopilot/internal/sessionlog"
	"robopilot/internal/styles"
	"robopilot/internal/transcript"
)

var sessionStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type scripted struct {
	replies []*llm.Response
	err     error
	reqs    []llm.Request
}

func (s *scripted) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return nil, llm.NewProviderError(llm.ErrCodeInvalidRequest, "script exhausted", nil)
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func answer(text string, total int) *llm.Response {
	return &llm.Response{Message: models.Assistant(text), Usage: models.Usage{TotalTokens: total}}
}

func call(name, args string) *llm.Response {
	return &llm.Response{Message: models.AssistantToolCall("", models.ToolCall{ID: "call_1", Name: name, Arguments: args})}
}

func testSettings(t *testing.T, robotURL string) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	return &config.Settings{
		Model: "gpt-3.5-turbo-0125",
		Robot: config.Robot{URL: robotURL, Timeout: 2 * time.Second},
		Agent: config.Agent{
			MaxOutputTokens:   800,
			MaxAttempts:       3,
			BackoffUnit:       time.Millisecond,
			OverflowTrimBlock: 4,
			MaxMalformedCalls: 3,
		},
		Tools: config.Tools{
			WorkspaceDir: filepath.Join(dir, "src"),
			Interpreter:  "python3",
			RunTimeout:   time.Second,
		},
		SessionLog: config.SessionLog{
			Dir:        filepath.Join(dir, "logs"),
			SQLitePath: filepath.Join(dir, "history.db"),
		},
	}
}

func startSim(t *testing.T) (*robotsim.Server, string) {
	t.Helper()
	sim := robotsim.New(nil)
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(srv.Close)
	return sim, srv.URL
}

func runScript(t *testing.T, s *config.Settings, client *scripted, input string) (string, error, *session) {
	t.Helper()
	var out bytes.Buffer
	p := styles.NewPrinter(&out, false, 0)
	sess, err := openSession(context.Background(), s, zap.NewNop(), sessionOptions{
		client:   client,
		observer: consoleObserver{p: p},
		now:      func() time.Time { return sessionStart },
	})
	require.NoError(t, err)
	runErr := runChat(context.Background(), sess, strings.NewReader(input), p)
	require.NoError(t, sess.Close())
	return out.String(), runErr, sess
}

func TestChatAnswersAndLogs(t *testing.T) {
	_, url := startSim(t)
	s := testSettings(t, url)
	client := &scripted{replies: []*llm.Response{answer("2+2 is 4.", 60)}}

	out, err, sess := runScript(t, s, client, "help\n\nWhat is 2+2?\nexit\nnever sent\n")
	require.NoError(t, err)

	assert.Contains(t, out, "Available actions:")
	assert.Contains(t, out, "ROBOPILOT\n2+2 is 4.")
	assert.NotContains(t, out, "robot is not reachable")
	require.Len(t, client.reqs, 1)
	assert.Equal(t, 3, sess.transcript.Len())

	path := filepath.Join(s.SessionLog.Dir, sessionlog.FileName(sessionStart))
	loaded, used, err := transcript.LoadContext(path)
	require.NoError(t, err)
	assert.Equal(t, 60, used)
	assert.Equal(t, sess.transcript.Messages(), loaded.Messages())
}

func TestChatRunsRobotTools(t *testing.T) {
	sim, url := startSim(t)
	s := testSettings(t, url)
	client := &scripted{replies: []*llm.Response{
		call("start", "{}"),
		call("suck", "{}"),
		answer("The vacuum is on.", 120),
	}}

	out, err, _ := runScript(t, s, client, "Turn on the vacuum\n")
	require.NoError(t, err)

	state := sim.Snapshot()
	assert.True(t, state.Started)
	assert.True(t, state.Vacuum)
	assert.Contains(t, out, "→ START")
	assert.Contains(t, out, "→ SUCK")
	assert.Contains(t, out, "The vacuum is on.")
}

func TestChatOfflineHidesRobotTools(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	s := testSettings(t, url)
	client := &scripted{replies: []*llm.Response{answer("I cannot reach the robot.", 50)}}

	out, err, _ := runScript(t, s, client, "Move home\n")
	require.NoError(t, err)
	assert.Contains(t, out, "The robot is not reachable")

	require.Len(t, client.reqs, 1)
	names := map[string]bool{}
	for _, spec := range client.reqs[0].Tools {
		names[spec.Name] = true
	}
	assert.False(t, names["putHome"])
	assert.True(t, names["getDefValues"])
	assert.True(t, names["saveTXT"])
	assert.Contains(t, client.reqs[0].Messages[0].Text(), "not reachable")
}

func TestChatFatalErrorEndsSession(t *testing.T) {
	_, url := startSim(t)
	s := testSettings(t, url)
	client := &scripted{err: llm.NewProviderError(llm.ErrCodeAuthentication, "invalid api key", nil)}

	out, err, _ := runScript(t, s, client, "hello\nsecond\n")
	require.Error(t, err)
	fe, ok := agent.AsFatal(err)
	require.True(t, ok)
	assert.Equal(t, agent.ReasonAuthentication, fe.Reason)
	assert.Contains(t, out, "Error: authentication failed")
	assert.Len(t, client.reqs, 1)
}

func TestChatMirrorsIntoHistory(t *testing.T) {
	_, url := startSim(t)
	s := testSettings(t, url)
	client := &scripted{replies: []*llm.Response{answer("Hello!", 42)}}

	_, err, _ := runScript(t, s, client, "Hi there\n")
	require.NoError(t, err)

	conn, err := db.Open(s.SessionLog.SQLitePath)
	require.NoError(t, err)
	defer conn.Close()

	total, sessions, err := db.GetRecentSessions(context.Background(), conn, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "Hi there", sessions[0].LastUserPrompt)
	assert.Equal(t, 42, sessions[0].UsedTokens)
	assert.Equal(t, filepath.Join(s.SessionLog.Dir, sessionlog.FileName(sessionStart)), sessions[0].LogPath)

	msgs, err := db.GetSessionMessages(context.Background(), conn, sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleSystem, msgs[0].Role)
}

func TestLoadContextContinuesSession(t *testing.T) {
	_, url := startSim(t)
	s := testSettings(t, url)
	s.SessionLog.SQLitePath = config.SQLiteDisabled

	_, err, _ := runScript(t, s, &scripted{replies: []*llm.Response{answer("First.", 500)}}, "one\n")
	require.NoError(t, err)
	first := filepath.Join(s.SessionLog.Dir, sessionlog.FileName(sessionStart))

	client := &scripted{replies: []*llm.Response{answer("Second.", 90)}}
	sess, err := openSession(context.Background(), s, zap.NewNop(), sessionOptions{
		client:      client,
		loadContext: first,
		now:         func() time.Time { return sessionStart.Add(time.Hour) },
	})
	require.NoError(t, err)
	assert.Nil(t, sess.history)
	assert.Equal(t, 3, sess.transcript.Len())

	reply, err := sess.agent.Ask(context.Background(), sess.transcript, "two")
	require.NoError(t, err)
	assert.Equal(t, "Second.", reply)
	require.NoError(t, sess.Close())

	require.Len(t, client.reqs, 1)
	assert.Len(t, client.reqs[0].Messages, 4)

	_, used, err := transcript.LoadContext(sess.logFile.Path())
	require.NoError(t, err)
	assert.Equal(t, 500, used, "peak carries over from the loaded log")
}

func TestSessionsStartedInTheSameSecond(t *testing.T) {
	_, url := startSim(t)
	s := testSettings(t, url)

	_, err, first := runScript(t, s, &scripted{replies: []*llm.Response{answer("One.", 10)}}, "first\n")
	require.NoError(t, err)
	_, err, second := runScript(t, s, &scripted{replies: []*llm.Response{answer("Two.", 20)}}, "second\n")
	require.NoError(t, err)

	assert.NotEqual(t, first.logFile.Path(), second.logFile.Path())
	files, err := sessionlog.ListFiles(s.SessionLog.Dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, used, err := transcript.LoadContext(second.logFile.Path())
	require.NoError(t, err)
	assert.Equal(t, 20, used)
}

func TestOpenSessionRequiresAPIKey(t *testing.T) {
	s := testSettings(t, "http://127.0.0.1:1")
	_, err := openSession(context.Background(), s, zap.NewNop(), sessionOptions{})
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", ""))
	err := root.Execute()
	return out.String(), err
}

func TestLogsListAndRename(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROBOPILOT_SESSIONLOG_DIR", dir)

	out, err := runRoot(t, "logs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No session logs")

	name := sessionlog.FileName(sessionStart)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644))

	out, err = runRoot(t, "logs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, name)
	assert.Contains(t, out, "NAME")

	out, err = runRoot(t, "logs", "rename", name, "pick_demo")
	require.NoError(t, err)
	assert.Contains(t, out, "Renamed")
	assert.FileExists(t, filepath.Join(dir, "pick_demo.json"))

	_, err = runRoot(t, "logs", "rename", "missing.json", "other")
	assert.Error(t, err)
}

func TestHistoryCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("ROBOPILOT_SESSIONLOG_SQLITE_PATH", path)

	out, err := runRoot(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions yet.")

	conn, err := db.Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	store := db.NewStore(conn, "gpt-4o", "logs/log_x.json")
	for _, m := range []models.Message{
		models.System("system"),
		models.User("Pick the cube"),
		models.AssistantToolCall("", models.ToolCall{Name: "suck", Arguments: "{}"}),
		models.FunctionResult("suck", "Sucked!"),
		models.Assistant("Got it."),
	} {
		require.NoError(t, store.Write(ctx, m))
	}
	require.NoError(t, store.Close(ctx, models.Summary{UsedTokens: 77}))
	require.NoError(t, conn.Close())

	out, err = runRoot(t, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, store.ID()[:8])
	assert.Contains(t, out, "Pick the cube")
	assert.Contains(t, out, "1 of 1 sessions")

	out, err = runRoot(t, "history", "show", store.ID()[:6])
	require.NoError(t, err)
	assert.Contains(t, out, "[user] Pick the cube")
	assert.Contains(t, out, "[call] suck {}")
	assert.Contains(t, out, "[suck] Sucked!")
	assert.Contains(t, out, "[assistant] Got it.")
	assert.NotContains(t, out, "[system]")
}

func TestHistoryDisabled(t *testing.T) {
	t.Setenv("ROBOPILOT_SESSIONLOG_SQLITE_PATH", config.SQLiteDisabled)
	_, err := runRoot(t, "history")
	assert.ErrorContains(t, err, "disabled")
}

func TestServeSimStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := serveSim(ctx, "127.0.0.1:0", robotsim.New(nil), zap.NewNop())
	assert.NoError(t, err)
}
