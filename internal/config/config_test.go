package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks the variables Load reads so the host environment does not
// leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "MODEL", "ROBOT_URL", "LOG_LEVEL"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	v, err := Load("", "", nil)
	require.NoError(t, err)
	s, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, "gpt-3.5-turbo-0125", s.Model)
	assert.Equal(t, "http://localhost:5018", s.Robot.URL)
	assert.Equal(t, 10*time.Second, s.Robot.Timeout)
	assert.Equal(t, 10.0, s.Robot.Rate)
	assert.Equal(t, Agent{
		MaxOutputTokens:   800,
		MaxAttempts:       3,
		BackoffUnit:       5 * time.Second,
		OverflowTrimBlock: 4,
		MaxToolRounds:     0,
		MaxMalformedCalls: 3,
	}, s.Agent)
	assert.Equal(t, "./src", s.Tools.WorkspaceDir)
	assert.Equal(t, "python3", s.Tools.Interpreter)
	assert.Equal(t, time.Minute, s.Tools.RunTimeout)
	assert.Equal(t, "./logs", s.SessionLog.Dir)
	assert.Equal(t, "info", s.Logging.Level)
	assert.ErrorIs(t, s.RequireAPIKey(), ErrMissingAPIKey)
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ROBOT_URL", "http://robot:9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ROBOPILOT_AGENT_MAX_ATTEMPTS", "5")

	v, err := Load("", "", nil)
	require.NoError(t, err)
	s, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", s.OpenAI.APIKey)
	assert.Equal(t, "http://robot:9000", s.Robot.URL)
	assert.Equal(t, "debug", s.Logging.Level)
	assert.Equal(t, 5, s.Agent.MaxAttempts)
	assert.NoError(t, s.RequireAPIKey())
}

func TestDotenvNeverOverridesEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL", "gpt-4o-mini")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OPENAI_API_KEY=sk-from-file\nMODEL=gpt-4o\n"), 0o600))

	v, err := Load("", envFile, nil)
	require.NoError(t, err)
	s, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-file", s.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", s.Model)
}

func TestMissingDotenvIsFine(t *testing.T) {
	clearEnv(t)
	_, err := Load("", filepath.Join(t.TempDir(), ".env"), nil)
	assert.NoError(t, err)
}

func TestLoadConfigFileAndFlags(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "robopilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: gpt-4o
robot:
  timeout: 3s
agent:
  max_tool_rounds: 7
metrics:
  addr: ":9000"
`), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("metrics-addr", "", "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--metrics-addr", ":9100"}))

	v, err := Load(path, "", flags)
	require.NoError(t, err)
	s, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", s.Model)
	assert.Equal(t, 3*time.Second, s.Robot.Timeout)
	assert.Equal(t, 7, s.Agent.MaxToolRounds)
	assert.Equal(t, ":9100", s.Metrics.Addr)
	// unchanged flags fall through to the defaults
	assert.Equal(t, "info", s.Logging.Level)
}

func TestLoadExplicitMissingConfigFails(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "", nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	v, err := Load("", "", nil)
	require.NoError(t, err)
	v.Set("agent.max_attempts", 0)
	v.Set("agent.overflow_trim_block", 0)
	v.Set("agent.max_malformed_calls", 0)
	v.Set("budget.context_limit", -1)

	_, err = Decode(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.max_attempts")
	assert.Contains(t, err.Error(), "agent.overflow_trim_block")
	assert.Contains(t, err.Error(), "agent.max_malformed_calls")
	assert.Contains(t, err.Error(), "budget.context_limit")
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"info", "json", false},
		{"debug", "console", false},
		{"warn", "", false},
		{"banana", "json", true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		v := viper.New()
		v.Set("logging.level", tt.level)
		v.Set("logging.format", tt.format)

		logger, err := NewLogger(v)
		if tt.wantErr {
			assert.Error(t, err, "%s/%s", tt.level, tt.format)
			continue
		}
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}
