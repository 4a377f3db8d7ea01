// Package config loads robopilot settings from flags, the environment, a
// .env file and an optional robopilot.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Settings struct {
	OpenAI     OpenAI     `mapstructure:"openai"`
	Model      string     `mapstructure:"model"`
	Robot      Robot      `mapstructure:"robot"`
	Agent      Agent      `mapstructure:"agent"`
	Budget     Budget     `mapstructure:"budget"`
	Tools      Tools      `mapstructure:"tools"`
	SessionLog SessionLog `mapstructure:"sessionlog"`
	Logging    Logging    `mapstructure:"logging"`
	Metrics    Metrics    `mapstructure:"metrics"`
}

type OpenAI struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type Robot struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Rate    float64       `mapstructure:"rate"`
}

type Agent struct {
	MaxOutputTokens   int           `mapstructure:"max_output_tokens"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BackoffUnit       time.Duration `mapstructure:"backoff_unit"`
	OverflowTrimBlock int           `mapstructure:"overflow_trim_block"`
	MaxToolRounds     int           `mapstructure:"max_tool_rounds"`
	MaxMalformedCalls int           `mapstructure:"max_malformed_calls"`
}

type Budget struct {
	ContextLimit int `mapstructure:"context_limit"`
}

type Tools struct {
	WorkspaceDir string        `mapstructure:"workspace_dir"`
	Interpreter  string        `mapstructure:"interpreter"`
	RunTimeout   time.Duration `mapstructure:"run_timeout"`
}

type SessionLog struct {
	Dir        string `mapstructure:"dir"`
	SQLitePath string `mapstructure:"sqlite_path"` // "" = user config dir, "-" = disabled
	RedisAddr  string `mapstructure:"redis_addr"`
}

type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Metrics struct {
	Addr string `mapstructure:"addr"`
}

// SQLiteDisabled is the sessionlog.sqlite_path value that turns the
// history database off.
const SQLiteDisabled = "-"

var ErrMissingAPIKey = errors.New("OpenAI API key is not set; put OPENAI_API_KEY into the environment or the .env file")

// envBindings maps keys to the variable names the original deployment
// used. Everything else is reachable as ROBOPILOT_<KEY>.
var envBindings = map[string]string{
	"openai.api_key":  "OPENAI_API_KEY",
	"openai.base_url": "OPENAI_BASE_URL",
	"model":           "MODEL",
	"robot.url":       "ROBOT_URL",
	"logging.level":   "LOG_LEVEL",
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"metrics-addr": "metrics.addr",
	"log-level":    "logging.level",
	"model":        "model",
	"robot-url":    "robot.url",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("model", "gpt-3.5-turbo-0125")
	v.SetDefault("robot.url", "http://localhost:5018")
	v.SetDefault("robot.timeout", "10s")
	v.SetDefault("robot.rate", 10)
	v.SetDefault("agent.max_output_tokens", 800)
	v.SetDefault("agent.max_attempts", 3)
	v.SetDefault("agent.backoff_unit", "5s")
	v.SetDefault("agent.overflow_trim_block", 4)
	v.SetDefault("agent.max_tool_rounds", 0)
	v.SetDefault("agent.max_malformed_calls", 3)
	v.SetDefault("budget.context_limit", 0)
	v.SetDefault("tools.workspace_dir", "./src")
	v.SetDefault("tools.interpreter", "python3")
	v.SetDefault("tools.run_timeout", "60s")
	v.SetDefault("sessionlog.dir", "./logs")
	v.SetDefault("sessionlog.sqlite_path", "")
	v.SetDefault("sessionlog.redis_addr", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("metrics.addr", "")
}

// Load builds the viper instance. configPath may be empty, in which case
// robopilot.yaml is looked up in the working directory and is optional.
// envFile is loaded dotenv style: values never override variables already
// set in the environment. flags may be nil.
func Load(configPath, envFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	if err := loadDotenv(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("robopilot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ROBOPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env, "ROBOPILOT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return v, nil
}

// loadDotenv copies the variables of path into the process environment
// unless they are already set. A missing file is not an error.
func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	ev := viper.New()
	ev.SetConfigFile(path)
	ev.SetConfigType("env")
	if err := ev.ReadInConfig(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	for _, key := range ev.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, ev.GetString(key)); err != nil {
			return fmt.Errorf("setting %s: %w", name, err)
		}
	}
	return nil
}

// Decode unmarshals v into Settings and validates the result.
func Decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks value ranges. The API key is checked separately by
// RequireAPIKey since the simulator and log commands run without one.
func (s *Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Model) == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if s.Robot.URL == "" {
		errs = append(errs, errors.New("robot.url must not be empty"))
	}
	if s.Robot.Timeout <= 0 {
		errs = append(errs, errors.New("robot.timeout must be positive"))
	}
	if s.Agent.MaxOutputTokens <= 0 {
		errs = append(errs, errors.New("agent.max_output_tokens must be positive"))
	}
	if s.Agent.MaxAttempts < 1 {
		errs = append(errs, errors.New("agent.max_attempts must be at least 1"))
	}
	if s.Agent.BackoffUnit < 0 {
		errs = append(errs, errors.New("agent.backoff_unit must not be negative"))
	}
	if s.Agent.OverflowTrimBlock < 1 {
		errs = append(errs, errors.New("agent.overflow_trim_block must be at least 1"))
	}
	if s.Agent.MaxToolRounds < 0 {
		errs = append(errs, errors.New("agent.max_tool_rounds must not be negative"))
	}
	if s.Agent.MaxMalformedCalls < 1 {
		errs = append(errs, errors.New("agent.max_malformed_calls must be at least 1"))
	}
	if s.Budget.ContextLimit < 0 {
		errs = append(errs, errors.New("budget.context_limit must not be negative"))
	}
	if s.Tools.WorkspaceDir == "" {
		errs = append(errs, errors.New("tools.workspace_dir must not be empty"))
	}
	if s.SessionLog.Dir == "" {
		errs = append(errs, errors.New("sessionlog.dir must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Settings) RequireAPIKey() error {
	if strings.TrimSpace(s.OpenAI.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}
