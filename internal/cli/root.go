// Package cli holds the robopilot commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"robopilot/internal/config"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "robopilot",
		Short: "Robopilot drives a robot arm through a chat with an LLM",
		Long: `Robopilot turns chat requests into robot actions: the model answers in
plain text or asks for one of the robot, default-value or program tools,
and every step of the session is logged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Config file (default ./robopilot.yaml when present)")
	flags.String("env-file", ".env", "Dotenv file; never overrides the environment")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("model", "", "Chat model id")
	flags.String("robot-url", "", "Robot backend base URL")

	root.AddCommand(
		newChatCmd(),
		newTUICmd(),
		newSimCmd(),
		newLogsCmd(),
		newHistoryCmd(),
	)
	return root
}

// Execute runs the root command and exits 1 on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings reads config, environment and flags for cmd.
func loadSettings(cmd *cobra.Command) (*config.Settings, *viper.Viper, error) {
	configPath, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	v, err := config.Load(configPath, envFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	s, err := config.Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return s, v, nil
}

func loadSettingsAndLogger(cmd *cobra.Command) (*config.Settings, *zap.Logger, error) {
	s, v, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(v)
	if err != nil {
		return nil, nil, err
	}
	return s, logger, nil
}
