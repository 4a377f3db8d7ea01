package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"robopilot/internal/styles"
	"robopilot/internal/ui"
)

func newTUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Chat with the robot in a full-screen terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("tui needs an interactive terminal; use \"robopilot chat\" instead")
			}
			loadContext, _ := cmd.Flags().GetString("load-context")
			s, logger, err := loadSettingsAndLogger(cmd)
			if err != nil {
				return err
			}
			// Warnings reach the screen through the observer; stderr lines
			// would tear the alternate screen.
			logger = logger.WithOptions(zap.IncreaseLevel(zapcore.ErrorLevel))
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			styles.InitTheme()
			obs := ui.NewObserver()
			sess, err := openSession(ctx, s, logger, sessionOptions{loadContext: loadContext, observer: obs})
			if err != nil {
				return err
			}

			p, model := ui.NewProgram(ctx, ui.Session{
				Agent:      sess.agent,
				Transcript: sess.transcript,
				Budget:     sess.budget,
				Log:        sess.log,
				DB:         sess.history,
				Model:      sess.model,
				BackendUp:  sess.backendUp,
				Welcome:    sess.welcome,
			}, obs)
			_, runErr := p.Run()
			if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
				runErr = nil
			}
			if runErr != nil {
				runErr = fmt.Errorf("terminal UI: %w", runErr)
			}
			if model.Fatal != nil {
				runErr = errors.Join(runErr, model.Fatal)
			}
			return errors.Join(runErr, sess.Close())
		},
	}
	cmd.Flags().String("load-context", "", "Continue the conversation stored in a session log file")
	return cmd
}
