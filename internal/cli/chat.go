package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"robopilot/internal/agent"
	"robopilot/internal/models"
	"robopilot/internal/styles"
	"robopilot/internal/tools"
)

const maxInputLine = 1 << 20

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the robot line by line",
		Long: `Starts a line-mode chat. Type "help" to list what the robot can do
and "exit" to end the session. Every session is written to a log file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadContext, _ := cmd.Flags().GetString("load-context")
			s, logger, err := loadSettingsAndLogger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			color, width := terminalInfo(out)
			if color {
				styles.InitTheme()
			}
			printer := styles.NewPrinter(out, color, width)

			sess, err := openSession(ctx, s, logger, sessionOptions{
				loadContext: loadContext,
				observer:    consoleObserver{p: printer},
			})
			if err != nil {
				return err
			}
			runErr := runChat(ctx, sess, cmd.InOrStdin(), printer)
			return errors.Join(runErr, sess.Close())
		},
	}
	cmd.Flags().String("load-context", "", "Continue the conversation stored in a session log file")
	return cmd
}

// runChat reads one request per line until exit, end of input or an
// interrupt. A fatal agent error ends the loop and is returned.
func runChat(ctx context.Context, sess *session, in io.Reader, p *styles.Printer) error {
	p.Welcome(sess.welcome)
	if !sess.backendUp {
		p.Notice("The robot is not reachable; only the default-value and program tools are available.")
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxInputLine)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		p.Prompt()
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		text := strings.TrimSpace(line)
		switch strings.ToLower(text) {
		case "":
			continue
		case "exit":
			return nil
		case "help":
			p.Info(sess.welcome)
			continue
		}

		reply, err := sess.agent.Ask(ctx, sess.transcript, text)
		if err != nil {
			if fe, ok := agent.AsFatal(err); ok && fe.Reason == agent.ReasonAborted && ctx.Err() != nil {
				return nil
			}
			p.Error(err)
			return err
		}
		p.Reply(reply)
	}
}

// consoleObserver prints tool progress between the prompt and the reply.
type consoleObserver struct {
	p *styles.Printer
}

func (consoleObserver) OnToolCall(models.ToolCall) {}

func (o consoleObserver) OnToolResult(call models.ToolCall, result string) {
	o.p.ToolAction(tools.Summarize(call.Name, call.Arguments, result))
}

func (o consoleObserver) OnDiagnostic(text string) {
	o.p.Notice(text)
}

func (o consoleObserver) OnRetry(attempt int, wait time.Duration, err error) {
	o.p.Notice(fmt.Sprintf("Request failed (%v), retrying in %s (attempt %d)", err, wait.Round(time.Second), attempt))
}

// terminalInfo reports whether out is a color terminal and the width
// replies should wrap at.
func terminalInfo(out io.Writer) (bool, int) {
	f, ok := out.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(f.Fd())) {
		return false, 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	return true, min(width-4, 100)
}
