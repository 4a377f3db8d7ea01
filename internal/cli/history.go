package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"robopilot/internal/config"
	"robopilot/internal/db"
	"robopilot/internal/models"
	"robopilot/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sessions from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			conn, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			total, sessions, err := db.GetRecentSessions(cmd.Context(), conn, limit, 0)
			if err != nil {
				return err
			}
			printSessions(cmd.OutOrStdout(), total, sessions)
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Number of sessions to show")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the messages of a session (an id prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()
			return showSession(cmd.Context(), cmd.OutOrStdout(), conn, args[0])
		},
	}
	cmd.AddCommand(show)
	return cmd
}

func openHistory(cmd *cobra.Command) (*sql.DB, error) {
	s, _, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	path := s.SessionLog.SQLitePath
	if path == config.SQLiteDisabled {
		return nil, errors.New("the history database is disabled (sessionlog.sqlite_path is \"-\")")
	}
	if path == "" {
		if path, err = db.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return db.Open(path)
}

func printSessions(out io.Writer, total int, sessions []models.SessionListItem) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions yet.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "UPDATED", "MODEL", "TOKENS", "LAST PROMPT")
	for _, s := range sessions {
		t.Row(
			shortID(s.ID),
			ui.RelativeTime(time.Unix(s.UpdatedAtUnix, 0)),
			s.ModelID,
			strconv.Itoa(s.UsedTokens),
			ui.TruncateRunes(db.PromptPreview(s.LastUserPrompt), 50),
		)
	}
	fmt.Fprintln(out, t.Render())
	fmt.Fprintf(out, "%d of %d sessions\n", len(sessions), total)
}

func showSession(ctx context.Context, out io.Writer, conn *sql.DB, idOrPrefix string) error {
	item, err := db.LookupSession(ctx, conn, idOrPrefix)
	if err != nil {
		return err
	}
	msgs, err := db.GetSessionMessages(ctx, conn, item.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Session %s  model %s  tokens %d\n", item.ID, item.ModelID, item.UsedTokens)
	if item.LogPath != "" {
		fmt.Fprintf(out, "Log file %s\n", item.LogPath)
	}
	fmt.Fprintln(out)
	for _, m := range msgs {
		switch {
		case m.Role == models.RoleSystem:
			continue
		case m.ToolCall != nil:
			fmt.Fprintf(out, "[call] %s %s\n", m.ToolCall.Name, m.ToolCall.Arguments)
		case m.Role == models.RoleFunction:
			fmt.Fprintf(out, "[%s] %s\n", m.Name, m.Text())
		default:
			fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Text())
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
