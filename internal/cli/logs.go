package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"robopilot/internal/sessionlog"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Manage session log files",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List session logs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			files, err := sessionlog.ListFiles(s.SessionLog.Dir)
			if err != nil {
				return err
			}
			printLogList(cmd.OutOrStdout(), s.SessionLog.Dir, files)
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a session log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := sessionlog.Rename(s.SessionLog.Dir, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(list, rename)
	return cmd
}

func printLogList(out io.Writer, dir string, files []sessionlog.FileInfo) {
	if len(files) == 0 {
		fmt.Fprintf(out, "No session logs in %s.\n", dir)
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "SIZE", "MODIFIED")
	for _, f := range files {
		t.Row(f.Name, humanize.Bytes(uint64(f.Size)), f.ModTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(out, t.Render())
}
