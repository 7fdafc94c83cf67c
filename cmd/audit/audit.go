// Package audit provides the "xladjust audit" commands for viewing the run log.
package audit

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/xladjust/cmd/cmdutil"
	auditpkg "github.com/klytics/xladjust/internal/audit"
	"github.com/klytics/xladjust/internal/output"
)

// NewCommand creates the "audit" command with all subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "View and manage the audit log",
		Long:  "Every adjust, plan and watch run is appended to the audit log as one JSON line.",
	}

	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func newLogCmd() *cobra.Command {
	var (
		last     int
		command  string
		since    string
		until    string
		workbook string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			path := env.Audit.FilePath
			entries, err := auditpkg.ReadEntries(path)
			if err != nil {
				return err
			}

			sinceTime, err := parseDate("--since", since)
			if err != nil {
				return err
			}
			untilTime, err := parseDate("--until", until)
			if err != nil {
				return err
			}
			if !untilTime.IsZero() {
				// Inclusive of the whole day
				untilTime = untilTime.Add(24*time.Hour - time.Nanosecond)
			}

			filtered := auditpkg.FilterEntries(entries, sinceTime, untilTime, command, workbook)
			if last > 0 && len(filtered) > last {
				filtered = filtered[len(filtered)-last:]
			}

			return env.Writer().Result("audit log", filtered, func(w io.Writer) {
				if len(filtered) == 0 {
					fmt.Fprintln(w, "No audit log entries found.")
					return
				}

				fmt.Fprintf(w, "Audit Log — %d Entries\n", len(filtered))
				fmt.Fprintf(w, "File: %s\n\n", path)

				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "TIMESTAMP\tCOMMAND\tWORKBOOK\tINSERTED\tDURATION\tEXIT\n")
				for _, e := range filtered {
					ts := e.Timestamp.Format("2006-01-02 15:04:05")
					dur := fmt.Sprintf("%dms", e.DurationMs)
					if e.DurationMs >= 1000 {
						dur = fmt.Sprintf("%.1fs", float64(e.DurationMs)/1000)
					}
					wb := e.Workbook
					if wb == "" {
						wb = "-"
					}
					inserted := fmt.Sprint(e.Inserted)
					if e.DryRun {
						inserted += " (dry run)"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", ts, e.Command, wb, inserted, dur, e.ExitCode)
				}
				tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&last, "last", 20, "Show last N entries")
	cmd.Flags().StringVar(&command, "command", "", "Filter by command name")
	cmd.Flags().StringVar(&since, "since", "", "Filter entries since date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Filter entries until date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&workbook, "workbook", "", "Filter by workbook path")
	return cmd
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, output.User(fmt.Errorf("invalid %s date: %w (use YYYY-MM-DD)", flag, err))
	}
	return t, nil
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			path := env.Audit.FilePath
			if err := auditpkg.Clear(path); err != nil {
				return err
			}
			return env.Writer().Result("audit clear", map[string]string{"cleared": path}, func(w io.Writer) {
				fmt.Fprintf(w, "Audit log cleared: %s\n", path)
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show audit log path and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			path := env.Audit.FilePath
			size := auditpkg.LogSize(path)
			entries, _ := auditpkg.ReadEntries(path)

			status := map[string]interface{}{
				"path":    path,
				"enabled": env.Audit.Enabled,
				"size":    size,
				"entries": len(entries),
			}
			return env.Writer().Result("audit status", status, func(w io.Writer) {
				fmt.Fprintf(w, "Audit log: %s\n", path)
				if !env.Audit.Enabled {
					fmt.Fprintln(w, "Enabled:   no (set audit.enabled: true)")
				}
				if size == 0 {
					fmt.Fprintln(w, "Size:      empty (no entries)")
				} else {
					fmt.Fprintf(w, "Size:      %s\n", formatSize(size))
				}
				fmt.Fprintf(w, "Entries:   %d\n", len(entries))
			})
		},
	}
}

func formatSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
}
