// Package watch provides the "xladjust watch" command, which applies a plan to
// every workbook dropped into or saved in the watched directories.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/xladjust/cmd/cmdutil"
	"github.com/klytics/xladjust/internal/audit"
	"github.com/klytics/xladjust/internal/config"
	"github.com/klytics/xladjust/internal/output"
	"github.com/klytics/xladjust/internal/plan"
	"github.com/klytics/xladjust/internal/workbook"
	w "github.com/klytics/xladjust/internal/watch"
)

// NewCommand creates the "watch" command with subcommands.
func NewCommand() *cobra.Command {
	var (
		recursive bool
		pattern   string
		debounce  int
		backup    bool
	)

	cmd := &cobra.Command{
		Use:   "watch <plan.yaml> <directory> [directory...]",
		Short: "Apply a plan to workbooks as they change",
		Long: `Watch directories for new or modified .xlsx workbooks and apply a plan to
each one. Lock files, temporary files and the watcher's own saves are ignored.

Example:
  xladjust watch quarterly.yaml ./inbox --recursive
  xladjust watch status
  xladjust watch stop`,
		Args: func(cmd *cobra.Command, args []string) error {
			return output.User(cobra.MinimumNArgs(2)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}

			p, err := plan.Load(args[0])
			if err != nil {
				return output.User(err)
			}
			defaults, err := env.Defaults()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = env.Config.Watch.DebounceMs
			}

			wcfg := w.WatchConfig{
				Directories: args[1:],
				PlanPath:    args[0],
				Pattern:     pattern,
				Recursive:   recursive,
				Debounce:    debounce,
			}

			watcher, err := w.New(wcfg)
			if err != nil {
				return err
			}
			watcher.Logger = env.Logger.With("component", "watch")

			exec := plan.NewExecutor(defaults, env.Logger)
			save := workbook.SaveOptions{Backup: backup || env.Config.Backup}
			watcher.Handler = func(ctx context.Context, path string) (err error) {
				entry := audit.NewEntry("watch", []string{args[0], path})
				entry.Workbook = path
				defer func() { env.Finish(cmd, entry, err) }()

				results, err := exec.ApplyFile(ctx, p, path, "", save)
				entry.Inserted = plan.Inserted(results)
				if err == nil {
					fmt.Fprintf(env.Out, "%s  %s: inserted %d row(s)\n", time.Now().Format("15:04:05"), path, entry.Inserted)
				}
				return err
			}

			dir := config.Dir()
			if err := w.WritePIDFile(dir); err != nil {
				env.Logger.Warn("could not write PID file", "err", err)
			}
			defer w.RemovePIDFile(dir)

			// Saved for the status command
			if err := w.SaveConfig(dir, watcher.Config); err != nil {
				env.Logger.Warn("could not save watch config", "err", err)
			}

			fmt.Fprintf(env.Out, "Watching %s with plan %q\n", strings.Join(wcfg.Directories, ", "), p.Name)
			fmt.Fprintln(env.Out, "Press Ctrl+C to stop")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return watcher.Start(ctx)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Watch directories recursively")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Only process workbooks whose name matches this glob")
	cmd.Flags().IntVar(&debounce, "debounce", 500, "Debounce interval in milliseconds")
	cmd.Flags().BoolVar(&backup, "backup", false, "Keep a copy of each original at <workbook>.bak")

	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			dir := config.Dir()
			pid, err := w.ReadPIDFile(dir)
			if err != nil {
				return output.User(fmt.Errorf("no watcher running (PID file not found)"))
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("could not find process %d: %w", pid, err)
			}

			if err := process.Signal(syscall.SIGTERM); err != nil {
				w.RemovePIDFile(dir)
				return fmt.Errorf("could not stop watcher (PID %d): %w", pid, err)
			}
			w.RemovePIDFile(dir)

			return env.Writer().Result("watch stop", map[string]any{"stopped": true, "pid": pid}, func(out io.Writer) {
				fmt.Fprintf(out, "Stopped watcher (PID %d)\n", pid)
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current watcher status",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			dir := config.Dir()

			pid, err := w.ReadPIDFile(dir)
			running := err == nil

			// Signal 0 checks that the process still exists.
			if running {
				process, err := os.FindProcess(pid)
				if err != nil || process.Signal(syscall.Signal(0)) != nil {
					running = false
					w.RemovePIDFile(dir)
				}
			}

			status := map[string]any{"running": running}
			var wcfg *w.WatchConfig
			if running {
				status["pid"] = pid
				wcfg, _ = w.LoadConfig(dir)
				if wcfg != nil {
					status["directories"] = wcfg.Directories
					status["plan"] = wcfg.PlanPath
					status["recursive"] = wcfg.Recursive
					status["debounceMs"] = wcfg.Debounce
				}
			}

			return env.Writer().Result("watch status", status, func(out io.Writer) {
				if !running {
					fmt.Fprintln(out, "Watcher is not running")
					return
				}
				fmt.Fprintf(out, "Watcher is running (PID %d)\n", pid)
				if wcfg != nil {
					fmt.Fprintf(out, "  Directories: %s\n", strings.Join(wcfg.Directories, ", "))
					fmt.Fprintf(out, "  Plan:        %s\n", wcfg.PlanPath)
					fmt.Fprintf(out, "  Recursive:   %v\n", wcfg.Recursive)
					fmt.Fprintf(out, "  Debounce:    %dms\n", wcfg.Debounce)
				}
			})
		},
	}
}
