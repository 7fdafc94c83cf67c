// Package batch provides the "xladjust batch" command, which applies one plan
// to many workbooks.
package batch

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xladjust/cmd/cmdutil"
	"github.com/klytics/xladjust/internal/audit"
	"github.com/klytics/xladjust/internal/output"
	"github.com/klytics/xladjust/internal/plan"
	"github.com/klytics/xladjust/internal/workbook"
)

// NewCommand returns the batch subcommand.
func NewCommand() *cobra.Command {
	var (
		outDir      string
		concurrency int
		dryRun      bool
		backup      bool
	)

	cmd := &cobra.Command{
		Use:   "batch <plan.yaml> <glob-pattern> [glob-pattern...]",
		Short: "Apply a plan to every workbook matching a pattern",
		Long: `Applies a plan to all workbooks matching the glob patterns. Each workbook is
adjusted and saved independently; on error the batch logs the failure and
continues with the next file.

Example:
  xladjust batch quarterly.yaml 'reports/*.xlsx' --concurrency 4 --out-dir adjusted`,
		Args: func(cmd *cobra.Command, args []string) error {
			return output.User(cobra.MinimumNArgs(2)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}

			entry := audit.NewEntry("batch", args)
			entry.DryRun = dryRun
			entry.Output = outDir
			defer func() { env.Finish(cmd, entry, err) }()

			p, err := plan.Load(args[0])
			if err != nil {
				return output.User(err)
			}

			files, err := expand(args[1:])
			if err != nil {
				return err
			}
			entry.Sheets = sheets(p)

			defaults, err := env.Defaults()
			if err != nil {
				return err
			}
			exec := plan.NewExecutor(defaults, env.Logger)
			exec.DryRun = dryRun

			results, err := exec.ApplyBatch(cmd.Context(), p, files, plan.BatchOptions{
				OutDir:      outDir,
				Save:        workbook.SaveOptions{Backup: backup || env.Config.Backup},
				Concurrency: concurrency,
				Progress: func(done, total int, r plan.FileResult) {
					if env.JSON {
						return
					}
					status := color.GreenString("ok")
					if r.Status != "ok" {
						status = color.RedString("error")
					}
					fmt.Fprintf(env.Out, "[%d/%d] %s %s\n", done, total, filepath.Base(r.File), status)
				},
			})
			if errors.Is(err, plan.ErrOutputCollision) {
				return output.User(err)
			}
			if err != nil {
				return err
			}

			failed := plan.Failed(results)
			for _, r := range results {
				entry.Inserted += r.Inserted
			}

			err = env.Writer().Result("batch", results, func(w io.Writer) {
				for _, r := range failed {
					fmt.Fprintf(w, "  %s: %s\n", r.File, r.Error)
				}
				fmt.Fprintf(w, "\nProcessed %d workbooks. %d succeeded, %d failed. %d row(s) inserted.\n",
					len(results), len(results)-len(failed), len(failed), entry.Inserted)
			})
			if err != nil {
				return err
			}
			if len(failed) > 0 {
				// The first failure decides the exit code.
				return fmt.Errorf("%d of %d workbooks failed: %w", len(failed), len(results), failed[0].Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "Write adjusted copies here instead of saving in place")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Number of workbooks processed in parallel")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show planned insertions without saving")
	cmd.Flags().BoolVar(&backup, "backup", false, "Keep a copy of each original at <workbook>.bak")
	return cmd
}

// expand resolves the glob patterns into a sorted, de-duplicated file list.
func expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, output.User(fmt.Errorf("invalid glob pattern %q: %w", pattern, err))
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, output.User(fmt.Errorf("no files matched %v", patterns))
	}
	sort.Strings(files)
	return files, nil
}

func sheets(p *plan.Plan) []string {
	var out []string
	for _, a := range p.Adjustments {
		out = append(out, a.Sheet)
	}
	return out
}
