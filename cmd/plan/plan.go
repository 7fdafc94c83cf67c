// Package plan provides the "xladjust plan" commands for YAML adjustment plans.
package plan

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xladjust/cmd/cmdutil"
	"github.com/klytics/xladjust/internal/audit"
	"github.com/klytics/xladjust/internal/output"
	planpkg "github.com/klytics/xladjust/internal/plan"
	"github.com/klytics/xladjust/internal/workbook"
)

// NewCommand returns the plan command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Run or validate YAML adjustment plans",
		Long: `A plan lists several adjustments for one workbook. They run in order and the
workbook is saved once, only when every adjustment succeeded.

Example plan:
  name: quarterly
  workbook: report.xlsx
  adjustments:
    - sheet: Sales
      total: Total
      exclude: ModelA
      label: "{total} ex. {exclude}"`,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newValidateCommand())
	return cmd
}

// RunSummary is the JSON payload of "plan run".
type RunSummary struct {
	Plan     string               `json:"plan"`
	Workbook string               `json:"workbook"`
	Output   string               `json:"output,omitempty"`
	DryRun   bool                 `json:"dryRun"`
	Inserted int                  `json:"inserted"`
	Steps    []planpkg.StepResult `json:"steps"`
}

func newRunCommand() *cobra.Command {
	var (
		dryRun     bool
		outputPath string
		backup     bool
	)

	cmd := &cobra.Command{
		Use:   "run <plan.yaml> [workbook]",
		Short: "Apply a plan to a workbook",
		Args: func(cmd *cobra.Command, args []string) error {
			return output.User(cobra.RangeArgs(1, 2)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}

			entry := audit.NewEntry("plan run", args)
			entry.DryRun = dryRun
			entry.Output = outputPath
			defer func() { env.Finish(cmd, entry, err) }()

			p, err := planpkg.Load(args[0])
			if err != nil {
				return output.User(err)
			}

			path := p.WorkbookPath(args[0])
			if len(args) == 2 {
				path = args[1]
			}
			if path == "" {
				return output.User(fmt.Errorf("plan %q names no workbook — pass one as the second argument", p.Name))
			}
			entry.Workbook = path
			for _, a := range p.Adjustments {
				entry.Sheets = append(entry.Sheets, a.Sheet)
			}

			defaults, err := env.Defaults()
			if err != nil {
				return err
			}
			exec := planpkg.NewExecutor(defaults, env.Logger)
			exec.DryRun = dryRun

			results, err := exec.ApplyFile(cmd.Context(), p, path, outputPath, workbook.SaveOptions{Backup: backup || env.Config.Backup})
			entry.Inserted = planpkg.Inserted(results)
			if err != nil {
				if errors.Is(err, workbook.ErrNotFound) {
					return output.User(err)
				}
				return err
			}

			summary := RunSummary{
				Plan:     p.Name,
				Workbook: path,
				Output:   outputPath,
				DryRun:   dryRun,
				Inserted: entry.Inserted,
				Steps:    results,
			}
			return env.Writer().Result("plan run", summary, func(w io.Writer) {
				printRun(w, summary)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show planned insertions without saving")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result to this path instead of in place")
	cmd.Flags().BoolVar(&backup, "backup", false, "Keep a copy of the original at <workbook>.bak")
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Check a plan file without touching any workbook",
		Args: func(cmd *cobra.Command, args []string) error {
			return output.User(cobra.ExactArgs(1)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			p, err := planpkg.Load(args[0])
			if err != nil {
				return output.User(err)
			}
			return env.Writer().Result("plan validate", p, func(w io.Writer) {
				color.New(color.FgGreen).Fprintf(w, "✓ Plan %q is valid\n", p.Name)
				if wb := p.WorkbookPath(args[0]); wb != "" {
					fmt.Fprintf(w, "  Workbook:    %s\n", wb)
				}
				fmt.Fprintf(w, "  Adjustments: %d\n", len(p.Adjustments))
				for _, a := range p.Adjustments {
					fmt.Fprintf(w, "    [%s] %s: %q minus %q\n", a.ID, a.Sheet, a.Total, a.Exclude)
				}
			})
		},
	}
}

func printRun(w io.Writer, s RunSummary) {
	bold := color.New(color.Bold)
	verb := "Inserted"
	if s.DryRun {
		verb = "Would insert"
	}
	bold.Fprintf(w, "Plan %s — %s %d row(s) in %s\n\n", s.Plan, verb, s.Inserted, s.Workbook)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "STEP\tSHEET\tPAIRS\tROWS\n")
	for _, step := range s.Steps {
		pairs, rows := 0, ""
		if step.Result != nil {
			pairs = len(step.Result.Pairs)
			for i, ins := range step.Result.Insertions {
				if i > 0 {
					rows += ","
				}
				rows += fmt.Sprint(ins.Row)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", step.ID, step.Sheet, pairs, rows)
	}
	tw.Flush()

	fmt.Fprintln(w)
	switch {
	case s.DryRun:
		fmt.Fprintln(w, "Dry run: nothing was saved")
	case s.Output != "" && s.Output != s.Workbook:
		color.New(color.FgGreen).Fprintf(w, "✓ Saved to %s\n", s.Output)
	default:
		color.New(color.FgGreen).Fprintf(w, "✓ Saved %s\n", s.Workbook)
	}
}
