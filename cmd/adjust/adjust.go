// Package adjust provides the "xladjust adjust" command.
package adjust

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xladjust/cmd/cmdutil"
	adjustpkg "github.com/klytics/xladjust/internal/adjust"
	"github.com/klytics/xladjust/internal/audit"
	"github.com/klytics/xladjust/internal/grid"
	"github.com/klytics/xladjust/internal/output"
	"github.com/klytics/xladjust/internal/workbook"
)

// Summary is the JSON payload of a successful adjust run.
type Summary struct {
	Workbook string            `json:"workbook"`
	Output   string            `json:"output,omitempty"`
	Sheet    string            `json:"sheet"`
	Result   *adjustpkg.Result `json:"result"`
	Saved    bool              `json:"saved"`
}

// NewCommand returns the adjust command.
func NewCommand() *cobra.Command {
	var (
		label          string
		labelColumn    string
		anchorExcludes bool
		dryRun         bool
		outputPath     string
		backup         bool
	)

	cmd := &cobra.Command{
		Use:   "adjust <workbook> <sheet> <total-label> <exclude-label>",
		Short: "Insert adjusted-total rows below each total row",
		Long: `Find every row labelled <total-label>, pair it with the nearest row above it
labelled <exclude-label>, and insert a new row below the total whose cells
subtract the exclude row from the total row.

Examples:
  xladjust adjust report.xlsx Sales Total ModelA
  xladjust adjust report.xlsx Sales Total ModelA --label "{total} ex. {exclude}"
  xladjust adjust report.xlsx "Q1 Sales" Total "Other income" --dry-run --json`,
		Args: func(cmd *cobra.Command, args []string) error {
			return output.User(cobra.ExactArgs(4)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}

			path, sheet, total, exclude := args[0], args[1], args[2], args[3]

			entry := audit.NewEntry("adjust", args)
			entry.Workbook = path
			entry.Output = outputPath
			entry.Sheets = []string{sheet}
			entry.Total = total
			entry.Exclude = exclude
			entry.DryRun = dryRun
			defer func() { env.Finish(cmd, entry, err) }()

			opts := adjustpkg.Options{
				TotalLabel:     total,
				ExcludeLabel:   exclude,
				LabelTemplate:  env.Config.LabelTemplate,
				AnchorExcludes: env.Config.AnchorExcludes || anchorExcludes,
				DryRun:         dryRun,
				Logger:         env.Logger,
			}
			if label != "" {
				opts.LabelTemplate = label
			}
			if labelColumn == "" {
				labelColumn = env.Config.LabelColumn
			}
			if labelColumn != "" {
				col, err := grid.ParseColumn(labelColumn)
				if err != nil {
					return output.User(fmt.Errorf("invalid --label-column: %w", err))
				}
				opts.LabelColumn = col
			}

			wb, err := workbook.Open(path)
			if err != nil {
				if errors.Is(err, workbook.ErrNotFound) {
					return output.User(err)
				}
				return err
			}
			defer wb.Close()

			g, err := wb.Grid(sheet)
			if err != nil {
				return err
			}

			res, err := adjustpkg.Run(cmd.Context(), g, opts)
			if err != nil {
				return withHint(err)
			}
			entry.Inserted = len(res.Insertions)

			saved := false
			if !dryRun {
				if outputPath != "" && outputPath != path {
					err = wb.SaveAs(outputPath)
				} else {
					err = wb.Save(workbook.SaveOptions{Backup: backup || env.Config.Backup})
				}
				if err != nil {
					return err
				}
				saved = true
			}

			summary := Summary{Workbook: path, Output: outputPath, Sheet: sheet, Result: res, Saved: saved}
			return env.Writer().Result("adjust", summary, func(w io.Writer) {
				printSummary(w, summary)
			})
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Label template for inserted rows; {total} and {exclude} are replaced")
	cmd.Flags().StringVar(&labelColumn, "label-column", "", "Column holding row labels, as letters (A) or a number (1)")
	cmd.Flags().BoolVar(&anchorExcludes, "anchor-excludes", false, "Keep each exclude reference on its original row")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show planned insertions without saving")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result to this path instead of in place")
	cmd.Flags().BoolVar(&backup, "backup", false, "Keep a copy of the original at <workbook>.bak")
	return cmd
}

// withHint adds a next step to the domain errors a user can act on.
func withHint(err error) error {
	var (
		nf   *adjustpkg.NotFoundError
		pair *adjustpkg.PairingError
	)
	switch {
	case errors.As(err, &nf):
		col, cerr := grid.ColumnName(nf.Column)
		if cerr != nil {
			col = fmt.Sprint(nf.Column)
		}
		return fmt.Errorf("%w — labels match whole cell values exactly; use --label-column if labels are not in column %s", err, col)
	case errors.As(err, &pair):
		return fmt.Errorf("%w — each total row needs an exclude row somewhere above it", err)
	}
	return err
}

func printSummary(w io.Writer, s Summary) {
	res := s.Result
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	verb := "Inserted"
	if res.DryRun {
		verb = "Would insert"
	}
	bold.Fprintf(w, "%s %d row(s) in %s › %s\n\n", verb, len(res.Insertions), s.Workbook, s.Sheet)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ROW\tTOTAL\tEXCLUDE\tLABEL\tFIRST FORMULA\n")
	for _, ins := range res.Insertions {
		first := "-"
		if len(ins.Formulas) > 0 {
			first = ins.Formulas[0].Cell + " = " + ins.Formulas[0].Expr
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", ins.Row, ins.Total, ins.Exclude, ins.Label, first)
	}
	tw.Flush()

	if len(res.Unpaired) > 0 {
		fmt.Fprintln(w)
		yellow.Fprintf(w, "! total rows %v have no exclude row above them and were skipped\n", res.Unpaired)
	}

	fmt.Fprintln(w)
	switch {
	case res.DryRun:
		fmt.Fprintln(w, "Dry run: nothing was saved")
	case s.Output != "" && s.Output != s.Workbook:
		green.Fprintf(w, "✓ Saved to %s\n", s.Output)
	default:
		green.Fprintf(w, "✓ Saved %s\n", s.Workbook)
	}
}
