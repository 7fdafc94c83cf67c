package plan

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/klytics/xladjust/internal/adjust"
	"github.com/klytics/xladjust/internal/grid"
	"github.com/klytics/xladjust/internal/workbook"
)

// Defaults fill in adjustment fields a plan leaves empty.
type Defaults struct {
	LabelTemplate  string
	LabelColumn    int
	AnchorExcludes bool
}

// StepResult holds the outcome of one adjustment.
type StepResult struct {
	ID     string         `json:"id"`
	Sheet  string         `json:"sheet"`
	Result *adjust.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Executor applies plans. In dry-run mode each adjustment is planned against
// the workbook as loaded, so adjustments on the same sheet do not see each
// other's rows.
type Executor struct {
	Defaults Defaults
	DryRun   bool
	Logger   *slog.Logger
}

// NewExecutor creates an executor with the given defaults.
func NewExecutor(defaults Defaults, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{Defaults: defaults, Logger: logger}
}

// Run applies every adjustment in order to wb, stopping at the first failure.
// It never saves; see ApplyFile.
func (e *Executor) Run(ctx context.Context, p *Plan, wb *workbook.Workbook) ([]StepResult, error) {
	var results []StepResult

	for i, a := range p.Adjustments {
		e.Logger.Debug("running adjustment", "plan", p.Name, "step", fmt.Sprintf("%d/%d", i+1, len(p.Adjustments)), "id", a.ID, "sheet", a.Sheet)

		step := StepResult{ID: a.ID, Sheet: a.Sheet}
		res, err := e.runStep(ctx, a, wb)
		if err != nil {
			step.Error = err.Error()
			results = append(results, step)
			return results, fmt.Errorf("adjustment %q: %w", a.ID, err)
		}
		step.Result = res
		results = append(results, step)
	}

	return results, nil
}

func (e *Executor) runStep(ctx context.Context, a Adjustment, wb *workbook.Workbook) (*adjust.Result, error) {
	g, err := wb.Grid(a.Sheet)
	if err != nil {
		return nil, err
	}

	opts, err := e.options(a)
	if err != nil {
		return nil, err
	}
	return adjust.Run(ctx, g, opts)
}

func (e *Executor) options(a Adjustment) (adjust.Options, error) {
	opts := adjust.Options{
		TotalLabel:     a.Total,
		ExcludeLabel:   a.Exclude,
		LabelTemplate:  e.Defaults.LabelTemplate,
		LabelColumn:    e.Defaults.LabelColumn,
		AnchorExcludes: e.Defaults.AnchorExcludes,
		DryRun:         e.DryRun,
		Logger:         e.Logger,
	}
	if a.Label != "" {
		opts.LabelTemplate = a.Label
	}
	if a.LabelColumn != "" {
		col, err := grid.ParseColumn(a.LabelColumn)
		if err != nil {
			return opts, err
		}
		opts.LabelColumn = col
	}
	if a.AnchorExcludes != nil {
		opts.AnchorExcludes = *a.AnchorExcludes
	}
	return opts, nil
}

// ApplyFile opens the workbook at path, runs p against it and, unless the
// executor is in dry-run mode or a step failed, saves the result. An empty
// output saves in place.
func (e *Executor) ApplyFile(ctx context.Context, p *Plan, path, output string, save workbook.SaveOptions) ([]StepResult, error) {
	wb, err := workbook.Open(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	results, err := e.Run(ctx, p, wb)
	if err != nil || e.DryRun {
		return results, err
	}

	if output != "" && output != path {
		err = wb.SaveAs(output)
	} else {
		err = wb.Save(save)
	}
	if err != nil {
		return results, err
	}
	e.Logger.Info("plan applied", "plan", p.Name, "workbook", path, "adjustments", len(results))
	return results, nil
}

// Inserted counts the rows inserted across results.
func Inserted(results []StepResult) int {
	n := 0
	for _, r := range results {
		if r.Result != nil {
			n += len(r.Result.Insertions)
		}
	}
	return n
}
