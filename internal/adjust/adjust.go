// Package adjust inserts "total minus excluded" rows into a grid.
//
// A run locates the rows labelled as totals and as excludes in one label
// column, pairs every total with the nearest exclude row above it, and
// inserts a row under each paired total whose cells subtract the exclude row
// from the total row column by column. Nothing is written unless pairing
// succeeds.
package adjust

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/klytics/xladjust/internal/grid"
)

// Options describes one adjustment.
type Options struct {
	TotalLabel     string
	ExcludeLabel   string
	LabelTemplate  string
	LabelColumn    int
	AnchorExcludes bool
	// DryRun plans the insertions without mutating the grid.
	DryRun bool
	Logger *slog.Logger
}

// Result reports what a run found and did.
type Result struct {
	Totals     []int       `json:"totals"`
	Excludes   []int       `json:"excludes"`
	Pairs      []Pair      `json:"pairs"`
	Unpaired   []int       `json:"unpaired,omitempty"`
	Insertions []Insertion `json:"insertions"`
	DryRun     bool        `json:"dryRun"`
}

// Run locates, pairs and inserts. It returns a *NotFoundError when either
// label matches no row and a *PairingError when no total can be paired; in
// both cases g is left untouched.
func Run(ctx context.Context, g grid.Grid, opts Options) (*Result, error) {
	if opts.TotalLabel == "" || opts.ExcludeLabel == "" {
		return nil, fmt.Errorf("both a total label and an exclude label are required")
	}
	if opts.LabelColumn == 0 {
		opts.LabelColumn = 1
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	totals, err := Locate(g, opts.TotalLabel, opts.LabelColumn)
	if err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return nil, &NotFoundError{Role: RoleTotal, Label: opts.TotalLabel, Column: opts.LabelColumn}
	}

	excludes, err := Locate(g, opts.ExcludeLabel, opts.LabelColumn)
	if err != nil {
		return nil, err
	}
	if len(excludes) == 0 {
		return nil, &NotFoundError{Role: RoleExclude, Label: opts.ExcludeLabel, Column: opts.LabelColumn}
	}
	log.Debug("located rows", "total", opts.TotalLabel, "totals", totals, "exclude", opts.ExcludeLabel, "excludes", excludes)

	if both := overlap(totals, excludes); len(both) > 0 {
		return nil, &PairingError{Total: opts.TotalLabel, Exclude: opts.ExcludeLabel, Overlap: both}
	}

	pairs := Match(totals, excludes)
	if len(pairs) == 0 {
		return nil, &PairingError{Total: opts.TotalLabel, Exclude: opts.ExcludeLabel}
	}
	res := &Result{
		Totals:   totals,
		Excludes: excludes,
		Pairs:    pairs,
		Unpaired: unpaired(totals, pairs),
		DryRun:   opts.DryRun,
	}
	if len(res.Unpaired) > 0 {
		log.Info("total rows without an exclude row above them are skipped", "rows", res.Unpaired)
	}

	plan, err := Plan(pairs, InsertOptions{
		TotalLabel:     opts.TotalLabel,
		ExcludeLabel:   opts.ExcludeLabel,
		LabelTemplate:  opts.LabelTemplate,
		LabelColumn:    opts.LabelColumn,
		Cols:           g.Cols(),
		AnchorExcludes: opts.AnchorExcludes,
	})
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		res.Insertions = plan
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := Apply(ctx, g, opts.LabelColumn, plan)
	res.Insertions = plan[:n]
	if err != nil {
		return res, fmt.Errorf("inserted %d of %d rows: %w", n, len(plan), err)
	}
	for _, ins := range res.Insertions {
		log.Debug("inserted row", "row", ins.Row, "total", ins.Total, "exclude", ins.Exclude, "label", ins.Label)
	}
	return res, nil
}

func unpaired(totals []int, pairs []Pair) []int {
	paired := make(map[int]bool, len(pairs))
	for _, p := range pairs {
		paired[p.Total] = true
	}
	var out []int
	for _, t := range totals {
		if !paired[t] {
			out = append(out, t)
		}
	}
	return out
}
