package adjust

import (
	"context"
	"fmt"
	"strings"

	"github.com/klytics/xladjust/internal/grid"
)

// DefaultLabelTemplate is used when no label template is configured.
const DefaultLabelTemplate = "{total} (without {exclude})"

// FormatLabel substitutes {total} and {exclude} in template. An empty
// template falls back to DefaultLabelTemplate.
func FormatLabel(template, total, exclude string) string {
	if template == "" {
		template = DefaultLabelTemplate
	}
	return strings.NewReplacer("{total}", total, "{exclude}", exclude).Replace(template)
}

// Formula is one formula cell of an inserted row.
type Formula struct {
	Col  int    `json:"col"`
	Cell string `json:"cell"`
	Expr string `json:"expr"`
}

// Insertion describes one row to insert, in coordinates that are live at the
// moment it is applied (after every earlier insertion of the same run).
type Insertion struct {
	Pair     Pair      `json:"pair"`
	Row      int       `json:"row"`
	Total    int       `json:"total"`
	Exclude  int       `json:"exclude"`
	Label    string    `json:"label"`
	Formulas []Formula `json:"formulas,omitempty"`
}

// InsertOptions controls how inserted rows are labelled and which columns get formulas.
type InsertOptions struct {
	TotalLabel    string
	ExcludeLabel  string
	LabelTemplate string
	LabelColumn   int
	// Cols is the last column that receives a formula.
	Cols int
	// AnchorExcludes shifts each exclude reference only by the insertions
	// that landed above it, instead of by every earlier insertion.
	AnchorExcludes bool
}

// Plan computes the insertions for pairs without touching any grid. Pairs
// must be strictly ascending by Total.
func Plan(pairs []Pair, opts InsertOptions) ([]Insertion, error) {
	if opts.LabelColumn < 1 {
		return nil, fmt.Errorf("invalid label column %d — columns start at 1", opts.LabelColumn)
	}

	label := FormatLabel(opts.LabelTemplate, opts.TotalLabel, opts.ExcludeLabel)
	out := make([]Insertion, 0, len(pairs))
	offset := 0

	for i, p := range pairs {
		if p.Exclude >= p.Total || p.Exclude < 1 {
			return nil, fmt.Errorf("invalid pair %d: exclude row %d must be above total row %d", i+1, p.Exclude, p.Total)
		}
		if i > 0 && p.Total <= pairs[i-1].Total {
			return nil, fmt.Errorf("pairs out of order: total row %d follows %d", p.Total, pairs[i-1].Total)
		}

		tr := p.Total + offset
		ex := p.Exclude + offset
		if opts.AnchorExcludes {
			ex = p.Exclude + insertedAbove(pairs[:i], p.Exclude)
		}

		ins := Insertion{
			Pair:    p,
			Row:     tr + 1,
			Total:   tr,
			Exclude: ex,
			Label:   label,
		}
		for col := opts.LabelColumn + 1; col <= opts.Cols; col++ {
			f, err := subtraction(col, ins.Row, tr, ex)
			if err != nil {
				return nil, err
			}
			ins.Formulas = append(ins.Formulas, f)
		}

		out = append(out, ins)
		offset++
	}
	return out, nil
}

// Apply performs planned insertions against g in order. It returns the
// number of insertions completed; on error the earlier ones remain in g.
func Apply(ctx context.Context, g grid.Grid, labelCol int, plan []Insertion) (int, error) {
	for i, ins := range plan {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := g.InsertRow(ins.Row); err != nil {
			return i, err
		}
		if err := g.SetValue(ins.Row, labelCol, ins.Label); err != nil {
			return i, err
		}
		for _, f := range ins.Formulas {
			if err := g.SetFormula(ins.Row, f.Col, f.Expr); err != nil {
				return i, err
			}
		}
	}
	return len(plan), nil
}

// insertedAbove counts earlier insertions that landed at or above row, i.e.
// those whose original total row lies above it.
func insertedAbove(done []Pair, row int) int {
	n := 0
	for _, p := range done {
		if p.Total < row {
			n++
		}
	}
	return n
}

func subtraction(col, row, total, exclude int) (Formula, error) {
	target, err := grid.CellName(col, row)
	if err != nil {
		return Formula{}, err
	}
	minuend, err := grid.CellName(col, total)
	if err != nil {
		return Formula{}, err
	}
	subtrahend, err := grid.CellName(col, exclude)
	if err != nil {
		return Formula{}, err
	}
	return Formula{Col: col, Cell: target, Expr: minuend + "-" + subtrahend}, nil
}
