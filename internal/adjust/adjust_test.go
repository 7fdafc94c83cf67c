package adjust

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/xladjust/internal/grid"
)

func newSheet(labels ...string) *grid.Memory {
	rows := [][]string{{"Model", "Q1", "Q2"}}
	for i, l := range labels {
		rows = append(rows, []string{l, strconv.Itoa(10 * (i + 1)), strconv.Itoa(100 * (i + 1))})
	}
	return grid.NewMemory(rows)
}

func cell(t *testing.T, g *grid.Memory, row, col int) grid.Cell {
	t.Helper()
	c, err := g.Cell(row, col)
	require.NoError(t, err)
	return c
}

func TestLocateExactMatch(t *testing.T) {
	g := newSheet("Total", "total", "Total ", "ModelA", "Total")

	rows, err := Locate(g, "Total", 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 6}, rows)

	rows, err = Locate(g, "Missing", 1)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLocateOtherColumn(t *testing.T) {
	g := grid.NewMemory([][]string{
		{"", "Total"},
		{"Total", "x"},
		{"", "Total"},
	})
	rows, err := Locate(g, "Total", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, rows)

	_, err = Locate(g, "Total", 0)
	assert.Error(t, err)
}

func TestLocateAscendingProperty(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	labels := []string{"Total", "ModelA", "Other", ""}
	for i := 0; i < 50; i++ {
		n := r.Intn(40)
		data := make([][]string, n)
		var want []int
		for j := range data {
			l := labels[r.Intn(len(labels))]
			data[j] = []string{l, "1"}
			if l == "Total" {
				want = append(want, j+1)
			}
		}
		got, err := Locate(grid.NewMemory(data), "Total", 1)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		for k := 1; k < len(got); k++ {
			assert.Less(t, got[k-1], got[k])
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		totals   []int
		excludes []int
		want     []Pair
	}{
		{"single", []int{6}, []int{3}, []Pair{{6, 3}}},
		{"shared exclude", []int{4, 9}, []int{2}, []Pair{{4, 2}, {9, 2}}},
		{"nearest wins", []int{10}, []int{2, 5, 8}, []Pair{{10, 8}}},
		{"interleaved", []int{3, 7, 12}, []int{2, 5, 6, 11}, []Pair{{3, 2}, {7, 6}, {12, 11}}},
		{"total without exclude dropped", []int{1, 5}, []int{3}, []Pair{{5, 3}}},
		{"excludes below totals", []int{2, 3}, []int{7, 9}, nil},
		{"no totals", nil, []int{1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.totals, tt.excludes))
		})
	}
}

func TestMatchNearestAboveProperty(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		var totals, excludes []int
		for row := 1; row <= 30; row++ {
			switch r.Intn(4) {
			case 0:
				totals = append(totals, row)
			case 1:
				excludes = append(excludes, row)
			}
		}

		pairs := Match(totals, excludes)
		byTotal := make(map[int]int, len(pairs))
		for _, p := range pairs {
			byTotal[p.Total] = p.Exclude
		}
		for _, tr := range totals {
			best := 0
			for _, e := range excludes {
				if e < tr {
					best = e
				}
			}
			got, ok := byTotal[tr]
			if best == 0 {
				assert.False(t, ok, "total %d has no exclude above it but was paired with %d", tr, got)
				continue
			}
			assert.True(t, ok, "total %d should be paired", tr)
			assert.Equal(t, best, got, "total %d", tr)
		}
	}
}

func TestFormatLabel(t *testing.T) {
	assert.Equal(t, "Total (without ModelA)", FormatLabel("", "Total", "ModelA"))
	assert.Equal(t, "Revenue ex. ProductX", FormatLabel("{total} ex. {exclude}", "Revenue", "ProductX"))
	assert.Equal(t, "Net", FormatLabel("Net", "Revenue", "ProductX"))
	assert.Equal(t, "A-A/B", FormatLabel("{total}-{total}/{exclude}", "A", "B"))
}

func TestPlanOffsets(t *testing.T) {
	plan, err := Plan([]Pair{{5, 2}, {9, 2}}, InsertOptions{
		TotalLabel:   "Total",
		ExcludeLabel: "ModelA",
		LabelColumn:  1,
		Cols:         3,
	})
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, 6, plan[0].Row)
	assert.Equal(t, 5, plan[0].Total)
	assert.Equal(t, 2, plan[0].Exclude)
	assert.Equal(t, []Formula{
		{Col: 2, Cell: "B6", Expr: "B5-B2"},
		{Col: 3, Cell: "C6", Expr: "C5-C2"},
	}, plan[0].Formulas)

	assert.Equal(t, 11, plan[1].Row)
	assert.Equal(t, 10, plan[1].Total)
	assert.Equal(t, 3, plan[1].Exclude)
	assert.Equal(t, "B10-B3", plan[1].Formulas[0].Expr)
}

func TestPlanAnchorExcludes(t *testing.T) {
	plan, err := Plan([]Pair{{4, 2}, {9, 2}, {14, 12}}, InsertOptions{
		TotalLabel:     "Total",
		ExcludeLabel:   "ModelA",
		LabelColumn:    1,
		Cols:           2,
		AnchorExcludes: true,
	})
	require.NoError(t, err)
	require.Len(t, plan, 3)

	assert.Equal(t, "B4-B2", plan[0].Formulas[0].Expr)
	assert.Equal(t, "B10-B2", plan[1].Formulas[0].Expr)
	// Both earlier insertions landed above row 12.
	assert.Equal(t, 16, plan[2].Total)
	assert.Equal(t, 14, plan[2].Exclude)
}

func TestPlanRejectsBadPairs(t *testing.T) {
	opts := InsertOptions{LabelColumn: 1, Cols: 2}

	_, err := Plan([]Pair{{9, 2}, {5, 2}}, opts)
	assert.Error(t, err)

	_, err = Plan([]Pair{{3, 3}}, opts)
	assert.Error(t, err)

	_, err = Plan([]Pair{{3, 1}}, InsertOptions{Cols: 2})
	assert.Error(t, err)
}

func TestPlanNoDataColumns(t *testing.T) {
	plan, err := Plan([]Pair{{3, 2}}, InsertOptions{TotalLabel: "T", ExcludeLabel: "E", LabelColumn: 3, Cols: 3})
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Empty(t, plan[0].Formulas)
	assert.Equal(t, "T (without E)", plan[0].Label)
}

func TestRunSingleTotal(t *testing.T) {
	g := newSheet("ModelB", "ModelA", "ModelC", "Other", "Total")

	res, err := Run(context.Background(), g, Options{TotalLabel: "Total", ExcludeLabel: "ModelA", LabelColumn: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{6}, res.Totals)
	assert.Equal(t, []int{3}, res.Excludes)
	assert.Equal(t, []Pair{{6, 3}}, res.Pairs)

	require.Equal(t, 7, g.Rows())
	assert.Equal(t, "Total", cell(t, g, 6, 1).Value)
	assert.Equal(t, "Total (without ModelA)", cell(t, g, 7, 1).Value)
	assert.Equal(t, "B6-B3", cell(t, g, 7, 2).Formula)
	assert.Equal(t, "C6-C3", cell(t, g, 7, 3).Formula)
}

func TestRunTwoTotalsShareExclude(t *testing.T) {
	g := newSheet("ModelA", "x", "Total", "x", "x", "x", "x", "Total")

	res, err := Run(context.Background(), g, Options{TotalLabel: "Total", ExcludeLabel: "ModelA"})
	require.NoError(t, err)
	assert.Equal(t, []Pair{{4, 2}, {9, 2}}, res.Pairs)
	require.Len(t, res.Insertions, 2)

	assert.Equal(t, "Total (without ModelA)", cell(t, g, 5, 1).Value)
	assert.Equal(t, "B4-B2", cell(t, g, 5, 2).Formula)

	assert.Equal(t, "Total", cell(t, g, 10, 1).Value)
	assert.Equal(t, "Total (without ModelA)", cell(t, g, 11, 1).Value)
	assert.Equal(t, "B10-B3", cell(t, g, 11, 2).Formula)
	assert.Equal(t, "C10-C3", cell(t, g, 11, 3).Formula)
}

func TestRunAnchorExcludes(t *testing.T) {
	g := newSheet("ModelA", "x", "Total", "x", "x", "x", "x", "Total")

	_, err := Run(context.Background(), g, Options{TotalLabel: "Total", ExcludeLabel: "ModelA", AnchorExcludes: true})
	require.NoError(t, err)
	assert.Equal(t, "B10-B2", cell(t, g, 11, 2).Formula)
}

func TestRunCustomTemplate(t *testing.T) {
	g := newSheet("ProductX", "Revenue")

	_, err := Run(context.Background(), g, Options{
		TotalLabel:    "Revenue",
		ExcludeLabel:  "ProductX",
		LabelTemplate: "{total} ex. {exclude}",
	})
	require.NoError(t, err)
	assert.Equal(t, "Revenue ex. ProductX", cell(t, g, 4, 1).Value)
}

func TestRunErrorsLeaveGridUntouched(t *testing.T) {
	tests := []struct {
		name    string
		labels  []string
		total   string
		exclude string
		check   func(t *testing.T, err error)
	}{
		{
			name: "missing total", labels: []string{"ModelA"}, total: "Total", exclude: "ModelA",
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, RoleTotal, nf.Role)
			},
		},
		{
			name: "missing exclude", labels: []string{"Total"}, total: "Total", exclude: "ModelA",
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, RoleExclude, nf.Role)
				assert.Contains(t, err.Error(), "column A")
			},
		},
		{
			name: "excludes below totals", labels: []string{"Total", "ModelA"}, total: "Total", exclude: "ModelA",
			check: func(t *testing.T, err error) {
				var pe *PairingError
				require.ErrorAs(t, err, &pe)
				assert.Empty(t, pe.Overlap)
			},
		},
		{
			name: "same label", labels: []string{"Total", "Total"}, total: "Total", exclude: "Total",
			check: func(t *testing.T, err error) {
				var pe *PairingError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, []int{2, 3}, pe.Overlap)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newSheet(tt.labels...)
			before := g.Snapshot()

			res, err := Run(context.Background(), g, Options{TotalLabel: tt.total, ExcludeLabel: tt.exclude})
			assert.Nil(t, res)
			tt.check(t, err)
			assert.Equal(t, before, g.Snapshot())
		})
	}
}

func TestRunDryRun(t *testing.T) {
	g := newSheet("ModelA", "Total")
	before := g.Snapshot()

	res, err := Run(context.Background(), g, Options{TotalLabel: "Total", ExcludeLabel: "ModelA", DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	require.Len(t, res.Insertions, 1)
	assert.Equal(t, 4, res.Insertions[0].Row)
	assert.Equal(t, before, g.Snapshot())
}

func TestRunReportsUnpairedTotals(t *testing.T) {
	g := newSheet("Total", "ModelA", "Total")

	res, err := Run(context.Background(), g, Options{TotalLabel: "Total", ExcludeLabel: "ModelA"})
	require.NoError(t, err)
	assert.Equal(t, []Pair{{4, 3}}, res.Pairs)
	assert.Equal(t, []int{2}, res.Unpaired)
}

func TestRunCancelledBeforeApply(t *testing.T) {
	g := newSheet("ModelA", "Total")
	before := g.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, g, Options{TotalLabel: "Total", ExcludeLabel: "ModelA"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, g.Snapshot())
}

func TestRunRequiresLabels(t *testing.T) {
	_, err := Run(context.Background(), newSheet("Total"), Options{TotalLabel: "Total"})
	assert.Error(t, err)
}

type failingGrid struct {
	*grid.Memory
	inserts   int
	failAfter int
}

func (f *failingGrid) InsertRow(pos int) error {
	if f.inserts == f.failAfter {
		return errors.New("disk full")
	}
	f.inserts++
	return f.Memory.InsertRow(pos)
}

func TestRunPartialApply(t *testing.T) {
	g := &failingGrid{Memory: newSheet("ModelA", "Total", "Total"), failAfter: 1}

	res, err := Run(context.Background(), g, Options{TotalLabel: "Total", ExcludeLabel: "ModelA"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inserted 1 of 2 rows")
	require.NotNil(t, res)
	assert.Len(t, res.Insertions, 1)
}
