package adjust

import (
	"fmt"

	"github.com/klytics/xladjust/internal/grid"
)

// Locate returns, in ascending order, every row whose cell in column col
// equals label exactly. No trimming or case folding is applied.
func Locate(g grid.Grid, label string, col int) ([]int, error) {
	if col < 1 {
		return nil, fmt.Errorf("invalid label column %d — columns start at 1", col)
	}

	var rows []int
	for row := 1; row <= g.Rows(); row++ {
		v, err := g.Value(row, col)
		if err != nil {
			return nil, err
		}
		if v == label {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func columnLetters(col int) (string, error) {
	return grid.ColumnName(col)
}
