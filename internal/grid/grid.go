// Package grid defines the tabular surface that adjustments are applied to,
// together with an in-memory backend and an excelize-backed worksheet backend.
//
// All coordinates are 1-based: row 1 is the first row, column 1 is column A.
// Formulas are passed without a leading "=".
package grid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Grid is a mutable table of cells addressed by (row, col).
type Grid interface {
	// Rows returns the number of rows currently in use.
	Rows() int
	// Cols returns the number of columns currently in use.
	Cols() int
	// Value returns the literal value of a cell. Empty cells read as "".
	Value(row, col int) (string, error)
	// SetValue writes a literal string into a cell.
	SetValue(row, col int, value string) error
	// SetFormula writes a live formula into a cell.
	SetFormula(row, col int, formula string) error
	// InsertRow inserts one blank row at pos, moving rows pos..Rows() down by one.
	InsertRow(pos int) error
}

// ReferenceAdjuster is implemented by backends that rewrite existing formula
// references when InsertRow shifts the rows they point at.
type ReferenceAdjuster interface {
	AdjustsReferences() bool
}

// AdjustsReferences reports whether g rewrites formula references on row insertion.
func AdjustsReferences(g Grid) bool {
	if ra, ok := g.(ReferenceAdjuster); ok {
		return ra.AdjustsReferences()
	}
	return false
}

// CellName converts (col, row) into a ColumnLettersRowNumber reference such as "C5".
func CellName(col, row int) (string, error) {
	return excelize.CoordinatesToCellName(col, row)
}

// ColumnName converts a 1-based column number into its letters ("A", "AB", ...).
func ColumnName(col int) (string, error) {
	return excelize.ColumnNumberToName(col)
}

// ParseColumn accepts a column given either as a 1-based number ("3") or as
// letters ("C", "c", "AB") and returns its 1-based number.
func ParseColumn(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty column")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("column %d is out of range — columns start at 1", n)
		}
		if n > excelize.MaxColumns {
			return 0, fmt.Errorf("column %d is out of range — the maximum is %d", n, excelize.MaxColumns)
		}
		return n, nil
	}
	n, err := excelize.ColumnNameToNumber(strings.ToUpper(s))
	if err != nil {
		return 0, fmt.Errorf("invalid column %q: %w", s, err)
	}
	return n, nil
}

func checkCoords(row, col int) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("invalid coordinates (row %d, col %d) — rows and columns start at 1", row, col)
	}
	return nil
}
