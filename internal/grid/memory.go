package grid

import "fmt"

// Cell is one cell of a Memory grid. A cell holds either a literal value or a formula.
type Cell struct {
	Value   string `json:"value,omitempty"`
	Formula string `json:"formula,omitempty"`
}

// Memory is a Grid held entirely in memory. It does not rewrite formula
// references on row insertion.
type Memory struct {
	cells [][]Cell
	cols  int
}

// NewMemory builds a Memory grid from rows of literal values. rows[0] becomes row 1.
func NewMemory(rows [][]string) *Memory {
	m := &Memory{cells: make([][]Cell, len(rows))}
	for i, row := range rows {
		m.cells[i] = make([]Cell, len(row))
		for j, v := range row {
			m.cells[i][j] = Cell{Value: v}
		}
		if len(row) > m.cols {
			m.cols = len(row)
		}
	}
	return m
}

// Rows returns the number of rows.
func (m *Memory) Rows() int { return len(m.cells) }

// Cols returns the width of the widest row.
func (m *Memory) Cols() int { return m.cols }

// AdjustsReferences always reports false.
func (m *Memory) AdjustsReferences() bool { return false }

// Value returns the literal value at (row, col).
func (m *Memory) Value(row, col int) (string, error) {
	c, err := m.Cell(row, col)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// Cell returns the full cell at (row, col). Cells outside the used range are empty.
func (m *Memory) Cell(row, col int) (Cell, error) {
	if err := checkCoords(row, col); err != nil {
		return Cell{}, err
	}
	if row > len(m.cells) || col > len(m.cells[row-1]) {
		return Cell{}, nil
	}
	return m.cells[row-1][col-1], nil
}

// SetValue writes a literal value, clearing any formula in the cell.
func (m *Memory) SetValue(row, col int, value string) error {
	c, err := m.ensure(row, col)
	if err != nil {
		return err
	}
	*c = Cell{Value: value}
	return nil
}

// SetFormula writes a formula, clearing any literal value in the cell.
func (m *Memory) SetFormula(row, col int, formula string) error {
	c, err := m.ensure(row, col)
	if err != nil {
		return err
	}
	*c = Cell{Formula: formula}
	return nil
}

// InsertRow inserts a blank row at pos. Inserting past the last row pads with blank rows.
func (m *Memory) InsertRow(pos int) error {
	if pos < 1 {
		return fmt.Errorf("invalid row %d — rows start at 1", pos)
	}
	for len(m.cells) < pos-1 {
		m.cells = append(m.cells, nil)
	}
	m.cells = append(m.cells, nil)
	copy(m.cells[pos:], m.cells[pos-1:])
	m.cells[pos-1] = nil
	return nil
}

// Snapshot returns a copy of every row, with formula cells rendered as "=<formula>".
func (m *Memory) Snapshot() [][]string {
	out := make([][]string, len(m.cells))
	for i, row := range m.cells {
		out[i] = make([]string, len(row))
		for j, c := range row {
			if c.Formula != "" {
				out[i][j] = "=" + c.Formula
			} else {
				out[i][j] = c.Value
			}
		}
	}
	return out
}

func (m *Memory) ensure(row, col int) (*Cell, error) {
	if err := checkCoords(row, col); err != nil {
		return nil, err
	}
	for len(m.cells) < row {
		m.cells = append(m.cells, nil)
	}
	r := m.cells[row-1]
	for len(r) < col {
		r = append(r, Cell{})
	}
	m.cells[row-1] = r
	if col > m.cols {
		m.cols = col
	}
	return &r[col-1], nil
}
