package grid

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is a Grid backed by one worksheet of an excelize workbook. Row
// insertion goes through excelize, which rewrites formula references, merged
// cells and defined names on the sheet.
type Sheet struct {
	f    *excelize.File
	name string
	rows int
	cols int
}

// NewSheet wraps the named worksheet of f. The sheet must exist.
func NewSheet(f *excelize.File, name string) (*Sheet, error) {
	if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", name)
	}

	s := &Sheet{f: f, name: name}
	if err := s.measure(); err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the worksheet name.
func (s *Sheet) Name() string { return s.name }

// Rows returns the last used row.
func (s *Sheet) Rows() int { return s.rows }

// Cols returns the last used column.
func (s *Sheet) Cols() int { return s.cols }

// AdjustsReferences reports true: excelize rewrites references on insert.
func (s *Sheet) AdjustsReferences() bool { return true }

// Value returns the raw (unformatted) value of a cell.
func (s *Sheet) Value(row, col int) (string, error) {
	cell, err := s.cell(row, col)
	if err != nil {
		return "", err
	}
	v, err := s.f.GetCellValue(s.name, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", fmt.Errorf("could not read %s!%s: %w", s.name, cell, err)
	}
	return v, nil
}

// Formula returns the formula stored in a cell, or "" if it holds a literal.
func (s *Sheet) Formula(row, col int) (string, error) {
	cell, err := s.cell(row, col)
	if err != nil {
		return "", err
	}
	v, err := s.f.GetCellFormula(s.name, cell)
	if err != nil {
		return "", fmt.Errorf("could not read formula %s!%s: %w", s.name, cell, err)
	}
	return strings.TrimPrefix(v, "="), nil
}

// SetValue writes a string literal.
func (s *Sheet) SetValue(row, col int, value string) error {
	cell, err := s.cell(row, col)
	if err != nil {
		return err
	}
	if err := s.f.SetCellStr(s.name, cell, value); err != nil {
		return fmt.Errorf("could not set %s!%s: %w", s.name, cell, err)
	}
	s.grow(row, col)
	return nil
}

// SetFormula writes a formula.
func (s *Sheet) SetFormula(row, col int, formula string) error {
	cell, err := s.cell(row, col)
	if err != nil {
		return err
	}
	if err := s.f.SetCellFormula(s.name, cell, formula); err != nil {
		return fmt.Errorf("could not set formula %s!%s: %w", s.name, cell, err)
	}
	s.grow(row, col)
	return nil
}

// InsertRow inserts a blank row at pos.
func (s *Sheet) InsertRow(pos int) error {
	if pos < 1 {
		return fmt.Errorf("invalid row %d — rows start at 1", pos)
	}
	if err := s.f.InsertRows(s.name, pos, 1); err != nil {
		return fmt.Errorf("could not insert row %d in %s: %w", pos, s.name, err)
	}
	if pos <= s.rows {
		s.rows++
	} else {
		s.rows = pos
	}
	return nil
}

// measure derives the used range from the cell data and the stored
// dimension, whichever is larger.
func (s *Sheet) measure() error {
	rows, err := s.f.GetRows(s.name, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("could not read sheet %q: %w", s.name, err)
	}
	s.rows = len(rows)
	for _, row := range rows {
		if len(row) > s.cols {
			s.cols = len(row)
		}
	}

	dim, err := s.f.GetSheetDimension(s.name)
	if err != nil || dim == "" {
		return nil
	}
	parts := strings.Split(dim, ":")
	col, row, err := excelize.CellNameToCoordinates(parts[len(parts)-1])
	if err != nil {
		return nil
	}
	if row > s.rows {
		s.rows = row
	}
	if col > s.cols {
		s.cols = col
	}
	return nil
}

func (s *Sheet) grow(row, col int) {
	if row > s.rows {
		s.rows = row
	}
	if col > s.cols {
		s.cols = col
	}
}

func (s *Sheet) cell(row, col int) (string, error) {
	if err := checkCoords(row, col); err != nil {
		return "", err
	}
	return CellName(col, row)
}
