package workbook

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/xladjust/internal/adjust"
	"github.com/klytics/xladjust/internal/grid"
)

// writeFixture creates a workbook with a "Sales" sheet laid out as
// header, ModelB, ModelA, ModelC, Other, Total and an untouched "Notes" sheet.
func writeFixture(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Sales"); err != nil {
		t.Fatal(err)
	}
	rows := [][]interface{}{
		{"Model", "Q1", "Q2"},
		{"ModelB", 5, 6},
		{"ModelA", 10, 20},
		{"ModelC", 7, 8},
		{"Other", 1, 2},
		{"Total", 23, 36},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sales", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.NewSheet("Notes"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellStr("Notes", "A1", "keep me"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("/nonexistent/report.xlsx")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, ErrNotFound) || !strings.Contains(err.Error(), "/nonexistent/report.xlsx") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	if err := os.WriteFile(path, []byte("not a workbook"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected error for invalid file")
	}
}

func TestGridMissingSheet(t *testing.T) {
	wb, err := Open(writeFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()

	_, err = wb.Grid("Missing")
	var cfgErr *adjust.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.Available) != 2 || cfgErr.Available[0] != "Sales" || cfgErr.Available[1] != "Notes" {
		t.Errorf("available sheets = %v", cfgErr.Available)
	}
}

func TestGridIsCached(t *testing.T) {
	wb, err := Open(writeFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()

	a, err := wb.Grid("Sales")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := wb.Grid("Sales")
	if a != b {
		t.Error("expected the same grid for repeated lookups")
	}
	if a.Rows() != 6 || a.Cols() != 3 {
		t.Errorf("dimensions = %dx%d, want 6x3", a.Rows(), a.Cols())
	}
}

func TestAdjustAndSave(t *testing.T) {
	path := writeFixture(t)

	wb, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	g, err := wb.Grid("Sales")
	if err != nil {
		t.Fatal(err)
	}
	res, err := adjust.Run(context.Background(), g, adjust.Options{TotalLabel: "Total", ExcludeLabel: "ModelA", LabelColumn: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Insertions) != 1 {
		t.Fatalf("expected 1 insertion, got %d", len(res.Insertions))
	}
	if err := wb.Save(SaveOptions{}); err != nil {
		t.Fatal(err)
	}
	wb.Close()

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	label, _ := f.GetCellValue("Sales", "A7")
	if label != "Total (without ModelA)" {
		t.Errorf("A7 = %q", label)
	}
	for _, tc := range []struct{ cell, want string }{{"B7", "B6-B3"}, {"C7", "C6-C3"}} {
		formula, _ := f.GetCellFormula("Sales", tc.cell)
		if strings.TrimPrefix(formula, "=") != tc.want {
			t.Errorf("%s formula = %q, want %q", tc.cell, formula, tc.want)
		}
	}
	note, _ := f.GetCellValue("Notes", "A1")
	if note != "keep me" {
		t.Errorf("Notes!A1 = %q", note)
	}

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".xladjust-*"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func TestFailedRunLeavesFileUntouched(t *testing.T) {
	path := writeFixture(t)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	wb, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	g, _ := wb.Grid("Sales")
	_, err = adjust.Run(context.Background(), g, adjust.Options{TotalLabel: "Total", ExcludeLabel: "ModelZ"})
	var nf *adjust.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	wb.Close()

	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("workbook changed after a failed run")
	}
}

func TestSaveBackup(t *testing.T) {
	path := writeFixture(t)
	original, _ := os.ReadFile(path)

	wb, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()
	g, _ := wb.Grid("Sales")
	if err := g.SetValue(10, 1, "changed"); err != nil {
		t.Fatal(err)
	}
	if err := wb.Save(SaveOptions{Backup: true}); err != nil {
		t.Fatal(err)
	}

	backup, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if !bytes.Equal(original, backup) {
		t.Error("backup does not match the original workbook")
	}
}

func TestSaveAs(t *testing.T) {
	path := writeFixture(t)
	wb, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()

	out := filepath.Join(t.TempDir(), "copy.xlsx")
	if err := wb.SaveAs(out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("SaveAs did not create the file: %v", err)
	}
}

func TestOpenReader(t *testing.T) {
	data, err := os.ReadFile(writeFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	wb, err := OpenReader(bytes.NewReader(data), "mem.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()
	if names := wb.SheetNames(); len(names) != 2 {
		t.Errorf("sheets = %v", names)
	}
}

func TestBackendsWriteSameFormulas(t *testing.T) {
	rows := [][]string{
		{"Model", "Q1"},
		{"Other", "1"},
		{"ModelA", "10"},
		{"Total", "11"},
		{"ModelB", "5"},
		{"Total", "16"},
	}
	opts := adjust.Options{TotalLabel: "Total", ExcludeLabel: "Other", LabelColumn: 1}

	mem := grid.NewMemory(rows)
	if _, err := adjust.Run(context.Background(), mem, opts); err != nil {
		t.Fatal(err)
	}

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			if err := f.SetCellStr("Sheet1", cell, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	sheet, err := grid.NewSheet(f, "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := adjust.Run(context.Background(), sheet, opts); err != nil {
		t.Fatal(err)
	}

	if mem.Rows() != sheet.Rows() {
		t.Fatalf("rows: memory %d, sheet %d", mem.Rows(), sheet.Rows())
	}
	for row := 1; row <= mem.Rows(); row++ {
		c, err := mem.Cell(row, 2)
		if err != nil {
			t.Fatal(err)
		}
		got, err := sheet.Formula(row, 2)
		if err != nil {
			t.Fatal(err)
		}
		if c.Formula != got {
			t.Errorf("row %d: memory formula %q, sheet formula %q", row, c.Formula, got)
		}
	}
	// Second insertion references the live total and the shifted exclude row.
	if c, _ := mem.Cell(8, 2); c.Formula != "B7-B3" {
		t.Errorf("B8 = %q, want B7-B3", c.Formula)
	}
}
