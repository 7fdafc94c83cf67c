//go:build ignore

// This program generates sample workbooks and a sample plan for xladjust.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

func main() {
	dir := "testdata"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	if err := generateReport(filepath.Join(dir, "sample.xlsx")); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating sample.xlsx: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(filepath.Join(dir, "sample-plan.yaml"), []byte(samplePlan), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating sample-plan.yaml: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Test fixtures generated successfully.")
}

const samplePlan = `name: sample
workbook: sample.xlsx
adjustments:
  - id: sales
    sheet: Sales
    total: Total
    exclude: ModelA
  - id: regions
    sheet: Regions
    total: Subtotal
    exclude: Intercompany
    label: "{total} ex. {exclude}"
`

// generateReport writes a workbook with a single-total "Sales" sheet and a
// "Regions" sheet where several subtotals share one exclude row.
func generateReport(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Sales"); err != nil {
		return err
	}
	sales := [][]interface{}{
		{"Model", "Q1", "Q2", "Q3", "Q4"},
		{"ModelB", 120, 135, 150, 160},
		{"ModelA", 80, 75, 90, 95},
		{"ModelC", 45, 60, 55, 70},
		{"Other", 10, 12, 8, 11},
	}
	for i, row := range sales {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sales", cell, &row); err != nil {
			return err
		}
	}
	f.SetCellValue("Sales", "A6", "Total")
	for col := 2; col <= 5; col++ {
		name, _ := excelize.ColumnNumberToName(col)
		f.SetCellFormula("Sales", fmt.Sprintf("%s6", name), fmt.Sprintf("SUM(%s2:%s5)", name, name))
	}

	if _, err := f.NewSheet("Regions"); err != nil {
		return err
	}
	regions := [][]interface{}{
		{"Region", "Revenue", "Cost"},
		{"Intercompany", 50, 20},
		{"North", 400, 250},
		{"South", 300, 210},
		{"Subtotal", 750, 480},
		{"East", 280, 190},
		{"West", 320, 230},
		{"Subtotal", 1350, 900},
	}
	for i, row := range regions {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Regions", cell, &row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
