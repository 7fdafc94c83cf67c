// Package workbook opens .xlsx files for adjustment and writes them back.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/xladjust/internal/adjust"
	"github.com/klytics/xladjust/internal/grid"
)

// ErrNotFound is returned by Open when the workbook path does not exist.
var ErrNotFound = errors.New("file not found")

// Workbook is an opened .xlsx file.
type Workbook struct {
	Path string

	f      *excelize.File
	sheets map[string]*grid.Sheet
}

// SaveOptions controls how Save overwrites the original file.
type SaveOptions struct {
	// Backup keeps a copy of the original at <path>.bak.
	Backup bool
}

// Open reads the workbook at path.
func Open(path string) (*Workbook, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s — check that the path is correct", ErrNotFound, path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s — is this a valid .xlsx file? %w", path, err)
	}
	return &Workbook{Path: path, f: f, sheets: make(map[string]*grid.Sheet)}, nil
}

// OpenReader reads a workbook from r. path is used by Save.
func OpenReader(r io.Reader, path string) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not read Excel data: %w", err)
	}
	return &Workbook{Path: path, f: f, sheets: make(map[string]*grid.Sheet)}, nil
}

// Close releases the workbook.
func (wb *Workbook) Close() error {
	return wb.f.Close()
}

// SheetNames lists the worksheets in workbook order.
func (wb *Workbook) SheetNames() []string {
	return wb.f.GetSheetList()
}

// Grid returns the named worksheet as a grid. Repeated calls for the same
// sheet return the same grid. A missing sheet yields *adjust.ConfigurationError.
func (wb *Workbook) Grid(name string) (*grid.Sheet, error) {
	if s, ok := wb.sheets[name]; ok {
		return s, nil
	}

	found := false
	for _, n := range wb.SheetNames() {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		return nil, &adjust.ConfigurationError{Sheet: name, Available: wb.SheetNames()}
	}

	s, err := grid.NewSheet(wb.f, name)
	if err != nil {
		return nil, err
	}
	wb.sheets[name] = s
	return s, nil
}

// Save overwrites the original file. The new content is written to a
// temporary file in the same directory and renamed over the original, so a
// failed save leaves the original intact.
func (wb *Workbook) Save(opts SaveOptions) error {
	if opts.Backup {
		if err := copyFile(wb.Path, wb.Path+".bak"); err != nil {
			return fmt.Errorf("could not back up %s: %w", wb.Path, err)
		}
	}
	return wb.SaveAs(wb.Path)
}

// SaveAs writes the workbook to path, replacing any existing file atomically.
func (wb *Workbook) SaveAs(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".xladjust-*.xlsx")
	if err != nil {
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := wb.f.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not save %s: %w", path, err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
