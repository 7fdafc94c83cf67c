package adjust

import (
	"fmt"
	"strings"
)

// ConfigurationError reports that the requested sheet is not in the workbook.
type ConfigurationError struct {
	Sheet     string
	Available []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("sheet %q not found", e.Sheet)
	}
	return fmt.Sprintf("sheet %q not found — available sheets: %s", e.Sheet, strings.Join(e.Available, ", "))
}

// Role says which of the two labels a NotFoundError refers to.
type Role string

const (
	RoleTotal   Role = "total"
	RoleExclude Role = "exclude"
)

// NotFoundError reports that no row carries the given label.
type NotFoundError struct {
	Role   Role
	Label  string
	Column int
}

func (e *NotFoundError) Error() string {
	col, err := columnLetters(e.Column)
	if err != nil {
		col = fmt.Sprint(e.Column)
	}
	return fmt.Sprintf("no rows found with %s label %q in column %s", e.Role, e.Label, col)
}

// PairingError reports that total rows could not be paired with exclude rows.
type PairingError struct {
	Total   string
	Exclude string
	// Overlap lists rows that carry both labels, if that is why pairing failed.
	Overlap []int
}

func (e *PairingError) Error() string {
	if len(e.Overlap) > 0 {
		return fmt.Sprintf("could not pair %q rows with %q rows — rows %v match both labels", e.Total, e.Exclude, e.Overlap)
	}
	return fmt.Sprintf("could not pair %q rows with %q rows — no %q row appears above any %q row", e.Total, e.Exclude, e.Exclude, e.Total)
}
