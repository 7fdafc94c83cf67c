package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klytics/xladjust/cmd/version"
	"github.com/klytics/xladjust/internal/adjust"
)

// Exit codes for consistent error reporting.
const (
	ExitOK          = 0 // success
	ExitUserError   = 1 // bad arguments, missing file or sheet, unmatched labels
	ExitSystemError = 2 // IO error, corrupt workbook
)

// UserError marks an error caused by the caller's input rather than the environment.
type UserError struct {
	Err error
}

func (e *UserError) Error() string { return e.Err.Error() }

func (e *UserError) Unwrap() error { return e.Err }

// User wraps err as a UserError. A nil err stays nil.
func User(err error) error {
	if err == nil {
		return nil
	}
	return &UserError{Err: err}
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		cfgErr  *adjust.ConfigurationError
		nfErr   *adjust.NotFoundError
		pairErr *adjust.PairingError
		usrErr  *UserError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &nfErr), errors.As(err, &pairErr), errors.As(err, &usrErr):
		return ExitUserError
	}
	return ExitSystemError
}

// JSONResult is the standard JSON output envelope for all commands.
type JSONResult struct {
	OK      bool        `json:"ok"`
	Command string      `json:"command"`
	Version string      `json:"version"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    int         `json:"code,omitempty"`
}

// PrintJSON writes a standard success JSON result to w.
func PrintJSON(w io.Writer, cmd string, data interface{}) error {
	return encode(w, JSONResult{
		OK:      true,
		Command: cmd,
		Version: version.Version,
		Data:    data,
	})
}

// PrintJSONError writes a standard error JSON result to w.
func PrintJSONError(w io.Writer, cmd string, err error) error {
	result := JSONResult{
		OK:      false,
		Command: cmd,
		Version: version.Version,
		Error:   err.Error(),
		Code:    ExitCode(err),
	}
	if encErr := encode(w, result); encErr != nil {
		return fmt.Errorf("could not encode JSON error: %w", encErr)
	}
	return nil
}

func encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
