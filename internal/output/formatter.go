// Package output provides formatting utilities for CLI output.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Writer handles formatted output to a destination.
type Writer struct {
	dest io.Writer
	JSON bool
}

// NewWriter creates a new output writer. A nil dest writes to stdout.
func NewWriter(dest io.Writer, jsonOutput bool) *Writer {
	if dest == nil {
		dest = os.Stdout
	}
	return &Writer{dest: dest, JSON: jsonOutput}
}

// Result writes data as a JSON envelope in JSON mode, or calls text otherwise.
func (w *Writer) Result(cmd string, data interface{}, text func(io.Writer)) error {
	if w.JSON {
		return PrintJSON(w.dest, cmd, data)
	}
	text(w.dest)
	return nil
}

// WriteLn writes a line of text.
func (w *Writer) WriteLn(s string) error {
	_, err := fmt.Fprintln(w.dest, s)
	return err
}

// Success writes a green check line.
func (w *Writer) Success(format string, args ...interface{}) {
	green := color.New(color.FgGreen)
	green.Fprint(w.dest, "✓ ")
	fmt.Fprintf(w.dest, format+"\n", args...)
}

// Warn writes a yellow warning line.
func (w *Writer) Warn(format string, args ...interface{}) {
	yellow := color.New(color.FgYellow)
	yellow.Fprint(w.dest, "! ")
	fmt.Fprintf(w.dest, format+"\n", args...)
}

// WriteError writes an error message to w.
func WriteError(w io.Writer, err error) {
	red := color.New(color.FgRed)
	red.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)
}
