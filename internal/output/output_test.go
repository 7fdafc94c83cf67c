package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/klytics/xladjust/internal/adjust"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"missing sheet", &adjust.ConfigurationError{Sheet: "Sales"}, ExitUserError},
		{"missing label", fmt.Errorf("step: %w", &adjust.NotFoundError{Role: adjust.RoleTotal, Label: "Total", Column: 1}), ExitUserError},
		{"no pairs", &adjust.PairingError{Total: "Total", Exclude: "Other"}, ExitUserError},
		{"user", User(errors.New("plan is missing a 'name' field")), ExitUserError},
		{"io", errors.New("disk full"), ExitSystemError},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("%s: ExitCode = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestUserNil(t *testing.T) {
	if User(nil) != nil {
		t.Error("User(nil) should be nil")
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSON(&buf, "adjust", map[string]int{"inserted": 2}); err != nil {
		t.Fatal(err)
	}

	var result JSONResult
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !result.OK || result.Command != "adjust" || result.Version == "" {
		t.Errorf("unexpected envelope: %+v", result)
	}
}

func TestPrintJSONError(t *testing.T) {
	var buf bytes.Buffer
	err := &adjust.NotFoundError{Role: adjust.RoleExclude, Label: "Other", Column: 1}
	if e := PrintJSONError(&buf, "adjust", err); e != nil {
		t.Fatal(e)
	}

	var result JSONResult
	if e := json.Unmarshal(buf.Bytes(), &result); e != nil {
		t.Fatalf("invalid JSON: %v", e)
	}
	if result.OK || result.Code != ExitUserError {
		t.Errorf("unexpected envelope: %+v", result)
	}
	if !strings.Contains(result.Error, "Other") {
		t.Errorf("expected error text, got %q", result.Error)
	}
}

func TestWriterResult(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	w.Result("version", nil, func(out io.Writer) { fmt.Fprint(out, "plain") })
	if buf.String() != "plain" {
		t.Errorf("expected text output, got %q", buf.String())
	}

	buf.Reset()
	w = NewWriter(&buf, true)
	w.Result("version", map[string]string{"v": "1"}, func(out io.Writer) { fmt.Fprint(out, "plain") })
	if !strings.Contains(buf.String(), `"ok": true`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}
