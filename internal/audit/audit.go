// Package audit records every workbook adjustment run as a JSON line.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry represents a single audit log entry.
type Entry struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Machine    string    `json:"machine"`
	Command    string    `json:"command"`
	Args       []string  `json:"args"`
	Workbook   string    `json:"workbook,omitempty"`
	Output     string    `json:"output,omitempty"`
	Sheets     []string  `json:"sheets,omitempty"`
	Total      string    `json:"total,omitempty"`
	Exclude    string    `json:"exclude,omitempty"`
	Inserted   int       `json:"inserted"`
	DryRun     bool      `json:"dry_run,omitempty"`
	ExitCode   int       `json:"exit_code"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// Logger appends audit entries to a file.
type Logger struct {
	FilePath string
	Enabled  bool
}

// NewLogger creates a Logger. A disabled logger or one without a path
// discards every entry.
func NewLogger(filePath string, enabled bool) *Logger {
	return &Logger{
		FilePath: filePath,
		Enabled:  enabled,
	}
}

// NewEntry starts an entry for command with a fresh run ID, the current
// time and this machine's hostname.
func NewEntry(command string, args []string) Entry {
	host, _ := os.Hostname()
	return Entry{
		RunID:     uuid.NewString(),
		Timestamp: time.Now(),
		Machine:   host,
		Command:   command,
		Args:      Redact(args),
	}
}

// Log writes a single audit entry. Best-effort: failures are swallowed so
// auditing never fails a command.
func (l *Logger) Log(_ context.Context, entry Entry) error {
	if l == nil || !l.Enabled || l.FilePath == "" {
		return nil
	}

	dir := filepath.Dir(l.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil
	}

	f, err := os.OpenFile(l.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return nil
	}
	data = append(data, '\n')
	_, _ = f.Write(data)
	return nil
}

// ReadEntries reads all audit entries from the log file.
func ReadEntries(filePath string) ([]Entry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue // skip malformed lines
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FilterEntries returns entries matching the given criteria. Zero values match everything.
func FilterEntries(entries []Entry, since, until time.Time, command, workbook string) []Entry {
	var result []Entry
	for _, e := range entries {
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && e.Timestamp.After(until) {
			continue
		}
		if command != "" && !strings.Contains(e.Command, command) {
			continue
		}
		if workbook != "" && !strings.Contains(e.Workbook, workbook) {
			continue
		}
		result = append(result, e)
	}
	return result
}

// LogSize returns the size of the audit log in bytes, or 0 if not found.
func LogSize(filePath string) int64 {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Clear truncates the audit log file.
func Clear(filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}
	return os.Truncate(filePath, 0)
}

// sensitiveFlags are flags whose following value should be redacted.
var sensitiveFlags = map[string]bool{
	"--password": true, "--token": true, "--secret": true,
}

// Redact sanitizes args to remove secrets.
func Redact(args []string) []string {
	result := make([]string, len(args))
	redactNext := false
	for i, arg := range args {
		switch {
		case redactNext:
			result[i] = "[REDACTED]"
			redactNext = false
		case sensitiveFlags[arg]:
			result[i] = arg
			redactNext = true
		default:
			if name, _, ok := strings.Cut(arg, "="); ok && sensitiveFlags[name] {
				result[i] = name + "=[REDACTED]"
				continue
			}
			result[i] = arg
		}
	}
	return result
}
