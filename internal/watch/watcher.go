// Package watch monitors directories for new or modified workbooks and hands
// each one to a handler, typically one that applies an adjustment plan.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig holds the complete watcher configuration.
type WatchConfig struct {
	Directories []string `json:"directories"`
	PlanPath    string   `json:"plan,omitempty"`
	Pattern     string   `json:"pattern,omitempty"` // Glob on the base name, e.g. "report_*.xlsx"
	Recursive   bool     `json:"recursive"`
	Debounce    int      `json:"debounceMs"` // Milliseconds to wait before processing
}

// Event represents a file event that was detected and processed.
type Event struct {
	Time      time.Time `json:"time"`
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"` // "processed", "error", "skipped"
	Error     string    `json:"error,omitempty"`
}

// Handler is called for every workbook that changed.
type Handler func(ctx context.Context, path string) error

// Status represents the current watcher status.
type Status struct {
	Running     bool     `json:"running"`
	Directories []string `json:"directories"`
	Plan        string   `json:"plan,omitempty"`
	EventCount  int      `json:"eventCount"`
}

// workbookExtensions are the file types the watcher reacts to.
var workbookExtensions = map[string]bool{
	".xlsx": true, ".xlsm": true,
}

// Watcher monitors directories for workbook changes.
type Watcher struct {
	Config  WatchConfig
	Logger  *slog.Logger
	Handler Handler

	mu       sync.Mutex
	events   []Event
	debounce map[string]*time.Timer
	// stamps holds the modification time each file had after we last
	// processed it, so our own save does not trigger another run.
	stamps map[string]time.Time

	// process serializes handler calls.
	process sync.Mutex
	ctx     context.Context
	watcher *fsnotify.Watcher
}

// New creates a new Watcher with the given configuration.
func New(config WatchConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}

	if config.Debounce <= 0 {
		config.Debounce = 500
	}

	return &Watcher{
		Config:   config,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		watcher:  fsw,
		debounce: make(map[string]*time.Timer),
		stamps:   make(map[string]time.Time),
		ctx:      context.Background(),
	}, nil
}

// Start begins watching the configured directories. It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	for _, dir := range w.Config.Directories {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("could not resolve %s: %w", dir, err)
		}

		if w.Config.Recursive {
			if err := w.addRecursive(absDir); err != nil {
				return err
			}
		} else {
			if err := w.watcher.Add(absDir); err != nil {
				return fmt.Errorf("could not watch %s: %w", absDir, err)
			}
		}
	}

	w.Logger.Info("watching", "directories", len(w.Config.Directories), "plan", w.Config.PlanPath)

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("stopping watcher")
			w.stopTimers()
			return w.watcher.Close()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	path := event.Name
	if !w.matches(path) {
		return
	}

	w.mu.Lock()
	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(time.Duration(w.Config.Debounce)*time.Millisecond, func() {
		w.processFile(path, event.Op.String())
	})
	w.mu.Unlock()
}

func (w *Watcher) processFile(path string, operation string) {
	w.process.Lock()
	defer w.process.Unlock()

	evt := Event{Time: time.Now(), Path: path, Operation: operation}

	info, err := os.Stat(path)
	if err != nil {
		// Removed or renamed away before the debounce fired.
		return
	}

	w.mu.Lock()
	stamp, seen := w.stamps[path]
	ctx := w.ctx
	w.mu.Unlock()

	switch {
	case seen && stamp.Equal(info.ModTime()):
		evt.Status = "skipped"
		w.Logger.Debug("unchanged since last run", "path", path)
	case w.Handler == nil:
		evt.Status = "skipped"
		w.Logger.Info("matched", "path", path, "handler", "none")
	default:
		if err := w.Handler(ctx, path); err != nil {
			evt.Status = "error"
			evt.Error = err.Error()
			w.Logger.Error("could not process workbook", "path", path, "err", err)
		} else {
			evt.Status = "processed"
			w.Logger.Info("processed", "path", path)
		}
		if after, err := os.Stat(path); err == nil {
			w.mu.Lock()
			w.stamps[path] = after.ModTime()
			w.mu.Unlock()
		}
	}

	w.mu.Lock()
	w.events = append(w.events, evt)
	w.mu.Unlock()
}

// matches reports whether path is a workbook the watcher should process.
func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	if !workbookExtensions[strings.ToLower(filepath.Ext(base))] {
		return false
	}
	// Office lock files and hidden files, which include our own temporary saves.
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	if w.Config.Pattern != "" {
		matched, _ := filepath.Match(w.Config.Pattern, base)
		if !matched {
			return false
		}
	}
	return true
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.debounce {
		timer.Stop()
		delete(w.debounce, path)
	}
}

// GetStatus returns the current watcher status.
func (w *Watcher) GetStatus() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		Running:     true,
		Directories: w.Config.Directories,
		Plan:        w.Config.PlanPath,
		EventCount:  len(w.events),
	}
}

// GetEvents returns all recorded events.
func (w *Watcher) GetEvents() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, len(w.events))
	copy(events, w.events)
	return events
}

const pidFile = ".xladjust-watch.pid"

// WritePIDFile writes the current process ID to the PID file in the given directory.
func WritePIDFile(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, pidFile)
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", os.Getpid())), 0644)
}

// ReadPIDFile reads the PID from the PID file.
func ReadPIDFile(dir string) (int, error) {
	path := filepath.Join(dir, pidFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file.
func RemovePIDFile(dir string) error {
	return os.Remove(filepath.Join(dir, pidFile))
}

// SaveConfig writes the watcher config to a JSON file.
func SaveConfig(dir string, config WatchConfig) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "watch-config.json"), data, 0644)
}

// LoadConfig reads the watcher config from a JSON file.
func LoadConfig(dir string) (*WatchConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, "watch-config.json"))
	if err != nil {
		return nil, err
	}
	var config WatchConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid watch config: %w", err)
	}
	return &config, nil
}
