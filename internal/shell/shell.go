// Package shell provides the interactive xladjust REPL.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/mattn/go-shellwords"

	"github.com/klytics/xladjust/internal/config"
)

// CommandRunner executes an xladjust command and writes its output.
// This is set by the cmd/shell package to avoid import cycles.
type CommandRunner func(ctx context.Context, args []string, stdout, stderr io.Writer) error

// DefaultRunner is the command runner used by the shell session.
var DefaultRunner CommandRunner

// Session manages an interactive shell session.
type Session struct {
	// Workbook is prepended to "adjust" commands that omit it.
	Workbook       string
	LastOutput     string
	CommandHistory []string
	HistoryFile    string
	StartTime      time.Time
	Out            io.Writer

	// KnownCommands is the list of top-level commands for completion.
	KnownCommands []string
}

// NewSession creates a new interactive session.
func NewSession() (*Session, error) {
	histFile := filepath.Join(config.Dir(), "shell_history")
	if err := os.MkdirAll(filepath.Dir(histFile), 0755); err != nil {
		return nil, fmt.Errorf("could not create %s: %w", filepath.Dir(histFile), err)
	}

	return &Session{
		HistoryFile: histFile,
		StartTime:   time.Now(),
		Out:         os.Stdout,
		KnownCommands: []string{
			"adjust", "plan", "batch", "watch", "audit", "config",
			"doctor", "completion", "version",
			"help", "exit", "quit", "history", "use",
		},
	}, nil
}

// Run starts the REPL loop. Blocks until 'exit' or Ctrl+D.
func (s *Session) Run(ctx context.Context) error {
	if DefaultRunner == nil {
		return fmt.Errorf("shell runner not configured")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "xladjust> ",
		HistoryFile:     s.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(s.buildCompleter()...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(s.Out, "xladjust interactive shell")
	fmt.Fprintln(s.Out, "Type 'help' for commands, 'exit' to quit.")
	fmt.Fprintln(s.Out)

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		s.CommandHistory = append(s.CommandHistory, line)

		switch {
		case line == "exit" || line == "quit":
			fmt.Fprintf(s.Out, "\nSession ended. %d commands run in %s.\n",
				len(s.CommandHistory)-1, formatDuration(time.Since(s.StartTime)))
			return nil
		case line == "help":
			s.printHelp()
		case line == "history":
			for i, cmd := range s.CommandHistory {
				fmt.Fprintf(s.Out, "  %d  %s\n", i+1, cmd)
			}
		case line == "use" || strings.HasPrefix(line, "use "):
			s.Workbook = strings.TrimSpace(strings.TrimPrefix(line, "use"))
			if s.Workbook == "" {
				fmt.Fprintln(s.Out, "Default workbook cleared")
			} else {
				fmt.Fprintf(s.Out, "Default workbook: %s\n", s.Workbook)
			}
		default:
			output, err := s.Eval(ctx, line)
			if output != "" {
				fmt.Fprint(s.Out, output)
				if !strings.HasSuffix(output, "\n") {
					fmt.Fprintln(s.Out)
				}
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			}
		}
	}

	return nil
}

// Eval runs a single command string and returns its output.
// Arguments are split with shell quoting rules, so sheet names and labels
// containing spaces can be quoted.
func (s *Session) Eval(ctx context.Context, command string) (string, error) {
	if DefaultRunner == nil {
		return "", fmt.Errorf("shell runner not configured")
	}

	args, err := shellwords.Parse(command)
	if err != nil {
		return "", fmt.Errorf("could not parse %q: %w", command, err)
	}
	if len(args) == 0 {
		return "", nil
	}
	args = s.withWorkbook(args)

	var stdout, stderr bytes.Buffer
	err = DefaultRunner(ctx, args, &stdout, &stderr)

	output := stdout.String()
	s.LastOutput = output

	if errOut := stderr.String(); errOut != "" && err != nil {
		return output, fmt.Errorf("%s", strings.TrimSpace(errOut))
	}

	return output, err
}

// withWorkbook prepends the session workbook to an adjust command that
// names only sheet and labels.
func (s *Session) withWorkbook(args []string) []string {
	if s.Workbook == "" || args[0] != "adjust" {
		return args
	}
	if countPositional(args[1:]) != 3 {
		return args
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0], s.Workbook)
	return append(out, args[1:]...)
}

// adjustValueFlags are the adjust flags that consume the following argument.
var adjustValueFlags = map[string]bool{
	"--label":        true,
	"--label-column": true,
	"--output":       true,
	"-o":             true,
	"--config":       true,
}

func countPositional(args []string) int {
	n := 0
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			return n + len(args) - i - 1
		case strings.HasPrefix(a, "-") && len(a) > 1:
			if adjustValueFlags[a] {
				i++
			}
		default:
			n++
		}
	}
	return n
}

// Complete returns tab-completion candidates for the given input.
func (s *Session) Complete(input string) []string {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return s.KnownCommands
	}

	// Complete top-level command
	if len(parts) == 1 && !strings.HasSuffix(input, " ") {
		var matches []string
		for _, cmd := range s.KnownCommands {
			if strings.HasPrefix(cmd, parts[0]) {
				matches = append(matches, cmd)
			}
		}
		sort.Strings(matches)
		return matches
	}

	// Flags
	if last := parts[len(parts)-1]; strings.HasPrefix(last, "-") && !strings.HasSuffix(input, " ") {
		var matches []string
		for _, f := range s.flagsFor(parts[0]) {
			if strings.HasPrefix(f, last) {
				matches = append(matches, f)
			}
		}
		return matches
	}

	subcommands := s.subcommandsFor(parts[0])
	if len(parts) == 1 {
		return subcommands
	}
	if len(parts) == 2 && !strings.HasSuffix(input, " ") {
		var matches []string
		for _, sub := range subcommands {
			if strings.HasPrefix(sub, parts[1]) {
				matches = append(matches, sub)
			}
		}
		return matches
	}

	return nil
}

func (s *Session) subcommandsFor(parent string) []string {
	subs := map[string][]string{
		"plan":       {"run", "validate"},
		"watch":      {"start", "stop", "status"},
		"audit":      {"log", "status", "clear"},
		"config":     {"show", "path", "get", "set", "validate", "env", "reset"},
		"completion": {"bash", "zsh", "fish", "powershell"},
	}
	return subs[parent]
}

func (s *Session) flagsFor(parent string) []string {
	global := []string{"--json", "--verbose", "--no-color", "--help"}
	switch parent {
	case "adjust":
		return append([]string{"--label", "--label-column", "--anchor-excludes", "--dry-run", "--output", "--backup"}, global...)
	case "plan":
		return append([]string{"--dry-run", "--output", "--backup"}, global...)
	case "batch":
		return append([]string{"--dry-run", "--out-dir", "--concurrency", "--backup"}, global...)
	}
	return global
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.Out, "Available commands:")
	fmt.Fprintln(s.Out)
	fmt.Fprintln(s.Out, "  adjust <workbook> <sheet> <total> <exclude>   insert adjusted-total rows")
	fmt.Fprintln(s.Out, "  plan run|validate <plan.yaml>                 apply a saved plan")
	fmt.Fprintln(s.Out, "  batch <plan.yaml> <glob>...                   apply a plan to many workbooks")
	fmt.Fprintln(s.Out, "  watch, audit, config, doctor, completion, version")
	fmt.Fprintln(s.Out)
	fmt.Fprintln(s.Out, "Shell commands:")
	fmt.Fprintln(s.Out, "  use <workbook>   set the default workbook for adjust")
	fmt.Fprintln(s.Out, "  history          show command history")
	fmt.Fprintln(s.Out, "  help             show this help")
	fmt.Fprintln(s.Out, "  exit             exit the shell")
}

func (s *Session) buildCompleter() []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range s.KnownCommands {
		var children []readline.PrefixCompleterInterface
		for _, sub := range s.subcommandsFor(cmd) {
			children = append(children, readline.PcItem(sub))
		}
		for _, f := range s.flagsFor(cmd) {
			children = append(children, readline.PcItem(f))
		}
		items = append(items, readline.PcItem(cmd, children...))
	}
	return items
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, s)
}
