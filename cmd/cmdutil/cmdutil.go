// Package cmdutil holds the per-invocation state shared by xladjust commands:
// global flags, loaded configuration, logger and audit log.
package cmdutil

import (
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xladjust/internal/audit"
	"github.com/klytics/xladjust/internal/config"
	"github.com/klytics/xladjust/internal/grid"
	"github.com/klytics/xladjust/internal/output"
	"github.com/klytics/xladjust/internal/plan"
)

// Env is built once per command from its flags and the configuration.
type Env struct {
	JSON    bool
	Verbose bool
	Config  *config.Config
	Logger  *slog.Logger
	Audit   *audit.Logger
	Out     io.Writer
	Err     io.Writer
}

// Load reads the global flags of cmd and the configuration they point at.
func Load(cmd *cobra.Command) (*Env, error) {
	jsonOut, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")
	noColor, _ := cmd.Flags().GetBool("no-color")
	cfgPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, output.User(err)
	}
	if noColor || !cfg.Output.Color {
		color.NoColor = true
	}

	return &Env{
		JSON:    jsonOut,
		Verbose: verbose,
		Config:  cfg,
		Logger:  NewLogger(cmd.ErrOrStderr(), verbose),
		Audit:   audit.NewLogger(cfg.Audit.Path, cfg.Audit.Enabled),
		Out:     cmd.OutOrStdout(),
		Err:     cmd.ErrOrStderr(),
	}, nil
}

// NewLogger returns a text logger on w at Debug level when verbose, Info otherwise.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Writer returns an output writer honouring --json.
func (e *Env) Writer() *output.Writer {
	return output.NewWriter(e.Out, e.JSON)
}

// Defaults turns the configuration into plan defaults.
func (e *Env) Defaults() (plan.Defaults, error) {
	d := plan.Defaults{
		LabelTemplate:  e.Config.LabelTemplate,
		AnchorExcludes: e.Config.AnchorExcludes,
		LabelColumn:    1,
	}
	if e.Config.LabelColumn != "" {
		col, err := grid.ParseColumn(e.Config.LabelColumn)
		if err != nil {
			return d, output.User(err)
		}
		d.LabelColumn = col
	}
	return d, nil
}

// Finish completes an audit entry with the outcome of the command and logs it.
func (e *Env) Finish(cmd *cobra.Command, entry audit.Entry, err error) {
	entry.ExitCode = output.ExitCode(err)
	if err != nil {
		entry.Error = err.Error()
	}
	entry.DurationMs = time.Since(entry.Timestamp).Milliseconds()
	e.Audit.Log(cmd.Context(), entry)
	e.Logger.Debug("audit", "run_id", entry.RunID, "exit_code", entry.ExitCode)
}
