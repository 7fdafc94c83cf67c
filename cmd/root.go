// Package cmd contains all CLI commands for the xladjust binary.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	cmdadjust "github.com/klytics/xladjust/cmd/adjust"
	cmdaudit "github.com/klytics/xladjust/cmd/audit"
	"github.com/klytics/xladjust/cmd/batch"
	"github.com/klytics/xladjust/cmd/completion"
	cmdconfig "github.com/klytics/xladjust/cmd/config"
	"github.com/klytics/xladjust/cmd/doctor"
	cmdplan "github.com/klytics/xladjust/cmd/plan"
	cmdshell "github.com/klytics/xladjust/cmd/shell"
	"github.com/klytics/xladjust/cmd/version"
	cmdwatch "github.com/klytics/xladjust/cmd/watch"
	"github.com/klytics/xladjust/internal/output"
	"github.com/klytics/xladjust/internal/shell"
)

func init() {
	shell.DefaultRunner = func(ctx context.Context, args []string, stdout, stderr io.Writer) error {
		if code := run(ctx, args, stdout, stderr); code != output.ExitOK {
			return fmt.Errorf("exit status %d", code)
		}
		return nil
	}
}

// NewRootCommand creates and returns the root cobra command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xladjust",
		Short: "Insert adjusted-total rows into Excel workbooks",
		Long: `xladjust finds total rows in a worksheet, pairs each with the nearest
excluded-item row above it, and inserts a row computing the total without
that item, as live formulas.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as machine-readable JSON")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable ANSI color output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.xladjust/config.yaml)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return output.User(err)
	})

	// Register subcommands
	rootCmd.AddCommand(cmdadjust.NewCommand())
	rootCmd.AddCommand(cmdplan.NewCommand())
	rootCmd.AddCommand(batch.NewCommand())
	rootCmd.AddCommand(cmdwatch.NewCommand())
	rootCmd.AddCommand(cmdshell.NewCommand())
	rootCmd.AddCommand(cmdaudit.NewCommand())
	rootCmd.AddCommand(cmdconfig.NewCommand())
	rootCmd.AddCommand(doctor.NewCommand())
	rootCmd.AddCommand(completion.NewCommand(rootCmd))
	rootCmd.AddCommand(version.NewCommand())

	return rootCmd
}

// Execute runs the root command and exits with a code derived from any returned error.
func Execute() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and reports errors to stderr, or to stdout as
// a JSON envelope under --json.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	c, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return output.ExitOK
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		err = output.User(err)
	}

	if jsonOut, _ := c.Flags().GetBool("json"); jsonOut {
		output.PrintJSONError(stdout, c.CommandPath(), err)
	} else {
		output.WriteError(stderr, err)
	}
	return output.ExitCode(err)
}
