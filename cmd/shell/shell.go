// Package shell provides the "xladjust shell" interactive REPL command.
package shell

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klytics/xladjust/cmd/cmdutil"
	shellpkg "github.com/klytics/xladjust/internal/shell"
)

// NewCommand creates the "shell" command.
func NewCommand() *cobra.Command {
	var (
		evalCmd  string
		workbook string
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive xladjust shell",
		Long: `Start an interactive REPL with history and tab completion.

Arguments follow shell quoting rules, so sheet names and labels with spaces
can be quoted. "use <workbook>" sets a workbook that adjust commands default to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			session, err := shellpkg.NewSession()
			if err != nil {
				return err
			}
			session.Out = env.Out
			session.Workbook = workbook

			if evalCmd != "" {
				output, err := session.Eval(cmd.Context(), evalCmd)
				fmt.Fprint(env.Out, output)
				return err
			}
			return session.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&evalCmd, "eval", "", "Run a single command and exit")
	cmd.Flags().StringVar(&workbook, "workbook", "", "Default workbook for adjust commands")
	return cmd
}
