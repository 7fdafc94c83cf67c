// Package completion provides shell completion generation commands.
package completion

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klytics/xladjust/internal/output"
)

// NewCommand returns the completion command.
func NewCommand(rootCmd *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completions",
		Long: `Generate shell completion scripts for xladjust.

Install instructions:
  Bash:       xladjust completion bash > /etc/bash_completion.d/xladjust
              echo 'source <(xladjust completion bash)' >> ~/.bashrc
  Zsh:        xladjust completion zsh > ~/.zsh/completions/_xladjust
  Fish:       xladjust completion fish > ~/.config/fish/completions/xladjust.fish
  PowerShell: xladjust completion powershell >> $PROFILE`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args: func(cmd *cobra.Command, args []string) error {
			return output.User(cobra.ExactArgs(1)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				fmt.Fprintln(out, "# xladjust bash completion")
				fmt.Fprintln(out, "# Install: xladjust completion bash > /etc/bash_completion.d/xladjust")
				fmt.Fprintln(out, "# Or:      echo 'source <(xladjust completion bash)' >> ~/.bashrc")
				fmt.Fprintln(out)
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				fmt.Fprintln(out, "# xladjust zsh completion")
				fmt.Fprintln(out, "# Install: xladjust completion zsh > ~/.zsh/completions/_xladjust")
				fmt.Fprintln(out)
				return rootCmd.GenZshCompletion(out)
			case "fish":
				fmt.Fprintln(out, "# xladjust fish completion")
				fmt.Fprintln(out, "# Install: xladjust completion fish > ~/.config/fish/completions/xladjust.fish")
				fmt.Fprintln(out)
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				fmt.Fprintln(out, "# xladjust PowerShell completion")
				fmt.Fprintln(out, "# Install: xladjust completion powershell >> $PROFILE")
				fmt.Fprintln(out)
				return rootCmd.GenPowerShellCompletionWithDesc(out)
			default:
				return output.User(fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish, powershell)", args[0]))
			}
		},
	}
	return cmd
}
