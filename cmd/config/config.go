// Package config provides CLI commands for configuration management.
package config

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xladjust/cmd/cmdutil"
	"github.com/klytics/xladjust/internal/config"
	"github.com/klytics/xladjust/internal/output"
)

// NewCommand returns the config command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage xladjust configuration",
		Long: `View and modify xladjust settings.

Settings are read from ~/.xladjust/config.yaml (or --config), a .env file in
the working directory, and XLADJUST_* environment variables.`,
	}

	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newResetCommand())
	cmd.AddCommand(newPathCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newEnvCommand())

	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			return env.Writer().Result("config show", config.ToEnv(), func(w io.Writer) {
				fmt.Fprint(w, config.ShowConfig())
			})
		},
	}
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args: func(cmd *cobra.Command, args []string) error {
			return output.User(cobra.ExactArgs(2)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			if err := config.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "Set %s = %s\n", args[0], args[1])
			return nil
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args: func(cmd *cobra.Command, args []string) error {
			return output.User(cobra.ExactArgs(1)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			val := config.Get(args[0])
			return env.Writer().Result("config get", map[string]string{args[0]: val}, func(w io.Writer) {
				if val == "" {
					fmt.Fprintf(w, "%s: (not set)\n", args[0])
				} else {
					fmt.Fprintf(w, "%s: %s\n", args[0], val)
				}
			})
		},
	}
}

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			if err := config.ResetConfig(); err != nil {
				return err
			}
			fmt.Fprintln(env.Out, "Configuration reset to defaults")
			return nil
		},
	}
}

func newPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			path := config.ConfigPath()
			return env.Writer().Result("config path", map[string]string{"path": path}, func(w io.Writer) {
				fmt.Fprintln(w, path)
			})
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}

			issues := config.Validate()
			errs := 0
			warnings := 0
			for _, issue := range issues {
				switch issue.Severity {
				case "error":
					errs++
				case "warning":
					warnings++
				}
			}

			err = env.Writer().Result("config validate", issues, func(w io.Writer) {
				if errs == 0 && warnings == 0 {
					color.New(color.FgGreen).Fprintln(w, "Configuration is valid")
					return
				}

				fmt.Fprintf(w, "Config validation: %d errors, %d warnings\n\n", errs, warnings)
				for _, issue := range issues {
					switch issue.Severity {
					case "error":
						color.New(color.FgRed).Fprintf(w, "  %s: %s\n", issue.Key, issue.Message)
					case "warning":
						color.New(color.FgYellow).Fprintf(w, "  %s: %s\n", issue.Key, issue.Message)
					}
					if issue.Fix != "" {
						fmt.Fprintf(w, "   Fix: %s\n", issue.Fix)
					}
				}
			})
			if err != nil {
				return err
			}
			if errs > 0 {
				return output.User(fmt.Errorf("configuration has %d error(s)", errs))
			}
			return nil
		},
	}
}

func newEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Export configuration as environment variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			vars := config.ToEnv()

			return env.Writer().Result("config env", vars, func(w io.Writer) {
				// Sort keys for deterministic output
				keys := make([]string, 0, len(vars))
				for k := range vars {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				for _, k := range keys {
					fmt.Fprintf(w, "export %s=%q\n", k, vars[k])
				}
				fmt.Fprintln(w, "# Add these to your ~/.zshrc or ~/.bashrc")
			})
		},
	}
}
