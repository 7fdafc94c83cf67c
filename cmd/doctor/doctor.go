// Package doctor provides the "xladjust doctor" command for checking the
// local setup.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/klytics/xladjust/cmd/cmdutil"
	"github.com/klytics/xladjust/internal/config"
	"github.com/klytics/xladjust/internal/grid"
	"github.com/klytics/xladjust/internal/watch"
	"github.com/klytics/xladjust/internal/workbook"
)

// Check represents a single health check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Message string `json:"message"`
}

// NewCommand creates the "doctor" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, audit log and workbook support",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			checks := runChecks(env)

			err = env.Writer().Result("doctor", checks, func(w io.Writer) {
				printChecks(w, checks)
			})
			if err != nil {
				return err
			}
			errCount := 0
			for _, c := range checks {
				if c.Status == "error" {
					errCount++
				}
			}
			if errCount > 0 {
				return fmt.Errorf("%d check(s) failed", errCount)
			}
			return nil
		},
	}
}

func printChecks(w io.Writer, checks []Check) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(w, "xladjust doctor")
	fmt.Fprintln(w, "===============")
	fmt.Fprintln(w)

	okCount, warnCount, errCount := 0, 0, 0
	for _, c := range checks {
		var icon string
		switch c.Status {
		case "ok":
			icon = green("✓")
			okCount++
		case "warning":
			icon = yellow("!")
			warnCount++
		case "error":
			icon = red("✗")
			errCount++
		}
		fmt.Fprintf(w, "  %s %s: %s\n", icon, c.Name, c.Message)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)
}

func runChecks(env *cmdutil.Env) []Check {
	checks := []Check{{
		Name:    "Go Runtime",
		Status:  "ok",
		Message: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}}

	path := config.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		checks = append(checks, Check{Name: "Config File", Status: "ok", Message: path})
	} else {
		checks = append(checks, Check{Name: "Config File", Status: "warning", Message: "Not found — using defaults"})
	}

	issues := config.Validate()
	if len(issues) == 0 {
		checks = append(checks, Check{Name: "Config Values", Status: "ok", Message: "Valid"})
	}
	for _, issue := range issues {
		checks = append(checks, Check{Name: "Config " + issue.Key, Status: issue.Severity, Message: issue.Message})
	}

	checks = append(checks, auditCheck(env.Audit.FilePath, env.Audit.Enabled))
	checks = append(checks, workbookCheck())

	if pid, err := watch.ReadPIDFile(config.Dir()); err == nil {
		checks = append(checks, Check{Name: "Watcher", Status: "ok", Message: fmt.Sprintf("PID file present (PID %d)", pid)})
	} else {
		checks = append(checks, Check{Name: "Watcher", Status: "ok", Message: "Not running"})
	}

	return checks
}

func auditCheck(path string, enabled bool) Check {
	if !enabled {
		return Check{Name: "Audit Log", Status: "warning", Message: "Disabled — runs are not recorded"}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Check{Name: "Audit Log", Status: "error", Message: fmt.Sprintf("could not create %s: %v", dir, err)}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Check{Name: "Audit Log", Status: "error", Message: fmt.Sprintf("%s is not writable: %v", path, err)}
	}
	f.Close()
	return Check{Name: "Audit Log", Status: "ok", Message: path}
}

// workbookCheck round-trips a formula through an in-memory workbook.
func workbookCheck() Check {
	const name = "Workbook Engine"
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetCellFormula("Sheet1", "B2", "B1-A1"); err != nil {
		return Check{Name: name, Status: "error", Message: err.Error()}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return Check{Name: name, Status: "error", Message: err.Error()}
	}
	wb, err := workbook.OpenReader(buf, "doctor.xlsx")
	if err != nil {
		return Check{Name: name, Status: "error", Message: err.Error()}
	}
	defer wb.Close()

	sheet, err := wb.Grid("Sheet1")
	if err != nil {
		return Check{Name: name, Status: "error", Message: err.Error()}
	}
	if !grid.AdjustsReferences(sheet) {
		return Check{Name: name, Status: "warning", Message: "sheet backend does not report reference adjustment"}
	}
	if err := sheet.InsertRow(1); err != nil {
		return Check{Name: name, Status: "error", Message: err.Error()}
	}
	got, err := sheet.Formula(3, 2)
	if err != nil || got != "B2-A2" {
		return Check{Name: name, Status: "warning", Message: fmt.Sprintf("row insertion did not shift formula references (got %q)", got)}
	}
	return Check{Name: name, Status: "ok", Message: "excelize formula references shift on row insert"}
}
