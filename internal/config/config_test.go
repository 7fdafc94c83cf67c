package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func setupTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	viper.Reset()
	t.Setenv("HOME", dir)
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Chdir(wd)
		viper.Reset()
	})
	return dir
}

func TestLoadDefaults(t *testing.T) {
	setupTestConfig(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LabelTemplate != "{total} (without {exclude})" {
		t.Errorf("default label_template = %q", cfg.LabelTemplate)
	}
	if cfg.LabelColumn != "1" {
		t.Errorf("default label_column = %q", cfg.LabelColumn)
	}
	if !cfg.Audit.Enabled || !strings.HasSuffix(cfg.Audit.Path, filepath.Join(".xladjust", "audit.log")) {
		t.Errorf("audit = %+v", cfg.Audit)
	}
	if cfg.Watch.DebounceMs != 500 {
		t.Errorf("default debounce = %d", cfg.Watch.DebounceMs)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	dir := setupTestConfig(t)
	path := filepath.Join(dir, "custom.yaml")
	data := "label_template: \"{total} ex. {exclude}\"\nlabel_column: B\nanchor_excludes: true\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LabelTemplate != "{total} ex. {exclude}" {
		t.Errorf("label_template = %q", cfg.LabelTemplate)
	}
	if cfg.LabelColumn != "B" || !cfg.AnchorExcludes {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	dir := setupTestConfig(t)
	if _, err := Load(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	setupTestConfig(t)
	t.Setenv("XLADJUST_LABEL_COLUMN", "C")
	t.Setenv("XLADJUST_AUDIT_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LabelColumn != "C" {
		t.Errorf("label_column = %q, want C", cfg.LabelColumn)
	}
	if cfg.Audit.Enabled {
		t.Error("audit should be disabled by env")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := setupTestConfig(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("XLADJUST_BACKUP=true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("XLADJUST_BACKUP") })

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Backup {
		t.Error("backup should be enabled from .env")
	}
}

func TestValidateBadColumn(t *testing.T) {
	setupTestConfig(t)
	if _, err := Load(""); err != nil {
		t.Fatal(err)
	}
	viper.Set("label_column", "0")

	issues := Validate()
	found := false
	for _, issue := range issues {
		if issue.Key == "label_column" && issue.Severity == "error" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected label_column error, got %+v", issues)
	}
}

func TestValidateTemplateWarning(t *testing.T) {
	setupTestConfig(t)
	if _, err := Load(""); err != nil {
		t.Fatal(err)
	}
	viper.Set("label_template", "Adjusted")

	issues := Validate()
	found := false
	for _, issue := range issues {
		if issue.Key == "label_template" && issue.Severity == "warning" {
			found = true
		}
	}
	if !found {
		t.Error("expected label_template warning")
	}
}

func TestValidateDefaultsClean(t *testing.T) {
	setupTestConfig(t)
	if _, err := Load(""); err != nil {
		t.Fatal(err)
	}
	if issues := Validate(); len(issues) != 0 {
		t.Errorf("unexpected issues: %+v", issues)
	}
}

func TestToEnv(t *testing.T) {
	setupTestConfig(t)
	if _, err := Load(""); err != nil {
		t.Fatal(err)
	}
	viper.Set("label_column", "D")

	env := ToEnv()
	if env["XLADJUST_LABEL_COLUMN"] != "D" {
		t.Errorf("XLADJUST_LABEL_COLUMN = %q", env["XLADJUST_LABEL_COLUMN"])
	}
	if env["XLADJUST_WATCH_DEBOUNCE_MS"] != "500" {
		t.Errorf("XLADJUST_WATCH_DEBOUNCE_MS = %q", env["XLADJUST_WATCH_DEBOUNCE_MS"])
	}
}

func TestSetAndGet(t *testing.T) {
	dir := setupTestConfig(t)
	if _, err := Load(""); err != nil {
		t.Fatal(err)
	}

	if err := Set("label_column", "B"); err != nil {
		t.Fatal(err)
	}
	if got := Get("label_column"); got != "B" {
		t.Errorf("Get(label_column) = %q, want B", got)
	}
	if _, err := os.Stat(filepath.Join(dir, ".xladjust", "config.yaml")); err != nil {
		t.Errorf("config not saved: %v", err)
	}
}

func TestShowConfig(t *testing.T) {
	setupTestConfig(t)
	if _, err := Load(""); err != nil {
		t.Fatal(err)
	}

	output := ShowConfig()
	if !strings.Contains(output, "label_template:") {
		t.Error("ShowConfig should list label_template")
	}
	if !strings.Contains(output, "{total} (without {exclude})") {
		t.Error("ShowConfig should show the default template")
	}
}

func TestResetConfig(t *testing.T) {
	setupTestConfig(t)
	if _, err := Load(""); err != nil {
		t.Fatal(err)
	}
	if err := Set("label_column", "E"); err != nil {
		t.Fatal(err)
	}

	if err := ResetConfig(); err != nil {
		t.Fatal(err)
	}
	if got := Get("label_column"); got != "1" {
		t.Errorf("label_column should reset to default, got %q", got)
	}
	if _, err := os.Stat(ConfigPath()); !os.IsNotExist(err) {
		t.Error("config file should be removed")
	}
}
