package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/klytics/xladjust/internal/grid"
)

// Issue represents a validation finding.
type Issue struct {
	Key      string `json:"key"`
	Severity string `json:"severity"` // "error", "warning"
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Validate checks config values and returns a list of issues.
func Validate() []Issue {
	var issues []Issue

	if _, err := grid.ParseColumn(viper.GetString("label_column")); err != nil {
		issues = append(issues, Issue{
			Key:      "label_column",
			Severity: "error",
			Message:  err.Error(),
			Fix:      "xladjust config set label_column A",
		})
	}

	tmpl := viper.GetString("label_template")
	if !strings.Contains(tmpl, "{total}") && !strings.Contains(tmpl, "{exclude}") {
		issues = append(issues, Issue{
			Key:      "label_template",
			Severity: "warning",
			Message:  fmt.Sprintf("label template %q has no {total} or {exclude} placeholder — every inserted row gets the same label", tmpl),
		})
	}

	if viper.GetInt("watch.debounce_ms") < 0 {
		issues = append(issues, Issue{
			Key:      "watch.debounce_ms",
			Severity: "error",
			Message:  "watch debounce must not be negative",
			Fix:      "xladjust config set watch.debounce_ms 500",
		})
	}

	if viper.GetBool("audit.enabled") && viper.GetString("audit.path") == "" {
		issues = append(issues, Issue{
			Key:      "audit.path",
			Severity: "warning",
			Message:  "audit logging is enabled but audit.path is empty — nothing will be recorded",
		})
	}

	return issues
}

// ToEnv returns all config values as a map of env var name -> value.
func ToEnv() map[string]string {
	env := make(map[string]string)
	for _, key := range viper.AllKeys() {
		name := "XLADJUST_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		env[name] = viper.GetString(key)
	}
	return env
}

// Set sets a config value and saves to disk.
func Set(key, value string) error {
	viper.Set(key, value)
	return SaveConfig()
}

// Get retrieves a config value.
func Get(key string) string {
	return viper.GetString(key)
}

// ResetConfig deletes the config file and restores defaults.
func ResetConfig() error {
	if err := os.Remove(ConfigPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete config: %w", err)
	}
	viper.Reset()
	setDefaults()
	return nil
}

// SaveConfig writes the current config to ~/.xladjust/config.yaml.
func SaveConfig() error {
	dir := configDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}

	os.Chmod(path, 0600)
	return nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return filepath.Join(configDir(), "config.yaml")
}

// ShowConfig returns a formatted string of the current configuration.
func ShowConfig() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Config: %s\n\n", ConfigPath()))

	keys := viper.AllKeys()
	sort.Strings(keys)
	width := 0
	for _, k := range keys {
		if len(k) > width {
			width = len(k)
		}
	}
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-*s  %s\n", width+1, k+":", viper.GetString(k)))
	}
	return sb.String()
}
