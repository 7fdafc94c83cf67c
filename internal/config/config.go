// Package config manages application configuration from files and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/klytics/xladjust/internal/adjust"
)

// Config holds the application configuration.
type Config struct {
	LabelTemplate  string `mapstructure:"label_template"`
	LabelColumn    string `mapstructure:"label_column"`
	AnchorExcludes bool   `mapstructure:"anchor_excludes"`
	Backup         bool   `mapstructure:"backup"`
	Audit          struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"audit"`
	Output struct {
		Color bool `mapstructure:"color"`
	} `mapstructure:"output"`
	Watch struct {
		DebounceMs int `mapstructure:"debounce_ms"`
	} `mapstructure:"watch"`
}

// Load reads the configuration from ~/.xladjust/config.yaml (or path, when
// given), a .env file in the working directory, and XLADJUST_* environment
// variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
	}

	setDefaults()

	viper.SetEnvPrefix("XLADJUST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// An explicit --config must exist; the default location is optional.
		if path != "" {
			return nil, fmt.Errorf("could not read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("label_template", adjust.DefaultLabelTemplate)
	viper.SetDefault("label_column", "1")
	viper.SetDefault("anchor_excludes", false)
	viper.SetDefault("backup", false)
	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.path", filepath.Join(configDir(), "audit.log"))
	viper.SetDefault("output.color", true)
	viper.SetDefault("watch.debounce_ms", 500)
}

// Dir returns the directory holding config, history and audit files.
func Dir() string {
	return configDir()
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xladjust"
	}
	return filepath.Join(home, ".xladjust")
}
