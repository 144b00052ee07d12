// Package config provides the user preferences of the prompt library. Values
// come from built-in defaults, an optional config.yaml and PROMPT_LIBRARY_*
// environment variables, in increasing precedence.
package config

import (
	"os"
	"path/filepath"

	"github.com/dpshade/prompt-library/internal/models"
)

// EnvPrefix prefixes every environment override, e.g.
// PROMPT_LIBRARY_MAX_RECENT_PROMPTS=20.
const EnvPrefix = "PROMPT_LIBRARY"

// Setting keys.
const (
	KeyDataDir            = "data_dir"
	KeyMaxRecentPrompts   = "max_recent_prompts"
	KeyDefaultAIModel     = "default_ai_model"
	KeyDefaultApplication = "default_application"
	KeyExportFormat       = "export_format"
	KeyBackupFrequency    = "backup_frequency"
	KeyBackupRetention    = "backup_retention"
	KeyShowNotifications  = "show_notifications"
	KeyAutoCloseOnCopy    = "auto_close_on_copy"
	KeyDebugMode          = "debug_mode"
)

// Bounds for numeric settings.
const (
	MinRecentPrompts   = 5
	MaxRecentPrompts   = 50
	MinBackupFrequency = 1
	MaxBackupFrequency = 30
)

// ExportFormats are the accepted export_format values.
var ExportFormats = []string{"json", "csv", "markdown"}

// Settings is the full set of preferences.
type Settings struct {
	DataDir            string `mapstructure:"data_dir" yaml:"data_dir" json:"dataDir"`
	MaxRecentPrompts   int    `mapstructure:"max_recent_prompts" yaml:"max_recent_prompts" json:"maxRecentPrompts"`
	DefaultAIModel     string `mapstructure:"default_ai_model" yaml:"default_ai_model" json:"defaultAIModel"`
	DefaultApplication string `mapstructure:"default_application" yaml:"default_application" json:"defaultApplication"`
	ExportFormat       string `mapstructure:"export_format" yaml:"export_format" json:"exportFormat"`
	// BackupFrequency is in days.
	BackupFrequency   int  `mapstructure:"backup_frequency" yaml:"backup_frequency" json:"backupFrequency"`
	BackupRetention   int  `mapstructure:"backup_retention" yaml:"backup_retention" json:"backupRetention"`
	ShowNotifications bool `mapstructure:"show_notifications" yaml:"show_notifications" json:"showNotifications"`
	AutoCloseOnCopy   bool `mapstructure:"auto_close_on_copy" yaml:"auto_close_on_copy" json:"autoCloseOnCopy"`
	DebugMode         bool `mapstructure:"debug_mode" yaml:"debug_mode" json:"debugMode"`
}

// DefaultSettings returns the built-in preferences. DataDir is left empty and
// resolved against Home at read time.
func DefaultSettings() Settings {
	return Settings{
		MaxRecentPrompts:   10,
		DefaultAIModel:     models.OtherAIModel,
		DefaultApplication: models.OtherApplication,
		ExportFormat:       "json",
		BackupFrequency:    7,
		BackupRetention:    10,
		ShowNotifications:  true,
		AutoCloseOnCopy:    true,
		DebugMode:          false,
	}
}

// Home returns the directory holding config.yaml and, by default, the
// library data. PROMPT_LIBRARY_DIR overrides the platform config directory.
func Home() string {
	if dir := os.Getenv(EnvPrefix + "_DIR"); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "prompt-library")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".prompt-library")
	}
	return ".prompt-library"
}

// DefaultConfigPath is config.yaml inside Home.
func DefaultConfigPath() string {
	return filepath.Join(Home(), "config.yaml")
}
