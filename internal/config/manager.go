package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/models"
)

// Manager handles loading, updating and hot-reloading preferences.
type Manager struct {
	mu        sync.RWMutex
	path      string
	settings  Settings
	callbacks []func(Settings)
}

// NewManager loads preferences from cfgFile, or from DefaultConfigPath when
// cfgFile is empty. A missing file is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	if cfgFile == "" {
		cfgFile = DefaultConfigPath()
	}
	v, err := newViper(cfgFile)
	if err != nil {
		return nil, err
	}
	settings, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Manager{path: cfgFile, settings: settings}, nil
}

// newViper layers defaults, PROMPT_LIBRARY_* env vars and the config file.
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	defaults := DefaultSettings()
	v.SetDefault(KeyDataDir, defaults.DataDir)
	v.SetDefault(KeyMaxRecentPrompts, defaults.MaxRecentPrompts)
	v.SetDefault(KeyDefaultAIModel, defaults.DefaultAIModel)
	v.SetDefault(KeyDefaultApplication, defaults.DefaultApplication)
	v.SetDefault(KeyExportFormat, defaults.ExportFormat)
	v.SetDefault(KeyBackupFrequency, defaults.BackupFrequency)
	v.SetDefault(KeyBackupRetention, defaults.BackupRetention)
	v.SetDefault(KeyShowNotifications, defaults.ShowNotifications)
	v.SetDefault(KeyAutoCloseOnCopy, defaults.AutoCloseOnCopy)
	v.SetDefault(KeyDebugMode, defaults.DebugMode)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := readConfig(v, path); err != nil {
		return nil, err
	}
	return v, nil
}

// fileViper holds only what the config file says, so writing it back never
// bakes defaults or env overrides into the file.
func fileViper(path string) (*viper.Viper, error) {
	v := viper.New()
	if err := readConfig(v, path); err != nil {
		return nil, err
	}
	return v, nil
}

func readConfig(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "Error reading config file").
			WithContext("path", path)
	}
	return nil
}

// decode parses v and validates the result.
func decode(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Failed to parse settings")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	if s.DataDir == "" {
		s.DataDir = Home()
	}
	return s, nil
}

// Validate checks every bounded setting.
func (s Settings) Validate() error {
	if s.MaxRecentPrompts < MinRecentPrompts || s.MaxRecentPrompts > MaxRecentPrompts {
		return apperrors.ValidationError(fmt.Sprintf("%s must be between %d and %d", KeyMaxRecentPrompts, MinRecentPrompts, MaxRecentPrompts))
	}
	if s.BackupFrequency < MinBackupFrequency || s.BackupFrequency > MaxBackupFrequency {
		return apperrors.ValidationError(fmt.Sprintf("%s must be between %d and %d days", KeyBackupFrequency, MinBackupFrequency, MaxBackupFrequency))
	}
	if s.BackupRetention < 1 {
		return apperrors.ValidationError(KeyBackupRetention + " must be at least 1")
	}
	if !slices.Contains(ExportFormats, s.ExportFormat) {
		return apperrors.ValidationError(fmt.Sprintf("%s must be one of %s", KeyExportFormat, strings.Join(ExportFormats, ", ")))
	}
	return nil
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.path
}

// Get returns the current settings (thread-safe).
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// MaxRecent is the cap on the recent-prompts list.
func (m *Manager) MaxRecent() int {
	return m.Get().MaxRecentPrompts
}

// DefaultCategory is the classification given to prompts created without one.
func (m *Manager) DefaultCategory() models.Category {
	s := m.Get()
	return models.Category{AIModel: s.DefaultAIModel, Application: s.DefaultApplication}
}

func (m *Manager) ExportFormat() string { return m.Get().ExportFormat }
func (m *Manager) BackupFrequency() int { return m.Get().BackupFrequency }
func (m *Manager) BackupRetention() int { return m.Get().BackupRetention }
func (m *Manager) ShowNotifications() bool { return m.Get().ShowNotifications }
func (m *Manager) AutoCloseOnCopy() bool { return m.Get().AutoCloseOnCopy }
func (m *Manager) DebugMode() bool { return m.Get().DebugMode }
func (m *Manager) DataDir() string { return m.Get().DataDir }

func (m *Manager) SetMaxRecent(n int) error {
	return m.set(KeyMaxRecentPrompts, n)
}

func (m *Manager) SetDefaultCategory(c models.Category) error {
	if c.AIModel == "" || c.Application == "" {
		return apperrors.ValidationError("default category needs both an AI model and an application")
	}
	return m.setMany(map[string]any{
		KeyDefaultAIModel:     c.AIModel,
		KeyDefaultApplication: c.Application,
	})
}

func (m *Manager) SetExportFormat(format string) error {
	return m.set(KeyExportFormat, strings.ToLower(format))
}

func (m *Manager) SetBackupFrequency(days int) error {
	return m.set(KeyBackupFrequency, days)
}

func (m *Manager) SetShowNotifications(on bool) error {
	return m.set(KeyShowNotifications, on)
}

// Set parses value for key and stores it. It backs `config set`.
func (m *Manager) Set(key, value string) error {
	switch key {
	case KeyMaxRecentPrompts, KeyBackupFrequency, KeyBackupRetention:
		n, err := strconv.Atoi(value)
		if err != nil {
			return apperrors.ValidationError(fmt.Sprintf("%s must be an integer", key))
		}
		switch key {
		case KeyMaxRecentPrompts:
			return m.SetMaxRecent(n)
		case KeyBackupFrequency:
			return m.SetBackupFrequency(n)
		}
		return m.set(key, n)
	case KeyShowNotifications, KeyAutoCloseOnCopy, KeyDebugMode:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return apperrors.ValidationError(fmt.Sprintf("%s must be true or false", key))
		}
		if key == KeyShowNotifications {
			return m.SetShowNotifications(b)
		}
		return m.set(key, b)
	case KeyExportFormat:
		return m.SetExportFormat(value)
	case KeyDefaultAIModel:
		return m.SetDefaultCategory(models.Category{AIModel: value, Application: m.Get().DefaultApplication})
	case KeyDefaultApplication:
		return m.SetDefaultCategory(models.Category{AIModel: m.Get().DefaultAIModel, Application: value})
	case KeyDataDir:
		return m.set(key, value)
	default:
		return apperrors.ValidationError(fmt.Sprintf("unknown setting %q", key))
	}
}

func (m *Manager) set(key string, value any) error {
	return m.setMany(map[string]any{key: value})
}

// setMany validates values against the effective settings, writes them to
// the config file and reloads. Any failure leaves both the file and the
// loaded settings as they were.
func (m *Manager) setMany(values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidate, err := newViper(m.path)
	if err != nil {
		return err
	}
	for k, v := range values {
		candidate.Set(k, v)
	}
	if _, err := decode(candidate); err != nil {
		return err
	}

	file, err := fileViper(m.path)
	if err != nil {
		return err
	}
	for k, v := range values {
		file.Set(k, v)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return apperrors.PersistenceError("create config directory", err)
	}
	if err := file.WriteConfigAs(m.path); err != nil {
		return apperrors.PersistenceError("write config file", err).WithContext("path", m.path)
	}
	return m.reloadLocked()
}

// Reload re-reads the config file. Invalid contents are rejected and the
// previous settings stay in effect.
func (m *Manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloadLocked()
}

func (m *Manager) reloadLocked() error {
	v, err := newViper(m.path)
	if err != nil {
		return err
	}
	settings, err := decode(v)
	if err != nil {
		return err
	}
	m.settings = settings
	return nil
}

// OnChange registers a callback for settings changes picked up by
// WatchConfig.
func (m *Manager) OnChange(fn func(Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// WatchConfig enables hot-reloading of the config file. Invalid edits are
// ignored and the previous settings stay in effect.
func (m *Manager) WatchConfig() {
	watcher := viper.New()
	watcher.SetConfigFile(m.path)
	watcher.SetConfigType("yaml")
	watcher.OnConfigChange(func(fsnotify.Event) {
		if err := m.Reload(); err != nil {
			return
		}
		m.mu.RLock()
		settings := m.settings
		callbacks := make([]func(Settings), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.RUnlock()

		for _, fn := range callbacks {
			fn(settings)
		}
	})
	watcher.WatchConfig()
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultSettings())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Prompt library configuration
# Every key can be overridden with a PROMPT_LIBRARY_<KEY> environment variable.
# An empty data_dir stores the library next to this file.

`)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, append(header, data...), 0o644)
}
