package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/models"
)

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PROMPT_LIBRARY_DIR", dir)
	path := filepath.Join(dir, "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)
	return m, path
}

func TestDefaultsWithoutFile(t *testing.T) {
	m, path := newManager(t)

	s := m.Get()
	assert.Equal(t, 10, s.MaxRecentPrompts)
	assert.Equal(t, "json", s.ExportFormat)
	assert.Equal(t, 7, s.BackupFrequency)
	assert.Equal(t, 10, s.BackupRetention)
	assert.True(t, s.ShowNotifications)
	assert.True(t, s.AutoCloseOnCopy)
	assert.False(t, s.DebugMode)
	assert.Equal(t, filepath.Dir(path), s.DataDir)
	assert.Equal(t, models.DefaultCategory(), m.DefaultCategory())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "reading defaults must not create a file")
}

func TestReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_recent_prompts: 20\ndefault_ai_model: Claude\nexport_format: csv\n"), 0o644))

	m, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 20, m.MaxRecent())
	assert.Equal(t, "Claude", m.DefaultCategory().AIModel)
	assert.Equal(t, models.OtherApplication, m.DefaultCategory().Application)
	assert.Equal(t, "csv", m.ExportFormat())
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_recent_prompts: 20\n"), 0o644))
	t.Setenv("PROMPT_LIBRARY_MAX_RECENT_PROMPTS", "30")

	m, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 30, m.MaxRecent())
}

func TestRejectsOutOfRangeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_recent_prompts: 2\n"), 0o644))

	_, err := NewManager(path)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestSettersValidateAndPersist(t *testing.T) {
	m, path := newManager(t)

	require.NoError(t, m.SetMaxRecent(25))
	require.NoError(t, m.SetExportFormat("Markdown"))
	require.NoError(t, m.SetBackupFrequency(14))
	require.NoError(t, m.SetDefaultCategory(models.Category{AIModel: "Gemini", Application: "Writing"}))
	require.NoError(t, m.SetShowNotifications(false))

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	s := reloaded.Get()
	assert.Equal(t, 25, s.MaxRecentPrompts)
	assert.Equal(t, "markdown", s.ExportFormat)
	assert.Equal(t, 14, s.BackupFrequency)
	assert.Equal(t, "Gemini", s.DefaultAIModel)
	assert.Equal(t, "Writing", s.DefaultApplication)
	assert.False(t, s.ShowNotifications)
}

func TestSetterRejectionKeepsPreviousValue(t *testing.T) {
	m, _ := newManager(t)

	tests := []struct {
		name string
		set  func() error
	}{
		{"recent below range", func() error { return m.SetMaxRecent(4) }},
		{"recent above range", func() error { return m.SetMaxRecent(51) }},
		{"frequency zero", func() error { return m.SetBackupFrequency(0) }},
		{"frequency above range", func() error { return m.SetBackupFrequency(31) }},
		{"unknown format", func() error { return m.SetExportFormat("xml") }},
		{"empty category", func() error { return m.SetDefaultCategory(models.Category{AIModel: "Claude"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set()
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
		})
	}

	s := m.Get()
	assert.Equal(t, 10, s.MaxRecentPrompts)
	assert.Equal(t, 7, s.BackupFrequency)
	assert.Equal(t, "json", s.ExportFormat)

	// A later valid change must not resurrect a rejected value.
	require.NoError(t, m.SetMaxRecent(5))
	assert.Equal(t, "json", m.ExportFormat())
}

func TestFileEditsAfterSetAreReloaded(t *testing.T) {
	m, path := newManager(t)
	require.NoError(t, m.SetMaxRecent(25))

	require.NoError(t, os.WriteFile(path, []byte("max_recent_prompts: 30\n"), 0o644))
	require.NoError(t, m.Reload())
	assert.Equal(t, 30, m.MaxRecent())

	require.NoError(t, os.WriteFile(path, []byte("max_recent_prompts: 300\n"), 0o644))
	assert.Error(t, m.Reload())
	assert.Equal(t, 30, m.MaxRecent(), "an invalid edit keeps the previous settings")
}

func TestSetWritesOnlyFileKeys(t *testing.T) {
	m, path := newManager(t)
	t.Setenv("PROMPT_LIBRARY_DEFAULT_AI_MODEL", "Claude")

	require.NoError(t, m.SetMaxRecent(20))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_recent_prompts: 20")
	assert.NotContains(t, string(data), "Claude")
}

func TestFailedWriteLeavesSettingsUnchanged(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROMPT_LIBRARY_DIR", dir)
	path := filepath.Join(dir, "sub", "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	// A regular file where the config directory should be makes every
	// write fail.
	blocker := filepath.Join(dir, "sub")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	require.Error(t, m.SetMaxRecent(25))
	assert.Equal(t, 10, m.MaxRecent())

	require.NoError(t, os.Remove(blocker))
	require.NoError(t, m.SetExportFormat("csv"))
	reloaded, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 10, reloaded.MaxRecent())
	assert.Equal(t, "csv", reloaded.ExportFormat())
}

func TestSetParsesStrings(t *testing.T) {
	m, _ := newManager(t)

	require.NoError(t, m.Set(KeyMaxRecentPrompts, "12"))
	require.NoError(t, m.Set(KeyDebugMode, "true"))
	require.NoError(t, m.Set(KeyDefaultApplication, "Coding"))
	assert.Equal(t, 12, m.MaxRecent())
	assert.True(t, m.DebugMode())
	assert.Equal(t, "Coding", m.DefaultCategory().Application)

	assert.Error(t, m.Set(KeyMaxRecentPrompts, "many"))
	assert.Error(t, m.Set(KeyAutoCloseOnCopy, "sometimes"))
	assert.Error(t, m.Set(KeyDefaultAIModel, ""))
	assert.Error(t, m.Set("theme", "dark"))
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path))

	m, err := NewManager(path)
	require.NoError(t, err)
	want := DefaultSettings()
	got := m.Get()
	got.DataDir = ""
	assert.Equal(t, want, got)
}

func TestHome(t *testing.T) {
	t.Setenv("PROMPT_LIBRARY_DIR", "/tmp/library-home")
	assert.Equal(t, "/tmp/library-home", Home())
	assert.Equal(t, "/tmp/library-home/config.yaml", DefaultConfigPath())
}
