package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	require.False(t, exists)
	require.NotEmpty(t, path)
	require.Equal(t, "auto", cfg.Recording.Backend)
	require.Equal(t, 16000, cfg.Recording.SampleRate)
	require.Equal(t, "base", cfg.Whisper.Model)
	require.NotEmpty(t, cfg.Paths.RecordingDir)
	require.NotEmpty(t, cfg.Paths.DatabasePath)
}

func TestLoadParsesFileAndKeepsDefaultsForOmittedValues(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[recording]
backend = "arecord"
answer_seconds = 15

[whisper]
model = "small"

[firebase]
enabled = true
credentials_file = "/etc/neuromind/firebase.json"
collection = "trials"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, _, exists, err := Load(configPath)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, "arecord", cfg.Recording.Backend)
	require.Equal(t, 15, cfg.Recording.AnswerSeconds)
	require.Equal(t, 16000, cfg.Recording.SampleRate)
	require.Equal(t, "small", cfg.Whisper.Model)
	require.True(t, cfg.Firebase.Enabled)
	require.Equal(t, "trials", cfg.Firebase.Collection)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[recording]
sample_rate = -1
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	_, _, _, err := Load(configPath)
	require.ErrorContains(t, err, "sample_rate")
}

func TestLoadRejectsFirebaseWithoutCredentials(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[firebase]
enabled = true
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	_, _, _, err := Load(configPath)
	require.ErrorContains(t, err, "credentials_file")
}

func TestValidateRejectsInvalidPitchRange(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Voice.PitchMinHz = 400
	cfg.Voice.PitchMaxHz = 100
	require.ErrorContains(t, cfg.Validate(), "pitch")
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := expandPath("~/data")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "data"), expanded)
}

func TestEnsureDirectoriesCreatesTree(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.RecordingDir = filepath.Join(base, "recordings")
	cfg.Paths.ModelDir = filepath.Join(base, "models")
	cfg.Paths.ReportDir = filepath.Join(base, "reports")
	cfg.Paths.DatabasePath = filepath.Join(base, "db", "neuromind.db")

	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{cfg.Paths.RecordingDir, cfg.Paths.ModelDir, cfg.Paths.ReportDir, filepath.Join(base, "db")} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestCreateSampleWritesFileOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	require.NoError(t, CreateSample(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "[recording]")
	require.Contains(t, string(raw), "[firebase]")

	require.Error(t, CreateSample(path))
}

func TestCreateSampleOutputIsLoadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, CreateSample(path))

	cfg, _, exists, err := Load(path)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, "auto", cfg.Recording.Backend)
	require.False(t, cfg.Firebase.Enabled)
}
