// Package config loads and validates the TOML configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/neuromind/neuromind/internal/platform"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database locations. Empty fields fall back to
// the platform defaults under the user data directory.
type Paths struct {
	RecordingDir string `toml:"recording_dir"`
	ModelDir     string `toml:"model_dir"`
	ReportDir    string `toml:"report_dir"`
	DatabasePath string `toml:"database_path"`
}

// Recording contains audio capture settings.
type Recording struct {
	Backend         string `toml:"backend"`
	SampleRate      int    `toml:"sample_rate"`
	Channels        int    `toml:"channels"`
	Input           string `toml:"input"`
	AnswerSeconds   int    `toml:"answer_seconds"`
	BaselineSeconds int    `toml:"baseline_seconds"`
}

// Whisper contains speech-to-text settings.
type Whisper struct {
	Model      string `toml:"model"`
	EnginePath string `toml:"engine_path"`
	Language   string `toml:"language"`
}

// Voice contains voice marker analysis settings.
type Voice struct {
	SilenceThresholdDBFS float64 `toml:"silence_threshold_dbfs"`
	SplitTopDB           float64 `toml:"split_top_db"`
	PitchMinHz           float64 `toml:"pitch_min_hz"`
	PitchMaxHz           float64 `toml:"pitch_max_hz"`
}

// Firebase contains cloud sync settings. Sync is skipped entirely unless
// enabled.
type Firebase struct {
	Enabled         bool   `toml:"enabled"`
	CredentialsFile string `toml:"credentials_file"`
	ProjectID       string `toml:"project_id"`
	StorageBucket   string `toml:"storage_bucket"`
	Collection      string `toml:"collection"`
}

// Assessment contains task battery settings.
type Assessment struct {
	// TasksFile points to a custom TOML task battery. Empty uses the
	// built-in battery.
	TasksFile string `toml:"tasks_file"`
}

// Config encapsulates all configuration values.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Recording  Recording  `toml:"recording"`
	Whisper    Whisper    `toml:"whisper"`
	Voice      Voice      `toml:"voice"`
	Firebase   Firebase   `toml:"firebase"`
	Assessment Assessment `toml:"assessment"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Recording: Recording{
			Backend:         "auto",
			SampleRate:      16000,
			Channels:        1,
			AnswerSeconds:   10,
			BaselineSeconds: 5,
		},
		Whisper: Whisper{
			Model:    "base",
			Language: "en",
		},
		Voice: Voice{
			SilenceThresholdDBFS: -50,
			SplitTopDB:           25,
			PitchMinHz:           100,
			PitchMaxHz:           400,
		},
		Firebase: Firebase{
			Collection: "assessments",
		},
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/neuromind/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and defaulted. The boolean reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// normalize expands user paths and fills empty locations with the platform
// defaults.
func (c *Config) normalize() error {
	var err error

	if c.Paths.RecordingDir, err = expandOrDefault(c.Paths.RecordingDir, platform.ResolveRecordingDir); err != nil {
		return err
	}
	if c.Paths.ModelDir, err = expandOrDefault(c.Paths.ModelDir, platform.ResolveModelDir); err != nil {
		return err
	}
	if c.Paths.ReportDir, err = expandOrDefault(c.Paths.ReportDir, platform.ResolveReportDir); err != nil {
		return err
	}
	if c.Paths.DatabasePath, err = expandOrDefault(c.Paths.DatabasePath, platform.ResolveDatabasePath); err != nil {
		return err
	}

	if c.Whisper.EnginePath != "" {
		if c.Whisper.EnginePath, err = expandPath(c.Whisper.EnginePath); err != nil {
			return err
		}
	}
	if c.Firebase.CredentialsFile != "" {
		if c.Firebase.CredentialsFile, err = expandPath(c.Firebase.CredentialsFile); err != nil {
			return err
		}
	}
	if c.Assessment.TasksFile != "" {
		if c.Assessment.TasksFile, err = expandPath(c.Assessment.TasksFile); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.Recording.SampleRate <= 0 {
		return errors.New("recording sample_rate must be positive")
	}
	if c.Recording.Channels <= 0 {
		return errors.New("recording channels must be positive")
	}
	if c.Recording.AnswerSeconds <= 0 {
		return errors.New("recording answer_seconds must be positive")
	}
	if c.Recording.BaselineSeconds <= 0 {
		return errors.New("recording baseline_seconds must be positive")
	}

	if c.Voice.PitchMinHz <= 0 || c.Voice.PitchMaxHz <= c.Voice.PitchMinHz {
		return errors.New("voice pitch range is invalid: pitch_max_hz must exceed pitch_min_hz")
	}
	if c.Voice.SplitTopDB <= 0 {
		return errors.New("voice split_top_db must be positive")
	}
	if c.Voice.SilenceThresholdDBFS >= 0 {
		return errors.New("voice silence_threshold_dbfs must be negative")
	}

	if c.Firebase.Enabled {
		if strings.TrimSpace(c.Firebase.CredentialsFile) == "" {
			return errors.New("firebase credentials_file must be set when firebase is enabled")
		}
		if strings.TrimSpace(c.Firebase.Collection) == "" {
			return errors.New("firebase collection must be set when firebase is enabled")
		}
	}

	return nil
}

// EnsureDirectories creates the directories the tool writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.RecordingDir,
		c.Paths.ModelDir,
		c.Paths.ReportDir,
		filepath.Dir(c.Paths.DatabasePath),
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes a commented sample configuration to the given path.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists: %s", expanded)
	}

	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandOrDefault(value string, resolve func(string) (string, error)) (string, error) {
	if value == "" {
		return resolve("")
	}
	expanded, err := expandPath(value)
	if err != nil {
		return "", err
	}
	return resolve(expanded)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return "", nil
	}

	if pathValue == "~" || strings.HasPrefix(pathValue, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve user home: %w", err)
		}
		if pathValue == "~" {
			return homeDir, nil
		}
		return filepath.Join(homeDir, pathValue[2:]), nil
	}

	return filepath.Abs(pathValue)
}
