// Package whisper runs speech-to-text by executing an external whisper.cpp
// command line binary against a local ggml model.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// EnvEnginePath overrides engine discovery when set.
const EnvEnginePath = "NEUROMIND_WHISPER_PATH"

// ErrEngineNotFound indicates no usable whisper-cli binary could be located.
var ErrEngineNotFound = errors.New("whisper engine not found")

// engineCommands are the binary names probed on PATH, in preference order.
var engineCommands = []string{"whisper-cli", "whisper-cpp"}

// Engine transcribes audio files through an external whisper.cpp binary.
type Engine struct {
	Executable string
	Logger     *zap.Logger
}

// TranscriptionRequest describes one transcription run.
type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	Language  string
}

// NewEngine locates the whisper binary. Resolution order: the environment
// override, the configured path, then PATH lookup of the known commands.
func NewEngine(configuredPath string, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv(EnvEnginePath)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("%s is not executable: %w", EnvEnginePath, err)
		}
		return &Engine{Executable: override, Logger: logger}, nil
	}

	if configured := strings.TrimSpace(configuredPath); configured != "" {
		if err := ensureExecutable(configured); err != nil {
			return nil, fmt.Errorf("configured whisper path %s: %w", configured, err)
		}
		return &Engine{Executable: configured, Logger: logger}, nil
	}

	for _, command := range engineCommands {
		if path, err := exec.LookPath(command); err == nil {
			return &Engine{Executable: path, Logger: logger}, nil
		}
	}

	return nil, fmt.Errorf("%w: install whisper.cpp (whisper-cli) or set %s", ErrEngineNotFound, EnvEnginePath)
}

// Transcribe runs the engine and returns the plain-text transcript.
func (e *Engine) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return "", errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return "", errors.New("model path is required")
	}
	if err := ensureExecutable(e.Executable); err != nil {
		return "", fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	outDir, err := os.MkdirTemp("", "neuromind-")
	if err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	outBase := filepath.Join(outDir, "transcript")
	txtOut := outBase + ".txt"

	args := []string{"-m", req.ModelPath, "-f", req.AudioPath, "-nt", "-otxt", "-of", outBase}
	if lang := strings.TrimSpace(req.Language); lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}

	cmd := exec.CommandContext(ctx, e.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	e.logger().Debug("running whisper engine", zap.String("engine", e.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return "", classifyEngineError(e.Executable, err, stderr.String())
	}

	content, err := os.ReadFile(txtOut)
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// classifyEngineError turns common whisper.cpp failure modes into actionable
// messages instead of a bare exit status.
func classifyEngineError(executable string, err error, stderr string) error {
	errText := strings.TrimSpace(stderr)
	lower := strings.ToLower(errText)

	sharedLibPatterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}
	for _, pattern := range sharedLibPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); rebuild whisper.cpp with BUILD_SHARED_LIBS=OFF", executable, errText)
		}
	}

	if strings.Contains(lower, "illegal instruction") || strings.Contains(strings.ToLower(err.Error()), "illegal instruction") {
		return fmt.Errorf("whisper engine crashed with an illegal CPU instruction; set %s to a whisper-cli binary built for this CPU", EnvEnginePath)
	}

	if errText != "" {
		return fmt.Errorf("whisper transcribe failed: %w (%s)", err, errText)
	}
	return fmt.Errorf("whisper transcribe failed: %w", err)
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
