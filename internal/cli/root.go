// Package cli wires the commands of the neuromind assessment tool.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/neuromind/neuromind/internal/audio"
	"github.com/neuromind/neuromind/internal/config"
	"github.com/neuromind/neuromind/internal/logging"
	"github.com/neuromind/neuromind/internal/version"
	"github.com/neuromind/neuromind/internal/voice"
	"github.com/neuromind/neuromind/internal/whisper"
)

type appState struct {
	configPath   string
	verbose      bool
	jsonLogs     bool
	noProgress   bool
	model        string
	modelDir     string
	language     string
	autoDownload bool
	backend      string
	input        string
	inputFormat  string

	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
	out    io.Writer
	in     io.Reader

	preflightFn  func(ctx context.Context) error
	recordFn     func(ctx context.Context, opts recordOptions) (string, error)
	transcribeFn func(ctx context.Context, audioPath string) (string, error)
	analyzeFn    func(audioPath string) (voice.Markers, error)
	promptFn     func(label string) (string, error)
	confirmFn    func(label string) (bool, error)
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newAppState() *appState {
	app := &appState{
		language:     "auto",
		autoDownload: true,
		backend:      "auto",
		now:          time.Now,
		out:          os.Stdout,
		in:           os.Stdin,
	}
	app.preflightFn = app.ensureTranscriptionReady
	app.recordFn = app.recordAudio
	app.transcribeFn = app.transcribeAudio
	app.analyzeFn = app.analyzeAudio
	app.promptFn = app.promptLine
	app.confirmFn = app.promptYesNo
	return app
}

func newRootCmd(app *appState) *cobra.Command {
	assessCmd := newAssessCmd(app)

	cmd := &cobra.Command{
		Use:           "neuromind",
		Short:         "Voice-based cognitive assessment with speech transcription and voice markers",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.initialize(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Running the binary without a subcommand starts an assessment.
			return assessCmd.RunE(cmd, args)
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "Path to the configuration file")
	flags.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
	flags.StringVar(&app.model, "model", app.model, "Model name or model file path")
	flags.StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
	flags.StringVar(&app.language, "language", app.language, "Language code (auto|en|de|...) for transcription")
	flags.BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")
	flags.StringVar(&app.backend, "backend", app.backend, "Recording backend: auto|pw-record|arecord|ffmpeg")
	flags.StringVar(&app.input, "input", app.input, "Input device (run \"neuromind devices\" to list); e.g. node-ID (pw-record), hw:1,0 (arecord), :1 (ffmpeg)")
	flags.StringVar(&app.inputFormat, "input-format", app.inputFormat, "Input format for ffmpeg backend (pulse|alsa)")

	cmd.AddCommand(assessCmd)
	cmd.AddCommand(newRecordCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newAnalyzeCmd(app))
	cmd.AddCommand(newSessionsCmd(app))
	cmd.AddCommand(newReportCmd(app))
	cmd.AddCommand(newDevicesCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// initialize loads the configuration, merges it with explicit flags and sets
// up logging. Flags win over the config file.
func (a *appState) initialize(cmd *cobra.Command) error {
	logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger

	if a.cfg == nil {
		cfg, path, exists, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
		if exists {
			logger.Debug("configuration loaded", zap.String("path", path))
		}
	}

	flags := cmd.Root().PersistentFlags()
	if !flags.Changed("model") && a.cfg.Whisper.Model != "" {
		a.model = a.cfg.Whisper.Model
	}
	if !flags.Changed("language") && a.cfg.Whisper.Language != "" {
		a.language = a.cfg.Whisper.Language
	}
	if !flags.Changed("model-dir") && a.cfg.Paths.ModelDir != "" {
		a.modelDir = a.cfg.Paths.ModelDir
	}
	if !flags.Changed("backend") && a.cfg.Recording.Backend != "" {
		a.backend = a.cfg.Recording.Backend
	}
	if !flags.Changed("input") && a.cfg.Recording.Input != "" {
		a.input = a.cfg.Recording.Input
	}

	a.language = sanitizeLanguage(a.language)
	return nil
}

func (a *appState) ensureTranscriptionReady(ctx context.Context) error {
	if _, err := whisper.NewEngine(a.cfg.Whisper.EnginePath, a.log()); err != nil {
		return err
	}
	if _, err := a.ensureModelAvailable(ctx); err != nil {
		return err
	}
	return nil
}

func (a *appState) modelStorageDir() (string, error) {
	dir := a.modelDir
	if dir == "" {
		dir = a.cfg.Paths.ModelDir
	}
	if dir == "" {
		return "", fmt.Errorf("model directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) recordingOutputPath(override, label string) (string, error) {
	if strings.TrimSpace(override) != "" {
		if err := os.MkdirAll(filepath.Dir(override), 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
		return override, nil
	}

	recordingDir := a.cfg.Paths.RecordingDir
	if err := os.MkdirAll(recordingDir, 0o755); err != nil {
		return "", fmt.Errorf("create recording directory %s: %w", recordingDir, err)
	}

	if label == "" {
		label = "recording"
	}
	return filepath.Join(recordingDir, fmt.Sprintf("%s-%s.wav", label, a.now().Format("20060102-150405.000"))), nil
}

func (a *appState) analyzeAudio(audioPath string) (voice.Markers, error) {
	clip, err := audio.DecodeWAV(audioPath)
	if err != nil {
		return voice.Markers{}, fmt.Errorf("decode audio for analysis: %w", err)
	}

	params := voice.DefaultParams()
	if a.cfg != nil {
		params.PitchMinHz = a.cfg.Voice.PitchMinHz
		params.PitchMaxHz = a.cfg.Voice.PitchMaxHz
		params.SplitTopDB = a.cfg.Voice.SplitTopDB
	}

	return voice.AnalyzeWith(clip, params), nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

func (a *appState) promptLine(label string) (string, error) {
	fmt.Fprintf(a.outWriter(), "%s ", label)
	reader := bufio.NewReader(a.in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *appState) promptYesNo(label string) (bool, error) {
	answer, err := a.promptFn(label + " [y/N]")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func (a *appState) silenceGateTranscript(audioPath string) (string, bool, error) {
	if !strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		return "", false, nil
	}

	threshold := a.cfg.Voice.SilenceThresholdDBFS
	silent, metrics, err := audio.IsSilentWAV(audioPath, threshold)
	if err != nil {
		a.log().Warn("silence gate analysis failed; continuing transcription", zap.Error(err), zap.String("audio", audioPath))
		return "", false, nil
	}

	if !silent {
		return "", false, nil
	}

	a.log().Info(
		"audio considered silent; skipping transcription",
		zap.String("audio", audioPath),
		zap.Float64("rms_dbfs", metrics.RMSdBFS),
		zap.Float64("peak_dbfs", metrics.PeakdBFS),
		zap.Float64("threshold_dbfs", threshold),
	)

	return blankAudioToken, true, nil
}
