package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ffmpegBackend is the portable fallback. On linux it tries the pulse and
// alsa input formats in turn, on darwin it captures via avfoundation.
type ffmpegBackend struct {
	goos string
}

func newFFmpegBackend(goos string) Backend {
	return &ffmpegBackend{goos: goos}
}

func (b *ffmpegBackend) Name() string {
	return "ffmpeg"
}

func (b *ffmpegBackend) Available() bool {
	return commandAvailable("ffmpeg")
}

type ffmpegInput struct {
	format string
	input  string
}

func (b *ffmpegBackend) inputs(cfg Config) []ffmpegInput {
	if cfg.Format != "" {
		input := cfg.Input
		if input == "" {
			input = "default"
		}
		return []ffmpegInput{{format: cfg.Format, input: input}}
	}

	if b.goos == "darwin" {
		input := cfg.Input
		if input == "" {
			input = ":0"
		}
		return []ffmpegInput{{format: "avfoundation", input: input}}
	}

	return []ffmpegInput{
		{format: "pulse", input: "default"},
		{format: "alsa", input: "default"},
	}
}

func (b *ffmpegBackend) Record(ctx context.Context, cfg Config) error {
	if err := prepareOutput(cfg); err != nil {
		return err
	}

	var errs []error
	for _, candidate := range b.inputs(cfg) {
		args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y", "-f", candidate.format, "-i", candidate.input}
		if cfg.Duration > 0 {
			args = append(args, "-t", strconv.Itoa(int(cfg.Duration/time.Second)))
		}
		args = append(args,
			"-ac", strconv.Itoa(defaultChannels(cfg.Channels)),
			"-ar", strconv.Itoa(defaultSampleRate(cfg.SampleRate)),
			"-c:a", "pcm_s16le",
			cfg.OutputPath,
		)

		var cmd *exec.Cmd
		if !cfg.Interactive && cfg.Duration > 0 {
			cmd = exec.Command("ffmpeg", args...)
		} else {
			cmd = exec.CommandContext(ctx, "ffmpeg", args...)
		}
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr

		var err error
		switch {
		case cfg.Interactive:
			err = runInteractiveCommand(ctx, cmd, cfg.Logger)
		case cfg.Duration > 0:
			err = runTimedCommand(ctx, cmd, cfg.Duration, cfg.Logger)
		default:
			err = cmd.Run()
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		errs = append(errs, fmt.Errorf("ffmpeg (%s/%s): %w", candidate.format, candidate.input, err))
	}

	return errors.Join(errs...)
}

func (b *ffmpegBackend) ListDevices(ctx context.Context) (string, error) {
	if b.goos == "darwin" {
		// ffmpeg exits non-zero after listing avfoundation devices, the
		// output is still what we want.
		cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
		out, _ := cmd.CombinedOutput()
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return "", fmt.Errorf("ffmpeg returned no device output")
		}
		return trimmed, nil
	}

	var sections []string

	if commandAvailable("pactl") {
		if out, err := commandOutput(ctx, "pactl", "list", "short", "sources"); err == nil {
			sections = append(sections, "PulseAudio/PipeWire sources:\n"+out)
		} else {
			sections = append(sections, "PulseAudio/PipeWire sources: "+err.Error())
		}
	}

	if commandAvailable("arecord") {
		if out, err := commandOutput(ctx, "arecord", "-L"); err == nil {
			sections = append(sections, "ALSA devices:\n"+out)
		} else {
			sections = append(sections, "ALSA devices: "+err.Error())
		}
	}

	if len(sections) == 0 {
		return "", errors.New("no device listing command available")
	}

	return strings.Join(sections, "\n\n"), nil
}
