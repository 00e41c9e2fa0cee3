package record

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"time"
)

type alsaBackend struct{}

func newALSABackend() Backend {
	return &alsaBackend{}
}

func (b *alsaBackend) Name() string {
	return "arecord"
}

func (b *alsaBackend) Available() bool {
	return commandAvailable("arecord")
}

func (b *alsaBackend) Record(ctx context.Context, cfg Config) error {
	if err := prepareOutput(cfg); err != nil {
		return err
	}

	args := []string{"-f", "S16_LE", "-r", strconv.Itoa(defaultSampleRate(cfg.SampleRate)), "-c", strconv.Itoa(defaultChannels(cfg.Channels))}
	if cfg.Input != "" {
		args = append(args, "-D", cfg.Input)
	}
	args = append(args, cfg.OutputPath)
	if cfg.Duration > 0 {
		args = append([]string{"-d", strconv.Itoa(int(cfg.Duration / time.Second))}, args...)
	}

	// Timed runs keep the process off the context so the stop signal, not a
	// hard kill, ends the capture and arecord can finalize the WAV header.
	var cmd *exec.Cmd
	if !cfg.Interactive && cfg.Duration > 0 {
		cmd = exec.Command("arecord", args...)
	} else {
		cmd = exec.CommandContext(ctx, "arecord", args...)
	}
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if cfg.Interactive {
		return runInteractiveCommand(ctx, cmd, cfg.Logger)
	}

	if cfg.Duration > 0 {
		return runTimedCommand(ctx, cmd, cfg.Duration, cfg.Logger)
	}

	return cmd.Run()
}

func (b *alsaBackend) ListDevices(ctx context.Context) (string, error) {
	return commandOutput(ctx, "arecord", "-L")
}
