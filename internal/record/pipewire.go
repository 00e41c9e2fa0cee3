package record

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
)

type pipewireBackend struct{}

func newPipeWireBackend() Backend {
	return &pipewireBackend{}
}

func (b *pipewireBackend) Name() string {
	return "pw-record"
}

func (b *pipewireBackend) Available() bool {
	return commandAvailable("pw-record")
}

func (b *pipewireBackend) Record(ctx context.Context, cfg Config) error {
	if err := prepareOutput(cfg); err != nil {
		return err
	}

	// pw-record has no duration flag; timed capture is handled by stopping
	// the process from here.
	args := []string{
		"--rate", strconv.Itoa(defaultSampleRate(cfg.SampleRate)),
		"--channels", strconv.Itoa(defaultChannels(cfg.Channels)),
		"--format", "s16",
	}
	if cfg.Input != "" {
		args = append(args, "--target", cfg.Input)
	}
	args = append(args, cfg.OutputPath)

	// Timed runs keep the process off the context so the stop signal, not a
	// hard kill, ends the capture and the WAV header gets finalized.
	var cmd *exec.Cmd
	if !cfg.Interactive && cfg.Duration > 0 {
		cmd = exec.Command("pw-record", args...)
	} else {
		cmd = exec.CommandContext(ctx, "pw-record", args...)
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

func (b *pipewireBackend) ListDevices(ctx context.Context) (string, error) {
	if commandAvailable("pw-cli") {
		return commandOutput(ctx, "pw-cli", "ls", "Node")
	}

	if out, err := commandOutput(ctx, "pw-record", "--list-targets"); err == nil {
		return out, nil
	}

	if commandAvailable("pactl") {
		return commandOutput(ctx, "pactl", "list", "short", "sources")
	}

	return "", errors.New("no pipewire device listing command available")
}
