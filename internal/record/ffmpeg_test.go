package record

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFFmpegDarwinListDevicesReturnsOutputOnNonZeroExit(t *testing.T) {
	tempDir := t.TempDir()

	stubPath := filepath.Join(tempDir, "ffmpeg")
	stub := `#!/bin/sh
>&2 echo "[AVFoundation indev] AVFoundation audio devices:"
>&2 echo "[AVFoundation indev] [0] Built-in Microphone"
exit 1
`
	require.NoError(t, os.WriteFile(stubPath, []byte(stub), 0o755))

	t.Setenv("PATH", tempDir+":"+os.Getenv("PATH"))

	backend := newFFmpegBackend("darwin")
	require.True(t, backend.Available())

	out, err := backend.ListDevices(context.Background())
	require.NoError(t, err)
	require.Contains(t, out, "Built-in Microphone")
}

func TestFFmpegLinuxTriesPulseThenALSA(t *testing.T) {
	linuxBackend, ok := newFFmpegBackend("linux").(*ffmpegBackend)
	require.True(t, ok)

	inputs := linuxBackend.inputs(Config{})
	require.Len(t, inputs, 2)
	require.Equal(t, "pulse", inputs[0].format)
	require.Equal(t, "alsa", inputs[1].format)
}

func TestFFmpegExplicitFormatOverridesCandidates(t *testing.T) {
	linuxBackend, ok := newFFmpegBackend("linux").(*ffmpegBackend)
	require.True(t, ok)

	inputs := linuxBackend.inputs(Config{Format: "jack", Input: "system"})
	require.Len(t, inputs, 1)
	require.Equal(t, "jack", inputs[0].format)
	require.Equal(t, "system", inputs[0].input)
}

func TestFFmpegDarwinDefaultsToFirstAudioDevice(t *testing.T) {
	macBackend, ok := newFFmpegBackend("darwin").(*ffmpegBackend)
	require.True(t, ok)

	inputs := macBackend.inputs(Config{})
	require.Len(t, inputs, 1)
	require.Equal(t, "avfoundation", inputs[0].format)
	require.Equal(t, ":0", inputs[0].input)
}

func TestALSATimedCaptureReturnsContextCancellation(t *testing.T) {
	tempDir, readyFile := setupRunningCommandStub(t, "arecord", false)

	backend := newALSABackend()
	require.True(t, backend.Available())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- backend.Record(ctx, Config{
			OutputPath: filepath.Join(tempDir, "out.wav"),
			Duration:   3 * time.Second,
		})
	}()
	t.Cleanup(cancel)

	waitForFile(t, readyFile, time.Second)
	cancel()

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
}

func TestFFmpegTimedCaptureReturnsContextCancellation(t *testing.T) {
	tempDir, readyFile := setupRunningCommandStub(t, "ffmpeg", false)

	backend := newFFmpegBackend("linux")
	require.True(t, backend.Available())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- backend.Record(ctx, Config{
			OutputPath: filepath.Join(tempDir, "out.wav"),
			Duration:   3 * time.Second,
			Format:     "pulse",
		})
	}()
	t.Cleanup(cancel)

	waitForFile(t, readyFile, time.Second)
	cancel()

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunTimedCommandKillsWhenInterruptIgnored(t *testing.T) {
	tempDir, readyFile := setupRunningCommandStub(t, "ignore-int", true)

	cmd := exec.Command(filepath.Join(tempDir, "ignore-int"))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- runTimedCommand(ctx, cmd, 3*time.Second, nil)
	}()
	t.Cleanup(cancel)

	waitForFile(t, readyFile, time.Second)
	start := time.Now()
	cancel()

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestRunTimedCommandStopsOnTimerWhenInterruptIgnored(t *testing.T) {
	tempDir, readyFile := setupRunningCommandStub(t, "ignore-int", true)

	cmd := exec.Command(filepath.Join(tempDir, "ignore-int"))
	errCh := make(chan error, 1)
	start := time.Now()
	go func() {
		errCh <- runTimedCommand(context.Background(), cmd, 100*time.Millisecond, nil)
	}()

	waitForFile(t, readyFile, time.Second)
	err := <-errCh
	require.NoError(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func setupRunningCommandStub(t *testing.T, name string, ignoreInterrupt bool) (string, string) {
	t.Helper()

	tempDir := t.TempDir()
	readyFile := filepath.Join(tempDir, "ready.txt")

	trap := "trap 'exit 0' INT"
	if ignoreInterrupt {
		trap = "trap '' INT"
	}

	stubPath := filepath.Join(tempDir, name)
	stub := "#!/bin/sh\nset -eu\ntouch \"$READY_FILE\"\n" + trap + "\nwhile :; do sleep 0.02; done\n"
	require.NoError(t, os.WriteFile(stubPath, []byte(stub), 0o755))

	t.Setenv("PATH", tempDir+":"+os.Getenv("PATH"))
	t.Setenv("READY_FILE", readyFile)

	return tempDir, readyFile
}
