package cli

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neuromind/neuromind/internal/config"
)

func newTestApp(t *testing.T) *appState {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		RecordingDir: filepath.Join(dir, "recordings"),
		ModelDir:     filepath.Join(dir, "models"),
		ReportDir:    filepath.Join(dir, "reports"),
		DatabasePath: filepath.Join(dir, "neuromind.db"),
	}
	cfg.Recording.AnswerSeconds = 1
	cfg.Recording.BaselineSeconds = 1

	app := newAppState()
	app.cfg = &cfg
	app.logger = zap.NewNop()
	app.noProgress = true
	app.out = &bytes.Buffer{}
	app.now = func() time.Time {
		return time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)
	}
	return app
}

func executeCommand(t *testing.T, app *appState, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeSineWAV writes a mono PCM16 sine tone loud enough to pass the silence
// gate.
func writeSineWAV(t *testing.T, path string, freqHz float64, seconds float64) {
	t.Helper()

	sampleRate := 16000
	count := int(float64(sampleRate) * seconds)
	samples := make([]int16, count)
	for i := range samples {
		v := 0.5 * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate))
		samples[i] = int16(v * math.MaxInt16)
	}
	require.NoError(t, os.WriteFile(path, makePCM16WAV(samples, sampleRate), 0o644))
}

func writeSilentWAV(t *testing.T, path string, seconds float64) {
	t.Helper()

	sampleRate := 16000
	samples := make([]int16, int(float64(sampleRate)*seconds))
	require.NoError(t, os.WriteFile(path, makePCM16WAV(samples, sampleRate), 0o644))
}

func makePCM16WAV(samples []int16, sampleRate int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(4+(8+fmtChunkSize)+(8+dataSize)))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}

func requirePDF(t *testing.T, path string) {
	t.Helper()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(raw), 4)
	require.Equal(t, "%PDF", string(raw[:4]))
}
