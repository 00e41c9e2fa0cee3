package audio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeWAVMono(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 16384, -16384, 32767}
	path := filepath.Join(t.TempDir(), "mono.wav")
	require.NoError(t, os.WriteFile(path, makePCM16WAV(samples, 16000, 1), 0o644))

	clip, err := DecodeWAV(path)
	require.NoError(t, err)
	require.Equal(t, 16000, clip.SampleRate)
	require.Len(t, clip.Samples, len(samples))
	require.InDelta(t, 0.0, clip.Samples[0], 1e-9)
	require.InDelta(t, 0.5, clip.Samples[1], 1e-4)
	require.InDelta(t, -0.5, clip.Samples[2], 1e-4)
}

func TestDecodeWAVDownmixesStereo(t *testing.T) {
	t.Parallel()

	// Interleaved L/R frames: (16384, 0) and (-16384, 16384).
	samples := []int16{16384, 0, -16384, 16384}
	path := filepath.Join(t.TempDir(), "stereo.wav")
	require.NoError(t, os.WriteFile(path, makePCM16WAV(samples, 16000, 2), 0o644))

	clip, err := DecodeWAV(path)
	require.NoError(t, err)
	require.Len(t, clip.Samples, 2)
	require.InDelta(t, 0.25, clip.Samples[0], 1e-4)
	require.InDelta(t, 0.0, clip.Samples[1], 1e-4)
}

func TestDecodeWAVFloat32(t *testing.T) {
	t.Parallel()

	values := []float32{0, 0.5, -0.25}
	path := filepath.Join(t.TempDir(), "float.wav")
	require.NoError(t, os.WriteFile(path, makeFloat32WAV(values, 16000), 0o644))

	clip, err := DecodeWAV(path)
	require.NoError(t, err)
	require.Len(t, clip.Samples, len(values))
	for i, want := range values {
		require.InDelta(t, float64(want), clip.Samples[i], 1e-6)
	}
}

func TestDecodeWAVSkipsOddSizedChunk(t *testing.T) {
	t.Parallel()

	base := makePCM16WAV([]int16{0, 16384}, 16000, 1)
	// Splice a 3-byte LIST chunk plus its word-alignment pad byte between
	// the RIFF header and the fmt chunk.
	odd := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'I', 'N', 'F', 0}
	wav := append(append(append([]byte{}, base[:12]...), odd...), base[12:]...)
	binary.LittleEndian.PutUint32(wav[4:], uint32(len(wav)-8))

	path := filepath.Join(t.TempDir(), "oddchunk.wav")
	require.NoError(t, os.WriteFile(path, wav, 0o644))

	clip, err := DecodeWAV(path)
	require.NoError(t, err)
	require.Equal(t, 16000, clip.SampleRate)
	require.Len(t, clip.Samples, 2)
	require.InDelta(t, 0.5, clip.Samples[1], 1e-4)
}

func TestDecodeWAVEmptyDataChunk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.wav")
	require.NoError(t, os.WriteFile(path, makePCM16WAV(nil, 16000, 1), 0o644))

	clip, err := DecodeWAV(path)
	require.NoError(t, err)
	require.Equal(t, 16000, clip.SampleRate)
	require.Empty(t, clip.Samples)
}

func TestDecodeWAVRejectsTruncatedHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "short.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))

	_, err := DecodeWAV(path)
	require.ErrorIs(t, err, ErrInvalidWAV)
}

func TestDecodeWAVRejectsMissingDataChunk(t *testing.T) {
	t.Parallel()

	full := makePCM16WAV([]int16{1, 2, 3}, 16000, 1)
	// Keep the RIFF header and fmt chunk only.
	truncated := full[:12+8+16]

	path := filepath.Join(t.TempDir(), "nodata.wav")
	require.NoError(t, os.WriteFile(path, truncated, 0o644))

	_, err := DecodeWAV(path)
	require.ErrorIs(t, err, ErrInvalidWAV)
}

func TestClipDuration(t *testing.T) {
	t.Parallel()

	clip := Clip{Samples: make([]float64, 8000), SampleRate: 16000}
	require.InDelta(t, 0.5, clip.Duration().Seconds(), 1e-9)

	require.Zero(t, Clip{}.Duration())
}

func makeFloat32WAV(values []float32, sampleRate int) []byte {
	bytesPerSample := 4
	dataSize := len(values) * bytesPerSample
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
	binary.LittleEndian.PutUint16(out[off:], 3)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 32)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, v := range values {
		binary.LittleEndian.PutUint32(out[off:], math.Float32bits(v))
		off += 4
	}

	return out
}
