package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

// Clip holds decoded audio as mono float64 samples in [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the clip length derived from sample count and rate.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// DecodeWAV reads a RIFF/WAVE file and returns its samples downmixed to mono.
// PCM 8/16/24/32 bit and IEEE float 32/64 bit formats are supported.
func DecodeWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	return decodeWAV(f)
}

type wavFormat struct {
	encoding      uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

func decodeWAV(f *os.File) (Clip, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Clip{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return Clip{}, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Clip{}, ErrInvalidWAV
	}

	var (
		format     wavFormat
		dataOffset int64
		dataSize   uint32
		hasFmt     bool
		hasData    bool
	)

	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return Clip{}, fmt.Errorf("read wav chunk header: %w", err)
		}

		chunkID := string(chunkHeader[:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		chunkStart, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return Clip{}, fmt.Errorf("seek wav chunk start: %w", err)
		}

		// RIFF chunks are word aligned; odd sizes carry a padding byte.
		skip := int64(chunkSize)
		if chunkSize%2 != 0 {
			skip++
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Clip{}, ErrInvalidWAV
			}
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, buf); err != nil {
				return Clip{}, fmt.Errorf("read wav fmt chunk: %w", err)
			}
			format = wavFormat{
				encoding:      binary.LittleEndian.Uint16(buf[0:2]),
				channels:      binary.LittleEndian.Uint16(buf[2:4]),
				sampleRate:    binary.LittleEndian.Uint32(buf[4:8]),
				bitsPerSample: binary.LittleEndian.Uint16(buf[14:16]),
			}
			hasFmt = true
			if chunkSize%2 != 0 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return Clip{}, fmt.Errorf("seek wav fmt padding: %w", err)
				}
			}
		case "data":
			dataOffset = chunkStart
			dataSize = chunkSize
			hasData = true
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return Clip{}, fmt.Errorf("seek wav data chunk: %w", err)
			}
		default:
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return Clip{}, fmt.Errorf("seek wav chunk %s: %w", chunkID, err)
			}
		}
	}

	if !hasFmt || !hasData {
		return Clip{}, ErrInvalidWAV
	}
	if err := format.validate(); err != nil {
		return Clip{}, err
	}

	if _, err := f.Seek(dataOffset, io.SeekStart); err != nil {
		return Clip{}, fmt.Errorf("seek wav data offset: %w", err)
	}
	data := make([]byte, dataSize)
	if _, err := io.ReadFull(f, data); err != nil {
		return Clip{}, fmt.Errorf("read wav data: %w", err)
	}

	samples, err := decodeSamples(data, format)
	if err != nil {
		return Clip{}, err
	}

	return Clip{Samples: samples, SampleRate: int(format.sampleRate)}, nil
}

const (
	encodingPCM   = 1
	encodingFloat = 3
)

func (f wavFormat) validate() error {
	if f.channels == 0 || f.sampleRate == 0 {
		return ErrInvalidWAV
	}

	switch f.encoding {
	case encodingPCM:
		switch f.bitsPerSample {
		case 8, 16, 24, 32:
			return nil
		}
	case encodingFloat:
		switch f.bitsPerSample {
		case 32, 64:
			return nil
		}
	}
	return ErrUnsupportedWAV
}

// decodeSamples converts interleaved frames to mono by averaging channels.
func decodeSamples(data []byte, format wavFormat) ([]float64, error) {
	bytesPerSample := int(format.bitsPerSample / 8)
	if bytesPerSample <= 0 {
		return nil, ErrUnsupportedWAV
	}

	channels := int(format.channels)
	frameSize := bytesPerSample * channels
	frames := len(data) / frameSize

	samples := make([]float64, 0, frames)
	for frame := 0; frame < frames; frame++ {
		base := frame * frameSize
		var sum float64
		for ch := 0; ch < channels; ch++ {
			off := base + ch*bytesPerSample
			value, err := decodeSample(data[off:off+bytesPerSample], format.encoding, format.bitsPerSample)
			if err != nil {
				return nil, err
			}
			sum += value
		}
		samples = append(samples, sum/float64(channels))
	}

	return samples, nil
}

func decodeSample(sample []byte, encoding, bitsPerSample uint16) (float64, error) {
	if encoding == encodingFloat {
		switch bitsPerSample {
		case 32:
			bits := binary.LittleEndian.Uint32(sample)
			return float64(math.Float32frombits(bits)), nil
		case 64:
			bits := binary.LittleEndian.Uint64(sample)
			return math.Float64frombits(bits), nil
		default:
			return 0, ErrUnsupportedWAV
		}
	}

	switch bitsPerSample {
	case 8:
		u := float64(sample[0])
		return (u - 128.0) / 128.0, nil
	case 16:
		v := int16(binary.LittleEndian.Uint16(sample))
		return float64(v) / 32768.0, nil
	case 24:
		v := int32(sample[0]) | int32(sample[1])<<8 | int32(sample[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float64(v) / 8388608.0, nil
	case 32:
		v := int32(binary.LittleEndian.Uint32(sample))
		return float64(v) / 2147483648.0, nil
	default:
		return 0, ErrUnsupportedWAV
	}
}
