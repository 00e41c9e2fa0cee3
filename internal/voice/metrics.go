// Package voice derives stress, anxiety and depression markers from recorded
// speech. The markers are screening signals on a [0, 1] scale, not clinical
// measurements.
package voice

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/neuromind/neuromind/internal/audio"
)

// Markers holds the derived voice signals together with the raw measurements
// they were computed from.
type Markers struct {
	Stress     float64
	Anxiety    float64
	Depression float64

	JitterHz         float64
	VoicedSegments   int
	SpectralCentroid float64
}

// Params controls the frame-based analysis.
type Params struct {
	FrameLength int
	HopLength   int
	PitchMinHz  float64
	PitchMaxHz  float64
	SplitTopDB  float64
}

// DefaultParams matches the analysis windows the assessment uses for 16 kHz
// mono recordings.
func DefaultParams() Params {
	return Params{
		FrameLength: 1024,
		HopLength:   512,
		PitchMinHz:  100,
		PitchMaxHz:  400,
		SplitTopDB:  25,
	}
}

const (
	// stressJitterFullScaleHz is the mean pitch perturbation that maps to a
	// stress marker of 1.0.
	stressJitterFullScaleHz = 8.0
	// anxietySegmentFullScale is the voiced-segment count that maps to an
	// anxiety marker of 1.0; fragmented speech scores higher.
	anxietySegmentFullScale = 10.0
	// depressionCentroidScaleHz maps low spectral brightness to the
	// depression marker: flat, dull speech sits near 1.0.
	depressionCentroidScaleHz = 500.0
)

// Analyze computes voice markers with default parameters.
func Analyze(clip audio.Clip) Markers {
	return AnalyzeWith(clip, DefaultParams())
}

// AnalyzeWith computes voice markers for the clip. Empty or silent clips
// yield zero markers rather than an error.
func AnalyzeWith(clip audio.Clip, params Params) Markers {
	if len(clip.Samples) == 0 || clip.SampleRate <= 0 {
		return Markers{}
	}
	if silent, _ := audio.IsSilent(clip, voicingThresholdDBFS); silent {
		return Markers{}
	}

	track := trackPitch(clip.Samples, clip.SampleRate, params.PitchMinHz, params.PitchMaxHz, params.FrameLength, params.HopLength)
	jitter := meanAbsDiff(track)

	segments := voicedSegments(clip.Samples, params.FrameLength, params.HopLength, params.SplitTopDB)
	centroid := meanSpectralCentroid(clip.Samples, clip.SampleRate, params.FrameLength, params.HopLength)

	return Markers{
		Stress:           clamp01(jitter / stressJitterFullScaleHz),
		Anxiety:          clamp01(float64(segments) / anxietySegmentFullScale),
		Depression:       clamp01(1 - centroid/depressionCentroidScaleHz),
		JitterHz:         jitter,
		VoicedSegments:   segments,
		SpectralCentroid: centroid,
	}
}

// voicedSegments counts contiguous runs of frames whose level stays within
// topDB of the loudest frame.
func voicedSegments(samples []float64, frameLength, hopLength int, topDB float64) int {
	if len(samples) < frameLength {
		frameLength = len(samples)
	}
	if frameLength == 0 || hopLength <= 0 {
		return 0
	}

	var levels []float64
	maxLevel := math.Inf(-1)
	for start := 0; start+frameLength <= len(samples); start += hopLength {
		level := frameRMSdB(samples[start : start+frameLength])
		levels = append(levels, level)
		if level > maxLevel {
			maxLevel = level
		}
	}
	if len(levels) == 0 || math.IsInf(maxLevel, -1) {
		return 0
	}

	gate := maxLevel - topDB
	segments := 0
	inSegment := false
	for _, level := range levels {
		voiced := level > gate
		if voiced && !inSegment {
			segments++
		}
		inSegment = voiced
	}
	return segments
}

// meanSpectralCentroid averages the magnitude-weighted frequency across
// Hann-windowed frames.
func meanSpectralCentroid(samples []float64, sampleRate int, frameLength, hopLength int) float64 {
	if len(samples) < frameLength || frameLength <= 0 || hopLength <= 0 {
		return 0
	}

	fft := fourier.NewFFT(frameLength)
	window := hannWindow(frameLength)
	frame := make([]float64, frameLength)

	var sum float64
	var frames int
	for start := 0; start+frameLength <= len(samples); start += hopLength {
		for i := range frame {
			frame[i] = samples[start+i] * window[i]
		}

		coeffs := fft.Coefficients(nil, frame)
		var weighted, total float64
		for k, c := range coeffs {
			magnitude := cmplx.Abs(c)
			weighted += fft.Freq(k) * float64(sampleRate) * magnitude
			total += magnitude
		}
		if total == 0 {
			continue
		}
		sum += weighted / total
		frames++
	}

	if frames == 0 {
		return 0
	}
	return sum / float64(frames)
}

func hannWindow(n int) []float64 {
	window := make([]float64, n)
	if n == 1 {
		window[0] = 1
		return window
	}
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return window
}

func clamp01(value float64) float64 {
	return math.Max(0, math.Min(1, value))
}
