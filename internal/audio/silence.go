package audio

import "math"

type SilenceMetrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// Measure computes RMS and peak levels in dBFS over the whole clip.
func Measure(clip Clip) SilenceMetrics {
	if len(clip.Samples) == 0 {
		return SilenceMetrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}
	}

	var peak, sumSquares float64
	for _, value := range clip.Samples {
		abs := math.Abs(value)
		if abs > peak {
			peak = abs
		}
		sumSquares += value * value
	}

	rms := math.Sqrt(sumSquares / float64(len(clip.Samples)))
	return SilenceMetrics{
		RMSdBFS:  AmplitudeToDBFS(rms),
		PeakdBFS: AmplitudeToDBFS(peak),
		Samples:  int64(len(clip.Samples)),
	}
}

// IsSilent reports whether the clip falls below the RMS threshold. The peak
// gate sits 6 dB above the threshold so a single loud click does not mark an
// otherwise quiet recording as speech.
func IsSilent(clip Clip, thresholdDBFS float64) (bool, SilenceMetrics) {
	metrics := Measure(clip)

	if metrics.Samples == 0 {
		return true, metrics
	}
	if math.IsInf(metrics.RMSdBFS, -1) && math.IsInf(metrics.PeakdBFS, -1) {
		return true, metrics
	}

	peakGate := thresholdDBFS + 6
	return metrics.RMSdBFS <= thresholdDBFS && metrics.PeakdBFS <= peakGate, metrics
}

// IsSilentWAV decodes the file at path and applies the silence gate.
func IsSilentWAV(path string, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	clip, err := DecodeWAV(path)
	if err != nil {
		return false, SilenceMetrics{}, err
	}
	silent, metrics := IsSilent(clip, thresholdDBFS)
	return silent, metrics, nil
}

// AmplitudeToDBFS converts a linear amplitude to decibels relative to full scale.
func AmplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
