package voice

import "math"

// voicingThresholdDBFS gates pitch tracking: frames quieter than this are
// treated as unvoiced and contribute no pitch estimate.
const voicingThresholdDBFS = -50.0

// yinThreshold is the cumulative mean normalized difference below which a
// lag is accepted as the period candidate.
const yinThreshold = 0.15

// trackPitch estimates a fundamental frequency per frame using the YIN
// difference function, bounded to [minHz, maxHz]. Unvoiced frames are
// skipped, so the returned track may be shorter than the frame count.
func trackPitch(samples []float64, sampleRate int, minHz, maxHz float64, frameLength, hopLength int) []float64 {
	if sampleRate <= 0 || minHz <= 0 || maxHz <= minHz {
		return nil
	}

	minLag := int(float64(sampleRate) / maxHz)
	maxLag := int(float64(sampleRate) / minHz)
	if minLag < 1 {
		minLag = 1
	}

	// Each frame needs frameLength+maxLag samples for the difference function.
	window := frameLength + maxLag
	if len(samples) < window {
		return nil
	}

	var track []float64
	diff := make([]float64, maxLag+1)

	for start := 0; start+window <= len(samples); start += hopLength {
		frame := samples[start : start+window]
		if frameRMSdB(frame[:frameLength]) < voicingThresholdDBFS {
			continue
		}

		lag := bestLag(frame, frameLength, minLag, maxLag, diff)
		if lag == 0 {
			continue
		}
		track = append(track, float64(sampleRate)/float64(lag))
	}

	return track
}

// bestLag evaluates the cumulative mean normalized difference function and
// returns the first lag under the YIN threshold, or the global minimum when
// no lag qualifies. Zero means no periodicity was found.
func bestLag(frame []float64, window, minLag, maxLag int, diff []float64) int {
	for tau := 1; tau <= maxLag; tau++ {
		var sum float64
		for i := 0; i < window; i++ {
			delta := frame[i] - frame[i+tau]
			sum += delta * delta
		}
		diff[tau] = sum
	}

	var runningSum float64
	bestTau := 0
	bestValue := math.Inf(1)

	for tau := 1; tau <= maxLag; tau++ {
		runningSum += diff[tau]
		if runningSum == 0 {
			continue
		}
		normalized := diff[tau] * float64(tau) / runningSum
		if tau < minLag {
			continue
		}

		if normalized < yinThreshold {
			// Walk down to the bottom of this dip before accepting.
			for tau+1 <= maxLag {
				runningSum += diff[tau+1]
				next := diff[tau+1] * float64(tau+1) / runningSum
				if next >= normalized {
					break
				}
				tau++
				normalized = next
			}
			return tau
		}
		if normalized < bestValue {
			bestValue = normalized
			bestTau = tau
		}
	}

	// A weak global minimum is still noise, not pitch.
	if bestValue > 0.5 {
		return 0
	}
	return bestTau
}

// meanAbsDiff returns the mean absolute difference between successive values.
func meanAbsDiff(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(values); i++ {
		sum += math.Abs(values[i] - values[i-1])
	}
	return sum / float64(len(values)-1)
}

func frameRMSdB(frame []float64) float64 {
	if len(frame) == 0 {
		return math.Inf(-1)
	}
	var sumSquares float64
	for _, v := range frame {
		sumSquares += v * v
	}
	rms := math.Sqrt(sumSquares / float64(len(frame)))
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(rms)
}
