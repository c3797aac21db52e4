package features

import "math"

// TrimSilence removes leading and trailing frames of frameSize samples
// whose RMS is at or below level. Inputs shorter than three frames are
// returned unchanged, as is input that never rises above level.
func TrimSilence(samples []float32, level float64, frameSize int) []float32 {
	if frameSize <= 0 {
		return samples
	}
	numFrames := len(samples) / frameSize
	if numFrames < 3 {
		return samples
	}

	rms := func(f int) float64 {
		var sum float64
		for _, s := range samples[f*frameSize : (f+1)*frameSize] {
			sum += float64(s) * float64(s)
		}
		return math.Sqrt(sum / float64(frameSize))
	}

	first := -1
	for f := 0; f < numFrames; f++ {
		if rms(f) > level {
			first = f
			break
		}
	}
	if first < 0 {
		return samples
	}
	last := first
	for f := numFrames - 1; f > first; f-- {
		if rms(f) > level {
			last = f
			break
		}
	}

	end := (last + 1) * frameSize
	if last == numFrames-1 {
		end = len(samples)
	}
	return samples[first*frameSize : end]
}
