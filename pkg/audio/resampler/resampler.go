package resampler

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts normalized mono samples from srcRate to dstRate.
// When the rates match it returns a copy of samples.
func Resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate || len(samples) == 0 {
		return append([]float32(nil), samples...), nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create: %w", err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}
	output, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}

	out := make([]float32, len(output))
	for i, s := range output {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		out[i] = float32(s)
	}
	return out, nil
}

// Downmix averages interleaved frames of the given channel count into mono.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
