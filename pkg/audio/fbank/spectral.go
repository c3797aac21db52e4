package fbank

import (
	"math"
	"math/rand"
)

// Spectrum is a complex STFT: Re[t][k], Im[t][k] for k in [0, FFTSize/2].
type Spectrum struct {
	Re, Im [][]float64
}

// STFT computes the Hamming-windowed short-time Fourier transform of pcm
// using the extractor's window, hop and FFT size.
func (e *Extractor) STFT(pcm []float64) Spectrum {
	cfg := e.cfg
	frames := e.NumFrames(len(pcm))
	half := cfg.FFTSize/2 + 1
	s := Spectrum{Re: make([][]float64, frames), Im: make([][]float64, frames)}
	re := make([]float64, cfg.FFTSize)
	im := make([]float64, cfg.FFTSize)
	for t := 0; t < frames; t++ {
		start := t * cfg.HopSize
		for i := range re {
			re[i], im[i] = 0, 0
			if i < cfg.WindowSize {
				re[i] = pcm[start+i] * e.window[i]
			}
		}
		fft(re, im)
		s.Re[t] = append([]float64(nil), re[:half]...)
		s.Im[t] = append([]float64(nil), im[:half]...)
	}
	return s
}

// ISTFT inverts s by windowed overlap-add into n samples.
func (e *Extractor) ISTFT(s Spectrum, n int) []float64 {
	cfg := e.cfg
	out := make([]float64, n)
	norm := make([]float64, n)
	re := make([]float64, cfg.FFTSize)
	im := make([]float64, cfg.FFTSize)
	half := cfg.FFTSize/2 + 1
	for t := range s.Re {
		// Rebuild the full Hermitian spectrum.
		for k := 0; k < half; k++ {
			re[k], im[k] = s.Re[t][k], s.Im[t][k]
		}
		for k := half; k < cfg.FFTSize; k++ {
			re[k], im[k] = re[cfg.FFTSize-k], -im[cfg.FFTSize-k]
		}
		ifft(re, im)
		start := t * cfg.HopSize
		for i := 0; i < cfg.WindowSize && start+i < n; i++ {
			w := e.window[i]
			out[start+i] += re[i] * w
			norm[start+i] += w * w
		}
	}
	for i := range out {
		if norm[i] > 1e-8 {
			out[i] /= norm[i]
		}
	}
	return out
}

// GriffinLim reconstructs a waveform from log mel frames by iterative phase
// estimation over iters rounds. The phase is seeded from rng so the output
// is deterministic for a given seed.
func (e *Extractor) GriffinLim(logMel [][]float32, iters int, rng *rand.Rand) []float32 {
	if len(logMel) == 0 {
		return nil
	}
	cfg := e.cfg
	n := (len(logMel)-1)*cfg.HopSize + cfg.WindowSize
	half := cfg.FFTSize/2 + 1

	mag := make([][]float64, len(logMel))
	s := Spectrum{Re: make([][]float64, len(logMel)), Im: make([][]float64, len(logMel))}
	for t, frame := range logMel {
		p := e.LinearPower(frame, nil)
		mag[t] = make([]float64, half)
		s.Re[t] = make([]float64, half)
		s.Im[t] = make([]float64, half)
		for k := range p {
			mag[t][k] = math.Sqrt(p[k])
			phase := 2 * math.Pi * rng.Float64()
			s.Re[t][k] = mag[t][k] * math.Cos(phase)
			s.Im[t][k] = mag[t][k] * math.Sin(phase)
		}
	}

	signal := e.ISTFT(s, n)
	for i := 0; i < iters; i++ {
		est := e.STFT(signal)
		for t := range est.Re {
			for k := 0; k < half; k++ {
				r, im := est.Re[t][k], est.Im[t][k]
				a := math.Hypot(r, im)
				if a < 1e-12 {
					s.Re[t][k], s.Im[t][k] = mag[t][k], 0
					continue
				}
				s.Re[t][k] = mag[t][k] * r / a
				s.Im[t][k] = mag[t][k] * im / a
			}
		}
		signal = e.ISTFT(s, n)
	}

	// Undo pre-emphasis and normalize the peak to avoid clipping.
	out := make([]float32, n)
	var prev, peak float64
	for i, v := range signal {
		v += cfg.PreEmphasis * prev
		prev = v
		signal[i] = v
		peak = math.Max(peak, math.Abs(v))
	}
	scale := 1.0
	if peak > 0.99 {
		scale = 0.99 / peak
	}
	for i, v := range signal {
		out[i] = float32(v * scale)
	}
	return out
}
