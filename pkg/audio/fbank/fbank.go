// Package fbank computes log mel filterbank features from PCM audio and
// projects them back to a linear spectrum.
//
// The forward path is the usual Kaldi-style front-end: pre-emphasis,
// Hamming window, FFT power spectrum, triangular mel filters, natural log.
// The output is a [T][NumMels] float32 matrix.
//
// Default parameters, applied by [New] to zero fields except PreEmphasis,
// where zero disables the filter ([DefaultConfig] sets 0.97):
//
//	SampleRate:  16000
//	WindowSize:  400 (25 ms)
//	HopSize:     160 (10 ms)
//	FFTSize:     512
//	NumMels:     80
//	LowFreq:     20
//	HighFreq:  7600
//	PreEmphasis: 0.97
package fbank

import "math"

// Config controls mel filterbank extraction parameters.
type Config struct {
	SampleRate  int     `yaml:"sample_rate"`  // audio sample rate in Hz
	WindowSize  int     `yaml:"window_size"`  // window length in samples
	HopSize     int     `yaml:"hop_size"`     // hop length in samples
	FFTSize     int     `yaml:"fft_size"`     // FFT size, power of two
	NumMels     int     `yaml:"num_mels"`     // number of mel bins
	LowFreq     float64 `yaml:"low_freq"`     // lowest mel frequency
	HighFreq    float64 `yaml:"high_freq"`    // highest mel frequency
	PreEmphasis float64 `yaml:"pre_emphasis"` // pre-emphasis coefficient, 0 disables
}

// DefaultConfig returns the 16 kHz, 80-bin configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		WindowSize:  400,
		HopSize:     160,
		FFTSize:     512,
		NumMels:     80,
		LowFreq:     20,
		HighFreq:    7600,
		PreEmphasis: 0.97,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.WindowSize == 0 {
		c.WindowSize = d.WindowSize
	}
	if c.HopSize == 0 {
		c.HopSize = d.HopSize
	}
	if c.FFTSize == 0 {
		c.FFTSize = d.FFTSize
	}
	if c.NumMels == 0 {
		c.NumMels = d.NumMels
	}
	if c.LowFreq == 0 {
		c.LowFreq = d.LowFreq
	}
	if c.HighFreq == 0 {
		// Stay 400 Hz below Nyquist, as the 16 kHz default does.
		c.HighFreq = float64(c.SampleRate)/2 - 400
	}
	return c
}

// logFloor keeps log() away from -inf on silent frames.
const logFloor = 1e-10

// Extractor computes mel filterbank features. It is safe for concurrent use.
type Extractor struct {
	cfg    Config
	window []float64
	bank   []filter
}

// New creates an Extractor. Zero fields of cfg other than PreEmphasis take
// default values.
func New(cfg Config) *Extractor {
	cfg = cfg.withDefaults()
	return &Extractor{
		cfg:    cfg,
		window: hammingWindow(cfg.WindowSize),
		bank:   melFilters(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
	}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// NumFrames returns how many frames Extract produces for n samples.
func (e *Extractor) NumFrames(n int) int {
	if n < e.cfg.WindowSize {
		return 0
	}
	return (n-e.cfg.WindowSize)/e.cfg.HopSize + 1
}

// Extract computes log mel features from normalized samples in [-1, 1].
// It returns nil when pcm is shorter than one window.
func (e *Extractor) Extract(pcm []float32) [][]float32 {
	cfg := e.cfg
	numFrames := e.NumFrames(len(pcm))
	if numFrames == 0 {
		return nil
	}

	features := make([][]float32, numFrames)
	re := make([]float64, cfg.FFTSize)
	im := make([]float64, cfg.FFTSize)
	power := make([]float64, cfg.FFTSize/2+1)

	for t := range features {
		start := t * cfg.HopSize
		for i := 0; i < cfg.FFTSize; i++ {
			re[i], im[i] = 0, 0
			if i >= cfg.WindowSize {
				continue
			}
			s := float64(pcm[start+i])
			if i > 0 {
				s -= cfg.PreEmphasis * float64(pcm[start+i-1])
			}
			re[i] = s * e.window[i]
		}
		fft(re, im)
		for k := range power {
			power[k] = re[k]*re[k] + im[k]*im[k]
		}

		mel := make([]float32, cfg.NumMels)
		for m, f := range e.bank {
			mel[m] = float32(math.Log(math.Max(f.apply(power), logFloor)))
		}
		features[t] = mel
	}
	return features
}

// LinearPower projects one log mel frame back onto the FFT power spectrum.
// Each bin receives the weighted mean power of the filters covering it,
// which is the least-squares inverse for non-overlapping filters and a
// smooth approximation otherwise.
func (e *Extractor) LinearPower(logMel []float32, dst []float64) []float64 {
	half := e.cfg.FFTSize/2 + 1
	if cap(dst) < half {
		dst = make([]float64, half)
	}
	dst = dst[:half]
	weight := make([]float64, half)
	for k := range dst {
		dst[k] = 0
	}
	for m, f := range e.bank {
		if m >= len(logMel) {
			break
		}
		p := math.Exp(float64(logMel[m]))
		for j, w := range f.weights {
			dst[f.start+j] += w * p
			weight[f.start+j] += w
		}
	}
	for k := range dst {
		if weight[k] > 0 {
			dst[k] /= weight[k]
		}
	}
	return dst
}
