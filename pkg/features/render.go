package features

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/voxnot/voxnot/pkg/audio/fbank"
	"github.com/voxnot/voxnot/pkg/audio/pcm"
	"github.com/voxnot/voxnot/pkg/audio/wav"
)

// Renderer writes a feature matrix to an audio file.
type Renderer interface {
	Render(ctx context.Context, frames [][]float32, path string) error
}

// DefaultGriffinLimIters is the phase estimation round count used when
// MelVocoderOptions.Iters is zero.
const DefaultGriffinLimIters = 32

// MelVocoderOptions configures a [MelVocoder].
type MelVocoderOptions struct {
	Config fbank.Config
	Iters  int
	Seed   int64
}

// MelVocoder renders log mel frames to 16-bit WAV with Griffin-Lim.
type MelVocoder struct {
	fb     *fbank.Extractor
	format pcm.Format
	iters  int
	seed   int64
}

var _ Renderer = (*MelVocoder)(nil)

// NewMelVocoder creates a vocoder. The filterbank sample rate must be one
// [pcm.ForRate] accepts.
func NewMelVocoder(opts MelVocoderOptions) (*MelVocoder, error) {
	fb := fbank.New(opts.Config)
	format, err := pcm.ForRate(fb.Config().SampleRate)
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	iters := opts.Iters
	if iters <= 0 {
		iters = DefaultGriffinLimIters
	}
	return &MelVocoder{fb: fb, format: format, iters: iters, seed: opts.Seed}, nil
}

// Format returns the output PCM format.
func (v *MelVocoder) Format() pcm.Format { return v.format }

// Render reconstructs a waveform from frames and writes it to path.
func (v *MelVocoder) Render(ctx context.Context, frames [][]float32, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("features: render %s: no frames", path)
	}
	rng := rand.New(rand.NewSource(v.seed))
	samples := v.fb.GriffinLim(frames, v.iters, rng)
	return wav.WriteFile(path, samples, v.format)
}
