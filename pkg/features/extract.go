package features

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/voxnot/voxnot/pkg/audio/fbank"
	"github.com/voxnot/voxnot/pkg/audio/resampler"
	"github.com/voxnot/voxnot/pkg/audio/wav"
	"github.com/voxnot/voxnot/pkg/shard"
)

// Extractor decodes an audio file into a feature record.
type Extractor interface {
	Extract(ctx context.Context, path string) (shard.Record, error)
}

// Augmenter transforms a waveform before features are computed.
type Augmenter interface {
	Augment(samples []float32, sampleRate int) []float32
}

// AugmenterFunc adapts a function to [Augmenter].
type AugmenterFunc func(samples []float32, sampleRate int) []float32

// Augment calls f.
func (f AugmenterFunc) Augment(samples []float32, sampleRate int) []float32 {
	return f(samples, sampleRate)
}

// FbankOptions configures a [Fbank] extractor.
type FbankOptions struct {
	// Config is the filterbank front-end. Zero fields take defaults.
	Config fbank.Config

	// VADTriggerLevel is the RMS level in [0, 1] below which leading and
	// trailing frames are trimmed. Zero disables trimming.
	VADTriggerLevel float64

	// Augmenter, if set, runs after resampling and trimming.
	Augmenter Augmenter
}

// Fbank extracts log mel filterbank records from WAV files.
type Fbank struct {
	fb   *fbank.Extractor
	opts FbankOptions
}

var _ Extractor = (*Fbank)(nil)

// NewFbank creates a filterbank extractor.
func NewFbank(opts FbankOptions) *Fbank {
	fb := fbank.New(opts.Config)
	opts.Config = fb.Config()
	return &Fbank{fb: fb, opts: opts}
}

// IsAudioFile reports whether name has an extension Fbank can decode.
func IsAudioFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".wav")
}

// Extract decodes path, resamples it to the front-end rate and computes
// its filterbank frames. The record's Audio holds the resampled waveform.
func (f *Fbank) Extract(ctx context.Context, path string) (shard.Record, error) {
	if err := ctx.Err(); err != nil {
		return shard.Record{}, err
	}
	a, err := wav.ReadFile(path)
	if err != nil {
		return shard.Record{}, fmt.Errorf("features: %w", err)
	}
	rate := f.opts.Config.SampleRate
	samples, err := resampler.Resample(a.Samples, a.SampleRate, rate)
	if err != nil {
		return shard.Record{}, fmt.Errorf("features: resample %s: %w", path, err)
	}
	if f.opts.VADTriggerLevel > 0 {
		samples = TrimSilence(samples, f.opts.VADTriggerLevel, f.opts.Config.HopSize*2)
	}
	if f.opts.Augmenter != nil {
		samples = f.opts.Augmenter.Augment(samples, rate)
	}
	frames := f.fb.Extract(samples)
	if len(frames) == 0 {
		return shard.Record{}, fmt.Errorf("features: %s: too short for one frame", path)
	}
	return shard.Record{
		Source:     filepath.Base(path),
		Frames:     frames,
		Audio:      samples,
		SampleRate: rate,
	}, nil
}
