// Package wav reads and writes RIFF/WAVE files as normalized mono samples.
package wav

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/voxnot/voxnot/pkg/audio/pcm"
	"github.com/voxnot/voxnot/pkg/audio/resampler"
)

// ErrInvalid is returned for files that are not decodable WAVE audio.
var ErrInvalid = errors.New("wav: invalid file")

// Audio is decoded mono audio.
type Audio struct {
	Samples    []float32 // normalized to [-1, 1]
	SampleRate int
}

// ReadFile decodes the WAVE file at path, downmixing to mono.
func ReadFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: decode %s: %w", path, err)
	}
	depth := int(d.BitDepth)
	if depth == 0 {
		depth = buf.SourceBitDepth
	}
	if depth <= 0 || depth > 32 {
		return nil, fmt.Errorf("%w: %s: bit depth %d", ErrInvalid, path, depth)
	}

	scale := float32(math.Pow(2, float64(depth-1)))
	interleaved := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		interleaved[i] = float32(v) / scale
	}
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	return &Audio{
		Samples:    resampler.Downmix(interleaved, channels),
		SampleRate: int(d.SampleRate),
	}, nil
}

// WriteFile encodes samples as 16-bit mono WAVE in the given format.
// Samples outside [-1, 1] are clipped.
func WriteFile(path string, samples []float32, format pcm.Format) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(v * 32767)
	}

	enc := wav.NewEncoder(f, format.SampleRate(), format.Depth(), format.Channels(), 1)
	werr := enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: format.SampleRate(), NumChannels: format.Channels()},
		SourceBitDepth: format.Depth(),
	})
	if cerr := enc.Close(); werr == nil {
		werr = cerr
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("wav: encode %s: %w", path, werr)
	}
	return nil
}
