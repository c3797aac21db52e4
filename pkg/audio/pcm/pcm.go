package pcm

import (
	"fmt"
	"time"
)

const (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K Format = iota
	// L16Mono22K represents audio/L16; rate=22050; channels=1
	L16Mono22K
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K
)

// Format represents an audio format configuration.
type Format int

var rates = map[Format]int{
	L16Mono16K: 16000,
	L16Mono22K: 22050,
	L16Mono24K: 24000,
	L16Mono48K: 48000,
}

// ForRate returns the mono 16-bit format with the given sample rate.
func ForRate(rate int) (Format, error) {
	for f, r := range rates {
		if r == rate {
			return f, nil
		}
	}
	return 0, fmt.Errorf("pcm: unsupported sample rate %d", rate)
}

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	if r, ok := rates[f]; ok {
		return r
	}
	panic("pcm: invalid audio type")
}

// Channels returns the number of audio channels for this format.
func (f Format) Channels() int { return 1 }

// Depth returns the bit depth for this format.
func (f Format) Depth() int { return 16 }

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate()) * d / time.Second)
}

// SampleDuration returns the playback duration of n samples.
func (f Format) SampleDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(f.SampleRate())
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.SampleRate() * f.Channels() * f.Depth() / 8
}

// String returns a human-readable string representation of the format.
func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=%d", f.SampleRate(), f.Channels())
}
