// Package pcm describes the linear PCM formats the toolkit reads and writes.
//
// Key types:
//   - Format: sample rate, channel count and bit depth of 16-bit linear PCM
//
// Example usage:
//
//	f := pcm.L16Mono16K
//	n := f.SamplesInDuration(20 * time.Millisecond) // 320
//	d := f.SampleDuration(48000)                    // 3s
package pcm
