// Package audio is the umbrella for the audio sub-packages:
//
//   - pcm: fixed 16-bit mono PCM formats and their sample rates
//   - wav: WAV file decoding to normalized float samples and encoding back
//   - resampler: sample rate conversion and channel downmix
//   - fbank: log mel filterbank features and Griffin-Lim inversion
//
// Example usage:
//
//	a, err := wav.ReadFile("query.wav")
//	samples, err := resampler.Resample(a.Samples, a.SampleRate, 16000)
//	frames := fbank.New(fbank.DefaultConfig()).Extract(samples)
package audio
