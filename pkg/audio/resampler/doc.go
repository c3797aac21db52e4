// Package resampler converts mono float audio between sample rates and
// downmixes multi-channel audio.
//
// Resampling uses a pure Go polyphase resampler (no CGO/FFI dependencies),
// so feature extraction can run on any corpus sample rate.
package resampler
