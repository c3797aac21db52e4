// Package features turns audio files into feature records and feature
// matrices back into audio files.
//
// Key types:
//   - Extractor: decodes an audio file into a [shard.Record]
//   - Fbank: the log mel filterbank extractor (WAV input)
//   - Renderer: writes a feature matrix to an audio file
//   - MelVocoder: Griffin-Lim renderer over the same filterbank
//   - Augmenter: optional waveform transform applied before extraction
//
// Fbank and MelVocoder built from the same [fbank.Config] are inverses of
// each other up to phase, so a model that predicts frames in the extractor's
// feature space can be rendered without a learned vocoder.
package features
