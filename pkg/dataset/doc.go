// Package dataset prepares raw audio corpora into cached shard directories
// and composes shard sets into indexable views.
//
// A prepared directory is either empty or fully valid. [Builder.Prepare]
// builds into a sibling staging directory, moves the shards into place and
// writes the manifest last, so a build interrupted at any point never
// produces a directory that [HasCache] accepts.
//
// Usage:
//
//	b := dataset.NewBuilder(&dataset.ExtractPipeline{Extractor: fb}, rc, logger)
//	paths, err := b.Prepare(ctx, "corpus/src", "tmp/input_ds_X", false)
//	view, err := dataset.Compose(paths)
//	rec, err := view.At(42)
package dataset
