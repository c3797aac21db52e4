package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxnot/voxnot/pkg/features"
	"github.com/voxnot/voxnot/pkg/reclaim"
	"github.com/voxnot/voxnot/pkg/shard"
)

// DefaultShardSize is the record count per shard when ExtractPipeline.ShardSize is zero.
const DefaultShardSize = 64

// ErrNoAudio is returned when a corpus directory holds no audio files.
var ErrNoAudio = errors.New("dataset: no audio files")

// ExtractPipeline extracts every audio file directly inside rawDir and
// writes the records as numbered shards plus a manifest.
type ExtractPipeline struct {
	Extractor features.Extractor

	// Workers bounds concurrent extractions. Zero uses reclaim.Workers().
	Workers int

	// ShardSize is the maximum number of records per shard.
	ShardSize int

	// KeepAudio retains the converted waveform in each record.
	KeepAudio bool

	Logger *slog.Logger
}

var _ Pipeline = (*ExtractPipeline)(nil)

// Run implements Pipeline.
func (p *ExtractPipeline) Run(ctx context.Context, rawDir, outDir string) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	files, err := audioFiles(rawDir, logger)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w in %s", ErrNoAudio, rawDir)
	}

	workers := p.Workers
	if workers <= 0 {
		workers = reclaim.Workers()
	}
	records := make([]shard.Record, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			rec, err := p.Extractor.Extract(gctx, path)
			if err != nil {
				return fmt.Errorf("extract %s: %w", filepath.Base(path), err)
			}
			if !p.KeepAudio {
				rec.Audio = nil
			}
			records[i] = rec
			logger.Debug("extracted", "file", path, "frames", len(rec.Frames))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	size := p.ShardSize
	if size <= 0 {
		size = DefaultShardSize
	}
	m := &shard.Manifest{Version: shard.Version, Source: rawDir, CreatedAt: time.Now().UTC()}
	for n := 0; n*size < len(records); n++ {
		chunk := records[n*size : min((n+1)*size, len(records))]
		name := fmt.Sprintf("shard-%05d%s", n, shard.Ext)
		if err := shard.WriteFile(filepath.Join(outDir, name), chunk); err != nil {
			return err
		}
		m.Shards = append(m.Shards, shard.ManifestEntry{Name: name, Records: len(chunk)})
	}
	return shard.WriteManifest(outDir, m)
}

// audioFiles lists the audio files directly inside dir, sorted by name.
// Other regular files are skipped with a warning.
func audioFiles(dir string, logger *slog.Logger) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: read corpus: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !features.IsAudioFile(e.Name()) {
			logger.Warn("skipping non-audio file", "file", filepath.Join(dir, e.Name()))
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}
