package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/voxnot/voxnot/pkg/reclaim"
	"github.com/voxnot/voxnot/pkg/shard"
)

// Pipeline turns the audio files in rawDir into shard files in outDir.
// A pipeline may also write a manifest into outDir; otherwise the builder
// derives one from the shards.
type Pipeline interface {
	Run(ctx context.Context, rawDir, outDir string) error
}

// Stats reports builder activity.
type Stats struct {
	// PipelineRuns counts Prepare calls that ran the pipeline.
	PipelineRuns int64
	// Reused counts Prepare calls served from an existing cache.
	Reused int64
	// Reclaims counts memory reclamation passes of the builder's reclaimer.
	Reclaims int
}

// Builder prepares raw corpora into shard cache directories.
type Builder struct {
	pipeline  Pipeline
	reclaimer *reclaim.Reclaimer
	logger    *slog.Logger

	runs   atomic.Int64
	reused atomic.Int64
}

// NewBuilder creates a builder. reclaimer and logger may be nil.
func NewBuilder(p Pipeline, reclaimer *reclaim.Reclaimer, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{pipeline: p, reclaimer: reclaimer, logger: logger}
}

// Stats returns a snapshot of the builder counters.
func (b *Builder) Stats() Stats {
	st := Stats{PipelineRuns: b.runs.Load(), Reused: b.reused.Load()}
	if b.reclaimer != nil {
		st.Reclaims = b.reclaimer.Passes()
	}
	return st
}

// Prepare makes cacheDir hold the prepared form of rawDir and returns the
// paths of the shards its manifest lists. Files the clear step could not
// remove are never returned. An existing valid cache is reused unless force
// is set. rawDir is never modified.
//
// A memory reclamation pass runs after the step whatever its outcome.
func (b *Builder) Prepare(ctx context.Context, rawDir, cacheDir string, force bool) ([]string, error) {
	if b.reclaimer != nil {
		defer b.reclaimer.Reclaim(ctx)
	}

	if !force && HasCache(cacheDir) {
		b.reused.Add(1)
		b.logger.Info("dataset cache reused", "dir", cacheDir)
		return ManifestPaths(cacheDir)
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("dataset: create %s: %w", cacheDir, err)
	}
	report := ClearDir(cacheDir)
	for _, p := range report.Removed {
		b.logger.Debug("clear file from dataset directory", "path", p)
	}
	for _, f := range report.Failures {
		b.logger.Warn("dataset clear failed", "path", f.Path, "error", f.Err)
	}

	b.runs.Add(1)
	start := time.Now()
	if err := b.build(ctx, rawDir, cacheDir); err != nil {
		return nil, err
	}

	paths, err := ManifestPaths(cacheDir)
	if err != nil {
		return nil, err
	}
	b.logger.Info("dataset prepared",
		"raw", rawDir,
		"dir", cacheDir,
		"shards", len(paths),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return paths, nil
}

// build runs the pipeline into a staging sibling of cacheDir and commits
// its output.
func (b *Builder) build(ctx context.Context, rawDir, cacheDir string) error {
	staging, err := os.MkdirTemp(filepath.Dir(cacheDir), "."+filepath.Base(cacheDir)+".staging-")
	if err != nil {
		return fmt.Errorf("dataset: create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := b.pipeline.Run(ctx, rawDir, staging); err != nil {
		return fmt.Errorf("dataset: prepare %s: %w", rawDir, err)
	}

	m, err := stagedManifest(staging, rawDir)
	if err != nil {
		return err
	}
	if len(m.Shards) == 0 {
		return fmt.Errorf("dataset: prepare %s: pipeline produced no shards", rawDir)
	}
	for _, e := range m.Shards {
		if err := os.Rename(filepath.Join(staging, e.Name), filepath.Join(cacheDir, e.Name)); err != nil {
			return fmt.Errorf("dataset: commit %s: %w", e.Name, err)
		}
	}
	if err := shard.WriteManifest(cacheDir, m); err != nil {
		return fmt.Errorf("dataset: commit manifest: %w", err)
	}
	return nil
}

// stagedManifest returns the manifest the pipeline wrote, or derives one by
// reading every staged shard.
func stagedManifest(staging, rawDir string) (*shard.Manifest, error) {
	m, err := shard.ReadManifest(staging)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("dataset: staged manifest: %w", err)
	}

	paths, err := ShardPaths(staging)
	if err != nil {
		return nil, err
	}
	m = &shard.Manifest{Version: shard.Version, Source: rawDir, CreatedAt: time.Now().UTC()}
	for _, p := range paths {
		f, err := shard.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("dataset: staged shard: %w", err)
		}
		m.Shards = append(m.Shards, shard.ManifestEntry{Name: filepath.Base(p), Records: len(f.Records)})
	}
	return m, nil
}

// HasCache reports whether dir holds a complete prepared dataset: at least
// one shard file and a readable manifest whose shards all exist.
func HasCache(dir string) bool {
	paths, err := ShardPaths(dir)
	if err != nil || len(paths) == 0 {
		return false
	}
	m, err := shard.ReadManifest(dir)
	if err != nil || len(m.Shards) == 0 {
		return false
	}
	for _, e := range m.Shards {
		if _, ok := slices.BinarySearch(paths, filepath.Join(dir, e.Name)); !ok {
			return false
		}
	}
	return true
}

// ManifestPaths returns the paths of the shards listed in the manifest of
// dir, in manifest order.
func ManifestPaths(dir string) ([]string, error) {
	m, err := shard.ReadManifest(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: manifest of %s: %w", dir, err)
	}
	paths := make([]string, len(m.Shards))
	for i, e := range m.Shards {
		paths[i] = filepath.Join(dir, e.Name)
	}
	return paths, nil
}

// ShardPaths returns the sorted paths of the shard files directly in dir.
func ShardPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: scan %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && shard.IsShard(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
