package voxnot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/voxnot/voxnot/pkg/storage"
)

// ResolveFiles expands path into a file list: the regular files directly
// inside a directory, sorted by name, or path itself otherwise.
func ResolveFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &FSError{Op: "resolve", Path: path, Err: err}
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &FSError{Op: "resolve", Path: path, Err: err}
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}

// OutputPath returns where the pair (query, model) is rendered. When
// outDir is an existing directory the file is outDir/{query}_{model}.wav
// using the base names of both; otherwise outDir itself is the target.
func OutputPath(outDir, query, model string) string {
	if isDir(outDir) {
		return filepath.Join(outDir, fmt.Sprintf("%s_%s.wav", filepath.Base(query), filepath.Base(model)))
	}
	return outDir
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Convert renders every query file with every model file. Model files are
// processed in order; for each, the weights are loaded once and every query
// is converted before the next model is loaded. The written paths are
// returned in processing order. The first failing pair aborts the batch.
//
// modelPath may also be an s3:// URL naming one checkpoint object; it is
// fetched to a temporary file for the duration of the call.
func (t *Toolkit) Convert(ctx context.Context, queryPath, modelPath, outDir string) ([]string, error) {
	queries, err := ResolveFiles(queryPath)
	if err != nil {
		return nil, err
	}
	models, cleanup, err := t.resolveModels(ctx, modelPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	if n := len(queries) * len(models); n > 1 && !isDir(outDir) {
		t.logger.Warn("output is not a directory, every pair overwrites it", "out", outDir, "pairs", n)
	}

	var written []string
	for _, m := range models {
		out, err := t.convertWith(ctx, m, queries, outDir)
		written = append(written, out...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// resolveModels expands modelPath into local checkpoint files. The
// returned func removes anything fetched.
func (t *Toolkit) resolveModels(ctx context.Context, modelPath string) ([]string, func(), error) {
	if !storage.IsRemote(modelPath) {
		files, err := ResolveFiles(modelPath)
		return files, func() {}, err
	}
	dir, name := storage.Split(modelPath)
	store, err := storage.Open(dir, t.storage)
	if err != nil {
		return nil, nil, &FSError{Op: "open model location", Path: dir, Err: err}
	}
	tmp, err := os.MkdirTemp("", "voxnot-model-")
	if err != nil {
		return nil, nil, &FSError{Op: "fetch model", Path: modelPath, Err: err}
	}
	cleanup := func() { os.RemoveAll(tmp) }
	local := filepath.Join(tmp, name)
	if err := storage.FetchFile(ctx, store, name, local); err != nil {
		cleanup()
		return nil, nil, &FSError{Op: "fetch model", Path: modelPath, Err: err}
	}
	t.logger.Info("model fetched", "from", modelPath, "to", local)
	return []string{local}, cleanup, nil
}

// convertWith loads modelFile and converts every query while holding the
// model lock, so no other caller can swap the weights in between.
func (t *Toolkit) convertWith(ctx context.Context, modelFile string, queries []string, outDir string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.model.LoadWeights(modelFile); err != nil {
		return nil, &ConversionError{Model: modelFile, Err: err}
	}
	t.logger.Info("model loaded", "model", modelFile, "queries", len(queries))

	var written []string
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		out := OutputPath(outDir, q, modelFile)
		if err := t.convertOne(ctx, q, out); err != nil {
			return written, &ConversionError{Query: q, Model: modelFile, Err: err}
		}
		t.logger.Debug("converted", "query", q, "model", modelFile, "out", out)
		written = append(written, out)
	}
	return written, nil
}

func (t *Toolkit) convertOne(ctx context.Context, query, out string) error {
	rec, err := t.queries.Extract(ctx, query)
	if err != nil {
		return err
	}
	frames, err := t.model.Predict(rec.Frames)
	if err != nil {
		return err
	}
	return t.renderer.Render(ctx, frames, out)
}
