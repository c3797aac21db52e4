package voxnot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxnot/voxnot/pkg/dataset"
	"github.com/voxnot/voxnot/pkg/model"
	"github.com/voxnot/voxnot/pkg/runlog"
	"github.com/voxnot/voxnot/pkg/storage"
)

// Cache directory names under TrainRequest.TempDir.
const (
	SourceCacheDir = "input_ds_X"
	TargetCacheDir = "input_ds_Y"
)

// TrainRequest describes one training run.
type TrainRequest struct {
	// Force rebuilds both dataset caches.
	Force bool `yaml:"force" json:"force,omitempty"`

	SourceDir string `yaml:"source" json:"source"`
	TargetDir string `yaml:"target" json:"target"`
	TempDir   string `yaml:"temp" json:"temp"`

	// OutputDir is a local directory or an s3://bucket/prefix URL.
	OutputDir string `yaml:"output" json:"output"`

	Training    model.TrainingHyperParams `yaml:"training" json:"training"`
	Environment model.TrainingEnvironment `yaml:"environment" json:"environment"`

	// RunName names the published checkpoint, RunName + CheckpointExt.
	RunName string `yaml:"name" json:"name"`
}

// Validate reports the first missing required field.
func (r *TrainRequest) Validate() error {
	for _, f := range []struct{ name, v string }{
		{"source", r.SourceDir},
		{"target", r.TargetDir},
		{"temp", r.TempDir},
		{"output", r.OutputDir},
		{"name", r.RunName},
	} {
		if f.v == "" {
			return fmt.Errorf("voxnot: train request: %s is required", f.name)
		}
	}
	return nil
}

// TrainResult describes a finished run.
type TrainResult struct {
	RunID         string   `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Checkpoint    string   `json:"checkpoint" yaml:"checkpoint"`
	SourceShards  []string `json:"source_shards" yaml:"source_shards"`
	TargetShards  []string `json:"target_shards" yaml:"target_shards"`
	SourceRecords int      `json:"source_records" yaml:"source_records"`
	TargetRecords int      `json:"target_records" yaml:"target_records"`
}

// corpus is one prepared and composed dataset.
type corpus struct {
	shards []string
	view   *dataset.View
}

func (t *Toolkit) prepare(ctx context.Context, rawDir, cacheDir string, force bool) (*corpus, error) {
	shards, err := t.builder.Prepare(ctx, rawDir, cacheDir, force)
	if err != nil {
		return nil, err
	}
	view, err := dataset.Compose(shards)
	if err != nil {
		return nil, err
	}
	return &corpus{shards: shards, view: view}, nil
}

// Train prepares both corpora, trains the model and publishes the best
// checkpoint to OutputDir/RunName.ckpt. Nothing is published when any step
// fails.
func (t *Toolkit) Train(ctx context.Context, req TrainRequest) (TrainResult, error) {
	if err := req.Validate(); err != nil {
		return TrainResult{}, err
	}
	var run *runlog.Run
	if t.ledger != nil {
		r, err := t.ledger.Start(ctx, runlog.Run{
			Name:      req.RunName,
			Model:     t.name,
			SourceDir: req.SourceDir,
			TargetDir: req.TargetDir,
			OutputDir: req.OutputDir,
		})
		if err != nil {
			return TrainResult{}, err
		}
		run = r
	}

	res, err := t.train(ctx, req, run)
	if run != nil {
		res.RunID = run.ID
		if ferr := t.ledger.Finish(ctx, run, res.Checkpoint, err); ferr != nil {
			t.logger.Warn("record training run failed", "run", run.ID, "error", ferr)
		}
	}
	return res, err
}

func (t *Toolkit) train(ctx context.Context, req TrainRequest, run *runlog.Run) (TrainResult, error) {
	start := time.Now()
	var x, y *corpus
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		x, err = t.prepare(gctx, req.SourceDir, filepath.Join(req.TempDir, SourceCacheDir), req.Force)
		return err
	})
	g.Go(func() error {
		var err error
		y, err = t.prepare(gctx, req.TargetDir, filepath.Join(req.TempDir, TargetCacheDir), req.Force)
		return err
	})
	if err := g.Wait(); err != nil {
		return TrainResult{}, fmt.Errorf("voxnot: prepare datasets: %w", err)
	}
	res := TrainResult{
		SourceShards:  x.shards,
		TargetShards:  y.shards,
		SourceRecords: x.view.Len(),
		TargetRecords: y.view.Len(),
	}
	if run != nil {
		run.SourceRecords, run.TargetRecords = res.SourceRecords, res.TargetRecords
		if err := t.ledger.Update(ctx, run); err != nil {
			t.logger.Warn("record training run failed", "run", run.ID, "error", err)
		}
	}
	t.logger.Info("datasets ready",
		"source_records", res.SourceRecords,
		"target_records", res.TargetRecords,
		"elapsed", time.Since(start).Round(time.Millisecond))

	env := req.Environment
	if env.CheckpointDir == "" {
		env.CheckpointDir = filepath.Join(req.TempDir, "checkpoints", req.RunName)
	}

	best, err := t.fit(ctx, req, env, x.view, y.view)
	t.reclaimer.Reclaim(ctx)
	if err != nil {
		return res, err
	}

	store, err := storage.Open(req.OutputDir, t.storage)
	if err != nil {
		return res, &FSError{Op: "open output", Path: req.OutputDir, Err: err}
	}
	name := req.RunName + CheckpointExt
	if exists, err := store.Exists(ctx, name); err != nil {
		t.logger.Warn("check published checkpoint failed", "location", store.Location(name), "error", err)
	} else if exists {
		t.logger.Warn("replacing published checkpoint", "location", store.Location(name))
	}
	t.logger.Info("publish checkpoint", "from", best, "to", store.Location(name))
	loc, err := storage.PublishFile(ctx, store, best, name)
	if err != nil {
		return res, &FSError{Op: "publish", Path: store.Location(name), Err: err}
	}
	res.Checkpoint = loc
	return res, nil
}

// fit runs the model through configure, train and checkpoint lookup under
// the model lock.
func (t *Toolkit) fit(ctx context.Context, req TrainRequest, env model.TrainingEnvironment, x, y model.Dataset) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.model.ConfigureTraining(req.Training, env, x, y, req.RunName); err != nil {
		return "", &TrainingError{Run: req.RunName, Stage: "configure", Err: err}
	}
	start := time.Now()
	if err := t.model.Train(ctx); err != nil {
		return "", &TrainingError{Run: req.RunName, Stage: "train", Err: err}
	}
	best, err := t.model.BestCheckpointPath()
	if err == nil && best == "" {
		err = errors.New("empty checkpoint path")
	}
	if err != nil {
		return "", &TrainingError{Run: req.RunName, Stage: "checkpoint", Err: err}
	}
	t.logger.Info("training done", "run", req.RunName, "best", best, "elapsed", time.Since(start).Round(time.Millisecond))
	return best, nil
}
