// Package model defines the lifecycle every voice-conversion model variant
// implements and the closed registry the toolkit builds models from.
//
// A model is configured for training with two datasets (source and target
// speakers), trained to completion, and then asked for its best
// checkpoint. For conversion, weights are loaded from a checkpoint and
// Predict maps source feature frames to target feature frames.
//
// Models are not safe for concurrent use; callers serialize access.
package model

import (
	"context"
	"errors"
	"log/slog"

	"github.com/voxnot/voxnot/pkg/shard"
)

// Model is the capability set a variant provides.
type Model interface {
	// ConfigureTraining records the training inputs. It does no heavy work.
	ConfigureTraining(hp TrainingHyperParams, env TrainingEnvironment, x, y Dataset, runName string) error

	// Train runs to completion. On success BestCheckpointPath returns a
	// readable checkpoint.
	Train(ctx context.Context) error

	// BestCheckpointPath returns the best checkpoint of the last Train.
	BestCheckpointPath() (string, error)

	// LoadWeights replaces the active parameters with those at path.
	LoadWeights(path string) error

	// Predict maps [T][D] source frames to [T][D] target frames.
	Predict(frames [][]float32) ([][]float32, error)
}

// Dataset is an indexable record sequence.
type Dataset interface {
	Len() int
	At(i int) (shard.Record, error)
}

// HyperParams are model-shape parameters fixed at construction.
type HyperParams struct {
	// FeatureDim is the frame width. Zero accepts whatever the data has.
	FeatureDim int `yaml:"feature_dim" json:"feature_dim,omitempty"`

	// K is the neighbour count of nearest-neighbour variants.
	K int `yaml:"k" json:"k,omitempty"`

	// PoolSize caps the number of stored target frames.
	PoolSize int `yaml:"pool_size" json:"pool_size,omitempty"`

	// Epsilon floors variances and norms.
	Epsilon float64 `yaml:"epsilon" json:"epsilon,omitempty"`
}

// TrainingHyperParams are optimization knobs.
type TrainingHyperParams struct {
	Epochs    int `yaml:"epochs" json:"epochs,omitempty"`
	BatchSize int `yaml:"batch_size" json:"batch_size,omitempty"`

	// ValidationStride holds out every n-th source record for scoring
	// checkpoints. Zero or one scores on the full source set.
	ValidationStride int `yaml:"validation_stride" json:"validation_stride,omitempty"`

	Seed int64 `yaml:"seed" json:"seed,omitempty"`
}

// TrainingEnvironment are runtime knobs of a training run.
type TrainingEnvironment struct {
	// CheckpointDir receives intermediate checkpoints.
	CheckpointDir string `yaml:"checkpoint_dir" json:"checkpoint_dir,omitempty"`

	// LogEvery logs progress every n batches. Zero logs per epoch only.
	LogEvery int `yaml:"log_every" json:"log_every,omitempty"`
}

// Options are passed to a Factory.
type Options struct {
	// Device names the compute device, "cpu" by default.
	Device string

	Params HyperParams

	// ProdMode builds the model for conversion only.
	ProdMode bool

	Logger *slog.Logger
}

var (
	// ErrProdMode is returned by ConfigureTraining on a conversion-only model.
	ErrProdMode = errors.New("model: training disabled in prod mode")

	// ErrNotConfigured is returned by Train before ConfigureTraining.
	ErrNotConfigured = errors.New("model: not configured for training")

	// ErrNoCheckpoint is returned by BestCheckpointPath before a successful Train.
	ErrNoCheckpoint = errors.New("model: no checkpoint")

	// ErrNoWeights is returned by Predict before weights are trained or loaded.
	ErrNoWeights = errors.New("model: no weights loaded")

	// ErrEmptyDataset is returned when a training dataset has no frames.
	ErrEmptyDataset = errors.New("model: empty dataset")

	// ErrFrameDim is returned for frames of the wrong width.
	ErrFrameDim = errors.New("model: frame dimension mismatch")
)
