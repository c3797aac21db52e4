// Package voxnot orchestrates voice-conversion training and conversion.
//
// A [Toolkit] owns one model instance, chosen by name from a closed
// registry when the toolkit is created. [Toolkit.Train] prepares the
// source and target corpora into cached shard directories, trains the
// model on them and publishes the best checkpoint. [Toolkit.Convert]
// runs every (model file, query file) pair through the model and renders
// one audio file per pair.
//
// A Toolkit is safe for concurrent use; model access is serialized.
package voxnot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxnot/voxnot/pkg/dataset"
	"github.com/voxnot/voxnot/pkg/features"
	"github.com/voxnot/voxnot/pkg/model"
	"github.com/voxnot/voxnot/pkg/model/builtin"
	"github.com/voxnot/voxnot/pkg/reclaim"
	"github.com/voxnot/voxnot/pkg/runlog"
	"github.com/voxnot/voxnot/pkg/storage"
)

// CheckpointExt is the extension of published checkpoints.
const CheckpointExt = ".ckpt"

// Options configure New. Only Model is required.
type Options struct {
	// Model is the registry name of the variant.
	Model string

	Device   string
	Params   model.HyperParams
	ProdMode bool

	// Registry defaults to builtin.Registry().
	Registry *model.Registry

	// Extractor prepares training corpora. It defaults to a features.Fbank
	// with FbankOptions.
	Extractor    features.Extractor
	FbankOptions features.FbankOptions

	// QueryExtractor reads conversion queries. It defaults to a
	// features.Fbank over FbankOptions.Config with no trimming or
	// augmentation.
	QueryExtractor features.Extractor

	// Renderer defaults to a features.MelVocoder over the same filterbank.
	Renderer features.Renderer

	// Pipeline defaults to a dataset.ExtractPipeline over Extractor.
	Pipeline dataset.Pipeline
	Dataset  DatasetOptions

	// Reclaimer defaults to one managing reclaim.HostAccelerator.
	Reclaimer *reclaim.Reclaimer

	// Storage configures S3 output locations.
	Storage storage.Options

	// Ledger, if set, records every training run.
	Ledger *runlog.Ledger

	Logger *slog.Logger
}

// DatasetOptions configure the default extraction pipeline.
type DatasetOptions struct {
	Workers   int  `yaml:"workers"`
	ShardSize int  `yaml:"shard_size"`
	KeepAudio bool `yaml:"keep_converted_audio"`
}

// Toolkit is the training and conversion orchestrator.
type Toolkit struct {
	name      string
	logger    *slog.Logger
	extractor features.Extractor
	queries   features.Extractor
	renderer  features.Renderer
	builder   *dataset.Builder
	reclaimer *reclaim.Reclaimer
	storage   storage.Options
	ledger    *runlog.Ledger

	mu    sync.Mutex // guards model
	model model.Model
}

// New resolves the model and assembles the toolkit. An unknown model name
// fails with model.ErrUnknownType before anything else happens.
func New(opts Options) (*Toolkit, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = builtin.Registry()
	}
	m, err := reg.New(opts.Model, model.Options{
		Device:   opts.Device,
		Params:   opts.Params,
		ProdMode: opts.ProdMode,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	t := &Toolkit{
		name:      opts.Model,
		logger:    logger,
		extractor: opts.Extractor,
		queries:   opts.QueryExtractor,
		renderer:  opts.Renderer,
		reclaimer: opts.Reclaimer,
		storage:   opts.Storage,
		ledger:    opts.Ledger,
		model:     m,
	}
	if t.extractor == nil {
		t.extractor = features.NewFbank(opts.FbankOptions)
	}
	if t.queries == nil {
		t.queries = features.NewFbank(features.FbankOptions{Config: opts.FbankOptions.Config})
	}
	if t.renderer == nil {
		v, err := features.NewMelVocoder(features.MelVocoderOptions{Config: opts.FbankOptions.Config})
		if err != nil {
			return nil, fmt.Errorf("voxnot: renderer: %w", err)
		}
		t.renderer = v
	}
	if t.reclaimer == nil {
		t.reclaimer = reclaim.New(logger, reclaim.HostAccelerator{})
	}
	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = &dataset.ExtractPipeline{
			Extractor: t.extractor,
			Workers:   opts.Dataset.Workers,
			ShardSize: opts.Dataset.ShardSize,
			KeepAudio: opts.Dataset.KeepAudio,
			Logger:    logger,
		}
	}
	t.builder = dataset.NewBuilder(pipeline, t.reclaimer, logger)
	return t, nil
}

// ModelName returns the registry name of the active model.
func (t *Toolkit) ModelName() string { return t.name }

// Builder returns the dataset cache builder.
func (t *Toolkit) Builder() *dataset.Builder { return t.builder }

// Reclaim releases host and accelerator memory. Call it between runs.
func (t *Toolkit) Reclaim(ctx context.Context) { t.reclaimer.Reclaim(ctx) }
