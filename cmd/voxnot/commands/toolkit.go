package commands

import (
	"fmt"
	"log/slog"

	"github.com/voxnot/voxnot/pkg/cli"
	"github.com/voxnot/voxnot/pkg/features"
	"github.com/voxnot/voxnot/pkg/kv"
	"github.com/voxnot/voxnot/pkg/model/builtin"
	"github.com/voxnot/voxnot/pkg/runlog"
	"github.com/voxnot/voxnot/pkg/storage"
	"github.com/voxnot/voxnot/pkg/voxnot"
)

// modelName returns the -m flag, or the configured model.
func modelName(cfg *cli.Config) string {
	if modelType != "" {
		return modelType
	}
	return cfg.Model
}

// checkModel fails for a model name the registry does not know.
func checkModel() error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	_, err = builtin.Registry().Lookup(modelName(cfg))
	return err
}

// newToolkit builds a toolkit from the global config. A non-nil ledger
// records training runs.
func newToolkit(prodMode bool, ledger *runlog.Ledger) (*voxnot.Toolkit, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	name := modelName(cfg)
	renderer, err := features.NewMelVocoder(features.MelVocoderOptions{
		Config: cfg.Features.Fbank,
		Iters:  cfg.Features.GriffinLimIters,
	})
	if err != nil {
		return nil, err
	}
	return voxnot.New(voxnot.Options{
		Model:    name,
		Device:   cfg.Device,
		Params:   cfg.HyperParams,
		ProdMode: prodMode,
		FbankOptions: features.FbankOptions{
			Config:          cfg.Features.Fbank,
			VADTriggerLevel: cfg.Features.VADTriggerLevel,
		},
		Renderer: renderer,
		Dataset:  cfg.Dataset,
		Storage:  storage.Options{S3: cfg.S3},
		Ledger:   ledger,
		Logger:   slog.Default(),
	})
}

// openLedger opens the badger-backed run ledger. The returned close func
// must be called when done.
func openLedger() (*runlog.Ledger, func(), error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, nil, err
	}
	paths, err := GetPaths()
	if err != nil {
		return nil, nil, err
	}
	store, err := kv.NewBadger(kv.BadgerOptions{
		Dir:    cfg.ResolveRunsDir(paths),
		Logger: slog.Default(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open run ledger: %w", err)
	}
	return runlog.New(store), func() { store.Close() }, nil
}
