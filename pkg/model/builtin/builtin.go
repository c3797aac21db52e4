// Package builtin assembles the registry of model variants shipped with
// voxnot.
package builtin

import (
	"github.com/voxnot/voxnot/pkg/model"
	"github.com/voxnot/voxnot/pkg/model/gaussot"
	"github.com/voxnot/voxnot/pkg/model/knnvc"
)

// Registry returns the built-in variants.
func Registry() *model.Registry {
	return model.NewRegistry(
		model.Entry{
			Name:        gaussot.Kind,
			Description: "diagonal Gaussian optimal transport map per feature bin",
			New:         gaussot.New,
		},
		model.Entry{
			Name:        knnvc.Kind,
			Description: "k-nearest-neighbour frame matching against a target pool",
			New:         knnvc.New,
		},
	)
}
