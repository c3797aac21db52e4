// Package main is the entry point for the voxnot CLI.
//
// Usage:
//
//	voxnot [flags] <command> [subcommand] [args]
//
// Commands:
//
//	train    - Prepare both corpora, train a model and publish the checkpoint
//	convert  - Convert query audio with one or more trained checkpoints
//	prepare  - Build or reuse a dataset cache from raw audio
//	inspect  - Show a dataset cache manifest
//	runs     - List and show recorded training runs
//	models   - List the registered model variants
//	config   - Show the active configuration
//	version  - Show version information
package main

import (
	"os"

	"github.com/voxnot/voxnot/cmd/voxnot/commands"
	"github.com/voxnot/voxnot/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
