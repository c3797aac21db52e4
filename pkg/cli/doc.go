// Package cli provides the shared pieces of the voxnot command-line tool.
//
// This package includes:
//   - Configuration loading and saving (YAML, ~/.voxnot/config.yaml)
//   - Directory layout under ~/.voxnot (Paths)
//   - Output formatting (YAML, JSON, table)
//   - Request file loading (YAML/JSON)
//
// Example usage:
//
//	cfg, err := cli.LoadConfig()
//	paths, err := cli.NewPaths()
//
//	cli.Output(result, cli.OutputOptions{Format: cli.FormatJSON})
package cli
