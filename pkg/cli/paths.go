package cli

import (
	"os"
	"path/filepath"
)

const (
	// DefaultBaseDir is the base directory name under the home directory.
	DefaultBaseDir = ".voxnot"
	// DefaultConfigFile is the configuration filename.
	DefaultConfigFile = "config.yaml"
	// HomeEnv overrides the base directory.
	HomeEnv = "VOXNOT_HOME"
)

// Paths provides access to the voxnot directory structure.
type Paths struct {
	// Base is the root directory, ~/.voxnot by default.
	Base string
}

// NewPaths returns the paths rooted at $VOXNOT_HOME, or ~/.voxnot.
func NewPaths() (*Paths, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return &Paths{Base: dir}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{Base: filepath.Join(home, DefaultBaseDir)}, nil
}

// ConfigFile returns the config file path (~/.voxnot/config.yaml).
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.Base, DefaultConfigFile)
}

// RunsDir returns the run ledger directory (~/.voxnot/runs).
func (p *Paths) RunsDir() string {
	return filepath.Join(p.Base, "runs")
}

// CacheDir returns the default dataset cache root (~/.voxnot/cache).
func (p *Paths) CacheDir() string {
	return filepath.Join(p.Base, "cache")
}

// EnvFile returns the dotenv file loaded at startup (~/.voxnot/.env).
func (p *Paths) EnvFile() string {
	return filepath.Join(p.Base, ".env")
}
