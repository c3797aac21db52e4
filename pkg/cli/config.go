package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/voxnot/voxnot/pkg/audio/fbank"
	"github.com/voxnot/voxnot/pkg/model"
	"github.com/voxnot/voxnot/pkg/storage"
	"github.com/voxnot/voxnot/pkg/voxnot"
)

// DefaultModel is the variant used when the config names none.
const DefaultModel = "gaussian-ot"

// Config is the voxnot configuration file.
type Config struct {
	// Model is the registry name of the model variant.
	Model string `yaml:"model"`

	// Device is forwarded to the model.
	Device string `yaml:"device"`

	HyperParams model.HyperParams         `yaml:"hyper_params,omitempty"`
	Training    model.TrainingHyperParams `yaml:"training,omitempty"`
	Environment model.TrainingEnvironment `yaml:"environment,omitempty"`

	Features FeaturesConfig        `yaml:"features,omitempty"`
	Dataset  voxnot.DatasetOptions `yaml:"dataset,omitempty"`

	// S3 configures s3:// output locations.
	S3 storage.S3Options `yaml:"s3,omitempty"`

	// RunsDir holds the run ledger; defaults to ~/.voxnot/runs.
	RunsDir string `yaml:"runs_dir,omitempty"`

	path string
}

// FeaturesConfig configures extraction and rendering.
type FeaturesConfig struct {
	Fbank fbank.Config `yaml:"fbank,omitempty"`

	// VADTriggerLevel trims leading and trailing audio below this RMS
	// level; 0 disables trimming.
	VADTriggerLevel float64 `yaml:"vad_trigger_level,omitempty"`

	// GriffinLimIters is the vocoder phase estimation round count.
	GriffinLimIters int `yaml:"griffin_lim_iters,omitempty"`
}

// DefaultConfig returns the configuration written on first use.
func DefaultConfig() *Config {
	return &Config{
		Model:  DefaultModel,
		Device: "cpu",
		Training: model.TrainingHyperParams{
			Epochs:    5,
			BatchSize: 16,
		},
		Features: FeaturesConfig{
			Fbank:           fbank.DefaultConfig(),
			GriffinLimIters: 32,
		},
		Dataset: voxnot.DatasetOptions{KeepAudio: true},
	}
}

// LoadConfig loads ~/.voxnot/config.yaml, creating it with defaults if absent.
func LoadConfig() (*Config, error) {
	return LoadConfigWithPath("")
}

// LoadConfigWithPath loads the config at customPath, or the default path
// when customPath is empty. A missing default config is created; a missing
// custom config is an error.
func LoadConfigWithPath(customPath string) (*Config, error) {
	path := customPath
	if path == "" {
		p, err := NewPaths()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = p.ConfigFile()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && customPath == "" {
			cfg := DefaultConfig()
			cfg.path = path
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cfg.path = path
	return cfg, nil
}

// Save writes the configuration to its path.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config has no path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string { return c.path }

// ResolveRunsDir returns RunsDir, or the default under paths.
func (c *Config) ResolveRunsDir(paths *Paths) string {
	if c.RunsDir != "" {
		return c.RunsDir
	}
	return paths.RunsDir()
}

// MaskSecret masks a credential for display.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
