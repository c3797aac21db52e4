package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/voxnot/voxnot/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	modelType    string
	formatOutput string
	queryOutput  string
	verbose      bool

	// Global configuration (loaded at init time)
	globalConfig *cli.Config
	globalPaths  *cli.Paths
)

var rootCmd = &cobra.Command{
	Use:   "voxnot",
	Short: "Voice conversion training and conversion toolkit",
	Long: `voxnot - train voice conversion models and convert speech with them.

A training run prepares feature caches for a source speaker corpus and a
target speaker corpus, fits the selected model variant and publishes the
best checkpoint as <output>/<name>.ckpt. The output may be a local
directory or an s3://bucket/prefix location.

Configuration is read from ~/.voxnot/config.yaml ($VOXNOT_HOME overrides
the directory). Environment variables may also be set in ~/.voxnot/.env.

Examples:
  # Train a Gaussian transport model from two corpora
  voxnot train --source data/alice --target data/bob \
    --temp /tmp/vx --output models --name alice2bob

  # Same, from a request file
  voxnot train -f train.yaml

  # Convert every query file with every checkpoint in a directory
  voxnot convert --query queries/ --model models/ --out converted/

  # Inspect past runs
  voxnot runs list`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.voxnot/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&modelType, "model-type", "m", "", "model variant (overrides config)")
	rootCmd.PersistentFlags().StringVar(&formatOutput, "format", "", "output format: yaml, json or table")
	rootCmd.PersistentFlags().StringVar(&queryOutput, "jq", "", "jq expression applied to the JSON result")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configLoadErr stores the error from config loading for deferred reporting.
var configLoadErr error

func initConfig() {
	globalConfig, globalPaths, configLoadErr = nil, nil, nil

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	paths, err := cli.NewPaths()
	if err != nil {
		configLoadErr = err
		return
	}
	globalPaths = paths
	if err := godotenv.Load(paths.EnvFile()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("load env file failed", "path", paths.EnvFile(), "error", err)
	}

	cfg, err := cli.LoadConfigWithPath(cfgFile)
	if err != nil {
		// Commands that need config get the error from GetConfig, so
		// 'voxnot version' still works without a home directory.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*cli.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := cli.LoadConfigWithPath(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// GetPaths returns the voxnot directory layout.
func GetPaths() (*cli.Paths, error) {
	if globalPaths == nil {
		p, err := cli.NewPaths()
		if err != nil {
			return nil, err
		}
		globalPaths = p
	}
	return globalPaths, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// printResult writes result in the selected format. Without --format,
// results that render as a table do so and everything else is YAML.
func printResult(cmd *cobra.Command, result any) error {
	format := cli.OutputFormat(formatOutput)
	if format == "" {
		format = cli.FormatYAML
		if _, ok := result.(cli.Tabler); ok {
			format = cli.FormatTable
		}
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		Writer: cmd.OutOrStdout(),
		Query:  queryOutput,
	})
}
