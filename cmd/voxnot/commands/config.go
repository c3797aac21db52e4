package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxnot/voxnot/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the active configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		shown := *cfg
		shown.S3.AccessKey = cli.MaskSecret(shown.S3.AccessKey)
		shown.S3.SecretKey = cli.MaskSecret(shown.S3.SecretKey)
		return printResult(cmd, &shown)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), cfg.Path())
		return err
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
