package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxnot/voxnot/cmd/voxnot/internal/build"
	"github.com/voxnot/voxnot/pkg/reclaim"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if formatOutput != "" {
			return printResult(cmd, build.Get())
		}
		fmt.Fprintln(cmd.OutOrStdout(), build.String())
		if IsVerbose() {
			fmt.Fprintf(cmd.OutOrStdout(), "  host: %s\n", reclaim.HostAccelerator{}.Describe())
			if cfg, err := GetConfig(); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  config: %s\n", cfg.Path())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "  config: (unavailable: %v)\n", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
