package commands

import (
	"github.com/spf13/cobra"

	"github.com/voxnot/voxnot/pkg/cli"
	"github.com/voxnot/voxnot/pkg/model/builtin"
)

type modelInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

type modelList []modelInfo

func (l modelList) Table() cli.Table {
	t := cli.NewTable("NAME", "DESCRIPTION")
	for _, m := range l {
		t.Append(m.Name, m.Description)
	}
	return t
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the registered model variants",
	RunE: func(cmd *cobra.Command, args []string) error {
		var list modelList
		for _, e := range builtin.Registry().Entries() {
			list = append(list, modelInfo{Name: e.Name, Description: e.Description})
		}
		return printResult(cmd, list)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
