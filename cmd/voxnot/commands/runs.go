package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/voxnot/voxnot/pkg/cli"
	"github.com/voxnot/voxnot/pkg/runlog"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recorded training runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List training runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, closeLedger, err := openLedger()
		if err != nil {
			return err
		}
		defer closeLedger()

		runs, err := ledger.List(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd, runList(runs))
	},
}

var runsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one training run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, closeLedger, err := openLedger()
		if err != nil {
			return err
		}
		defer closeLedger()

		run, err := ledger.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, run)
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a training run from the ledger",
	Long:  "Remove a training run from the ledger. Published checkpoints are left in place.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, closeLedger, err := openLedger()
		if err != nil {
			return err
		}
		defer closeLedger()

		if err := ledger.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.ErrOrStderr(), "deleted run %s", args[0])
		return nil
	},
}

func init() {
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsGetCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

type runList []runlog.Run

func (l runList) Table() cli.Table {
	t := cli.NewTable("ID", "NAME", "MODEL", "STATUS", "RECORDS", "DURATION", "CHECKPOINT")
	for i := range l {
		r := &l[i]
		t.Append(
			r.ID,
			r.Name,
			r.Model,
			string(r.Status),
			strconv.Itoa(r.SourceRecords)+"/"+strconv.Itoa(r.TargetRecords),
			cli.FormatDuration(r.Duration()),
			r.Checkpoint,
		)
	}
	t.Highlight = func(row []string) bool { return row[3] == string(runlog.StatusFailed) }
	return t
}
