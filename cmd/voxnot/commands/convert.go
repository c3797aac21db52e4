package commands

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/voxnot/voxnot/pkg/cli"
)

var convertFlags struct {
	query string
	model string
	out   string
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert query audio with trained checkpoints",
	Long: `Convert every query file with every checkpoint.

--query and --model each accept a file or a directory; a directory means
every regular file directly inside it. --model may also be an
s3://bucket/key URL of one published checkpoint. When --out is a directory the
result for each pair is <out>/<query>_<model>.wav, otherwise --out is the
output file itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tk, err := newToolkit(true, nil)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		written, err := tk.Convert(ctx, convertFlags.query, convertFlags.model, convertFlags.out)
		for _, p := range written {
			cli.PrintSuccess(cmd.ErrOrStderr(), "wrote %s", p)
		}
		if err != nil {
			return err
		}
		return printResult(cmd, map[string]any{"written": written})
	},
}

func init() {
	f := convertCmd.Flags()
	f.StringVar(&convertFlags.query, "query", "", "query audio file or directory")
	f.StringVar(&convertFlags.model, "model", "", "checkpoint file, directory or s3:// object")
	f.StringVar(&convertFlags.out, "out", "", "output directory or file")
	_ = convertCmd.MarkFlagRequired("query")
	_ = convertCmd.MarkFlagRequired("model")
	_ = convertCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(convertCmd)
}
