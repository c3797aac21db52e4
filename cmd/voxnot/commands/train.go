package commands

import (
	"encoding/json"
	"os"
	"os/signal"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"

	"github.com/voxnot/voxnot/pkg/cli"
	"github.com/voxnot/voxnot/pkg/voxnot"
)

var trainFlags struct {
	file   string
	source string
	target string
	temp   string
	output string
	name   string
	force  bool
	schema bool
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a model and publish its best checkpoint",
	Long: `Prepare the source and target corpora, train the selected model variant
and publish the best checkpoint as <output>/<name>.ckpt.

Prepared caches live under <temp>/input_ds_X and <temp>/input_ds_Y and are
reused by later runs unless --force is given.

Request file format (YAML or JSON):
  source: data/alice
  target: data/bob
  temp: /tmp/vx
  output: s3://models/vc
  name: alice2bob
  training:
    epochs: 10
    batch_size: 32
  environment:
    log_every: 50

Flags override values from the request file.`,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVarP(&trainFlags.file, "file", "f", "", "request file (YAML or JSON)")
	f.StringVar(&trainFlags.source, "source", "", "source speaker audio directory")
	f.StringVar(&trainFlags.target, "target", "", "target speaker audio directory")
	f.StringVar(&trainFlags.temp, "temp", "", "working directory for dataset caches and checkpoints")
	f.StringVar(&trainFlags.output, "output", "", "output directory or s3://bucket/prefix")
	f.StringVar(&trainFlags.name, "name", "", "run name, also the checkpoint file name")
	f.BoolVar(&trainFlags.force, "force", false, "rebuild dataset caches")
	f.BoolVar(&trainFlags.schema, "print-schema", false, "print the JSON schema of the request file and exit")

	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	if trainFlags.schema {
		schema, err := jsonschema.For[voxnot.TrainRequest](&jsonschema.ForOptions{})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(schema)
	}

	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	req := voxnot.TrainRequest{
		Training:    cfg.Training,
		Environment: cfg.Environment,
	}
	if trainFlags.file != "" {
		if err := cli.LoadRequest(trainFlags.file, &req); err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"source": &req.SourceDir,
		"target": &req.TargetDir,
		"temp":   &req.TempDir,
		"output": &req.OutputDir,
		"name":   &req.RunName,
	} {
		if flags.Changed(name) {
			v, _ := flags.GetString(name)
			*dst = v
		}
	}
	if flags.Changed("force") {
		req.Force = trainFlags.force
	}
	if err := req.Validate(); err != nil {
		return err
	}
	// An unknown model must fail before the ledger touches the disk.
	if err := checkModel(); err != nil {
		return err
	}

	ledger, closeLedger, err := openLedger()
	if err != nil {
		return err
	}
	defer closeLedger()

	tk, err := newToolkit(false, ledger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := tk.Train(ctx, req)
	if err != nil {
		return err
	}
	cli.PrintSuccess(cmd.ErrOrStderr(), "published %s", res.Checkpoint)
	return printResult(cmd, res)
}
