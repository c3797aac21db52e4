package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxnot/voxnot/pkg/cli"
	"github.com/voxnot/voxnot/pkg/shard"
)

var prepareFlags struct {
	input string
	cache string
	force bool
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Build or reuse a dataset cache",
	Long: `Extract features from every WAV file in --input into shards under
--cache. An existing complete cache is reused unless --force is given.
Without --cache the cache is ~/.voxnot/cache/<input base name>.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if prepareFlags.cache == "" {
			paths, err := GetPaths()
			if err != nil {
				return err
			}
			prepareFlags.cache = filepath.Join(paths.CacheDir(), filepath.Base(filepath.Clean(prepareFlags.input)))
		}
		tk, err := newToolkit(false, nil)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		b := tk.Builder()
		if _, err := b.Prepare(ctx, prepareFlags.input, prepareFlags.cache, prepareFlags.force); err != nil {
			return err
		}
		if b.Stats().Reused > 0 {
			cli.PrintInfo(cmd.ErrOrStderr(), "reused cache %s", prepareFlags.cache)
		} else {
			cli.PrintSuccess(cmd.ErrOrStderr(), "prepared %s", prepareFlags.cache)
		}
		info, err := inspectCache(prepareFlags.cache)
		if err != nil {
			return err
		}
		return printResult(cmd, info)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <cache-dir>",
	Short: "Show a dataset cache manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := inspectCache(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, info)
	},
}

func init() {
	f := prepareCmd.Flags()
	f.StringVar(&prepareFlags.input, "input", "", "raw audio directory")
	f.StringVar(&prepareFlags.cache, "cache", "", "dataset cache directory (default ~/.voxnot/cache/<input>)")
	f.BoolVar(&prepareFlags.force, "force", false, "rebuild the cache")
	_ = prepareCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(inspectCmd)
}

type shardInfo struct {
	Name    string `json:"name" yaml:"name"`
	Records int    `json:"records" yaml:"records"`
	Size    int64  `json:"size" yaml:"size"`
}

type cacheInfo struct {
	Dir       string      `json:"dir" yaml:"dir"`
	Source    string      `json:"source" yaml:"source"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
	Records   int         `json:"records" yaml:"records"`
	Shards    []shardInfo `json:"shards" yaml:"shards"`
}

func (c *cacheInfo) Table() cli.Table {
	t := cli.NewTable("SHARD", "RECORDS", "SIZE")
	for _, s := range c.Shards {
		t.Append(s.Name, strconv.Itoa(s.Records), cli.FormatBytes(s.Size))
	}
	t.Append("total", strconv.Itoa(c.Records), "")
	return t
}

func inspectCache(dir string) (*cacheInfo, error) {
	m, err := shard.ReadManifest(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s is not a prepared dataset cache", dir)
		}
		return nil, err
	}
	info := &cacheInfo{
		Dir:       dir,
		Source:    m.Source,
		CreatedAt: m.CreatedAt,
		Records:   m.Records(),
	}
	for _, e := range m.Shards {
		si := shardInfo{Name: e.Name, Records: e.Records}
		if st, err := os.Stat(filepath.Join(dir, e.Name)); err == nil {
			si.Size = st.Size()
		}
		info.Shards = append(info.Shards, si)
	}
	return info, nil
}
