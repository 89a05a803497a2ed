package cmd

import (
	"errors"
	"fmt"

	"github.com/agentic-research/riffle/internal/config"
	"github.com/agentic-research/riffle/internal/dumpio"
	"github.com/agentic-research/riffle/internal/split"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	f := splitCmd.Flags()
	f.StringP("input", "i", "", "Dump to split (plain or gzip)")
	f.IntP("shards", "n", 0, "Number of shards")
	f.StringP("prefix", "p", "", "Shard path prefix; shards are written to <prefix>.NNNN.gz")
	f.Uint64("seed", 0, "Random seed (default: time based)")
	rootCmd.AddCommand(splitCmd)
}

var splitCmd = &cobra.Command{
	Use:   "split -i <dump> -n <shards> -p <prefix>",
	Short: "Distribute a dump's pages across gzip shards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		n, _ := cmd.Flags().GetInt("shards")
		prefix, _ := cmd.Flags().GetString("prefix")
		if cfg.Input == "" || n < 1 || prefix == "" {
			return errors.New(`flags "input" (-i), "shards" (-n, at least 1) and "prefix" (-p) are required`)
		}
		cmd.SilenceUsage = true
		log, err := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		_, err = runSplit(cfg, n, prefix, seedFlag(cmd), log)
		return err
	},
}

func runSplit(cfg config.Config, n int, prefix string, seed uint64, log logrus.FieldLogger) ([]string, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	in, err := dumpio.Open(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = in.Close() }()

	shards, err := split.CreateShards(prefix, n)
	if err != nil {
		return nil, err
	}
	if _, err := split.New(cfg.Format, seed, log).Run(in, shards.Writers()); err != nil {
		shards.Abort()
		return nil, err
	}
	if err := shards.Commit(); err != nil {
		return nil, err
	}
	return shards.Paths(), nil
}
