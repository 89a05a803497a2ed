package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/agentic-research/riffle/internal/config"
	"github.com/agentic-research/riffle/internal/dumpio"
	"github.com/agentic-research/riffle/internal/sample"
	"github.com/agentic-research/riffle/internal/writeback"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	f := sampleCmd.Flags()
	f.StringP("input", "i", "", "Dump to sample (plain or gzip)")
	f.StringP("output", "o", "", "Sample to write (gzip if it ends in .gz)")
	f.Int("part", 100, "Keep about one page in this many")
	f.Uint64("seed", 0, "Random seed (default: time based)")
	rootCmd.AddCommand(sampleCmd)
}

var sampleCmd = &cobra.Command{
	Use:   "sample -i <dump> -o <output>",
	Short: "Write a random sample of a dump's pages, keeping every template",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Input == "" || cfg.Output == "" {
			return errors.New(`required flags "input" (-i) and "output" (-o) not set`)
		}
		cmd.SilenceUsage = true
		log, err := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		part, _ := cmd.Flags().GetInt("part")
		return runSample(cfg, part, seedFlag(cmd), log)
	},
}

func runSample(cfg config.Config, part int, seed uint64, log logrus.FieldLogger) error {
	if err := cfg.Format.Validate(); err != nil {
		return err
	}
	in, err := dumpio.Open(cfg.Input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = in.Close() }()

	return writeback.WriteFile(cfg.Output, func(out io.Writer) error {
		w := dumpio.NewWriter(out, dumpio.Compressed(cfg.Output))
		if _, err := sample.New(cfg.Format, part, seed, log).Run(in, w); err != nil {
			return err
		}
		return w.Close()
	})
}

// seedFlag returns --seed, or a time based seed when it was not given.
func seedFlag(cmd *cobra.Command) uint64 {
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetUint64("seed")
		return seed
	}
	return uint64(time.Now().UnixNano())
}
