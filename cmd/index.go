package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/agentic-research/riffle/internal/config"
	"github.com/agentic-research/riffle/internal/override"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	f := indexCmd.Flags()
	f.StringP("overrides", "t", "", "Directory of override page files")
	f.String("key", "id", "Record key: id or title")
	rootCmd.AddCommand(indexCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index -t <overrides>",
	Short: "List the override pages a merge would use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Overrides == "" {
			return errors.New(`required flag "overrides" (-t) not set`)
		}
		cmd.SilenceUsage = true
		log, err := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		return runIndex(cfg, log, cmd.OutOrStdout())
	},
}

// runIndex prints one line per indexed record in append order, then the
// files that were skipped.
func runIndex(cfg config.Config, log logrus.FieldLogger, out io.Writer) error {
	if err := cfg.Format.Validate(); err != nil {
		return err
	}
	idx, err := override.NewBuilder(cfg.Format, cfg.KeyMode, log).Build(osfs.New(cfg.Overrides))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tTITLE\tFILE")
	for _, r := range idx.Records() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Key, r.Title, r.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, reason := range idx.SkippedReasons() {
		_, _ = fmt.Fprintf(out, "skipped: %s\n", reason)
	}
	return nil
}
