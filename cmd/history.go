package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/agentic-research/riffle/internal/manifest"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	f := historyCmd.Flags()
	f.String("manifest", "", "SQLite ledger written by merge runs")
	f.Int("limit", 20, "Number of runs to show (0 for all)")
	f.Int64("run", 0, "Show the pages applied by this run")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history --manifest <db>",
	Short: "Show past merge runs recorded in a manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Manifest == "" {
			return errors.New(`required flag "manifest" not set`)
		}
		cmd.SilenceUsage = true
		limit, _ := cmd.Flags().GetInt("limit")
		run, _ := cmd.Flags().GetInt64("run")

		m, err := manifest.Open(cfg.Manifest)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()
		if run != 0 {
			return printApplied(m, run, cmd.OutOrStdout())
		}
		return printRuns(m, limit, cmd.OutOrStdout())
	},
}

func printRuns(m *manifest.Manifest, limit int, out io.Writer) error {
	runs, err := m.Runs(limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tUPDATED\tNEW\tUNMODIFIED\tSIZE\tOUTPUT")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, humanize.Time(r.StartedAt), statusString(r.Status),
			r.Updated, r.Appended, r.Unmodified, humanize.Bytes(uint64(r.BytesOut)), r.Output)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, r := range runs {
		if r.Error != "" {
			_, _ = fmt.Fprintf(out, "run %d: %s\n", r.ID, r.Error)
		}
	}
	return nil
}

func printApplied(m *manifest.Manifest, run int64, out io.Writer) error {
	applied, err := m.Applied(run)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ACTION\tKEY\tTITLE\tFILE")
	for _, a := range applied {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Action, a.Key, a.Title, a.Path)
	}
	return tw.Flush()
}

func statusString(s string) string {
	switch s {
	case manifest.StatusOK:
		return color.GreenString(s)
	case manifest.StatusFailed:
		return color.RedString(s)
	default:
		return color.YellowString(s)
	}
}
