package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/agentic-research/riffle/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an HCL config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	f := rootCmd.Flags()
	f.StringP("input", "i", "", "Original dump (plain or gzip)")
	f.StringP("output", "o", "", "Merged dump to write (gzip if it ends in .gz)")
	f.StringP("overrides", "t", "", "Directory of override page files")
	f.String("key", "id", "Record key: id or title")
	f.String("manifest", "", "SQLite ledger of runs and applied pages")
	f.String("report", "", "Write a JSON run report to this path")
}

var rootCmd = &cobra.Command{
	Use:   "riffle -i <dump> -o <output> -t <overrides>",
	Short: "Merge updated and new pages into a MediaWiki XML dump",
	Long: `riffle streams a MediaWiki XML dump once, replacing every page that has a
file of the same key in the override directory and appending the override
pages that matched nothing before the closing </mediawiki> line.`,
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			var missing *config.MissingError
			if !errors.As(err, &missing) {
				cmd.SilenceUsage = true
			}
			return err
		}
		cmd.SilenceUsage = true

		log, err := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		_, err = runMerge(cfg, log)
		return err
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
