package cmd

import (
	"io"

	"github.com/agentic-research/riffle/api"
	"github.com/agentic-research/riffle/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// resolveConfig layers the config file and then every flag the user set on
// cmd over the defaults. Flags a command does not define are never changed.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Defaults()
	if configPath != "" {
		f, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		if err := cfg.Apply(f); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"input":     &cfg.Input,
		"output":    &cfg.Output,
		"overrides": &cfg.Overrides,
		"manifest":  &cfg.Manifest,
		"report":    &cfg.Report,
		"log-level": &cfg.LogLevel,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return cfg, err
		}
		*dst = v
	}
	if flags.Changed("key") {
		v, _ := flags.GetString("key")
		mode, err := api.ParseKeyMode(v)
		if err != nil {
			return cfg, err
		}
		cfg.KeyMode = mode
	}
	return cfg, nil
}

func newLogger(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}
