// Package config resolves run settings from defaults, an optional HCL file
// and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/agentic-research/riffle/api"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// File is the on-disk HCL configuration. Every attribute is optional.
type File struct {
	Input     string       `hcl:"input,optional"`
	Output    string       `hcl:"output,optional"`
	Overrides string       `hcl:"overrides,optional"`
	Key       string       `hcl:"key,optional"`
	Manifest  string       `hcl:"manifest,optional"`
	Report    string       `hcl:"report,optional"`
	LogLevel  string       `hcl:"log_level,optional"`
	Format    *FormatBlock `hcl:"format,block"`
}

// FormatBlock overrides individual markers of api.DefaultFormat.
type FormatBlock struct {
	RecordStart string `hcl:"record_start,optional"`
	RecordEnd   string `hcl:"record_end,optional"`
	Terminator  string `hcl:"terminator,optional"`
	TitlePrefix string `hcl:"title_prefix,optional"`
	TitleSuffix string `hcl:"title_suffix,optional"`
	IDPrefix    string `hcl:"id_prefix,optional"`
	IDSuffix    string `hcl:"id_suffix,optional"`
}

// Load decodes an HCL (or HCL-JSON, by .json suffix) configuration file.
func Load(path string) (*File, error) {
	var f File
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &f, nil
}

// Config is the resolved configuration of a merge run.
type Config struct {
	Input     string
	Output    string
	Overrides string
	KeyMode   api.KeyMode
	Format    api.Format
	Manifest  string
	Report    string
	LogLevel  string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		KeyMode:  api.KeyByID,
		Format:   api.DefaultFormat(),
		LogLevel: "info",
	}
}

// Apply overlays every attribute set in f.
func (c *Config) Apply(f *File) error {
	if f == nil {
		return nil
	}
	set(&c.Input, f.Input)
	set(&c.Output, f.Output)
	set(&c.Overrides, f.Overrides)
	set(&c.Manifest, f.Manifest)
	set(&c.Report, f.Report)
	set(&c.LogLevel, f.LogLevel)
	if f.Key != "" {
		mode, err := api.ParseKeyMode(f.Key)
		if err != nil {
			return err
		}
		c.KeyMode = mode
	}
	if b := f.Format; b != nil {
		set(&c.Format.RecordStart, b.RecordStart)
		set(&c.Format.RecordEnd, b.RecordEnd)
		set(&c.Format.Terminator, b.Terminator)
		set(&c.Format.TitlePrefix, b.TitlePrefix)
		set(&c.Format.TitleSuffix, b.TitleSuffix)
		set(&c.Format.IDPrefix, b.IDPrefix)
		set(&c.Format.IDSuffix, b.IDSuffix)
	}
	return nil
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// MissingError lists required settings that were never given.
type MissingError struct {
	Flags []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("required flag(s) %s not set", strings.Join(e.Flags, ", "))
}

// Validate checks that the run can start.
func (c Config) Validate() error {
	var missing []string
	if c.Input == "" {
		missing = append(missing, `"input" (-i)`)
	}
	if c.Output == "" {
		missing = append(missing, `"output" (-o)`)
	}
	if c.Overrides == "" {
		missing = append(missing, `"overrides" (-t)`)
	}
	if len(missing) > 0 {
		return &MissingError{Flags: missing}
	}
	if _, err := api.ParseKeyMode(string(c.KeyMode)); err != nil {
		return err
	}
	return c.Format.Validate()
}
