package api

import (
	"fmt"
	"strings"
)

// Format describes the fixed literal lines that delimit records in a dump.
// Every marker is matched against a whole line, byte for byte, with the
// trailing newline implied. Markers never contain the newline themselves.
type Format struct {
	// RecordStart opens a record, alone on its line.
	RecordStart string `json:"record_start"`
	// RecordEnd closes a record, alone on its line.
	RecordEnd string `json:"record_end"`
	// Terminator closes the whole dump.
	Terminator string `json:"terminator"`
	// TitlePrefix and TitleSuffix bracket the title value on the title line.
	TitlePrefix string `json:"title_prefix"`
	TitleSuffix string `json:"title_suffix"`
	// IDPrefix and IDSuffix bracket the id value on the line right after the title.
	IDPrefix string `json:"id_prefix"`
	IDSuffix string `json:"id_suffix"`
}

// DefaultFormat returns the markers written by the MediaWiki XML exporter.
func DefaultFormat() Format {
	return Format{
		RecordStart: "  <page>",
		RecordEnd:   "  </page>",
		Terminator:  "</mediawiki>",
		TitlePrefix: "    <title>",
		TitleSuffix: "</title>",
		IDPrefix:    "    <id>",
		IDSuffix:    "</id>",
	}
}

// Validate reports the first marker that cannot delimit anything.
func (f Format) Validate() error {
	for _, m := range []struct{ name, v string }{
		{"record_start", f.RecordStart},
		{"record_end", f.RecordEnd},
		{"terminator", f.Terminator},
		{"title_prefix", f.TitlePrefix},
		{"title_suffix", f.TitleSuffix},
		{"id_prefix", f.IDPrefix},
		{"id_suffix", f.IDSuffix},
	} {
		if m.v == "" {
			return fmt.Errorf("format marker %s is empty", m.name)
		}
		if strings.ContainsAny(m.v, "\r\n") {
			return fmt.Errorf("format marker %s contains a line break", m.name)
		}
	}
	if f.RecordStart == f.RecordEnd {
		return fmt.Errorf("record_start and record_end must differ")
	}
	return nil
}

// KeyMode selects which field identifies a record.
type KeyMode string

const (
	// KeyByID keys records by the id line that immediately follows the title line.
	KeyByID KeyMode = "id"
	// KeyByTitle keys records by the title line alone.
	KeyByTitle KeyMode = "title"
)

// ParseKeyMode accepts "id" or "title" (case-insensitive).
func ParseKeyMode(s string) (KeyMode, error) {
	switch KeyMode(strings.ToLower(strings.TrimSpace(s))) {
	case KeyByID:
		return KeyByID, nil
	case KeyByTitle:
		return KeyByTitle, nil
	default:
		return "", fmt.Errorf("unknown key mode %q (want %q or %q)", s, KeyByID, KeyByTitle)
	}
}

func (m KeyMode) String() string { return string(m) }
