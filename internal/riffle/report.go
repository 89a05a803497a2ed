package riffle

import (
	"io"
	"time"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// Report is the machine-readable summary of one run.
type Report struct {
	Input     string
	Output    string
	Overrides string
	KeyMode   string
	Indexed   int
	Skipped   []string
	Stats     Stats
	Err       error
}

// Data returns the report as generic JSON data.
func (r Report) Data() map[string]any {
	skipped := make([]any, len(r.Skipped))
	for i, s := range r.Skipped {
		skipped[i] = s
	}
	data := map[string]any{
		"input":      r.Input,
		"output":     r.Output,
		"overrides":  r.Overrides,
		"key":        r.KeyMode,
		"indexed":    r.Indexed,
		"skipped":    skipped,
		"updated":    r.Stats.Updated,
		"appended":   r.Stats.Appended,
		"unmodified": r.Stats.Unmodified,
		"unkeyed":    r.Stats.Unkeyed,
		"bytes_in":   r.Stats.BytesIn,
		"bytes_out":  r.Stats.BytesOut,
		"seconds":    r.Stats.Elapsed.Round(time.Millisecond).Seconds(),
		"status":     "ok",
	}
	if r.Err != nil {
		data["status"] = "failed"
		data["error"] = r.Err.Error()
	}
	return data
}

// WriteJSON writes the report as indented JSON with sorted keys.
func (r Report) WriteJSON(w io.Writer) error {
	_, err := io.WriteString(w, oj.JSON(r.Data(), &ojg.Options{Indent: 2, Sort: true})+"\n")
	return err
}
