package dump

import (
	"errors"
	"fmt"
)

// ErrEndOfStream is returned when the stream ends before the awaited marker.
var ErrEndOfStream = errors.New("end of stream")

// MalformedError reports a key field whose opening marker was found but whose
// closing delimiter is missing.
type MalformedError struct {
	Field string // "title" or "id"
	Line  int64  // 1-indexed
	Text  string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s field at line %d: %q", e.Field, e.Line, e.Text)
}

// MissingKeyError reports a record that reached its end marker before any
// key field.
type MissingKeyError struct {
	Line  int64  // line of the record-end marker
	Title string // last title seen in the record, if any
}

func (e *MissingKeyError) Error() string {
	if e.Title == "" {
		return fmt.Sprintf("record ending at line %d has no key", e.Line)
	}
	return fmt.Sprintf("record %q ending at line %d has no key", e.Title, e.Line)
}
