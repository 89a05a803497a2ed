// Package riffle merges override records into a dump in a single pass.
//
// The original dump is streamed once: its preamble is copied, each record
// is either copied verbatim or replaced by the override file with the same
// key, and every override that matched nothing is appended before the
// terminator. Only one record head is ever held in memory.
package riffle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/agentic-research/riffle/api"
	"github.com/agentic-research/riffle/internal/dump"
	"github.com/agentic-research/riffle/internal/override"
	"github.com/sirupsen/logrus"
)

const writeBufferSize = 256 * 1024

var (
	// ErrIncomplete means the input holds no record at all.
	ErrIncomplete = errors.New("incomplete dump")
	// ErrTruncated means a record of the input is cut short or its key is malformed.
	ErrTruncated = errors.New("truncated dump")
	// ErrInconsistent means an indexed override file no longer matches the index.
	ErrInconsistent = errors.New("override changed since indexing")
)

// Action says what happened to an override record.
type Action string

const (
	ActionUpdated  Action = "updated"
	ActionAppended Action = "appended"
)

// Event describes one override record written to the output.
type Event struct {
	Action Action
	Key    string
	Title  string
	Path   string
}

// Stats summarises a merge.
type Stats struct {
	Updated    int
	Appended   int
	Unmodified int
	// Unkeyed counts input records without a key. They are copied
	// unchanged and are included in Unmodified.
	Unkeyed    int
	BytesIn    int64
	BytesOut   int64
	Elapsed    time.Duration
}

// Records is the number of records written.
func (s Stats) Records() int { return s.Updated + s.Appended + s.Unmodified }

// Merger streams one dump through an override index.
type Merger struct {
	Index  *override.Index
	Format api.Format
	Mode   api.KeyMode
	Log    logrus.FieldLogger

	// Observe, when set, is called after every updated or appended record.
	// An error aborts the merge.
	Observe func(Event) error

	start []byte
}

// NewMerger returns a Merger over idx.
func NewMerger(idx *override.Index, format api.Format, mode api.KeyMode, log logrus.FieldLogger) *Merger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Merger{Index: idx, Format: format, Mode: mode, Log: log}
}

// Merge reads the dump from in and writes the merged dump to out. The index
// is mutated: every override used in place is marked consumed.
//
// Stats are returned even on failure and describe the work done so far.
func (m *Merger) Merge(in io.Reader, out io.Writer) (Stats, error) {
	began := time.Now()
	m.start = []byte(m.Format.RecordStart + "\n")

	cw := &countingWriter{w: out}
	w := bufio.NewWriterSize(cw, writeBufferSize)
	s := dump.NewScanner(in, m.Format, m.Mode)

	var st Stats
	err := m.stream(s, w, &st)
	if err == nil {
		err = m.trailer(w, &st)
	}
	if err == nil {
		err = w.Flush()
	}
	st.BytesIn = s.BytesRead()
	st.BytesOut = cw.n
	st.Elapsed = time.Since(began)
	return st, err
}

// stream copies the preamble and every record of the input.
func (m *Merger) stream(s *dump.Scanner, w io.Writer, st *Stats) error {
	if err := s.SkipToRecordStart(w); err != nil {
		if errors.Is(err, dump.ErrEndOfStream) {
			return fmt.Errorf("%w: no %q line found", ErrIncomplete, m.Format.RecordStart)
		}
		return fmt.Errorf("copy preamble: %w", err)
	}

	for {
		key, err := s.ScanKey()
		if errors.Is(err, dump.ErrEndOfStream) {
			m.checkTail(s.Head())
			return nil
		}
		var missing *dump.MissingKeyError
		if errors.As(err, &missing) {
			m.Log.WithFields(logrus.Fields{"line": missing.Line, "title": missing.Title}).
				Warn("record has no key, copying it unchanged")
			if _, err := w.Write(m.start); err != nil {
				return err
			}
			if err := s.WriteHead(w); err != nil {
				return err
			}
			st.Unmodified++
			st.Unkeyed++
			continue
		}
		var malformed *dump.MalformedError
		if errors.As(err, &malformed) {
			return fmt.Errorf("%w: %w", ErrTruncated, err)
		}
		if err != nil {
			return fmt.Errorf("scan input: %w", err)
		}

		rec, ok := m.Index.Lookup(key.Value)
		if !ok {
			if _, err := w.Write(m.start); err != nil {
				return err
			}
			if err := s.WriteHead(w); err != nil {
				return err
			}
			if err := s.CopyToRecordEnd(w); err != nil {
				return m.inputErr(key, s, err)
			}
			st.Unmodified++
			continue
		}

		m.Index.MarkConsumed(rec)
		if err := m.writeOverride(rec, w); err != nil {
			return err
		}
		if err := s.CopyToRecordEnd(io.Discard); err != nil {
			return m.inputErr(key, s, err)
		}
		st.Updated++
		if err := m.observe(ActionUpdated, rec); err != nil {
			return err
		}
	}
}

// trailer appends every override that replaced nothing, then terminates the dump.
func (m *Merger) trailer(w io.Writer, st *Stats) error {
	for _, rec := range m.Index.Unconsumed() {
		if err := m.writeOverride(rec, w); err != nil {
			return err
		}
		st.Appended++
		if err := m.observe(ActionAppended, rec); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, m.Format.Terminator+"\n")
	return err
}

// writeOverride writes the record held by rec's file. Its own start marker
// and anything before it are not copied; the start marker is written fresh.
func (m *Merger) writeOverride(rec *override.Record, w io.Writer) error {
	loc := m.Index.Location(rec)
	f, err := m.Index.Open(rec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	defer func() { _ = f.Close() }()

	s := dump.NewScanner(f, m.Format, m.Mode)
	key, err := s.ScanKey()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInconsistent, loc, err)
	}
	if key.Value != rec.Key {
		return fmt.Errorf("%w: %s holds key %q, indexed as %q", ErrInconsistent, loc, key.Value, rec.Key)
	}
	if _, err := w.Write(m.start); err != nil {
		return err
	}
	if err := s.WriteHead(w); err != nil {
		return err
	}
	if err := s.CopyToRecordEnd(w); err != nil {
		if errors.Is(err, dump.ErrEndOfStream) {
			return fmt.Errorf("%w: %s: record end marker missing", ErrInconsistent, loc)
		}
		return fmt.Errorf("copy %s: %w", loc, err)
	}
	return nil
}

func (m *Merger) inputErr(key dump.Key, s *dump.Scanner, err error) error {
	if errors.Is(err, dump.ErrEndOfStream) {
		return fmt.Errorf("%w: record %q (key %s) not closed before line %d", ErrTruncated, key.Title, key.Value, s.Line())
	}
	return fmt.Errorf("copy record %s: %w", key.Value, err)
}

func (m *Merger) observe(action Action, rec *override.Record) error {
	m.Log.WithFields(logrus.Fields{"key": rec.Key, "title": rec.Title, "file": rec.Path}).Debugf("%s page", action)
	if m.Observe == nil {
		return nil
	}
	return m.Observe(Event{Action: action, Key: rec.Key, Title: rec.Title, Path: rec.Path})
}

// checkTail reports input that follows the last record. It is replaced by
// the terminator, so anything else there is lost.
func (m *Merger) checkTail(tail []byte) {
	switch string(tail) {
	case m.Format.Terminator + "\n", m.Format.Terminator:
	case "":
		m.Log.Warnf("input ends without %q", m.Format.Terminator)
	default:
		m.Log.WithField("bytes", len(tail)).Warn("discarding input after the last record")
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
