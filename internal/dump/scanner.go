// Package dump scans MediaWiki XML dumps one line at a time.
//
// Structure is recognised purely by comparing whole lines against the fixed
// markers of an api.Format. A line that differs from a marker in any byte,
// whitespace included, is ordinary content. No XML tokenizer is involved.
package dump

import (
	"bytes"
	"fmt"
	"io"

	"github.com/agentic-research/riffle/api"
)

// Key identifies a record.
type Key struct {
	// Value is the lookup key: the id in KeyByID mode, the title in KeyByTitle mode.
	Value string
	// Title is the record title, kept for diagnostics. It may be empty in
	// KeyByID mode if the title line itself is malformed.
	Title string
}

// Scanner walks the records of a single stream.
type Scanner struct {
	lines *LineReader
	mode  api.KeyMode

	start       []byte
	end         []byte
	titlePrefix []byte
	titleSuffix []byte
	idPrefix    []byte
	idSuffix    []byte

	// head holds every line consumed since the last record-start marker.
	head []byte
	// prev holds the last title line seen (KeyByID only).
	prev      []byte
	prevTitle bool
	// inRecord is set between a record-start marker and its record end.
	inRecord bool
}

// NewScanner returns a Scanner reading r with the markers of f.
func NewScanner(r io.Reader, f api.Format, mode api.KeyMode) *Scanner {
	return &Scanner{
		lines:       NewLineReader(r),
		mode:        mode,
		start:       []byte(f.RecordStart + "\n"),
		end:         []byte(f.RecordEnd + "\n"),
		titlePrefix: []byte(f.TitlePrefix),
		titleSuffix: []byte(f.TitleSuffix),
		idPrefix:    []byte(f.IDPrefix),
		idSuffix:    []byte(f.IDSuffix),
	}
}

// SkipToRecordStart consumes lines up to and including the next record-start
// marker. Lines before the marker are copied to w; a nil w discards them.
// The marker itself is never copied.
func (s *Scanner) SkipToRecordStart(w io.Writer) error {
	for {
		line, err := s.lines.Next()
		if err == io.EOF {
			return ErrEndOfStream
		}
		if err != nil {
			return err
		}
		if bytes.Equal(line, s.start) {
			s.resetRecord()
			s.inRecord = true
			return nil
		}
		if w != nil {
			if _, err := w.Write(line); err != nil {
				return fmt.Errorf("copy line %d: %w", s.lines.Lines(), err)
			}
		}
	}
}

// ScanKey consumes lines until the next key field and returns its value.
//
// In KeyByTitle mode the key is the value of the first title line. In
// KeyByID mode the key is the value of an id line that immediately follows a
// title line. ErrEndOfStream means no further key exists; a *MalformedError
// means the field opened but its closing delimiter is missing; a
// *MissingKeyError means the current record closed without a key, and the
// head then holds the whole record up to and including its end marker.
//
// The lines consumed since the last record-start marker, key line included,
// form the record head; see WriteHead.
func (s *Scanner) ScanKey() (Key, error) {
	s.resetRecord()
	for {
		line, err := s.lines.Next()
		if err == io.EOF {
			return Key{}, ErrEndOfStream
		}
		if err != nil {
			return Key{}, err
		}
		if bytes.Equal(line, s.start) {
			s.resetRecord()
			s.inRecord = true
			continue
		}
		s.head = append(s.head, line...)
		if s.inRecord && bytes.Equal(line, s.end) {
			s.inRecord = false
			title, _ := field(s.prev, s.titlePrefix, s.titleSuffix)
			return Key{}, &MissingKeyError{Line: s.lines.Lines(), Title: title}
		}

		if s.mode == api.KeyByTitle {
			if !bytes.HasPrefix(line, s.titlePrefix) {
				continue
			}
			title, ok := field(line, s.titlePrefix, s.titleSuffix)
			if !ok {
				return Key{}, s.malformed("title", line)
			}
			return Key{Value: title, Title: title}, nil
		}

		if s.prevTitle && bytes.HasPrefix(line, s.idPrefix) {
			s.prevTitle = false
			id, ok := field(line, s.idPrefix, s.idSuffix)
			if !ok {
				return Key{}, s.malformed("id", line)
			}
			title, _ := field(s.prev, s.titlePrefix, s.titleSuffix)
			return Key{Value: id, Title: title}, nil
		}
		s.prevTitle = bytes.HasPrefix(line, s.titlePrefix)
		if s.prevTitle {
			s.prev = append(s.prev[:0], line...)
		}
	}
}

// Head returns the lines consumed by the last ScanKey after the last
// record-start marker it crossed. After ErrEndOfStream it holds whatever
// trailed the final record. The slice is only valid until the next scan.
func (s *Scanner) Head() []byte { return s.head }

// WriteHead writes the record head verbatim to w.
func (s *Scanner) WriteHead(w io.Writer) error {
	_, err := w.Write(s.head)
	return err
}

// CopyToRecordEnd copies lines verbatim to w up to and including the
// record-end marker. ErrEndOfStream means the record was never closed.
func (s *Scanner) CopyToRecordEnd(w io.Writer) error {
	for {
		line, err := s.lines.Next()
		if err == io.EOF {
			return ErrEndOfStream
		}
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("copy line %d: %w", s.lines.Lines(), err)
		}
		if bytes.Equal(line, s.end) {
			s.inRecord = false
			return nil
		}
	}
}

// Line is the number of lines consumed so far.
func (s *Scanner) Line() int64 { return s.lines.Lines() }

// BytesRead is the number of bytes consumed so far.
func (s *Scanner) BytesRead() int64 { return s.lines.Bytes() }

func (s *Scanner) resetRecord() {
	s.head = s.head[:0]
	s.prev = s.prev[:0]
	s.prevTitle = false
}

func (s *Scanner) malformed(name string, line []byte) error {
	return &MalformedError{
		Field: name,
		Line:  s.lines.Lines(),
		Text:  string(bytes.TrimRight(line, "\n")),
	}
}

// field extracts the text between prefix and the first suffix after it.
func field(line, prefix, suffix []byte) (string, bool) {
	if !bytes.HasPrefix(line, prefix) {
		return "", false
	}
	rest := bytes.TrimSuffix(line[len(prefix):], []byte("\n"))
	i := bytes.Index(rest, suffix)
	if i < 0 {
		return "", false
	}
	return string(rest[:i]), true
}
