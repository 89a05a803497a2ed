package override

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/agentic-research/riffle/api"
	"github.com/agentic-research/riffle/internal/dump"
	billy "github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoKey marks an override file that ends before any key field.
	ErrNoKey = errors.New("no key before end of file")
	// ErrUnterminated marks an override file whose record is never closed.
	ErrUnterminated = errors.New("record end marker missing")
)

// Builder scans override directories into an Index.
type Builder struct {
	Format api.Format
	Mode   api.KeyMode
	Log    logrus.FieldLogger
}

// NewBuilder returns a Builder for the given markers and key variant.
func NewBuilder(format api.Format, mode api.KeyMode, log logrus.FieldLogger) *Builder {
	return &Builder{Format: format, Mode: mode, Log: log}
}

// Build indexes every regular file at the root of fs. Subdirectories and
// symlinks are ignored. Files are visited in name order so that, for a
// duplicated key, the file that sorts last wins.
//
// A file that cannot be opened, holds no key, has a malformed key field or
// never closes its record is logged, recorded in Index.Skipped and left out.
// Only an unreadable directory is an error.
func (b *Builder) Build(fs billy.Filesystem) (*Index, error) {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read override directory %s: %w", fs.Root(), err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	idx := NewIndex(fs)
	files := 0
	for _, e := range entries {
		if !e.Mode().IsRegular() {
			continue
		}
		name := e.Name()
		key, err := b.probe(fs, name)
		if err != nil {
			b.log().WithField("file", fs.Join(fs.Root(), name)).WithError(err).Warn("skipping override file")
			idx.skip(fmt.Errorf("%s: %w", name, err))
			continue
		}
		files++
		if idx.Put(key.Value, key.Title, name) {
			b.log().WithFields(logrus.Fields{"key": key.Value, "file": name}).Debug("duplicate override key, later file wins")
		}
	}

	b.log().WithFields(logrus.Fields{
		"files":   files,
		"records": idx.Len(),
		"skipped": idx.SkippedCount(),
	}).Info("loaded override records")
	return idx, nil
}

// probe checks that name holds exactly the shape the streamer relies on: a
// key field followed by a closed record.
func (b *Builder) probe(fs billy.Filesystem, name string) (dump.Key, error) {
	f, err := fs.Open(name)
	if err != nil {
		return dump.Key{}, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	s := dump.NewScanner(f, b.Format, b.Mode)
	key, err := s.ScanKey()
	var missing *dump.MissingKeyError
	if errors.Is(err, dump.ErrEndOfStream) || errors.As(err, &missing) {
		return dump.Key{}, ErrNoKey
	}
	if err != nil {
		return dump.Key{}, err
	}
	if err := s.CopyToRecordEnd(io.Discard); err != nil {
		if errors.Is(err, dump.ErrEndOfStream) {
			return dump.Key{}, ErrUnterminated
		}
		return dump.Key{}, err
	}
	return key, nil
}

func (b *Builder) log() logrus.FieldLogger {
	if b.Log == nil {
		return logrus.StandardLogger()
	}
	return b.Log
}
