package split

import (
	"fmt"
	"io"

	"github.com/agentic-research/riffle/internal/writeback"
	"github.com/klauspost/compress/gzip"
)

// ShardPath names shard n of prefix.
func ShardPath(prefix string, n int) string {
	return fmt.Sprintf("%s.%04d.gz", prefix, n)
}

// Shards is a set of gzip output files that appear together on Commit.
type Shards struct {
	files []*writeback.File
	gz    []*gzip.Writer
}

// CreateShards starts n gzip shards named after prefix.
func CreateShards(prefix string, n int) (*Shards, error) {
	if n < 1 {
		return nil, fmt.Errorf("shard count must be at least 1, got %d", n)
	}
	s := &Shards{}
	for i := 0; i < n; i++ {
		f, err := writeback.Create(ShardPath(prefix, i))
		if err != nil {
			s.Abort()
			return nil, err
		}
		s.files = append(s.files, f)
		s.gz = append(s.gz, gzip.NewWriter(f))
	}
	return s, nil
}

// Writers returns the compressed writer of each shard, in shard order.
func (s *Shards) Writers() []io.Writer {
	ws := make([]io.Writer, len(s.gz))
	for i, g := range s.gz {
		ws[i] = g
	}
	return ws
}

// Paths returns the final path of each shard.
func (s *Shards) Paths() []string {
	ps := make([]string, len(s.files))
	for i, f := range s.files {
		ps[i] = f.Path()
	}
	return ps
}

// Commit finishes every gzip stream and moves the shards into place.
func (s *Shards) Commit() error {
	for i, g := range s.gz {
		if err := g.Close(); err != nil {
			s.Abort()
			return fmt.Errorf("close shard %d: %w", i, err)
		}
	}
	for _, f := range s.files {
		if err := f.Commit(); err != nil {
			s.Abort()
			return err
		}
	}
	return nil
}

// Abort discards every shard not yet committed.
func (s *Shards) Abort() {
	for _, f := range s.files {
		f.Abort()
	}
}
