// Package split distributes the records of a dump across several shards.
// Lines outside records go to every shard, so each shard is a well-formed
// dump on its own.
package split

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/agentic-research/riffle/api"
	"github.com/agentic-research/riffle/internal/dump"
	"github.com/sirupsen/logrus"
)

// ErrTruncated is returned when the input ends inside a record.
var ErrTruncated = errors.New("input ends inside a record")

// Stats counts records per shard.
type Stats struct {
	Records  int
	PerShard []int
}

// Splitter assigns each record to a shard drawn uniformly at random.
type Splitter struct {
	Format api.Format
	Rand   *rand.Rand
	Log    logrus.FieldLogger
}

// New returns a Splitter drawing from a PCG source seeded with seed.
func New(format api.Format, seed uint64, log logrus.FieldLogger) *Splitter {
	return &Splitter{
		Format: format,
		Rand:   rand.New(rand.NewPCG(seed, seed)),
		Log:    log,
	}
}

// Run reads in once and writes to shards.
func (s *Splitter) Run(in io.Reader, shards []io.Writer) (Stats, error) {
	st := Stats{PerShard: make([]int, len(shards))}
	if len(shards) == 0 {
		return st, errors.New("no shards")
	}

	start := []byte(s.Format.RecordStart + "\n")
	end := []byte(s.Format.RecordEnd + "\n")
	lr := dump.NewLineReader(in)

	// -1 while outside a record.
	shard := -1
	var opened int64
	for {
		line, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return st, err
		}

		if shard < 0 && bytes.Equal(line, start) {
			shard = s.Rand.IntN(len(shards))
			opened = lr.Lines()
			st.Records++
			st.PerShard[shard]++
		}

		if shard < 0 {
			for i, w := range shards {
				if _, err := w.Write(line); err != nil {
					return st, fmt.Errorf("shard %d: %w", i, err)
				}
			}
			continue
		}
		if _, err := shards[shard].Write(line); err != nil {
			return st, fmt.Errorf("shard %d: %w", shard, err)
		}
		if bytes.Equal(line, end) {
			shard = -1
		}
	}

	if shard >= 0 {
		return st, fmt.Errorf("%w: record opened at line %d", ErrTruncated, opened)
	}
	s.log().WithFields(logrus.Fields{
		"records": st.Records,
		"shards":  len(shards),
	}).Info("split dump")
	return st, nil
}

func (s *Splitter) log() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}
