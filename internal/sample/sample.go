// Package sample writes a random subset of the records of a dump.
package sample

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

// TemplateNamespace marks records that are always kept, so a sample still
// renders the templates its pages transclude.
const TemplateNamespace = "Template:"

// ErrTruncated is returned when the input ends inside a record.
var ErrTruncated = errors.New("input ends inside a record")

// Stats counts what a sample run saw and kept.
type Stats struct {
	Records   int
	Kept      int
	Templates int
}

// Sampler keeps every template record and each other record with
// probability 1/Part. Lines outside records are always copied.
type Sampler struct {
	Format api.Format
	Part   int
	Rand   *rand.Rand
	Log    logrus.FieldLogger
}

// New returns a Sampler drawing from a PCG source seeded with seed.
func New(format api.Format, part int, seed uint64, log logrus.FieldLogger) *Sampler {
	return &Sampler{
		Format: format,
		Part:   part,
		Rand:   rand.New(rand.NewPCG(seed, seed)),
		Log:    log,
	}
}

type state int

const (
	outside state = iota
	undecided
	keeping
	dropping
)

// Run copies the sample of in to out.
func (s *Sampler) Run(in io.Reader, out io.Writer) (Stats, error) {
	var st Stats
	if s.Part < 1 {
		return st, fmt.Errorf("part must be at least 1, got %d", s.Part)
	}

	start := []byte(s.Format.RecordStart + "\n")
	end := []byte(s.Format.RecordEnd + "\n")
	title := []byte(s.Format.TitlePrefix)
	template := []byte(s.Format.TitlePrefix + TemplateNamespace)

	lr := dump.NewLineReader(in)
	var (
		cur     = outside
		pending bytes.Buffer
		opened  int64
	)
	for {
		line, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return st, err
		}

		switch cur {
		case outside:
			if bytes.Equal(line, start) {
				cur = undecided
				opened = lr.Lines()
				pending.Reset()
				pending.Write(line)
				st.Records++
				continue
			}
			if _, err := out.Write(line); err != nil {
				return st, err
			}

		case undecided:
			pending.Write(line)
			closed := bytes.Equal(line, end)
			if !closed && !bytes.HasPrefix(line, title) {
				continue
			}
			keep := s.draw()
			if bytes.HasPrefix(line, template) {
				keep = true
				st.Templates++
			}
			cur = dropping
			if keep {
				cur = keeping
				st.Kept++
				if _, err := pending.WriteTo(out); err != nil {
					return st, err
				}
			}
			if closed {
				cur = outside
			}

		case keeping, dropping:
			if cur == keeping {
				if _, err := out.Write(line); err != nil {
					return st, err
				}
			}
			if bytes.Equal(line, end) {
				cur = outside
			}
		}
	}

	if cur != outside {
		return st, fmt.Errorf("%w: record opened at line %d", ErrTruncated, opened)
	}
	s.log().WithFields(logrus.Fields{
		"records":   st.Records,
		"kept":      st.Kept,
		"templates": st.Templates,
	}).Info("sampled dump")
	return st, nil
}

func (s *Sampler) draw() bool {
	return s.Part == 1 || s.Rand.IntN(s.Part) == 0
}

func (s *Sampler) log() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}
