// Package dumpio opens dump files, compressed or not.
package dumpio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

type input struct {
	io.Reader
	closers []io.Closer
}

func (in *input) Close() error {
	var first error
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens a dump for reading. Gzip content is detected by its magic
// bytes, not by file name, and decompressed transparently.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := wrap(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closers = append([]io.Closer{f}, r.closers...)
	return r, nil
}

// NewReader wraps r, decompressing it if it starts with a gzip header.
// Closing the result does not close r.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	in, err := wrap(r)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func wrap(r io.Reader) (*input, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if !bytes.Equal(head, gzipMagic) {
		return &input{Reader: br}, nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("gzip header: %w", err)
	}
	return &input{Reader: zr, closers: []io.Closer{zr}}, nil
}

// Compressed reports whether output written to path should be gzipped.
func Compressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter returns w, gzip-compressing when compress is set. Close ends
// the gzip stream but never closes w.
func NewWriter(w io.Writer, compress bool) io.WriteCloser {
	if !compress {
		return nopWriteCloser{w}
	}
	return gzip.NewWriter(w)
}
