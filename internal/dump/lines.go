package dump

import (
	"bufio"
	"io"
)

const readBufferSize = 256 * 1024

// LineReader yields newline-terminated lines of any length from a stream.
// Long lines are assembled from bufio fragments into a buffer that grows as
// needed and is reused across calls.
type LineReader struct {
	r     *bufio.Reader
	buf   []byte
	lines int64
	bytes int64
}

// NewLineReader wraps r in a large bufio.Reader (reusing r if it already is one).
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, readBufferSize)}
}

// Next returns the next line including its trailing '\n'. A final line
// without a newline is returned as-is. The returned slice is only valid
// until the next call. io.EOF is returned once no bytes remain.
func (l *LineReader) Next() ([]byte, error) {
	l.buf = l.buf[:0]
	for {
		frag, err := l.r.ReadSlice('\n')
		l.buf = append(l.buf, frag...)
		switch err {
		case nil:
			return l.emit(), nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(l.buf) == 0 {
				return nil, io.EOF
			}
			return l.emit(), nil
		default:
			return nil, err
		}
	}
}

func (l *LineReader) emit() []byte {
	l.lines++
	l.bytes += int64(len(l.buf))
	return l.buf
}

// Lines is the number of lines returned so far.
func (l *LineReader) Lines() int64 { return l.lines }

// Bytes is the number of bytes returned so far.
func (l *LineReader) Bytes() int64 { return l.bytes }
