package stream

import (
	"bufio"
	"io"
	"strings"
)

// InputReader supplies lines typed by the user. ReadLine returns io.EOF
// when input is exhausted.
type InputReader interface {
	ReadLine() (string, error)
}

// LineReader reads newline-terminated lines from an io.Reader.
type LineReader struct {
	r *bufio.Reader
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReader(r)}
}

// ReadLine returns the next line without its terminator. A final line
// without a newline is returned before io.EOF.
func (l *LineReader) ReadLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
