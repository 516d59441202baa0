package lane

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// MaxLineLen bounds one reader line.  Longer lines are noise and are
// skipped whole.
const MaxLineLen = 4096

// LineReader splits a reader stream into lines without a token limit that
// could end the stream.
type LineReader struct {
	r *bufio.Reader
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, MaxLineLen)}
}

// Next returns the next line without its CR/LF terminator.  A final
// unterminated line is returned before io.EOF.
func (lr *LineReader) Next() (string, error) {
	for {
		line, err := lr.r.ReadSlice('\n')
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			if err := lr.skipLine(); err != nil {
				return "", err
			}
			continue
		case err == io.EOF && len(line) > 0:
			return strings.TrimRight(string(line), "\r\n"), nil
		case err != nil:
			return "", err
		}
		return strings.TrimRight(string(line), "\r\n"), nil
	}
}

func (lr *LineReader) skipLine() error {
	for {
		_, err := lr.r.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}
