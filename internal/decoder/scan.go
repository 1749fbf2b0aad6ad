package decoder

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ScanLines delivers complete newline-terminated lines from r to fn,
// stripped of the line terminator, together with each line's starting
// byte offset. start seeds the offset arithmetic; r must already be
// positioned there.
//
// The returned cursor sits just past the last terminated line. A final
// line with no trailing newline is a write in progress: it is neither
// delivered nor counted, so the next tail decode re-reads it once the
// writer finishes.
func ScanLines(r io.Reader, start int64, fn func(line []byte, offset int64) error) (int64, error) {
	br := bufio.NewReaderSize(r, 256<<10)
	cursor := start
	for {
		line, err := br.ReadBytes('\n')
		if err == nil {
			offset := cursor
			cursor += int64(len(line))
			trimmed := bytes.TrimRight(line, "\r\n")
			if err := fn(trimmed, offset); err != nil {
				return cursor, err
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return cursor, nil
		}
		return cursor, err
	}
}
