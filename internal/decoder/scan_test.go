package decoder_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Piebald-AI/splitrail/internal/decoder"
)

type scanned struct {
	line   string
	offset int64
}

func collect(t *testing.T, input string, start int64) ([]scanned, int64) {
	t.Helper()
	var got []scanned
	cursor, err := decoder.ScanLines(strings.NewReader(input), start, func(line []byte, offset int64) error {
		got = append(got, scanned{line: string(line), offset: offset})
		return nil
	})
	require.NoError(t, err)
	return got, cursor
}

func TestScanLinesTerminated(t *testing.T) {
	got, cursor := collect(t, "{\"a\":1}\n{\"b\":2}\n", 0)

	require.Len(t, got, 2)
	assert.Equal(t, scanned{`{"a":1}`, 0}, got[0])
	assert.Equal(t, scanned{`{"b":2}`, 8}, got[1])
	assert.Equal(t, int64(16), cursor)
}

func TestScanLinesUnterminatedTail(t *testing.T) {
	// The half-written final line is neither delivered nor counted.
	got, cursor := collect(t, "{\"a\":1}\n{\"partial", 0)

	require.Len(t, got, 1)
	assert.Equal(t, scanned{`{"a":1}`, 0}, got[0])
	assert.Equal(t, int64(8), cursor)
}

func TestScanLinesStartOffset(t *testing.T) {
	// The reader is positioned mid-file; offsets continue from start.
	got, cursor := collect(t, "{\"c\":3}\n", 100)

	require.Len(t, got, 1)
	assert.Equal(t, scanned{`{"c":3}`, 100}, got[0])
	assert.Equal(t, int64(108), cursor)
}

func TestScanLinesEmpty(t *testing.T) {
	got, cursor := collect(t, "", 42)
	assert.Empty(t, got)
	assert.Equal(t, int64(42), cursor)
}

func TestScanLinesBlankAndCRLF(t *testing.T) {
	got, cursor := collect(t, "\n{\"a\":1}\r\n", 0)

	require.Len(t, got, 2)
	assert.Equal(t, scanned{"", 0}, got[0])
	assert.Equal(t, scanned{`{"a":1}`, 1}, got[1])
	assert.Equal(t, int64(10), cursor)
}

func TestScanLinesCallbackError(t *testing.T) {
	calls := 0
	_, err := decoder.ScanLines(strings.NewReader("a\nb\nc\n"), 0, func(line []byte, offset int64) error {
		calls++
		if calls == 2 {
			return assert.AnError
		}
		return nil
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, calls)
}

func TestScanLinesLongLine(t *testing.T) {
	// Lines beyond the reader's buffer size still arrive whole.
	long := strings.Repeat("x", 1<<20)
	got, cursor := collect(t, long+"\n", 0)

	require.Len(t, got, 1)
	assert.Len(t, got[0].line, 1<<20)
	assert.Equal(t, int64(1<<20+1), cursor)
}
