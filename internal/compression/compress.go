// Package compression gzips snapshot cold tiers. The cold tier carries
// every deduplicated event and dwarfs the rest of the persisted state;
// hot tiers and the cache index stay plain JSON so they remain
// greppable.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Level selects the gzip effort.
type Level int

const (
	LevelNone    Level = 0
	LevelFast    Level = 1
	LevelDefault Level = 6
	LevelMax     Level = 9
)

// gzip magic, RFC 1952.
var magic = []byte{0x1f, 0x8b}

// Compress gzips data at level. LevelNone returns data as-is.
func Compress(data []byte, level Level) ([]byte, error) {
	if level <= LevelNone {
		return data, nil
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, int(level))
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress expands gzipped data. Data without the gzip magic passes
// through untouched, so callers can read tiers written before
// compression existed.
func Decompress(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return out, nil
}

// IsCompressed reports whether data starts with the gzip magic.
func IsCompressed(data []byte) bool {
	return len(data) >= len(magic) && bytes.Equal(data[:len(magic)], magic)
}
