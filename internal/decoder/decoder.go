// Package decoder defines the boundary between tool-specific log
// formats and the normalized event model, plus the registry the engine
// uses to find decoders.
package decoder

import (
	"os"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Piebald-AI/splitrail/pkg/errclass"
	"github.com/Piebald-AI/splitrail/pkg/model"
)

// Decoder turns one tool's on-disk logs into normalized file records.
// Implementations are stateless; every method may be called from any
// goroutine.
type Decoder interface {
	// Tag is the stable machine name, e.g. "claude-code".
	Tag() string
	// DisplayName is the human name, e.g. "Claude Code".
	DisplayName() string
	// Version bumps whenever decode semantics change. Cached records
	// decoded under an older version are re-decoded in full.
	Version() int
	// GlobPatterns returns absolute patterns matching this decoder's
	// log files under the user's home directory.
	GlobPatterns() ([]string, error)
	// WatchDirs returns the directory roots to watch for live changes.
	// Only roots that exist are returned.
	WatchDirs() ([]string, error)
	// Discover enumerates matching log files currently on disk.
	Discover() ([]string, error)
	// Available reports whether the tool's data directory exists.
	Available() bool
	// DecodeFull decodes a file from the beginning.
	DecodeFull(path string) (*model.DecodedFile, error)
}

// TailDecoder is implemented by decoders for append-only formats that
// can resume from a saved cursor instead of re-reading the whole file.
type TailDecoder interface {
	Decoder
	// DecodeTail decodes the bytes appended since prev's cursor. The
	// returned events are prev's merged events followed by the new
	// rows. Returns errclass.ErrFileTruncated when the file on disk is
	// shorter than the classifier saw; callers fall back to DecodeFull.
	DecodeTail(path string, prev *model.FileRecord, cur model.FileIdentity) (*model.DecodedFile, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Decoder)
)

// Register adds a decoder to the registry. Implementation packages
// call it from init(); a duplicate tag panics.
func Register(d Decoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[d.Tag()]; dup {
		panic("decoder: duplicate tag " + d.Tag())
	}
	registry[d.Tag()] = d
}

// All returns every registered decoder, sorted by tag.
func All() []Decoder {
	registryMu.RLock()
	defer registryMu.RUnlock()
	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	out := make([]Decoder, 0, len(tags))
	for _, tag := range tags {
		out = append(out, registry[tag])
	}
	return out
}

// Get returns the decoder registered under tag.
func Get(tag string) (Decoder, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[tag]
	if !ok {
		return nil, errclass.ErrDecoderUnknown.WithMessagef("no decoder registered for tag %q", tag)
	}
	return d, nil
}

// ForPath finds the decoder whose glob patterns match path.
func ForPath(path string) (Decoder, bool) {
	for _, d := range All() {
		patterns, err := d.GlobPatterns()
		if err != nil {
			continue
		}
		for _, pattern := range patterns {
			if ok, _ := doublestar.PathMatch(pattern, path); ok {
				return d, true
			}
		}
	}
	return nil, false
}

// StatIdentity reads the size/mtime identity of a file. A nil error
// with the returned identity means the file exists.
func StatIdentity(path string) (model.FileIdentity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.FileIdentity{}, err
	}
	return model.FileIdentity{Size: info.Size(), MTime: info.ModTime().UnixNano()}, nil
}

// DiscoverGlobs expands patterns with doublestar, returning matching
// regular files in sorted order. Missing directories simply yield no
// matches.
func DiscoverGlobs(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}
