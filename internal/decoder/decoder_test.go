package decoder_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Piebald-AI/splitrail/internal/decoder"
	"github.com/Piebald-AI/splitrail/pkg/model"
)

// fakeDecoder is a minimal Decoder for registry tests.
type fakeDecoder struct {
	tag      string
	patterns []string
}

func (f *fakeDecoder) Tag() string                     { return f.tag }
func (f *fakeDecoder) DisplayName() string             { return f.tag }
func (f *fakeDecoder) Version() int                    { return 1 }
func (f *fakeDecoder) GlobPatterns() ([]string, error) { return f.patterns, nil }
func (f *fakeDecoder) WatchDirs() ([]string, error)    { return nil, nil }
func (f *fakeDecoder) Discover() ([]string, error)     { return nil, nil }
func (f *fakeDecoder) Available() bool                 { return true }
func (f *fakeDecoder) DecodeFull(path string) (*model.DecodedFile, error) {
	return &model.DecodedFile{Path: path}, nil
}

func init() {
	decoder.Register(&fakeDecoder{tag: "fake-b", patterns: []string{"/fake/b/*/*.log"}})
	decoder.Register(&fakeDecoder{tag: "fake-a", patterns: []string{"/fake/a/**/*.jsonl"}})
}

func TestRegistryAllSorted(t *testing.T) {
	all := decoder.All()
	require.GreaterOrEqual(t, len(all), 2)

	var tags []string
	for _, d := range all {
		tags = append(tags, d.Tag())
	}
	assert.Contains(t, tags, "fake-a")
	assert.Contains(t, tags, "fake-b")
	for i := 1; i < len(tags); i++ {
		assert.Less(t, tags[i-1], tags[i])
	}
}

func TestRegistryGet(t *testing.T) {
	d, err := decoder.Get("fake-a")
	require.NoError(t, err)
	assert.Equal(t, "fake-a", d.Tag())

	_, err = decoder.Get("nope")
	assert.Error(t, err)
}

func TestForPath(t *testing.T) {
	d, ok := decoder.ForPath("/fake/a/deep/nested/session.jsonl")
	require.True(t, ok)
	assert.Equal(t, "fake-a", d.Tag())

	d, ok = decoder.ForPath("/fake/b/proj/run.log")
	require.True(t, ok)
	assert.Equal(t, "fake-b", d.Tag())

	_, ok = decoder.ForPath("/elsewhere/run.log")
	assert.False(t, ok)

	// Depth matters: fake-b matches exactly one directory level.
	_, ok = decoder.ForPath("/fake/b/run.log")
	assert.False(t, ok)
}

func TestStatIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0644))

	id, err := decoder.StatIdentity(path)
	require.NoError(t, err)
	assert.Equal(t, int64(6), id.Size)
	assert.Positive(t, id.MTime)

	_, err = decoder.StatIdentity(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestDiscoverGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "p1"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "p2", "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p1", "b.jsonl"), []byte("{}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p1", "a.jsonl"), []byte("{}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p2", "sub", "c.jsonl"), []byte("{}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p1", "skip.txt"), []byte("x"), 0644))

	files, err := decoder.DiscoverGlobs([]string{filepath.Join(dir, "*", "*.jsonl")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "p1", "a.jsonl"),
		filepath.Join(dir, "p1", "b.jsonl"),
	}, files)

	// Recursive pattern reaches the nested file too.
	files, err = decoder.DiscoverGlobs([]string{filepath.Join(dir, "**", "*.jsonl")})
	require.NoError(t, err)
	assert.Len(t, files, 3)

	// A missing root is not an error, just no matches.
	files, err = decoder.DiscoverGlobs([]string{filepath.Join(dir, "absent", "*.jsonl")})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "short", decoder.TruncateName("short"))
	exact := strings.Repeat("x", 50)
	assert.Equal(t, exact, decoder.TruncateName(exact))
	assert.Equal(t, strings.Repeat("x", 50)+"...", decoder.TruncateName(strings.Repeat("x", 51)))
	assert.Equal(t, strings.Repeat("é", 50)+"...", decoder.TruncateName(strings.Repeat("é", 60)))
}
