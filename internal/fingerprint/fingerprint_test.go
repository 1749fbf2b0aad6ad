package fingerprint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Piebald-AI/splitrail/internal/fingerprint"
	"github.com/Piebald-AI/splitrail/pkg/model"
)

func record(size, mtime int64, version int) *model.FileRecord {
	return &model.FileRecord{
		Identity:       model.FileIdentity{Size: size, MTime: mtime},
		DecoderVersion: version,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		prev    *model.FileRecord
		cur     *model.FileIdentity
		version int
		want    model.Change
	}{
		{
			name:    "never seen",
			prev:    nil,
			cur:     &model.FileIdentity{Size: 10, MTime: 1},
			version: 1,
			want:    model.ChangeNew,
		},
		{
			name:    "gone from disk",
			prev:    record(10, 1, 1),
			cur:     nil,
			version: 1,
			want:    model.ChangeDeleted,
		},
		{
			name:    "identical identity",
			prev:    record(10, 1, 1),
			cur:     &model.FileIdentity{Size: 10, MTime: 1},
			version: 1,
			want:    model.ChangeUnchanged,
		},
		{
			name:    "size grew",
			prev:    record(10, 1, 1),
			cur:     &model.FileIdentity{Size: 25, MTime: 2},
			version: 1,
			want:    model.ChangeAppended,
		},
		{
			name:    "size grew same mtime",
			prev:    record(10, 1, 1),
			cur:     &model.FileIdentity{Size: 25, MTime: 1},
			version: 1,
			want:    model.ChangeAppended,
		},
		{
			name:    "size shrank",
			prev:    record(10, 1, 1),
			cur:     &model.FileIdentity{Size: 5, MTime: 2},
			version: 1,
			want:    model.ChangeRewritten,
		},
		{
			name:    "same size touched",
			prev:    record(10, 1, 1),
			cur:     &model.FileIdentity{Size: 10, MTime: 9},
			version: 1,
			want:    model.ChangeRewritten,
		},
		{
			name:    "decoder version bump",
			prev:    record(10, 1, 1),
			cur:     &model.FileIdentity{Size: 10, MTime: 1},
			version: 2,
			want:    model.ChangeRewritten,
		},
		{
			name:    "version bump beats appended",
			prev:    record(10, 1, 1),
			cur:     &model.FileIdentity{Size: 25, MTime: 2},
			version: 2,
			want:    model.ChangeRewritten,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fingerprint.Classify(tt.prev, tt.cur, tt.version)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCorpusDeterministic(t *testing.T) {
	ids := map[string]model.FileIdentity{
		"/a/one.jsonl": {Size: 10, MTime: 100},
		"/b/two.jsonl": {Size: 20, MTime: 200},
	}

	first := fingerprint.Corpus(ids)
	assert.NotEmpty(t, first)
	assert.Len(t, string(first), 64)

	// Same content rebuilt in a fresh map hashes identically.
	again := map[string]model.FileIdentity{
		"/b/two.jsonl": {Size: 20, MTime: 200},
		"/a/one.jsonl": {Size: 10, MTime: 100},
	}
	assert.Equal(t, first, fingerprint.Corpus(again))
}

func TestCorpusSensitivity(t *testing.T) {
	base := map[string]model.FileIdentity{
		"/a/one.jsonl": {Size: 10, MTime: 100},
	}
	baseFP := fingerprint.Corpus(base)

	grown := map[string]model.FileIdentity{
		"/a/one.jsonl": {Size: 11, MTime: 100},
	}
	assert.NotEqual(t, baseFP, fingerprint.Corpus(grown))

	touched := map[string]model.FileIdentity{
		"/a/one.jsonl": {Size: 10, MTime: 101},
	}
	assert.NotEqual(t, baseFP, fingerprint.Corpus(touched))

	added := map[string]model.FileIdentity{
		"/a/one.jsonl": {Size: 10, MTime: 100},
		"/a/two.jsonl": {Size: 5, MTime: 50},
	}
	assert.NotEqual(t, baseFP, fingerprint.Corpus(added))

	assert.NotEqual(t, baseFP, fingerprint.Corpus(nil))
}

func TestCorpusEmpty(t *testing.T) {
	assert.Equal(t, fingerprint.Corpus(nil), fingerprint.Corpus(map[string]model.FileIdentity{}))
}

func TestCorpusNormalizesPaths(t *testing.T) {
	// "café" in NFD (e + combining acute) and NFC hash identically.
	nfd := map[string]model.FileIdentity{
		"/home/café/log.jsonl": {Size: 10, MTime: 100},
	}
	nfc := map[string]model.FileIdentity{
		"/home/café/log.jsonl": {Size: 10, MTime: 100},
	}
	assert.Equal(t, fingerprint.Corpus(nfc), fingerprint.Corpus(nfd))
}
