package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Piebald-AI/splitrail/internal/compression"
	"github.com/Piebald-AI/splitrail/pkg/errclass"
	"github.com/Piebald-AI/splitrail/pkg/model"
)

var publishTime = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func claudeSource() *model.SourceStats {
	return &model.SourceStats{
		Tag:           "claude-code",
		DisplayName:   "Claude Code",
		Conversations: 2,
		Daily: map[string]*model.DailyStats{
			"2026-03-01": {
				Date:         "2026-03-01",
				UserMessages: 3,
				AIMessages:   5,
				ModelCounts:  map[string]uint64{"claude-sonnet-4": 5},
				Measures: model.Measures{
					InputTokens:  1200,
					OutputTokens: 300,
					Cost:         decimal.RequireFromString("0.42"),
				},
			},
		},
	}
}

func geminiSource() *model.SourceStats {
	return &model.SourceStats{
		Tag:           "gemini",
		DisplayName:   "Gemini CLI",
		Conversations: 1,
		Daily: map[string]*model.DailyStats{
			"2026-03-02": {Date: "2026-03-02", AIMessages: 1},
		},
	}
}

func testSnapshot(fp model.HashValue, sources ...*model.SourceStats) *model.Snapshot {
	snap := &model.Snapshot{
		Fingerprint: fp,
		CreatedAt:   publishTime,
		Sources:     make(map[string]*model.SourceStats),
	}
	for _, src := range sources {
		snap.Sources[src.Tag] = src
	}
	return snap
}

func testConversations() map[string][]*model.ConversationEvents {
	return map[string][]*model.ConversationEvents{
		"claude-code": {
			{
				ConversationID: "conv-1",
				Source:         "claude-code",
				SessionName:    "rework the parser",
				Paths:          []string{"/logs/a.jsonl"},
				Events: []model.Event{{
					GlobalID:       "e1",
					Source:         "claude-code",
					Role:           model.RoleAssistant,
					Model:          "claude-sonnet-4",
					Timestamp:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
					ConversationID: "conv-1",
					Measures: model.Measures{
						InputTokens: 1200,
						Cost:        decimal.RequireFromString("0.42"),
					},
				}},
			},
		},
	}
}

func TestStoreAndLoadHot(t *testing.T) {
	c := NewCache(t.TempDir())
	require.NoError(t, c.Store(testSnapshot("fp-1", claudeSource()), nil))

	src, fp, err := c.LoadHot("claude-code", "fp-1")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, model.HashValue("fp-1"), fp)
	assert.Equal(t, "Claude Code", src.DisplayName)
	assert.Equal(t, uint64(2), src.Conversations)
	day := src.Daily["2026-03-01"]
	require.NotNil(t, day)
	assert.Equal(t, uint64(5), day.AIMessages)
	assert.Equal(t, uint64(1200), day.Measures.InputTokens)
	assert.True(t, decimal.RequireFromString("0.42").Equal(day.Measures.Cost))

	missing, fp, err := c.LoadHot("codex", "fp-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Empty(t, fp)

	_, _, err = c.LoadHot("claude-code", "fp-2")
	require.ErrorIs(t, err, errclass.ErrSnapshotStale)

	// An empty want accepts any fingerprint.
	src, fp, err = c.LoadHot("claude-code", "")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, model.HashValue("fp-1"), fp)
}

func TestStoreAndLoadCold(t *testing.T) {
	c := NewCache(t.TempDir())
	require.NoError(t, c.Store(testSnapshot("fp-1", claudeSource()), testConversations()))

	convs, fp, err := c.LoadCold("claude-code", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, model.HashValue("fp-1"), fp)
	require.Len(t, convs, 1)
	g := convs[0]
	assert.Equal(t, "conv-1", g.ConversationID)
	assert.Equal(t, "rework the parser", g.SessionName)
	require.Len(t, g.Events, 1)
	ev := g.Events[0]
	assert.Equal(t, "e1", ev.GlobalID)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), ev.Timestamp.UTC())
	assert.True(t, decimal.RequireFromString("0.42").Equal(ev.Measures.Cost))

	_, _, err = c.LoadCold("claude-code", "fp-2")
	require.ErrorIs(t, err, errclass.ErrSnapshotStale)

	missing, _, err := c.LoadCold("gemini", "fp-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestColdTierGzippedOnDisk(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	require.NoError(t, c.Store(testSnapshot("fp-1", claudeSource()), testConversations()))

	cold, err := os.ReadFile(filepath.Join(dir, "claude-code.cold.json.gz"))
	require.NoError(t, err)
	assert.True(t, compression.IsCompressed(cold))

	hot, err := os.ReadFile(filepath.Join(dir, "claude-code.hot.json"))
	require.NoError(t, err)
	assert.False(t, compression.IsCompressed(hot))
}

func TestLoadSnapshot(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)

	snap, err := c.LoadSnapshot("fp-1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, c.Store(testSnapshot("fp-1", claudeSource(), geminiSource()), nil))

	snap, err = c.LoadSnapshot("fp-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, model.HashValue("fp-1"), snap.Fingerprint)
	assert.Equal(t, publishTime, snap.CreatedAt.UTC())
	assert.Len(t, snap.Sources, 2)
	assert.Equal(t, uint64(2), snap.Sources["claude-code"].Conversations)
	assert.Equal(t, uint64(1), snap.Sources["gemini"].Conversations)

	_, err = c.LoadSnapshot("fp-2")
	require.ErrorIs(t, err, errclass.ErrSnapshotStale)
}

func TestCorruptTier(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	require.NoError(t, c.Store(testSnapshot("fp-1", claudeSource()), nil))

	path := filepath.Join(dir, "claude-code.hot.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte("Claude Code"), []byte("Claude Node"), 1)
	require.NotEqual(t, data, tampered)
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	_, _, err = c.LoadHot("claude-code", "fp-1")
	require.ErrorIs(t, err, errclass.ErrSnapshotCorrupt)
}

func TestFormatVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	require.NoError(t, c.Store(testSnapshot("fp-1", claudeSource()), nil))

	path := filepath.Join(dir, "claude-code.hot.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte(`"format_version":1`), []byte(`"format_version":99`), 1)
	require.NotEqual(t, data, tampered)
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	_, _, err = c.LoadHot("claude-code", "")
	require.ErrorIs(t, err, errclass.ErrSnapshotCorrupt)
}

func TestPruneDroppedSources(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	require.NoError(t, c.Store(testSnapshot("fp-1", claudeSource(), geminiSource()), testConversations()))

	tags, err := c.Tags()
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-code", "gemini"}, tags)

	require.NoError(t, c.Store(testSnapshot("fp-2", claudeSource()), nil))
	tags, err = c.Tags()
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-code"}, tags)

	_, err = os.Stat(filepath.Join(dir, "gemini.hot.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	require.NoError(t, c.Store(testSnapshot("fp-1", claudeSource()), testConversations()))
	require.NoError(t, c.Clear())

	tags, err := c.Tags()
	require.NoError(t, err)
	assert.Empty(t, tags)
	_, _, err = c.LoadHot("claude-code", "")
	require.NoError(t, err)

	// Clearing an empty directory is fine.
	require.NoError(t, NewCache(filepath.Join(dir, "absent")).Clear())
}
