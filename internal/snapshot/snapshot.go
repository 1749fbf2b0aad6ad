// Package snapshot persists published aggregates between runs.
//
// Each source tag gets two tiers under <state dir>/snapshots/:
//
//	<tag>.hot.json      per-day aggregates and conversation count;
//	                    small, loaded at startup so stats are served
//	                    before any source file is touched
//	<tag>.cold.json.gz  deduplicated events grouped by conversation,
//	                    gzipped; read only when a detail query needs
//	                    them
//
// Every tier records the corpus fingerprint it was built from plus a
// checksum over its canonical form, computed before compression. Loads
// verify format version and checksum (failure is E_SNAPSHOT_CORRUPT),
// then the fingerprint the caller expects (mismatch is
// E_SNAPSHOT_STALE). A stale or corrupt tier is rebuilt, never served.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Piebald-AI/splitrail/internal/compression"
	"github.com/Piebald-AI/splitrail/pkg/errclass"
	"github.com/Piebald-AI/splitrail/pkg/fsutil"
	"github.com/Piebald-AI/splitrail/pkg/jsonutil"
	"github.com/Piebald-AI/splitrail/pkg/model"
)

const (
	formatVersion = 1

	hotSuffix  = ".hot.json"
	coldSuffix = ".cold.json.gz"
)

// Cache reads and writes snapshot tiers under one directory.
type Cache struct {
	dir string
}

// NewCache binds a cache to dir without touching disk.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) hotPath(tag string) string  { return filepath.Join(c.dir, tag+hotSuffix) }
func (c *Cache) coldPath(tag string) string { return filepath.Join(c.dir, tag+coldSuffix) }

type hotFile struct {
	FormatVersion int                          `json:"format_version"`
	Tag           string                       `json:"tag"`
	DisplayName   string                       `json:"display_name,omitempty"`
	Fingerprint   model.HashValue              `json:"fingerprint"`
	CreatedAt     time.Time                    `json:"created_at"`
	Conversations uint64                       `json:"conversations"`
	Daily         map[string]*model.DailyStats `json:"daily"`
	Checksum      model.HashValue              `json:"checksum"`
}

type coldFile struct {
	FormatVersion int                         `json:"format_version"`
	Tag           string                      `json:"tag"`
	Fingerprint   model.HashValue             `json:"fingerprint"`
	CreatedAt     time.Time                   `json:"created_at"`
	Conversations []*model.ConversationEvents `json:"conversations"`
	Checksum      model.HashValue             `json:"checksum"`
}

// Store writes a hot tier for every source in snap and a cold tier for
// every tag in byTag, then prunes tiers for tags snap no longer
// carries. byTag may be nil when the caller has no event detail to
// persist; existing cold tiers for live tags are left alone then.
func (c *Cache) Store(snap *model.Snapshot, byTag map[string][]*model.ConversationEvents) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshots dir: %w", err)
	}
	for tag, src := range snap.Sources {
		hot := &hotFile{
			FormatVersion: formatVersion,
			Tag:           tag,
			DisplayName:   src.DisplayName,
			Fingerprint:   snap.Fingerprint,
			CreatedAt:     snap.CreatedAt,
			Conversations: src.Conversations,
			Daily:         src.Daily,
		}
		cp := *hot
		cp.Checksum = ""
		sum, err := checksumOf(&cp)
		if err != nil {
			return fmt.Errorf("checksum hot tier %s: %w", tag, err)
		}
		hot.Checksum = sum
		if err := writeTier(c.hotPath(tag), hot, compression.LevelNone); err != nil {
			return err
		}
	}
	for tag, convs := range byTag {
		if snap.Sources[tag] == nil {
			continue
		}
		cold := &coldFile{
			FormatVersion: formatVersion,
			Tag:           tag,
			Fingerprint:   snap.Fingerprint,
			CreatedAt:     snap.CreatedAt,
			Conversations: convs,
		}
		cp := *cold
		cp.Checksum = ""
		sum, err := checksumOf(&cp)
		if err != nil {
			return fmt.Errorf("checksum cold tier %s: %w", tag, err)
		}
		cold.Checksum = sum
		if err := writeTier(c.coldPath(tag), cold, compression.LevelDefault); err != nil {
			return err
		}
	}
	return c.prune(snap)
}

// prune removes tiers whose tag has no source in snap.
func (c *Cache) prune(snap *model.Snapshot) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read snapshots dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		tag := ""
		switch {
		case strings.HasSuffix(name, hotSuffix):
			tag = strings.TrimSuffix(name, hotSuffix)
		case strings.HasSuffix(name, coldSuffix):
			tag = strings.TrimSuffix(name, coldSuffix)
		default:
			continue
		}
		if snap.Sources[tag] != nil {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("prune tier %s: %w", name, err)
		}
	}
	return nil
}

// LoadHot reads tag's hot tier. A missing tier returns (nil, "", nil).
// A non-empty want is the fingerprint the tier must carry.
func (c *Cache) LoadHot(tag string, want model.HashValue) (*model.SourceStats, model.HashValue, error) {
	var hot hotFile
	ok, err := readTier(c.hotPath(tag), tag, &hot)
	if err != nil || !ok {
		return nil, "", err
	}
	cp := hot
	cp.Checksum = ""
	sum, err := checksumOf(&cp)
	if err != nil || sum != hot.Checksum {
		return nil, "", errclass.ErrSnapshotCorrupt.WithMessagef("hot tier %s checksum mismatch", tag)
	}
	if hot.Tag != tag {
		return nil, "", errclass.ErrSnapshotCorrupt.WithMessagef("hot tier %s carries tag %q", tag, hot.Tag)
	}
	if want != "" && hot.Fingerprint != want {
		return nil, "", errclass.ErrSnapshotStale.WithMessagef("hot tier %s fingerprint %.12s, corpus is %.12s", tag, hot.Fingerprint, want)
	}
	return &model.SourceStats{
		Tag:           hot.Tag,
		DisplayName:   hot.DisplayName,
		Daily:         hot.Daily,
		Conversations: hot.Conversations,
	}, hot.Fingerprint, nil
}

// LoadCold reads tag's cold tier. A missing tier returns (nil, "", nil).
// A non-empty want is the fingerprint the tier must carry.
func (c *Cache) LoadCold(tag string, want model.HashValue) ([]*model.ConversationEvents, model.HashValue, error) {
	var cold coldFile
	ok, err := readTier(c.coldPath(tag), tag, &cold)
	if err != nil || !ok {
		return nil, "", err
	}
	cp := cold
	cp.Checksum = ""
	sum, err := checksumOf(&cp)
	if err != nil || sum != cold.Checksum {
		return nil, "", errclass.ErrSnapshotCorrupt.WithMessagef("cold tier %s checksum mismatch", tag)
	}
	if cold.Tag != tag {
		return nil, "", errclass.ErrSnapshotCorrupt.WithMessagef("cold tier %s carries tag %q", tag, cold.Tag)
	}
	if want != "" && cold.Fingerprint != want {
		return nil, "", errclass.ErrSnapshotStale.WithMessagef("cold tier %s fingerprint %.12s, corpus is %.12s", tag, cold.Fingerprint, want)
	}
	return cold.Conversations, cold.Fingerprint, nil
}

// LoadSnapshot assembles a full snapshot from every hot tier on disk.
// It returns (nil, nil) when no tier exists. All tiers must agree on
// one fingerprint and, when want is non-empty, on that one.
func (c *Cache) LoadSnapshot(want model.HashValue) (*model.Snapshot, error) {
	tags, err := c.Tags()
	if err != nil || len(tags) == 0 {
		return nil, err
	}
	snap := &model.Snapshot{
		Fingerprint: want,
		Sources:     make(map[string]*model.SourceStats, len(tags)),
	}
	for _, tag := range tags {
		src, fp, err := c.LoadHot(tag, want)
		if err != nil {
			return nil, err
		}
		if src == nil {
			continue
		}
		if snap.Fingerprint == "" {
			snap.Fingerprint = fp
		} else if fp != snap.Fingerprint {
			return nil, errclass.ErrSnapshotStale.WithMessagef("hot tiers disagree on fingerprint at %s", tag)
		}
		snap.Sources[tag] = src
	}
	if len(snap.Sources) == 0 {
		return nil, nil
	}
	// Tiers are written together; any of them carries the publish time.
	var hot hotFile
	if ok, err := readTier(c.hotPath(tags[0]), tags[0], &hot); err == nil && ok {
		snap.CreatedAt = hot.CreatedAt
	}
	return snap, nil
}

// Tags lists the source tags with a hot tier on disk, sorted.
func (c *Cache) Tags() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshots dir: %w", err)
	}
	var tags []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, hotSuffix) {
			tags = append(tags, strings.TrimSuffix(name, hotSuffix))
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// Clear removes every tier file.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshots dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, hotSuffix) && !strings.HasSuffix(name, coldSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove tier %s: %w", name, err)
		}
	}
	return nil
}

// readTier reads and decodes one tier file, verifying the format
// version. Gzipped payloads are expanded first; plain JSON passes
// through. ok is false when the file does not exist.
func readTier(path, tag string, v any) (ok bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errclass.ErrSnapshotCorrupt.WithMessagef("read tier %s: %v", tag, err)
	}
	data, err = compression.Decompress(data)
	if err != nil {
		return false, errclass.ErrSnapshotCorrupt.WithMessagef("decompress tier %s: %v", tag, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errclass.ErrSnapshotCorrupt.WithMessagef("parse tier %s: %v", tag, err)
	}
	var head struct {
		FormatVersion int `json:"format_version"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.FormatVersion != formatVersion {
		return false, errclass.ErrSnapshotCorrupt.WithMessagef("tier %s format %d, want %d", tag, head.FormatVersion, formatVersion)
	}
	return true, nil
}

func writeTier(path string, v any, level compression.Level) error {
	data, err := jsonutil.CanonicalMarshal(v)
	if err != nil {
		return fmt.Errorf("marshal tier %s: %w", filepath.Base(path), err)
	}
	data, err = compression.Compress(data, level)
	if err != nil {
		return fmt.Errorf("compress tier %s: %w", filepath.Base(path), err)
	}
	if err := fsutil.AtomicWrite(path, data, 0o644); err != nil {
		return fmt.Errorf("write tier %s: %w", filepath.Base(path), err)
	}
	return nil
}

func checksumOf(v any) (model.HashValue, error) {
	data, err := jsonutil.CanonicalMarshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(sum[:])), nil
}
