// Package cachestore persists decoded file records across runs.
//
// The on-disk layout under <state dir>/cache/ is two files:
//
//	index.json   format version, generation counter, and per-file
//	             metadata including each record's payload segment ref
//	records.log  length-prefixed JSON segments holding the event
//	             payloads, one segment per file record
//
// The index is small and loaded eagerly. Segments are read on first
// access to a record and verified against the checksum the index holds
// for them, so reload cost tracks the index size rather than the event
// count. Every validation failure surfaces as E_INDEX_CORRUPT and the
// caller treats the store as cold; a partially trusted cache is never
// served.
package cachestore

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Piebald-AI/splitrail/internal/decoder"
	"github.com/Piebald-AI/splitrail/pkg/errclass"
	"github.com/Piebald-AI/splitrail/pkg/fsutil"
	"github.com/Piebald-AI/splitrail/pkg/jsonutil"
	"github.com/Piebald-AI/splitrail/pkg/model"
)

const (
	formatVersion = 1

	indexName   = "index.json"
	recordsName = "records.log"

	// Each segment in records.log is preceded by its payload length as
	// an 8-byte big-endian prefix, so the log stays recoverable even
	// without the index.
	prefixLen = 8
)

// indexFile is the persisted shape of index.json.
type indexFile struct {
	FormatVersion   int             `json:"format_version"`
	Generation      uint64          `json:"generation"`
	SavedAt         time.Time       `json:"saved_at"`
	DecoderVersions map[string]int  `json:"decoder_versions,omitempty"`
	Files           []*indexEntry   `json:"files"`
	Checksum        model.HashValue `json:"checksum"`
}

// indexEntry is one file's metadata plus the location of its payload
// segment. Everything a classification or summary needs lives here;
// only event payloads require the segment.
type indexEntry struct {
	Path           string                            `json:"path"`
	Source         string                            `json:"source"`
	Identity       model.FileIdentity                `json:"identity"`
	Cursor         model.Cursor                      `json:"cursor"`
	DecoderVersion int                               `json:"decoder_version"`
	ConversationID string                            `json:"conversation_id"`
	SessionName    string                            `json:"session_name,omitempty"`
	StartDate      string                            `json:"start_date,omitempty"`
	Days           map[string]*model.DayContribution `json:"days,omitempty"`
	Events         int                               `json:"events"`
	Segment        segmentRef                        `json:"segment"`
}

type segmentRef struct {
	Offset   int64           `json:"offset"`
	Length   int64           `json:"length"`
	Checksum model.HashValue `json:"checksum"`
}

// segmentPayload is the per-record body stored in records.log.
type segmentPayload struct {
	GlobalIDs []string      `json:"global_ids,omitempty"`
	Events    []model.Event `json:"events,omitempty"`
}

// Store holds the live record table and its persisted form. Records
// loaded from disk stay as index entries until first access.
type Store struct {
	mu      sync.RWMutex
	dir     string
	gen     uint64
	records map[string]*model.FileRecord
	lazy    map[string]*indexEntry
}

// Open binds a store to dir without touching disk.
func Open(dir string) *Store {
	return &Store{
		dir:     dir,
		records: make(map[string]*model.FileRecord),
		lazy:    make(map[string]*indexEntry),
	}
}

func (s *Store) indexPath() string   { return filepath.Join(s.dir, indexName) }
func (s *Store) recordsPath() string { return filepath.Join(s.dir, recordsName) }

// Load reads and validates index.json, replacing the store's contents.
// A missing index leaves the store empty. A failed validation empties
// the store and returns E_INDEX_CORRUPT (or E_INDEX_VERSION for a
// format from another release); callers then rescan cold.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*model.FileRecord)
	s.lazy = make(map[string]*indexEntry)
	s.gen = 0

	data, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errclass.ErrIndexCorrupt.WithMessagef("read index: %v", err)
	}

	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		return errclass.ErrIndexCorrupt.WithMessagef("parse index: %v", err)
	}
	if idx.FormatVersion != formatVersion {
		return errclass.ErrIndexVersion.WithMessagef("index format %d, want %d", idx.FormatVersion, formatVersion)
	}
	want, err := indexChecksum(&idx)
	if err != nil {
		return errclass.ErrIndexCorrupt.WithMessagef("checksum index: %v", err)
	}
	if idx.Checksum != want {
		return errclass.ErrIndexCorrupt.WithMessage("index checksum mismatch")
	}

	if len(idx.Files) > 0 {
		info, err := os.Stat(s.recordsPath())
		if err != nil {
			return errclass.ErrIndexCorrupt.WithMessagef("stat records log: %v", err)
		}
		for _, entry := range idx.Files {
			seg := entry.Segment
			if entry.Path == "" || seg.Offset < 0 || seg.Length < 0 ||
				seg.Offset+prefixLen+seg.Length > info.Size() {
				return errclass.ErrIndexCorrupt.WithMessagef("segment out of bounds for %s", entry.Path)
			}
			if _, dup := s.lazy[entry.Path]; dup {
				return errclass.ErrIndexCorrupt.WithMessagef("duplicate index entry for %s", entry.Path)
			}
			s.lazy[entry.Path] = entry
		}
	}

	s.gen = idx.Generation
	return nil
}

// Get returns the record at path, reading its payload segment on first
// access. A path the store does not hold returns (nil, nil).
func (s *Store) Get(path string) (*model.FileRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[path]
	s.mu.RUnlock()
	if ok {
		return rec, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[path]; ok {
		return rec, nil
	}
	entry, ok := s.lazy[path]
	if !ok {
		return nil, nil
	}
	f, err := os.Open(s.recordsPath())
	if err != nil {
		return nil, errclass.ErrIndexCorrupt.WithMessagef("open records log: %v", err)
	}
	defer f.Close()
	rec, err = readSegment(f, entry)
	if err != nil {
		return nil, err
	}
	delete(s.lazy, path)
	s.records[path] = rec
	return rec, nil
}

// Put installs rec, replacing any previous record at the same path.
func (s *Store) Put(rec *model.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lazy, rec.Path)
	s.records[rec.Path] = rec
}

// Remove drops the record at path and reports whether one was held.
func (s *Store) Remove(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, inRecords := s.records[path]
	_, inLazy := s.lazy[path]
	delete(s.records, path)
	delete(s.lazy, path)
	return inRecords || inLazy
}

// Paths returns every held path, sorted.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records)+len(s.lazy))
	for p := range s.records {
		out = append(out, p)
	}
	for p := range s.lazy {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Identities returns the cached identity of every held path. No
// segment reads happen; identities live in the index.
func (s *Store) Identities() map[string]model.FileIdentity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.FileIdentity, len(s.records)+len(s.lazy))
	for p, rec := range s.records {
		out[p] = rec.Identity
	}
	for p, entry := range s.lazy {
		out[p] = entry.Identity
	}
	return out
}

// Len returns the number of held records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) + len(s.lazy)
}

// Generation returns the index generation last loaded or saved.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// All hydrates and returns every record, sorted by path.
func (s *Store) All() ([]*model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrateAllLocked(); err != nil {
		return nil, err
	}
	out := make([]*model.FileRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) hydrateAllLocked() error {
	if len(s.lazy) == 0 {
		return nil
	}
	f, err := os.Open(s.recordsPath())
	if err != nil {
		return errclass.ErrIndexCorrupt.WithMessagef("open records log: %v", err)
	}
	defer f.Close()
	for path, entry := range s.lazy {
		rec, err := readSegment(f, entry)
		if err != nil {
			return err
		}
		delete(s.lazy, path)
		s.records[path] = rec
	}
	return nil
}

// Save persists the store: records.log first, then index.json, both
// atomically. The index references segment offsets in the log, so a
// crash between the two writes leaves an index whose checksums no
// longer match the log and the next Load reports corruption instead of
// mixing generations. A generation on disk differing from the one this
// store loaded means another process wrote the cache; Save refuses
// with E_GENERATION_CONFLICT and the caller reloads.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if disk, ok := diskGeneration(s.indexPath()); ok && disk != s.gen {
		return errclass.ErrGenerationConflict.WithMessagef("index generation %d on disk, %d in memory", disk, s.gen)
	}
	if err := s.hydrateAllLocked(); err != nil {
		return err
	}

	paths := make([]string, 0, len(s.records))
	for p := range s.records {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var log []byte
	entries := make([]*indexEntry, 0, len(paths))
	for _, p := range paths {
		rec := s.records[p]
		payload, err := jsonutil.CanonicalMarshal(segmentPayload{
			GlobalIDs: rec.GlobalIDs,
			Events:    rec.Events,
		})
		if err != nil {
			return fmt.Errorf("marshal segment for %s: %w", p, err)
		}
		offset := int64(len(log))
		var prefix [prefixLen]byte
		binary.BigEndian.PutUint64(prefix[:], uint64(len(payload)))
		log = append(log, prefix[:]...)
		log = append(log, payload...)
		entries = append(entries, &indexEntry{
			Path:           rec.Path,
			Source:         rec.Source,
			Identity:       rec.Identity,
			Cursor:         rec.Cursor,
			DecoderVersion: rec.DecoderVersion,
			ConversationID: rec.ConversationID,
			SessionName:    rec.SessionName,
			StartDate:      rec.StartDate,
			Days:           rec.Days,
			Events:         len(rec.Events),
			Segment: segmentRef{
				Offset:   offset,
				Length:   int64(len(payload)),
				Checksum: hashBytes(payload),
			},
		})
	}

	idx := &indexFile{
		FormatVersion:   formatVersion,
		Generation:      s.gen + 1,
		SavedAt:         time.Now().UTC(),
		DecoderVersions: registeredVersions(),
		Files:           entries,
	}
	sum, err := indexChecksum(idx)
	if err != nil {
		return fmt.Errorf("checksum index: %w", err)
	}
	idx.Checksum = sum
	data, err := jsonutil.CanonicalMarshal(idx)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := fsutil.AtomicWrite(s.recordsPath(), log, 0o644); err != nil {
		return fmt.Errorf("write records log: %w", err)
	}
	if err := fsutil.AtomicWrite(s.indexPath(), data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	s.gen = idx.Generation
	return nil
}

// VerifyDir validates the persisted cache under dir end to end: index
// version and checksum, then every payload segment.
func VerifyDir(dir string) error {
	st := Open(dir)
	if err := st.Load(); err != nil {
		return err
	}
	_, err := st.All()
	return err
}

// Destroy removes the persisted cache files and empties the store.
func (s *Store) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*model.FileRecord)
	s.lazy = make(map[string]*indexEntry)
	s.gen = 0
	for _, name := range []string{s.indexPath(), s.recordsPath()} {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// readSegment reads and validates one payload segment.
func readSegment(f *os.File, entry *indexEntry) (*model.FileRecord, error) {
	var prefix [prefixLen]byte
	if _, err := f.ReadAt(prefix[:], entry.Segment.Offset); err != nil {
		return nil, errclass.ErrIndexCorrupt.WithMessagef("read segment prefix for %s: %v", entry.Path, err)
	}
	if got := int64(binary.BigEndian.Uint64(prefix[:])); got != entry.Segment.Length {
		return nil, errclass.ErrIndexCorrupt.WithMessagef("segment length %d for %s, index says %d", got, entry.Path, entry.Segment.Length)
	}
	buf := make([]byte, entry.Segment.Length)
	if _, err := f.ReadAt(buf, entry.Segment.Offset+prefixLen); err != nil {
		return nil, errclass.ErrIndexCorrupt.WithMessagef("read segment for %s: %v", entry.Path, err)
	}
	if hashBytes(buf) != entry.Segment.Checksum {
		return nil, errclass.ErrIndexCorrupt.WithMessagef("segment checksum mismatch for %s", entry.Path)
	}
	var payload segmentPayload
	if err := json.Unmarshal(buf, &payload); err != nil {
		return nil, errclass.ErrIndexCorrupt.WithMessagef("parse segment for %s: %v", entry.Path, err)
	}
	return &model.FileRecord{
		Path:           entry.Path,
		Source:         entry.Source,
		Identity:       entry.Identity,
		Cursor:         entry.Cursor,
		DecoderVersion: entry.DecoderVersion,
		ConversationID: entry.ConversationID,
		SessionName:    entry.SessionName,
		StartDate:      entry.StartDate,
		Days:           entry.Days,
		GlobalIDs:      payload.GlobalIDs,
		Events:         payload.Events,
	}, nil
}

// indexChecksum hashes the canonical form of idx with the checksum
// field zeroed.
func indexChecksum(idx *indexFile) (model.HashValue, error) {
	cp := *idx
	cp.Checksum = ""
	data, err := jsonutil.CanonicalMarshal(&cp)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

func hashBytes(b []byte) model.HashValue {
	sum := sha256.Sum256(b)
	return model.HashValue(hex.EncodeToString(sum[:]))
}

// diskGeneration reads just the generation counter from an index file.
func diskGeneration(path string) (uint64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	var head struct {
		Generation uint64 `json:"generation"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, false
	}
	return head.Generation, true
}

func registeredVersions() map[string]int {
	all := decoder.All()
	if len(all) == 0 {
		return nil
	}
	out := make(map[string]int, len(all))
	for _, d := range all {
		out[d.Tag()] = d.Version()
	}
	return out
}
