// Package journal keeps the append-only scan-cycle log at
// <state dir>/journal.jsonl. Each completed cycle appends one record;
// records form a hash chain so tampering or torn writes are detectable.
// Readers skip lines that fail to parse or verify, so a corrupt tail
// never blocks history queries.
package journal

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Piebald-AI/splitrail/pkg/jsonutil"
	"github.com/Piebald-AI/splitrail/pkg/model"
	"github.com/Piebald-AI/splitrail/pkg/uuidutil"
)

// Trigger names what started a cycle.
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerWatch   Trigger = "watch"
	TriggerManual  Trigger = "manual"
	TriggerRescan  Trigger = "rescan"
)

// Record is one completed scan cycle.
type Record struct {
	ID          string          `json:"id"`
	Time        time.Time       `json:"time"`
	Trigger     Trigger         `json:"trigger"`
	Decoded     int             `json:"decoded"`
	Unchanged   int             `json:"unchanged"`
	Removed     int             `json:"removed"`
	Events      uint64          `json:"events"`
	DurationMS  int64           `json:"duration_ms"`
	Fingerprint model.HashValue `json:"fingerprint"`
	PrevHash    model.HashValue `json:"prev_hash"`
	RecordHash  model.HashValue `json:"record_hash"`
}

// Writer appends cycle records to a JSONL journal.
type Writer struct {
	path string
	mu   sync.Mutex
}

// NewWriter binds a writer to path without touching disk.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Append fills rec's ID, PrevHash, and RecordHash and writes it. The
// file is flocked for the duration so concurrent processes interleave
// whole lines, never fragments.
func (w *Writer) Append(rec *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("flock journal: %w", err)
	}
	defer unlockFile(file)

	prev, err := lastHashLocked(file)
	if err != nil {
		return fmt.Errorf("read journal tail: %w", err)
	}
	rec.ID = uuidutil.NewV4()
	rec.PrevHash = prev
	sum, err := recordHash(rec)
	if err != nil {
		return fmt.Errorf("hash journal record: %w", err)
	}
	rec.RecordHash = sum

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	if _, err := file.Seek(0, 2); err != nil {
		return fmt.Errorf("seek journal end: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write journal record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

// Read returns the journal's records oldest first, skipping lines that
// fail to parse or whose hash does not verify. A missing journal reads
// as empty.
func Read(path string) ([]*Record, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var records []*Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		sum, err := recordHash(&rec)
		if err != nil || sum != rec.RecordHash {
			continue
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return records, nil
}

// Tail returns at most n of the most recent records, oldest first.
func Tail(path string, n int) ([]*Record, error) {
	records, err := Read(path)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

// Verify walks the hash chain and returns the number of verified
// records plus an error describing the first break, if any. A missing
// journal verifies as empty.
func Verify(path string) (int, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var prev model.HashValue
	count := 0
	lineNo := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return count, fmt.Errorf("journal line %d: %w", lineNo, err)
		}
		sum, err := recordHash(&rec)
		if err != nil {
			return count, fmt.Errorf("journal line %d: %w", lineNo, err)
		}
		if sum != rec.RecordHash {
			return count, fmt.Errorf("journal line %d: record hash mismatch", lineNo)
		}
		if rec.PrevHash != prev {
			return count, fmt.Errorf("journal line %d: chain broken", lineNo)
		}
		prev = rec.RecordHash
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("scan journal: %w", err)
	}
	return count, nil
}

// lastHashLocked scans to the final parseable record. Malformed lines
// are skipped the same way Read skips them.
func lastHashLocked(file *os.File) (model.HashValue, error) {
	if _, err := file.Seek(0, 0); err != nil {
		return "", fmt.Errorf("seek journal start: %w", err)
	}
	var last model.HashValue
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		last = rec.RecordHash
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return last, nil
}

// recordHash hashes the canonical form of rec with RecordHash cleared.
func recordHash(rec *Record) (model.HashValue, error) {
	cp := *rec
	cp.RecordHash = ""
	data, err := jsonutil.CanonicalMarshal(&cp)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(sum[:])), nil
}
