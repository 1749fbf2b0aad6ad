// Package fingerprint classifies file changes against cached records and
// computes corpus-level fingerprints.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/Piebald-AI/splitrail/pkg/model"
	"github.com/Piebald-AI/splitrail/pkg/pathutil"
)

// Classify determines how a file changed relative to its cached record.
// A nil prev means the file was never seen; a nil cur means it no longer
// exists on disk. A decoder version bump forces Rewritten so the file is
// re-decoded from scratch. Every ambiguous case (size shrank, same size
// with a different mtime) is Rewritten: re-decoding too much is safe,
// trusting a stale cursor is not.
func Classify(prev *model.FileRecord, cur *model.FileIdentity, curVersion int) model.Change {
	if prev == nil {
		if cur == nil {
			return model.ChangeUnchanged
		}
		return model.ChangeNew
	}
	if cur == nil {
		return model.ChangeDeleted
	}
	if prev.DecoderVersion != curVersion {
		return model.ChangeRewritten
	}
	if prev.Identity.Equal(*cur) {
		return model.ChangeUnchanged
	}
	if cur.Size > prev.Identity.Size {
		return model.ChangeAppended
	}
	return model.ChangeRewritten
}

// Corpus computes a deterministic fingerprint over the tracked file
// identities. Algorithm: one line per file, `path\0size\0mtime\n` with the
// path NFC-normalized, lines sorted in byte order, SHA-256 over the
// concatenation. Any added, removed, or changed file yields a different
// value; iteration order never does.
func Corpus(ids map[string]model.FileIdentity) model.HashValue {
	lines := make([]string, 0, len(ids))
	for p, id := range ids {
		lines = append(lines, fmt.Sprintf("%s\x00%d\x00%d\n", pathutil.Normalize(p), id.Size, id.MTime))
	}
	sort.Strings(lines)

	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString(line)
	}

	hash := sha256.Sum256([]byte(buf.String()))
	return model.HashValue(hex.EncodeToString(hash[:]))
}
