// Package claudecode decodes Claude Code session logs.
//
// Claude Code appends one JSON object per line to
// ~/.claude/projects/<project>/<session>.jsonl. Assistant rows carry
// API usage, user rows carry tool results, and summary rows name a
// session after compaction. The format is append-only, so the decoder
// supports tail decoding from a saved cursor.
package claudecode

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Piebald-AI/splitrail/internal/decoder"
	"github.com/Piebald-AI/splitrail/internal/pricing"
	"github.com/Piebald-AI/splitrail/pkg/errclass"
	"github.com/Piebald-AI/splitrail/pkg/logging"
	"github.com/Piebald-AI/splitrail/pkg/model"
	"github.com/Piebald-AI/splitrail/pkg/pathutil"
)

const (
	tag         = "claude-code"
	displayName = "Claude Code"
	version     = 1
)

func init() {
	decoder.Register(&Decoder{})
}

// Decoder implements decoder.TailDecoder for Claude Code logs.
type Decoder struct{}

func (d *Decoder) Tag() string         { return tag }
func (d *Decoder) DisplayName() string { return displayName }
func (d *Decoder) Version() int        { return version }

func projectsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errclass.ErrHomeUnavailable.WithMessagef("cannot resolve home directory: %v", err)
	}
	return filepath.Join(home, ".claude", "projects"), nil
}

func (d *Decoder) GlobPatterns() ([]string, error) {
	dir, err := projectsDir()
	if err != nil {
		return nil, err
	}
	return []string{filepath.Join(dir, "*", "*.jsonl")}, nil
}

func (d *Decoder) WatchDirs() ([]string, error) {
	dir, err := projectsDir()
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, nil
	}
	return []string{dir}, nil
}

func (d *Decoder) Discover() ([]string, error) {
	patterns, err := d.GlobPatterns()
	if err != nil {
		return nil, err
	}
	return decoder.DiscoverGlobs(patterns)
}

func (d *Decoder) Available() bool {
	dir, err := projectsDir()
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// DecodeFull decodes a session file from the beginning.
func (d *Decoder) DecodeFull(path string) (*model.DecodedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	st := newScanState(path, true, true)
	cursor, err := decoder.ScanLines(f, 0, st.line)
	if err != nil {
		return nil, err
	}

	return &model.DecodedFile{
		Path:           path,
		Source:         tag,
		ConversationID: st.convID,
		SessionName:    st.sessionName(),
		Identity:       model.FileIdentity{Size: info.Size(), MTime: info.ModTime().UnixNano()},
		Cursor:         model.Cursor(cursor),
		DecoderVersion: version,
		Events:         st.events,
	}, nil
}

// DecodeTail decodes the rows appended since prev's cursor. A file now
// shorter than the classifier saw means a rewrite raced the decode;
// the caller must re-decode in full.
func (d *Decoder) DecodeTail(path string, prev *model.FileRecord, cur model.FileIdentity) (*model.DecodedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < cur.Size || info.Size() < int64(prev.Cursor) {
		return nil, errclass.ErrFileTruncated.WithMessagef("%s shrank to %d bytes during decode", path, info.Size())
	}
	if _, err := f.Seek(int64(prev.Cursor), io.SeekStart); err != nil {
		return nil, err
	}

	st := newScanState(path, false, prev.SessionName == "")
	cursor, err := decoder.ScanLines(f, int64(prev.Cursor), st.line)
	if err != nil {
		return nil, err
	}

	name := prev.SessionName
	if name == "" {
		name = st.fallback
	}

	events := make([]model.Event, 0, len(prev.Events)+len(st.events))
	events = append(events, prev.Events...)
	events = append(events, st.events...)

	return &model.DecodedFile{
		Path:           path,
		Source:         tag,
		ConversationID: st.convID,
		SessionName:    name,
		Identity:       model.FileIdentity{Size: info.Size(), MTime: info.ModTime().UnixNano()},
		Cursor:         model.Cursor(cursor),
		DecoderVersion: version,
		Events:         events,
	}, nil
}

// projectID hashes the project directory name a session file lives in,
// falling back to the full path when there is none.
func projectID(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(dir)
	if base == "." || base == string(filepath.Separator) {
		return decoder.HashText(pathutil.Normalize(path))
	}
	return decoder.HashText(base)
}

// scanState accumulates one pass over a session file. A full decode
// collects summaries and row uuids for session naming; a tail decode
// collects neither, and captures a fallback name only when the previous
// record has none.
type scanState struct {
	path         string
	convID       string
	projID       string
	full         bool
	wantName     bool
	currentModel string
	events       []model.Event
	uuids        []string
	summaries    map[string]string
	fallback     string
	fallbackSet  bool
}

func newScanState(path string, full, wantName bool) *scanState {
	st := &scanState{
		path:     path,
		convID:   decoder.HashText(pathutil.Normalize(path)),
		projID:   projectID(path),
		full:     full,
		wantName: wantName,
	}
	if full {
		st.summaries = make(map[string]string)
	}
	return st
}

func (s *scanState) line(line []byte, offset int64) error {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}
	var entry logEntry
	if err := json.Unmarshal(trimmed, &entry); err != nil {
		logging.Warn("skipping invalid log entry", map[string]any{
			"path": s.path, "offset": offset, "error": err.Error(),
		})
		return nil
	}
	switch entry.Type {
	case "summary":
		if s.full && entry.LeafUUID != "" {
			s.summaries[entry.LeafUUID] = entry.Summary
		}
	case "user", "assistant", "system":
		s.message(&entry, offset)
	case "file-history-snapshot", "queue-operation":
		// Bookkeeping rows with no usage.
	default:
		logging.Warn("skipping unknown log entry type", map[string]any{
			"path": s.path, "type": entry.Type, "offset": offset,
		})
	}
	return nil
}

func (s *scanState) message(entry *logEntry, offset int64) {
	if entry.UUID == "" || entry.Timestamp == "" {
		logging.Warn("skipping log entry without uuid or timestamp", map[string]any{
			"path": s.path, "offset": offset,
		})
		return
	}
	ts, err := time.Parse(time.RFC3339, entry.Timestamp)
	if err != nil {
		logging.Warn("skipping log entry with unparseable timestamp", map[string]any{
			"path": s.path, "offset": offset, "timestamp": entry.Timestamp,
		})
		return
	}

	// Row uuids are tracked for summary linking even when the row
	// itself is skipped.
	if s.full {
		s.uuids = append(s.uuids, entry.UUID)
	}

	modelName := ""
	if entry.Message != nil {
		modelName = entry.Message.Model
	}
	if modelName != "" {
		s.currentModel = modelName
	}
	// Synthetic rows are internal planning output and never counted,
	// but their model still updates the running model above.
	if modelName == "<synthetic>" {
		return
	}

	ev := model.Event{
		GlobalID:       decoder.HashText(s.convID + "_" + entry.UUID),
		Source:         tag,
		Role:           model.RoleAssistant,
		Model:          modelName,
		Timestamp:      ts,
		ConversationID: s.convID,
		ProjectID:      s.projID,
	}
	if entry.Message != nil && entry.Message.Role == "user" {
		ev.Role = model.RoleUser
	}

	var c *content
	if entry.Message != nil && entry.Message.Content.present() {
		c = &entry.Message.Content
		toolStats(c, entry.ToolUseResult, &ev.Measures)
	}

	if entry.Message != nil && entry.Message.Usage != nil {
		u := entry.Message.Usage
		costModel := modelName
		if costModel == "" {
			costModel = s.currentModel
		}
		ev.Measures.InputTokens = u.InputTokens
		ev.Measures.OutputTokens = u.OutputTokens
		ev.Measures.CacheCreationTokens = u.CacheCreationInputTokens
		ev.Measures.CacheReadTokens = u.CacheReadInputTokens
		ev.Measures.CachedTokens = u.CacheCreationInputTokens + u.CacheReadInputTokens
		ev.Measures.Cost = pricing.TotalCost(costModel,
			u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens)

		// Provider request and message ids survive session file copies,
		// so they make the strongest cross-file identity.
		if entry.RequestID != "" && entry.Message.ID != "" {
			ev.GlobalID = decoder.HashText(entry.RequestID + "_" + entry.Message.ID)
		}
	} else {
		// No usage means the row is the user's side regardless of the
		// role it claims.
		ev.Role = model.RoleUser
	}

	if s.wantName && !s.fallbackSet && c != nil {
		if text, ok := c.firstText(); ok {
			s.fallback = decoder.TruncateName(text)
			s.fallbackSet = true
		}
	}

	s.events = append(s.events, ev)
}

// sessionName resolves the file's display name: the first summary whose
// leaf uuid appears among the file's rows, else the first captured
// message text.
func (s *scanState) sessionName() string {
	for _, uuid := range s.uuids {
		if name, ok := s.summaries[uuid]; ok {
			return name
		}
	}
	return s.fallback
}
