// Package gemini decodes Gemini CLI chat logs.
//
// Gemini CLI keeps one JSON document per session under
// ~/.gemini/tmp/<project>/chats/ and rewrites the whole file on every
// update. There is no stable append point, so the decoder has no tail
// mode; every change is a full decode.
//
// Replies record token usage but no file operation results, so file
// and line measures are estimated from the recorded tool calls.
package gemini

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Piebald-AI/splitrail/internal/decoder"
	"github.com/Piebald-AI/splitrail/internal/pricing"
	"github.com/Piebald-AI/splitrail/pkg/errclass"
	"github.com/Piebald-AI/splitrail/pkg/logging"
	"github.com/Piebald-AI/splitrail/pkg/model"
	"github.com/Piebald-AI/splitrail/pkg/pathutil"
)

const (
	tag         = "gemini"
	displayName = "Gemini CLI"
	version     = 1

	// fallbackModel prices replies, since the chat log names no model.
	fallbackModel = "gemini-2.5-flash"
)

// Per-call estimates for measures the log does not record.
const (
	linesPerFileRead = 100
	bytesPerFileRead = 8000
	linesPerEdit     = 10
	bytesPerEdit     = 800
)

func init() {
	decoder.Register(&Decoder{})
}

// Decoder implements decoder.Decoder for Gemini CLI logs. It is not a
// TailDecoder: the source rewrites files instead of appending to them.
type Decoder struct{}

func (d *Decoder) Tag() string         { return tag }
func (d *Decoder) DisplayName() string { return displayName }
func (d *Decoder) Version() int        { return version }

func tmpDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errclass.ErrHomeUnavailable.WithMessagef("cannot resolve home directory: %v", err)
	}
	return filepath.Join(home, ".gemini", "tmp"), nil
}

func (d *Decoder) GlobPatterns() ([]string, error) {
	dir, err := tmpDir()
	if err != nil {
		return nil, err
	}
	return []string{filepath.Join(dir, "*", "chats", "*.json")}, nil
}

func (d *Decoder) WatchDirs() ([]string, error) {
	dir, err := tmpDir()
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
	dir, err := tmpDir()
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// DecodeFull decodes a whole session document. A file caught mid-rewrite
// fails to parse; the next change event decodes the finished document.
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
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var doc session
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse gemini session %s: %w", path, err)
	}
	if doc.SessionID == "" {
		return nil, fmt.Errorf("parse gemini session %s: missing sessionId", path)
	}

	st := &scanState{
		path:   path,
		convID: decoder.HashText(pathutil.Normalize(path)),
		projID: projectID(path),
	}
	for i := range doc.Messages {
		st.message(i, &doc.Messages[i])
	}

	return &model.DecodedFile{
		Path:           path,
		Source:         tag,
		ConversationID: st.convID,
		SessionName:    st.name,
		Identity:       model.FileIdentity{Size: info.Size(), MTime: info.ModTime().UnixNano()},
		Cursor:         model.Cursor(int64(len(raw))),
		DecoderVersion: version,
		Events:         st.events,
	}, nil
}

// projectID hashes the per-project directory under tmp that a chats
// file lives in, falling back to the full path for foreign layouts.
// The scan runs backwards so an unrelated tmp higher up the tree
// cannot claim the project slot.
func projectID(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == "tmp" {
			return decoder.HashText(parts[i+1])
		}
	}
	return decoder.HashText(pathutil.Normalize(path))
}

// scanState accumulates one pass over a session's messages.
type scanState struct {
	path   string
	convID string
	projID string
	name   string
	events []model.Event
}

func (s *scanState) message(idx int, msg *message) {
	switch msg.Type {
	case "user":
		s.userMessage(idx, msg)
	case "gemini":
		s.reply(idx, msg)
	case "system", "error", "info":
		// Operator chatter with no usage.
	default:
		logging.Warn("skipping unknown chat message type", map[string]any{
			"path": s.path, "type": msg.Type, "index": idx,
		})
	}
}

func (s *scanState) userMessage(idx int, msg *message) {
	ts, ok := s.rowTimestamp(idx, msg)
	if !ok {
		return
	}
	if s.name == "" {
		if text := strings.TrimSpace(msg.Content); text != "" {
			s.name = decoder.TruncateName(text)
		}
	}
	s.events = append(s.events, model.Event{
		GlobalID:       decoder.HashText(s.convID + "_" + msg.ID),
		Source:         tag,
		Role:           model.RoleUser,
		Timestamp:      ts,
		ConversationID: s.convID,
		ProjectID:      s.projID,
	})
}

func (s *scanState) reply(idx int, msg *message) {
	if msg.Tokens == nil {
		// Streaming fragments and cancelled turns carry no usage.
		return
	}
	ts, ok := s.rowTimestamp(idx, msg)
	if !ok {
		return
	}

	// Older logs never name a model; a reply that does wins over the
	// fallback.
	modelName := msg.Model
	if modelName == "" {
		modelName = fallbackModel
	}

	t := msg.Tokens
	m := toolMeasures(msg.ToolCalls)
	m.InputTokens = t.Input
	m.OutputTokens = t.Output
	m.ReasoningTokens = t.Thoughts
	m.CachedTokens = t.Cached
	m.ToolCalls = uint64(len(msg.ToolCalls))
	// Thought and tool tokens bill at the input rate; the cached
	// prefix bills at the cache-read rate.
	m.Cost = pricing.TotalCost(modelName, t.Input+t.Thoughts+t.Tool, t.Output, 0, t.Cached)

	s.events = append(s.events, model.Event{
		GlobalID:       decoder.HashText(s.convID + "_" + msg.ID),
		Source:         tag,
		Role:           model.RoleAssistant,
		Model:          modelName,
		Timestamp:      ts,
		ConversationID: s.convID,
		ProjectID:      s.projID,
		Measures:       m,
	})
}

// rowTimestamp validates the fields every counted row needs. Rows
// without an id or a parseable timestamp are skipped.
func (s *scanState) rowTimestamp(idx int, msg *message) (time.Time, bool) {
	if msg.ID == "" || msg.Timestamp == "" {
		logging.Warn("skipping chat message without id or timestamp", map[string]any{
			"path": s.path, "index": idx,
		})
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, msg.Timestamp)
	if err != nil {
		logging.Warn("skipping chat message with unparseable timestamp", map[string]any{
			"path": s.path, "index": idx, "timestamp": msg.Timestamp,
		})
		return time.Time{}, false
	}
	return ts, true
}

// toolMeasures estimates file operation measures from a reply's tool
// calls. The log keeps tool names and arguments but no results, so
// sizes are fixed per-call estimates.
func toolMeasures(calls []toolCall) model.Measures {
	var m model.Measures
	for _, call := range calls {
		switch call.Name {
		case "read_many_files":
			var args struct {
				Paths []any `json:"paths"`
			}
			if err := json.Unmarshal(call.Args, &args); err != nil {
				continue
			}
			n := uint64(len(args.Paths))
			m.FilesRead += n
			m.LinesRead += n * linesPerFileRead
			m.BytesRead += n * bytesPerFileRead
			for _, p := range args.Paths {
				path, ok := p.(string)
				if !ok {
					continue
				}
				ext := strings.TrimPrefix(filepath.Ext(path), ".")
				switch model.CategoryForExtension(ext) {
				case model.CategoryCode:
					m.CodeLines += linesPerFileRead
				case model.CategoryDocs:
					m.DocsLines += linesPerFileRead
				case model.CategoryData:
					m.DataLines += linesPerFileRead
				case model.CategoryMedia:
					m.MediaLines += linesPerFileRead
				case model.CategoryConfig:
					m.ConfigLines += linesPerFileRead
				default:
					m.OtherLines += linesPerFileRead
				}
			}
		case "write_file":
			m.FilesAdded++
		case "replace":
			m.FilesEdited++
			m.LinesEdited += linesPerEdit
			m.BytesEdited += bytesPerEdit
		case "run_shell_command":
			m.TerminalCommands++
		case "glob":
			m.FileSearches++
		case "search_file_content":
			m.FileContentSearches++
		case "list_directory":
			// A lightweight read.
			m.FilesRead++
		}
	}
	// The log records no edit diffs; added and deleted lines derive
	// from the edit estimate, flooring at one.
	m.LinesAdded = max(m.LinesEdited/2, 1)
	m.LinesDeleted = max(m.LinesEdited/3, 1)
	return m
}
