// Package codex decodes Codex CLI rollout logs.
//
// Codex appends wrapper records {timestamp, type, payload} one per line
// under ~/.codex/sessions. Token usage arrives in token_count events
// rather than on the messages themselves, and the model is named in
// session metadata, so the decoder carries running state across rows.
// The format is append-only; tail decoding is supported whenever the
// appended rows are self-contained, and hands back to a full decode
// when they are not.
package codex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Piebald-AI/splitrail/internal/decoder"
	"github.com/Piebald-AI/splitrail/internal/pricing"
	"github.com/Piebald-AI/splitrail/pkg/errclass"
	"github.com/Piebald-AI/splitrail/pkg/logging"
	"github.com/Piebald-AI/splitrail/pkg/model"
	"github.com/Piebald-AI/splitrail/pkg/pathutil"
)

const (
	tag         = "codex"
	displayName = "Codex CLI"
	version     = 1

	// fallbackModel prices sessions whose metadata never names one.
	fallbackModel = "gpt-5"
)

// errTailRequiresFull marks appended rows the tail decoder cannot count
// without replaying the whole file. Callers fall back to DecodeFull.
var errTailRequiresFull = errors.New("codex: appended rows require a full decode")

func init() {
	decoder.Register(&Decoder{})
}

// Decoder implements decoder.TailDecoder for Codex rollout logs.
type Decoder struct{}

func (d *Decoder) Tag() string         { return tag }
func (d *Decoder) DisplayName() string { return displayName }
func (d *Decoder) Version() int        { return version }

func sessionsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errclass.ErrHomeUnavailable.WithMessagef("cannot resolve home directory: %v", err)
	}
	return filepath.Join(home, ".codex", "sessions"), nil
}

func (d *Decoder) GlobPatterns() ([]string, error) {
	dir, err := sessionsDir()
	if err != nil {
		return nil, err
	}
	return []string{filepath.Join(dir, "**", "*.jsonl")}, nil
}

func (d *Decoder) WatchDirs() ([]string, error) {
	dir, err := sessionsDir()
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
	dir, err := sessionsDir()
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// DecodeFull decodes a rollout file from the beginning.
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
		SessionName:    st.name(),
		Identity:       model.FileIdentity{Size: info.Size(), MTime: info.ModTime().UnixNano()},
		Cursor:         model.Cursor(cursor),
		DecoderVersion: version,
		Events:         st.events,
	}, nil
}

// DecodeTail decodes the rows appended since prev's cursor, seeding the
// running model from the newest modeled event in prev. Rows that need
// earlier file state, cumulative-only token counts with no report to
// diff against, or bare assistant messages in a session not yet proven
// to carry usage, fail the tail so the caller re-decodes in full.
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
	st.sessionModel = lastModel(prev.Events)
	st.sawTokenUsage = sawUsage(prev.Events)
	cursor, err := decoder.ScanLines(f, int64(prev.Cursor), st.line)
	if err != nil {
		return nil, err
	}

	name := prev.SessionName
	if name == "" {
		name = st.name()
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

// lastModel returns the model of the newest modeled event, the running
// model at the time the previous decode stopped.
func lastModel(events []model.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Model != "" {
			return events[i].Model
		}
	}
	return ""
}

// sawUsage reports whether any event proves a token_count row was seen.
// A report of all zeros with no tool calls leaves no proof; the tail
// decoder then errs toward a full decode.
func sawUsage(events []model.Event) bool {
	for i := range events {
		m := &events[i].Measures
		if m.TotalTokens() > 0 || m.CachedTokens > 0 || m.ToolCalls > 0 {
			return true
		}
	}
	return false
}

// scanState accumulates one pass over a rollout file.
type scanState struct {
	path          string
	convID        string
	full          bool
	wantName      bool
	sessionModel  string
	sawTokenUsage bool
	prevTotal     *tokenUsage
	toolCallIDs   map[string]struct{}
	sessionName   string
	fallback      string
	events        []model.Event
}

func newScanState(path string, full, wantName bool) *scanState {
	return &scanState{
		path:        path,
		convID:      decoder.HashText(pathutil.Normalize(path)),
		full:        full,
		wantName:    wantName,
		toolCallIDs: make(map[string]struct{}),
	}
}

func (s *scanState) line(line []byte, offset int64) error {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}
	var w wrapper
	if err := json.Unmarshal(trimmed, &w); err != nil {
		logging.Warn("skipping invalid rollout line", map[string]any{
			"path": s.path, "offset": offset, "error": err.Error(),
		})
		return nil
	}
	ts, err := time.Parse(time.RFC3339, w.Timestamp)
	if err != nil {
		logging.Warn("skipping rollout line with unparseable timestamp", map[string]any{
			"path": s.path, "offset": offset, "timestamp": w.Timestamp,
		})
		return nil
	}
	switch w.Type {
	case "session_meta":
		s.sessionMeta(w.Payload)
	case "turn_context":
		s.turnContext(w.Payload)
	case "response_item":
		return s.responseItem(&w, ts, offset)
	case "event_msg":
		return s.eventMsg(&w, ts, offset)
	}
	// Every other row type carries no usage.
	return nil
}

func (s *scanState) sessionMeta(payload json.RawMessage) {
	var meta sessionMeta
	if err := json.Unmarshal(payload, &meta); err != nil || meta.ID == "" || meta.Timestamp == "" {
		return
	}
	// A session header without a model clears any earlier one; it is
	// the authoritative statement of what the session started with.
	s.sessionModel = extractModel(payload)
}

func (s *scanState) turnContext(payload json.RawMessage) {
	var ctx turnContext
	if err := json.Unmarshal(payload, &ctx); err != nil {
		return
	}
	if name := extractModel(payload); name != "" {
		s.sessionModel = name
	}
	if !s.wantName || s.sessionName != "" {
		return
	}
	summary := strings.TrimSpace(ctx.Summary)
	if summary == "" || strings.EqualFold(summary, "auto") {
		return
	}
	s.sessionName = summary
}

func (s *scanState) responseItem(w *wrapper, ts time.Time, offset int64) error {
	var item responseItem
	if err := json.Unmarshal(w.Payload, &item); err != nil {
		return nil
	}
	if item.Type == "function_call" {
		id := item.CallID
		if id == "" {
			id = fmt.Sprintf("%s_%d", w.Timestamp, len(s.toolCallIDs))
		}
		s.toolCallIDs[id] = struct{}{}
		return nil
	}
	if item.Type != "message" {
		return nil
	}
	switch item.Role {
	case "user":
		s.userMessage(&item, ts, offset)
	case "assistant":
		return s.assistantMessage(ts, offset)
	}
	return nil
}

func (s *scanState) userMessage(item *responseItem, ts time.Time, offset int64) {
	if s.wantName && s.fallback == "" && len(item.Content) > 0 {
		if text, ok := titleCandidate(item.Content); ok && !noiseTitle(text) {
			s.fallback = decoder.TruncateName(text)
		}
	}
	s.events = append(s.events, model.Event{
		GlobalID:       s.rowID(offset),
		Source:         tag,
		Role:           model.RoleUser,
		Timestamp:      ts,
		ConversationID: s.convID,
	})
}

func (s *scanState) assistantMessage(ts time.Time, offset int64) error {
	if s.sawTokenUsage {
		return nil
	}
	// Rollouts from before token_count events report usage nowhere, so
	// their bare assistant rows are the only assistant count available.
	// The tail cannot tell such a file from one whose token rows were
	// all zeros, so it hands back to a full decode.
	if !s.full {
		return errTailRequiresFull
	}
	s.events = append(s.events, model.Event{
		GlobalID:       s.rowID(offset),
		Source:         tag,
		Role:           model.RoleAssistant,
		Model:          s.model(),
		Timestamp:      ts,
		ConversationID: s.convID,
	})
	return nil
}

func (s *scanState) eventMsg(w *wrapper, ts time.Time, offset int64) error {
	var event eventMsg
	if err := json.Unmarshal(w.Payload, &event); err != nil || event.Type != "token_count" {
		return nil
	}
	if name := extractTokenEventModel(w.Payload); name != "" {
		s.sessionModel = name
	}
	if event.Info == nil {
		return nil
	}

	var usage *tokenUsage
	switch {
	case event.Info.LastTokenUsage != nil:
		usage = event.Info.LastTokenUsage
	case event.Info.TotalTokenUsage != nil:
		// Cumulative totals are diffed against the previous report. A
		// tail starting mid-file has no previous report to diff with.
		if !s.full && s.prevTotal == nil {
			return errTailRequiresFull
		}
		usage = subtractUsage(event.Info.TotalTokenUsage, s.prevTotal)
	}
	if event.Info.TotalTokenUsage != nil {
		total := *event.Info.TotalTokenUsage
		s.prevTotal = &total
	}
	if usage == nil {
		return nil
	}

	costModel := s.model()
	m := usageMeasures(usage, costModel)
	m.ToolCalls = uint64(len(s.toolCallIDs))
	clear(s.toolCallIDs)

	s.events = append(s.events, model.Event{
		GlobalID:       s.rowID(offset),
		Source:         tag,
		Role:           model.RoleAssistant,
		Model:          costModel,
		Timestamp:      ts,
		ConversationID: s.convID,
		Measures:       m,
	})
	s.sawTokenUsage = true
	return nil
}

func usageMeasures(u *tokenUsage, costModel string) model.Measures {
	// The cached prefix inside input_tokens is priced at the cache-read
	// rate instead of the input rate.
	input := satSub(u.InputTokens, u.CachedInputTokens)
	return model.Measures{
		InputTokens:     input,
		OutputTokens:    u.OutputTokens,
		ReasoningTokens: u.ReasoningOutputTokens,
		CachedTokens:    u.CachedInputTokens,
		Cost:            pricing.TotalCost(costModel, input, u.OutputTokens, 0, u.CachedInputTokens),
	}
}

// rowID derives the event identity from the row's byte offset. Codex
// rows carry no provider ids and wrapper timestamps repeat within a
// burst, so the offset is the only stable per-row key.
func (s *scanState) rowID(offset int64) string {
	return decoder.HashText(s.convID + "_" + strconv.FormatInt(offset, 10))
}

var warnedFallback sync.Map

func (s *scanState) model() string {
	if s.sessionModel == "" {
		s.sessionModel = fallbackModel
		if _, seen := warnedFallback.LoadOrStore(s.path, struct{}{}); !seen {
			logging.Warn("session missing model metadata, estimating cost with fallback", map[string]any{
				"path": s.path, "model": fallbackModel,
			})
		}
	}
	return s.sessionModel
}

func (s *scanState) name() string {
	if s.sessionName != "" {
		return s.sessionName
	}
	return s.fallback
}
