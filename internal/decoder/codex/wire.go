package codex

import (
	"encoding/json"
	"strings"
	"unicode"
)

// Wire schema of one ~/.codex/sessions rollout line. Every line wraps a
// typed payload; the payload structs here keep only the fields
// statistics read.

type wrapper struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type sessionMeta struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

type turnContext struct {
	Summary string `json:"summary"`
}

// responseItem covers both shapes a response_item payload takes: a
// function_call (call_id) and a message (role, content).
type responseItem struct {
	Type    string          `json:"type"`
	CallID  string          `json:"call_id"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type eventMsg struct {
	Type string     `json:"type"`
	Info *tokenInfo `json:"info"`
}

type tokenInfo struct {
	TotalTokenUsage *tokenUsage `json:"total_token_usage"`
	LastTokenUsage  *tokenUsage `json:"last_token_usage"`
}

// tokenUsage is one usage report. input_tokens is a superset that
// includes the cached prefix; total_token_usage fields are cumulative
// over the whole session.
type tokenUsage struct {
	InputTokens           uint64 `json:"input_tokens"`
	OutputTokens          uint64 `json:"output_tokens"`
	CachedInputTokens     uint64 `json:"cached_input_tokens"`
	ReasoningOutputTokens uint64 `json:"reasoning_output_tokens"`
	TotalTokens           uint64 `json:"total_tokens"`
}

func subtractUsage(cur, prev *tokenUsage) *tokenUsage {
	if prev == nil {
		out := *cur
		return &out
	}
	return &tokenUsage{
		InputTokens:           satSub(cur.InputTokens, prev.InputTokens),
		OutputTokens:          satSub(cur.OutputTokens, prev.OutputTokens),
		CachedInputTokens:     satSub(cur.CachedInputTokens, prev.CachedInputTokens),
		ReasoningOutputTokens: satSub(cur.ReasoningOutputTokens, prev.ReasoningOutputTokens),
		TotalTokens:           satSub(cur.TotalTokens, prev.TotalTokens),
	}
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// Payloads name the model inconsistently across Codex versions, so the
// search tries several keys and descends into the usual container keys
// a few levels deep.

var (
	modelKeys       = []string{"model", "model_name", "modelName"}
	modelContainers = []string{"metadata", "info"}
)

func extractModel(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return searchModel(v, 0)
}

func searchModel(v any, depth int) string {
	if depth > 4 {
		return ""
	}
	switch val := v.(type) {
	case map[string]any:
		for _, key := range modelKeys {
			if s, ok := val[key].(string); ok {
				if name := strings.TrimSpace(s); name != "" {
					return name
				}
			}
		}
		for _, key := range modelContainers {
			if nested, ok := val[key]; ok {
				if name := searchModel(nested, depth+1); name != "" {
					return name
				}
			}
		}
	case []any:
		for _, item := range val {
			if name := searchModel(item, depth+1); name != "" {
				return name
			}
		}
	}
	return ""
}

// extractTokenEventModel reads the model named inside a token_count
// event's info block.
func extractTokenEventModel(payload json.RawMessage) string {
	var probe struct {
		Info json.RawMessage `json:"info"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || len(probe.Info) == 0 {
		return ""
	}
	return extractModel(probe.Info)
}

// titleCandidate returns the session title candidate in a user
// message's content: the bare string, the first usable input_text
// block, or the text field of an object form.
func titleCandidate(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		if val != "" {
			return val, true
		}
	case []any:
		for _, item := range val {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			kind, _ := obj["type"].(string)
			text, _ := obj["text"].(string)
			if kind == "input_text" && text != "" && !probablyToolJSON(text) {
				return text, true
			}
		}
	case map[string]any:
		if text, ok := val["text"].(string); ok && text != "" && !probablyToolJSON(text) {
			return text, true
		}
	}
	return "", false
}

func probablyToolJSON(s string) bool {
	t := strings.TrimLeftFunc(s, unicode.IsSpace)
	return (strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[{")) && strings.Contains(t, `"tool"`)
}

// noiseTitle rejects injected context that happens to lead a user turn.
func noiseTitle(s string) bool {
	t := strings.TrimLeftFunc(s, unicode.IsSpace)
	return probablyToolJSON(t) ||
		strings.HasPrefix(t, "<environment_context>") ||
		strings.HasPrefix(t, "# AGENTS.md instructions for")
}
