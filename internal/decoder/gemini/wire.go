package gemini

import "encoding/json"

// session is a whole chats/*.json document. Gemini CLI rewrites the
// file on every update, so a readable document is always complete.
type session struct {
	SessionID string    `json:"sessionId"`
	Messages  []message `json:"messages"`
}

// message is one entry in the messages array, discriminated by Type.
// User rows carry only text; gemini rows add the model, an optional
// usage block, and the tool calls made during the turn.
type message struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Timestamp string     `json:"timestamp"`
	Content   string     `json:"content"`
	Model     string     `json:"model"`
	Tokens    *tokens    `json:"tokens"`
	ToolCalls []toolCall `json:"toolCalls"`
}

// tokens is the usage block on a gemini reply. Cached is the reused
// prefix inside input; thoughts and tool are extra input-rate tokens.
type tokens struct {
	Input    uint64 `json:"input"`
	Output   uint64 `json:"output"`
	Cached   uint64 `json:"cached"`
	Thoughts uint64 `json:"thoughts"`
	Tool     uint64 `json:"tool"`
}

// toolCall is one recorded tool invocation. The args shape depends on
// the tool; only read_many_files args are inspected.
type toolCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}
