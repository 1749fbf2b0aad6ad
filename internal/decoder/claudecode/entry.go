package claudecode

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/Piebald-AI/splitrail/pkg/model"
)

// Wire schema of one ~/.claude/projects/<project>/<session>.jsonl line.
// The outer entry is camelCase; the embedded API message and its usage
// keep their original snake_case field names.

type logEntry struct {
	Type          string          `json:"type"`
	Summary       string          `json:"summary"`
	LeafUUID      string          `json:"leafUuid"`
	Message       *apiMessage     `json:"message"`
	ToolUseResult json.RawMessage `json:"toolUseResult"`
	RequestID     string          `json:"requestId"`
	UUID          string          `json:"uuid"`
	Timestamp     string          `json:"timestamp"`
}

type apiMessage struct {
	ID      string  `json:"id"`
	Role    string  `json:"role"`
	Model   string  `json:"model"`
	Content content `json:"content"`
	Usage   *usage  `json:"usage"`
}

type usage struct {
	InputTokens              uint64 `json:"input_tokens"`
	OutputTokens             uint64 `json:"output_tokens"`
	CacheCreationInputTokens uint64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     uint64 `json:"cache_read_input_tokens"`
}

// contentBlock keeps only the fields statistics read: the block type,
// the tool name of tool_use blocks, and the text of text blocks.
// Unrecognized block types are carried but ignored.
type contentBlock struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Text string `json:"text"`
}

var errContentShape = errors.New("content is neither text nor blocks")

// content is either a bare string or a list of typed blocks. Any other
// shape fails the line it appears on.
type content struct {
	text   string
	isText bool
	blocks []contentBlock
}

func (c *content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		c.isText = true
		return json.Unmarshal(data, &c.text)
	case '[':
		return json.Unmarshal(data, &c.blocks)
	default:
		return errContentShape
	}
}

// present reports whether the message carried a content value at all.
func (c *content) present() bool {
	return c.isText || c.blocks != nil
}

// firstText returns the first user-visible text in the content: the
// bare string itself, else the first text block.
func (c *content) firstText() (string, bool) {
	if c.isText {
		return c.text, true
	}
	for _, b := range c.blocks {
		if b.Type == "text" {
			return b.Text, true
		}
	}
	return "", false
}

// todoResult mirrors a TodoWrite result payload. Both lists must be
// present for the row to describe a todo transition.
type todoResult struct {
	OldTodos *[]todoItem `json:"oldTodos"`
	NewTodos *[]todoItem `json:"newTodos"`
}

type todoItem struct {
	Status string `json:"status"`
}

// toolStats fills an event's activity counters from the message content
// and, when the row carries a TodoWrite result, the todo transition.
func toolStats(c *content, result json.RawMessage, m *model.Measures) {
	for _, block := range c.blocks {
		if block.Type != "tool_use" {
			continue
		}
		m.ToolCalls++
		switch block.Name {
		case "Read":
			m.FilesRead++
		case "Edit", "MultiEdit":
			m.FilesEdited++
		case "Write":
			m.FilesAdded++
		case "Bash":
			m.TerminalCommands++
		case "Glob":
			m.FileSearches++
		case "Grep":
			m.FileContentSearches++
		case "TodoWrite":
			m.TodoWrites++
		case "TodoRead":
			m.TodoReads++
		}
	}
	todoTransition(result, m)
}

// todoTransition counts increases between the old and new todo lists.
// Shrinking counts are not credited: a removed todo is not a completed
// one.
func todoTransition(result json.RawMessage, m *model.Measures) {
	if len(result) == 0 {
		return
	}
	var tr todoResult
	if err := json.Unmarshal(result, &tr); err != nil || tr.OldTodos == nil || tr.NewTodos == nil {
		return
	}
	oldList, newList := *tr.OldTodos, *tr.NewTodos

	if len(newList) > len(oldList) {
		m.TodosCreated += uint64(len(newList) - len(oldList))
	}
	if d := statusCount(newList, "completed") - statusCount(oldList, "completed"); d > 0 {
		m.TodosCompleted += uint64(d)
	}
	if d := statusCount(newList, "in_progress") - statusCount(oldList, "in_progress"); d > 0 {
		m.TodosInProgress += uint64(d)
	}
}

func statusCount(todos []todoItem, status string) int {
	n := 0
	for _, t := range todos {
		if t.Status == status {
			n++
		}
	}
	return n
}
