package model

import "github.com/shopspring/decimal"

// Measures is the fixed set of numeric measures carried by every event and
// accumulated into date buckets. Counts are exact integers; cost is a
// decimal so repeated incremental merges never drift.
type Measures struct {
	InputTokens         uint64 `json:"input_tokens,omitempty"`
	OutputTokens        uint64 `json:"output_tokens,omitempty"`
	ReasoningTokens     uint64 `json:"reasoning_tokens,omitempty"`
	CacheCreationTokens uint64 `json:"cache_creation_tokens,omitempty"`
	CacheReadTokens     uint64 `json:"cache_read_tokens,omitempty"`
	CachedTokens        uint64 `json:"cached_tokens,omitempty"`

	Cost decimal.Decimal `json:"cost"`

	ToolCalls           uint64 `json:"tool_calls,omitempty"`
	TerminalCommands    uint64 `json:"terminal_commands,omitempty"`
	FileSearches        uint64 `json:"file_searches,omitempty"`
	FileContentSearches uint64 `json:"file_content_searches,omitempty"`

	FilesRead    uint64 `json:"files_read,omitempty"`
	FilesAdded   uint64 `json:"files_added,omitempty"`
	FilesEdited  uint64 `json:"files_edited,omitempty"`
	FilesDeleted uint64 `json:"files_deleted,omitempty"`

	LinesRead    uint64 `json:"lines_read,omitempty"`
	LinesAdded   uint64 `json:"lines_added,omitempty"`
	LinesEdited  uint64 `json:"lines_edited,omitempty"`
	LinesDeleted uint64 `json:"lines_deleted,omitempty"`

	BytesRead    uint64 `json:"bytes_read,omitempty"`
	BytesAdded   uint64 `json:"bytes_added,omitempty"`
	BytesEdited  uint64 `json:"bytes_edited,omitempty"`
	BytesDeleted uint64 `json:"bytes_deleted,omitempty"`

	TodosCreated    uint64 `json:"todos_created,omitempty"`
	TodosCompleted  uint64 `json:"todos_completed,omitempty"`
	TodosInProgress uint64 `json:"todos_in_progress,omitempty"`
	TodoWrites      uint64 `json:"todo_writes,omitempty"`
	TodoReads       uint64 `json:"todo_reads,omitempty"`

	CodeLines   uint64 `json:"code_lines,omitempty"`
	DocsLines   uint64 `json:"docs_lines,omitempty"`
	DataLines   uint64 `json:"data_lines,omitempty"`
	MediaLines  uint64 `json:"media_lines,omitempty"`
	ConfigLines uint64 `json:"config_lines,omitempty"`
	OtherLines  uint64 `json:"other_lines,omitempty"`
}

// Add accumulates other into m.
func (m *Measures) Add(other Measures) {
	m.InputTokens += other.InputTokens
	m.OutputTokens += other.OutputTokens
	m.ReasoningTokens += other.ReasoningTokens
	m.CacheCreationTokens += other.CacheCreationTokens
	m.CacheReadTokens += other.CacheReadTokens
	m.CachedTokens += other.CachedTokens
	m.Cost = m.Cost.Add(other.Cost)
	m.ToolCalls += other.ToolCalls
	m.TerminalCommands += other.TerminalCommands
	m.FileSearches += other.FileSearches
	m.FileContentSearches += other.FileContentSearches
	m.FilesRead += other.FilesRead
	m.FilesAdded += other.FilesAdded
	m.FilesEdited += other.FilesEdited
	m.FilesDeleted += other.FilesDeleted
	m.LinesRead += other.LinesRead
	m.LinesAdded += other.LinesAdded
	m.LinesEdited += other.LinesEdited
	m.LinesDeleted += other.LinesDeleted
	m.BytesRead += other.BytesRead
	m.BytesAdded += other.BytesAdded
	m.BytesEdited += other.BytesEdited
	m.BytesDeleted += other.BytesDeleted
	m.TodosCreated += other.TodosCreated
	m.TodosCompleted += other.TodosCompleted
	m.TodosInProgress += other.TodosInProgress
	m.TodoWrites += other.TodoWrites
	m.TodoReads += other.TodoReads
	m.CodeLines += other.CodeLines
	m.DocsLines += other.DocsLines
	m.DataLines += other.DataLines
	m.MediaLines += other.MediaLines
	m.ConfigLines += other.ConfigLines
	m.OtherLines += other.OtherLines
}

// Sub removes other from m. Integer counters saturate at zero so a stale
// contribution can never drive a bucket negative; cost subtraction is exact
// decimal arithmetic.
func (m *Measures) Sub(other Measures) {
	m.InputTokens = satSub(m.InputTokens, other.InputTokens)
	m.OutputTokens = satSub(m.OutputTokens, other.OutputTokens)
	m.ReasoningTokens = satSub(m.ReasoningTokens, other.ReasoningTokens)
	m.CacheCreationTokens = satSub(m.CacheCreationTokens, other.CacheCreationTokens)
	m.CacheReadTokens = satSub(m.CacheReadTokens, other.CacheReadTokens)
	m.CachedTokens = satSub(m.CachedTokens, other.CachedTokens)
	m.Cost = m.Cost.Sub(other.Cost)
	m.ToolCalls = satSub(m.ToolCalls, other.ToolCalls)
	m.TerminalCommands = satSub(m.TerminalCommands, other.TerminalCommands)
	m.FileSearches = satSub(m.FileSearches, other.FileSearches)
	m.FileContentSearches = satSub(m.FileContentSearches, other.FileContentSearches)
	m.FilesRead = satSub(m.FilesRead, other.FilesRead)
	m.FilesAdded = satSub(m.FilesAdded, other.FilesAdded)
	m.FilesEdited = satSub(m.FilesEdited, other.FilesEdited)
	m.FilesDeleted = satSub(m.FilesDeleted, other.FilesDeleted)
	m.LinesRead = satSub(m.LinesRead, other.LinesRead)
	m.LinesAdded = satSub(m.LinesAdded, other.LinesAdded)
	m.LinesEdited = satSub(m.LinesEdited, other.LinesEdited)
	m.LinesDeleted = satSub(m.LinesDeleted, other.LinesDeleted)
	m.BytesRead = satSub(m.BytesRead, other.BytesRead)
	m.BytesAdded = satSub(m.BytesAdded, other.BytesAdded)
	m.BytesEdited = satSub(m.BytesEdited, other.BytesEdited)
	m.BytesDeleted = satSub(m.BytesDeleted, other.BytesDeleted)
	m.TodosCreated = satSub(m.TodosCreated, other.TodosCreated)
	m.TodosCompleted = satSub(m.TodosCompleted, other.TodosCompleted)
	m.TodosInProgress = satSub(m.TodosInProgress, other.TodosInProgress)
	m.TodoWrites = satSub(m.TodoWrites, other.TodoWrites)
	m.TodoReads = satSub(m.TodoReads, other.TodoReads)
	m.CodeLines = satSub(m.CodeLines, other.CodeLines)
	m.DocsLines = satSub(m.DocsLines, other.DocsLines)
	m.DataLines = satSub(m.DataLines, other.DataLines)
	m.MediaLines = satSub(m.MediaLines, other.MediaLines)
	m.ConfigLines = satSub(m.ConfigLines, other.ConfigLines)
	m.OtherLines = satSub(m.OtherLines, other.OtherLines)
}

// IsZero reports whether every measure is zero.
func (m *Measures) IsZero() bool {
	return m.InputTokens == 0 && m.OutputTokens == 0 && m.ReasoningTokens == 0 &&
		m.CacheCreationTokens == 0 && m.CacheReadTokens == 0 && m.CachedTokens == 0 &&
		m.Cost.IsZero() &&
		m.ToolCalls == 0 && m.TerminalCommands == 0 &&
		m.FileSearches == 0 && m.FileContentSearches == 0 &&
		m.FilesRead == 0 && m.FilesAdded == 0 && m.FilesEdited == 0 && m.FilesDeleted == 0 &&
		m.LinesRead == 0 && m.LinesAdded == 0 && m.LinesEdited == 0 && m.LinesDeleted == 0 &&
		m.BytesRead == 0 && m.BytesAdded == 0 && m.BytesEdited == 0 && m.BytesDeleted == 0 &&
		m.TodosCreated == 0 && m.TodosCompleted == 0 && m.TodosInProgress == 0 &&
		m.TodoWrites == 0 && m.TodoReads == 0 &&
		m.CodeLines == 0 && m.DocsLines == 0 && m.DataLines == 0 &&
		m.MediaLines == 0 && m.ConfigLines == 0 && m.OtherLines == 0
}

// TotalTokens returns input + output + reasoning + cache tokens.
func (m *Measures) TotalTokens() uint64 {
	return m.InputTokens + m.OutputTokens + m.ReasoningTokens +
		m.CacheCreationTokens + m.CacheReadTokens
}

func satSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
