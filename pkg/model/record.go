package model

// FileIdentity captures the cheap identity of a source file: size plus
// modification time in unix nanoseconds. Content is never hashed on the
// classification path. MTime serializes as a string: nanosecond values
// exceed what a JSON number survives intact.
type FileIdentity struct {
	Size  int64 `json:"size"`
	MTime int64 `json:"mtime,string"`
}

// Equal reports whether both size and mtime match.
func (id FileIdentity) Equal(other FileIdentity) bool {
	return id.Size == other.Size && id.MTime == other.MTime
}

// SameOrAppended reports whether other could be this same file either
// untouched or grown by appended bytes.
func (id FileIdentity) SameOrAppended(other FileIdentity) bool {
	return id.Equal(other) || other.Size > id.Size
}

// Cursor is a byte offset into an append-only source file. It never points
// past the end of the last fully terminated record.
type Cursor int64

// DayContribution is one file's share of a single date bucket, before
// cross-file deduplication.
type DayContribution struct {
	UserMessages uint64            `json:"user_messages,omitempty"`
	AIMessages   uint64            `json:"ai_messages,omitempty"`
	ModelCounts  map[string]uint64 `json:"model_counts,omitempty"`
	Measures     Measures          `json:"measures"`
}

// DecodedFile is a decoder's raw yield for one source file: identity,
// cursor, and events in source order, before identity merging and day
// bucketing. For an appended file the events are the previous record's
// merged events followed by the newly decoded rows.
type DecodedFile struct {
	Path           string
	Source         string
	ConversationID string
	SessionName    string
	Identity       FileIdentity
	Cursor         Cursor
	DecoderVersion int
	Events         []Event
}

// FileRecord is the cache's view of one decoded source file. Records are
// immutable once built; a change to the underlying file produces a
// replacement record.
type FileRecord struct {
	Path           string       `json:"path"`
	Source         string       `json:"source"`
	Identity       FileIdentity `json:"identity"`
	Cursor         Cursor       `json:"cursor"`
	DecoderVersion int          `json:"decoder_version"`

	ConversationID string `json:"conversation_id"`
	SessionName    string `json:"session_name,omitempty"`
	// StartDate is the YYYY-MM-DD bucket of the file's earliest event; the
	// conversation counts on this date.
	StartDate string `json:"start_date,omitempty"`

	// Days holds the file-local per-day aggregate, kept in the index so
	// inspection tools can summarize without touching event payloads.
	Days map[string]*DayContribution `json:"days,omitempty"`

	// GlobalIDs lists the distinct event identities this file contributes,
	// in source order. Events holds the merged event per identity, same
	// order.
	GlobalIDs []string `json:"global_ids,omitempty"`
	Events    []Event  `json:"events,omitempty"`
}

// EventByID returns the file's merged event carrying the given identity,
// or nil.
func (r *FileRecord) EventByID(id string) *Event {
	for i := range r.Events {
		if r.Events[i].GlobalID == id {
			return &r.Events[i]
		}
	}
	return nil
}
