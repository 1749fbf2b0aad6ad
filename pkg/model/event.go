package model

import "time"

// Event is one normalized record of logged activity. The same logical event
// parsed twice, even across runs or from a rewritten file, carries the same
// GlobalID.
type Event struct {
	// GlobalID is derived from the most stable identifiers the source format
	// offers: provider message+request IDs when present, else the
	// conversation identity plus the record UUID, else file path and byte
	// offset as a last resort.
	GlobalID string `json:"global_id"`

	Source         string    `json:"source"`
	Role           Role      `json:"role"`
	Model          string    `json:"model,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
	ProjectID      string    `json:"project_id,omitempty"`
	SessionName    string    `json:"session_name,omitempty"`
	Measures       Measures  `json:"measures"`

	// Fingerprints records the token shape of every raw row already merged
	// into this event, so appended rows reusing the identity can be folded
	// in later without replaying the whole file. Events built from a single
	// row leave it nil; FingerprintOf(Measures) is the implied sole entry.
	Fingerprints []TokenFingerprint `json:"fingerprints,omitempty"`
}

// TokenFingerprint is the token shape of one raw source row: input, output,
// cache creation, cache read, cached. Rows from providers that stream one
// logical message as several log records repeat the identity but differ in
// shape; the fingerprint tells a re-merge which rows it has already counted.
type TokenFingerprint [5]uint64

// FingerprintOf returns the token fingerprint of m.
func FingerprintOf(m Measures) TokenFingerprint {
	return TokenFingerprint{
		m.InputTokens,
		m.OutputTokens,
		m.CacheCreationTokens,
		m.CacheReadTokens,
		m.CachedTokens,
	}
}
