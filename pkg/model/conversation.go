package model

import "time"

// ConversationEvents is one conversation's deduplicated events: only
// rows admitted by their owning file appear, so summing a
// conversation's measures never double-counts overlapping files.
type ConversationEvents struct {
	ConversationID string   `json:"conversation_id"`
	Source         string   `json:"source"`
	SessionName    string   `json:"session_name,omitempty"`
	Paths          []string `json:"paths,omitempty"`
	Events         []Event  `json:"events"`
}

// ConversationSummary is the list view of one conversation.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	Source         string    `json:"source"`
	SessionName    string    `json:"session_name,omitempty"`
	StartDate      string    `json:"start_date,omitempty"`
	LastActivity   time.Time `json:"last_activity"`
	Events         uint64    `json:"events"`
	Measures       Measures  `json:"measures"`
}
