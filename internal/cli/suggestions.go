package cli

import (
	"fmt"
	"strings"

	"github.com/Piebald-AI/splitrail/internal/engine"
	"github.com/Piebald-AI/splitrail/pkg/color"
	"github.com/Piebald-AI/splitrail/pkg/model"
)

// resolveConversation expands query to a full conversation ID: an exact
// match wins, otherwise a unique prefix. Ambiguous or unknown queries
// return "".
func resolveConversation(eng *engine.Engine, query string) string {
	if query == "" {
		return ""
	}
	var match string
	for _, s := range eng.Conversations() {
		if s.ConversationID == query {
			return query
		}
		if strings.HasPrefix(s.ConversationID, query) {
			if match != "" {
				return ""
			}
			match = s.ConversationID
		}
	}
	return match
}

// suggestConversations provides helpful suggestions when a conversation
// is not found. Returns a formatted suggestion string.
func suggestConversations(eng *engine.Engine, query string) string {
	convs := eng.Conversations()

	// Try ID prefixes first, then session name substrings.
	var matches []string
	for _, s := range convs {
		if strings.HasPrefix(s.ConversationID, query) {
			matches = append(matches, describeConversation(s))
		}
	}
	if len(matches) == 0 {
		lowered := strings.ToLower(query)
		for _, s := range convs {
			if s.SessionName != "" && strings.Contains(strings.ToLower(s.SessionName), lowered) {
				matches = append(matches, describeConversation(s))
			}
		}
	}
	if len(matches) > 3 {
		matches = matches[:3]
	}

	if len(matches) > 0 {
		hint := "Did you mean"
		if len(matches) > 1 {
			hint += " one of"
		}
		return fmt.Sprintf("%s: %s?", hint, strings.Join(matches, ", "))
	}

	return fmt.Sprintf("Run %s to see available conversations.", color.Code("splitrail conversations"))
}

func describeConversation(s *model.ConversationSummary) string {
	out := color.Highlight(shortID(s.ConversationID))
	if s.SessionName != "" {
		out += fmt.Sprintf(" (%s)", color.Dim(truncate(s.SessionName, 30)))
	}
	return out
}

// formatConversationNotFoundError formats a conversation not found
// error with suggestions.
func formatConversationNotFoundError(eng *engine.Engine, query string) string {
	var sb strings.Builder

	sb.WriteString(color.Error(fmt.Sprintf("conversation '%s' not found", query)))
	sb.WriteString("\n")

	suggestion := suggestConversations(eng, query)
	sb.WriteString(color.Dim("  " + suggestion))

	return sb.String()
}
