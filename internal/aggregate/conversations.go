package aggregate

import (
	"sort"

	"github.com/Piebald-AI/splitrail/pkg/model"
)

// ConversationEvents returns every conversation's owner-admitted events
// grouped by source tag. Files of one conversation can overlap; only
// the owning file's copy of each identity is included, so a group's
// measures sum without double counting. Events are ordered by
// timestamp with identity as the tiebreak, conversations by id.
func (c *Corpus) ConversationEvents() map[string][]*model.ConversationEvents {
	groups := make(map[string]*model.ConversationEvents)
	for _, rec := range c.Records() {
		key := rec.Source + "\x00" + rec.ConversationID
		g := groups[key]
		if g == nil {
			g = &model.ConversationEvents{
				ConversationID: rec.ConversationID,
				Source:         rec.Source,
			}
			groups[key] = g
		}
		if g.SessionName == "" {
			g.SessionName = rec.SessionName
		}
		g.Paths = append(g.Paths, rec.Path)
		for i := range rec.Events {
			ev := rec.Events[i]
			if c.claims.Owner(ev.GlobalID) != rec.Path {
				continue
			}
			g.Events = append(g.Events, ev)
		}
	}

	out := make(map[string][]*model.ConversationEvents)
	for _, g := range groups {
		sort.Slice(g.Events, func(i, j int) bool {
			a, b := &g.Events[i], &g.Events[j]
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.Before(b.Timestamp)
			}
			return a.GlobalID < b.GlobalID
		})
		out[g.Source] = append(out[g.Source], g)
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool {
			return list[i].ConversationID < list[j].ConversationID
		})
	}
	return out
}

// Conversation returns one conversation's owner-admitted events, or
// nil if no live record carries the id.
func (c *Corpus) Conversation(conversationID string) *model.ConversationEvents {
	for _, list := range c.ConversationEvents() {
		for _, g := range list {
			if g.ConversationID == conversationID {
				return g
			}
		}
	}
	return nil
}

// Conversations returns the list view of every conversation, most
// recent activity first.
func (c *Corpus) Conversations() []*model.ConversationSummary {
	var out []*model.ConversationSummary
	for _, list := range c.ConversationEvents() {
		for _, g := range list {
			s := &model.ConversationSummary{
				ConversationID: g.ConversationID,
				Source:         g.Source,
				SessionName:    g.SessionName,
				Events:         uint64(len(g.Events)),
			}
			for i := range g.Events {
				ev := &g.Events[i]
				s.Measures.Add(countedMeasures(ev))
				if ev.Timestamp.After(s.LastActivity) {
					s.LastActivity = ev.Timestamp
				}
				date := dateKey(ev.Timestamp, c.loc)
				if date != model.UnknownDate && (s.StartDate == "" || date < s.StartDate) {
					s.StartDate = date
				}
			}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.After(b.LastActivity)
		}
		return a.ConversationID < b.ConversationID
	})
	return out
}
