// Package aggregate turns decoded events into cache records and folds
// file contributions into deduplicated corpus-wide date buckets.
package aggregate

import (
	"time"

	"github.com/Piebald-AI/splitrail/internal/pricing"
	"github.com/Piebald-AI/splitrail/pkg/model"
)

// Builder assembles immutable FileRecords from decoder output: events
// merged by identity, stamped with file context, and folded into
// per-day contributions in the builder's time zone.
type Builder struct {
	loc *time.Location
}

// NewBuilder returns a Builder bucketing days in loc. A nil loc means
// the system zone.
func NewBuilder(loc *time.Location) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{loc: loc}
}

// BuildRecord merges the decoded file's events and derives the
// record's day contributions, start date, and identity list.
func (b *Builder) BuildRecord(in model.DecodedFile) *model.FileRecord {
	events := make([]model.Event, len(in.Events))
	copy(events, in.Events)
	for i := range events {
		events[i].Source = in.Source
		events[i].ConversationID = in.ConversationID
		events[i].SessionName = in.SessionName
	}
	merged := mergeEvents(events)

	ids := make([]string, len(merged))
	for i := range merged {
		ids[i] = merged[i].GlobalID
	}

	rec := &model.FileRecord{
		Path:           in.Path,
		Source:         in.Source,
		Identity:       in.Identity,
		Cursor:         in.Cursor,
		DecoderVersion: in.DecoderVersion,
		ConversationID: in.ConversationID,
		SessionName:    in.SessionName,
		Days:           b.days(merged),
		GlobalIDs:      ids,
		Events:         merged,
	}
	for date := range rec.Days {
		if rec.StartDate == "" || date < rec.StartDate {
			rec.StartDate = date
		}
	}
	return rec
}

// dateKey buckets a timestamp into its YYYY-MM-DD key in loc.
func dateKey(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return model.UnknownDate
	}
	return t.In(loc).Format(model.DateLayout)
}

// days folds merged events into per-day contributions. Rows with a
// model are AI activity and contribute every measure; rows without one
// are the user's side of the conversation and contribute only their
// todo activity, since their token fields would double-count the
// assistant's usage.
func (b *Builder) days(events []model.Event) map[string]*model.DayContribution {
	if len(events) == 0 {
		return nil
	}
	days := make(map[string]*model.DayContribution)
	for i := range events {
		ev := &events[i]
		date := dateKey(ev.Timestamp, b.loc)
		day := days[date]
		if day == nil {
			day = &model.DayContribution{}
			days[date] = day
		}
		if ev.Model != "" {
			day.AIMessages++
			if day.ModelCounts == nil {
				day.ModelCounts = make(map[string]uint64)
			}
			day.ModelCounts[ev.Model]++
		} else {
			day.UserMessages++
		}
		day.Measures.Add(countedMeasures(ev))
	}
	return days
}

// countedMeasures returns the slice of an event's measures that counts
// toward date buckets: everything for AI rows, todo activity only for
// user rows.
func countedMeasures(ev *model.Event) model.Measures {
	if ev.Model != "" {
		return ev.Measures
	}
	return model.Measures{
		TodosCreated:    ev.Measures.TodosCreated,
		TodosCompleted:  ev.Measures.TodosCompleted,
		TodosInProgress: ev.Measures.TodosInProgress,
		TodoWrites:      ev.Measures.TodoWrites,
		TodoReads:       ev.Measures.TodoReads,
	}
}

// mergeEvents folds rows sharing a GlobalID into one event per identity,
// keeping first-occurrence order. Providers that stream one logical
// message as several log rows repeat the identity: a row whose token
// shape was already merged is a re-report and its counters take the
// max, while a new shape is an additional chunk whose tokens and
// counters add.
func mergeEvents(events []model.Event) []model.Event {
	merged := make([]model.Event, 0, len(events))
	index := make(map[string]int, len(events))
	for i := range events {
		ev := events[i]
		at, ok := index[ev.GlobalID]
		if !ok {
			if ev.Fingerprints == nil {
				ev.Fingerprints = []model.TokenFingerprint{model.FingerprintOf(ev.Measures)}
			} else {
				ev.Fingerprints = append([]model.TokenFingerprint(nil), ev.Fingerprints...)
			}
			index[ev.GlobalID] = len(merged)
			merged = append(merged, ev)
			continue
		}
		mergeInto(&merged[at], &ev)
	}
	return merged
}

func mergeInto(dst, src *model.Event) {
	fp := model.FingerprintOf(src.Measures)
	for _, seen := range dst.Fingerprints {
		if seen == fp {
			maxCounters(&dst.Measures, &src.Measures)
			return
		}
	}
	dst.Fingerprints = append(dst.Fingerprints, fp)

	d, s := &dst.Measures, &src.Measures
	d.InputTokens += s.InputTokens
	d.OutputTokens += s.OutputTokens
	d.ReasoningTokens += s.ReasoningTokens
	d.CacheCreationTokens += s.CacheCreationTokens
	d.CacheReadTokens += s.CacheReadTokens
	d.CachedTokens += s.CachedTokens
	addCounters(d, s)
	if dst.Model != "" {
		d.Cost = pricing.TotalCost(dst.Model,
			d.InputTokens, d.OutputTokens, d.CacheCreationTokens, d.CacheReadTokens)
	}
}

// The activity counters merged across split rows.
func addCounters(d, s *model.Measures) {
	d.ToolCalls += s.ToolCalls
	d.TerminalCommands += s.TerminalCommands
	d.FileSearches += s.FileSearches
	d.FileContentSearches += s.FileContentSearches
	d.FilesRead += s.FilesRead
	d.FilesAdded += s.FilesAdded
	d.FilesEdited += s.FilesEdited
	d.TodosCreated += s.TodosCreated
	d.TodosCompleted += s.TodosCompleted
	d.TodosInProgress += s.TodosInProgress
	d.TodoWrites += s.TodoWrites
	d.TodoReads += s.TodoReads
}

func maxCounters(d, s *model.Measures) {
	d.ToolCalls = max(d.ToolCalls, s.ToolCalls)
	d.TerminalCommands = max(d.TerminalCommands, s.TerminalCommands)
	d.FileSearches = max(d.FileSearches, s.FileSearches)
	d.FileContentSearches = max(d.FileContentSearches, s.FileContentSearches)
	d.FilesRead = max(d.FilesRead, s.FilesRead)
	d.FilesAdded = max(d.FilesAdded, s.FilesAdded)
	d.FilesEdited = max(d.FilesEdited, s.FilesEdited)
	d.TodosCreated = max(d.TodosCreated, s.TodosCreated)
	d.TodosCompleted = max(d.TodosCompleted, s.TodosCompleted)
	d.TodosInProgress = max(d.TodosInProgress, s.TodosInProgress)
	d.TodoWrites = max(d.TodoWrites, s.TodoWrites)
	d.TodoReads = max(d.TodoReads, s.TodoReads)
}
