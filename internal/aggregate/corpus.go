package aggregate

import (
	"sort"
	"time"

	"github.com/Piebald-AI/splitrail/internal/dedup"
	"github.com/Piebald-AI/splitrail/pkg/model"
)

// Corpus holds every live file record plus the deduplicated per-source
// date buckets derived from them. Buckets are maintained incrementally:
// adding or removing a record touches only the dates and identities that
// record contributes.
//
// Corpus is not safe for concurrent use. The engine confines it to its
// merge goroutine and publishes immutable snapshots for readers.
type Corpus struct {
	loc     *time.Location
	records map[string]*model.FileRecord
	claims  *dedup.Index
	sources map[string]*sourceAgg
}

type sourceAgg struct {
	daily         map[string]*model.DailyStats
	conversations uint64
}

// NewCorpus returns an empty corpus bucketing days in loc. A nil loc
// means the system zone.
func NewCorpus(loc *time.Location) *Corpus {
	if loc == nil {
		loc = time.Local
	}
	return &Corpus{
		loc:     loc,
		records: make(map[string]*model.FileRecord),
		claims:  dedup.NewIndex(),
		sources: make(map[string]*sourceAgg),
	}
}

// Upsert installs rec, replacing any record at the same path. Each of
// the record's event identities is claimed; identities this path comes
// to own are added to the buckets, displacing the previous owner's copy
// when the new path sorts lower.
func (c *Corpus) Upsert(rec *model.FileRecord) {
	if rec == nil {
		return
	}
	if _, ok := c.records[rec.Path]; ok {
		c.Remove(rec.Path)
	}
	c.records[rec.Path] = rec

	for i := range rec.Events {
		ev := &rec.Events[i]
		prev, next := c.claims.Claim(ev.GlobalID, rec.Path)
		if next != rec.Path {
			continue
		}
		if prev != "" {
			if old := c.records[prev]; old != nil {
				if oldEv := old.EventByID(ev.GlobalID); oldEv != nil {
					c.subOwned(oldEv)
				}
			}
		}
		c.addOwned(ev)
	}

	if rec.StartDate != "" {
		s := c.source(rec.Source)
		day := s.day(rec.StartDate)
		day.Conversations++
		s.conversations++
	}
}

// Remove withdraws the record at path. Identities it owned are
// subtracted from the buckets; where another file still claims one, that
// file's copy of the event is promoted in.
func (c *Corpus) Remove(path string) {
	rec := c.records[path]
	if rec == nil {
		return
	}
	delete(c.records, path)

	for i := range rec.Events {
		ev := &rec.Events[i]
		prev, next := c.claims.Release(ev.GlobalID, path)
		if prev != path {
			continue
		}
		c.subOwned(ev)
		if next == "" {
			continue
		}
		if heir := c.records[next]; heir != nil {
			if hev := heir.EventByID(ev.GlobalID); hev != nil {
				c.addOwned(hev)
			}
		}
	}

	if rec.StartDate != "" {
		if s := c.sources[rec.Source]; s != nil {
			if day := s.daily[rec.StartDate]; day != nil {
				if day.Conversations > 0 {
					day.Conversations--
				}
				s.prune(rec.StartDate)
			}
			if s.conversations > 0 {
				s.conversations--
			}
		}
	}
}

// Record returns the live record at path, or nil.
func (c *Corpus) Record(path string) *model.FileRecord {
	return c.records[path]
}

// Records returns every live record sorted by path.
func (c *Corpus) Records() []*model.FileRecord {
	out := make([]*model.FileRecord, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ByConversation returns the records carrying the given conversation
// identity, sorted by path.
func (c *Corpus) ByConversation(conversationID string) []*model.FileRecord {
	var out []*model.FileRecord
	for _, rec := range c.records {
		if rec.ConversationID == conversationID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Files returns the number of live records.
func (c *Corpus) Files() int {
	return len(c.records)
}

// Identities returns the number of distinct event identities claimed.
func (c *Corpus) Identities() int {
	return c.claims.Len()
}

// Owner returns the path owning the given event identity, or "".
func (c *Corpus) Owner(id string) string {
	return c.claims.Owner(id)
}

// BuildSnapshot assembles a deep-copied snapshot of every source's
// buckets. Each source's date range is made continuous from its first
// date through the later of its last date and today, so consumers can
// render uninterrupted runs without probing for holes.
func (c *Corpus) BuildSnapshot(fingerprint model.HashValue, now time.Time) *model.Snapshot {
	snap := &model.Snapshot{
		Fingerprint: fingerprint,
		CreatedAt:   now,
		Sources:     make(map[string]*model.SourceStats),
	}
	today := now.In(c.loc).Format(model.DateLayout)
	for tag, s := range c.sources {
		if len(s.daily) == 0 && s.conversations == 0 {
			continue
		}
		out := &model.SourceStats{
			Tag:           tag,
			Daily:         make(map[string]*model.DailyStats, len(s.daily)),
			Conversations: s.conversations,
		}
		first, last := "", ""
		for date, day := range s.daily {
			out.Daily[date] = day.Clone()
			if date == model.UnknownDate {
				continue
			}
			if first == "" || date < first {
				first = date
			}
			if date > last {
				last = date
			}
		}
		if first != "" {
			end := last
			if today > end {
				end = today
			}
			fillRange(out.Daily, first, end, c.loc)
		}
		snap.Sources[tag] = out
	}
	return snap
}

func fillRange(daily map[string]*model.DailyStats, first, last string, loc *time.Location) {
	t, err := time.ParseInLocation(model.DateLayout, first, loc)
	if err != nil {
		return
	}
	end, err := time.ParseInLocation(model.DateLayout, last, loc)
	if err != nil {
		return
	}
	for !t.After(end) {
		date := t.Format(model.DateLayout)
		if daily[date] == nil {
			daily[date] = &model.DailyStats{Date: date}
		}
		t = t.AddDate(0, 0, 1)
	}
}

func (c *Corpus) source(tag string) *sourceAgg {
	s := c.sources[tag]
	if s == nil {
		s = &sourceAgg{daily: make(map[string]*model.DailyStats)}
		c.sources[tag] = s
	}
	return s
}

func (s *sourceAgg) day(date string) *model.DailyStats {
	d := s.daily[date]
	if d == nil {
		d = &model.DailyStats{Date: date}
		s.daily[date] = d
	}
	return d
}

// prune drops a bucket once every count in it has returned to zero.
func (s *sourceAgg) prune(date string) {
	day := s.daily[date]
	if day == nil {
		return
	}
	if day.UserMessages == 0 && day.AIMessages == 0 && day.Conversations == 0 &&
		len(day.ModelCounts) == 0 && day.Measures.IsZero() {
		delete(s.daily, date)
	}
}

func (c *Corpus) addOwned(ev *model.Event) {
	s := c.source(ev.Source)
	day := s.day(dateKey(ev.Timestamp, c.loc))
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

func (c *Corpus) subOwned(ev *model.Event) {
	s := c.sources[ev.Source]
	if s == nil {
		return
	}
	date := dateKey(ev.Timestamp, c.loc)
	day := s.daily[date]
	if day == nil {
		return
	}
	if ev.Model != "" {
		if day.AIMessages > 0 {
			day.AIMessages--
		}
		if n := day.ModelCounts[ev.Model]; n <= 1 {
			delete(day.ModelCounts, ev.Model)
		} else {
			day.ModelCounts[ev.Model] = n - 1
		}
	} else {
		if day.UserMessages > 0 {
			day.UserMessages--
		}
	}
	day.Measures.Sub(countedMeasures(ev))
	s.prune(date)
}
