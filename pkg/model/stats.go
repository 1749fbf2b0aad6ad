package model

import "time"

// DailyStats is one date bucket of deduplicated corpus-wide totals.
type DailyStats struct {
	Date          string            `json:"date"`
	UserMessages  uint64            `json:"user_messages"`
	AIMessages    uint64            `json:"ai_messages"`
	Conversations uint64            `json:"conversations"`
	ModelCounts   map[string]uint64 `json:"model_counts,omitempty"`
	Measures      Measures          `json:"measures"`
}

// Clone returns a deep copy.
func (d *DailyStats) Clone() *DailyStats {
	out := *d
	if d.ModelCounts != nil {
		out.ModelCounts = make(map[string]uint64, len(d.ModelCounts))
		for k, v := range d.ModelCounts {
			out.ModelCounts[k] = v
		}
	}
	return &out
}

// SourceStats is one source tool's slice of the merged result.
type SourceStats struct {
	Tag           string                 `json:"tag"`
	DisplayName   string                 `json:"display_name,omitempty"`
	Daily         map[string]*DailyStats `json:"daily"`
	Conversations uint64                 `json:"conversations"`
}

// Snapshot is the merged, queryable aggregate for the whole corpus at a
// point in time. It is published atomically: readers observe either the
// pre-cycle or post-cycle snapshot, never a partial merge.
type Snapshot struct {
	Fingerprint HashValue               `json:"fingerprint"`
	CreatedAt   time.Time               `json:"created_at"`
	Sources     map[string]*SourceStats `json:"sources"`
}

// Totals folds every source's date buckets into one map keyed by date.
func (s *Snapshot) Totals() map[string]*DailyStats {
	out := make(map[string]*DailyStats)
	for _, src := range s.Sources {
		for date, day := range src.Daily {
			t, ok := out[date]
			if !ok {
				t = &DailyStats{Date: date, ModelCounts: make(map[string]uint64)}
				out[date] = t
			}
			t.UserMessages += day.UserMessages
			t.AIMessages += day.AIMessages
			t.Conversations += day.Conversations
			for m, n := range day.ModelCounts {
				t.ModelCounts[m] += n
			}
			t.Measures.Add(day.Measures)
		}
	}
	return out
}

// TotalMeasures sums every date bucket of every source.
func (s *Snapshot) TotalMeasures() Measures {
	var m Measures
	for _, src := range s.Sources {
		for _, day := range src.Daily {
			m.Add(day.Measures)
		}
	}
	return m
}
