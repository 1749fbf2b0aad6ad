// Package engine coordinates the full pipeline: discovery,
// classification, parallel decode, deduplicated aggregation, snapshot
// publication, and the scan journal.
//
// Readers always see the most recently published snapshot; a cycle in
// flight never blocks them. Decode work fans out across a bounded
// worker pool, but every mutation of the merge state happens on the
// goroutine running the cycle, serialized by the engine's mutex, so the
// corpus needs no internal locking.
package engine

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Piebald-AI/splitrail/internal/aggregate"
	"github.com/Piebald-AI/splitrail/internal/cachestore"
	"github.com/Piebald-AI/splitrail/internal/decoder"
	"github.com/Piebald-AI/splitrail/internal/fingerprint"
	"github.com/Piebald-AI/splitrail/internal/journal"
	"github.com/Piebald-AI/splitrail/internal/snapshot"
	"github.com/Piebald-AI/splitrail/internal/watch"
	"github.com/Piebald-AI/splitrail/pkg/config"
	"github.com/Piebald-AI/splitrail/pkg/errclass"
	"github.com/Piebald-AI/splitrail/pkg/logging"
	"github.com/Piebald-AI/splitrail/pkg/model"
	"github.com/Piebald-AI/splitrail/pkg/progress"
	"github.com/Piebald-AI/splitrail/pkg/statedir"
)

// Engine owns the cache store, the dedup-aggregating corpus, the
// snapshot cache, and the scan journal.
type Engine struct {
	cfg   *config.Config
	store *cachestore.Store
	snaps *snapshot.Cache
	journ *journal.Writer
	build *aggregate.Builder

	published atomic.Pointer[model.Snapshot]

	// mu serializes cycles and guards the corpus.
	mu       sync.Mutex
	corpus   *aggregate.Corpus
	hydrated bool

	// markMu guards manual dirty marks so marking never waits out a
	// running cycle.
	markMu   sync.Mutex
	pending  map[string]struct{}
	forceAll bool

	progressCb progress.Callback
}

// Open loads persisted state and ensures a snapshot is published. When
// the stored snapshot's fingerprint matches the discovered corpus it is
// served as-is without touching a single source file; otherwise one
// reconcile cycle runs before Open returns.
func Open(ctx context.Context, cfg *config.Config) (*Engine, error) {
	cacheDir, err := statedir.CacheDir()
	if err != nil {
		return nil, err
	}
	snapsDir, err := statedir.SnapshotsDir()
	if err != nil {
		return nil, err
	}
	journalPath, err := statedir.JournalPath()
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()
	e := &Engine{
		cfg:     cfg,
		store:   cachestore.Open(cacheDir),
		snaps:   snapshot.NewCache(snapsDir),
		journ:   journal.NewWriter(journalPath),
		build:   aggregate.NewBuilder(loc),
		corpus:  aggregate.NewCorpus(loc),
		pending: make(map[string]struct{}),
	}
	if err := e.store.Load(); err != nil {
		if !errors.Is(err, errclass.ErrIndexCorrupt) && !errors.Is(err, errclass.ErrIndexVersion) {
			return nil, err
		}
		logging.Warn("cache index unusable, rescanning source files", map[string]any{"error": err.Error()})
	}

	fp := fingerprint.Corpus(e.discover())
	snap, err := e.snaps.LoadSnapshot(fp)
	if err == nil && snap != nil {
		// Nothing changed since the last publish. The corpus hydrates
		// lazily when a later cycle or detail query needs it.
		e.published.Store(snap)
		return e, nil
	}
	if err != nil && !errors.Is(err, errclass.ErrSnapshotStale) {
		logging.Warn("snapshot cache unusable, rebuilding", map[string]any{"error": err.Error()})
	}

	if err := e.runCycle(ctx, journal.TriggerStartup, nil, false); err != nil {
		return nil, err
	}
	return e, nil
}

// Snapshot returns the most recently published snapshot. It never
// blocks on a cycle in flight.
func (e *Engine) Snapshot() *model.Snapshot {
	return e.published.Load()
}

// Refresh runs one full discovery and reconcile cycle.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.runCycle(ctx, journal.TriggerManual, nil, false)
}

// Invalidate marks path dirty. The next cycle re-decodes it even if its
// identity looks unchanged.
func (e *Engine) Invalidate(path string) {
	e.markMu.Lock()
	e.pending[path] = struct{}{}
	e.markMu.Unlock()
}

// InvalidateAll marks the whole corpus dirty; the next cycle fully
// re-decodes every discovered file.
func (e *Engine) InvalidateAll() {
	e.markMu.Lock()
	e.forceAll = true
	e.markMu.Unlock()
}

// SetProgress installs a callback reporting decode progress during
// cycles. Set it before triggering a cycle; nil silences reporting.
func (e *Engine) SetProgress(cb progress.Callback) {
	e.progressCb = cb
}

// Events returns one conversation's deduplicated events. The published
// snapshot's cold tier is tried first; when it is missing or stale the
// in-memory corpus answers. Returns nil when the conversation is
// unknown.
func (e *Engine) Events(conversationID string) *model.ConversationEvents {
	if snap := e.published.Load(); snap != nil {
		tags := make([]string, 0, len(snap.Sources))
		for tag := range snap.Sources {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			convs, _, err := e.snaps.LoadCold(tag, snap.Fingerprint)
			if err != nil || convs == nil {
				continue
			}
			for _, conv := range convs {
				if conv.ConversationID == conversationID {
					return conv
				}
			}
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hydrateLocked()
	return e.corpus.Conversation(conversationID)
}

// Conversations lists every conversation in the corpus, most recent
// first.
func (e *Engine) Conversations() []*model.ConversationSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hydrateLocked()
	return e.corpus.Conversations()
}

// Run consumes invalidations until ctx ends. A burst is folded into a
// single cycle, and anything arriving while a cycle runs queues for the
// next one; cycles never interleave.
func (e *Engine) Run(ctx context.Context, invalidations <-chan watch.Invalidation) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case inv, ok := <-invalidations:
			if !ok {
				return nil
			}
			dirty, force := collect(inv, invalidations)
			trigger := journal.TriggerWatch
			if force {
				trigger = journal.TriggerRescan
			}
			if err := e.runCycle(ctx, trigger, dirty, force); err != nil {
				return err
			}
		}
	}
}

// collect folds the queued burst behind first into one batch.
func collect(first watch.Invalidation, ch <-chan watch.Invalidation) (map[string]struct{}, bool) {
	dirty := make(map[string]struct{})
	force := false
	add := func(inv watch.Invalidation) {
		if inv.Kind == watch.KindRescan {
			force = true
			return
		}
		if inv.Path != "" {
			dirty[inv.Path] = struct{}{}
		}
	}
	add(first)
	for {
		select {
		case inv, ok := <-ch:
			if !ok {
				return dirty, force
			}
			add(inv)
		default:
			return dirty, force
		}
	}
}

type decodeJob struct {
	path   string
	change model.Change
	prev   *model.FileRecord
	cur    model.FileIdentity
	dec    decoder.Decoder
}

type decodeResult struct {
	path string
	rec  *model.FileRecord
	err  error
}

func (e *Engine) runCycle(ctx context.Context, trigger journal.Trigger, dirty map[string]struct{}, forceAll bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	started := time.Now()
	marks, force := e.takeMarks()
	if force {
		forceAll = true
	}
	if len(marks) > 0 {
		if dirty == nil {
			dirty = marks
		} else {
			for path := range marks {
				dirty[path] = struct{}{}
			}
		}
	}

	e.hydrateLocked()
	ids := e.discover()

	paths := make(map[string]struct{}, len(ids))
	for path := range ids {
		paths[path] = struct{}{}
	}
	for _, rec := range e.corpus.Records() {
		paths[rec.Path] = struct{}{}
	}

	var jobs []decodeJob
	var removed []string
	unchanged := 0
	// okIDs feeds the fingerprint: only identities whose contribution is
	// current after this cycle. A failed decode stays out, so the next
	// startup cannot mistake the published snapshot for a clean view of
	// that file.
	okIDs := make(map[string]model.FileIdentity, len(ids))

	for path := range paths {
		prev := e.corpus.Record(path)
		id, onDisk := ids[path]
		if !onDisk {
			if prev != nil {
				removed = append(removed, path)
			}
			continue
		}
		d, ok := decoder.ForPath(path)
		if !ok {
			continue
		}
		ch := fingerprint.Classify(prev, &id, d.Version())
		if ch == model.ChangeUnchanged {
			if _, isDirty := dirty[path]; isDirty || forceAll {
				ch = model.ChangeRewritten
			}
		}
		if ch == model.ChangeUnchanged {
			unchanged++
			okIDs[path] = id
			continue
		}
		jobs = append(jobs, decodeJob{path: path, change: ch, prev: prev, cur: id, dec: d})
	}

	results := e.decodeAll(ctx, jobs)
	if err := ctx.Err(); err != nil {
		// Nothing was merged; the prior snapshot stands untouched.
		return err
	}

	decoded := 0
	for _, res := range results {
		if res.err != nil {
			logging.Warn("decode failed, keeping prior contribution", map[string]any{"path": res.path, "error": res.err.Error()})
			continue
		}
		e.corpus.Upsert(res.rec)
		e.store.Put(res.rec)
		okIDs[res.path] = res.rec.Identity
		decoded++
	}
	for _, path := range removed {
		e.corpus.Remove(path)
		e.store.Remove(path)
	}

	fp := fingerprint.Corpus(okIDs)
	snap := e.corpus.BuildSnapshot(fp, time.Now())
	for tag, src := range snap.Sources {
		if d, err := decoder.Get(tag); err == nil {
			src.DisplayName = d.DisplayName()
		}
	}
	e.published.Store(snap)

	if err := e.snaps.Store(snap, e.corpus.ConversationEvents()); err != nil {
		logging.Warn("snapshot store failed", map[string]any{"error": err.Error()})
	}
	if err := e.saveStoreLocked(); err != nil {
		logging.Warn("cache store save failed", map[string]any{"error": err.Error()})
	}
	entry := &journal.Record{
		Time:        started.UTC(),
		Trigger:     trigger,
		Decoded:     decoded,
		Unchanged:   unchanged,
		Removed:     len(removed),
		Events:      uint64(e.corpus.Identities()),
		DurationMS:  time.Since(started).Milliseconds(),
		Fingerprint: fp,
	}
	if err := e.journ.Append(entry); err != nil {
		logging.Warn("journal append failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// decodeAll fans jobs out over the worker pool and gathers every
// result. On cancellation the remaining jobs are abandoned but started
// ones drain, so no goroutine leaks.
func (e *Engine) decodeAll(ctx context.Context, jobs []decodeJob) []decodeResult {
	if len(jobs) == 0 {
		return nil
	}
	workers := e.cfg.Engine.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan decodeJob)
	resCh := make(chan decodeResult)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				resCh <- e.decode(job)
			}
		}()
	}
	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(resCh)
	}()

	prog := progress.New("decode", len(jobs), e.progressCb)
	results := make([]decodeResult, 0, len(jobs))
	for res := range resCh {
		results = append(results, res)
		prog.Increment(filepath.Base(res.path))
	}
	return results
}

// decode runs one job. Tail decoding is an optimization only; any tail
// failure falls back to a full decode.
func (e *Engine) decode(job decodeJob) decodeResult {
	if job.change == model.ChangeAppended && job.prev != nil {
		if td, ok := job.dec.(decoder.TailDecoder); ok {
			if df, err := td.DecodeTail(job.path, job.prev, job.cur); err == nil {
				return decodeResult{path: job.path, rec: e.build.BuildRecord(*df)}
			}
		}
	}
	df, err := job.dec.DecodeFull(job.path)
	if err != nil {
		return decodeResult{path: job.path, err: err}
	}
	return decodeResult{path: job.path, rec: e.build.BuildRecord(*df)}
}

// discover stats every enabled decoder's files. A failing decoder or an
// unreadable path contributes nothing this cycle.
func (e *Engine) discover() map[string]model.FileIdentity {
	ids := make(map[string]model.FileIdentity)
	for _, d := range decoder.All() {
		if !e.cfg.DecoderEnabled(d.Tag()) {
			continue
		}
		paths, err := d.Discover()
		if err != nil {
			logging.Warn("discovery failed", map[string]any{"decoder": d.Tag(), "error": err.Error()})
			continue
		}
		for _, path := range paths {
			id, err := decoder.StatIdentity(path)
			if err != nil {
				continue
			}
			ids[path] = id
		}
	}
	return ids
}

// hydrateLocked loads every cached record into the corpus, once, so
// dedup claims span the whole corpus before any merge. An unreadable
// record voids the store: correctness over a warm start.
func (e *Engine) hydrateLocked() {
	if e.hydrated {
		return
	}
	records, err := e.store.All()
	if err != nil {
		logging.Warn("cache records unusable, rescanning source files", map[string]any{"error": err.Error()})
		if err := e.store.Destroy(); err != nil {
			logging.Warn("cache destroy failed", map[string]any{"error": err.Error()})
		}
		e.hydrated = true
		return
	}
	for _, rec := range records {
		e.corpus.Upsert(rec)
	}
	e.hydrated = true
}

func (e *Engine) takeMarks() (map[string]struct{}, bool) {
	e.markMu.Lock()
	defer e.markMu.Unlock()
	marks := e.pending
	e.pending = make(map[string]struct{})
	force := e.forceAll
	e.forceAll = false
	return marks, force
}

// saveStoreLocked persists the store. A generation conflict means a
// foreign writer got there first; the store is reloaded and the
// in-memory state reapplied on top rather than merged against it.
func (e *Engine) saveStoreLocked() error {
	err := e.store.Save()
	if !errors.Is(err, errclass.ErrGenerationConflict) {
		return err
	}
	logging.Warn("cache store changed by another process, resyncing")
	if err := e.store.Load(); err != nil {
		if !errors.Is(err, errclass.ErrIndexCorrupt) && !errors.Is(err, errclass.ErrIndexVersion) {
			return err
		}
	}
	for _, path := range e.store.Paths() {
		if e.corpus.Record(path) == nil {
			e.store.Remove(path)
		}
	}
	for _, rec := range e.corpus.Records() {
		e.store.Put(rec)
	}
	return e.store.Save()
}
