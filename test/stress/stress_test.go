// Package stress provides large-scale stress tests for splitrail.
// These tests are designed to find performance limits and edge cases with:
// - 2k+ session files
// - 50k-row sessions
// - 200+ incremental cycles
//
// Run with: go test -v -timeout=30m ./test/stress/...
package stress

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Piebald-AI/splitrail/internal/engine"
	"github.com/Piebald-AI/splitrail/internal/journal"
	"github.com/Piebald-AI/splitrail/pkg/config"
	"github.com/Piebald-AI/splitrail/pkg/statedir"

	_ "github.com/Piebald-AI/splitrail/internal/decoder/claudecode"
)

// TestStress_ManySessionFiles measures a cold scan over 2,000 session
// files spread across 500 projects, then the warm reopen that should
// serve the stored snapshot without touching any of them.
func TestStress_ManySessionFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	projects := setStressHome(t)
	ctx := context.Background()

	fileCount := 2000
	rowsPerFile := 10
	t.Logf("Creating %d session files...", fileCount)
	start := time.Now()
	writeProjectTree(t, projects, 500, 4, rowsPerFile)
	t.Logf("Created %d files in %v", fileCount, time.Since(start))

	t.Log("Cold scan...")
	start = time.Now()
	eng, err := engine.Open(ctx, config.Default())
	if err != nil {
		t.Fatalf("cold open: %v", err)
	}
	elapsed := time.Since(start)
	t.Logf("Cold scan in %v (%.2f files/sec)", elapsed, float64(fileCount)/elapsed.Seconds())

	want := uint64(fileCount * rowsPerFile * 100)
	if got := eng.Snapshot().TotalMeasures().InputTokens; got != want {
		t.Fatalf("input tokens = %d, want %d", got, want)
	}

	t.Log("Warm reopen...")
	start = time.Now()
	warm, err := engine.Open(ctx, config.Default())
	if err != nil {
		t.Fatalf("warm open: %v", err)
	}
	warmElapsed := time.Since(start)
	t.Logf("Warm reopen in %v (%.1fx faster)", warmElapsed, elapsed.Seconds()/warmElapsed.Seconds())

	if got := warm.Snapshot().TotalMeasures().InputTokens; got != want {
		t.Fatalf("warm input tokens = %d, want %d", got, want)
	}
}

// TestStress_LargeSession decodes one 50,000-row session file.
func TestStress_LargeSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	projects := setStressHome(t)
	ctx := context.Background()

	rows := 50000
	dir := filepath.Join(projects, "big")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	t.Logf("Writing %d-row session...", rows)
	start := time.Now()
	path := writeLargeSession(t, dir, "big.jsonl", rows)
	info, _ := os.Stat(path)
	t.Logf("Wrote %.1f MB in %v", float64(info.Size())/(1024*1024), time.Since(start))

	t.Log("Decoding...")
	start = time.Now()
	eng, err := engine.Open(ctx, config.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	elapsed := time.Since(start)
	t.Logf("Decoded in %v (%.0f rows/sec)", elapsed, float64(rows)/elapsed.Seconds())

	convs := eng.Conversations()
	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
	if convs[0].Events != uint64(rows) {
		t.Fatalf("events = %d, want %d", convs[0].Events, rows)
	}

	t.Log("Loading event detail...")
	start = time.Now()
	conv := eng.Events(convs[0].ConversationID)
	if conv == nil || len(conv.Events) != rows {
		t.Fatalf("event detail incomplete")
	}
	t.Logf("Loaded %d events in %v", rows, time.Since(start))
}

// TestStress_IncrementalAppends runs 200 append-then-refresh cycles
// against one session, then checks a full rescan lands on the same
// numbers as the incremental path.
func TestStress_IncrementalAppends(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	projects := setStressHome(t)
	ctx := context.Background()

	dir := filepath.Join(projects, "incr")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := writeLargeSession(t, dir, "incr.jsonl", 100)

	eng, err := engine.Open(ctx, config.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	cycles := 200
	rowsPerAppend := 5
	t.Logf("Running %d append+refresh cycles...", cycles)
	start := time.Now()
	for i := 0; i < cycles; i++ {
		appendRows(t, path, 100+i*rowsPerAppend, rowsPerAppend)
		if err := eng.Refresh(ctx); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
		if i > 0 && i%50 == 0 {
			t.Logf("  %d/%d cycles...", i, cycles)
		}
	}
	elapsed := time.Since(start)
	t.Logf("%d cycles in %v (%.1f ms/cycle)", cycles, elapsed, elapsed.Seconds()*1000/float64(cycles))

	totalRows := 100 + cycles*rowsPerAppend
	want := uint64(totalRows * 100)
	incremental := eng.Snapshot().TotalMeasures().InputTokens
	if incremental != want {
		t.Fatalf("incremental input tokens = %d, want %d", incremental, want)
	}

	t.Log("Full rescan for comparison...")
	eng.InvalidateAll()
	start = time.Now()
	if err := eng.Refresh(ctx); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	t.Logf("Full rescan in %v", time.Since(start))

	if full := eng.Snapshot().TotalMeasures().InputTokens; full != incremental {
		t.Fatalf("rescan disagrees with incremental: %d vs %d", full, incremental)
	}
}

// TestStress_JournalGrowth verifies the hash chain stays intact and
// fast to check across hundreds of appended cycle records.
func TestStress_JournalGrowth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	projects := setStressHome(t)
	ctx := context.Background()

	dir := filepath.Join(projects, "journ")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := writeLargeSession(t, dir, "journ.jsonl", 10)

	eng, err := engine.Open(ctx, config.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	cycles := 150
	for i := 0; i < cycles; i++ {
		appendRows(t, path, 10+i, 1)
		if err := eng.Refresh(ctx); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}

	journalPath, err := statedir.JournalPath()
	if err != nil {
		t.Fatalf("journal path: %v", err)
	}

	t.Log("Verifying hash chain...")
	start := time.Now()
	n, err := journal.Verify(journalPath)
	if err != nil {
		t.Fatalf("chain broken: %v", err)
	}
	t.Logf("Verified %d records in %v", n, time.Since(start))
	if n < cycles {
		t.Fatalf("journal has %d records, want at least %d", n, cycles)
	}

	start = time.Now()
	tail, err := journal.Tail(journalPath, 10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	t.Logf("Tailed %d records in %v", len(tail), time.Since(start))
}

// TestStress_ManyConversations measures listing and lookup over 1,000
// conversations.
func TestStress_ManyConversations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	projects := setStressHome(t)
	ctx := context.Background()

	writeProjectTree(t, projects, 250, 4, 5)

	eng, err := engine.Open(ctx, config.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	t.Log("Listing conversations...")
	start := time.Now()
	convs := eng.Conversations()
	t.Logf("Listed %d conversations in %v", len(convs), time.Since(start))
	if len(convs) != 1000 {
		t.Fatalf("conversations = %d, want 1000", len(convs))
	}

	// Most recent first
	for i := 1; i < len(convs); i++ {
		if convs[i].LastActivity.After(convs[i-1].LastActivity) {
			t.Fatalf("conversations out of order at %d", i)
		}
	}

	t.Log("Looking up event detail...")
	start = time.Now()
	for _, c := range convs[:100] {
		if eng.Events(c.ConversationID) == nil {
			t.Fatalf("conversation %s vanished", c.ConversationID)
		}
	}
	t.Logf("100 lookups in %v", time.Since(start))
}

// TestStress_MemoryUsage watches heap growth across repeated cycles.
func TestStress_MemoryUsage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	projects := setStressHome(t)
	ctx := context.Background()

	writeProjectTree(t, projects, 100, 10, 50)

	eng, err := engine.Open(ctx, config.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var ms runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&ms)
	baseline := ms.HeapAlloc
	t.Logf("Heap after open: %.1f MB", float64(baseline)/(1024*1024))

	for i := 0; i < 20; i++ {
		eng.InvalidateAll()
		if err := eng.Refresh(ctx); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if i%5 == 4 {
			runtime.GC()
			runtime.ReadMemStats(&ms)
			t.Logf("  Heap after cycle %d: %.1f MB", i+1, float64(ms.HeapAlloc)/(1024*1024))
		}
	}

	t.Log("Memory stress test completed")
}

// Helper functions

// setStressHome points HOME and the state directory at temp dirs and
// returns the Claude Code projects directory.
func setStressHome(tb testing.TB) string {
	tb.Helper()
	home := tb.TempDir()
	tb.Setenv("HOME", home)
	tb.Setenv(statedir.EnvHome, filepath.Join(tb.TempDir(), "state"))
	projects := filepath.Join(home, ".claude", "projects")
	if err := os.MkdirAll(projects, 0755); err != nil {
		tb.Fatalf("mkdir projects: %v", err)
	}
	return projects
}

// sessionLine builds one assistant row. seq must be globally unique or
// rows deduplicate against each other across files.
func sessionLine(seq int) string {
	day := 1 + seq%28
	return fmt.Sprintf(
		`{"type":"assistant","message":{"id":"m_%d","role":"assistant","model":"claude-sonnet-4-20250514","content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":100,"output_tokens":20}},"requestId":"r_%d","uuid":"u_%d","timestamp":"2026-03-%02dT10:%02d:%02d.000Z"}`,
		seq, seq, seq, day, (seq/60)%60, seq%60)
}

// writeProjectTree creates projects*filesPerProject session files with
// rowsPerFile rows each, every row globally unique.
func writeProjectTree(tb testing.TB, projects string, projectCount, filesPerProject, rowsPerFile int) {
	tb.Helper()
	seq := 0
	for p := 0; p < projectCount; p++ {
		dir := filepath.Join(projects, fmt.Sprintf("project%04d", p))
		if err := os.MkdirAll(dir, 0755); err != nil {
			tb.Fatalf("mkdir %s: %v", dir, err)
		}
		for f := 0; f < filesPerProject; f++ {
			path := filepath.Join(dir, fmt.Sprintf("session%02d.jsonl", f))
			file, err := os.Create(path)
			if err != nil {
				tb.Fatalf("create %s: %v", path, err)
			}
			w := bufio.NewWriter(file)
			for r := 0; r < rowsPerFile; r++ {
				fmt.Fprintln(w, sessionLine(seq))
				seq++
			}
			if err := w.Flush(); err != nil {
				tb.Fatalf("flush %s: %v", path, err)
			}
			file.Close()
		}
	}
}

// writeLargeSession writes one session with rows sequential rows.
func writeLargeSession(tb testing.TB, dir, name string, rows int) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	w := bufio.NewWriter(file)
	for i := 0; i < rows; i++ {
		fmt.Fprintln(w, sessionLine(i))
	}
	if err := w.Flush(); err != nil {
		tb.Fatalf("flush: %v", err)
	}
	file.Close()
	return path
}

// appendRows appends n rows starting at sequence start.
func appendRows(tb testing.TB, path string, start, n int) {
	tb.Helper()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		tb.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()
	for i := start; i < start+n; i++ {
		if _, err := fmt.Fprintln(file, sessionLine(i)); err != nil {
			tb.Fatalf("append: %v", err)
		}
	}
}

// Benchmark for comparison with stress tests
func BenchmarkRefresh_1kFiles(b *testing.B) {
	projects := setStressHome(b)
	writeProjectTree(b, projects, 250, 4, 5)

	eng, err := engine.Open(context.Background(), config.Default())
	if err != nil {
		b.Fatalf("open: %v", err)
	}

	path := filepath.Join(projects, "project0000", "session00.jsonl")
	seq := 100000

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		appendRows(b, path, seq, 1)
		seq++
		if err := eng.Refresh(context.Background()); err != nil {
			b.Fatalf("refresh: %v", err)
		}
	}
}
