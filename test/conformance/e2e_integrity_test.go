//go:build conformance

package conformance

import (
	"os"
	"strings"
	"testing"
)

// E2E Scenario 4: Trust but Verify
// User Story: A user wants proof that the cached numbers match what a
// from-scratch decode would produce, and that the maintenance commands
// keep that promise.

// TestE2E_Integrity_CacheAgreesWithRebuild is the core conformance
// check: incremental results must be indistinguishable from a cold
// rebuild of the same corpus.
func TestE2E_Integrity_CacheAgreesWithRebuild(t *testing.T) {
	env := newStatsEnv(t)

	// Build up state across several incremental runs
	s1 := writeSession(t, env, "one.jsonl", 0, 4)
	statsJSON(t, env)
	appendRows(t, s1, 4, 3)
	statsJSON(t, env)
	writeSession(t, env, "two.jsonl", 1000, 5)
	incremental := statsJSON(t, env)

	// Wipe every cached artifact and decode from scratch
	stdout, stderr, code := env.run(t, "cache", "clear")
	if code != 0 {
		t.Fatalf("cache clear failed: %s", stderr)
	}
	if !strings.Contains(stdout, "Cache cleared") {
		t.Errorf("expected a clear confirmation, got: %s", stdout)
	}

	rebuilt := statsJSON(t, env)

	if got, want := totalInputTokens(rebuilt), totalInputTokens(incremental); got != want {
		t.Errorf("rebuild disagrees with incremental: %d vs %d input tokens", got, want)
	}
	if fingerprintOf(rebuilt) != fingerprintOf(incremental) {
		t.Errorf("rebuild fingerprint differs: %s vs %s",
			fingerprintOf(rebuilt), fingerprintOf(incremental))
	}
}

// TestE2E_Integrity_VerifyPasses checks every verification surface on a
// healthy state directory.
func TestE2E_Integrity_VerifyPasses(t *testing.T) {
	env := newStatsEnv(t)
	writeSession(t, env, "verify.jsonl", 0, 3)
	statsJSON(t, env)

	t.Run("cache_verify", func(t *testing.T) {
		stdout, stderr, code := env.run(t, "cache", "verify")
		if code != 0 {
			t.Fatalf("cache verify failed: %s\n%s", stderr, stdout)
		}
		if strings.Contains(stdout, "FAIL") {
			t.Errorf("healthy state must not fail verification:\n%s", stdout)
		}
		for _, check := range []string{"store", "journal"} {
			if !strings.Contains(stdout, check) {
				t.Errorf("expected a %q row in verify output:\n%s", check, stdout)
			}
		}
	})

	t.Run("journal_chain", func(t *testing.T) {
		stdout, stderr, code := env.run(t, "history", "--verify")
		if code != 0 {
			t.Fatalf("history --verify failed: %s", stderr)
		}
		if !strings.Contains(stdout, "intact") {
			t.Errorf("expected an intact chain, got: %s", stdout)
		}
	})

	t.Run("doctor_strict", func(t *testing.T) {
		stdout, stderr, code := env.run(t, "doctor", "--strict")
		if code != 0 {
			t.Fatalf("doctor --strict failed on healthy state: %s\n%s", stderr, stdout)
		}
	})
}

// TestE2E_Integrity_CacheInfoTracksState checks that cache info reports
// the files and snapshots the runs produced.
func TestE2E_Integrity_CacheInfoTracksState(t *testing.T) {
	env := newStatsEnv(t)
	writeSession(t, env, "a.jsonl", 0, 2)
	writeSession(t, env, "b.jsonl", 1000, 2)
	statsJSON(t, env)

	stdout, stderr, code := env.run(t, "cache", "info")
	if code != 0 {
		t.Fatalf("cache info failed: %s", stderr)
	}
	if !strings.Contains(stdout, "2 files cached") {
		t.Errorf("expected 2 cached files, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "claude-code") {
		t.Errorf("expected the claude-code snapshot tag, got:\n%s", stdout)
	}
}

// TestE2E_Integrity_JournalChainsAcrossRuns checks that each process
// links its records onto the previous run's chain.
func TestE2E_Integrity_JournalChainsAcrossRuns(t *testing.T) {
	env := newStatsEnv(t)
	path := writeSession(t, env, "chain.jsonl", 0, 2)

	// Three distinct processes, each with something new to decode
	statsJSON(t, env)
	appendRows(t, path, 2, 1)
	statsJSON(t, env)
	appendRows(t, path, 3, 1)
	statsJSON(t, env)

	stdout, stderr, code := env.run(t, "history", "--verify", "--json")
	if code != 0 {
		t.Fatalf("history --verify failed: %s", stderr)
	}
	if !strings.Contains(stdout, `"intact": true`) {
		t.Errorf("expected an intact chain, got: %s", stdout)
	}

	// All three decode cycles are present
	listOut, _, _ := env.run(t, "history")
	cycles := 0
	for _, line := range strings.Split(listOut, "\n") {
		if strings.Contains(line, "startup") || strings.Contains(line, "manual") {
			cycles++
		}
	}
	if cycles < 3 {
		t.Errorf("expected at least 3 journaled cycles, got %d:\n%s", cycles, listOut)
	}
}

// TestE2E_Integrity_StateSurvivesReopen checks that a warm process
// trusts persisted state instead of re-decoding, by removing read
// permission from the sessions between runs.
func TestE2E_Integrity_StateSurvivesReopen(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits do not bind as root")
	}

	env := newStatsEnv(t)
	path := writeSession(t, env, "warm.jsonl", 0, 3)
	cold := statsJSON(t, env)

	// Make the session unreadable; identity (size+mtime) still stats.
	if err := os.Chmod(path, 0000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(path, 0644)

	warm := statsJSON(t, env)
	if totalInputTokens(warm) != totalInputTokens(cold) {
		t.Errorf("warm run re-read files it should have trusted: %d vs %d",
			totalInputTokens(warm), totalInputTokens(cold))
	}
	if fingerprintOf(warm) != fingerprintOf(cold) {
		t.Errorf("fingerprint changed on unchanged corpus")
	}
}
