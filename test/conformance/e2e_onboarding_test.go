//go:build conformance

package conformance

import (
	"strings"
	"testing"
)

// E2E Scenario 1: New User Onboarding Flow
// User Story: A user installs splitrail on a machine, runs it before any
// AI tool has logged anything, starts a first Claude Code session, and
// sees their numbers appear.

// TestE2E_Onboarding_NewUserFlow tests the complete onboarding experience
func TestE2E_Onboarding_NewUserFlow(t *testing.T) {
	env := emptyStatsEnv(t)

	// Step 1: First run with nothing to inventory
	t.Run("stats_before_any_logs", func(t *testing.T) {
		stdout, stderr, code := env.run(t, "stats")
		if code != 0 {
			t.Fatalf("stats failed: %s", stderr)
		}
		if !strings.Contains(stdout, "No usage data found.") {
			t.Errorf("expected empty-corpus message, got: %s", stdout)
		}
	})

	// Step 2: Doctor explains why nothing was found
	t.Run("doctor_names_missing_sources", func(t *testing.T) {
		stdout, stderr, code := env.run(t, "doctor")
		if code != 0 {
			t.Fatalf("doctor failed: %s", stderr)
		}
		if !strings.Contains(stdout, "no AI coding tool logs found") {
			t.Errorf("expected doctor to explain the empty corpus, got: %s", stdout)
		}
	})

	// Step 3: A first Claude Code session appears
	t.Run("first_session", func(t *testing.T) {
		full := newStatsEnv(t)
		env = full
		writeSession(t, env, "first.jsonl", 0, 3)

		stdout, stderr, code := env.run(t, "stats")
		if code != 0 {
			t.Fatalf("stats failed: %s", stderr)
		}
		if !strings.Contains(stdout, "Claude Code") {
			t.Errorf("expected Claude Code in stats output, got: %s", stdout)
		}

		snap := statsJSON(t, env)
		if got := totalInputTokens(snap); got != 300 {
			t.Errorf("expected 300 input tokens, got %d", got)
		}
	})

	// Step 4: The startup cycle is journaled
	t.Run("history_shows_first_cycle", func(t *testing.T) {
		stdout, stderr, code := env.run(t, "history")
		if code != 0 {
			t.Fatalf("history failed: %s", stderr)
		}
		if !strings.Contains(stdout, "startup") {
			t.Errorf("expected a startup cycle in history, got: %s", stdout)
		}
	})

	// Step 5: Doctor is now healthy and sees the source
	t.Run("doctor_healthy", func(t *testing.T) {
		stdout, stderr, code := env.run(t, "doctor")
		if code != 0 {
			t.Fatalf("doctor failed: %s", stderr)
		}
		if !strings.Contains(stdout, "Claude Code: 1 log file(s)") {
			t.Errorf("expected the discovered source, got: %s", stdout)
		}
	})

	// Step 6: The conversation is listed and drillable
	t.Run("conversations_and_events", func(t *testing.T) {
		stdout, stderr, code := env.run(t, "conversations")
		if code != 0 {
			t.Fatalf("conversations failed: %s", stderr)
		}
		if !strings.Contains(stdout, "claude-code") {
			t.Errorf("expected the conversation row, got: %s", stdout)
		}

		// Take the first column of the first data row as the ID
		id := firstConversationID(t, stdout)
		if id == "" {
			t.Fatal("could not extract a conversation ID")
		}

		stdout, stderr, code = env.run(t, "events", id)
		if code != 0 {
			t.Fatalf("events failed: %s", stderr)
		}
		if !strings.Contains(stdout, "claude-sonnet-4-20250514") {
			t.Errorf("expected model names in event detail, got: %s", stdout)
		}
	})
}

// firstConversationID pulls the ID column from the first data row of
// `splitrail conversations` output.
func firstConversationID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 1 && fields[1] == "claude-code" {
			return fields[0]
		}
	}
	return ""
}
