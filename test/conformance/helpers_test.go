//go:build conformance

package conformance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var splitrailBinary string

func init() {
	// Find the splitrail binary
	cwd, _ := os.Getwd()
	// Walk up to find bin/splitrail
	for {
		binPath := filepath.Join(cwd, "bin", "splitrail")
		if _, err := os.Stat(binPath); err == nil {
			splitrailBinary = binPath
			return
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	// Fallback to PATH
	splitrailBinary = "splitrail"
}

// statsEnv is one scenario's isolated home and state directory pair.
type statsEnv struct {
	home     string
	state    string
	projects string
}

// newStatsEnv creates an isolated environment with one Claude Code
// project directory ready for session files.
func newStatsEnv(t *testing.T) statsEnv {
	t.Helper()
	env := statsEnv{
		home:  t.TempDir(),
		state: filepath.Join(t.TempDir(), "state"),
	}
	env.projects = filepath.Join(env.home, ".claude", "projects", "alpha")
	if err := os.MkdirAll(env.projects, 0755); err != nil {
		t.Fatalf("mkdir projects: %v", err)
	}
	return env
}

// emptyStatsEnv creates an environment with no source directories at
// all, as on a machine where no AI coding tool has ever run.
func emptyStatsEnv(t *testing.T) statsEnv {
	t.Helper()
	return statsEnv{
		home:  t.TempDir(),
		state: filepath.Join(t.TempDir(), "state"),
	}
}

// run executes the splitrail binary against this environment.
func (env statsEnv) run(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	cmd := exec.Command(splitrailBinary, args...)
	cmd.Env = append(os.Environ(),
		"HOME="+env.home,
		"SPLITRAIL_HOME="+env.state,
		"NO_COLOR=1",
		"TERM=dumb",
	)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	} else {
		exitCode = 0
	}
	return
}

// row builds one assistant JSONL row with the given token count. seq
// feeds the provider IDs, so rows sharing seq deduplicate across files.
func row(seq, inputTokens int) string {
	day := 1 + (seq/1000)%28
	return fmt.Sprintf(
		`{"type":"assistant","message":{"id":"m_%04d","role":"assistant","model":"claude-sonnet-4-20250514","content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":%d,"output_tokens":20}},"requestId":"r_%04d","uuid":"u_%04d","timestamp":"2026-03-%02dT10:%02d:%02d.000Z"}`,
		seq, inputTokens, seq, seq, day, (seq/60)%60, seq%60)
}

// writeSession writes rows [start, start+n) to a session file under
// the project directory and returns its path.
func writeSession(t *testing.T, env statsEnv, name string, start, n int) string {
	t.Helper()
	var b strings.Builder
	for i := start; i < start+n; i++ {
		b.WriteString(row(i, 100))
		b.WriteString("\n")
	}
	path := filepath.Join(env.projects, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("write session %s: %v", path, err)
	}
	return path
}

// appendRows appends rows [start, start+n) to an existing session.
func appendRows(t *testing.T, path string, start, n int) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	for i := start; i < start+n; i++ {
		if _, err := fmt.Fprintln(f, row(i, 100)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

// statsJSON runs `stats --json` and decodes the snapshot into a
// generic map.
func statsJSON(t *testing.T, env statsEnv, extra ...string) map[string]any {
	t.Helper()
	args := append([]string{"stats", "--json"}, extra...)
	stdout, stderr, code := env.run(t, args...)
	if code != 0 {
		t.Fatalf("stats --json failed: %s", stderr)
	}
	var snap map[string]any
	if err := json.Unmarshal([]byte(stdout), &snap); err != nil {
		t.Fatalf("stats --json emitted invalid JSON: %v\n%s", err, stdout)
	}
	return snap
}

// totalInputTokens folds every source's date buckets in a decoded
// snapshot into one input-token sum.
func totalInputTokens(snap map[string]any) int {
	total := 0
	sources, _ := snap["sources"].(map[string]any)
	for _, s := range sources {
		src, _ := s.(map[string]any)
		daily, _ := src["daily"].(map[string]any)
		for _, d := range daily {
			day, _ := d.(map[string]any)
			measures, _ := day["measures"].(map[string]any)
			if v, ok := measures["input_tokens"].(float64); ok {
				total += int(v)
			}
		}
	}
	return total
}

// fingerprintOf returns the snapshot's corpus fingerprint.
func fingerprintOf(snap map[string]any) string {
	fp, _ := snap["fingerprint"].(string)
	return fp
}

// fileExists checks if a file exists.
func fileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	t.Fatalf("failed to stat file %s: %v", path, err)
	return false
}
