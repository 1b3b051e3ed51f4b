package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raidme/raidme/internal/store"
)

// S1: an empty repo (just a README) produces a root_files step, a docs
// step, zero dir_node steps, and a knowledge file with an Overview section.
func TestAnalyze_EmptyRepo(t *testing.T) {
	h := newHarness(t)
	root := writeRepo(t, map[string]string{
		"README.md": "Hello",
	})

	out := h.raidme("analyze", root, "--offline")
	resp := requireSuccess(t, out)
	require.Equal(t, "completed", getStr(resp["data"].(map[string]any), "status"))

	status := requireSuccess(t, h.raidme("status", root))
	steps := status["data"].(map[string]any)["steps"].([]any)

	var dirNodes int
	kinds := map[string]bool{}
	for _, s := range steps {
		step := s.(map[string]any)
		kinds[step["kind"].(string)] = true
		if step["kind"] == "dir_node" {
			dirNodes++
		}
	}
	require.True(t, kinds["root_files"])
	require.True(t, kinds["docs"])
	require.True(t, kinds["finalize"])
	require.Zero(t, dirNodes)

	knowledge, err := os.ReadFile(filepath.Join(root, "KNOWLEDGE.md"))
	require.NoError(t, err)
	require.Contains(t, string(knowledge), "# Overview")
}

// S2: a repo with one level of subdirectories produces dir_level and
// dir_node steps for each, and the knowledge file lists them under
// Project Structure.
func TestAnalyze_NestedRepo(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"src/a.rs":      "fn a() {}",
		"src/b.rs":      "fn b() {}",
		"docs/guide.md": "# Guide",
	})
	h := newHarness(t)

	resp := requireSuccess(t, h.raidme("analyze", root, "--offline"))
	require.Equal(t, "completed", getStr(resp["data"].(map[string]any), "status"))

	status := requireSuccess(t, h.raidme("status", root))
	steps := status["data"].(map[string]any)["steps"].([]any)

	dirNodeKeys := map[string]bool{}
	for _, s := range steps {
		step := s.(map[string]any)
		if step["kind"] == "dir_node" {
			dirNodeKeys[step["key"].(string)] = true
		}
	}
	require.True(t, dirNodeKeys["src"])
	require.True(t, dirNodeKeys["docs"])

	knowledge, err := os.ReadFile(filepath.Join(root, "KNOWLEDGE.md"))
	require.NoError(t, err)
	require.Contains(t, string(knowledge), "## Project Structure")
}

// S3: a step left "running" by a killed process is reset to failed on the
// next analyze, blocking completion until retry flips it back to pending;
// a further analyze then finishes the session.
func TestAnalyze_ResumesAfterStuckStep(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"src/a.rs":      "fn a() {}",
		"docs/guide.md": "# Guide",
	})
	h := newHarness(t)

	resp := requireSuccess(t, h.raidme("analyze", root, "--offline"))
	require.Equal(t, "completed", getStr(resp["data"].(map[string]any), "status"))

	markStepRunning(t, h.dbPath, "dir_node", "src")

	// The stuck step is reset to failed on resume, which stops the session
	// short with an error rather than completing it. A failing command
	// prints nothing to stdout, so check the exit status rather than JSON.
	_, ok := h.run("analyze", root, "--offline")
	require.False(t, ok)

	status := requireSuccess(t, h.raidme("status", root))
	require.NotEqual(t, "completed", getStr(status["data"].(map[string]any), "status"))

	retryResp := requireSuccess(t, h.raidme("retry", root))
	data := retryResp["data"].(map[string]any)
	require.EqualValues(t, 1, data["count"])

	resp = requireSuccess(t, h.raidme("analyze", root, "--offline"))
	require.Equal(t, "completed", getStr(resp["data"].(map[string]any), "status"))
}

// S6: render regenerates a byte-identical knowledge file from a completed
// session's atoms without running any new step.
func TestRender_MatchesPriorAnalyze(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"src/a.rs":      "fn a() {}",
		"docs/guide.md": "# Guide",
	})
	h := newHarness(t)

	requireSuccess(t, h.raidme("analyze", root, "--offline"))
	before, err := os.ReadFile(filepath.Join(root, "KNOWLEDGE.md"))
	require.NoError(t, err)

	requireSuccess(t, h.raidme("render", root))
	after, err := os.ReadFile(filepath.Join(root, "KNOWLEDGE.md"))
	require.NoError(t, err)

	require.Equal(t, string(before), string(after))
}

// reset drops a session; status afterward reports no session found.
func TestReset_DropsSession(t *testing.T) {
	root := writeRepo(t, map[string]string{"README.md": "Hello"})
	h := newHarness(t)

	requireSuccess(t, h.raidme("analyze", root, "--offline"))
	requireSuccess(t, h.raidme("status", root))

	requireSuccess(t, h.raidme("reset", root))

	_, ok := h.run("status", root)
	require.False(t, ok)
}

// markStepRunning simulates a crash mid-step: the process died after
// claiming a step but before it could complete or fail. Goes straight to
// the database rather than through the CLI since nothing in the command
// surface can pause a step mid-flight on purpose.
func markStepRunning(t *testing.T, dbPath, kind, key string) {
	t.Helper()
	db, err := store.OpenDB(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.CloseDB(db) }()

	res, err := db.ExecContext(context.Background(),
		`UPDATE analysis_steps SET status = 'running' WHERE kind = ? AND step_key = ?`, kind, key)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
