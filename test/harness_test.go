// Package test provides black-box integration tests that drive the real
// raidme binary against a temporary SQLite database and a synthetic repo.
package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// raidmeTestBin is the path to the built raidme binary for integration tests.
var (
	raidmeTestBin     string
	raidmeTestBinOnce sync.Once
	raidmeTestBinErr  error
)

// TestMain builds the raidme binary once before running all tests in this package.
func TestMain(m *testing.M) {
	repoRoot, err := filepath.Abs(filepath.Join(filepath.Dir(os.Args[0]), "..", ".."))
	if err != nil {
		cwd, _ := os.Getwd()
		repoRoot = filepath.Join(cwd, "..")
	}

	cwd, _ := os.Getwd()
	if strings.HasSuffix(cwd, "/test") {
		repoRoot = filepath.Join(cwd, "..")
	} else if fi, err2 := os.Stat(filepath.Join(cwd, "cmd", "raidme")); err2 == nil && fi.IsDir() {
		repoRoot = cwd
	}

	binPath := filepath.Join(repoRoot, "raidme-integration-test")
	buildCmd := exec.Command("go", "build", "-o", binPath, "./cmd/raidme")
	buildCmd.Dir = repoRoot
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr

	if err := buildCmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to build raidme binary: %v\n", err)
		os.Exit(1)
	}

	raidmeTestBin = binPath

	code := m.Run()

	_ = os.Remove(binPath)
	os.Exit(code)
}

// harness holds test-scoped state shared across helper functions.
type harness struct {
	t      *testing.T
	dbPath string
}

// newHarness creates a test harness with an isolated temp DB.
func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "raidme-test.db")
	return &harness{t: t, dbPath: dbPath}
}

// raidme runs the raidme binary with --db-path set, returning stdout.
// stderr (log lines) is discarded; commands that exit non-zero still
// return their stdout for the caller to parse.
func (h *harness) raidme(args ...string) string {
	h.t.Helper()
	out, _ := h.run(args...)
	return out
}

// run is like raidme but also reports whether the process exited zero.
// Failed commands print nothing to stdout (raidme logs failures to
// stderr and relies on the exit code), so callers asserting on failure
// should check ok rather than parse JSON out of an empty string.
func (h *harness) run(args ...string) (stdout string, ok bool) {
	h.t.Helper()
	fullArgs := append([]string{"--db-path", h.dbPath}, args...)
	cmd := exec.Command(raidmeTestBin, fullArgs...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.String(), err == nil
}

// mustJSON parses JSON output and returns map[string]any.
func mustJSON(t *testing.T, output string) map[string]any {
	t.Helper()
	output = strings.TrimSpace(output)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &m), "failed to parse JSON: %s", output)
	return m
}

// requireSuccess asserts the raidme JSON response has success=true.
func requireSuccess(t *testing.T, output string) map[string]any {
	t.Helper()
	m := mustJSON(t, output)
	require.Equal(t, true, m["success"], "expected success=true, got: %s", output)
	return m
}

// getStr extracts a nested string field from the parsed JSON using dot-path.
func getStr(m map[string]any, path string) string {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = mm[part]
	}
	s, _ := cur.(string)
	return s
}

// writeRepo materializes a small synthetic repository under a fresh temp
// directory and returns its root.
func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}
