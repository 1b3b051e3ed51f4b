package demo

import (
	"fmt"
	"os"
	"path/filepath"
)

// DemoContext carries state shared across steps within a single run.
type DemoContext struct {
	RepoDir   string
	SessionID string
}

// StepFunc is a single demo step. It receives the runner (to invoke raidme
// and print output) and the shared context.
type StepFunc func(r *Runner, ctx *DemoContext) error

// Step pairs a step name with its insight (a one-line observation printed
// on success) and its implementation.
type Step struct {
	Name    string
	Insight string
	Fn      StepFunc
}

// Act groups a set of steps under a narrated heading.
type Act struct {
	Number    int
	Name      string
	Narration []string
	Steps     []Step
}

// BuildActs returns the full demo script: a small synthetic repository
// walked through every raidme subcommand, offline so no model CLI is
// required.
func BuildActs() []Act {
	return []Act{
		{
			Number: 1,
			Name:   "Setting The Stage",
			Narration: []string{
				"Before raidme can analyze anything, it needs a repository to point at.",
				"We build a small synthetic one on disk: a README, a couple of Go files,",
				"and a nested package, so the repo view has something to walk.",
			},
			Steps: []Step{
				{
					Name:    "Create a synthetic repository",
					Insight: "a throwaway repo now exists on disk for raidme to analyze",
					Fn:      stepCreateRepo,
				},
			},
		},
		{
			Number: 2,
			Name:   "The First Analysis",
			Narration: []string{
				"Running analyze starts a session: it materializes the step graph,",
				"walks the dependency order, and calls the model for each step.",
				"With --offline, a stub provider stands in so no real model CLI",
				"needs to be on PATH.",
			},
			Steps: []Step{
				{
					Name:    "Run analyze --offline",
					Insight: "a session was created and every step ran to completion",
					Fn:      stepAnalyze,
				},
				{
					Name:    "Confirm the knowledge file was written",
					Insight: "the synthesized markdown exists alongside the repo",
					Fn:      stepCheckKnowledgeFile,
				},
			},
		},
		{
			Number: 3,
			Name:   "Checking Progress",
			Narration: []string{
				"status reports per-step state for the session tied to the repo's",
				"current revision, without re-running anything.",
			},
			Steps: []Step{
				{
					Name:    "Run status",
					Insight: "the session reports completed and every step is done or skipped",
					Fn:      stepStatus,
				},
			},
		},
		{
			Number: 4,
			Name:   "Recovering From Failure",
			Narration: []string{
				"retry re-queues any step left in a failed state. On a session",
				"that finished cleanly there's nothing to retry, which is itself",
				"useful to confirm: retry is a no-op when nothing is broken.",
			},
			Steps: []Step{
				{
					Name:    "Run retry on a healthy session",
					Insight: "zero steps needed retrying",
					Fn:      stepRetryNoop,
				},
			},
		},
		{
			Number: 5,
			Name:   "Regenerating The Knowledge File",
			Narration: []string{
				"render re-synthesizes the knowledge file from the atoms already",
				"stored for the session, without touching the model or the step",
				"graph. It's the cheap path for re-formatting output.",
			},
			Steps: []Step{
				{
					Name:    "Run render",
					Insight: "the knowledge file was regenerated from existing atoms",
					Fn:      stepRender,
				},
			},
		},
		{
			Number: 6,
			Name:   "Starting Over",
			Narration: []string{
				"reset drops a session and, through the schema's cascading",
				"foreign keys, every step and atom that belonged to it.",
				"The next analyze call starts from a clean slate.",
			},
			Steps: []Step{
				{
					Name:    "Run reset",
					Insight: "the session and all its steps and atoms are gone",
					Fn:      stepReset,
				},
				{
					Name:    "Confirm status no longer finds a session",
					Insight: "reset was complete: there is nothing left to report on",
					Fn:      stepStatusAfterReset,
				},
			},
		},
	}
}

func stepCreateRepo(r *Runner, ctx *DemoContext) error {
	dir, err := os.MkdirTemp("", "raidme-demo-repo-*")
	if err != nil {
		return fmt.Errorf("create temp repo: %w", err)
	}
	ctx.RepoDir = dir

	files := map[string]string{
		"README.md": "# Demo Repo\n\nA small synthetic repository used by the raidme demo harness.\n",
		"main.go": `package main

func main() {
	println("hello from the demo repo")
}
`,
		"internal/greeter/greeter.go": `package greeter

// Greeting returns a fixed greeting for name.
func Greeting(name string) string {
	return "hello, " + name
}
`,
	}
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}
	return nil
}

func stepAnalyze(r *Runner, ctx *DemoContext) error {
	m, raw, err := r.raidme("analyze", ctx.RepoDir, "--offline")
	if err != nil {
		return err
	}
	if err := r.mustSuccess(m, raw); err != nil {
		return err
	}
	data, _ := m["data"].(map[string]any)
	sessionID, _ := data["session_id"].(string)
	if sessionID == "" {
		return fmt.Errorf("analyze response missing session_id: %s", raw)
	}
	ctx.SessionID = sessionID
	status, _ := data["status"].(string)
	if status != "completed" {
		return fmt.Errorf("expected session status completed, got %q", status)
	}
	return nil
}

func stepCheckKnowledgeFile(r *Runner, ctx *DemoContext) error {
	path := filepath.Join(ctx.RepoDir, "KNOWLEDGE.md")
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("knowledge file missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("knowledge file is empty")
	}
	return nil
}

func stepStatus(r *Runner, ctx *DemoContext) error {
	m, raw, err := r.raidme("status", ctx.RepoDir)
	if err != nil {
		return err
	}
	if err := r.mustSuccess(m, raw); err != nil {
		return err
	}
	data, _ := m["data"].(map[string]any)
	status, _ := data["status"].(string)
	if status != "completed" {
		return fmt.Errorf("expected session status completed, got %q", status)
	}
	steps, _ := data["steps"].([]any)
	for _, s := range steps {
		step, _ := s.(map[string]any)
		if step["status"] != "done" && step["status"] != "skipped" {
			return fmt.Errorf("step %v not done: %v", step["key"], step["status"])
		}
	}
	return nil
}

func stepRetryNoop(r *Runner, ctx *DemoContext) error {
	m, raw, err := r.raidme("retry", ctx.RepoDir)
	if err != nil {
		return err
	}
	if err := r.mustSuccess(m, raw); err != nil {
		return err
	}
	data, _ := m["data"].(map[string]any)
	count, _ := data["count"].(float64)
	if count != 0 {
		return fmt.Errorf("expected 0 retried steps on a healthy session, got %v", count)
	}
	return nil
}

func stepRender(r *Runner, ctx *DemoContext) error {
	m, raw, err := r.raidme("render", ctx.RepoDir)
	if err != nil {
		return err
	}
	return r.mustSuccess(m, raw)
}

func stepReset(r *Runner, ctx *DemoContext) error {
	m, raw, err := r.raidme("reset", ctx.RepoDir)
	if err != nil {
		return err
	}
	if err := r.mustSuccess(m, raw); err != nil {
		return err
	}
	data, _ := m["data"].(map[string]any)
	if data["dropped"] != true {
		return fmt.Errorf("expected dropped=true, got %v", raw)
	}
	return nil
}

func stepStatusAfterReset(r *Runner, ctx *DemoContext) error {
	m, raw, err := r.raidme("status", ctx.RepoDir)
	if err != nil {
		return err
	}
	if m != nil && m["success"] == true {
		return fmt.Errorf("expected status to fail after reset, got success: %s", raw)
	}
	return nil
}
