// Package session owns one analysis run end to end: open the store,
// acquire the session's advisory lock, materialize or resume the step
// DAG, drive the Planner/Executor loop until no eligible steps remain,
// then synthesize the knowledge file.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/raidme/raidme/internal/app"
	"github.com/raidme/raidme/internal/executor"
	"github.com/raidme/raidme/internal/gateway"
	"github.com/raidme/raidme/internal/models"
	"github.com/raidme/raidme/internal/planner"
	"github.com/raidme/raidme/internal/repoview"
	"github.com/raidme/raidme/internal/store"
	"github.com/raidme/raidme/internal/synth"
)

// Controller drives a single session's full lifecycle. It owns the
// store handle and the advisory lock file; callers must call Close.
type Controller struct {
	DB       *sql.DB
	DBPath   string
	View     *repoview.View
	Provider gateway.Provider
	Settings app.Settings

	lock *os.File
}

// Open opens (and migrates) the store at dbPath. It takes no lock: the
// per-session advisory lock is acquired by Run once the session id is
// known. provider is supplied by the caller so tests can substitute a
// gateway.StubProvider without touching the CLI dispatch path.
func Open(dbPath string, settings app.Settings, view *repoview.View, provider gateway.Provider) (*Controller, error) {
	db, err := store.InitDBWithPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Controller{DB: db, DBPath: dbPath, View: view, Provider: provider, Settings: settings}, nil
}

// Close releases the session lock, if held, and closes the store.
func (c *Controller) Close() error {
	if c.lock != nil {
		store.UnlockSession(c.lock)
		c.lock = nil
	}
	return c.DB.Close()
}

// Run opens or resumes the session for (repoRoot, revision, hints),
// materializes its step DAG if new, resets any steps left running by
// a killed prior process, then executes eligible steps one at a time
// until none remain, synthesizing the knowledge file at the end.
// Returns the rendered knowledge file and the session it ran under.
func (c *Controller) Run(ctx context.Context, repoRoot, revision, hints string) (string, *models.Session, error) {
	sess, created, err := store.SessionUpsert(ctx, c.DB, repoRoot, revision, hints)
	if err != nil {
		return "", nil, fmt.Errorf("open session: %w", err)
	}

	lock, err := store.LockSession(c.DBPath, sess.ID)
	if err != nil {
		return "", nil, fmt.Errorf("acquire session lock: %w", err)
	}
	c.lock = lock

	if _, err := store.ResetStuck(ctx, c.DB, sess.ID); err != nil {
		return "", nil, fmt.Errorf("reset interrupted steps: %w", err)
	}

	if created {
		if err := planner.Materialize(ctx, c.DB, sess, c.View); err != nil {
			return "", nil, fmt.Errorf("materialize step graph: %w", err)
		}
		slog.Info("session materialized", "session_id", sess.ID, "repo_root", repoRoot)
	}

	exec := &executor.Executor{
		DB:       c.DB,
		Provider: c.Provider,
		Config: executor.Config{
			DeadlineSeconds: c.Settings.Model.DeadlineSeconds,
			ParseRetries:    c.Settings.Model.ParseRetries,
			TokenCeiling:    c.Settings.Context.TokenCeiling,
		},
	}

	for {
		if ctx.Err() != nil {
			return "", sess, ctx.Err()
		}

		steps, err := store.StepsForSession(ctx, c.DB, sess.ID)
		if err != nil {
			return "", sess, fmt.Errorf("list steps: %w", err)
		}

		eligible := planner.Eligible(steps)
		if len(eligible) == 0 {
			break
		}

		next := eligible[0]
		rawData, err := gatherRawData(ctx, c.View, sess, next)
		if err != nil {
			return "", sess, fmt.Errorf("gather data for step %s: %w", next.ID, err)
		}

		if err := exec.Execute(ctx, sess.ID, next, rawData); err != nil {
			return "", sess, fmt.Errorf("execute step %s (%s): %w", next.ID, next.Kind, err)
		}
	}

	if !allDone(ctx, c.DB, sess.ID) {
		if sess.Status == models.SessionStatusCompleted {
			if err := store.SessionSetStatus(ctx, c.DB, sess.ID, models.SessionStatusActive); err != nil {
				return "", sess, fmt.Errorf("reopen session: %w", err)
			}
			sess.Status = models.SessionStatusActive
		}
		return "", sess, fmt.Errorf("session %s has unresolved failed steps", sess.ID)
	}

	atoms, err := store.AtomsFor(ctx, c.DB, sess.ID, "")
	if err != nil {
		return "", sess, fmt.Errorf("load atoms for synthesis: %w", err)
	}

	knowledge := synth.Render(atoms, synth.SessionMeta{RepoRoot: sess.RepoRoot, Revision: sess.Revision})

	if err := store.SessionSetStatus(ctx, c.DB, sess.ID, models.SessionStatusCompleted); err != nil {
		return "", sess, fmt.Errorf("mark session completed: %w", err)
	}
	sess.Status = models.SessionStatusCompleted

	return knowledge, sess, nil
}

// Render regenerates the knowledge file from the session's current
// atoms without executing any steps, backing the `render` command.
// Synthesis is a pure projection of the stored atoms, so calling it
// twice on an unchanged session produces byte-identical output.
func (c *Controller) Render(ctx context.Context, sess *models.Session) (string, error) {
	atoms, err := store.AtomsFor(ctx, c.DB, sess.ID, "")
	if err != nil {
		return "", fmt.Errorf("load atoms for synthesis: %w", err)
	}
	return synth.Render(atoms, synth.SessionMeta{RepoRoot: sess.RepoRoot, Revision: sess.Revision}), nil
}

// allDone reports whether every step in the session reached a
// terminal, non-failed state. A session with any failed step stops
// here for user intervention (retry or reset) rather than being
// marked complete.
func allDone(ctx context.Context, db *sql.DB, sessionID string) bool {
	steps, err := store.StepsForSession(ctx, db, sessionID)
	if err != nil {
		return false
	}
	for _, s := range steps {
		if s.Status == models.StepStatusFailed {
			return false
		}
		if !s.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// gatherRawData reads exactly the filesystem data a step's kind needs
// through the Repo View, bounded by the same caps the View was
// constructed with.
func gatherRawData(ctx context.Context, view *repoview.View, sess *models.Session, step *models.Step) (string, error) {
	switch step.Kind {
	case models.StepKindGlobalHints:
		return sess.Hints, nil

	case models.StepKindRootFiles:
		files, err := view.ListRootFiles()
		if err != nil {
			return "", err
		}
		return renderFileBodies(view, files)

	case models.StepKindDocs:
		files, err := view.ListDocs(50, int64(view.DirPayloadCap))
		if err != nil {
			return "", err
		}
		return renderFileBodies(view, files)

	case models.StepKindDirLevel:
		return renderLevelSummary(ctx, view, step.Key)

	case models.StepKindDirNode:
		summary, err := view.DescribeDir(step.Key)
		if err != nil {
			return "", err
		}
		return renderDirSummary(summary), nil

	case models.StepKindDiagrams:
		return "Summarize the structural relationships captured so far as one or more fenced diagram blocks.", nil

	case models.StepKindFinalize:
		return "All analysis steps are complete. Provide a closing synthesis note.", nil

	default:
		return "", fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// renderLevelSummary finds the directories the Repo View yields at
// depth levelKey (the dir_level step's key) and describes the level
// as a whole: names and a count. Drains the whole channel rather than
// returning on first match, so the walk's backing goroutine never
// blocks on a send nobody is left to receive.
func renderLevelSummary(ctx context.Context, view *repoview.View, levelKey string) (string, error) {
	var match *repoview.LevelDirs
	for level := range view.WalkLevels(ctx) {
		if fmt.Sprintf("%d", level.Depth) == levelKey {
			l := level
			match = &l
		}
	}
	if match == nil {
		return fmt.Sprintf("Depth %s: no directories found", levelKey), nil
	}
	return fmt.Sprintf("Depth %s directories (%d): %v", levelKey, len(match.Dirs), match.Dirs), nil
}

func renderFileBodies(view *repoview.View, files []repoview.FileInfo) (string, error) {
	var out string
	for _, f := range files {
		body, err := repoview.ReadText(filepath.Join(view.Root, f.Path), view.FileHeadCap)
		if err != nil {
			continue
		}
		out += fmt.Sprintf("### %s\n%s\n\n", f.Path, body)
	}
	return out, nil
}

func renderDirSummary(summary *repoview.DirSummary) string {
	out := fmt.Sprintf("## %s\nFiles: %d, Dirs: %d\nNames: %v\n\n", summary.Path, summary.FileCount, summary.DirCount, summary.FileNames)

	names := make([]string, 0, len(summary.Heads))
	for name := range summary.Heads {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		out += fmt.Sprintf("### %s\n%s\n\n", name, summary.Heads[name])
	}
	return out
}
