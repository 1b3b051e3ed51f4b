// Package planner materializes the canonical step DAG for a session:
// global hints, root files, docs, one dir_level/dir_node pair per
// directory depth, diagrams, and finalize. Step ids are derived
// deterministically from (session, kind, key), so materializing twice
// is a no-op the second time — the same idempotency the Store relies
// on for resumable execution.
package planner

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/raidme/raidme/internal/models"
	"github.com/raidme/raidme/internal/repoview"
	"github.com/raidme/raidme/internal/store"
)

// Materialize inserts every step in the canonical DAG for sess,
// reading the directory structure through view to learn how many
// depth levels exist and which directories occupy each one. Calling
// it more than once for the same session is safe: StepInsert is a
// no-op once a step's derived id already exists.
func Materialize(ctx context.Context, db *sql.DB, sess *models.Session, view *repoview.View) error {
	var prev string
	hasHints := sess.Hints != ""

	if hasHints {
		id, err := store.StepInsert(ctx, db, sess.ID, models.StepKindGlobalHints, "hints", nil)
		if err != nil {
			return fmt.Errorf("insert global_hints step: %w", err)
		}
		prev = id
	}

	rootDeps := dependsOn(prev)
	rootID, err := store.StepInsert(ctx, db, sess.ID, models.StepKindRootFiles, "root", rootDeps)
	if err != nil {
		return fmt.Errorf("insert root_files step: %w", err)
	}

	docsID, err := store.StepInsert(ctx, db, sess.ID, models.StepKindDocs, "docs", dependsOn(rootID))
	if err != nil {
		return fmt.Errorf("insert docs step: %w", err)
	}

	levels := collectLevels(ctx, view)

	prevLevelID := docsID
	var dirNodeIDs []string

	for _, level := range levels {
		levelKey := fmt.Sprintf("%d", level.Depth)
		levelID, err := store.StepInsert(ctx, db, sess.ID, models.StepKindDirLevel, levelKey, dependsOn(prevLevelID))
		if err != nil {
			return fmt.Errorf("insert dir_level[%d] step: %w", level.Depth, err)
		}

		dirs := append([]string(nil), level.Dirs...)
		sort.Strings(dirs)
		for _, dir := range dirs {
			nodeID, err := store.StepInsert(ctx, db, sess.ID, models.StepKindDirNode, dir, dependsOn(levelID))
			if err != nil {
				return fmt.Errorf("insert dir_node[%s] step: %w", dir, err)
			}
			dirNodeIDs = append(dirNodeIDs, nodeID)
		}

		prevLevelID = levelID
	}

	diagramsID, err := store.StepInsert(ctx, db, sess.ID, models.StepKindDiagrams, "diagrams", dirNodeIDs)
	if err != nil {
		return fmt.Errorf("insert diagrams step: %w", err)
	}

	if _, err := store.StepInsert(ctx, db, sess.ID, models.StepKindFinalize, "finalize", dependsOn(diagramsID)); err != nil {
		return fmt.Errorf("insert finalize step: %w", err)
	}

	return nil
}

// Eligible returns the steps in steps whose dependencies are all done,
// given the full step set they belong to. It's an in-memory pass over
// an already-loaded step list rather than a SQL join: the step graph
// here is acyclic by construction (planner-authored, not user-supplied),
// so no cycle guard is needed.
func Eligible(steps []*models.Step) []*models.Step {
	done := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.Status == models.StepStatusDone {
			done[s.ID] = true
		}
	}

	var out []*models.Step
	for _, s := range steps {
		if !s.Status.IsPending() {
			continue
		}
		if s.IsEligible(done) {
			out = append(out, s)
		}
	}
	return out
}

// dependsOn builds a single-element dependency list, or nil if id is
// empty (the global_hints step is absent, so root_files has no deps).
func dependsOn(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

// collectLevels drains view.WalkLevels into a slice ordered by depth,
// so the DAG can be built depth by depth without holding the channel
// open across the whole materialization.
func collectLevels(ctx context.Context, view *repoview.View) []repoview.LevelDirs {
	var levels []repoview.LevelDirs
	for level := range view.WalkLevels(ctx) {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Depth < levels[j].Depth })
	return levels
}
