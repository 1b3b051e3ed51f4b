package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/raidme/raidme/internal/models"
)

// SessionUpsert inserts a new session or returns the existing row keyed by
// (repo_root, revision), so re-running analyze against an unchanged
// revision resumes the same session instead of starting a duplicate.
func SessionUpsert(ctx context.Context, db *sql.DB, repoRoot, revision, hints string) (*models.Session, bool, error) {
	var sess models.Session
	var created bool

	err := Transact(ctx, db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, repo_root, revision, hints, status, created_at
			FROM sessions WHERE repo_root = ? AND revision = ?
		`, repoRoot, revision)
		if scanErr := scanSession(row, &sess); scanErr == nil {
			created = false
			return nil
		} else if !errors.Is(scanErr, sql.ErrNoRows) {
			return fmt.Errorf("query existing session: %w", scanErr)
		}

		id := "sess_" + uuid.NewString()
		_, insErr := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, repo_root, revision, hints, status)
			VALUES (?, ?, ?, ?, 'active')
		`, id, repoRoot, revision, hints)
		if insErr != nil {
			return fmt.Errorf("insert session: %w", insErr)
		}

		row = tx.QueryRowContext(ctx, `
			SELECT id, repo_root, revision, hints, status, created_at
			FROM sessions WHERE id = ?
		`, id)
		if scanErr := scanSession(row, &sess); scanErr != nil {
			return fmt.Errorf("reload inserted session: %w", scanErr)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &sess, created, nil
}

// SessionFind loads the session for (repoRoot, revision) without creating
// one, returning sql.ErrNoRows if none exists yet. Backs commands that act
// on an existing session (status, retry, render, reset) rather than
// starting a new analysis run.
func SessionFind(ctx context.Context, db *sql.DB, repoRoot, revision string) (*models.Session, error) {
	var sess models.Session
	row := db.QueryRowContext(ctx, `
		SELECT id, repo_root, revision, hints, status, created_at
		FROM sessions WHERE repo_root = ? AND revision = ?
	`, repoRoot, revision)
	if err := scanSession(row, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SessionDelete removes a session and, via ON DELETE CASCADE, every step
// and atom that belongs to it. Backs the `reset` command (spec's "drop the
// session").
func SessionDelete(ctx context.Context, db *sql.DB, id string) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// SessionGet loads a session by id.
func SessionGet(ctx context.Context, db *sql.DB, id string) (*models.Session, error) {
	var sess models.Session
	row := db.QueryRowContext(ctx, `
		SELECT id, repo_root, revision, hints, status, created_at
		FROM sessions WHERE id = ?
	`, id)
	if err := scanSession(row, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SessionSetStatus transitions a session's terminal status (completed|aborted).
func SessionSetStatus(ctx context.Context, db *sql.DB, id string, status models.SessionStatus) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, string(status), id)
		if err != nil {
			return fmt.Errorf("update session status: %w", err)
		}
		return nil
	})
}

func scanSession(row *sql.Row, sess *models.Session) error {
	var hints sql.NullString
	var status string
	if err := row.Scan(&sess.ID, &sess.RepoRoot, &sess.Revision, &hints, &status, &sess.CreatedAt); err != nil {
		return err
	}
	sess.Hints = hints.String
	sess.Status = models.SessionStatus(status)
	return nil
}

// DeriveStepID computes the stable, idempotent step id from (session id,
// kind, key). Planning the same logical step twice always yields the same
// id, which is what makes re-materializing a session's DAG a no-op.
func DeriveStepID(sessionID string, kind models.StepKind, key string) string {
	h := sha256.Sum256([]byte(sessionID + "\x00" + string(kind) + "\x00" + key))
	return "step_" + hex.EncodeToString(h[:])[:24]
}
