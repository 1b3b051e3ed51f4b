package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/raidme/raidme/internal/models"
)

// StepInsert creates a step row in pending status if it does not already
// exist (same id derived from session+kind+key). Re-planning is idempotent:
// inserting the same step twice is a no-op.
func StepInsert(ctx context.Context, db *sql.DB, sessionID string, kind models.StepKind, key string, dependsOn []string) (string, error) {
	id := DeriveStepID(sessionID, kind, key)
	deps, err := json.Marshal(dependsOn)
	if err != nil {
		return "", fmt.Errorf("marshal depends_on: %w", err)
	}

	err = Transact(ctx, db, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx, `
			INSERT INTO analysis_steps (id, session_id, kind, step_key, status, depends_on)
			VALUES (?, ?, ?, ?, 'pending', ?)
			ON CONFLICT(id) DO NOTHING
		`, id, sessionID, string(kind), key, string(deps))
		if execErr != nil {
			return fmt.Errorf("insert step: %w", execErr)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// StepGet loads a single step by id.
func StepGet(ctx context.Context, db *sql.DB, stepID string) (*models.Step, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, session_id, kind, step_key, status, depends_on,
		       COALESCE(input_fingerprint, ''), COALESCE(input_data, ''),
		       COALESCE(output_data, ''), COALESCE(error_message, ''),
		       created_at, completed_at
		FROM analysis_steps WHERE id = ?
	`, stepID)
	step, err := scanStep(row)
	if err != nil {
		return nil, err
	}
	return step, nil
}

// StepsForSession lists every step belonging to a session, in creation order.
func StepsForSession(ctx context.Context, db *sql.DB, sessionID string) ([]*models.Step, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, kind, step_key, status, depends_on,
		       COALESCE(input_fingerprint, ''), COALESCE(input_data, ''),
		       COALESCE(output_data, ''), COALESCE(error_message, ''),
		       created_at, completed_at
		FROM analysis_steps WHERE session_id = ? ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.Step
	for rows.Next() {
		step, scanErr := scanStepRows(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// StepsPendingFor returns pending steps of a session whose dependencies have
// all reached done, ordered by creation time, so callers can claim the next
// runnable unit of work.
func StepsPendingFor(ctx context.Context, db *sql.DB, sessionID string) ([]*models.Step, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.id, s.session_id, s.kind, s.step_key, s.status, s.depends_on,
		       COALESCE(s.input_fingerprint, ''), COALESCE(s.input_data, ''),
		       COALESCE(s.output_data, ''), COALESCE(s.error_message, ''),
		       s.created_at, s.completed_at
		FROM analysis_steps s
		WHERE s.session_id = ? AND s.status = 'pending'
		AND NOT EXISTS (
			SELECT 1 FROM json_each(s.depends_on) dep
			JOIN analysis_steps d ON d.id = dep.value
			WHERE d.status != 'done'
		)
		ORDER BY s.created_at ASC, s.id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query pending steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.Step
	for rows.Next() {
		step, scanErr := scanStepRows(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// StepClaim atomically transitions a step from pending to running using a
// compare-and-swap update inside a transaction, so two callers racing to
// claim the same step can't both succeed. Returns StepConflictError if the
// step is not currently pending, and DependencyNotSatisfiedError if a
// dependency has not reached done.
func StepClaim(ctx context.Context, db *sql.DB, stepID string, inputFingerprint, inputData string) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		var status string
		var dependsOn string
		err := tx.QueryRowContext(ctx, `SELECT status, depends_on FROM analysis_steps WHERE id = ?`, stepID).
			Scan(&status, &dependsOn)
		if err == sql.ErrNoRows {
			return ErrStepNotFound
		}
		if err != nil {
			return fmt.Errorf("load step for claim: %w", err)
		}
		if status != string(models.StepStatusPending) {
			return &StepConflictError{StepID: stepID, CurrentStatus: status}
		}

		var deps []string
		if jsonErr := json.Unmarshal([]byte(dependsOn), &deps); jsonErr != nil {
			return fmt.Errorf("unmarshal depends_on: %w", jsonErr)
		}
		if pending := unsatisfiedDeps(ctx, tx, deps); len(pending) > 0 {
			return &DependencyNotSatisfiedError{StepID: stepID, Pending: pending}
		}

		res, execErr := tx.ExecContext(ctx, `
			UPDATE analysis_steps
			SET status = 'running', input_fingerprint = ?, input_data = ?
			WHERE id = ? AND status = 'pending'
		`, inputFingerprint, inputData, stepID)
		if execErr != nil {
			return fmt.Errorf("claim step: %w", execErr)
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("rows affected: %w", raErr)
		}
		if n == 0 {
			return &StepConflictError{StepID: stepID, CurrentStatus: "unknown"}
		}
		return nil
	})
}

func unsatisfiedDeps(ctx context.Context, tx *sql.Tx, deps []string) []string {
	var pending []string
	for _, dep := range deps {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM analysis_steps WHERE id = ?`, dep).Scan(&status)
		if err != nil || status != string(models.StepStatusDone) {
			pending = append(pending, dep)
		}
	}
	return pending
}

// StepComplete marks a step done and replaces any atoms previously recorded
// for it with the supplied set, in a single transaction. Writing output_data
// and atoms together means a crash between them can never leave the two
// inconsistent, and re-running the same step after a failed commit replaces
// rather than duplicates its atoms.
func StepComplete(ctx context.Context, db *sql.DB, stepID string, outputData string, atoms []models.Atom) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE analysis_steps
			SET status = 'done', output_data = ?, error_message = '', completed_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = 'running'
		`, outputData, stepID)
		if err != nil {
			return fmt.Errorf("complete step: %w", err)
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("rows affected: %w", raErr)
		}
		if n == 0 {
			var status string
			_ = tx.QueryRowContext(ctx, `SELECT status FROM analysis_steps WHERE id = ?`, stepID).Scan(&status)
			return &StepConflictError{StepID: stepID, CurrentStatus: status}
		}

		if _, delErr := tx.ExecContext(ctx, `DELETE FROM knowledge_entries WHERE source_step_id = ?`, stepID); delErr != nil {
			return fmt.Errorf("clear prior atoms: %w", delErr)
		}

		for _, atom := range atoms {
			_, insErr := tx.ExecContext(ctx, `
				INSERT INTO knowledge_entries
					(session_id, source_step_id, category, subcategory, title, content, relevance_score)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, atom.SessionID, stepID, string(atom.Category), atom.Subcategory, atom.Title, atom.Content, atom.Relevance)
			if insErr != nil {
				return fmt.Errorf("insert atom: %w", insErr)
			}
		}
		return nil
	})
}

// StepFail marks a running step failed with the given error message.
func StepFail(ctx context.Context, db *sql.DB, stepID string, stepErr error) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE analysis_steps
			SET status = 'failed', error_message = ?, completed_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = 'running'
		`, stepErr.Error(), stepID)
		if err != nil {
			return fmt.Errorf("fail step: %w", err)
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("rows affected: %w", raErr)
		}
		if n == 0 {
			return ErrStepNotFound
		}
		return nil
	})
}

// StepRetry resets a failed step back to pending so it can be re-claimed.
func StepRetry(ctx context.Context, db *sql.DB, stepID string) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE analysis_steps
			SET status = 'pending', error_message = '', completed_at = NULL
			WHERE id = ? AND status = 'failed'
		`, stepID)
		if err != nil {
			return fmt.Errorf("retry step: %w", err)
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("rows affected: %w", raErr)
		}
		if n == 0 {
			var status string
			_ = tx.QueryRowContext(ctx, `SELECT status FROM analysis_steps WHERE id = ?`, stepID).Scan(&status)
			return &StepConflictError{StepID: stepID, CurrentStatus: status}
		}
		return nil
	})
}

// ResetStuck recovers steps left running by a process that was killed
// mid-step: they transition to failed("interrupted") so a subsequent retry
// or replan picks them back up. Called once at session resume.
func ResetStuck(ctx context.Context, db *sql.DB, sessionID string) (int, error) {
	var n int64
	err := Transact(ctx, db, func(tx *sql.Tx) error {
		res, execErr := tx.ExecContext(ctx, `
			UPDATE analysis_steps
			SET status = 'failed', error_message = 'interrupted', completed_at = CURRENT_TIMESTAMP
			WHERE session_id = ? AND status = 'running'
		`, sessionID)
		if execErr != nil {
			return fmt.Errorf("reset stuck steps: %w", execErr)
		}
		var raErr error
		n, raErr = res.RowsAffected()
		return raErr
	})
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStep(row rowScanner) (*models.Step, error) {
	return scanStepCommon(row)
}

func scanStepRows(rows *sql.Rows) (*models.Step, error) {
	return scanStepCommon(rows)
}

func scanStepCommon(s rowScanner) (*models.Step, error) {
	var step models.Step
	var kind, status, dependsOn string
	var completedAt sql.NullTime

	err := s.Scan(
		&step.ID, &step.SessionID, &kind, &step.Key, &status, &dependsOn,
		&step.InputFingerprint, &step.InputData, &step.OutputData, &step.Error,
		&step.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	step.Kind = models.StepKind(kind)
	step.Status = models.StepStatus(status)
	if dependsOn != "" {
		if jsonErr := json.Unmarshal([]byte(dependsOn), &step.DependsOn); jsonErr != nil {
			return nil, fmt.Errorf("unmarshal depends_on for step %s: %w", step.ID, jsonErr)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		step.CompletedAt = &t
	}
	return &step, nil
}
