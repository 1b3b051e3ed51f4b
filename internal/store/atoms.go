package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/raidme/raidme/internal/models"
)

// AtomsFor returns the knowledge atoms recorded for a session, optionally
// restricted to one category, ordered by relevance descending then creation
// order ascending so ties are stable.
func AtomsFor(ctx context.Context, db *sql.DB, sessionID string, category models.AtomCategory) ([]models.Atom, error) {
	var rows *sql.Rows
	var err error
	if category == "" {
		rows, err = db.QueryContext(ctx, `
			SELECT id, session_id, source_step_id, category, COALESCE(subcategory, ''),
			       title, content, relevance_score, created_at, updated_at
			FROM knowledge_entries
			WHERE session_id = ?
			ORDER BY relevance_score DESC, created_at ASC, id ASC
		`, sessionID)
	} else {
		rows, err = db.QueryContext(ctx, `
			SELECT id, session_id, source_step_id, category, COALESCE(subcategory, ''),
			       title, content, relevance_score, created_at, updated_at
			FROM knowledge_entries
			WHERE session_id = ? AND category = ?
			ORDER BY relevance_score DESC, created_at ASC, id ASC
		`, sessionID, string(category))
	}
	if err != nil {
		return nil, fmt.Errorf("query atoms: %w", err)
	}
	defer rows.Close()

	var atoms []models.Atom
	for rows.Next() {
		var atom models.Atom
		var cat string
		if scanErr := rows.Scan(
			&atom.ID, &atom.SessionID, &atom.SourceStepID, &cat, &atom.Subcategory,
			&atom.Title, &atom.Content, &atom.Relevance, &atom.CreatedAt, &atom.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan atom: %w", scanErr)
		}
		atom.Category = models.AtomCategory(cat)
		atoms = append(atoms, atom)
	}
	return atoms, rows.Err()
}

// AtomCount returns the number of atoms recorded for a session, used by
// status reporting.
func AtomCount(ctx context.Context, db *sql.DB, sessionID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_entries WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count atoms: %w", err)
	}
	return n, nil
}
