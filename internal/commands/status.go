package commands

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/raidme/raidme/internal/app"
	"github.com/raidme/raidme/internal/models"
	"github.com/raidme/raidme/internal/output"
	"github.com/raidme/raidme/internal/store"
)

// NewStatusCmd creates the status command: print the step table for a
// repository's analysis session.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <repo>",
		Short: "Print the step table for a repository's analysis session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := app.LoadSettings()
			if err != nil {
				return cmdErr(err)
			}
			settings = settings.WithDefaults()

			root, revision, err := resolveRepo(args[0], settings.Output.Path)
			if err != nil {
				return cmdErr(err)
			}

			return withDB(func(db *DB) error {
				sess, steps, err := loadSessionAndSteps(cmd.Context(), db, root, revision)
				if err != nil {
					return err
				}

				type stepRow struct {
					ID     string   `json:"id"`
					Kind   string   `json:"kind"`
					Key    string   `json:"key,omitempty"`
					Status string   `json:"status"`
					Deps   []string `json:"depends_on,omitempty"`
					Error  string   `json:"error,omitempty"`
					Age    string   `json:"age"`
				}
				rows := make([]stepRow, 0, len(steps))
				for _, s := range steps {
					rows = append(rows, stepRow{
						ID: s.ID, Kind: string(s.Kind), Key: s.Key,
						Status: string(s.Status), Deps: s.DependsOn, Error: s.Error,
						Age: humanize.Time(s.CreatedAt),
					})
				}

				atomCount, err := store.AtomCount(cmd.Context(), db, sess.ID)
				if err != nil {
					return err
				}

				type result struct {
					SessionID string    `json:"session_id"`
					RepoRoot  string    `json:"repo_root"`
					Revision  string    `json:"revision"`
					Status    string    `json:"status"`
					AtomCount int       `json:"atom_count"`
					Steps     []stepRow `json:"steps"`
				}
				return output.PrintSuccess(result{
					SessionID: sess.ID, RepoRoot: sess.RepoRoot, Revision: sess.Revision,
					Status: string(sess.Status), AtomCount: atomCount, Steps: rows,
				})
			})
		},
	}
	return cmd
}

// loadSessionAndSteps finds the session for (repoRoot, revision) and lists
// its steps, returning a clear error if no session has been started yet.
func loadSessionAndSteps(ctx context.Context, db *DB, repoRoot, revision string) (*models.Session, []*models.Step, error) {
	sess, err := store.SessionFind(ctx, db, repoRoot, revision)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, errors.New("no session found for this repository at its current revision: run 'raidme analyze' first")
		}
		return nil, nil, err
	}
	steps, err := store.StepsForSession(ctx, db, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	return sess, steps, nil
}
