package commands

import (
	"database/sql"
	"errors"

	"github.com/spf13/cobra"

	"github.com/raidme/raidme/internal/app"
	"github.com/raidme/raidme/internal/output"
	"github.com/raidme/raidme/internal/store"
)

// NewResetCmd creates the reset command: drop a repository's session
// entirely, discarding every step and atom, so the next analyze starts
// fresh.
func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <repo>",
		Short: "Drop a repository's analysis session",
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

			var sessionID string
			if err := withDB(func(db *DB) error {
				sess, err := store.SessionFind(cmd.Context(), db, root, revision)
				if err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return errors.New("no session found for this repository at its current revision")
					}
					return err
				}
				sessionID = sess.ID
				return store.SessionDelete(cmd.Context(), db, sess.ID)
			}); err != nil {
				return cmdErr(err)
			}

			type result struct {
				SessionID string `json:"session_id"`
				Dropped   bool   `json:"dropped"`
			}
			return output.PrintSuccess(result{SessionID: sessionID, Dropped: true})
		},
	}
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}
