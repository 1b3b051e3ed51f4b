package commands

import (
	"database/sql"
	"errors"

	"github.com/spf13/cobra"

	"github.com/raidme/raidme/internal/app"
	"github.com/raidme/raidme/internal/output"
	"github.com/raidme/raidme/internal/repoview"
	"github.com/raidme/raidme/internal/session"
	"github.com/raidme/raidme/internal/store"
)

// NewRenderCmd creates the render command: regenerate the knowledge file
// from a session's existing atoms without running any new step.
func NewRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <repo>",
		Short: "Regenerate the knowledge file from the current session's atoms",
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

			dbPath, err := app.GetDBPath()
			if err != nil {
				return cmdErr(err)
			}

			view := repoview.New(root, settings.Repo.IgnoreGlobs, settings.Repo.MaxDepth, settings.Repo.FileHeadBytes, settings.Repo.DirPayloadBytes)
			ctrl, err := session.Open(dbPath, settings, view, nil)
			if err != nil {
				return cmdErr(err)
			}
			defer func() { _ = ctrl.Close() }()

			sess, err := store.SessionFind(cmd.Context(), ctrl.DB, root, revision)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return cmdErr(errors.New("no session found for this repository at its current revision: run 'raidme analyze' first"))
				}
				return cmdErr(err)
			}

			knowledge, err := ctrl.Render(cmd.Context(), sess)
			if err != nil {
				return cmdErr(err)
			}

			if err := writeKnowledgeFile(root, settings.Output.Path, knowledge); err != nil {
				return cmdErr(err)
			}

			type result struct {
				SessionID string `json:"session_id"`
				Output    string `json:"output_path"`
			}
			return output.PrintSuccess(result{SessionID: sess.ID, Output: settings.Output.Path})
		},
	}
	return cmd
}
