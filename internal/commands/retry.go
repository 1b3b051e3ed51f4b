package commands

import (
	"github.com/spf13/cobra"

	"github.com/raidme/raidme/internal/app"
	"github.com/raidme/raidme/internal/models"
	"github.com/raidme/raidme/internal/output"
	"github.com/raidme/raidme/internal/store"
)

// NewRetryCmd creates the retry command: flip a session's failed steps
// back to pending so the next analyze run re-attempts them.
func NewRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <repo>",
		Short: "Flip a repository's failed steps back to pending",
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

			var retried []string
			if err := withDB(func(db *DB) error {
				_, steps, err := loadSessionAndSteps(cmd.Context(), db, root, revision)
				if err != nil {
					return err
				}
				for _, s := range steps {
					if s.Status != models.StepStatusFailed {
						continue
					}
					if err := store.StepRetry(cmd.Context(), db, s.ID); err != nil {
						return err
					}
					retried = append(retried, s.ID)
				}
				return nil
			}); err != nil {
				return cmdErr(err)
			}

			type result struct {
				RetriedSteps []string `json:"retried_steps"`
				Count        int      `json:"count"`
			}
			return output.PrintSuccess(result{RetriedSteps: retried, Count: len(retried)})
		},
	}
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}
