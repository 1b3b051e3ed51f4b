package commands

import (
	"github.com/spf13/cobra"

	"github.com/raidme/raidme/internal/app"
	"github.com/raidme/raidme/internal/output"
)

// NewAnalyzeCmd creates the analyze command: run or resume a session
// against a repository, producing its knowledge file.
func NewAnalyzeCmd() *cobra.Command {
	var hints string
	var offline bool

	cmd := &cobra.Command{
		Use:   "analyze <repo>",
		Short: "Run or resume an analysis session against a repository",
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

			ctrl, err := openController(root, settings, offline)
			if err != nil {
				return cmdErr(err)
			}
			defer func() { _ = ctrl.Close() }()

			knowledge, sess, err := ctrl.Run(cmd.Context(), root, revision, hints)
			if err != nil {
				return cmdErr(err)
			}

			if err := writeKnowledgeFile(root, settings.Output.Path, knowledge); err != nil {
				return cmdErr(err)
			}

			type result struct {
				SessionID string `json:"session_id"`
				RepoRoot  string `json:"repo_root"`
				Revision  string `json:"revision"`
				Status    string `json:"status"`
				Output    string `json:"output_path"`
			}
			return output.PrintSuccess(result{
				SessionID: sess.ID,
				RepoRoot:  sess.RepoRoot,
				Revision:  sess.Revision,
				Status:    string(sess.Status),
				Output:    settings.Output.Path,
			})
		},
	}
	cmd.Annotations = map[string]string{"mutates": "true"}
	cmd.Flags().StringVar(&hints, "hints", "", "Free-text hints to steer analysis")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use the deterministic stub provider instead of a model CLI")
	return cmd
}
