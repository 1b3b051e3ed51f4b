package commands

import (
	"github.com/raidme/raidme/internal/app"
	"github.com/raidme/raidme/internal/gateway"
	"github.com/raidme/raidme/internal/repoview"
	"github.com/raidme/raidme/internal/session"
)

// stubReply is the deterministic offline-mode reply: one overview atom
// and one structure atom, the same for every step, enough for
// analyze/render to exercise the full pipeline without a model CLI on
// PATH.
const stubReply = `{"summary":"offline analysis","atoms":[{"category":"overview","title":"Repository","content":"Analyzed in offline mode; no model CLI was invoked.","relevance":0.5},{"category":"structure","title":"Layout","content":"Directory layout recorded in offline mode.","relevance":0.5}]}`

// openController resolves settings and builds the session Controller for
// repoRoot, selecting the gateway provider named by settings.Model.Provider
// (or the --offline flag override).
func openController(repoRoot string, settings app.Settings, offline bool) (*session.Controller, error) {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return nil, err
	}

	view := repoview.New(
		repoRoot,
		settings.Repo.IgnoreGlobs,
		settings.Repo.MaxDepth,
		settings.Repo.FileHeadBytes,
		settings.Repo.DirPayloadBytes,
	)

	provider, err := resolveProvider(settings, offline)
	if err != nil {
		return nil, err
	}

	return session.Open(dbPath, settings, view, provider)
}

func resolveProvider(settings app.Settings, offline bool) (gateway.Provider, error) {
	if offline || settings.Model.Provider == "stub" {
		return gateway.NewStubProvider(stubReply), nil
	}
	return gateway.NewCLIProvider(settings.Model.Name)
}
