// Package executor runs one analysis step end to end: build its prompt,
// claim it, call the model gateway, parse the reply, and commit the
// result, with separate retry budgets for transport and parse failures.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/raidme/raidme/internal/gateway"
	"github.com/raidme/raidme/internal/models"
	"github.com/raidme/raidme/internal/prompt"
	"github.com/raidme/raidme/internal/store"
)

// Config holds the per-call tunables recognized under model.* and
// context.* in configuration.
type Config struct {
	DeadlineSeconds int
	ParseRetries    int
	TokenCeiling    int
}

// Executor drives one step through the claim/call/parse/commit sequence
// described on Execute.
type Executor struct {
	DB       *sql.DB
	Provider gateway.Provider
	Config   Config
}

// Execute runs the seven-step sequence for one step: read context, build
// the prompt, claim the step, call the gateway, parse (with repair
// retries on malformed replies), and commit.
func (e *Executor) Execute(ctx context.Context, sessionID string, step *models.Step, rawData string) error {
	atoms, err := store.AtomsFor(ctx, e.DB, sessionID, "")
	if err != nil {
		return fmt.Errorf("read context snapshot: %w", err)
	}

	assembled := prompt.Build(step.Kind, rawData, atoms, e.Config.TokenCeiling)

	if err := store.StepClaim(ctx, e.DB, step.ID, assembled.InputFingerprint, assembled.Text); err != nil {
		return fmt.Errorf("claim step %s: %w", step.ID, err)
	}

	slog.Info("step claimed", "session_id", sessionID, "step_id", step.ID, "kind", step.Kind)

	deadline := time.Duration(e.Config.DeadlineSeconds) * time.Second
	promptText := assembled.Text

	var envelope *Envelope
	var lastReply gateway.Reply

	for attempt := 0; ; attempt++ {
		reply, callErr := e.Provider.Complete(ctx, promptText, assembled.InputFingerprint, deadline)
		if callErr != nil {
			_ = store.StepFail(ctx, e.DB, step.ID, callErr)
			slog.Error("step failed: transport", "session_id", sessionID, "step_id", step.ID, "error", callErr)
			return callErr
		}
		lastReply = reply

		env, parseErr := ParseEnvelope(reply.Text)
		if parseErr == nil {
			envelope = env
			break
		}

		if attempt >= e.Config.ParseRetries {
			exhausted := &gateway.ParseExhaustedError{Attempts: attempt + 1, LastErr: parseErr}
			_ = store.StepFail(ctx, e.DB, step.ID, exhausted)
			slog.Error("step failed: parse exhausted", "session_id", sessionID, "step_id", step.ID, "attempts", attempt+1)
			return exhausted
		}

		slog.Warn("reply parse failed, repairing", "session_id", sessionID, "step_id", step.ID, "attempt", attempt+1, "error", parseErr)
		promptText = repairPrompt(assembled.Text, reply.Text, parseErr)
	}

	atomsOut := envelope.ToModels(sessionID)
	if err := store.StepComplete(ctx, e.DB, step.ID, lastReply.Text, atomsOut); err != nil {
		return fmt.Errorf("commit step %s: %w", step.ID, err)
	}

	slog.Info("step completed", "session_id", sessionID, "step_id", step.ID, "atoms", len(atomsOut))
	return nil
}

// repairPrompt amends the original prompt with the malformed reply and a
// repair instruction, for the next parse-retry attempt. Transport
// failures never consume this path; only a successfully-returned but
// unparseable reply does.
func repairPrompt(original, malformedReply string, parseErr error) string {
	return fmt.Sprintf(
		"%s\n\n## Repair\nYour previous reply could not be parsed: %v\nPrevious reply was:\n%s\nRespond again with ONLY the corrected JSON object.",
		original, parseErr, malformedReply,
	)
}
