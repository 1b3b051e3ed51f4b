package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const disableExternalLLMEnv = "RAIDME_DISABLE_EXTERNAL_LLM"

const claudeHooklessSettingsJSON = `{"hooks":{}}`

const maxPromptBytes = 16000

// validatePrompt checks for unsafe characters in prompts.
// While Go's exec avoids shell injection (no shell involved),
// this is defense-in-depth: external CLIs may be shell scripts.
func validatePrompt(s string) error {
	if len(s) == 0 {
		return errors.New("empty prompt")
	}
	if len(s) > maxPromptBytes {
		return fmt.Errorf("prompt exceeds %d byte limit (%d bytes)", maxPromptBytes, len(s))
	}
	if strings.ContainsRune(s, 0) {
		return errors.New("prompt contains null byte")
	}
	return nil
}

// CLIProvider dispatches completion prompts to a local model CLI tool
// instead of an HTTP API. No API keys required — the CLI handles its
// own auth.
type CLIProvider struct {
	command string
	args    func(prompt string) []string
	Policy  RetryPolicy
}

// NewCLIProvider returns a CLIProvider for the given tool name ("claude"
// or "opencode"). Returns an error if the tool is unknown, disabled via
// RAIDME_DISABLE_EXTERNAL_LLM, or not found in PATH.
func NewCLIProvider(toolName string) (*CLIProvider, error) {
	if strings.TrimSpace(os.Getenv(disableExternalLLMEnv)) != "" {
		return nil, fmt.Errorf("external model CLI execution disabled by %s", disableExternalLLMEnv)
	}

	p, err := resolveCLIProvider(toolName)
	if err != nil {
		return nil, err
	}
	if _, err := exec.LookPath(p.command); err != nil {
		return nil, fmt.Errorf("model cli %q not found in PATH: %w", p.command, err)
	}
	p.Policy = DefaultRetryPolicy
	return p, nil
}

func resolveCLIProvider(toolName string) (*CLIProvider, error) {
	name := strings.ToLower(toolName)
	switch {
	case strings.HasPrefix(name, "opencode"):
		return &CLIProvider{
			command: "opencode",
			args:    func(p string) []string { return []string{"run", p} },
		}, nil
	case strings.HasPrefix(name, "claude"), name == "":
		return &CLIProvider{
			command: "claude",
			args: func(p string) []string {
				return []string{"-p", p, "--output-format", "text", "--settings", claudeHooklessSettingsJSON}
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown model cli %q (supported: claude, opencode)", toolName)
	}
}

// limitedWriter caps writes at maxBytes, silently discarding overflow.
// This prevents OOM from a misbehaving CLI emitting unbounded stderr.
type limitedWriter struct {
	buf      bytes.Buffer
	maxBytes int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	originalLen := len(p)
	remaining := w.maxBytes - w.buf.Len()
	if remaining <= 0 {
		return originalLen, nil
	}
	if len(p) > remaining {
		p = p[:remaining]
	}
	w.buf.Write(p)
	return originalLen, nil
}

// Complete implements Provider by shelling out to the CLI tool, with the
// same transport-retry wrapper as the stub applies, classifying non-zero
// exits and context deadlines as transient (worth another attempt) and
// validation/configuration failures as permanent.
func (p *CLIProvider) Complete(ctx context.Context, prompt string, idempotencyKey string, deadline time.Duration) (Reply, error) {
	if err := validatePrompt(prompt); err != nil {
		return Reply{}, &TransportPermanentError{Reason: "invalid_prompt", Cause: err}
	}

	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	return withTransportRetry(ctx, p.Policy, func() (Reply, error) {
		return p.runOnce(ctx, prompt)
	})
}

func (p *CLIProvider) runOnce(ctx context.Context, prompt string) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, &TransientError{Cause: fmt.Errorf("context expired before exec: %w", err)}
	}

	args := p.args(prompt)
	cmd := exec.CommandContext(ctx, p.command, args...) //nolint:gosec // G204: command is the configured model CLI binary, validated at construction
	cmd.Env = os.Environ()

	var stdout bytes.Buffer
	stderrW := &limitedWriter{maxBytes: 4096}
	cmd.Stdout = &stdout
	cmd.Stderr = stderrW

	if err := cmd.Run(); err != nil {
		stderrMsg := stderrW.buf.String()
		if stderrW.buf.Len() >= stderrW.maxBytes {
			stderrMsg += " (truncated)"
		}
		wrapped := fmt.Errorf("cli %s failed: %w (stderr: %s)", p.command, err, stderrMsg)
		if ctx.Err() != nil {
			return Reply{}, &TransientError{Cause: wrapped}
		}
		return Reply{}, &TransientError{Cause: wrapped}
	}

	return Reply{Text: strings.TrimSpace(stdout.String())}, nil
}

// Command returns the CLI command name this provider invokes.
func (p *CLIProvider) Command() string {
	return p.command
}
