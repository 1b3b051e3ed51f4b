package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ScriptedReply is one canned response a StubProvider returns for a given
// idempotency key, in sequence. Used to script the S4/S5 test scenarios:
// malformed-then-valid replies, or permanent failure after N attempts.
type ScriptedReply struct {
	Text string
	Err  error
}

// StubProvider is a deterministic, offline Provider used by tests and
// --offline mode. Each idempotency key has its own reply sequence; once
// exhausted, the last scripted reply repeats.
type StubProvider struct {
	mu      sync.Mutex
	scripts map[string][]ScriptedReply
	calls   map[string]int

	// Default is returned for any idempotency key with no script.
	Default string

	// Policy governs the internal transport retry loop, exactly as a real
	// provider would apply one around its network call.
	Policy RetryPolicy
}

// NewStubProvider returns an empty StubProvider that echoes Default for
// any call.
func NewStubProvider(defaultReply string) *StubProvider {
	return &StubProvider{
		scripts: map[string][]ScriptedReply{},
		calls:   map[string]int{},
		Default: defaultReply,
		Policy:  DefaultRetryPolicy,
	}
}

// Script registers the reply sequence for one idempotency key.
func (s *StubProvider) Script(idempotencyKey string, replies ...ScriptedReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[idempotencyKey] = replies
}

// Complete implements Provider, applying the same internal transport-retry
// loop a real provider would around its network call.
func (s *StubProvider) Complete(ctx context.Context, prompt string, idempotencyKey string, deadline time.Duration) (Reply, error) {
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	return withTransportRetry(ctx, s.Policy, func() (Reply, error) {
		s.mu.Lock()
		script := s.scripts[idempotencyKey]
		idx := s.calls[idempotencyKey]
		s.calls[idempotencyKey] = idx + 1
		s.mu.Unlock()

		if len(script) == 0 {
			return Reply{Text: s.Default}, nil
		}
		if idx >= len(script) {
			idx = len(script) - 1
		}
		step := script[idx]
		if step.Err != nil {
			return Reply{}, step.Err
		}
		return Reply{Text: step.Text}, nil
	})
}

// CallCount returns how many times Complete was invoked for a given key,
// used by tests asserting retry/repair attempt counts.
func (s *StubProvider) CallCount(idempotencyKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[idempotencyKey]
}

// AlwaysTransient returns a ScriptedReply simulating a 503-equivalent
// transient failure, for S5-style exhaustion tests.
func AlwaysTransient(reason string) ScriptedReply {
	return ScriptedReply{Err: &TransientError{Cause: fmt.Errorf("%s", reason)}}
}
