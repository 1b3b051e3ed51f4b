// Package gateway defines the single-operation model-call capability the
// rest of the pipeline consumes, and ships two concrete providers: a
// deterministic stub for tests and offline mode, and a CLI-subprocess
// provider that shells out to a local model tool.
package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reply is a provider's raw textual response to one Complete call. Parsing
// it into the structured envelope is the Step Executor's job, not the
// gateway's.
type Reply struct {
	Text string
}

// Provider is the polymorphic capability every gateway variant implements.
// The core consumes only this interface; the concrete variant is resolved
// once at session construction.
type Provider interface {
	Complete(ctx context.Context, prompt string, idempotencyKey string, deadline time.Duration) (Reply, error)
}

// RetryPolicy configures the transport-level retry a Provider performs
// internally before surfacing a permanent failure.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy mirrors store.RetryWithBackoff's tuning, applied here
// to transport errors instead of SQLite contention.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      5,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// withTransportRetry runs op with exponential backoff, stopping early if op
// returns a permanent error. It does not itself enforce the deadline;
// callers pass a context already bounded by one.
func withTransportRetry(ctx context.Context, policy RetryPolicy, op func() (Reply, error)) (Reply, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = 0 // bounded by attempt count and ctx instead of elapsed time

	var reply Reply
	attempt := 0
	err := backoff.Retry(func() error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		attempt++
		var opErr error
		reply, opErr = op()
		if opErr == nil {
			return nil
		}
		if !IsTransient(opErr) {
			return backoff.Permanent(opErr)
		}
		if attempt > policy.MaxRetries {
			return backoff.Permanent(opErr)
		}
		return opErr
	}, backoff.WithContext(b, ctx))

	return reply, err
}
