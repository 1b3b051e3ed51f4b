package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_RetriesBusy(t *testing.T) {
	attempts := 0
	busyErr := errors.New("SQLITE_BUSY: database is locked")
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return busyErr
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_DoesNotRetryStepConflict(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return &StepConflictError{StepID: "s1", CurrentStatus: "running"}
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		return nil
	})
	require.Error(t, err)
	require.Equal(t, 0, attempts)
}
