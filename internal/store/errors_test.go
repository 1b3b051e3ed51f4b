package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raidme/raidme/internal/models"
)

// TestRecoverableError_Is verifies each struct type matches its own sentinel
// via errors.Is and does not cross-match the other sentinel.
func TestRecoverableError_Is(t *testing.T) {
	conflict := &StepConflictError{StepID: "s1", CurrentStatus: "running"}
	unsatisfied := &DependencyNotSatisfiedError{StepID: "s2", Pending: []string{"s1"}}

	assert.ErrorIs(t, conflict, ErrStepConflict)
	assert.ErrorIs(t, unsatisfied, ErrDependencyNotSatisfied)

	assert.False(t, errors.Is(conflict, ErrDependencyNotSatisfied))
	assert.False(t, errors.Is(unsatisfied, ErrStepConflict))
}

func TestRecoverableError_ErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      models.RecoverableError
		wantCode string
	}{
		{"StepConflictError", &StepConflictError{StepID: "s1", CurrentStatus: "running"}, "STEP_CONFLICT"},
		{"DependencyNotSatisfiedError", &DependencyNotSatisfiedError{StepID: "s2"}, "DEPENDENCY_NOT_SATISFIED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantCode, tc.err.ErrorCode())
		})
	}
}

func TestRecoverableError_Context(t *testing.T) {
	t.Run("StepConflictError", func(t *testing.T) {
		e := &StepConflictError{StepID: "s1", CurrentStatus: "done"}
		ctx := e.Context()
		require.Contains(t, ctx, "step_id")
		require.Contains(t, ctx, "current_status")
		assert.Equal(t, "s1", ctx["step_id"])
		assert.Equal(t, "done", ctx["current_status"])
	})

	t.Run("DependencyNotSatisfiedError", func(t *testing.T) {
		e := &DependencyNotSatisfiedError{StepID: "s2", Pending: []string{"s0"}}
		ctx := e.Context()
		require.Contains(t, ctx, "step_id")
		assert.Equal(t, "s2", ctx["step_id"])
	})
}

func TestRecoverableError_SuggestedAction(t *testing.T) {
	tests := []models.RecoverableError{
		&StepConflictError{StepID: "s1", CurrentStatus: "running"},
		&DependencyNotSatisfiedError{StepID: "s2"},
	}
	for _, err := range tests {
		assert.NotEmpty(t, err.SuggestedAction())
	}
}

// TestRecoverableError_WrappedIs verifies errors.Is works through fmt.Errorf %w wrapping chains.
func TestRecoverableError_WrappedIs(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &StepConflictError{StepID: "s1", CurrentStatus: "running"})
	assert.ErrorIs(t, wrapped, ErrStepConflict)

	doubleWrapped := fmt.Errorf("level2: %w", fmt.Errorf("level1: %w", &DependencyNotSatisfiedError{StepID: "s2"}))
	assert.ErrorIs(t, doubleWrapped, ErrDependencyNotSatisfied)
}
