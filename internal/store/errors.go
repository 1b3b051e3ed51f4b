package store

import (
	"errors"
	"fmt"
)

// ErrStepConflict is returned when claiming a step that is not pending.
var ErrStepConflict = errors.New("step is not pending")

// ErrStepNotFound is returned when a step id does not exist in the session.
var ErrStepNotFound = errors.New("step not found")

// ErrDependencyNotSatisfied is returned when a step is claimed before all
// of its dependencies have reached done.
var ErrDependencyNotSatisfied = errors.New("step dependency not satisfied")

// StepConflictError replaces ErrStepConflict with structured context.
type StepConflictError struct {
	StepID        string
	CurrentStatus string
}

func (e *StepConflictError) Error() string {
	return fmt.Sprintf("step %s is %s, not pending", e.StepID, e.CurrentStatus)
}
func (e *StepConflictError) ErrorCode() string { return "STEP_CONFLICT" }
func (e *StepConflictError) Context() map[string]string {
	return map[string]string{
		"step_id":        e.StepID,
		"current_status": e.CurrentStatus,
	}
}
func (e *StepConflictError) SuggestedAction() string {
	return fmt.Sprintf("raidme retry <repo> # only affects failed steps; step %s is %s", e.StepID, e.CurrentStatus)
}
func (e *StepConflictError) Is(target error) bool { return target == ErrStepConflict }

// DependencyNotSatisfiedError replaces ErrDependencyNotSatisfied with structured context.
type DependencyNotSatisfiedError struct {
	StepID  string
	Pending []string
}

func (e *DependencyNotSatisfiedError) Error() string {
	return fmt.Sprintf("step %s has unsatisfied dependencies: %v", e.StepID, e.Pending)
}
func (e *DependencyNotSatisfiedError) ErrorCode() string { return "DEPENDENCY_NOT_SATISFIED" }
func (e *DependencyNotSatisfiedError) Context() map[string]string {
	return map[string]string{"step_id": e.StepID}
}
func (e *DependencyNotSatisfiedError) SuggestedAction() string {
	return "wait for dependency steps to complete, or run status to inspect the step graph"
}
func (e *DependencyNotSatisfiedError) Is(target error) bool {
	return target == ErrDependencyNotSatisfied
}
