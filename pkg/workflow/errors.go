package workflow

import (
	"errors"
	"fmt"
)

var (
	// Definition and compilation errors.
	ErrUnknownKind         = errors.New("unknown step kind")
	ErrDuplicateStep       = errors.New("duplicate step id")
	ErrEmptyStepID         = errors.New("step id is required")
	ErrDuplicateLeadSource = errors.New("lead-source step must use the id \"lead\"")
	ErrUnknownStep         = errors.New("edge references an unknown step")
	ErrUnknownEntry        = errors.New("entry is not a registered step")
	ErrNoTransition        = errors.New("step has no outgoing transition")
	ErrAmbiguousTransition = errors.New("step has more than one outgoing transition")
	ErrNoTerminalPath      = errors.New("path from entry never reaches " + End)

	// Hop limit errors. Define rejects paths over the limit; a run still guards against it.
	ErrHopLimitExceeded = errors.New("hop limit exceeded")
)

// GraphCompilationError reports a structurally invalid definition.
type GraphCompilationError struct {
	Step string
	Err  error
}

func (e *GraphCompilationError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("graph compilation failed: %v", e.Err)
	}

	return fmt.Sprintf("graph compilation failed at step %q: %v", e.Step, e.Err)
}

func (e *GraphCompilationError) Unwrap() error {
	return e.Err
}

func (e *GraphCompilationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func compileError(step string, err error) *GraphCompilationError {
	return &GraphCompilationError{Step: step, Err: err}
}

// GraphExecutionError reports a run that did not reach the terminal marker.
type GraphExecutionError struct {
	RunID string
	Step  string
	Err   error
}

func (e *GraphExecutionError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("graph execution %s failed: %v", e.RunID, e.Err)
	}

	return fmt.Sprintf("graph execution %s failed at step %q: %v", e.RunID, e.Step, e.Err)
}

func (e *GraphExecutionError) Unwrap() error {
	return e.Err
}

func (e *GraphExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsGraphCompilationError checks if an error is a GraphCompilationError.
func IsGraphCompilationError(err error) bool {
	var compileErr *GraphCompilationError

	return errors.As(err, &compileErr)
}

// IsGraphExecutionError checks if an error is a GraphExecutionError.
func IsGraphExecutionError(err error) bool {
	var execErr *GraphExecutionError

	return errors.As(err, &execErr)
}
