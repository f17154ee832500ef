package znflow

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel error kinds. Use errors.Is against these, or errors.As against
// the wrapping concrete types below when the extra fields are needed.
var (
	ErrScopeNesting          = errors.New("scope nesting")
	ErrAttributeMissing      = errors.New("attribute missing")
	ErrConnectionAttribute   = errors.New("connection attribute access")
	ErrCycleDetected         = errors.New("cycle detected")
	ErrExternalTaskExecution = errors.New("external task execution")
	ErrCombination           = errors.New("combination error")
	ErrGroup                 = errors.New("group error")
	ErrBackend               = errors.New("backend error")
	ErrType                  = errors.New("type error")
	ErrValue                 = errors.New("value error")
)

// ScopeNestingError is raised when a scope is entered while one is already
// active, or when the active scope pointer is mutated from inside a scope.
type ScopeNestingError struct {
	Msg string
}

func (e *ScopeNestingError) Error() string { return fmt.Sprintf("scope nesting: %s", e.Msg) }
func (e *ScopeNestingError) Unwrap() error  { return ErrScopeNesting }

func newScopeNestingError(format string, args ...any) error {
	return errors.WithStack(&ScopeNestingError{Msg: fmt.Sprintf(format, args...)})
}

// AttributeMissingError is raised when an in-scope attribute read names a
// field the task does not define.
type AttributeMissingError struct {
	TaskName  string
	Attribute string
}

func (e *AttributeMissingError) Error() string {
	return fmt.Sprintf("task %q has no attribute %q", e.TaskName, e.Attribute)
}
func (e *AttributeMissingError) Unwrap() error { return ErrAttributeMissing }

func newAttributeMissingError(taskName, attr string) error {
	return errors.WithStack(&AttributeMissingError{TaskName: taskName, Attribute: attr})
}

// ConnectionAttributeError is raised when code attempts to chain another
// attribute access off an already-produced Connection.
type ConnectionAttributeError struct {
	Attribute string
}

func (e *ConnectionAttributeError) Error() string {
	return fmt.Sprintf("cannot access attribute %q of a Connection", e.Attribute)
}
func (e *ConnectionAttributeError) Unwrap() error { return ErrConnectionAttribute }

// CycleDetectedError is raised when a topological order would not exist.
type CycleDetectedError struct {
	Path []string
}

func (e *CycleDetectedError) Error() string {
	if len(e.Path) == 0 {
		return "cycle detected"
	}
	msg := e.Path[0]
	for _, n := range e.Path[1:] {
		msg += " -> " + n
	}
	return "cycle detected: " + msg
}
func (e *CycleDetectedError) Unwrap() error { return ErrCycleDetected }

// ExternalTaskExecutionError is raised when a deployment is asked to
// execute a task marked external (parallel backend only).
type ExternalTaskExecutionError struct {
	TaskName string
}

func (e *ExternalTaskExecutionError) Error() string {
	return fmt.Sprintf("task %q is external and must not be executed", e.TaskName)
}
func (e *ExternalTaskExecutionError) Unwrap() error { return ErrExternalTaskExecution }

// NewExternalTaskExecutionError reports that a deployment tried to execute
// an external task. Exported for the deploy package: only the worker-pool
// variant raises it (spec.md §7: "parallel backend only") since the
// sequential deployment simply treats an external task's run step as a
// no-op rather than treating dispatch to it as an error.
func NewExternalTaskExecutionError(taskName string) error {
	return errors.WithStack(&ExternalTaskExecutionError{TaskName: taskName})
}

// CombinationError is raised when combining a non-list reference, or
// re-slicing an already-sliced combined reference.
type CombinationError struct {
	Msg string
}

func (e *CombinationError) Error() string { return fmt.Sprintf("combination error: %s", e.Msg) }
func (e *CombinationError) Unwrap() error  { return ErrCombination }

func newCombinationError(format string, args ...any) error {
	return errors.WithStack(&CombinationError{Msg: fmt.Sprintf(format, args...)})
}

// GroupError is raised when opening nested groups, or a group with no names.
type GroupError struct {
	Msg string
}

func (e *GroupError) Error() string { return fmt.Sprintf("group error: %s", e.Msg) }
func (e *GroupError) Unwrap() error  { return ErrGroup }

func newGroupError(format string, args ...any) error {
	return errors.WithStack(&GroupError{Msg: fmt.Sprintf(format, args...)})
}

// BackendError wraps a failure reported by a pluggable worker backend.
type BackendError struct {
	Msg   string
	Cause error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("backend error: %s", e.Msg)
}
func (e *BackendError) Unwrap() error { return ErrBackend }

// NewBackendError wraps an error returned by a worker backend.
func NewBackendError(msg string, cause error) error {
	return errors.WithStack(&BackendError{Msg: msg, Cause: cause})
}

// TypeErrorDetail is raised for '+'-style concatenation against an
// unsupported type, or for iterating a single-value reference at build time.
type TypeErrorDetail struct {
	Msg string
}

func (e *TypeErrorDetail) Error() string { return fmt.Sprintf("type error: %s", e.Msg) }
func (e *TypeErrorDetail) Unwrap() error  { return ErrType }

func newTypeError(format string, args ...any) error {
	return errors.WithStack(&TypeErrorDetail{Msg: fmt.Sprintf(format, args...)})
}

// ValueErrorDetail is raised for duplicate task identity or duplicate
// combine-as-map-key keys.
type ValueErrorDetail struct {
	Msg string
}

func (e *ValueErrorDetail) Error() string { return fmt.Sprintf("value error: %s", e.Msg) }
func (e *ValueErrorDetail) Unwrap() error  { return ErrValue }

func newValueError(format string, args ...any) error {
	return errors.WithStack(&ValueErrorDetail{Msg: fmt.Sprintf(format, args...)})
}
