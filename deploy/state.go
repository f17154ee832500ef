// Package deploy resolves a znflow graph: it walks tasks in dependency
// order, substitutes every embedded Reference with the real value its
// source task produced, and runs (or replays, for immutable graphs) each
// task exactly when its inputs are ready.
//
// Grounded in the teacher's internal/dag executor: the same PENDING /
// RUNNING / COMPLETED / FAILED / SKIPPED state machine and the same
// "fail propagates to every downstream dependent" rule, reindexed from
// task *name* to task *identity* since znflow tasks are not required to
// carry a name.
package deploy

import (
	"fmt"

	"github.com/google/uuid"
)

// TaskState is a task's runtime status during one deployment run.
type TaskState string

const (
	Pending   TaskState = "PENDING"
	Running   TaskState = "RUNNING"
	Completed TaskState = "COMPLETED"
	Failed    TaskState = "FAILED"
	Skipped   TaskState = "SKIPPED"
)

// IsTerminal reports whether a state will not change again this run.
func IsTerminal(s TaskState) bool {
	switch s {
	case Completed, Failed, Skipped:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether a state satisfies a dependent's readiness.
func IsSuccessful(s TaskState) bool {
	return s == Completed
}

// ExecutionState is the mutable per-run status of every task, keyed by
// task identity. A Graph is immutable and reusable across runs; this map
// is not.
type ExecutionState map[uuid.UUID]TaskState

func newExecutionState(ids []uuid.UUID) ExecutionState {
	st := make(ExecutionState, len(ids))
	for _, id := range ids {
		st[id] = Pending
	}
	return st
}

var allowed = map[TaskState][]TaskState{
	Pending: {Running, Skipped},
	Running: {Completed, Failed},
}

// transition performs a validated, from-checked state change.
func transition(state ExecutionState, id uuid.UUID, from, to TaskState) error {
	cur, ok := state[id]
	if !ok {
		return fmt.Errorf("deploy: unknown task %s", id)
	}
	if cur != from {
		return fmt.Errorf("deploy: invalid transition for %s: expected %s, got %s", id, from, cur)
	}
	for _, candidate := range allowed[from] {
		if candidate == to {
			state[id] = to
			return nil
		}
	}
	return fmt.Errorf("deploy: disallowed transition for %s: %s -> %s", id, from, to)
}
