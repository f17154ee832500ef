package deploy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ordinate-sh/znflow"
	"github.com/ordinate-sh/znflow/trace"
)

// Future is a handle to work submitted to a Backend.
type Future interface {
	// Await blocks until the work finishes and returns its error, if any.
	Await() error

	// Cancel signals that the work's result is no longer wanted, because a
	// sibling in the same wave already failed (spec.md §6: "future.cancel()").
	// Implementations are best-effort: work already past any cancellation
	// point runs to completion, and Cancel never blocks waiting for that.
	Cancel()
}

// Backend dispatches work concurrently. The znflow/workerpool package
// supplies the production implementation, built on
// golang.org/x/sync/errgroup; tests can supply a trivial
// synchronous-Future Backend instead.
type Backend interface {
	Go(fn func() error) Future
}

// WorkerPoolDeployment executes each topological "wave" of independent
// tasks concurrently through a Backend, waiting for the whole wave to
// finish before starting the next — the same depth-staged dispatch
// strategy as the teacher's Executor.RunParallel (internal/dag/executor.go),
// adapted to dispatch through a pluggable Backend instead of a fixed
// internal worker-count/channel pair.
type WorkerPoolDeployment struct {
	engine
	Backend Backend
}

// NewWorkerPoolDeployment returns a WorkerPoolDeployment driven by backend.
func NewWorkerPoolDeployment(backend Backend, immutable bool) *WorkerPoolDeployment {
	return &WorkerPoolDeployment{engine{immutable: immutable, parallel: true}, backend}
}

// WithSink attaches a trace.Sink that observes every task's start,
// completion, failure, and skip/reuse decision during Run/RunTargets.
func (d *WorkerPoolDeployment) WithSink(sink trace.Sink) *WorkerPoolDeployment {
	d.sink = sink
	return d
}

func (d *WorkerPoolDeployment) Run(g *znflow.Graph) (*Result, error) {
	return d.RunTargets(g)
}

func (d *WorkerPoolDeployment) RunTargets(g *znflow.Graph, targets ...znflow.Task) (*Result, error) {
	order, err := planOrder(g, targets)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(order))
	for i, t := range order {
		ids[i] = t.Identity()
	}
	state := newExecutionState(ids)
	result := &Result{FinalState: state}

	waves := stage(g, order)
	for _, wave := range waves {
		runnable := make([]znflow.Task, 0, len(wave))
		for _, t := range wave {
			if state[t.Identity()] != Pending {
				continue // already Skipped by an earlier failure this wave
			}
			if t.IsExternal() {
				// External tasks are pre-populated sources: never submitted
				// to the backend at all (spec.md §4.5/§7). Commit them
				// straight to Completed so their dependents become ready.
				id := t.Identity()
				if err := transition(state, id, Pending, Running); err != nil {
					return nil, err
				}
				result.Order = append(result.Order, id)
				if err := transition(state, id, Running, Completed); err != nil {
					return nil, err
				}
				continue
			}
			runnable = append(runnable, t)
		}
		if len(runnable) == 0 {
			continue
		}

		for _, t := range runnable {
			if err := transition(state, t.Identity(), Pending, Running); err != nil {
				return nil, err
			}
			result.Order = append(result.Order, t.Identity())
		}

		futures := make([]Future, len(runnable))
		for i, t := range runnable {
			t := t
			futures[i] = d.Backend.Go(func() error { return d.runTask(g, t) })
		}

		var firstErr error
		for i, f := range futures {
			t := runnable[i]
			id := t.Identity()
			if runErr := f.Await(); runErr != nil {
				state[id] = Failed
				if firstErr == nil {
					firstErr = fmt.Errorf("deploy: %w", runErr)
					// A wave-mate failed: the rest of this wave's work is no
					// longer wanted, so tell every other in-flight future to
					// stop (best-effort; Await below still runs so their
					// goroutines are drained before the next wave starts).
					for j, sibling := range futures {
						if j != i {
							sibling.Cancel()
						}
					}
				}
				if perr := propagateSkipped(g, order, state, id, d.recorder()); perr != nil {
					return nil, perr
				}
				continue
			}
			if err := transition(state, id, Running, Completed); err != nil {
				return nil, err
			}
		}
		if firstErr != nil {
			return result, firstErr
		}
	}

	return result, nil
}
