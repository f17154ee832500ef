package deploy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ordinate-sh/znflow"
	"github.com/ordinate-sh/znflow/trace"
)

// SequentialDeployment runs every task one at a time, in topological
// order, on the calling goroutine. It is the simplest Deployment and the
// one Resolve's short-circuit path uses internally, since a single
// reference is rarely worth spinning up a worker pool for.
type SequentialDeployment struct {
	engine
}

// NewSequentialDeployment returns a SequentialDeployment. When immutable
// is true, a task already marked available from a prior run is not
// re-executed (spec.md's immutability caching); set it false to force
// every task to rerun each time Run/RunTargets is called.
func NewSequentialDeployment(immutable bool) *SequentialDeployment {
	return &SequentialDeployment{engine{immutable: immutable}}
}

// WithSink attaches a trace.Sink that observes every task's start,
// completion, failure, and skip/reuse decision during Run/RunTargets.
func (d *SequentialDeployment) WithSink(sink trace.Sink) *SequentialDeployment {
	d.sink = sink
	return d
}

func (d *SequentialDeployment) Run(g *znflow.Graph) (*Result, error) {
	return d.RunTargets(g)
}

func (d *SequentialDeployment) RunTargets(g *znflow.Graph, targets ...znflow.Task) (*Result, error) {
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
	for _, t := range order {
		id := t.Identity()
		if err := transition(state, id, Pending, Running); err != nil {
			return nil, err
		}
		result.Order = append(result.Order, id)

		if err := d.runTask(g, t); err != nil {
			state[id] = Failed
			if ferr := propagateSkipped(g, order, state, id, d.recorder()); ferr != nil {
				return nil, ferr
			}
			return result, fmt.Errorf("deploy: %w", err)
		}
		if err := transition(state, id, Running, Completed); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// propagateSkipped marks every not-yet-terminal task reachable from the
// failed task as Skipped, mirroring the teacher's FailAndPropagate.
func propagateSkipped(g *znflow.Graph, order []znflow.Task, state ExecutionState, failed uuid.UUID, sink trace.Sink) error {
	inSet := make(map[uuid.UUID]bool, len(order))
	byID := make(map[uuid.UUID]znflow.Task, len(order))
	for _, t := range order {
		inSet[t.Identity()] = true
		byID[t.Identity()] = t
	}
	causeLabel := taskLabel(byID[failed])

	visited := map[uuid.UUID]bool{failed: true}
	queue := []uuid.UUID{failed}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		t, ok := byID[cur]
		if !ok {
			continue
		}
		for _, succ := range g.Successors(t) {
			sid := succ.Identity()
			if !inSet[sid] || visited[sid] {
				continue
			}
			visited[sid] = true
			if state[sid] == Pending {
				state[sid] = Skipped
				trace.SafeRecord(sink, trace.Event{
					Kind: trace.EventSkipped, TaskID: taskLabel(succ),
					Reason: "UpstreamFailed", Cause: causeLabel,
				})
			}
			queue = append(queue, sid)
		}
	}
	return nil
}
