package deploy

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ordinate-sh/znflow"
	"github.com/ordinate-sh/znflow/trace"
)

// Result is the deterministic summary of one deployment run, grounded in
// the teacher's GraphResult (internal/dag/result.go): final per-task
// state plus the order tasks were started in, which is what the
// determinism tests assert against.
type Result struct {
	Order      []uuid.UUID
	FinalState ExecutionState
}

// Deployment runs a Graph to completion. SequentialDeployment and
// WorkerPoolDeployment are the two variants spec.md calls for; both share
// the resolution machinery in resolve.go and state.go, differing only in
// how much of a topological stage they dispatch concurrently.
type Deployment interface {
	// Run executes every task in g.
	Run(g *znflow.Graph) (*Result, error)

	// RunTargets executes only targets and whatever they transitively
	// depend on — the graph-run(nodes=[...]) partial re-execution path
	// the original uses for resolve() and for group-scoped runs.
	RunTargets(g *znflow.Graph, targets ...znflow.Task) (*Result, error)
}

// engine holds the state/resolution logic shared by both deployment
// variants; SequentialDeployment and WorkerPoolDeployment each supply
// their own stage-dispatch strategy.
type engine struct {
	immutable bool
	parallel  bool
	sink      trace.Sink
}

func (e *engine) recorder() trace.Sink {
	if e.sink == nil {
		return trace.NopSink{}
	}
	return e.sink
}

// runTask resolves t's inputs and executes it (Run for a Class Task,
// Invoke for a Function Task). External tasks are never executed — only
// read from — matching spec.md's "external source" row.
func (e *engine) runTask(g *znflow.Graph, t znflow.Task) error {
	if t.IsExternal() {
		// The worker-pool variant never dispatches an external task to its
		// backend at all (see WorkerPoolDeployment.RunTargets, which marks
		// externals Completed without calling Backend.Go); reaching here
		// with e.parallel set means something bypassed that filter.
		if e.parallel {
			return znflow.NewExternalTaskExecutionError(taskLabel(t))
		}
		return nil
	}
	label := taskLabel(t)
	sink := e.recorder()

	if ff, ok := t.(*znflow.FunctionFuture); ok {
		if e.immutable && ff.HasResult() {
			trace.SafeRecord(sink, trace.Event{Kind: trace.EventReused, TaskID: label, Reason: "Immutable"})
			return nil
		}
		trace.SafeRecord(sink, trace.Event{Kind: trace.EventStarted, TaskID: label})
		if err := substituteArgs(g, ff); err != nil {
			return fmt.Errorf("resolving arguments for %s: %w", label, err)
		}
		if err := ff.Invoke(); err != nil {
			trace.SafeRecord(sink, trace.Event{Kind: trace.EventFailed, TaskID: label, Reason: err.Error()})
			return fmt.Errorf("invoking %s: %w", label, err)
		}
		trace.SafeRecord(sink, trace.Event{Kind: trace.EventCompleted, TaskID: label})
		return nil
	}

	run, ok := t.(znflow.Runnable)
	if !ok {
		return nil
	}
	if e.immutable && znflow.MarkAvailable(t) {
		trace.SafeRecord(sink, trace.Event{Kind: trace.EventReused, TaskID: label, Reason: "Immutable"})
		return nil
	}
	trace.SafeRecord(sink, trace.Event{Kind: trace.EventStarted, TaskID: label})
	if err := substituteFields(g, t); err != nil {
		return fmt.Errorf("resolving fields for %s: %w", label, err)
	}
	if err := run.Run(); err != nil {
		trace.SafeRecord(sink, trace.Event{Kind: trace.EventFailed, TaskID: label, Reason: err.Error()})
		return fmt.Errorf("running %s: %w", label, err)
	}
	trace.SafeRecord(sink, trace.Event{Kind: trace.EventCompleted, TaskID: label})
	return nil
}

func taskLabel(t znflow.Task) string {
	type named interface{ Name() string }
	if n, ok := t.(named); ok {
		return n.Name()
	}
	return t.Identity().String()
}

// planOrder returns the tasks to execute, in topological order. When
// targets is empty, the
// whole graph is planned; otherwise only targets and their transitive
// dependencies are (spec.md's partial re-execution / target-restricted
// run, grounded in the original DiGraph.run(nodes=[...])).
func planOrder(g *znflow.Graph, targets []znflow.Task) ([]znflow.Task, error) {
	full, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return full, nil
	}

	include := make(map[uuid.UUID]bool, len(full))
	var mark func(t znflow.Task)
	mark = func(t znflow.Task) {
		id := t.Identity()
		if include[id] {
			return
		}
		include[id] = true
		for _, p := range g.Predecessors(t) {
			mark(p)
		}
	}
	for _, t := range targets {
		mark(t)
	}

	out := make([]znflow.Task, 0, len(include))
	for _, t := range full {
		if include[t.Identity()] {
			out = append(out, t)
		}
	}
	return out, nil
}

// stage groups an ordered task list into dependency "waves": every task
// in a wave only depends on tasks in earlier waves, so every task within
// a wave can run concurrently. Grounded in the teacher's depth-staged
// RunParallel (internal/dag/executor.go), adapted from a precomputed
// depth array (the teacher's TaskGraph caches it) to an on-the-fly
// longest-path computation over the task subset actually being run.
func stage(g *znflow.Graph, order []znflow.Task) [][]znflow.Task {
	depth := make(map[uuid.UUID]int, len(order))
	position := make(map[uuid.UUID]int, len(order))
	for i, t := range order {
		position[t.Identity()] = i
	}
	maxDepth := 0
	for _, t := range order {
		d := 0
		for _, p := range g.Predecessors(t) {
			if _, inSet := position[p.Identity()]; !inSet {
				continue
			}
			if pd := depth[p.Identity()] + 1; pd > d {
				d = pd
			}
		}
		depth[t.Identity()] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	waves := make([][]znflow.Task, maxDepth+1)
	for _, t := range order {
		d := depth[t.Identity()]
		waves[d] = append(waves[d], t)
	}
	for _, wave := range waves {
		sort.Slice(wave, func(i, j int) bool {
			return position[wave[i].Identity()] < position[wave[j].Identity()]
		})
	}
	return waves
}
