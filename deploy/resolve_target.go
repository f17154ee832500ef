package deploy

import "github.com/ordinate-sh/znflow"

// Resolve realizes a single Reference by running only the tasks it
// transitively depends on, then reading the resolved value — the Go
// counterpart of the original's resolve(), which disables the active
// graph, checks whether the node already has a result, and otherwise
// calls graph.run(nodes=[...]) scoped to just that one node.
//
// d drives the restricted run; pass a SequentialDeployment unless the
// reference depends on enough independent work to be worth a worker
// pool. immutable deployments skip tasks that already ran.
func Resolve(d Deployment, g *znflow.Graph, ref znflow.Reference) (any, error) {
	restore := znflow.DisableScope()
	defer restore()

	for _, t := range sourceTasks(g, ref) {
		if _, err := d.RunTargets(g, t); err != nil {
			return nil, err
		}
	}
	return resolveReference(g, ref)
}

// sourceTasks returns the task(s) a Reference ultimately points at, so
// Resolve knows what to pass to RunTargets.
func sourceTasks(g *znflow.Graph, ref znflow.Reference) []znflow.Task {
	switch v := ref.(type) {
	case znflow.Connection:
		if t, ok := g.TaskByID(v.TaskID); ok {
			return []znflow.Task{t}
		}
		return nil
	case *znflow.CombinedConnection:
		var out []znflow.Task
		for _, item := range v.Items {
			out = append(out, sourceTasks(g, item)...)
		}
		return out
	case *znflow.FunctionFuture:
		return []znflow.Task{v}
	default:
		return nil
	}
}

// ResultOf resolves ref using a fresh immutable SequentialDeployment —
// the common case of "just give me this one value" with no need to
// share a deployment across multiple calls.
func ResultOf(g *znflow.Graph, ref znflow.Reference) (any, error) {
	return Resolve(NewSequentialDeployment(true), g, ref)
}
