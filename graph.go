package znflow

import (
	"container/heap"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ordinate-sh/znflow/internal/walk"
)

// Edge is a committed dependency: task From must resolve before task To can
// run. Attribute names which field of To the value flows into ("" for a
// whole-object wire made with Connect); Index is the positional argument
// index for Function Task edges, or -1 when not applicable.
type Edge struct {
	From, To  uuid.UUID
	Attribute string
	Index     int
	Group     string
}

type taskEntry struct {
	task     Task
	order    int
	external bool
	group    string
}

// Graph is a multi-edge, directed task graph: spec.md's core build-time
// artifact. Tasks are inserted in construction order (via NewTask,
// NodifyFunc, or explicit Ref of an external source). Edges for Class Task
// fields are committed when the enclosing scope is closed; edges for
// Function Task arguments and Connect calls are committed immediately.
//
// Grounded in the teacher's TaskGraph (internal/dag/taskgraph.go), adapted
// from a single-shot "build from a slice, validate once" constructor into
// an incrementally-populated graph that is validated when the scope exits,
// since tasks are discovered one Ref/NodifyFunc call at a time rather than
// handed over as a finished slice.
type Graph struct {
	mu sync.Mutex

	id uuid.UUID

	tasks     map[uuid.UUID]*taskEntry
	order     []uuid.UUID
	nextOrder int

	edges []Edge

	groups      map[string]*Group
	activeGroup *Group
}

// NewGraph returns an empty graph ready to be opened as a build scope.
func NewGraph() *Graph {
	return &Graph{
		id:     uuid.New(),
		tasks:  make(map[uuid.UUID]*taskEntry),
		groups: make(map[string]*Group),
	}
}

// addTask inserts t if it isn't already present. Re-adding the same task
// (e.g. an external source Ref'd from two different consumers) is a no-op.
// A task already owned by a different graph is rejected: spec.md §4.3
// item 4 requires raising when a field references a task built under a
// different, currently-inactive graph, grounded in the original's
// AddEdge.default assertion `value.graph == dag`
// (_examples/original_source/znflow/node.py).
func (g *Graph) addTask(t Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t.Identity() == uuid.Nil {
		t.setIdentity(uuid.New())
	}
	id := t.Identity()
	if _, exists := g.tasks[id]; exists {
		return nil
	}
	if owner := t.graphOwner(); owner != uuid.Nil && owner != g.id {
		return newValueError("task %q belongs to a different graph and cannot be wired into this one", taskDisplayName(t))
	}
	t.setGraphOwner(g.id)

	entry := &taskEntry{task: t, order: g.nextOrder, external: t.IsExternal()}
	g.nextOrder++
	if g.activeGroup != nil {
		entry.group = g.activeGroup.Name()
		g.activeGroup.members = append(g.activeGroup.members, id)
	}
	g.tasks[id] = entry
	g.order = append(g.order, id)
	return nil
}

// wireFunctionArg records the dependency edges implied by argument i of a
// Function Task call, discovered eagerly at call time (unlike Class Task
// fields, which are discovered by finalize at scope exit, a Function
// Task's arguments are a fixed positional list known the instant Nodify's
// closure runs).
func (g *Graph) wireFunctionArg(ff *FunctionFuture, i int, a any) {
	refs := walk.Collect(a, func(v any) bool {
		_, ok := v.(Reference)
		return ok
	})
	for _, r := range refs {
		g.commitReference(r.(Reference), ff.Identity(), "", i)
	}
}

// commitReference records the edge(s) a Reference implies. A Connection or
// FunctionFuture whose source task is registered in this graph under a
// different owning graph is an invariant violation (addTask should have
// already rejected it) and panics rather than silently wiring a
// cross-graph edge, the same defense-in-depth Ref applies at the point a
// task is first referenced (spec.md §4.3 item 4).
func (g *Graph) commitReference(ref Reference, to uuid.UUID, attribute string, index int) {
	switch v := ref.(type) {
	case Connection:
		g.checkOwnership(v.TaskID)
		g.addEdge(Edge{From: v.TaskID, To: to, Attribute: attribute, Index: index})
	case *CombinedConnection:
		for _, item := range v.Items {
			g.commitReference(item, to, attribute, index)
		}
	case *FunctionFuture:
		g.checkOwnership(v.Identity())
		g.addEdge(Edge{From: v.Identity(), To: to, Attribute: attribute, Index: index})
	}
}

func (g *Graph) checkOwnership(id uuid.UUID) {
	g.mu.Lock()
	entry, ok := g.tasks[id]
	g.mu.Unlock()
	if !ok {
		return
	}
	if owner := entry.task.graphOwner(); owner != uuid.Nil && owner != g.id {
		panic(newValueError("task %q belongs to a different graph and cannot be wired into this one", taskDisplayName(entry.task)))
	}
}

func (g *Graph) addEdge(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.edges {
		if existing == e {
			return
		}
	}
	g.edges = append(g.edges, e)
}

// finalize walks every registered Class Task's exported, non-protected
// fields looking for embedded References, and commits the edges they
// imply. Function Tasks are skipped: their dependencies were already
// committed by wireFunctionArg the instant NodifyFunc's closure ran.
//
// Gating is per task, not per graph (spec.md §4.3: "A task is scanned at
// most once per scope exit"): each task's own resolved flag (markResolved)
// is what's consulted, so reopening the same graph in a second WithScope
// call and adding new tasks still wires those new tasks, instead of the
// whole graph being permanently skipped after its first scope close.
func (g *Graph) finalize() error {
	g.mu.Lock()
	ids := append([]uuid.UUID(nil), g.order...)
	g.mu.Unlock()

	for _, id := range ids {
		g.mu.Lock()
		entry, ok := g.tasks[id]
		g.mu.Unlock()
		if !ok {
			continue
		}
		if _, isFuture := entry.task.(*FunctionFuture); isFuture {
			continue
		}
		if entry.task.markResolved() {
			continue
		}
		g.wireTaskFields(entry.task)
	}

	if err := g.checkAcyclic(); err != nil {
		return err
	}
	return nil
}

func (g *Graph) wireTaskFields(t Task) {
	protected := protectedFields(t)
	rv := reflect.ValueOf(t)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() || protected[field.Name] {
			continue
		}
		fv := rv.Field(i)
		if !fv.CanInterface() {
			continue
		}
		value := fv.Interface()
		refs := walk.Collect(value, func(v any) bool {
			_, ok := v.(Reference)
			return ok
		})
		for _, r := range refs {
			g.commitReference(r.(Reference), t.Identity(), field.Name, -1)
		}
	}
}

// RenameTask relabels old's identity to new in place, rewriting every
// edge and group membership that referenced old so the graph's shape is
// unchanged but the task now answers to its new identity (spec.md §4.4:
// "identity relabelling that rewrites all edges in place"). new must not
// already be a task identity in g.
func (g *Graph) RenameTask(oldID, newID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.tasks[oldID]
	if !ok {
		return newValueError("RenameTask: %s is not registered in this graph", oldID)
	}
	if _, exists := g.tasks[newID]; exists {
		return newValueError("RenameTask: %s is already a task identity in this graph", newID)
	}

	entry.task.setIdentity(newID)
	delete(g.tasks, oldID)
	g.tasks[newID] = entry

	for i, id := range g.order {
		if id == oldID {
			g.order[i] = newID
		}
	}
	for i, e := range g.edges {
		if e.From == oldID {
			g.edges[i].From = newID
		}
		if e.To == oldID {
			g.edges[i].To = newID
		}
	}
	for _, gr := range g.groups {
		for i, id := range gr.members {
			if id == oldID {
				gr.members[i] = newID
			}
		}
	}
	return nil
}

// Connect wires the whole of "from" into "to" as a dependency, without
// naming a specific attribute — the Go stand-in for the original's
// `a >> b` / `b << a` whole-object connector syntax (SPEC_FULL.md §5).
// It must be called while the owning scope is still open; reopening the
// same graph in a later WithScope call makes Connect usable again.
func (g *Graph) Connect(from, to Task) error {
	if activeGraph() != g {
		return newValueError("cannot Connect outside an open scope on this graph")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.tasks[from.Identity()]; !ok {
		return newValueError("Connect: %q is not registered in this graph", taskDisplayName(from))
	}
	if _, ok := g.tasks[to.Identity()]; !ok {
		return newValueError("Connect: %q is not registered in this graph", taskDisplayName(to))
	}
	g.edges = append(g.edges, Edge{From: from.Identity(), To: to.Identity(), Index: -1})
	return nil
}

// Tasks returns every registered task in insertion order.
func (g *Graph) Tasks() []Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id].task)
	}
	return out
}

// Edges returns every committed edge.
func (g *Graph) Edges() []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Edge(nil), g.edges...)
}

// TaskByID looks up a registered task by its identity.
func (g *Graph) TaskByID(id uuid.UUID) (Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.tasks[id]
	if !ok {
		return nil, false
	}
	return e.task, true
}

// Predecessors returns the tasks whose output t directly depends on.
func (g *Graph) Predecessors(t Task) []Task {
	return g.neighbors(t.Identity(), func(e Edge) (uuid.UUID, uuid.UUID) { return e.To, e.From })
}

// Successors returns the tasks that directly depend on t's output.
func (g *Graph) Successors(t Task) []Task {
	return g.neighbors(t.Identity(), func(e Edge) (uuid.UUID, uuid.UUID) { return e.From, e.To })
}

func (g *Graph) neighbors(id uuid.UUID, match func(Edge) (uuid.UUID, uuid.UUID)) []Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var out []Task
	for _, e := range g.edges {
		anchor, other := match(e)
		if anchor != id || seen[other] {
			continue
		}
		if entry, ok := g.tasks[other]; ok {
			seen[other] = true
			out = append(out, entry.task)
		}
	}
	return out
}

// GetEdge returns the committed edges between two tasks (a multigraph may
// carry more than one, e.g. two distinct positional arguments of the same
// Function Task both sourced from the same upstream task).
func (g *Graph) GetEdge(from, to Task) []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Edge
	for _, e := range g.edges {
		if e.From == from.Identity() && e.To == to.Identity() {
			out = append(out, e)
		}
	}
	return out
}

// TopologicalOrder returns every task in a deterministic dependency order:
// a task always appears after everything it depends on, and ties between
// simultaneously-ready tasks are always broken by insertion order.
//
// Grounded in the teacher's topoOrderIndices (internal/dag/validate.go):
// same min-heap-driven Kahn's algorithm, but the heap orders by each
// task's insertion index rather than a content hash, since our canonical
// order is "the order code built the graph in", not a definition hash.
func (g *Graph) TopologicalOrder() ([]Task, error) {
	g.mu.Lock()
	order := append([]uuid.UUID(nil), g.order...)
	edges := append([]Edge(nil), g.edges...)
	tasks := make(map[uuid.UUID]*taskEntry, len(g.tasks))
	for k, v := range g.tasks {
		tasks[k] = v
	}
	g.mu.Unlock()

	indexOf := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		indexOf[id] = i
	}

	outgoing := make(map[uuid.UUID][]uuid.UUID)
	indeg := make(map[uuid.UUID]int)
	for _, id := range order {
		indeg[id] = 0
	}
	for _, e := range edges {
		outgoing[e.From] = append(outgoing[e.From], e.To)
		indeg[e.To]++
	}

	h := &indexHeap{indexOf: indexOf}
	for _, id := range order {
		if indeg[id] == 0 {
			heap.Push(h, id)
		}
	}

	result := make([]Task, 0, len(order))
	for h.Len() > 0 {
		id := heap.Pop(h).(uuid.UUID)
		result = append(result, tasks[id].task)
		next := append([]uuid.UUID(nil), outgoing[id]...)
		sort.Slice(next, func(i, j int) bool { return indexOf[next[i]] < indexOf[next[j]] })
		for _, m := range next {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(h, m)
			}
		}
	}

	if len(result) != len(order) {
		return nil, g.cycleError()
	}
	return result, nil
}

func (g *Graph) checkAcyclic() error {
	_, err := g.TopologicalOrder()
	return err
}

func (g *Graph) cycleError() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uuid.UUID]int, len(g.order))
	parent := make(map[uuid.UUID]uuid.UUID)
	outgoing := make(map[uuid.UUID][]uuid.UUID)
	for _, e := range g.edges {
		outgoing[e.From] = append(outgoing[e.From], e.To)
	}
	for _, adj := range outgoing {
		sort.Slice(adj, func(i, j int) bool { return adj[i].String() < adj[j].String() })
	}

	var cyclePath []string
	var dfs func(u uuid.UUID) bool
	dfs = func(u uuid.UUID) bool {
		color[u] = gray
		for _, v := range outgoing[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				cyclePath = append(cyclePath, taskName(g, v))
				cur := u
				for cur != v {
					cyclePath = append(cyclePath, taskName(g, cur))
					p, ok := parent[cur]
					if !ok {
						break
					}
					cur = p
				}
				cyclePath = append(cyclePath, taskName(g, v))
				return true
			}
		}
		color[u] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white {
			if dfs(id) {
				break
			}
		}
	}

	// reverse into forward order
	for i, j := 0, len(cyclePath)-1; i < j; i, j = i+1, j-1 {
		cyclePath[i], cyclePath[j] = cyclePath[j], cyclePath[i]
	}
	return &CycleDetectedError{Path: cyclePath}
}

func taskName(g *Graph, id uuid.UUID) string {
	if e, ok := g.tasks[id]; ok {
		return taskDisplayName(e.task)
	}
	return id.String()
}

// indexHeap is a container/heap of uuid.UUID ordered by each id's
// insertion index, giving TopologicalOrder its deterministic tie-break.
type indexHeap struct {
	items   []uuid.UUID
	indexOf map[uuid.UUID]int
}

func (h indexHeap) Len() int { return len(h.items) }
func (h indexHeap) Less(i, j int) bool {
	return h.indexOf[h.items[i]] < h.indexOf[h.items[j]]
}
func (h indexHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *indexHeap) Push(x any)   { h.items = append(h.items, x.(uuid.UUID)) }
func (h *indexHeap) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	return x
}
