package znflow

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Task is implemented by anything that can live in a Graph: a Class Task
// (a user type embedding TaskBase with a Run method) or a Function Task
// (a *FunctionFuture produced by a Nodify-wrapped function).
//
// The interface is intentionally small. Identity is assigned once, when
// NewTask registers the task (or when a task without one is first inserted
// into a Graph); Graph.RenameTask can relabel it afterwards.
type Task interface {
	Identity() uuid.UUID
	IsExternal() bool

	setIdentity(uuid.UUID)
	markResolved() bool
	markAvailable() bool
	graphOwner() uuid.UUID
	setGraphOwner(uuid.UUID)
}

// Runnable is implemented by Class Tasks: user-defined types that carry a
// run step. Function Tasks (FunctionFuture) don't implement Runnable;
// the deployment invokes them through their own Invoke method instead.
type Runnable interface {
	Task
	Run() error
}

// ProtectedFields lets a Class Task exclude exported fields from the
// scope-exit attribute walk (they stay plain data, never edges), beyond
// the default set TaskBase already protects.
type ProtectedFields interface {
	ProtectedFields() map[string]bool
}

// TaskBase is embedded by every Class Task. It supplies identity,
// the external marker, the owning-graph identity, and the two distinct
// resolve-once guards spec.md's Data Model table describes: resolved
// (build-time — keeps scope-exit from rewalking the same task's fields
// twice, spec.md §4.3: "A task is scanned at most once per scope exit")
// and available (run-time — an immutable Deployment's per-run cache bit,
// which tracks whether the task has already produced a result, not
// whether its fields have been wired).
//
// Embedding TaskBase is what makes a user type satisfy Task: the identity
// and resolved/available bookkeeping methods are unexported, so only types
// in this package (via embedding) can provide them — mirroring
// znflow.base.NodeBaseMixin's process-wide bookkeeping in the original.
type TaskBase struct {
	id        uuid.UUID
	graphID   uuid.UUID
	external  bool
	resolved  bool
	available bool
	name      string
}

func (b *TaskBase) Identity() uuid.UUID      { return b.id }
func (b *TaskBase) setIdentity(id uuid.UUID) { b.id = id }

// graphOwner returns the identity of the Graph this task was first
// inserted into (uuid.Nil if it hasn't been inserted into any graph yet).
// Checked by Graph.addTask so a task built under one graph can never be
// wired into another, currently-inactive graph (spec.md §4.3 item 4,
// grounded in the original's AddEdge.default assertion `value.graph == dag`
// in _examples/original_source/znflow/node.py).
func (b *TaskBase) graphOwner() uuid.UUID      { return b.graphID }
func (b *TaskBase) setGraphOwner(id uuid.UUID) { b.graphID = id }

// markResolved flags the task as having had its fields wired by a scope's
// finalize pass, and reports whether it already had been. Per-task, not
// graph-wide: this is what lets a graph be reopened in a second WithScope
// call and still wire only the tasks added in that second call.
func (b *TaskBase) markResolved() bool {
	was := b.resolved
	b.resolved = true
	return was
}

// markAvailable flags the task as having produced a result under an
// immutable deployment, and reports whether it already had. Distinct from
// markResolved/resolved above: markAvailable is a run-time concept
// (Deployment's "available" bit), consulted on every Run, not a
// build-time one consulted once at scope exit.
func (b *TaskBase) markAvailable() bool {
	was := b.available
	b.available = true
	return was
}

// IsExternal reports whether this task is a read-only source: the
// deployment never calls its Run, only reads its fields.
func (b *TaskBase) IsExternal() bool { return b.external }

// MarkExternal declares the task external=true (spec.md §4.3, §6).
func (b *TaskBase) MarkExternal() { b.external = true }

// SetName attaches a human-readable name used in error messages and traces.
// Optional; defaults to the task's UUID.
func (b *TaskBase) SetName(name string) { b.name = name }

// Name returns the human-readable name, or the UUID if none was set.
func (b *TaskBase) Name() string {
	if b.name != "" {
		return b.name
	}
	if b.id == uuid.Nil {
		return "<unregistered task>"
	}
	return b.id.String()
}

func baseProtectedFields() map[string]bool {
	return map[string]bool{
		"Identity": true,
		"Graph":    true,
		"Name":     true,
	}
}

func protectedFields(t Task) map[string]bool {
	out := baseProtectedFields()
	if p, ok := t.(ProtectedFields); ok {
		for k := range p.ProtectedFields() {
			out[k] = true
		}
	}
	return out
}

// ProtectedFieldsOf returns the set of field names on t that the build
// scope and deployments must leave untouched (see ProtectedFields).
// Exported for use by the deploy package, which substitutes resolved
// values into every other exported field before running a task.
func ProtectedFieldsOf(t Task) map[string]bool {
	return protectedFields(t)
}

// MarkAvailable flags t as available and reports whether it already was.
// Exported for use by the deploy package: an immutable deployment calls
// this once per task, and only runs the task when the return value is
// false, giving every Class Task the resolve-once guarantee spec.md §4.3
// describes for Function Tasks (FunctionFuture gets the same guarantee via
// its own HasResult check). Distinct from the graph's internal resolved
// bookkeeping (markResolved), which gates field-wiring at scope exit, not
// execution at run time.
func MarkAvailable(t Task) bool {
	return t.markAvailable()
}

func taskDisplayName(t Task) string {
	type named interface{ Name() string }
	if n, ok := t.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", t)
}

// register assigns an identity (if the task doesn't have one yet) and, if a
// build scope is active, inserts the task into the active graph. It is
// called by NewTask immediately after the user's constructor runs.
func register(t Task) Task {
	if t.Identity() == uuid.Nil {
		t.setIdentity(uuid.New())
	}
	if g := activeGraph(); g != nil {
		_ = g.addTask(t)
	}
	return t
}

// NewTask runs a user-supplied constructor and registers the resulting
// task: it allocates an identity and, if a scope is active, attaches the
// task to the active graph (spec.md §4.3 steps 1-3; there is no
// "in_construction" flag to manage because plain Go field reads inside
// the constructor never go through Ref, so they always see real values).
func NewTask[T Task](ctor func() T) T {
	t := ctor()
	register(t)
	return t
}

// exportedField looks up an exported field by name on the task's
// underlying struct, following one level of pointer indirection. Failing
// that, it falls back to a niladic, single-return method of the same
// name (e.g. Name()), so computed attributes like TaskBase.Name read
// through Ref/GetAttribute exactly like a plain field would.
func exportedField(t Task, name string) (reflect.Value, bool) {
	rv := reflect.ValueOf(t)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		structVal := rv.Elem()
		if structVal.Kind() == reflect.Struct {
			if f := structVal.FieldByName(name); f.IsValid() && f.CanInterface() {
				return f, true
			}
		}
	} else if rv.Kind() == reflect.Struct {
		if f := rv.FieldByName(name); f.IsValid() && f.CanInterface() {
			return f, true
		}
	}

	m := rv.MethodByName(name)
	if m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
		return m.Call(nil)[0], true
	}
	return reflect.Value{}, false
}
