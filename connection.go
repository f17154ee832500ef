package znflow

import (
	"github.com/google/uuid"
)

// Reference is the closed sum type of "unresolved value": a Connection, a
// CombinedConnection, or a *FunctionFuture. Anything satisfying Reference
// is realized by a Deployment at run time instead of being read directly.
type Reference interface {
	isRef()
}

// Connection is a reference to one attribute of one task (or, when
// HasAttribute is false, to the task as a whole — the original's
// NodeConnector-with-no-attribute / the `>>`-wired "whole object" edge
// described in SPEC_FULL.md §5).
//
// Connection is a plain comparable value: two Connections naming the same
// task/attribute/index compare equal with ==, matching spec.md's
// "equivalent Connections compare equal" invariant.
type Connection struct {
	TaskID       uuid.UUID
	Attribute    string
	HasAttribute bool
	HasIndex     bool
	Index        int
}

func (Connection) isRef() {}

// WithIndex returns a copy of the connection narrowed to a single index.
// Per spec.md §4.2, indexing an already-sliced reference is rejected.
func (c Connection) WithIndex(i int) (Connection, error) {
	if c.HasIndex {
		return Connection{}, newValueError("connection is already sliced at index %d", c.Index)
	}
	c.HasIndex = true
	c.Index = i
	return c, nil
}

// CombinedConnection is the ordered concatenation of several list-typed
// references, produced by Concat (spec.md's '+' operator, see the
// "Operator overloading" design note in spec.md §9).
//
// When MapKeyAttribute is set (via Combine's AsMapKey option), the
// resolver reshapes Items into a map keyed by that attribute read off
// each item's source task, instead of leaving them as an ordered list
// (spec.md §4.7, "as_map_key").
type CombinedConnection struct {
	Items           []Reference
	MapKeyAttribute string
	HasIndex        bool
	Index           int
}

func (*CombinedConnection) isRef() {}

// WithIndex narrows a combined connection to a single index. Re-slicing an
// already-sliced CombinedConnection is rejected (spec.md §4.2/§7,
// CombinationError).
func (c *CombinedConnection) WithIndex(i int) (*CombinedConnection, error) {
	if c.HasIndex {
		return nil, newCombinationError("combined connection is already sliced at index %d", c.Index)
	}
	out := &CombinedConnection{Items: c.Items, MapKeyAttribute: c.MapKeyAttribute, HasIndex: true, Index: i}
	return out, nil
}

// Ref reads attribute `name` off task t. Outside an active scope (or when
// the attribute is protected/private), it returns the real stored value.
// Inside a scope, it returns a Connection pointing at the attribute,
// auto-registering t into the active graph if it isn't already there
// (this is how an external task gets attached, per spec.md §4.3).
//
// Ref panics with an *AttributeMissingError if name does not name an
// exported field of t — the scope must never invent attributes, and this
// is a programmer error discovered at build time, exactly like the
// fv.Type() arity check in NodifyFunc. It panics with a *ValueErrorDetail
// if t was already built under a different graph than the one currently
// active — spec.md §4.3 item 4's cross-graph reference rejection, also a
// build-time programmer error, grounded in the original's AddEdge.default
// assertion `value.graph == dag` (_examples/original_source/znflow/node.py).
func Ref(t Task, name string) any {
	field, ok := exportedField(t, name)
	if !ok {
		panic(newAttributeMissingError(taskDisplayName(t), name))
	}

	value := field.Interface()

	g := activeGraph()
	if g == nil {
		return value
	}
	if protectedFields(t)[name] {
		return value
	}

	// external/cross-referenced tasks are auto-inserted; a task already
	// owned by a different graph is rejected instead.
	if err := g.addTask(t); err != nil {
		panic(err)
	}
	return Connection{TaskID: t.Identity(), Attribute: name, HasAttribute: true}
}

// GetAttribute reads the real, current value of attribute name off t,
// regardless of whether a scope is active, falling back to def if the
// attribute doesn't exist (SPEC_FULL.md §5; distinct from Ref, which
// raises on a missing attribute because that's always a build-time bug).
func GetAttribute(t Task, name string, def ...any) any {
	restore := DisableScope()
	defer restore()

	field, ok := exportedField(t, name)
	if !ok {
		if len(def) > 0 {
			return def[0]
		}
		panic(newAttributeMissingError(taskDisplayName(t), name))
	}
	return field.Interface()
}

// Index narrows any Reference to a single element, recording an index
// selector that the resolver applies after realizing the underlying
// value. It is the explicit stand-in for the original's `value[sel]`
// (Go has no operator overload for indexing custom types).
func Index(ref Reference, i int) (Reference, error) {
	switch v := ref.(type) {
	case Connection:
		return v.WithIndex(i)
	case *CombinedConnection:
		return v.WithIndex(i)
	case *FunctionFuture:
		return v.WithIndex(i)
	default:
		return nil, newValueError("cannot index a %T", ref)
	}
}
