package znflow

import (
	"reflect"

	"github.com/google/uuid"
)

// FunctionFuture is a deferred call to a Nodify-wrapped function. It is
// both a Task (it is inserted into the graph and executed by a
// deployment) and a Reference (the call expression itself is what code
// inside a scope wires to downstream tasks) — mirroring the original's
// FunctionFuture(NodeBaseMixin) dataclass, which plays the same dual role.
type FunctionFuture struct {
	TaskBase

	fn   reflect.Value
	args []any

	result any
	hasRun bool

	HasIndex bool
	Index    int
}

func (*FunctionFuture) isRef() {}

// WithIndex narrows the eventual result to a single index.
func (f *FunctionFuture) WithIndex(i int) (*FunctionFuture, error) {
	if f.HasIndex {
		return nil, newValueError("function future is already sliced at index %d", f.Index)
	}
	out := &FunctionFuture{TaskBase: f.TaskBase, fn: f.fn, args: f.args, HasIndex: true, Index: i}
	return out, nil
}

// SetArgs replaces the stored call arguments. Used by the resolver to
// substitute realized values for references before invoking the function.
func (f *FunctionFuture) SetArgs(args []any) { f.args = args }

// Args returns the stored call arguments, as recorded at build time.
func (f *FunctionFuture) Args() []any { return f.args }

// Invoke calls the wrapped function with its current arguments and stores
// the result. It must be called at most once per deployment run unless
// the graph is mutable (spec.md's Function Task row: "executed once per
// run (or once total if immutable)").
func (f *FunctionFuture) Invoke() error {
	in := make([]reflect.Value, len(f.args))
	for i, a := range f.args {
		if a == nil {
			in[i] = reflect.New(f.fn.Type().In(i)).Elem()
			continue
		}
		in[i] = reflect.ValueOf(a)
	}
	out := f.fn.Call(in)
	if len(out) == 1 {
		f.result = out[0].Interface()
	} else {
		vals := make([]any, len(out))
		for i, v := range out {
			vals[i] = v.Interface()
		}
		f.result = vals
	}
	f.hasRun = true
	return nil
}

// Result returns the stored result, or nil if the future has not run yet.
func (f *FunctionFuture) Result() any {
	if !f.hasRun {
		return nil
	}
	return f.result
}

// HasResult reports whether Invoke has already populated the result.
func (f *FunctionFuture) HasResult() bool { return f.hasRun }

// NodifyFunc wraps fn so that calling the returned closure inside an
// active build scope returns a *FunctionFuture (a deferred call recorded
// as a node in the graph) instead of invoking fn eagerly. Outside a
// scope, the closure just calls fn directly and returns its real result.
//
// Arity is checked against fn's reflected signature on every call, so a
// wrong number of arguments panics immediately at the call site — at
// build time, not when the deployment later tries to invoke the future
// (spec.md §4.2: "Function-task arguments are signature-bound eagerly").
//
// When fn has exactly one return value, that value is the result (both
// outside a scope and, after Invoke, inside one). With any other number
// of return values the result is a []any holding every return value; an
// error return is included as a plain value and is not treated as a
// failure.
func NodifyFunc(fn any) func(args ...any) any {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		panic(newTypeError("NodifyFunc requires a function, got %T", fn))
	}

	return func(args ...any) any {
		checkArity(ft, len(args))

		g := activeGraph()
		if g == nil {
			in := make([]reflect.Value, len(args))
			for i, a := range args {
				in[i] = reflect.ValueOf(a)
			}
			out := fv.Call(in)
			if len(out) == 1 {
				return out[0].Interface()
			}
			vals := make([]any, len(out))
			for i, v := range out {
				vals[i] = v.Interface()
			}
			return vals
		}

		ff := &FunctionFuture{fn: fv, args: args}
		ff.setIdentity(uuid.New())
		_ = g.addTask(ff)
		for i, a := range args {
			g.wireFunctionArg(ff, i, a)
		}
		return ff
	}
}

func checkArity(ft reflect.Type, n int) {
	if ft.IsVariadic() {
		if n < ft.NumIn()-1 {
			panic(newTypeError("wrong arity: %s requires at least %d arguments, got %d", ft, ft.NumIn()-1, n))
		}
		return
	}
	if n != ft.NumIn() {
		panic(newTypeError("wrong arity: %s requires %d arguments, got %d", ft, ft.NumIn(), n))
	}
}
