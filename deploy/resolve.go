package deploy

import (
	"fmt"
	"reflect"

	"github.com/ordinate-sh/znflow"
	"github.com/ordinate-sh/znflow/internal/walk"
)

// resolveReference reads the real value a Reference points at. The
// referenced task must already be in a terminal-successful state by the
// time this is called; deployments only ever resolve references for
// tasks later in topological order than their source.
func resolveReference(g *znflow.Graph, ref znflow.Reference) (any, error) {
	switch v := ref.(type) {
	case znflow.Connection:
		src, ok := g.TaskByID(v.TaskID)
		if !ok {
			return nil, znflow.ErrValue
		}
		var value any
		if v.HasAttribute {
			value = znflow.GetAttribute(src, v.Attribute)
		} else {
			value = src
		}
		if v.HasIndex {
			return indexValue(value, v.Index)
		}
		return value, nil

	case *znflow.CombinedConnection:
		if v.MapKeyAttribute != "" {
			return resolveAsMap(g, v)
		}
		out := make([]any, 0, len(v.Items))
		for _, item := range v.Items {
			val, err := resolveReference(g, item)
			if err != nil {
				return nil, err
			}
			out = append(out, flattenInto(val)...)
		}
		if v.HasIndex {
			return indexValue(out, v.Index)
		}
		return out, nil

	case *znflow.FunctionFuture:
		// An indexed future (from Index) is a copy sharing the original's
		// identity; the result lives on the future registered in g.
		src := v
		if t, ok := g.TaskByID(v.Identity()); ok {
			if ff, ok := t.(*znflow.FunctionFuture); ok {
				src = ff
			}
		}
		value := src.Result()
		if v.HasIndex {
			return indexValue(value, v.Index)
		}
		return value, nil

	default:
		return nil, znflow.ErrValue
	}
}

// resolveAsMap reshapes a CombinedConnection reshaped with AsMapKey into
// a key->value mapping: each item's key is read off its source task via
// the recorded MapKeyAttribute, its value is the item's own resolved
// value (spec.md §4.7, "as_map_key"). An item with no identifiable
// source task (e.g. a nested CombinedConnection) cannot supply a key and
// is rejected with ErrValue, matching the "duplicate keys raise
// ValueError" strictness the spec calls for around this reshape.
func resolveAsMap(g *znflow.Graph, v *znflow.CombinedConnection) (any, error) {
	out := make(map[any]any, len(v.Items))
	for _, item := range v.Items {
		src, ok := sourceTaskOf(g, item)
		if !ok {
			return nil, znflow.ErrValue
		}
		key := znflow.GetAttribute(src, v.MapKeyAttribute)
		if _, exists := out[key]; exists {
			return nil, &znflow.ValueErrorDetail{Msg: fmt.Sprintf("AsMapKey: duplicate key %v", key)}
		}
		val, err := resolveReference(g, item)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

// sourceTaskOf returns the task a Connection or FunctionFuture resolves
// from, used to read the key attribute for an AsMapKey reshape.
func sourceTaskOf(g *znflow.Graph, ref znflow.Reference) (znflow.Task, bool) {
	switch v := ref.(type) {
	case znflow.Connection:
		return g.TaskByID(v.TaskID)
	case *znflow.FunctionFuture:
		return v, true
	default:
		return nil, false
	}
}

// flattenInto mirrors the original combine()'s `sum(outs, [])`: a
// resolved CombinedConnection item that is itself a slice gets spliced
// in, rather than nested as a single element.
func flattenInto(value any) []any {
	rv := reflect.ValueOf(value)
	if value != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{value}
}

func indexValue(value any, idx int) (any, error) {
	rv := reflect.ValueOf(value)
	if value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, znflow.ErrValue
	}
	if idx < 0 || idx >= rv.Len() {
		return nil, znflow.ErrValue
	}
	return rv.Index(idx).Interface(), nil
}

// substituteFields rewrites every exported, non-protected field of t that
// embeds a Reference, replacing it with the real value its source task
// produced. This is the Go equivalent of the original's node_submit(),
// which walks `dir(node)` and replaces every Connection with its result
// before calling node.run().
func substituteFields(g *znflow.Graph, t znflow.Task) error {
	rv := reflect.ValueOf(t)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	protected := znflow.ProtectedFieldsOf(t)
	rt := rv.Type()
	var walkErr error

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() || protected[field.Name] {
			continue
		}
		fv := rv.Field(i)
		if !fv.CanSet() {
			continue
		}
		current := fv.Interface()

		result := walk.Walk(current, func(v any) (any, bool) {
			ref, ok := v.(znflow.Reference)
			if !ok {
				return v, false
			}
			resolved, err := resolveReference(g, ref)
			if err != nil {
				walkErr = err
				return v, false
			}
			return resolved, true
		})
		if walkErr != nil {
			return walkErr
		}
		if result.Updated {
			setIfAssignable(fv, result.Value)
		}
	}
	return nil
}

// setIfAssignable writes value into fv when its dynamic type fits fv's
// declared type, and otherwise leaves fv untouched. spec.md §4.5: "if a
// field rejects assignment, the substitution is skipped and the original
// reference is left in place" — a resolved CombinedConnection surfaces
// as []any even when the field itself is a concrete slice type like
// []int, so this is the normal path for list-typed fields, not a rare
// failure case.
func setIfAssignable(fv reflect.Value, value any) {
	if value == nil {
		if fv.Kind() == reflect.Ptr || fv.Kind() == reflect.Interface || fv.Kind() == reflect.Slice || fv.Kind() == reflect.Map {
			fv.Set(reflect.Zero(fv.Type()))
		}
		return
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return
	}
	if rv.Type().ConvertibleTo(fv.Type()) && isSafeConversion(rv.Kind(), fv.Kind()) {
		fv.Set(rv.Convert(fv.Type()))
		return
	}
	if rebuilt, ok := rebuildContainer(rv, fv.Type()); ok {
		fv.Set(rebuilt)
	}
}

// isSafeConversion allows only conversions reflect.Value.Convert performs
// losslessly for our purposes (e.g. concrete numeric kinds); it excludes
// stringish/numeric cross-conversions that would silently mangle data.
func isSafeConversion(from, to reflect.Kind) bool {
	numeric := func(k reflect.Kind) bool {
		switch k {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		default:
			return false
		}
	}
	return numeric(from) && numeric(to)
}

// rebuildContainer handles the common case of a resolved []any (produced
// by CombinedConnection/slice resolution over heterogeneous `any` leaves)
// needing to land in a concretely-typed slice field, element by element.
func rebuildContainer(rv reflect.Value, target reflect.Type) (reflect.Value, bool) {
	if rv.Kind() != reflect.Slice || target.Kind() != reflect.Slice {
		return reflect.Value{}, false
	}
	out := reflect.MakeSlice(target, rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)
		if elem.Kind() == reflect.Interface {
			elem = elem.Elem()
		}
		if !elem.IsValid() {
			continue
		}
		if elem.Type().AssignableTo(target.Elem()) {
			out.Index(i).Set(elem)
			continue
		}
		if elem.Type().ConvertibleTo(target.Elem()) && isSafeConversion(elem.Kind(), target.Elem().Kind()) {
			out.Index(i).Set(elem.Convert(target.Elem()))
			continue
		}
		return reflect.Value{}, false
	}
	return out, true
}

// substituteArgs rewrites a Function Task's stored positional arguments,
// replacing any embedded Reference with its resolved value.
func substituteArgs(g *znflow.Graph, ff *znflow.FunctionFuture) error {
	args := ff.Args()
	out := make([]any, len(args))
	var walkErr error
	for i, a := range args {
		result := walk.Walk(a, func(v any) (any, bool) {
			ref, ok := v.(znflow.Reference)
			if !ok {
				return v, false
			}
			resolved, err := resolveReference(g, ref)
			if err != nil {
				walkErr = err
				return v, false
			}
			return resolved, true
		})
		if walkErr != nil {
			return walkErr
		}
		out[i] = result.Value
	}
	ff.SetArgs(out)
	return nil
}
