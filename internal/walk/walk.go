// Package walk implements a generic recursive descent over Go's built-in
// containers (slices, arrays, maps), applying a leaf function to every
// non-container value it finds. It is the Go counterpart of the original
// IterableHandler single-dispatch visitor: that visitor recurses into
// list/tuple/set/dict and calls a user-supplied "default" on everything
// else, tracking whether anything changed.
package walk

import "reflect"

// Leaf is applied to every non-container value encountered during Walk.
// It returns the (possibly replaced) value and whether it changed.
type Leaf func(value any) (replacement any, changed bool)

// Result carries the (possibly rebuilt) value together with whether any
// leaf in the tree was replaced.
type Result struct {
	Value   any
	Updated bool
}

// Walk recurses into slices, arrays, and maps, applying leaf to every
// element it can't recurse into further. The rebuilt container ([]any or
// map[any]any) is only returned when something underneath it actually
// changed, so untouched data round-trips through Walk as the identical
// value. Map values are walked; map keys are not.
func Walk(value any, leaf Leaf) Result {
	if value == nil {
		return Result{Value: nil}
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return walkSequence(rv, leaf)
	case reflect.Map:
		return walkMap(rv, leaf)
	default:
		out, changed := leaf(value)
		return Result{Value: out, Updated: changed}
	}
}

func walkSequence(rv reflect.Value, leaf Leaf) Result {
	n := rv.Len()
	out := make([]any, n)
	updated := false
	for i := 0; i < n; i++ {
		elem := rv.Index(i).Interface()
		r := Walk(elem, leaf)
		out[i] = r.Value
		updated = updated || r.Updated
	}
	if !updated {
		return Result{Value: rv.Interface()}
	}
	return Result{Value: out, Updated: true}
}

func walkMap(rv reflect.Value, leaf Leaf) Result {
	out := make(map[any]any, rv.Len())
	updated := false
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().Interface()
		v := iter.Value().Interface()
		r := Walk(v, leaf)
		out[k] = r.Value
		updated = updated || r.Updated
	}
	if !updated {
		return Result{Value: rv.Interface()}
	}
	return Result{Value: out, Updated: true}
}

// Collect runs Walk purely to gather every leaf value satisfying match,
// without rebuilding anything. Used to find every Reference nested inside
// a task field without caring about the (identical) rebuilt container.
func Collect(value any, match func(any) bool) []any {
	var found []any
	Walk(value, func(v any) (any, bool) {
		if match(v) {
			found = append(found, v)
		}
		return v, false
	})
	return found
}
