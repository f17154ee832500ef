package walk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWalk_ReplacesMatchingScalarLeaf(t *testing.T) {
	result := Walk(5, func(v any) (any, bool) {
		if n, ok := v.(int); ok {
			return n * 2, true
		}
		return v, false
	})
	assert.True(t, result.Updated)
	assert.Equal(t, 10, result.Value)
}

func TestWalk_RecursesIntoSlice(t *testing.T) {
	result := Walk([]any{1, 2, 3}, func(v any) (any, bool) {
		n := v.(int)
		return n + 1, true
	})
	assert.Equal(t, []any{2, 3, 4}, result.Value)
	assert.True(t, result.Updated)
}

func TestWalk_LeavesUntouchedDataIdentical(t *testing.T) {
	original := []any{"a", "b"}
	result := Walk(original, func(v any) (any, bool) {
		return v, false
	})
	assert.False(t, result.Updated)
	assert.Equal(t, original, result.Value)
}

func TestWalk_RecursesIntoMap(t *testing.T) {
	result := Walk(map[any]any{"x": 1}, func(v any) (any, bool) {
		if n, ok := v.(int); ok {
			return n * 10, true
		}
		return v, false
	})
	assert.True(t, result.Updated)
	assert.Equal(t, map[any]any{"x": 10}, result.Value)
}

func TestCollect_GathersMatchingLeaves(t *testing.T) {
	type marker struct{ id int }
	values := []any{1, marker{1}, "skip", []any{marker{2}, 3}}

	found := Collect(values, func(v any) bool {
		_, ok := v.(marker)
		return ok
	})
	assert.Len(t, found, 2)
}
