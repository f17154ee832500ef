package znflow

import (
	"testing"

	stderrors "errors"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy_UnwrapsToSentinel(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"scope nesting", newScopeNestingError("x"), ErrScopeNesting},
		{"attribute missing", newAttributeMissingError("t", "a"), ErrAttributeMissing},
		{"cycle detected", &CycleDetectedError{}, ErrCycleDetected},
		{"external task execution", NewExternalTaskExecutionError("t"), ErrExternalTaskExecution},
		{"combination", newCombinationError("x"), ErrCombination},
		{"group", newGroupError("x"), ErrGroup},
		{"backend", NewBackendError("x", nil), ErrBackend},
		{"type", newTypeError("x"), ErrType},
		{"value", newValueError("x"), ErrValue},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, stderrors.Is(tc.err, tc.want), "expected %v to wrap %v", tc.err, tc.want)
		})
	}
}

func TestCycleDetectedError_RendersPath(t *testing.T) {
	err := &CycleDetectedError{Path: []string{"a", "b", "a"}}
	assert.Equal(t, "cycle detected: a -> b -> a", err.Error())
}

func TestBackendError_IncludesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewBackendError("submit failed", cause)
	assert.Contains(t, err.Error(), "connection refused")
}
