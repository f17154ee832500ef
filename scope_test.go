package znflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RejectsNestedScope(t *testing.T) {
	g1 := NewGraph()
	g2 := NewGraph()

	h1, err := Open(g1)
	require.NoError(t, err)
	defer h1.Close()

	_, err = Open(g2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScopeNesting)
}

func TestWithScope_ClosesScopeAfterFnReturns(t *testing.T) {
	g := NewGraph()
	assert.False(t, InScope())

	err := WithScope(g, func() error {
		assert.True(t, InScope())
		return nil
	})
	require.NoError(t, err)
	assert.False(t, InScope())
}

func TestWithScope_ReopensAfterPriorScopeClosed(t *testing.T) {
	g1 := NewGraph()
	require.NoError(t, WithScope(g1, func() error { return nil }))

	g2 := NewGraph()
	require.NoError(t, WithScope(g2, func() error { return nil }))
}

func TestWithScope_SurfacesCloseErrorWhenFnSucceeds(t *testing.T) {
	g := NewGraph()

	err := WithScope(g, func() error {
		a := NewTask(func() *numberTask { return &numberTask{} })
		b := NewTask(func() *numberTask { return &numberTask{} })
		// Wire a cycle (a depends on b, b depends on a) after both tasks
		// are registered: fn itself returns nil, so the only way
		// WithScope can see an error is if it actually observes Close's
		// deferred finalize() failure rather than the already-returned nil.
		a.In = Ref(b, "Out")
		b.In = Ref(a, "Out")
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestDisableScope_TemporarilyHidesActiveGraph(t *testing.T) {
	g := NewGraph()
	h, err := Open(g)
	require.NoError(t, err)
	defer h.Close()

	assert.True(t, InScope())
	restore := DisableScope()
	assert.False(t, InScope())
	restore()
	assert.True(t, InScope())
}
