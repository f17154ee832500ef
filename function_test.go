package znflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addInts(a, b int) int { return a + b }

func TestNodifyFunc_OutsideScopeCallsEagerly(t *testing.T) {
	add := NodifyFunc(addInts)
	result := add(2, 3)
	assert.Equal(t, 5, result)
}

func TestNodifyFunc_InsideScopeReturnsFunctionFuture(t *testing.T) {
	g := NewGraph()
	add := NodifyFunc(addInts)

	var future any
	err := WithScope(g, func() error {
		future = add(2, 3)
		return nil
	})
	require.NoError(t, err)

	ff, ok := future.(*FunctionFuture)
	require.True(t, ok)
	assert.False(t, ff.HasResult())
}

func TestNodifyFunc_PanicsOnWrongArity(t *testing.T) {
	add := NodifyFunc(addInts)
	assert.Panics(t, func() { add(1) })
}

func TestFunctionFuture_InvokeComputesResult(t *testing.T) {
	g := NewGraph()
	add := NodifyFunc(addInts)

	var future *FunctionFuture
	err := WithScope(g, func() error {
		future = add(4, 5).(*FunctionFuture)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, future.Invoke())
	assert.Equal(t, 9, future.Result())
}

func TestFunctionFuture_WithIndex_RejectsDoubleSlice(t *testing.T) {
	ff := &FunctionFuture{HasIndex: true, Index: 0}
	_, err := ff.WithIndex(1)
	assert.Error(t, err)
}
