package znflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeTask struct {
	TaskBase
	Value  any
	Result int
}

func (t *probeTask) Run() error { return nil }

func TestConnection_EquivalentConnectionsCompareEqual(t *testing.T) {
	g := NewGraph()
	var src *probeTask
	var c1, c2 Connection

	err := WithScope(g, func() error {
		src = NewTask(func() *probeTask { return &probeTask{} })
		c1 = Ref(src, "Result").(Connection)
		c2 = Ref(src, "Result").(Connection)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
	assert.True(t, c1 == c2)
}

func TestRef_OutsideScopeReturnsRealValue(t *testing.T) {
	src := &probeTask{Result: 42}
	value := Ref(src, "Result")
	assert.Equal(t, 42, value)
}

func TestRef_PanicsOnUnknownAttribute(t *testing.T) {
	src := &probeTask{}
	assert.Panics(t, func() { Ref(src, "NoSuchField") })
}

func TestRef_ProtectedFieldAlwaysReturnsRealValue(t *testing.T) {
	g := NewGraph()
	var src *probeTask

	err := WithScope(g, func() error {
		src = NewTask(func() *probeTask { return &probeTask{} })
		src.SetName("my-task")
		value := Ref(src, "Name")
		assert.Equal(t, "my-task", value)
		return nil
	})
	require.NoError(t, err)
}

func TestGetAttribute_ReturnsDefaultWhenMissing(t *testing.T) {
	src := &probeTask{}
	value := GetAttribute(src, "NoSuchField", "fallback")
	assert.Equal(t, "fallback", value)
}

func TestGetAttribute_ReadsRealValueEvenInsideScope(t *testing.T) {
	g := NewGraph()
	err := WithScope(g, func() error {
		src := NewTask(func() *probeTask { return &probeTask{Result: 7} })
		assert.Equal(t, 7, GetAttribute(src, "Result"))
		return nil
	})
	require.NoError(t, err)
}

func TestConnection_WithIndex_RejectsDoubleSlice(t *testing.T) {
	c := Connection{HasIndex: true, Index: 0}
	_, err := c.WithIndex(1)
	assert.Error(t, err)
}

func TestIndex_RejectsUnsupportedReferenceType(t *testing.T) {
	_, err := Index(nil, 0)
	assert.Error(t, err)
}
