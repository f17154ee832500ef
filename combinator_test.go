package znflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listTask struct {
	TaskBase
	Items []int
}

func (t *listTask) Run() error { return nil }

func TestCombine_FlattensNestedCombinedConnections(t *testing.T) {
	g := NewGraph()
	var r1, r2, r3 any

	err := WithScope(g, func() error {
		a := NewTask(func() *listTask { return &listTask{} })
		b := NewTask(func() *listTask { return &listTask{} })
		c := NewTask(func() *listTask { return &listTask{} })
		r1 = Ref(a, "Items")
		r2 = Ref(b, "Items")
		r3 = Ref(c, "Items")
		return nil
	})
	require.NoError(t, err)

	inner, err := Combine([]any{r1, r2})
	require.NoError(t, err)

	outer, err := Combine([]any{inner, r3})
	require.NoError(t, err)

	direct, err := Combine([]any{r1, r2, r3})
	require.NoError(t, err)

	assert.Equal(t, direct.Items, outer.Items)
}

func TestCombine_UnpacksSingleSliceArgument(t *testing.T) {
	g := NewGraph()
	var r1, r2 any
	err := WithScope(g, func() error {
		a := NewTask(func() *listTask { return &listTask{} })
		b := NewTask(func() *listTask { return &listTask{} })
		r1 = Ref(a, "Items")
		r2 = Ref(b, "Items")
		return nil
	})
	require.NoError(t, err)

	packed, err := Combine([]any{[]any{r1, r2}})
	require.NoError(t, err)
	unpacked, err := Combine([]any{r1, r2})
	require.NoError(t, err)

	assert.Equal(t, unpacked.Items, packed.Items)
}

func TestCombine_StrictModeRejectsNonReference(t *testing.T) {
	_, err := Combine([]any{42}, Strict())
	assert.Error(t, err)
}

func TestCombine_DefaultModeSkipsNonReference(t *testing.T) {
	g := NewGraph()
	var ref any
	err := WithScope(g, func() error {
		a := NewTask(func() *listTask { return &listTask{} })
		ref = Ref(a, "Items")
		return nil
	})
	require.NoError(t, err)

	out, err := Combine([]any{ref, 42})
	require.NoError(t, err)
	assert.Len(t, out.Items, 1)
}

func TestCombine_AsMapKeySetsMapKeyAttribute(t *testing.T) {
	g := NewGraph()
	var ref any
	err := WithScope(g, func() error {
		a := NewTask(func() *listTask { return &listTask{} })
		ref = Ref(a, "Items")
		return nil
	})
	require.NoError(t, err)

	out, err := Combine([]any{ref}, AsMapKey("Items"))
	require.NoError(t, err)
	assert.Equal(t, "Items", out.MapKeyAttribute)
}

func TestConcat_IsCombineOfTwo(t *testing.T) {
	g := NewGraph()
	var r1, r2 Reference
	err := WithScope(g, func() error {
		a := NewTask(func() *listTask { return &listTask{} })
		b := NewTask(func() *listTask { return &listTask{} })
		r1 = Ref(a, "Items").(Reference)
		r2 = Ref(b, "Items").(Reference)
		return nil
	})
	require.NoError(t, err)

	out, err := Concat(r1, r2)
	require.NoError(t, err)
	assert.Len(t, out.Items, 2)
}
