package znflow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type numberTask struct {
	TaskBase
	In  any
	Out int
}

func (t *numberTask) Run() error {
	if t.In == nil {
		t.Out = 0
		return nil
	}
	t.Out = t.In.(int) + 1
	return nil
}

func buildDiamond(t *testing.T) (*Graph, *numberTask, *numberTask, *numberTask, *numberTask) {
	t.Helper()
	g := NewGraph()
	var a, b, c, d *numberTask

	err := WithScope(g, func() error {
		a = NewTask(func() *numberTask { return &numberTask{In: 0} })
		b = NewTask(func() *numberTask { return &numberTask{In: Ref(a, "Out")} })
		c = NewTask(func() *numberTask { return &numberTask{In: Ref(a, "Out")} })
		d = NewTask(func() *numberTask { return &numberTask{In: Ref(b, "Out")} })
		return nil
	})
	require.NoError(t, err)
	return g, a, b, c, d
}

func TestTopologicalOrder_RespectsDependencies(t *testing.T) {
	g, a, b, c, d := buildDiamond(t)

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := make(map[*numberTask]int)
	for i, task := range order {
		for _, want := range []*numberTask{a, b, c, d} {
			if task.Identity() == want.Identity() {
				pos[want] = i
			}
		}
	}
	assert.Less(t, pos[a], pos[b])
	assert.Less(t, pos[a], pos[c])
	assert.Less(t, pos[b], pos[d])
}

func TestTopologicalOrder_IsDeterministicAcrossCalls(t *testing.T) {
	g, _, _, _, _ := buildDiamond(t)

	first, err := g.TopologicalOrder()
	require.NoError(t, err)
	second, err := g.TopologicalOrder()
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Identity(), second[i].Identity())
	}
}

func TestTopologicalOrder_DetectsCycle(t *testing.T) {
	g := NewGraph()
	a := NewTask(func() *numberTask { return &numberTask{} })
	b := NewTask(func() *numberTask { return &numberTask{} })
	require.NoError(t, g.addTask(a))
	require.NoError(t, g.addTask(b))
	g.addEdge(Edge{From: a.Identity(), To: b.Identity(), Index: -1})
	g.addEdge(Edge{From: b.Identity(), To: a.Identity(), Index: -1})

	_, err := g.TopologicalOrder()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestGroup_NestingIsRejected(t *testing.T) {
	g := NewGraph()
	_, err := g.OpenGroup("outer")
	require.NoError(t, err)

	_, err = g.OpenGroup("inner")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGroup)
}

func TestGroup_TracksMembership(t *testing.T) {
	g := NewGraph()
	err := WithScope(g, func() error {
		return g.WithGroup(func() error {
			NewTask(func() *numberTask { return &numberTask{} })
			NewTask(func() *numberTask { return &numberTask{} })
			return nil
		}, "warmup")
	})
	require.NoError(t, err)

	grp, ok := g.Group("warmup")
	require.True(t, ok)
	assert.Len(t, grp.Members(), 2)
}

func TestGroup_ReopeningSameNameExtendsMembership(t *testing.T) {
	g := NewGraph()
	var x, y, z *numberTask

	err := WithScope(g, func() error {
		return g.WithGroup(func() error {
			x = NewTask(func() *numberTask { return &numberTask{} })
			y = NewTask(func() *numberTask { return &numberTask{} })
			return nil
		}, "g")
	})
	require.NoError(t, err)

	err = WithScope(g, func() error {
		return g.WithGroup(func() error {
			z = NewTask(func() *numberTask { return &numberTask{} })
			return nil
		}, "g")
	})
	require.NoError(t, err)

	grp, ok := g.Group("g")
	require.True(t, ok)
	require.Equal(t, []uuid.UUID{x.Identity(), y.Identity(), z.Identity()}, grp.Members())
}

func TestRenameTask_RewritesEdges(t *testing.T) {
	g, a, b, _, _ := buildDiamond(t)
	newID := uuid.New()
	oldID := a.Identity()

	require.NoError(t, g.RenameTask(oldID, newID))

	_, stillThere := g.TaskByID(oldID)
	assert.False(t, stillThere)
	renamed, ok := g.TaskByID(newID)
	require.True(t, ok)
	assert.Equal(t, newID, renamed.Identity())

	pred := g.Predecessors(b)
	require.Len(t, pred, 1)
	assert.Equal(t, newID, pred[0].Identity())
}

func TestConnect_WiresWholeObjectEdge(t *testing.T) {
	g := NewGraph()
	var a, b *numberTask

	err := WithScope(g, func() error {
		a = NewTask(func() *numberTask { return &numberTask{} })
		b = NewTask(func() *numberTask { return &numberTask{} })
		return g.Connect(a, b)
	})
	require.NoError(t, err)

	edges := g.GetEdge(a, b)
	require.Len(t, edges, 1)
	assert.Empty(t, edges[0].Attribute)
}

func TestPredecessorsAndSuccessors(t *testing.T) {
	g, a, b, _, d := buildDiamond(t)

	succ := g.Successors(a)
	assert.Len(t, succ, 2)

	pred := g.Predecessors(d)
	require.Len(t, pred, 1)
	assert.Equal(t, b.Identity(), pred[0].Identity())
}

func TestFinalize_ReopeningSameGraphWiresNewlyAddedTask(t *testing.T) {
	g := NewGraph()
	var a, b *numberTask

	err := WithScope(g, func() error {
		a = NewTask(func() *numberTask { return &numberTask{In: 0} })
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, g.Edges())

	err = WithScope(g, func() error {
		b = NewTask(func() *numberTask { return &numberTask{In: Ref(a, "Out")} })
		return nil
	})
	require.NoError(t, err)

	edges := g.GetEdge(a, b)
	require.Len(t, edges, 1)
	assert.Equal(t, "In", edges[0].Attribute)
}

func TestRef_RejectsTaskOwnedByADifferentGraph(t *testing.T) {
	g1 := NewGraph()
	var a *numberTask
	require.NoError(t, WithScope(g1, func() error {
		a = NewTask(func() *numberTask { return &numberTask{} })
		return nil
	}))

	g2 := NewGraph()
	assert.Panics(t, func() {
		_ = WithScope(g2, func() error {
			NewTask(func() *numberTask { return &numberTask{In: Ref(a, "Out")} })
			return nil
		})
	})
}
