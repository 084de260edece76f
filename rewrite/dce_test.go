package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/graph/graphtest"
	"github.com/gomlx/graphopt/ops"
)

func TestEliminateDeadCode(t *testing.T) {
	t.Run("no dead code", func(t *testing.T) {
		g := graph.New("g")
		c1 := graphtest.Const(t, g, "c1", int32(1))
		c2 := graphtest.Const(t, g, "c2", int32(2))
		add := graphtest.Binary(t, g, ops.OpTypeAdd, "add", c1, c2)

		require.False(t, EliminateDeadCode(g, []*graph.Node{add}))
		assert.Equal(t, 3, g.NumOpNodes())
	})

	t.Run("unused parameters stay", func(t *testing.T) {
		g := graph.New("g")
		p0 := graphtest.Parameter(t, g, "p0")
		p1 := graphtest.Parameter(t, g, "p1")
		graphtest.Parameter(t, g, "p2")
		live := graphtest.Unary(t, g, ops.OpTypeNeg, "live", p0)
		graphtest.Unary(t, g, ops.OpTypeAbs, "dead", p1)
		require.Equal(t, 5, g.NumOpNodes())

		require.True(t, EliminateDeadCode(g, []*graph.Node{live}))

		// Only the dead op goes; parameters are always retained.
		assert.ElementsMatch(t, []string{"p0", "p1", "p2", "live"}, opNames(g))

		require.False(t, EliminateDeadCode(g, []*graph.Node{live}))
	})

	t.Run("stateful nodes stay", func(t *testing.T) {
		g := graph.New("g")
		c := graphtest.Const(t, g, "c", int32(1))
		root := graphtest.Unary(t, g, ops.OpTypeIdentity, "root", c)
		rng := graphtest.AddNode(t, g, graph.NodeDef{Name: "rng", Type: ops.OpTypeRandomUniform})
		graphtest.Unary(t, g, ops.OpTypeNeg, "dead", rng)

		require.True(t, EliminateDeadCode(g, []*graph.Node{root}))

		// rng has effects, so it stays; its dead consumer does not.
		assert.ElementsMatch(t, []string{"c", "root", "rng"}, opNames(g))
	})

	t.Run("control dependencies retained", func(t *testing.T) {
		g := graph.New("g")
		p := graphtest.Parameter(t, g, "p")
		c := graphtest.Const(t, g, "c", int32(1))
		root := graphtest.Binary(t, g, ops.OpTypeMul, "root", p, c)
		neg1 := graphtest.Unary(t, g, ops.OpTypeNeg, "neg1", c)
		graphtest.Binary(t, g, ops.OpTypeAdd, "add1", neg1, c)
		neg2 := graphtest.Unary(t, g, ops.OpTypeNeg, "neg2", c)
		add2 := graphtest.Binary(t, g, ops.OpTypeAdd, "add2", neg2, c)
		g.AddControlEdge(neg2, add2)
		require.Equal(t, 7, g.NumOpNodes())

		require.True(t, EliminateDeadCode(g, []*graph.Node{root}))

		// The pair held together by the control dependency survives, its
		// unlinked twin does not.
		assert.ElementsMatch(t, []string{"p", "c", "root", "neg2", "add2"}, opNames(g))
		require.False(t, EliminateDeadCode(g, []*graph.Node{root}))
	})

	t.Run("empty roots", func(t *testing.T) {
		g := graph.New("g")
		c1 := graphtest.Const(t, g, "c1", int32(1))
		c2 := graphtest.Const(t, g, "c2", int32(2))
		graphtest.Binary(t, g, ops.OpTypeAdd, "add", c1, c2)
		graphtest.Parameter(t, g, "p")

		require.True(t, EliminateDeadCode(g, nil))

		// Nothing to preserve but the parameter.
		assert.ElementsMatch(t, []string{"p"}, opNames(g))
	})

	t.Run("bad roots", func(t *testing.T) {
		g := graph.New("g")
		other := graph.New("other")
		foreign := graphtest.Const(t, other, "c", int32(1))
		assert.Panics(t, func() { EliminateDeadCode(g, []*graph.Node{foreign}) })
		assert.Panics(t, func() { EliminateDeadCode(g, []*graph.Node{nil}) })

		removed := graphtest.Const(t, g, "gone", int32(1))
		g.RemoveNode(removed)
		assert.Panics(t, func() { EliminateDeadCode(g, []*graph.Node{removed}) })
	})
}

func TestEliminateDeadCodeDeepChain(t *testing.T) {
	const depth = 50_000
	g := graph.New("chain")
	node := graphtest.Const(t, g, "c", int64(0))
	for range depth {
		node = graphtest.Unary(t, g, ops.OpTypeIdentity, g.NewName("id"), node)
	}

	// Everything is live from the chain's last node.
	require.False(t, EliminateDeadCode(g, []*graph.Node{node}))
	require.Equal(t, depth+1, g.NumOpNodes())

	// And everything is dead without it.
	require.True(t, EliminateDeadCode(g, nil))
	assert.Equal(t, 0, g.NumOpNodes())
}
