package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/graphopt/ops"
)

// buildDiamond returns a graph computing neg(add(a, b)) plus the nodes.
func buildDiamond(t *testing.T) (g *Graph, a, b, add, neg *Node) {
	g = New(t.Name())
	var err error
	a, err = g.AddNode(constDef("a", 1))
	require.NoError(t, err)
	b, err = g.AddNode(constDef("b", 2))
	require.NoError(t, err)
	add, err = g.AddNode(NodeDef{Name: "add", Type: ops.OpTypeAdd})
	require.NoError(t, err)
	neg, err = g.AddNode(NodeDef{Name: "neg", Type: ops.OpTypeNeg})
	require.NoError(t, err)
	g.AddEdge(a, 0, add, 0)
	g.AddEdge(b, 0, add, 1)
	g.AddEdge(add, 0, neg, 0)
	return
}

func TestReverseDFS(t *testing.T) {
	g, a, b, add, neg := buildDiamond(t)

	var entered, left []*Node
	ReverseDFS(g, func(n *Node) { entered = append(entered, n) }, func(n *Node) { left = append(left, n) })

	require.Len(t, entered, g.NumNodes())
	require.Len(t, left, g.NumNodes())

	// Every node leaves after all its ancestors.
	leaveIndex := make(map[*Node]int, len(left))
	for i, n := range left {
		leaveIndex[n] = i
	}
	assert.Less(t, leaveIndex[a], leaveIndex[add])
	assert.Less(t, leaveIndex[b], leaveIndex[add])
	assert.Less(t, leaveIndex[add], leaveIndex[neg])
	assert.Equal(t, g.Source(), left[0])
	assert.Equal(t, g.Sink(), left[len(left)-1])
}

func TestReverseDFSFrom(t *testing.T) {
	g, a, b, add, neg := buildDiamond(t)

	var left []*Node
	ReverseDFSFrom(g, []*Node{add}, nil, func(n *Node) { left = append(left, n) })

	assert.ElementsMatch(t, []*Node{g.Source(), a, b, add}, left)
	assert.NotContains(t, left, neg)
	assert.NotContains(t, left, g.Sink())
}

func TestReverseDFSWithCycle(t *testing.T) {
	// Loop structure: merge takes a back edge from nextiteration, the
	// traversal must still terminate and visit each node once.
	g := New(t.Name())
	enter, err := g.AddNode(NodeDef{Name: "enter", Type: ops.OpTypeEnter})
	require.NoError(t, err)
	merge, err := g.AddNode(NodeDef{Name: "merge", Type: ops.OpTypeMerge})
	require.NoError(t, err)
	next, err := g.AddNode(NodeDef{Name: "next", Type: ops.OpTypeNextIteration})
	require.NoError(t, err)
	exit, err := g.AddNode(NodeDef{Name: "exit", Type: ops.OpTypeExit})
	require.NoError(t, err)
	c, err := g.AddNode(constDef("c", 0))
	require.NoError(t, err)
	g.AddEdge(c, 0, enter, 0)
	g.AddEdge(enter, 0, merge, 0)
	g.AddEdge(merge, 0, next, 0)
	g.AddEdge(next, 0, merge, 1)
	g.AddEdge(merge, 0, exit, 0)

	seen := make(map[*Node]int)
	ReverseDFS(g, func(n *Node) { seen[n]++ }, nil)
	require.Len(t, seen, g.NumNodes())
	for n, count := range seen {
		assert.Equalf(t, 1, count, "node %s visited %d times", n.Name(), count)
	}
}
