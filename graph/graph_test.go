package graph

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"

	"github.com/gomlx/graphopt/ops"
	"github.com/gomlx/graphopt/types/tensors"
)

func init() {
	klog.InitFlags(nil)
	_ = flag.Set("logtostderr", "true")
}

// constDef returns a NodeDef of a Const node holding a scalar.
func constDef(name string, value float32) NodeDef {
	return NodeDef{
		Name:  name,
		Type:  ops.OpTypeConst,
		Attrs: ops.Attrs{ops.AttrKeyValue: ops.TensorAttr(tensors.FromScalar(value))},
	}
}

// hasEdge returns whether there is an edge (data or control) from src to dst.
func hasEdge(src, dst *Node) bool {
	for _, e := range src.OutEdges() {
		if e.Dst() == dst {
			return true
		}
	}
	return false
}

func TestNew(t *testing.T) {
	g := New("empty")
	require.Equal(t, "empty", g.Name())
	require.Equal(t, 2, g.NumNodes())
	require.Equal(t, 0, g.NumOpNodes())
	require.NotNil(t, g.Source())
	require.NotNil(t, g.Sink())
	require.True(t, g.Source().IsSource())
	require.True(t, g.Sink().IsSink())
	require.Equal(t, g.Source(), g.NodeByName(SourceName))
	require.Equal(t, g.Sink(), g.NodeByName(SinkName))

	// The sentinels are connected so traversals of an empty graph see both.
	require.True(t, hasEdge(g.Source(), g.Sink()))
}

func TestAddNode(t *testing.T) {
	g := New(t.Name())
	c, err := g.AddNode(constDef("c", 1))
	require.NoError(t, err)
	require.Equal(t, "c", c.Name())
	require.Equal(t, ops.OpTypeConst, c.Type())
	require.Equal(t, g, c.Graph())
	require.Equal(t, c, g.NodeByName("c"))
	require.Equal(t, c, g.NodeById(c.Id()))
	require.Equal(t, 1, g.NumOpNodes())

	// Until it gets real edges the node hangs off the sentinels.
	require.True(t, hasEdge(g.Source(), c))
	require.True(t, hasEdge(c, g.Sink()))

	// Attributes are cloned on insertion.
	def := constDef("c2", 2)
	c2, err := g.AddNode(def)
	require.NoError(t, err)
	def.Attrs["extra"] = ops.IntAttr(1)
	assert.NotContains(t, c2.Attrs(), "extra")

	t.Run("generated names", func(t *testing.T) {
		g := New(t.Name())
		a, err := g.AddNode(NodeDef{Type: ops.OpTypeNoOp})
		require.NoError(t, err)
		b, err := g.AddNode(NodeDef{Type: ops.OpTypeNoOp})
		require.NoError(t, err)
		assert.Equal(t, "noop", a.Name())
		assert.Equal(t, "noop_1", b.Name())
	})

	t.Run("errors", func(t *testing.T) {
		g := New(t.Name())
		_, err := g.AddNode(NodeDef{Name: "bad", Type: ops.OpTypeInvalid})
		assert.ErrorContains(t, err, "not registered")
		_, err = g.AddNode(NodeDef{Name: "bad", Type: ops.OpTypeSource})
		assert.ErrorContains(t, err, "created with the graph")
		_, err = g.AddNode(constDef("dup", 1))
		require.NoError(t, err)
		_, err = g.AddNode(constDef("dup", 2))
		assert.ErrorContains(t, err, "already taken")

		// Per-op attribute validation.
		_, err = g.AddNode(NodeDef{Name: "novalue", Type: ops.OpTypeConst})
		assert.ErrorContains(t, err, ops.AttrKeyValue)
		_, err = g.AddNode(NodeDef{Name: "noname", Type: ops.OpTypeRecv})
		assert.ErrorContains(t, err, ops.AttrKeyTensorName)
		_, err = g.AddNode(NodeDef{
			Name:  "wrongkind",
			Type:  ops.OpTypeSend,
			Attrs: ops.Attrs{ops.AttrKeyTensorName: ops.IntAttr(7)},
		})
		assert.ErrorContains(t, err, "holds Int")
	})
}

func TestCopyNode(t *testing.T) {
	g := New(t.Name())
	c, err := g.AddNode(constDef("c", 3))
	require.NoError(t, err)
	c.SetDevice("local:0")

	g2 := New(t.Name() + "/copy")
	c2, err := g2.CopyNode(c, "")
	require.NoError(t, err)
	assert.Equal(t, "const", c2.Name())
	assert.Equal(t, ops.OpTypeConst, c2.Type())
	assert.Equal(t, "local:0", c2.Device())
	value, err := c2.Attrs().GetTensor(ops.AttrKeyValue)
	require.NoError(t, err)
	assert.Equal(t, float32(3), tensors.ToScalar[float32](value))
}

func TestAddEdge(t *testing.T) {
	g := New(t.Name())
	a, _ := g.AddNode(constDef("a", 1))
	b, _ := g.AddNode(constDef("b", 2))
	add, err := g.AddNode(NodeDef{Name: "add", Type: ops.OpTypeAdd})
	require.NoError(t, err)

	// Edges added out of slot order; InDataEdges returns them sorted.
	e1 := g.AddEdge(b, 0, add, 1)
	e0 := g.AddEdge(a, 0, add, 0)
	require.Equal(t, 2, add.NumInDataEdges())
	dataEdges := add.InDataEdges()
	require.Equal(t, []*Edge{e0, e1}, dataEdges)
	assert.False(t, e0.IsControl())
	assert.Equal(t, 0, e0.SrcOutput())
	assert.Equal(t, 0, e0.DstInput())

	// Real edges displaced the hookups on the connected endpoints.
	assert.False(t, hasEdge(a, g.Sink()))
	assert.False(t, hasEdge(b, g.Sink()))
	assert.False(t, hasEdge(g.Source(), add))
	// ...but not on the unconnected ones.
	assert.True(t, hasEdge(g.Source(), a))
	assert.True(t, hasEdge(add, g.Sink()))

	t.Run("panics", func(t *testing.T) {
		other := New(t.Name() + "/other")
		foreign, _ := other.AddNode(constDef("foreign", 1))
		require.Panics(t, func() { g.AddEdge(foreign, 0, add, 0) })          // wrong graph
		require.Panics(t, func() { g.AddEdge(a, 0, add, 0) })                // slot taken
		require.Panics(t, func() { g.AddEdge(a, 0, add, 2) })                // out of range: Add takes 2 inputs
		require.Panics(t, func() { g.AddEdge(a, 0, b, ControlSlot) })        // negative slot
		require.Panics(t, func() { g.AddEdge(a, 0, a, 0) })                  // self-loop
		require.Panics(t, func() { g.AddEdge(g.Source(), 0, add, 0) })       // sentinel
		require.Panics(t, func() { g.AddEdge(a, 0, g.Sink(), 0) })           // sentinel
	})
}

func TestAddControlEdge(t *testing.T) {
	g := New(t.Name())
	a, _ := g.AddNode(constDef("a", 1))
	b, _ := g.AddNode(NodeDef{Name: "b", Type: ops.OpTypeNoOp})

	e := g.AddControlEdge(a, b)
	require.True(t, e.IsControl())
	assert.Equal(t, ControlSlot, e.SrcOutput())
	assert.Equal(t, ControlSlot, e.DstInput())
	assert.False(t, hasEdge(a, g.Sink()))
	assert.False(t, hasEdge(g.Source(), b))

	// Adding the same control edge again returns the existing one.
	assert.Equal(t, e, g.AddControlEdge(a, b))
	assert.Len(t, b.InEdges(), 1)
}

func TestRemoveEdge(t *testing.T) {
	g := New(t.Name())
	a, _ := g.AddNode(constDef("a", 1))
	id, _ := g.AddNode(NodeDef{Name: "id", Type: ops.OpTypeIdentity})
	e := g.AddEdge(a, 0, id, 0)

	g.RemoveEdge(e)
	// Both endpoints went back on the sentinel hookups.
	assert.True(t, hasEdge(a, g.Sink()))
	assert.True(t, hasEdge(g.Source(), id))
	assert.Empty(t, id.InDataEdges())

	require.Panics(t, func() { g.RemoveEdge(e) }) // double remove
	require.Panics(t, func() { g.RemoveEdge(a.OutEdges()[0]) }) // hookup edge, graph-owned
}

func TestRemoveNode(t *testing.T) {
	g := New(t.Name())
	a, _ := g.AddNode(constDef("a", 1))
	b, _ := g.AddNode(constDef("b", 2))
	add, _ := g.AddNode(NodeDef{Name: "add", Type: ops.OpTypeAdd})
	neg, _ := g.AddNode(NodeDef{Name: "neg", Type: ops.OpTypeNeg})
	g.AddEdge(a, 0, add, 0)
	g.AddEdge(b, 0, add, 1)
	g.AddEdge(add, 0, neg, 0)

	numIds := g.NumNodeIds()
	g.RemoveNode(add)

	assert.Equal(t, InvalidNodeId, add.Id())
	assert.Nil(t, g.NodeByName("add"))
	assert.Equal(t, 3, g.NumOpNodes())
	// Ids are retired, not reused.
	assert.Equal(t, numIds, g.NumNodeIds())

	// The neighbors that lost their last real edge got hooked back up.
	assert.True(t, hasEdge(a, g.Sink()))
	assert.True(t, hasEdge(b, g.Sink()))
	assert.True(t, hasEdge(g.Source(), neg))

	require.Panics(t, func() { g.RemoveNode(add) })        // already removed
	require.Panics(t, func() { g.RemoveNode(g.Source()) }) // sentinel
	require.Panics(t, func() { g.AddEdge(add, 0, neg, 0) }) // removed nodes cannot be used
}

func TestNewName(t *testing.T) {
	g := New(t.Name())
	require.Equal(t, "x", g.NewName("x"))
	// Names are reserved even before they are used by a node.
	require.Equal(t, "x_1", g.NewName("x"))

	_, err := g.AddNode(NodeDef{Name: "y", Type: ops.OpTypeNoOp})
	require.NoError(t, err)
	_, err = g.AddNode(NodeDef{Name: "y_1", Type: ops.OpTypeNoOp})
	require.NoError(t, err)
	require.Equal(t, "y_2", g.NewName("y"))
}

func TestGraphString(t *testing.T) {
	g := New(t.Name())
	a, _ := g.AddNode(constDef("a", 1))
	neg, _ := g.AddNode(NodeDef{Name: "neg", Type: ops.OpTypeNeg, Device: "local:0"})
	g.AddEdge(a, 0, neg, 0)

	s := g.String()
	assert.Contains(t, s, "a [Const]()")
	assert.Contains(t, s, "neg [Neg](a:0) @local:0")
	assert.Contains(t, s, SourceName)
	assert.Contains(t, s, SinkName)
}
