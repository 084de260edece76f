// Package graph defines the dataflow graph that the graphopt optimizers and
// the executor operate on: operation nodes connected by data edges (which
// carry tensors between output and input slots) and control edges (which only
// constrain execution order).
//
// Every graph carries two sentinel nodes, the source and the sink, created
// with the graph itself. The graph maintains the invariant that every
// operation node is reachable from the source and reaches the sink: a node
// without incoming edges is given a control edge from the source, and a node
// without outgoing edges is given a control edge to the sink. These hookup
// edges are added and removed automatically as real edges come and go, so
// executors can always start at the source and declare completion at the
// sink.
//
// Graphs are not safe for concurrent mutation. Structural errors that can
// only come from a bug in the calling code (edges between graphs, duplicate
// slots, removed nodes) panic with an informative message; errors that depend
// on caller-provided data (unknown op type, bad attributes, duplicate names)
// are returned.
package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphopt/ops"
	"github.com/pkg/errors"
)

// Graph is a mutable directed graph of operation nodes.
//
// Create it with New, add nodes with AddNode or CopyNode and connect them
// with AddEdge / AddControlEdge. See the package documentation for the
// source/sink hookup invariant.
type Graph struct {
	name string

	// nodes is indexed by NodeId. Removed nodes leave a nil hole, so ids
	// are stable and NumNodeIds never shrinks.
	nodes    []*Node
	byName   map[string]*Node
	numNodes int

	// nameCounts holds the next suffix to try per NewName prefix.
	nameCounts map[string]int

	source, sink *Node
}

// SourceName and SinkName are the reserved names of the sentinel nodes of
// every graph.
const (
	SourceName = "_SOURCE"
	SinkName   = "_SINK"
)

// New creates an empty graph with the given name, containing only the source
// and sink sentinels connected by a control edge.
func New(name string) *Graph {
	g := &Graph{
		name:       name,
		byName:     make(map[string]*Node),
		nameCounts: make(map[string]int),
	}
	g.source = g.addSentinel(SourceName, ops.OpTypeSource)
	g.sink = g.addSentinel(SinkName, ops.OpTypeSink)
	g.connect(g.source, ControlSlot, g.sink, ControlSlot)
	return g
}

func (g *Graph) addSentinel(name string, opType ops.OpType) *Node {
	n := &Node{
		graph:  g,
		id:     NodeId(len(g.nodes)),
		name:   name,
		opType: opType,
		def:    ops.MustGet(opType),
		attrs:  ops.Attrs{},
	}
	g.nodes = append(g.nodes, n)
	g.byName[name] = n
	g.numNodes++
	return n
}

// Name returns the graph's name.
func (g *Graph) Name() string { return g.name }

// Source returns the graph's source sentinel.
func (g *Graph) Source() *Node { return g.source }

// Sink returns the graph's sink sentinel.
func (g *Graph) Sink() *Node { return g.sink }

// NumNodes returns the number of live nodes, sentinels included.
func (g *Graph) NumNodes() int { return g.numNodes }

// NumOpNodes returns the number of live operation nodes, sentinels excluded.
func (g *Graph) NumOpNodes() int { return g.numNodes - 2 }

// NumNodeIds returns the upper bound (exclusive) of node ids ever assigned.
// Use it to size tables indexed by NodeId; some ids may refer to removed
// nodes.
func (g *Graph) NumNodeIds() int { return len(g.nodes) }

// NodeById returns the node with the given id, or nil if the id is out of
// range or the node was removed.
func (g *Graph) NodeById(id NodeId) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// NodeByName returns the node with the given name, or nil if there isn't one.
func (g *Graph) NodeByName(name string) *Node { return g.byName[name] }

// Nodes returns the live nodes in id order, sentinels included.
// It allocates a new slice, so it is safe to mutate the graph while ranging
// over the result.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, g.numNodes)
	for _, n := range g.nodes {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// NewName returns a name starting with prefix that is not yet taken by any
// node, appending "_<n>" suffixes as needed. Successive calls with the same
// prefix return distinct names even before the names are used.
func (g *Graph) NewName(prefix string) string {
	name := prefix
	for count := g.nameCounts[prefix]; ; count++ {
		if count > 0 {
			name = fmt.Sprintf("%s_%d", prefix, count)
		}
		if _, taken := g.byName[name]; !taken {
			g.nameCounts[prefix] = count + 1
			return name
		}
	}
}

// NodeDef describes a node to be added to a graph with AddNode.
type NodeDef struct {
	// Name of the node, unique within the graph. If empty a name is
	// generated from the op type.
	Name string

	// Type of the operation. It must be registered in the ops package and
	// must not be one of the sentinel types.
	Type ops.OpType

	// Attrs holds the node attributes. It is cloned on insertion, the
	// caller keeps ownership of the map. May be nil.
	Attrs ops.Attrs

	// Device the node is assigned to. May be empty (unplaced).
	Device string
}

// AddNode creates a new node from def and inserts it in the graph, hooked up
// to the sentinels until it gets real edges.
//
// It returns an error if the op type is unknown or a sentinel, if the name is
// already taken, or if the attributes required by the op type are missing or
// of the wrong kind.
func (g *Graph) AddNode(def NodeDef) (*Node, error) {
	opDef := ops.Get(def.Type)
	if opDef == nil {
		return nil, errors.Errorf("AddNode %q: op type %s is not registered", def.Name, def.Type)
	}
	if def.Type == ops.OpTypeSource || def.Type == ops.OpTypeSink {
		return nil, errors.Errorf("AddNode %q: %s nodes are created with the graph and cannot be added", def.Name, def.Type)
	}
	name := def.Name
	if name == "" {
		name = g.NewName(strings.ToLower(def.Type.String()))
	} else if _, taken := g.byName[name]; taken {
		return nil, errors.Errorf("AddNode %q: name already taken", name)
	}
	attrs := def.Attrs.Clone()
	if attrs == nil {
		attrs = ops.Attrs{}
	}
	if err := validateAttrs(def.Type, attrs); err != nil {
		return nil, errors.WithMessagef(err, "AddNode %q", name)
	}

	n := &Node{
		graph:  g,
		id:     NodeId(len(g.nodes)),
		name:   name,
		opType: def.Type,
		def:    opDef,
		attrs:  attrs,
		device: def.Device,
	}
	g.nodes = append(g.nodes, n)
	g.byName[name] = n
	g.numNodes++
	g.connect(g.source, ControlSlot, n, ControlSlot)
	g.connect(n, ControlSlot, g.sink, ControlSlot)
	return n, nil
}

// validateAttrs checks the attributes that an op type requires at insertion
// time. Ops not listed here accept any attributes.
func validateAttrs(opType ops.OpType, attrs ops.Attrs) error {
	switch opType {
	case ops.OpTypeConst:
		t, err := attrs.GetTensor(ops.AttrKeyValue)
		if err != nil {
			return err
		}
		if !t.Ok() {
			return errors.Errorf("attribute %q holds an invalid tensor", ops.AttrKeyValue)
		}
	case ops.OpTypeSend, ops.OpTypeRecv:
		if _, err := attrs.GetString(ops.AttrKeyTensorName); err != nil {
			return err
		}
	}
	return nil
}

// CopyNode inserts a copy of node n (same op type, attributes and device)
// under the given name, or under a freshly generated one if name is empty.
// Edges are not copied. The node may belong to a different graph.
func (g *Graph) CopyNode(n *Node, name string) (*Node, error) {
	return g.AddNode(NodeDef{
		Name:   name,
		Type:   n.opType,
		Attrs:  n.attrs,
		Device: n.device,
	})
}

// AddEdge connects output slot srcOutput of src to input slot dstInput of
// dst and returns the new edge. Slots must be non-negative: use
// AddControlEdge for control edges.
//
// It panics if the nodes are not live nodes of this graph, if either is a
// sentinel, if the input slot is already connected or out of range for dst's
// op type, or if src == dst (self-loops are not representable).
func (g *Graph) AddEdge(src *Node, srcOutput int, dst *Node, dstInput int) *Edge {
	g.checkLive(src, "AddEdge")
	g.checkLive(dst, "AddEdge")
	if src.IsSentinel() || dst.IsSentinel() {
		exceptions.Panicf("AddEdge %s:%d->%s:%d: edges to or from sentinels are maintained by the graph", src.name, srcOutput, dst.name, dstInput)
	}
	if src == dst {
		exceptions.Panicf("AddEdge %s:%d->%s:%d: self-loops are not supported", src.name, srcOutput, dst.name, dstInput)
	}
	if srcOutput < 0 || dstInput < 0 {
		exceptions.Panicf("AddEdge %s:%d->%s:%d: slots must be non-negative, use AddControlEdge for control edges", src.name, srcOutput, dst.name, dstInput)
	}
	if numIn := dst.def.NumInputs; numIn >= 0 && dstInput >= numIn {
		exceptions.Panicf("AddEdge %s:%d->%s:%d: %s takes %d inputs", src.name, srcOutput, dst.name, dstInput, dst.opType, numIn)
	}
	for _, e := range dst.inEdges {
		if e.dstInput == dstInput {
			exceptions.Panicf("AddEdge %s:%d->%s:%d: input slot already connected to %s:%d", src.name, srcOutput, dst.name, dstInput, e.src.name, e.srcOutput)
		}
	}
	g.unhookFromSource(dst)
	g.unhookToSink(src)
	return g.connect(src, srcOutput, dst, dstInput)
}

// AddControlEdge adds a control edge from src to dst and returns it. If the
// control edge already exists it is returned unchanged.
//
// It panics under the same structural conditions as AddEdge.
func (g *Graph) AddControlEdge(src, dst *Node) *Edge {
	g.checkLive(src, "AddControlEdge")
	g.checkLive(dst, "AddControlEdge")
	if src.IsSentinel() || dst.IsSentinel() {
		exceptions.Panicf("AddControlEdge %s->^%s: edges to or from sentinels are maintained by the graph", src.name, dst.name)
	}
	if src == dst {
		exceptions.Panicf("AddControlEdge %s->^%s: self-loops are not supported", src.name, dst.name)
	}
	for _, e := range dst.inEdges {
		if e.IsControl() && e.src == src {
			return e
		}
	}
	g.unhookFromSource(dst)
	g.unhookToSink(src)
	return g.connect(src, ControlSlot, dst, ControlSlot)
}

// RemoveEdge removes an edge previously returned by AddEdge or
// AddControlEdge. If this leaves the source node without outgoing edges or
// the destination node without incoming ones, the sentinel hookups are
// restored.
//
// It panics if the edge was already removed or touches a sentinel (hookup
// edges are owned by the graph).
func (g *Graph) RemoveEdge(e *Edge) {
	if e.removed {
		exceptions.Panicf("RemoveEdge %s: edge already removed", e)
	}
	if e.src.IsSentinel() || e.dst.IsSentinel() {
		exceptions.Panicf("RemoveEdge %s: edges to or from sentinels are maintained by the graph", e)
	}
	g.checkLive(e.src, "RemoveEdge")
	g.checkLive(e.dst, "RemoveEdge")
	g.disconnect(e)
	g.rehookToSink(e.src)
	g.rehookFromSource(e.dst)
}

// RemoveNode removes a node and all its edges from the graph. Nodes that lose
// their last incoming or outgoing edge in the process are hooked back up to
// the sentinels. The node's id is retired, not reused.
//
// It panics if the node is a sentinel or not a live node of this graph.
func (g *Graph) RemoveNode(n *Node) {
	g.checkLive(n, "RemoveNode")
	if n.IsSentinel() {
		exceptions.Panicf("RemoveNode %s: sentinels cannot be removed", n.name)
	}
	for _, e := range slices.Clone(n.inEdges) {
		g.disconnect(e)
		if !e.src.IsSentinel() {
			g.rehookToSink(e.src)
		}
	}
	for _, e := range slices.Clone(n.outEdges) {
		g.disconnect(e)
		if !e.dst.IsSentinel() {
			g.rehookFromSource(e.dst)
		}
	}
	delete(g.byName, n.name)
	g.nodes[n.id] = nil
	g.numNodes--
	n.graph = nil
}

// String returns a multi-line dump of the graph, one node per line in id
// order.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Graph %q: %d nodes (%d op nodes)", g.name, g.numNodes, g.NumOpNodes())
	for _, n := range g.nodes {
		if n != nil {
			fmt.Fprintf(&sb, "\n\t#%d\t%s", n.id, n)
		}
	}
	return sb.String()
}

// connect links src and dst with a new edge, bypassing all checks and hookup
// maintenance.
func (g *Graph) connect(src *Node, srcOutput int, dst *Node, dstInput int) *Edge {
	e := &Edge{src: src, srcOutput: srcOutput, dst: dst, dstInput: dstInput}
	src.outEdges = append(src.outEdges, e)
	dst.inEdges = append(dst.inEdges, e)
	return e
}

// disconnect unlinks e from both endpoints, bypassing hookup maintenance.
func (g *Graph) disconnect(e *Edge) {
	e.src.outEdges = slices.DeleteFunc(e.src.outEdges, func(o *Edge) bool { return o == e })
	e.dst.inEdges = slices.DeleteFunc(e.dst.inEdges, func(o *Edge) bool { return o == e })
	e.removed = true
}

// unhookFromSource drops n's hookup edge from the source, if present.
func (g *Graph) unhookFromSource(n *Node) {
	for _, e := range n.inEdges {
		if e.src == g.source {
			g.disconnect(e)
			return
		}
	}
}

// unhookToSink drops n's hookup edge to the sink, if present.
func (g *Graph) unhookToSink(n *Node) {
	for _, e := range n.outEdges {
		if e.dst == g.sink {
			g.disconnect(e)
			return
		}
	}
}

// rehookFromSource restores n's hookup edge from the source if n was left
// without incoming edges.
func (g *Graph) rehookFromSource(n *Node) {
	if len(n.inEdges) == 0 {
		g.connect(g.source, ControlSlot, n, ControlSlot)
	}
}

// rehookToSink restores n's hookup edge to the sink if n was left without
// outgoing edges.
func (g *Graph) rehookToSink(n *Node) {
	if len(n.outEdges) == 0 {
		g.connect(n, ControlSlot, g.sink, ControlSlot)
	}
}

// checkLive panics if n is not a live node of graph g.
func (g *Graph) checkLive(n *Node, op string) {
	if n.graph == nil {
		exceptions.Panicf("%s: node %q was removed from its graph", op, n.name)
	}
	if n.graph != g {
		exceptions.Panicf("%s: node %q belongs to graph %q, not %q", op, n.name, n.graph.name, g.name)
	}
}
