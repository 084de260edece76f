package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomlx/graphopt/ops"
)

// NodeId is a unique identifier of a Node within a Graph.
// Ids are assigned sequentially at insertion and are never reused, so they
// remain stable across node removals.
type NodeId int

// InvalidNodeId is returned for nodes that have been removed from their graph.
const InvalidNodeId = NodeId(-1)

// ControlSlot is the slot number used on both endpoints of control edges.
// Control edges carry no value, only an execution-order constraint.
const ControlSlot = -1

// Node is an operation vertex in a Graph.
//
// Nodes are created with Graph.AddNode (or Graph.CopyNode) and own their
// attributes. The in- and out-edge lists are managed by the Graph: use
// Graph.AddEdge, Graph.AddControlEdge, Graph.RemoveEdge and Graph.RemoveNode
// to change them.
type Node struct {
	graph  *Graph
	id     NodeId
	name   string
	opType ops.OpType
	def    *ops.OpDef
	attrs  ops.Attrs
	device string

	// inEdges and outEdges are in insertion order, not slot order.
	inEdges  []*Edge
	outEdges []*Edge
}

// Graph returns the graph that owns the node, or nil if the node was removed.
func (n *Node) Graph() *Graph { return n.graph }

// Id returns the node's unique id within its graph, or InvalidNodeId if the
// node was removed.
func (n *Node) Id() NodeId {
	if n.graph == nil {
		return InvalidNodeId
	}
	return n.id
}

// Name returns the node's unique name within its graph.
func (n *Node) Name() string { return n.name }

// Type returns the node's operation type.
func (n *Node) Type() ops.OpType { return n.opType }

// Def returns the registered definition of the node's operation type.
func (n *Node) Def() *ops.OpDef { return n.def }

// Attrs returns the node's attributes. The returned map is owned by the node:
// it is valid to read concurrently, but mutations must not race with graph
// transformations.
func (n *Node) Attrs() ops.Attrs { return n.attrs }

// Device returns the name of the device the node is assigned to, or "" if the
// node has not been placed yet.
func (n *Node) Device() string { return n.device }

// SetDevice assigns the node to the named device.
func (n *Node) SetDevice(device string) { n.device = device }

// IsSource returns whether the node is the graph's source sentinel.
func (n *Node) IsSource() bool { return n.opType == ops.OpTypeSource }

// IsSink returns whether the node is the graph's sink sentinel.
func (n *Node) IsSink() bool { return n.opType == ops.OpTypeSink }

// IsSentinel returns whether the node is one of the graph's source/sink
// sentinels. Sentinels are created with the graph and cannot be removed.
func (n *Node) IsSentinel() bool { return n.IsSource() || n.IsSink() }

// IsConstant returns whether the node is a Const operation.
func (n *Node) IsConstant() bool { return n.opType == ops.OpTypeConst }

// IsStateful returns whether the node's operation has side effects or
// internal state (e.g. random generators).
func (n *Node) IsStateful() bool { return n.def.Stateful }

// IsControlFlow returns whether the node's operation steers execution
// (Switch, Merge, Enter, Exit, NextIteration).
func (n *Node) IsControlFlow() bool { return n.def.Class == ops.OpClassControlFlow }

// IsSendRecv returns whether the node is a Send or Recv transfer operation.
func (n *Node) IsSendRecv() bool { return n.def.Class == ops.OpClassSendRecv }

// InEdges returns the node's incoming edges, in insertion order.
// The returned slice is owned by the graph and is only valid until the next
// graph mutation.
func (n *Node) InEdges() []*Edge { return n.inEdges }

// OutEdges returns the node's outgoing edges, in insertion order.
// The returned slice is owned by the graph and is only valid until the next
// graph mutation.
func (n *Node) OutEdges() []*Edge { return n.outEdges }

// InDataEdges returns the node's incoming data edges (control edges filtered
// out) sorted by destination slot. It allocates a new slice.
func (n *Node) InDataEdges() []*Edge {
	edges := make([]*Edge, 0, len(n.inEdges))
	for _, e := range n.inEdges {
		if !e.IsControl() {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].dstInput < edges[j].dstInput })
	return edges
}

// OutDataEdges returns the node's outgoing data edges (control edges filtered
// out), in insertion order. It allocates a new slice.
func (n *Node) OutDataEdges() []*Edge {
	edges := make([]*Edge, 0, len(n.outEdges))
	for _, e := range n.outEdges {
		if !e.IsControl() {
			edges = append(edges, e)
		}
	}
	return edges
}

// NumInDataEdges returns the number of incoming data edges.
func (n *Node) NumInDataEdges() int {
	count := 0
	for _, e := range n.inEdges {
		if !e.IsControl() {
			count++
		}
	}
	return count
}

// String returns a one-line description of the node, its inputs and device,
// e.g. `add0 [Add](c0:0, c1:0, ^trigger)`.
func (n *Node) String() string {
	if n.graph == nil {
		return fmt.Sprintf("%s [%s] (removed)", n.name, n.opType)
	}
	parts := make([]string, 0, len(n.inEdges))
	for _, e := range n.InDataEdges() {
		parts = append(parts, fmt.Sprintf("%s:%d", e.src.name, e.srcOutput))
	}
	for _, e := range n.inEdges {
		// Hookup edges from the source are maintenance noise, not inputs.
		if e.IsControl() && !e.src.IsSource() {
			parts = append(parts, "^"+e.src.name)
		}
	}
	var device string
	if n.device != "" {
		device = " @" + n.device
	}
	return fmt.Sprintf("%s [%s](%s)%s", n.name, n.opType, strings.Join(parts, ", "), device)
}

// Edge is a directed connection between two nodes of the same graph.
//
// A data edge connects output slot SrcOutput of Src to input slot DstInput of
// Dst and carries a tensor at execution time. A control edge has ControlSlot
// on both endpoints and only constrains execution order.
type Edge struct {
	src, dst            *Node
	srcOutput, dstInput int
	removed             bool
}

// Src returns the producing node.
func (e *Edge) Src() *Node { return e.src }

// Dst returns the consuming node.
func (e *Edge) Dst() *Node { return e.dst }

// SrcOutput returns the output slot on the producing node, or ControlSlot for
// control edges.
func (e *Edge) SrcOutput() int { return e.srcOutput }

// DstInput returns the input slot on the consuming node, or ControlSlot for
// control edges.
func (e *Edge) DstInput() int { return e.dstInput }

// IsControl returns whether the edge is a control edge.
func (e *Edge) IsControl() bool { return e.srcOutput == ControlSlot }

// String returns a compact description of the edge, e.g. `c0:0->add0:1` for
// data edges or `a->^b` for control edges.
func (e *Edge) String() string {
	if e.IsControl() {
		return fmt.Sprintf("%s->^%s", e.src.name, e.dst.name)
	}
	return fmt.Sprintf("%s:%d->%s:%d", e.src.name, e.srcOutput, e.dst.name, e.dstInput)
}
