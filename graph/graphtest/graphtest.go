// Package graphtest holds test utilities for packages that depend on the
// graph package: one-line builders for the common node shapes, failing the
// test on any construction error.
package graphtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/ops"
	"github.com/gomlx/graphopt/types/tensors"
	"github.com/gomlx/graphopt/types/xslices"
)

// AddNode adds a node built from def, failing the test on error.
func AddNode(t *testing.T, g *graph.Graph, def graph.NodeDef) *graph.Node {
	node, err := g.AddNode(def)
	require.NoErrorf(t, err, "AddNode(%+v)", def)
	return node
}

// Const adds a Const node holding the given value, converted to a tensor with
// tensors.FromAnyValue: scalars, (multi-dimensional) slices and *tensors.Tensor
// all work.
func Const(t *testing.T, g *graph.Graph, name string, value any) *graph.Node {
	return AddNode(t, g, graph.NodeDef{
		Name:  name,
		Type:  ops.OpTypeConst,
		Attrs: ops.Attrs{ops.AttrKeyValue: ops.TensorAttr(tensors.FromAnyValue(value))},
	})
}

// Parameter adds a Parameter node. Its value is fed at execution time under
// the node's name.
func Parameter(t *testing.T, g *graph.Graph, name string) *graph.Node {
	return AddNode(t, g, graph.NodeDef{Name: name, Type: ops.OpTypeParameter})
}

// Unary adds a node of a one-input op type (Identity, Neg, Abs, ...) consuming
// input's output 0.
func Unary(t *testing.T, g *graph.Graph, opType ops.OpType, name string, input *graph.Node) *graph.Node {
	node := AddNode(t, g, graph.NodeDef{Name: name, Type: opType})
	g.AddEdge(input, 0, node, 0)
	return node
}

// Binary adds a node of a two-input op type (Add, Sub, Mul, Div) consuming
// lhs's and rhs's output 0.
func Binary(t *testing.T, g *graph.Graph, opType ops.OpType, name string, lhs, rhs *graph.Node) *graph.Node {
	node := AddNode(t, g, graph.NodeDef{Name: name, Type: opType})
	g.AddEdge(lhs, 0, node, 0)
	g.AddEdge(rhs, 0, node, 1)
	return node
}

// NodeNames returns the names of the given nodes, convenient for asserting on
// sets of nodes.
func NodeNames(nodes []*graph.Node) []string {
	return xslices.Map(nodes, (*graph.Node).Name)
}
