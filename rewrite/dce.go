package rewrite

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/ops"
	"github.com/gomlx/graphopt/types"
	"github.com/gomlx/graphopt/types/xslices"
)

// EliminateDeadCode deletes every node of g that cannot influence the given
// roots (the graph's outputs), directly or transitively. It returns whether
// anything was deleted.
//
// Stateful nodes and Parameter nodes are never deleted, and neither is any
// node tied to a live node by a control dependency: ordering constraints are
// effects too. Roots must be live nodes of g (fatal assertion otherwise).
func EliminateDeadCode(g *graph.Graph, roots []*graph.Node) bool {
	marked := types.MakeSet[graph.NodeId](g.NumNodes())
	var worklist []*graph.Node
	mark := func(n *graph.Node) {
		if marked.Has(n.Id()) {
			return
		}
		marked.Insert(n.Id())
		if !n.IsSentinel() {
			worklist = append(worklist, n)
		}
	}

	// The sentinels always stay, but are never expanded from: walking
	// backward from the sink would follow the hookup edges and keep
	// everything.
	marked.Insert(g.Source().Id(), g.Sink().Id())
	for _, n := range roots {
		if n == nil {
			exceptions.Panicf("EliminateDeadCode: nil root node")
		}
		if n.Graph() != g {
			exceptions.Panicf("EliminateDeadCode: root %q is not a live node of graph %q", n.Name(), g.Name())
		}
		mark(n)
	}
	for _, n := range g.Nodes() {
		if n.IsSentinel() {
			continue
		}
		if n.Def().Stateful || n.Type() == ops.OpTypeParameter {
			mark(n)
		}
		for _, e := range n.InEdges() {
			if e.IsControl() && !e.Src().IsSentinel() {
				mark(e.Src())
				mark(n)
			}
		}
	}

	for len(worklist) > 0 {
		var n *graph.Node
		n, worklist = xslices.Pop(worklist)
		for _, e := range n.InEdges() {
			mark(e.Src())
		}
	}

	removed := 0
	for _, n := range g.Nodes() {
		if !marked.Has(n.Id()) {
			g.RemoveNode(n)
			removed++
		}
	}
	if removed > 0 {
		klog.V(1).Infof("rewrite: dead code elimination removed %d nodes from graph %q, %d remain",
			removed, g.Name(), g.NumNodes())
	}
	return removed > 0
}
