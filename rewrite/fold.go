// Package rewrite implements the graph optimization passes: constant folding
// (FoldConstants) and dead code elimination (EliminateDeadCode).
//
// Both passes mutate the given graph in place and report whether they changed
// anything, so hosts can run them to a fixed point. They are not safe to run
// concurrently with anything else touching the same graph.
package rewrite

import (
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/graphopt/exec"
	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/ops"
	"github.com/gomlx/graphopt/types"
	"github.com/gomlx/graphopt/types/tensors"
)

// FoldOptions configures FoldConstants.
type FoldOptions struct {
	// Consider, when non-nil, is consulted per node: returning false makes
	// the node ineligible for folding (pre-existing Const nodes are always
	// eligible). Use it to protect nodes whose identity matters to the
	// caller, like fetch or feed targets.
	Consider func(n *graph.Node) bool
}

// FoldConstants finds the nodes of g whose values do not depend on any input
// or side effect, computes them on device, and replaces them with Const
// nodes. Orphaned inputs of the replaced nodes are deleted. It returns
// whether the graph was changed.
//
// A failed fold attempt is logged and leaves the graph valid: either
// untouched, or -- if the failure surfaced halfway through committing
// replacements -- with the replacements made so far kept and the rest
// abandoned.
func FoldConstants(device *exec.Device, g *graph.Graph, opts FoldOptions) bool {
	if device == nil {
		klog.V(1).Infof("rewrite: no device to fold constants of graph %q on", g.Name())
		return false
	}
	foldable := findFoldableNodes(g, opts.Consider)
	if len(foldable) == 0 {
		klog.V(1).Infof("rewrite: no foldable nodes in graph %q", g.Name())
		return false
	}
	sub, fetches, err := extractFoldableSubgraph(g, foldable)
	if err != nil {
		klog.Warningf("rewrite: abandoning fold of graph %q: %v", g.Name(), err)
		return false
	}
	if len(fetches) == 0 {
		klog.V(1).Infof("rewrite: no foldable values cross back into graph %q, nothing to fold", g.Name())
		return false
	}
	klog.V(1).Infof("rewrite: folding %d of %d op nodes of graph %q (%d boundary values)",
		len(foldable), g.NumOpNodes(), g.Name(), len(fetches))

	rdv, err := evaluateSubgraph(device, sub, fetches)
	if err != nil {
		klog.Warningf("rewrite: abandoning fold of graph %q, evaluation failed: %v", g.Name(), err)
		return false
	}
	recv := func(name string) (*tensors.Tensor, error) {
		value, err := rdv.Recv(exec.FetchKey(device, name))
		if err != nil {
			return nil, err
		}
		if value.IsDead() {
			return nil, errors.Errorf("value %q is dead", name)
		}
		return value.Tensor(), nil
	}
	replaced, bytes := applyFetches(g, fetches, recv)
	if replaced < len(fetches) {
		// Keep the replacements already committed; the orphans still
		// feed the unreplaced boundary nodes, so they stay too.
		return replaced > 0
	}

	fetched := types.MakeSet[graph.NodeId](len(fetches))
	for _, f := range fetches {
		fetched.Insert(f.orig.Id())
	}
	orphans := 0
	for _, n := range foldable {
		if !fetched.Has(n.Id()) {
			g.RemoveNode(n)
			orphans++
		}
	}
	klog.V(1).Infof("rewrite: folded graph %q: %d nodes replaced by constants (%s), %d orphans deleted",
		g.Name(), replaced, humanize.Bytes(bytes), orphans)
	return true
}

// findFoldableNodes returns the nodes of g whose value is a function of
// constants only, in an order where every node is preceded by its inputs.
//
// A node qualifies if it is a Const, or if it is stateless, not a
// control-flow or transfer node, accepted by the consider predicate, and all
// of its data inputs come from qualifying nodes. If that closure contains
// nothing beyond pre-existing Const leaves there is nothing worth folding and
// nil is returned.
func findFoldableNodes(g *graph.Graph, consider func(n *graph.Node) bool) []*graph.Node {
	var foldable []*graph.Node
	inSet := types.MakeSet[graph.NodeId]()
	internalNodeFound := false
	graph.ReverseDFS(g, nil, func(n *graph.Node) {
		if n.IsConstant() {
			inSet.Insert(n.Id())
			foldable = append(foldable, n)
			return
		}
		if !foldableOp(n, consider) || n.NumInDataEdges() == 0 {
			return
		}
		for _, e := range n.InDataEdges() {
			if !inSet.Has(e.Src().Id()) {
				return
			}
		}
		inSet.Insert(n.Id())
		foldable = append(foldable, n)
		internalNodeFound = true
	})
	if !internalNodeFound {
		return nil
	}
	return foldable
}

// foldableOp decides per-operation eligibility, independently of the node's
// inputs.
func foldableOp(n *graph.Node, consider func(n *graph.Node) bool) bool {
	def := n.Def()
	if n.IsSentinel() || def.Stateful || def.IsControlFlow() || def.IsSend() || def.IsRecv() {
		return false
	}
	return consider == nil || consider(n)
}

// fetchEntry ties a boundary node of the foldable set to its copy in the
// extracted subgraph. The node's value is published under fetchName(orig)
// when the subgraph runs.
type fetchEntry struct {
	orig *graph.Node // node of the host graph, to be replaced
	copy *graph.Node // its copy in the extracted subgraph
}

// fetchName is the rendezvous name a boundary node's value travels under:
// the node's (copied, so identical) name plus the output slot.
func fetchName(n *graph.Node) string {
	return n.Name() + ":0"
}

// extractFoldableSubgraph builds a standalone graph with a copy of every
// foldable node, replicating the edges internal to the foldable set, and
// returns one fetchEntry per boundary node -- a foldable node with at least
// one edge leaving the set. Entries follow the analyzer's order.
func extractFoldableSubgraph(g *graph.Graph, foldable []*graph.Node) (*graph.Graph, []fetchEntry, error) {
	sub := graph.New(g.Name() + "/fold")
	copies := make(map[graph.NodeId]*graph.Node, len(foldable))
	for _, n := range foldable {
		cp, err := sub.CopyNode(n, n.Name())
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "copying node %q into the fold subgraph", n.Name())
		}
		copies[n.Id()] = cp
		for _, e := range n.InEdges() {
			if e.Src().IsSentinel() {
				continue // the subgraph maintains its own hookups
			}
			srcCopy := copies[e.Src().Id()]
			if srcCopy == nil {
				continue // edge from outside the foldable set
			}
			if e.IsControl() {
				sub.AddControlEdge(srcCopy, cp)
			} else {
				sub.AddEdge(srcCopy, e.SrcOutput(), cp, e.DstInput())
			}
		}
	}
	var fetches []fetchEntry
	for _, n := range foldable {
		for _, e := range n.OutEdges() {
			// The sink is never copied, so a terminal foldable node
			// counts as a boundary and gets fetched rather than
			// silently dropped.
			if copies[e.Dst().Id()] == nil {
				fetches = append(fetches, fetchEntry{orig: n, copy: copies[n.Id()]})
				break
			}
		}
	}
	return sub, fetches, nil
}

// evaluateSubgraph plants one Send node per fetch entry, runs the subgraph on
// device and returns the rendezvous holding the sent values.
func evaluateSubgraph(device *exec.Device, sub *graph.Graph, fetches []fetchEntry) (*exec.Rendezvous, error) {
	for _, f := range fetches {
		send, err := sub.AddNode(graph.NodeDef{
			Name: sub.NewName("send/" + f.copy.Name()),
			Type: ops.OpTypeSend,
			Attrs: ops.Attrs{
				ops.AttrKeyTensorName: ops.StringAttr(fetchName(f.orig)),
			},
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "planting Send node for %q", f.copy.Name())
		}
		sub.AddEdge(f.copy, 0, send, 0)
	}
	executor, err := exec.NewExecutor(device, sub, exec.ExecutorParams{})
	if err != nil {
		return nil, err
	}
	rdv := exec.NewRendezvous()
	if err := executor.Run(exec.RunArgs{Rendezvous: rdv, Runner: device.PoolRunner()}); err != nil {
		return nil, err
	}
	return rdv, nil
}

// applyFetches drains one value per fetch entry, in order, replacing the
// original node with a Const node holding the value. On the first failure it
// stops and keeps the replacements committed so far. It returns how many
// replacements were committed and their total payload size.
func applyFetches(g *graph.Graph, fetches []fetchEntry, recv func(name string) (*tensors.Tensor, error)) (replaced int, bytes uint64) {
	for _, f := range fetches {
		value, err := recv(fetchName(f.orig))
		if err != nil {
			klog.Warningf("rewrite: fold of graph %q stopped after %d of %d replacements, fetching %q: %v",
				g.Name(), replaced, len(fetches), fetchName(f.orig), err)
			return replaced, bytes
		}
		klog.V(2).Infof("rewrite: replacing %s with constant %s", f.orig, value.Shape())
		replaceWithConstant(g, f.orig, value)
		replaced++
		bytes += uint64(value.Shape().Memory())
	}
	return replaced, bytes
}

// replaceWithConstant swaps node n for a fresh Const node holding value,
// reattaching every outgoing data and control edge of n (same slots) to the
// new node. The new node is named after n with a "/folded" suffix.
func replaceWithConstant(g *graph.Graph, n *graph.Node, value *tensors.Tensor) *graph.Node {
	type rewiredEdge struct {
		srcOutput int
		dst       *graph.Node
		dstInput  int
		control   bool
	}
	var rewires []rewiredEdge
	for _, e := range n.OutEdges() {
		if e.Dst().IsSentinel() {
			continue
		}
		rewires = append(rewires, rewiredEdge{e.SrcOutput(), e.Dst(), e.DstInput(), e.IsControl()})
	}
	name := g.NewName(n.Name() + "/folded")
	device := n.Device()
	g.RemoveNode(n)
	constant, err := g.AddNode(graph.NodeDef{
		Name: name,
		Type: ops.OpTypeConst,
		Attrs: ops.Attrs{
			ops.AttrKeyValue: ops.TensorAttr(value),
			ops.AttrKeyDType: ops.DTypeAttr(value.DType()),
		},
		Device: device,
	})
	if err != nil {
		exceptions.Panicf("rewrite: re-adding folded node %q as a constant: %v", name, err)
	}
	for _, w := range rewires {
		if w.control {
			g.AddControlEdge(constant, w.dst)
		} else {
			g.AddEdge(constant, w.srcOutput, w.dst, w.dstInput)
		}
	}
	return constant
}
