package graph

// ReverseDFS visits the nodes reachable by following edges backwards from the
// sink -- with the sentinel hookup invariant that is every live node of the
// graph. enter is called when a node is first reached, leave after all of the
// node's transitive inputs have been left; either may be nil.
//
// In the leave order every node is preceded by all its ancestors, which is
// what makes it suitable for single-pass dataflow analyses.
func ReverseDFS(g *Graph, enter, leave func(*Node)) {
	ReverseDFSFrom(g, []*Node{g.sink}, enter, leave)
}

// ReverseDFSFrom is like ReverseDFS but starts the traversal at the given
// nodes instead of the sink, visiting only their transitive inputs.
//
// The traversal is iterative, so it is safe on pathologically deep graphs
// that would overflow the stack of a recursive implementation.
func ReverseDFSFrom(g *Graph, from []*Node, enter, leave func(*Node)) {
	type frame struct {
		node    *Node
		leaving bool
	}
	visited := make([]bool, g.NumNodeIds())
	stack := make([]frame, 0, len(from))
	for i := len(from) - 1; i >= 0; i-- {
		g.checkLive(from[i], "ReverseDFSFrom")
		stack = append(stack, frame{node: from[i]})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.leaving {
			leave(top.node)
			continue
		}
		n := top.node
		if visited[n.id] {
			continue
		}
		visited[n.id] = true
		if enter != nil {
			enter(n)
		}
		if leave != nil {
			stack = append(stack, frame{node: n, leaving: true})
		}
		// Pushed after the leave frame, so all inputs are fully
		// processed before n's own leave pops.
		for _, e := range n.inEdges {
			if !visited[e.src.id] {
				stack = append(stack, frame{node: e.src})
			}
		}
	}
}
