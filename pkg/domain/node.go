package domain

import "context"

// NodeID names a node in a workflow graph.
type NodeID string

// End is the terminal marker. It is never a real node.
const End NodeID = "__end__"

// NodeFunc is a node body: it reads the state and returns a partial update.
// Capability failures must be folded into the update, never returned.
type NodeFunc func(ctx context.Context, state SharedState) Update

// RouteFunc picks the next node from the state after a node ran.
type RouteFunc func(state SharedState) NodeID

// Node is a named step with either an unconditional edge (Next) or a
// routing function (Route) restricted to the declared Targets.
type Node struct {
	ID      NodeID
	Run     NodeFunc
	Next    NodeID
	Route   RouteFunc
	Targets []NodeID
}

// IsBranch reports whether the node routes through a routing function.
func (n Node) IsBranch() bool {
	return n.Route != nil
}

// Edges returns every node the step may hand control to.
func (n Node) Edges() []NodeID {
	if n.IsBranch() {
		return n.Targets
	}
	if n.Next == "" {
		return nil
	}
	return []NodeID{n.Next}
}

// AllowsTarget reports whether target was declared for this node.
func (n Node) AllowsTarget(target NodeID) bool {
	for _, t := range n.Edges() {
		if t == target {
			return true
		}
	}
	return false
}

// Graph is a validated set of nodes with an entry point.
// Order keeps declaration order for rendering.
type Graph struct {
	Entry NodeID
	Nodes map[NodeID]Node
	Order []NodeID
}

// Node looks up a node by ID.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// Ordered returns the nodes in declaration order.
func (g *Graph) Ordered() []Node {
	out := make([]Node, 0, len(g.Order))
	for _, id := range g.Order {
		out = append(out, g.Nodes[id])
	}
	return out
}
