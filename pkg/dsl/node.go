package dsl

import "github.com/aretw0/hybridqa/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Do sets the node function.
func (n *NodeBuilder) Do(fn domain.NodeFunc) *NodeBuilder {
	n.node.Run = fn
	return n
}

// Go adds an unconditional edge to the target node.
func (n *NodeBuilder) Go(target domain.NodeID) *NodeBuilder {
	n.node.Next = target
	return n
}

// Branch routes through fn, which may only return one of targets.
func (n *NodeBuilder) Branch(fn domain.RouteFunc, targets ...domain.NodeID) *NodeBuilder {
	n.node.Route = fn
	n.node.Targets = append([]domain.NodeID(nil), targets...)
	return n
}

// Terminal marks the node as the last step of the run.
func (n *NodeBuilder) Terminal() *NodeBuilder {
	n.node.Next = domain.End
	return n
}

// Build returns the underlying domain.Node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}
