package dsl

import (
	"fmt"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	nodes map[domain.NodeID]*NodeBuilder
	order []domain.NodeID
	entry domain.NodeID
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[domain.NodeID]*NodeBuilder),
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id domain.NodeID) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.Node{
			ID: id,
		},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Entry sets the node every run starts at. Defaults to the first node added.
func (b *Builder) Entry(id domain.NodeID) *Builder {
	b.entry = id
	return b
}

// Build validates the topology and compiles it into a domain.Graph.
// Every edge and every declared routing target must name a node in the graph
// (or domain.End); all defects are reported together.
func (b *Builder) Build() (*domain.Graph, error) {
	var errs []error

	entry := b.entry
	if entry == "" && len(b.order) > 0 {
		entry = b.order[0]
	}
	if entry == "" {
		errs = append(errs, fmt.Errorf("graph has no nodes"))
	} else if _, ok := b.nodes[entry]; !ok {
		errs = append(errs, &EdgeError{From: "(entry)", To: entry})
	}

	nodes := make(map[domain.NodeID]domain.Node, len(b.nodes))
	for _, id := range b.order {
		n := b.nodes[id].node

		if id == domain.End {
			errs = append(errs, &NodeError{ID: id, Reason: "the end marker is reserved"})
		}
		if n.Run == nil {
			errs = append(errs, &NodeError{ID: id, Reason: "missing node function"})
		}
		switch {
		case n.Route != nil && n.Next != "":
			errs = append(errs, &NodeError{ID: id, Reason: "has both an edge and a routing function"})
		case n.Route == nil && n.Next == "":
			errs = append(errs, &NodeError{ID: id, Reason: "has no outgoing edge (use Terminal to end the run)"})
		case n.Route != nil && len(n.Targets) == 0:
			errs = append(errs, &NodeError{ID: id, Reason: "routing function declares no targets"})
		}

		for _, target := range n.Edges() {
			if target == domain.End {
				continue
			}
			if _, ok := b.nodes[target]; !ok {
				errs = append(errs, &EdgeError{From: id, To: target})
			}
		}

		nodes[id] = n
	}

	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}

	return &domain.Graph{
		Entry: entry,
		Nodes: nodes,
		Order: append([]domain.NodeID(nil), b.order...),
	}, nil
}

// MustBuild is like Build but panics on an invalid topology.
// Intended for graphs defined in code, where a defect is a programming error.
func (b *Builder) MustBuild() *domain.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
