package dsl

import (
	"fmt"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// EdgeError reports an edge or routing target that names an undeclared node.
type EdgeError struct {
	From domain.NodeID
	To   domain.NodeID
}

func (e *EdgeError) Error() string {
	return fmt.Sprintf("node %q: target %q is not declared", e.From, e.To)
}

func (e *EdgeError) Unwrap() error {
	return domain.ErrUnknownNode
}

// NodeError reports a structural problem with a single node.
type NodeError struct {
	ID     domain.NodeID
	Reason string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %s", e.ID, e.Reason)
}

// AggregateError represents multiple topology defects.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d topology errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// Unwrap exposes the individual defects to errors.Is / errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}
