package runtime

import (
	"fmt"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// TopologyError reports a graph-definition defect found while running:
// control was handed to a node that does not exist or was never declared.
type TopologyError struct {
	From   domain.NodeID
	To     domain.NodeID
	Reason string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("topology fault %q -> %q: %s", e.From, e.To, e.Reason)
}

func (e *TopologyError) Unwrap() error {
	return domain.ErrUnknownNode
}

// MergeError reports a node update that violates a state invariant.
type MergeError struct {
	NodeID domain.NodeID
	Err    error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("node %q returned an invalid update: %v", e.NodeID, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// StepLimitError is returned when a run exceeds the configured node invocation ceiling.
type StepLimitError struct {
	Limit  int
	NodeID domain.NodeID
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("step limit of %d reached before node %q", e.Limit, e.NodeID)
}
