package domain

import "errors"

// ErrUnknownNode is returned when an edge or routing function names a node that is not in the graph.
var ErrUnknownNode = errors.New("unknown node")

// ErrStrategyReassigned is returned when an update tries to change a strategy that is already set.
var ErrStrategyReassigned = errors.New("strategy already assigned")

// ErrRepairCountRegressed is returned when an update would lower the repair counter.
var ErrRepairCountRegressed = errors.New("repair count cannot decrease")

// ErrRunNotFound is returned when a run ID cannot be found in the answer store.
var ErrRunNotFound = errors.New("run not found")

// ErrEmptyQuery is reported by query backends when asked to execute blank query text.
var ErrEmptyQuery = errors.New("empty query")
