package runtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/hybridqa/internal/logging"
	"github.com/aretw0/hybridqa/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxSteps bounds the number of node invocations in a single run.
const DefaultMaxSteps = 64

const tracerName = "github.com/aretw0/hybridqa/internal/runtime"

// Engine executes a workflow graph one node at a time, merging each node's
// partial update into the shared state until the end marker is reached.
// An Engine holds no per-run state and is safe for concurrent runs.
type Engine struct {
	graph    *domain.Graph
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	maxSteps int
	tracer   trace.Tracer
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMaxSteps overrides the per-run node invocation ceiling.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithTracer sets the tracer used for run and node spans.
// Defaults to the globally registered provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// NewEngine creates an engine for a validated graph.
func NewEngine(graph *domain.Graph, opts ...Option) (*Engine, error) {
	if graph == nil {
		return nil, errors.New("runtime: nil graph")
	}
	if _, ok := graph.Node(graph.Entry); !ok {
		return nil, &TopologyError{From: "(entry)", To: graph.Entry, Reason: "entry node is not in the graph"}
	}

	e := &Engine{
		graph:    graph,
		logger:   logging.NewNop(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e, nil
}

// Graph returns the graph the engine executes.
func (e *Engine) Graph() *domain.Graph {
	return e.graph
}

// Execution is the outcome of a run: the final state and the nodes visited in order.
type Execution struct {
	State domain.SharedState
	Path  []domain.NodeID
	Steps int
}

// Visits counts how many times id was invoked.
func (x *Execution) Visits(id domain.NodeID) int {
	n := 0
	for _, p := range x.Path {
		if p == id {
			n++
		}
	}
	return n
}

// Run drives state through the graph from the entry node to the end marker.
//
// Only graph-definition defects abort a run: a routing result that is not a
// declared target or not a node, an update that breaks a state invariant, or
// the step ceiling. Cancellation of ctx is observed between nodes. On error the
// returned Execution holds the state as it was when the run stopped.
func (e *Engine) Run(ctx context.Context, state domain.SharedState) (*Execution, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.run")
	defer span.End()

	start := time.Now()
	exec := &Execution{State: state}
	e.emitRunStart(ctx, state)

	err := e.loop(ctx, exec)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("workflow run aborted", "steps", exec.Steps, "path", exec.Path, "err", err)
	}
	span.SetAttributes(attribute.Int("workflow.steps", exec.Steps))
	e.emitRunEnd(ctx, exec, time.Since(start), err)
	return exec, err
}

func (e *Engine) loop(ctx context.Context, exec *Execution) error {
	var prev domain.NodeID
	current := e.graph.Entry

	for current != domain.End {
		if err := ctx.Err(); err != nil {
			return err
		}

		node, ok := e.graph.Node(current)
		if !ok {
			return &TopologyError{From: prev, To: current, Reason: "node is not in the graph"}
		}
		if exec.Steps >= e.maxSteps {
			return &StepLimitError{Limit: e.maxSteps, NodeID: current}
		}

		if err := e.step(ctx, exec, node); err != nil {
			return err
		}

		next, err := e.resolveNext(node, exec.State)
		if err != nil {
			return err
		}
		e.emitRoute(ctx, node.ID, next)

		prev, current = current, next
	}
	return nil
}

// step invokes one node and merges its update into the execution state.
func (e *Engine) step(ctx context.Context, exec *Execution, node domain.Node) error {
	exec.Steps++
	exec.Path = append(exec.Path, node.ID)

	ctx, span := e.tracer.Start(ctx, "workflow.node",
		trace.WithAttributes(
			attribute.String("workflow.node", string(node.ID)),
			attribute.Int("workflow.step", exec.Steps),
		),
	)
	defer span.End()

	e.emitNodeEnter(ctx, node.ID, exec.Steps)
	started := time.Now()

	update := node.Run(ctx, exec.State)

	next, err := exec.State.Merge(update)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &MergeError{NodeID: node.ID, Err: err}
	}

	changed := domain.Diff(exec.State, next)
	exec.State = next
	e.emitNodeLeave(ctx, node.ID, exec.Steps, changed, time.Since(started))
	return nil
}

// resolveNext evaluates the node's edge. Routing results are checked against
// the declared targets and against the graph.
func (e *Engine) resolveNext(node domain.Node, state domain.SharedState) (domain.NodeID, error) {
	if !node.IsBranch() {
		return node.Next, nil
	}

	target := node.Route(state)
	if !node.AllowsTarget(target) {
		return "", &TopologyError{From: node.ID, To: target, Reason: "routing result is not a declared target"}
	}
	if target != domain.End {
		if _, ok := e.graph.Node(target); !ok {
			return "", &TopologyError{From: node.ID, To: target, Reason: "node is not in the graph"}
		}
	}
	return target, nil
}
