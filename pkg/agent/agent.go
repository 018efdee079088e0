package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/hybridqa/internal/logging"
	"github.com/aretw0/hybridqa/internal/runtime"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/dsl"
	"github.com/aretw0/hybridqa/pkg/ports"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxRepairs is the number of repair passes allowed after the first attempt.
const DefaultMaxRepairs = 2

// ErrStepBudget is returned by New when the step ceiling cannot cover the repair budget.
var ErrStepBudget = errors.New("step ceiling too low for repair budget")

// WorstCaseSteps is the number of node invocations in a hybrid run whose
// query fails on every attempt: six nodes for the first pass, then repair,
// sql_generator, executor and synthesizer for each repair pass.
func WorstCaseSteps(maxRepairs int) int {
	return 6 + 4*maxRepairs
}

// Agent answers questions by running the hybrid retrieval/query workflow.
// It is safe for concurrent use when its collaborators are.
type Agent struct {
	retriever ports.Retriever
	reasoner  ports.Reasoner
	backend   ports.QueryBackend

	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	tracer      trace.Tracer
	topK        int
	maxRepairs  int
	maxSteps    int
	staleErrors bool
	coerce      bool

	engine *runtime.Engine
}

// Option configures the Agent.
type Option func(*Agent)

// WithLogger sets the logger for the agent and its engine.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithLifecycleHooks registers engine observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Agent) {
		a.hooks = hooks
	}
}

// WithTracer sets the tracer used for run and node spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Agent) {
		a.tracer = tracer
	}
}

// WithTopK sets how many chunks retrieval returns.
func WithTopK(k int) Option {
	return func(a *Agent) {
		a.topK = k
	}
}

// WithMaxRepairs sets how many repair passes may follow the first attempt.
func WithMaxRepairs(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.maxRepairs = n
		}
	}
}

// WithMaxSteps overrides the engine's node invocation ceiling. It must cover
// WorstCaseSteps of the repair budget.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		a.maxSteps = n
	}
}

// WithStaleErrors keeps errors from a failed query in place after a later
// successful one, so any failure in the run keeps driving repairs until the
// bound is reached. By default a successful query clears them.
func WithStaleErrors(keep bool) Option {
	return func(a *Agent) {
		a.staleErrors = keep
	}
}

// WithAnswerCoercion converts synthesized answers to the shape named by the
// question's format hint (for example "14" becomes 14 for "int"). Answers that
// cannot be converted, and hints that do not parse, are left untouched.
func WithAnswerCoercion(enabled bool) Option {
	return func(a *Agent) {
		a.coerce = enabled
	}
}

// New wires the collaborators into the workflow graph.
func New(retriever ports.Retriever, reasoner ports.Reasoner, backend ports.QueryBackend, opts ...Option) (*Agent, error) {
	if retriever == nil || reasoner == nil || backend == nil {
		return nil, errors.New("agent: retriever, reasoner and backend are required")
	}

	a := &Agent{
		retriever:  retriever,
		reasoner:   reasoner,
		backend:    backend,
		logger:     logging.NewNop(),
		topK:       3,
		maxRepairs: DefaultMaxRepairs,
	}
	for _, opt := range opts {
		opt(a)
	}

	worst := WorstCaseSteps(a.maxRepairs)
	switch {
	case a.maxSteps <= 0:
		if worst > runtime.DefaultMaxSteps {
			a.maxSteps = worst
		}
	case a.maxSteps < worst:
		return nil, fmt.Errorf("agent: %d repairs need up to %d steps, ceiling is %d: %w",
			a.maxRepairs, worst, a.maxSteps, ErrStepBudget)
	}

	graph, err := a.buildGraph()
	if err != nil {
		return nil, err
	}

	engineOpts := []runtime.Option{
		runtime.WithLogger(a.logger),
		runtime.WithLifecycleHooks(a.hooks),
		runtime.WithMaxSteps(a.maxSteps),
	}
	if a.tracer != nil {
		engineOpts = append(engineOpts, runtime.WithTracer(a.tracer))
	}
	a.engine, err = runtime.NewEngine(graph, engineOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) buildGraph() (*domain.Graph, error) {
	b := dsl.New()

	b.Add(NodeRouter).
		Do(a.route).
		Branch(routeByStrategy, NodeRetriever, NodeSQLGenerator)

	b.Add(NodeRetriever).
		Do(a.retrieve).
		Branch(routeAfterRetrieval, NodeSynthesizer, NodePlanner)

	b.Add(NodePlanner).
		Do(a.plan).
		Go(NodeSQLGenerator)

	b.Add(NodeSQLGenerator).
		Do(a.generateQuery).
		Go(NodeExecutor)

	b.Add(NodeExecutor).
		Do(a.execute).
		Go(NodeSynthesizer)

	b.Add(NodeSynthesizer).
		Do(a.synthesize).
		Branch(a.routeAfterSynthesis, NodeRepair, domain.End)

	b.Add(NodeRepair).
		Do(a.repair).
		Go(NodeSQLGenerator)

	return b.Entry(NodeRouter).Build()
}

// Graph returns the workflow topology.
func (a *Agent) Graph() *domain.Graph {
	return a.engine.Graph()
}

// Run executes the workflow for one question and returns the full execution.
func (a *Agent) Run(ctx context.Context, question, formatHint string) (*runtime.Execution, error) {
	return a.engine.Run(ctx, domain.NewSharedState(question, formatHint))
}

// Ask answers one question and returns the record of the run.
// Data-dependent failures never produce an error here; only a defect in the
// graph definition or a cancelled context does.
func (a *Agent) Ask(ctx context.Context, q domain.Question) (*domain.RunRecord, error) {
	ctx = domain.WithRunID(ctx, q.ID)

	exec, err := a.Run(ctx, q.Question, q.FormatHint)
	if err != nil {
		return nil, err
	}

	s := exec.State
	record := &domain.RunRecord{
		Question:    q,
		Output:      domain.NewOutput(q.ID, s),
		Strategy:    s.Strategy,
		Path:        exec.Path,
		Errors:      s.Errors,
		RepairCount: s.RepairCount,
		CompletedAt: time.Now().UTC(),
	}

	if len(s.Errors) > 0 {
		a.logger.Warn("question finished with errors",
			"id", q.ID,
			"repair_count", s.RepairCount,
			"errors", s.Errors,
		)
	}
	a.logger.Info("question answered",
		"id", q.ID,
		"strategy", s.Strategy,
		"steps", exec.Steps,
		"confidence", record.Output.Confidence,
	)
	return record, nil
}
