package agent_test

import (
	"context"
	"sync"

	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/ports"
)

// fakeReasoner returns scripted outputs and records calls.
type fakeReasoner struct {
	mu sync.Mutex

	label       string
	classifyErr error

	plan    domain.Plan
	planErr error

	queries []string // returned in order, last one repeats
	genErr  error

	synthesis ports.Synthesis
	synthErr  error

	calls       map[string]int
	seenPlans   []domain.Plan
	seenContext [][]domain.Chunk
	seenInputs  []ports.SynthesisInput
}

func (f *fakeReasoner) count(name string) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeReasoner) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeReasoner) Classify(ctx context.Context, question string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("classify")
	return f.label, f.classifyErr
}

func (f *fakeReasoner) Plan(ctx context.Context, question string, chunks []domain.Chunk) (domain.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("plan")
	f.seenContext = append(f.seenContext, chunks)
	return f.plan, f.planErr
}

func (f *fakeReasoner) GenerateQuery(ctx context.Context, question, schema string, plan domain.Plan) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("generate")
	f.seenPlans = append(f.seenPlans, plan)
	if f.genErr != nil {
		return "", f.genErr
	}
	if len(f.queries) == 0 {
		return "", nil
	}
	i := f.calls["generate"] - 1
	if i >= len(f.queries) {
		i = len(f.queries) - 1
	}
	return f.queries[i], nil
}

func (f *fakeReasoner) Synthesize(ctx context.Context, in ports.SynthesisInput) (ports.Synthesis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("synthesize")
	f.seenInputs = append(f.seenInputs, in)
	return f.synthesis, f.synthErr
}

// fakeBackend returns scripted results by call order; the last one repeats.
type fakeBackend struct {
	mu        sync.Mutex
	schema    string
	schemaErr error
	results   []domain.QueryResult
	executed  []string
}

func (b *fakeBackend) Schema(ctx context.Context) (string, error) {
	return b.schema, b.schemaErr
}

func (b *fakeBackend) Execute(ctx context.Context, query string) domain.QueryResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.executed = append(b.executed, query)
	if len(b.results) == 0 {
		return domain.QueryResult{Columns: []string{}, Rows: []map[string]any{}}
	}
	i := len(b.executed) - 1
	if i >= len(b.results) {
		i = len(b.results) - 1
	}
	return b.results[i]
}

func (b *fakeBackend) Executed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.executed...)
}

func okResult() domain.QueryResult {
	return domain.QueryResult{Columns: []string{"n"}, Rows: []map[string]any{{"n": int64(7)}}}
}

func failResult(msg string) domain.QueryResult {
	return domain.QueryResult{Columns: []string{}, Rows: []map[string]any{}, Error: msg}
}
