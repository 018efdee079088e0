package ports

import (
	"context"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// Synthesis is the output of the synthesis capability. Citations stay in the
// shape the capability produced them; the caller normalises them.
type Synthesis struct {
	Answer      any
	Explanation string
	Citations   domain.Citations
}

// SynthesisInput carries everything the synthesis capability reads.
type SynthesisInput struct {
	Question   string
	Query      string
	Result     domain.QueryResult
	Context    []domain.Chunk
	FormatHint string
}

// Reasoner is the set of opaque text reasoning capabilities.
// Each call is independent; implementations keep no state between calls.
type Reasoner interface {
	// Classify returns the raw strategy label for a question.
	Classify(ctx context.Context, question string) (string, error)

	// Plan extracts date range, entities and KPI formula from the question and context.
	Plan(ctx context.Context, question string, context []domain.Chunk) (domain.Plan, error)

	// GenerateQuery produces query text for the question, schema and plan.
	GenerateQuery(ctx context.Context, question, schema string, plan domain.Plan) (string, error)

	// Synthesize produces the final answer, explanation and citations.
	Synthesize(ctx context.Context, in SynthesisInput) (Synthesis, error)
}
