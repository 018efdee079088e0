package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/hybridqa/internal/logging"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/llm"
	"github.com/aretw0/hybridqa/pkg/ports"
)

// Reasoner implements ports.Reasoner by prompting an llm.Provider.
// Each capability is one stateless chat call.
type Reasoner struct {
	provider llm.Provider
	logger   *slog.Logger
	callOpts []llm.Option
}

var _ ports.Reasoner = (*Reasoner)(nil)

// Option configures the Reasoner.
type Option func(*Reasoner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reasoner) {
		r.logger = logger
	}
}

// WithCallOptions appends provider options applied to every call.
func WithCallOptions(opts ...llm.Option) Option {
	return func(r *Reasoner) {
		r.callOpts = append(r.callOpts, opts...)
	}
}

// New returns a Reasoner. Calls default to temperature 0.
func New(provider llm.Provider, opts ...Option) *Reasoner {
	r := &Reasoner{
		provider: provider,
		logger:   logging.NewNop(),
		callOpts: []llm.Option{llm.WithTemperature(0)},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reasoner) ask(ctx context.Context, sig signature, values map[string]string, extra ...llm.Option) (string, error) {
	history := []llm.Message{
		{Role: "system", Content: sig.System()},
		{Role: "user", Content: sig.User(values)},
	}
	opts := append(append([]llm.Option(nil), r.callOpts...), extra...)
	out, err := r.provider.Chat(ctx, history, opts...)
	if err != nil {
		return "", err
	}
	r.logger.Debug("model responded", "capability", sig.OutputKeys()[0], "chars", len(out))
	return out, nil
}

// Classify returns the raw strategy label. Unparseable output is returned
// trimmed so the caller can apply its own fallback.
func (r *Reasoner) Classify(ctx context.Context, question string) (string, error) {
	out, err := r.ask(ctx, routerSig, map[string]string{"question": question}, llm.WithJSON())
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	if obj, err := decodeObject(out); err == nil {
		if v, ok := obj["strategy"]; ok {
			return strings.Trim(textOf(v), `"' `), nil
		}
	}
	return strings.Trim(domain.StripCodeFence(out), `"'. `), nil
}

func (r *Reasoner) Plan(ctx context.Context, question string, chunks []domain.Chunk) (domain.Plan, error) {
	out, err := r.ask(ctx, plannerSig, map[string]string{
		"question": question,
		"context":  domain.FormatContext(chunks),
	}, llm.WithJSON())
	if err != nil {
		return domain.Plan{}, fmt.Errorf("plan: %w", err)
	}

	obj, err := decodeObject(out)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("plan: %w", err)
	}
	var plan domain.Plan
	if err := decodeInto(obj, &plan); err != nil {
		return domain.Plan{}, fmt.Errorf("plan: decode: %w", err)
	}
	return plan, nil
}

// GenerateQuery accepts either a JSON object with sql_query or bare query text.
func (r *Reasoner) GenerateQuery(ctx context.Context, question, schema string, plan domain.Plan) (string, error) {
	out, err := r.ask(ctx, generatorSig, map[string]string{
		"question":  question,
		"db_schema": schema,
		"plan":      plan.String(),
	})
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}
	if obj, err := decodeObject(out); err == nil {
		if v, ok := obj["sql_query"].(string); ok {
			return domain.StripCodeFence(v), nil
		}
	}
	return domain.StripCodeFence(out), nil
}

func (r *Reasoner) Synthesize(ctx context.Context, in ports.SynthesisInput) (ports.Synthesis, error) {
	result, err := json.Marshal(in.Result)
	if err != nil {
		return ports.Synthesis{}, fmt.Errorf("synthesize: encode result: %w", err)
	}
	out, err := r.ask(ctx, synthesizerSig, map[string]string{
		"question":    in.Question,
		"sql_query":   in.Query,
		"sql_result":  string(result),
		"context":     domain.FormatContext(in.Context),
		"format_hint": in.FormatHint,
	}, llm.WithJSON())
	if err != nil {
		return ports.Synthesis{}, fmt.Errorf("synthesize: %w", err)
	}

	obj, err := decodeObject(out)
	if err != nil {
		return ports.Synthesis{}, fmt.Errorf("synthesize: %w", err)
	}

	syn := ports.Synthesis{Answer: obj["final_answer"]}
	if v, ok := obj["explanation"]; ok && v != nil {
		syn.Explanation = textOf(v)
	}
	syn.Citations = citationsOf(obj["citations"])
	return syn, nil
}

func citationsOf(v any) domain.Citations {
	switch t := v.(type) {
	case nil:
		return domain.RawCitations("")
	case string:
		return domain.RawCitations(t)
	case []any:
		items := make([]string, 0, len(t))
		for _, el := range t {
			items = append(items, textOf(el))
		}
		return domain.StructuredCitations(items...)
	default:
		return domain.RawCitations(textOf(t))
	}
}
