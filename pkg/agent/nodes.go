package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/ports"
	"github.com/aretw0/hybridqa/pkg/schema"
)

// Node names of the question-answering workflow.
const (
	NodeRouter       domain.NodeID = "router"
	NodeRetriever    domain.NodeID = "retriever"
	NodePlanner      domain.NodeID = "planner"
	NodeSQLGenerator domain.NodeID = "sql_generator"
	NodeExecutor     domain.NodeID = "executor"
	NodeSynthesizer  domain.NodeID = "synthesizer"
	NodeRepair       domain.NodeID = "repair"
)

// route classifies the question. It also resets the repair bookkeeping,
// since every run starts here.
func (a *Agent) route(ctx context.Context, s domain.SharedState) domain.Update {
	label, err := a.reasoner.Classify(ctx, s.Question)
	if err != nil {
		a.logger.Warn("classification failed, using hybrid", "node", NodeRouter, "err", err)
		label = ""
	}

	strategy := domain.ParseStrategy(label)
	if !domain.Strategy(strings.ToLower(strings.TrimSpace(label))).Valid() {
		a.logger.Debug("unrecognised strategy label", "label", label, "strategy", strategy)
	}

	return domain.Update{
		Strategy:    domain.Some(strategy),
		RepairCount: domain.Some(0),
		Errors:      domain.Some([]string{}),
	}
}

func (a *Agent) retrieve(ctx context.Context, s domain.SharedState) domain.Update {
	chunks, err := a.retriever.Retrieve(ctx, s.Question, a.topK)
	if err != nil {
		a.logger.Warn("retrieval failed, continuing without context", "node", NodeRetriever, "err", err)
		chunks = []domain.Chunk{}
	}
	return domain.Update{Context: domain.Some(chunks)}
}

func (a *Agent) plan(ctx context.Context, s domain.SharedState) domain.Update {
	plan, err := a.reasoner.Plan(ctx, s.Question, s.Context)
	if err != nil {
		a.logger.Warn("planning failed, using an empty plan", "node", NodePlanner, "err", err)
		plan = domain.Plan{}
	}
	return domain.Update{Plan: domain.Some(plan)}
}

// generateQuery always regenerates from the current state; on a repair pass it
// does not see why the previous query failed.
func (a *Agent) generateQuery(ctx context.Context, s domain.SharedState) domain.Update {
	schema, err := a.backend.Schema(ctx)
	if err != nil {
		a.logger.Warn("schema introspection failed", "node", NodeSQLGenerator, "err", err)
		schema = ""
	}

	query, err := a.reasoner.GenerateQuery(ctx, s.Question, schema, s.Plan)
	if err != nil {
		a.logger.Warn("query generation failed", "node", NodeSQLGenerator, "err", err)
		query = ""
	}
	return domain.Update{SQLQuery: domain.Some(domain.StripCodeFence(query))}
}

// execute replaces errors on failure. On success it clears them unless stale
// errors are kept, in which case a previous failure still drives the repair decision.
func (a *Agent) execute(ctx context.Context, s domain.SharedState) domain.Update {
	var res domain.QueryResult
	if strings.TrimSpace(s.SQLQuery) == "" {
		res = domain.FailedResult(domain.ErrEmptyQuery)
	} else {
		res = a.backend.Execute(ctx, s.SQLQuery)
	}

	if res.Failed() {
		a.logger.Debug("query failed", "node", NodeExecutor, "repair_count", s.RepairCount, "err", res.Error)
		return domain.Update{
			SQLResult: domain.Some(res),
			Errors:    domain.Some([]string{res.Error}),
		}
	}

	u := domain.Update{SQLResult: domain.Some(res)}
	if !a.staleErrors {
		u.Errors = domain.Some([]string{})
	}
	return u
}

// synthesize never clears errors. A failed synthesis is appended to them so
// the run reports reduced confidence.
func (a *Agent) synthesize(ctx context.Context, s domain.SharedState) domain.Update {
	out, err := a.reasoner.Synthesize(ctx, ports.SynthesisInput{
		Question:   s.Question,
		Query:      s.SQLQuery,
		Result:     s.SQLResult,
		Context:    s.Context,
		FormatHint: s.FormatHint,
	})
	if err != nil {
		a.logger.Warn("synthesis failed", "node", NodeSynthesizer, "err", err)
		msg := fmt.Sprintf("synthesis failed: %v", err)
		return domain.Update{
			FinalAnswer: domain.Some[any](nil),
			Explanation: domain.Some(msg),
			Citations:   domain.Some([]string{}),
			Errors:      domain.Some(append(append([]string{}, s.Errors...), msg)),
		}
	}

	return domain.Update{
		FinalAnswer: domain.Some(a.coerceAnswer(s.FormatHint, out.Answer)),
		Explanation: domain.Some(out.Explanation),
		Citations:   domain.Some(out.Citations.Normalize()),
	}
}

// repair only advances the counter; the next pass regenerates the query.
func (a *Agent) repair(_ context.Context, s domain.SharedState) domain.Update {
	return domain.Update{RepairCount: domain.Some(s.RepairCount + 1)}
}

func (a *Agent) coerceAnswer(hint string, answer any) any {
	if !a.coerce || answer == nil {
		return answer
	}
	t, err := schema.Parse(hint)
	if err != nil {
		a.logger.Debug("format hint not understood", "hint", hint, "err", err)
		return answer
	}
	v, err := t.Coerce(answer)
	if err != nil {
		a.logger.Debug("answer does not fit format hint", "hint", hint, "err", err)
		return answer
	}
	return v
}
