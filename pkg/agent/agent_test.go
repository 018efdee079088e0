package agent_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/hybridqa/pkg/agent"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/ports"
	"github.com/aretw0/hybridqa/pkg/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = retrieval.Build([]retrieval.Document{
	{Name: "product_policy", Body: "Beverages unopened may be returned within 14 days.\n\nPerishables cannot be returned."},
	{Name: "marketing_calendar", Body: "Summer campaign runs in June for dairy products."},
})

func newAgent(t *testing.T, r *fakeReasoner, b *fakeBackend, opts ...agent.Option) *agent.Agent {
	t.Helper()
	a, err := agent.New(corpus, r, b, opts...)
	require.NoError(t, err)
	return a
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := agent.New(nil, &fakeReasoner{}, &fakeBackend{})
	assert.Error(t, err)
}

func TestGraph_Topology(t *testing.T) {
	a := newAgent(t, &fakeReasoner{}, &fakeBackend{})
	g := a.Graph()

	assert.Equal(t, agent.NodeRouter, g.Entry)
	assert.Len(t, g.Nodes, 7)

	router, _ := g.Node(agent.NodeRouter)
	assert.ElementsMatch(t, []domain.NodeID{agent.NodeRetriever, agent.NodeSQLGenerator}, router.Edges())

	synth, _ := g.Node(agent.NodeSynthesizer)
	assert.ElementsMatch(t, []domain.NodeID{agent.NodeRepair, domain.End}, synth.Edges())

	repair, _ := g.Node(agent.NodeRepair)
	assert.Equal(t, agent.NodeSQLGenerator, repair.Next)
}

func TestRouter_UnrecognisedLabelDegradesToHybrid(t *testing.T) {
	for _, label := range []string{"", "banana", "RAG or SQL", "{\"strategy\": 1}"} {
		t.Run(label, func(t *testing.T) {
			r := &fakeReasoner{label: label, queries: []string{"SELECT 1"}}
			b := &fakeBackend{results: []domain.QueryResult{okResult()}}

			exec, err := newAgent(t, r, b).Run(context.Background(), "q", "int")
			require.NoError(t, err)

			assert.Equal(t, domain.StrategyHybrid, exec.State.Strategy)
			assert.Equal(t, 0, exec.State.RepairCount)
			assert.Empty(t, exec.State.Errors)
			assert.Equal(t, []domain.NodeID{"router", "retriever", "planner", "sql_generator", "executor", "synthesizer"}, exec.Path)
		})
	}
}

func TestRouter_ClassificationFailureDegradesToHybrid(t *testing.T) {
	r := &fakeReasoner{classifyErr: errors.New("model offline"), queries: []string{"SELECT 1"}}
	b := &fakeBackend{results: []domain.QueryResult{okResult()}}

	exec, err := newAgent(t, r, b).Run(context.Background(), "q", "int")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyHybrid, exec.State.Strategy)
	assert.Empty(t, exec.State.Errors)
}

func TestRouter_CaseInsensitive(t *testing.T) {
	r := &fakeReasoner{label: "  SQL ", queries: []string{"SELECT 1"}}
	b := &fakeBackend{results: []domain.QueryResult{okResult()}}

	exec, err := newAgent(t, r, b).Run(context.Background(), "q", "int")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategySQL, exec.State.Strategy)
}

func TestScenario_PureRAG(t *testing.T) {
	r := &fakeReasoner{
		label:     "rag",
		synthesis: ports.Synthesis{Answer: 14, Explanation: "Policy says 14 days.", Citations: domain.StructuredCitations("product_policy::chunk0")},
	}
	b := &fakeBackend{}

	exec, err := newAgent(t, r, b).Run(context.Background(), "How many days can unopened beverages be returned?", "int")
	require.NoError(t, err)

	assert.Equal(t, []domain.NodeID{"router", "retriever", "synthesizer"}, exec.Path)
	require.NotEmpty(t, exec.State.Context)
	for _, c := range exec.State.Context {
		assert.Equal(t, "product_policy", c.Source)
		assert.Greater(t, c.Score, 0.0)
	}

	assert.Zero(t, r.Calls("plan"))
	assert.Zero(t, r.Calls("generate"))
	assert.Empty(t, b.Executed())
	assert.Equal(t, 14, exec.State.FinalAnswer)
	assert.Equal(t, []string{"product_policy::chunk0"}, exec.State.Citations)
	assert.Equal(t, 1.0, exec.State.Confidence())
}

func TestScenario_SQLWithOneRepair(t *testing.T) {
	r := &fakeReasoner{
		label:     "sql",
		queries:   []string{"SELEC broken", "```sql\nSELECT COUNT(*) AS n FROM Orders\n```"},
		synthesis: ports.Synthesis{Answer: 7, Citations: domain.RawCitations(`["Orders"]`)},
	}
	b := &fakeBackend{
		schema:  "Table: Orders\n  - OrderID (INTEGER)\n\n",
		results: []domain.QueryResult{failResult(`near "SELEC": syntax error`), okResult()},
	}

	exec, err := newAgent(t, r, b).Run(context.Background(), "How many orders?", "int")
	require.NoError(t, err)

	assert.Equal(t, []domain.NodeID{
		"router", "sql_generator", "executor", "synthesizer",
		"repair", "sql_generator", "executor", "synthesizer",
	}, exec.Path)
	assert.Equal(t, 2, exec.Visits(agent.NodeSQLGenerator))
	assert.Equal(t, 1, exec.State.RepairCount)
	assert.Empty(t, exec.State.Errors)
	assert.Equal(t, 1.0, exec.State.Confidence())
	assert.Equal(t, "SELECT COUNT(*) AS n FROM Orders", exec.State.SQLQuery)
	assert.Equal(t, []string{"SELEC broken", "SELECT COUNT(*) AS n FROM Orders"}, b.Executed())
	assert.Equal(t, []string{"Orders"}, exec.State.Citations)
	assert.Zero(t, r.Calls("plan"), "sql strategy skips planning")
}

func TestScenario_StaleErrorsKeepRepairing(t *testing.T) {
	r := &fakeReasoner{
		label:   "sql",
		queries: []string{"SELEC broken", "SELECT 1"},
	}
	b := &fakeBackend{results: []domain.QueryResult{failResult("syntax error"), okResult()}}

	exec, err := newAgent(t, r, b, agent.WithStaleErrors(true)).Run(context.Background(), "q", "int")
	require.NoError(t, err)

	// The successful second query leaves the first error in place.
	assert.Equal(t, 3, exec.Visits(agent.NodeSQLGenerator))
	assert.Equal(t, 2, exec.State.RepairCount)
	assert.Equal(t, []string{"syntax error"}, exec.State.Errors)
	assert.False(t, exec.State.SQLResult.Failed())
	assert.Equal(t, 0.5, exec.State.Confidence())
}

func TestRepairBoundedness(t *testing.T) {
	for _, stale := range []bool{false, true} {
		t.Run(fmt.Sprintf("stale=%v", stale), func(t *testing.T) {
			r := &fakeReasoner{label: "hybrid", queries: []string{"SELECT nope"}}
			b := &fakeBackend{results: []domain.QueryResult{failResult("no such column: nope")}}

			exec, err := newAgent(t, r, b, agent.WithStaleErrors(stale)).Run(context.Background(), "q", "int")
			require.NoError(t, err)

			assert.Equal(t, 3, exec.Visits(agent.NodeSQLGenerator))
			assert.Equal(t, 3, exec.Visits(agent.NodeSynthesizer))
			assert.Equal(t, 2, exec.Visits(agent.NodeRepair))
			assert.Equal(t, 2, exec.State.RepairCount)
			assert.Equal(t, []string{"no such column: nope"}, exec.State.Errors)
			assert.Equal(t, "no such column: nope", exec.State.SQLResult.Error)
			assert.Equal(t, 0.5, exec.State.Confidence())
			assert.Equal(t, agent.NodeSynthesizer, exec.Path[len(exec.Path)-1])
		})
	}
}

func TestRepairBoundedness_Configurable(t *testing.T) {
	r := &fakeReasoner{label: "sql", queries: []string{"bad"}}
	b := &fakeBackend{results: []domain.QueryResult{failResult("boom")}}

	exec, err := newAgent(t, r, b, agent.WithMaxRepairs(0)).Run(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, 1, exec.Visits(agent.NodeSQLGenerator))
	assert.Equal(t, 0, exec.State.RepairCount)
}

func TestRepairBudget_StepCeiling(t *testing.T) {
	t.Run("default ceiling grows to fit", func(t *testing.T) {
		r := &fakeReasoner{label: "hybrid", queries: []string{"bad"}}
		b := &fakeBackend{results: []domain.QueryResult{failResult("boom")}}

		rec, err := newAgent(t, r, b, agent.WithMaxRepairs(15)).Ask(context.Background(), domain.Question{ID: "q1", Question: "q"})
		require.NoError(t, err)
		assert.Equal(t, 0.5, rec.Output.Confidence)
		assert.Equal(t, 16, r.Calls("generate"))
	})

	t.Run("explicit ceiling too low", func(t *testing.T) {
		_, err := agent.New(corpus, &fakeReasoner{}, &fakeBackend{}, agent.WithMaxRepairs(15), agent.WithMaxSteps(64))
		assert.ErrorIs(t, err, agent.ErrStepBudget)
	})

	t.Run("explicit ceiling exactly fits", func(t *testing.T) {
		r := &fakeReasoner{label: "hybrid", queries: []string{"bad"}}
		b := &fakeBackend{results: []domain.QueryResult{failResult("boom")}}

		a := newAgent(t, r, b, agent.WithMaxRepairs(3), agent.WithMaxSteps(agent.WorstCaseSteps(3)))
		exec, err := a.Run(context.Background(), "q", "")
		require.NoError(t, err)
		assert.Equal(t, 3, exec.State.RepairCount)
		assert.Equal(t, agent.WorstCaseSteps(3), exec.Steps)
	})
}

func TestScenario_CitationsFallback(t *testing.T) {
	r := &fakeReasoner{
		label:     "sql",
		queries:   []string{"SELECT 1"},
		synthesis: ports.Synthesis{Answer: "x", Citations: domain.RawCitations("table:Orders")},
	}
	b := &fakeBackend{results: []domain.QueryResult{okResult()}}

	exec, err := newAgent(t, r, b).Run(context.Background(), "q", "str")
	require.NoError(t, err)
	assert.Equal(t, []string{"table:Orders"}, exec.State.Citations)
}

func TestShallowMerge_RetrieverLeavesPlanUntouched(t *testing.T) {
	var mu sync.Mutex
	changed := map[domain.NodeID][]string{}
	hooks := domain.LifecycleHooks{
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			mu.Lock()
			defer mu.Unlock()
			changed[e.NodeID] = e.Changed
		},
	}

	r := &fakeReasoner{label: "rag"}
	exec, err := newAgent(t, r, &fakeBackend{}, agent.WithLifecycleHooks(hooks)).
		Run(context.Background(), "beverages returned", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"context"}, changed[agent.NodeRetriever])
	assert.True(t, exec.State.Plan.IsZero())
}

func TestHybrid_PlanFlowsIntoGeneration(t *testing.T) {
	plan := domain.Plan{DateRange: "1997-06-01 to 1997-06-30", Entities: "Beverages", KPIFormula: "SUM(qty)"}
	r := &fakeReasoner{label: "hybrid", plan: plan, queries: []string{"SELECT 1"}}
	b := &fakeBackend{results: []domain.QueryResult{okResult()}}

	exec, err := newAgent(t, r, b).Run(context.Background(), "Beverages returned in June 1997?", "int")
	require.NoError(t, err)

	assert.Equal(t, plan, exec.State.Plan)
	require.Len(t, r.seenPlans, 1)
	assert.Equal(t, plan, r.seenPlans[0])
	require.Len(t, r.seenContext, 1)
	assert.Equal(t, exec.State.Context, r.seenContext[0])

	require.Len(t, r.seenInputs, 1)
	in := r.seenInputs[0]
	assert.Equal(t, "SELECT 1", in.Query)
	assert.Equal(t, "int", in.FormatHint)
	assert.Equal(t, okResult(), in.Result)
}

func TestPlanningFailureUsesEmptyPlan(t *testing.T) {
	r := &fakeReasoner{label: "hybrid", planErr: errors.New("timeout"), queries: []string{"SELECT 1"}}
	b := &fakeBackend{results: []domain.QueryResult{okResult()}}

	exec, err := newAgent(t, r, b).Run(context.Background(), "q", "")
	require.NoError(t, err)
	assert.True(t, exec.State.Plan.IsZero())
	assert.Equal(t, 1, r.Calls("generate"))
}

func TestGenerationFailureBecomesEmptyQueryError(t *testing.T) {
	r := &fakeReasoner{label: "sql", genErr: errors.New("model offline")}
	b := &fakeBackend{schemaErr: errors.New("db locked")}

	exec, err := newAgent(t, r, b).Run(context.Background(), "q", "")
	require.NoError(t, err)

	assert.Empty(t, b.Executed(), "blank queries never reach the backend")
	assert.Equal(t, "", exec.State.SQLQuery)
	assert.Equal(t, []string{domain.ErrEmptyQuery.Error()}, exec.State.Errors)
	assert.Equal(t, 2, exec.State.RepairCount)
}

func TestSynthesisFailureIsRecorded(t *testing.T) {
	r := &fakeReasoner{label: "rag", synthErr: errors.New("context window exceeded")}

	exec, err := newAgent(t, r, &fakeBackend{}, agent.WithMaxRepairs(0)).Run(context.Background(), "q", "")
	require.NoError(t, err)

	assert.Nil(t, exec.State.FinalAnswer)
	assert.Empty(t, exec.State.Citations)
	assert.Contains(t, exec.State.Explanation, "context window exceeded")
	assert.Len(t, exec.State.Errors, 1)
	assert.Equal(t, 0.5, exec.State.Confidence())
}

func TestAsk_BuildsRecord(t *testing.T) {
	r := &fakeReasoner{
		label:     "sql",
		queries:   []string{"SELECT 1"},
		synthesis: ports.Synthesis{Answer: 7, Explanation: "Seven.", Citations: domain.StructuredCitations("Orders")},
	}
	b := &fakeBackend{results: []domain.QueryResult{okResult()}}

	rec, err := newAgent(t, r, b).Ask(context.Background(), domain.Question{ID: "q1", Question: "How many?", FormatHint: "int"})
	require.NoError(t, err)

	assert.Equal(t, domain.Output{
		ID:          "q1",
		FinalAnswer: 7,
		SQL:         "SELECT 1",
		Confidence:  1.0,
		Explanation: "Seven.",
		Citations:   []string{"Orders"},
	}, rec.Output)
	assert.Equal(t, domain.StrategySQL, rec.Strategy)
	assert.Equal(t, "q1", rec.Question.ID)
	assert.NotZero(t, rec.CompletedAt)
	assert.Len(t, rec.Path, 4)
}

func TestAsk_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAgent(t, &fakeReasoner{}, &fakeBackend{}).Ask(ctx, domain.Question{ID: "x", Question: "q"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsk_ConcurrentRunsAreIndependent(t *testing.T) {
	r := &fakeReasoner{label: "rag", synthesis: ports.Synthesis{Answer: "ok"}}
	a := newAgent(t, r, &fakeBackend{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := a.Ask(context.Background(), domain.Question{ID: fmt.Sprint(i), Question: "beverages"})
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprint(i), rec.Output.ID)
			assert.Equal(t, 0, rec.RepairCount)
		}(i)
	}
	wg.Wait()
}

func TestAnswerCoercion(t *testing.T) {
	tests := []struct {
		name   string
		hint   string
		answer any
		coerce bool
		want   any
	}{
		{"disabled keeps text", "int", "14", false, "14"},
		{"int from text", "int", "14", true, int64(14)},
		{"object from JSON text", "{category:str, quantity:int}", `{"category":"Beverages","quantity":"3"}`, true,
			map[string]any{"category": "Beverages", "quantity": int64(3)}},
		{"unfit answer untouched", "int", "fourteen", true, "fourteen"},
		{"unknown hint untouched", "decimal(2)", "14", true, "14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeReasoner{label: "rag", synthesis: ports.Synthesis{Answer: tt.answer}}
			exec, err := newAgent(t, r, &fakeBackend{}, agent.WithAnswerCoercion(tt.coerce)).
				Run(context.Background(), "How many days?", tt.hint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, exec.State.FinalAnswer)
		})
	}
}
