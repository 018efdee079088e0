package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/hybridqa/internal/runtime"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setQuery(q string) domain.NodeFunc {
	return func(context.Context, domain.SharedState) domain.Update {
		return domain.Update{SQLQuery: domain.Some(q)}
	}
}

func TestEngine_RunsToEnd(t *testing.T) {
	b := dsl.New()
	b.Add("first").Do(setQuery("a")).Go("second")
	b.Add("second").Do(func(_ context.Context, s domain.SharedState) domain.Update {
		return domain.Update{Explanation: domain.Some("saw " + s.SQLQuery)}
	}).Terminal()

	engine, err := runtime.NewEngine(b.MustBuild())
	require.NoError(t, err)

	exec, err := engine.Run(context.Background(), domain.NewSharedState("q", ""))
	require.NoError(t, err)

	assert.Equal(t, []domain.NodeID{"first", "second"}, exec.Path)
	assert.Equal(t, 2, exec.Steps)
	assert.Equal(t, "a", exec.State.SQLQuery)
	assert.Equal(t, "saw a", exec.State.Explanation)
	assert.Equal(t, 1, exec.Visits("first"))
}

func TestEngine_BranchingAndLoops(t *testing.T) {
	b := dsl.New()
	b.Add("work").Do(setQuery("x")).Branch(func(s domain.SharedState) domain.NodeID {
		if s.RepairCount < 3 {
			return "again"
		}
		return domain.End
	}, "again", domain.End)
	b.Add("again").Do(func(_ context.Context, s domain.SharedState) domain.Update {
		return domain.Update{RepairCount: domain.Some(s.RepairCount + 1)}
	}).Go("work")

	engine, err := runtime.NewEngine(b.MustBuild())
	require.NoError(t, err)

	exec, err := engine.Run(context.Background(), domain.NewSharedState("q", ""))
	require.NoError(t, err)
	assert.Equal(t, 3, exec.State.RepairCount)
	assert.Equal(t, 4, exec.Visits("work"))
	assert.Equal(t, 3, exec.Visits("again"))
}

func TestEngine_UndeclaredRouteAborts(t *testing.T) {
	b := dsl.New()
	b.Add("a").Do(setQuery("x")).Branch(func(domain.SharedState) domain.NodeID { return "ghost" }, "b")
	b.Add("b").Do(setQuery("y")).Terminal()

	engine, err := runtime.NewEngine(b.MustBuild())
	require.NoError(t, err)

	exec, err := engine.Run(context.Background(), domain.NewSharedState("q", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownNode)

	var topo *runtime.TopologyError
	require.True(t, errors.As(err, &topo))
	assert.Equal(t, domain.NodeID("a"), topo.From)
	assert.Equal(t, domain.NodeID("ghost"), topo.To)

	// The state up to the fault is still available to the caller.
	assert.Equal(t, "x", exec.State.SQLQuery)
}

func TestEngine_MissingNodeInHandBuiltGraph(t *testing.T) {
	g := &domain.Graph{
		Entry: "a",
		Nodes: map[domain.NodeID]domain.Node{
			"a": {ID: "a", Run: setQuery("x"), Next: "missing"},
		},
		Order: []domain.NodeID{"a"},
	}
	engine, err := runtime.NewEngine(g)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), domain.NewSharedState("q", ""))
	assert.ErrorIs(t, err, domain.ErrUnknownNode)
}

func TestEngine_RejectsMissingEntry(t *testing.T) {
	_, err := runtime.NewEngine(&domain.Graph{Entry: "nope", Nodes: map[domain.NodeID]domain.Node{}})
	assert.ErrorIs(t, err, domain.ErrUnknownNode)

	_, err = runtime.NewEngine(nil)
	assert.Error(t, err)
}

func TestEngine_InvalidUpdateAborts(t *testing.T) {
	b := dsl.New()
	b.Add("a").Do(func(context.Context, domain.SharedState) domain.Update {
		return domain.Update{Strategy: domain.Some(domain.StrategySQL)}
	}).Go("b")
	b.Add("b").Do(func(context.Context, domain.SharedState) domain.Update {
		return domain.Update{Strategy: domain.Some(domain.StrategyRAG)}
	}).Terminal()

	engine, err := runtime.NewEngine(b.MustBuild())
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), domain.NewSharedState("q", ""))
	assert.ErrorIs(t, err, domain.ErrStrategyReassigned)

	var merr *runtime.MergeError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, domain.NodeID("b"), merr.NodeID)
}

func TestEngine_StepLimit(t *testing.T) {
	b := dsl.New()
	b.Add("spin").Do(setQuery("x")).Go("spin")

	engine, err := runtime.NewEngine(b.MustBuild(), runtime.WithMaxSteps(5))
	require.NoError(t, err)

	exec, err := engine.Run(context.Background(), domain.NewSharedState("q", ""))
	var limit *runtime.StepLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 5, limit.Limit)
	assert.Equal(t, 5, exec.Steps)
}

func TestEngine_CancellationBetweenNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	b := dsl.New()
	b.Add("a").Do(func(context.Context, domain.SharedState) domain.Update {
		cancel()
		return domain.Update{SQLQuery: domain.Some("ran")}
	}).Go("b")
	b.Add("b").Do(setQuery("should not run")).Terminal()

	engine, err := runtime.NewEngine(b.MustBuild())
	require.NoError(t, err)

	exec, err := engine.Run(ctx, domain.NewSharedState("q", ""))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []domain.NodeID{"a"}, exec.Path)
	assert.Equal(t, "ran", exec.State.SQLQuery)
}

func TestEngine_DoesNotMutateInput(t *testing.T) {
	b := dsl.New()
	b.Add("a").Do(func(context.Context, domain.SharedState) domain.Update {
		return domain.Update{Errors: domain.Some([]string{"boom"})}
	}).Terminal()

	engine, err := runtime.NewEngine(b.MustBuild())
	require.NoError(t, err)

	in := domain.NewSharedState("q", "")
	exec, err := engine.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, in.Errors)
	assert.Equal(t, []string{"boom"}, exec.State.Errors)
}
