package dsl

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, domain.SharedState) domain.Update { return domain.Update{} }

func TestBuilder_SimpleFlow(t *testing.T) {
	b := New()

	b.Add("start").
		Do(noop).
		Branch(func(domain.SharedState) domain.NodeID { return "middle" }, "middle", domain.End)

	b.Add("middle").
		Do(noop).
		Go("finish")

	b.Add("finish").
		Do(noop).
		Terminal()

	g, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, domain.NodeID("start"), g.Entry)
	assert.Equal(t, []domain.NodeID{"start", "middle", "finish"}, g.Order)

	start, ok := g.Node("start")
	require.True(t, ok)
	assert.True(t, start.IsBranch())
	assert.Equal(t, []domain.NodeID{"middle", domain.End}, start.Edges())

	middle, _ := g.Node("middle")
	assert.False(t, middle.IsBranch())
	assert.True(t, middle.AllowsTarget("finish"))
	assert.False(t, middle.AllowsTarget("start"))

	finish, _ := g.Node("finish")
	assert.Equal(t, domain.End, finish.Next)
}

func TestBuilder_AddReturnsExisting(t *testing.T) {
	b := New()
	first := b.Add("a")
	second := b.Add("a")
	assert.Same(t, first, second)
	assert.Len(t, b.order, 1)
}

func TestBuilder_ExplicitEntry(t *testing.T) {
	b := New()
	b.Add("a").Do(noop).Terminal()
	b.Add("b").Do(noop).Go("a")

	g, err := b.Entry("b").Build()
	require.NoError(t, err)
	assert.Equal(t, domain.NodeID("b"), g.Entry)
}

func TestBuilder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		build   func(b *Builder)
		unknown bool
	}{
		{
			name:  "empty graph",
			build: func(b *Builder) {},
		},
		{
			name: "edge to missing node",
			build: func(b *Builder) {
				b.Add("a").Do(noop).Go("ghost")
			},
			unknown: true,
		},
		{
			name: "routing target missing",
			build: func(b *Builder) {
				b.Add("a").Do(noop).Branch(func(domain.SharedState) domain.NodeID { return domain.End }, domain.End, "ghost")
			},
			unknown: true,
		},
		{
			name: "entry missing",
			build: func(b *Builder) {
				b.Add("a").Do(noop).Terminal()
				b.Entry("ghost")
			},
			unknown: true,
		},
		{
			name: "no outgoing edge",
			build: func(b *Builder) {
				b.Add("a").Do(noop)
			},
		},
		{
			name: "missing function",
			build: func(b *Builder) {
				b.Add("a").Terminal()
			},
		},
		{
			name: "branch without targets",
			build: func(b *Builder) {
				b.Add("a").Do(noop).Branch(func(domain.SharedState) domain.NodeID { return domain.End })
			},
		},
		{
			name: "both edge and route",
			build: func(b *Builder) {
				b.Add("a").Do(noop).Go(domain.End).Branch(func(domain.SharedState) domain.NodeID { return domain.End }, domain.End)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			tt.build(b)

			g, err := b.Build()
			require.Error(t, err)
			assert.Nil(t, g)

			var aggr *AggregateError
			require.True(t, errors.As(err, &aggr))
			assert.NotEmpty(t, aggr.Errors)
			assert.Equal(t, tt.unknown, errors.Is(err, domain.ErrUnknownNode))
		})
	}
}

func TestBuilder_ReportsEveryDefect(t *testing.T) {
	b := New()
	b.Add("a").Do(noop).Go("ghost1")
	b.Add("b").Go("ghost2")

	_, err := b.Build()
	var aggr *AggregateError
	require.ErrorAs(t, err, &aggr)
	assert.Len(t, aggr.Errors, 3)
	assert.Contains(t, err.Error(), "3 topology errors")
}

func TestBuilder_MustBuildPanics(t *testing.T) {
	assert.Panics(t, func() {
		New().MustBuild()
	})
}
