package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	h := m.Hooks()
	ctx := context.Background()
	h.OnNodeEnter(ctx, &domain.NodeEvent{NodeID: "router"})
	h.OnNodeEnter(ctx, &domain.NodeEvent{NodeID: "router"})
	h.OnNodeLeave(ctx, &domain.NodeEvent{NodeID: "router", Duration: time.Millisecond})
	h.OnRoute(ctx, &domain.RouteEvent{From: "router", To: "retriever"})
	h.OnRunEnd(ctx, &domain.RunEvent{Duration: time.Second})
	h.OnRunEnd(ctx, &domain.RunEvent{Err: errors.New("step limit")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("router")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Routes.WithLabelValues("router", "retriever")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("fault")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.NodeDuration))
}

func TestMetrics_ObserveRecord(t *testing.T) {
	m, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveRecord(&domain.RunRecord{Strategy: domain.StrategySQL, Output: domain.Output{Confidence: 0.5}, RepairCount: 2})
	m.ObserveRecord(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("sql", "0.5")))
}

func TestMetrics_ReuseOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	second, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	second.NodeVisits.WithLabelValues("executor").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(first.NodeVisits.WithLabelValues("executor")))
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := observability.LoggingHooks(logger)
	ctx := context.Background()
	h.OnRunStart(ctx, &domain.RunEvent{EventBase: domain.EventBase{RunID: "q1"}, Question: "How many?"})
	h.OnNodeLeave(ctx, &domain.NodeEvent{NodeID: "executor", Changed: []string{"sql_result"}})
	h.OnRunEnd(ctx, &domain.RunEvent{Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "msg=run_start run_id=q1")
	assert.Contains(t, out, "node_id=executor")
	assert.Contains(t, out, "changed=[sql_result]")
	assert.Contains(t, out, "level=ERROR msg=run_end")
	assert.Contains(t, out, "err=boom")
}

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := observability.SetupTracing(context.Background(), observability.TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_Endpoint(t *testing.T) {
	shutdown, err := observability.SetupTracing(context.Background(), observability.TracingConfig{
		Endpoint: "http://127.0.0.1:4318",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
