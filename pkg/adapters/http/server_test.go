package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/hybridqa/pkg/adapters/memory"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/dsl"
	"github.com/aretw0/hybridqa/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgent struct {
	calls atomic.Int32
	hooks domain.LifecycleHooks
	err   error
}

func (a *stubAgent) Ask(ctx context.Context, q domain.Question) (*domain.RunRecord, error) {
	a.calls.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	ctx = domain.WithRunID(ctx, q.ID)
	if a.hooks.OnNodeEnter != nil {
		a.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
			EventBase: domain.EventBase{Type: domain.EventNodeEnter, RunID: q.ID},
			NodeID:    "router",
		})
	}
	return &domain.RunRecord{
		Question: q,
		Output: domain.Output{
			ID:          q.ID,
			FinalAnswer: 14,
			Confidence:  1,
			Explanation: "Per policy.",
			Citations:   []string{"product_policy::chunk0"},
		},
		Strategy: domain.StrategyRAG,
		Path:     []domain.NodeID{"router", "retriever", "synthesizer"},
		Errors:   []string{},
	}, nil
}

func (a *stubAgent) Graph() *domain.Graph {
	noop := func(context.Context, domain.SharedState) domain.Update { return domain.Update{} }
	b := dsl.New()
	b.Add("router").Do(noop).Go("retriever")
	b.Add("retriever").Do(noop).Go("synthesizer")
	b.Add("synthesizer").Do(noop).Terminal()
	return b.MustBuild()
}

func newServer(t *testing.T, agent *stubAgent) (*Server, http.Handler) {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "hybridqa_test_total", Help: "test"}))

	s := &Server{
		Agent: agent,
		Retriever: memory.NewLoader(map[string]string{
			"product_policy": "Unopened beverages can be returned within 14 days.",
		}).Index(),
		Sessions: session.NewManager(memory.NewStore()),
		Gatherer: reg,
		Version:  "1.2.3\n",
		TopK:     3,
	}
	h := NewHandler(s)
	agent.hooks = s.Streams.Hooks()
	return s, h
}

func do(h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAsk(t *testing.T) {
	agent := &stubAgent{}
	_, h := newServer(t, agent)

	w := do(h, http.MethodPost, "/ask", `{"id":"q1","question":"How many days?","format_hint":"int"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "q1", resp.ID)
	assert.Equal(t, float64(14), resp.FinalAnswer)
	assert.Equal(t, domain.StrategyRAG, resp.Strategy)
	assert.False(t, resp.Cached)

	w = do(h, http.MethodPost, "/ask", `{"id":"q1","question":"How many days?"}`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, int32(1), agent.calls.Load())
}

func TestAsk_GeneratesID(t *testing.T) {
	_, h := newServer(t, &stubAgent{})

	w := do(h, http.MethodPost, "/ask", `{"question":"How many days?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.ID, 36)
}

func TestAsk_BadRequests(t *testing.T) {
	_, h := newServer(t, &stubAgent{})

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/ask", `{not json`).Code)

	w := do(h, http.MethodPost, "/ask", `{"id":"q1","question":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Question.Question is required")
}

func TestAsk_Fault(t *testing.T) {
	_, h := newServer(t, &stubAgent{err: errors.New("step limit 64 exceeded")})

	w := do(h, http.MethodPost, "/ask", `{"id":"q9","question":"loop?"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "step limit")
}

func TestRuns(t *testing.T) {
	_, h := newServer(t, &stubAgent{})

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/runs/q1", "").Code)

	do(h, http.MethodPost, "/ask", `{"id":"q1","question":"How many days?"}`)

	w := do(h, http.MethodGet, "/runs/q1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec domain.RunRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, []domain.NodeID{"router", "retriever", "synthesizer"}, rec.Path)

	w = do(h, http.MethodGet, "/runs", "")
	assert.JSONEq(t, `["q1"]`, w.Body.String())

	assert.Equal(t, http.StatusNoContent, do(h, http.MethodDelete, "/runs/q1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/runs/q1", "").Code)
}

func TestSearch(t *testing.T) {
	_, h := newServer(t, &stubAgent{})

	w := do(h, http.MethodGet, "/search?q=beverages&k=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var chunks []domain.Chunk
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chunks))
	require.Len(t, chunks, 1)
	assert.Equal(t, "product_policy::chunk0", chunks[0].ID)

	w = do(h, http.MethodGet, "/search?q=zebra", "")
	assert.JSONEq(t, `[]`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/search", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/search?q=x&k=0", "").Code)
}

func TestGraph(t *testing.T) {
	_, h := newServer(t, &stubAgent{})

	w := do(h, http.MethodGet, "/graph", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"entry":"router"`)
	assert.Contains(t, w.Body.String(), `{"id":"synthesizer","branch":false,"targets":["__end__"]}`)

	do(h, http.MethodPost, "/ask", `{"id":"q1","question":"How many days?"}`)
	w = do(h, http.MethodGet, "/graph?format=mermaid&run_id=q1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graph TD")
	assert.Contains(t, w.Body.String(), "class synthesizer current;")

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/graph?format=mermaid&run_id=nope", "").Code)
}

func TestHealthInfoMetricsCORS(t *testing.T) {
	_, h := newServer(t, &stubAgent{})

	assert.JSONEq(t, `{"status":"ok"}`, do(h, http.MethodGet, "/health", "").Body.String())
	assert.JSONEq(t, `{"app":"hybridqa-http","version":"1.2.3"}`, do(h, http.MethodGet, "/info", "").Body.String())
	assert.Contains(t, do(h, http.MethodGet, "/metrics", "").Body.String(), "hybridqa_test_total")

	w := do(h, http.MethodOptions, "/ask", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubscribeEvents(t *testing.T) {
	s, h := newServer(t, &stubAgent{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?run_id=q5", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	require.Eventually(t, func() bool { return s.Streams.Subscribers("q5") == 1 }, time.Second, 10*time.Millisecond)

	post, err := http.Post(srv.URL+"/ask", "application/json",
		bytes.NewReader([]byte(`{"id":"q5","question":"How many days?"}`)))
	require.NoError(t, err)
	post.Body.Close()

	var event string
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			event = lines.Text()
			break
		}
	}
	assert.Contains(t, event, `"node_id":"router"`)
	assert.Contains(t, event, `"run_id":"q5"`)
}

func TestStreamManager_UnsubscribeClosesOnce(t *testing.T) {
	sm := NewStreamManager(nil)
	_, cancel := sm.Subscribe("r1")
	assert.Equal(t, 1, sm.Subscribers("r1"))
	cancel()
	cancel()
	assert.Equal(t, 0, sm.Subscribers("r1"))
}
