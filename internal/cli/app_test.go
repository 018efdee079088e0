package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aretw0/hybridqa/internal/config"
	"github.com/aretw0/hybridqa/internal/logging"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama answers every chat request with one object that satisfies
// routing and synthesis alike.
func fakeOllama(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	content, err := json.Marshal(map[string]any{
		"strategy":     "rag",
		"final_answer": "14",
		"explanation":  "Unopened beverages have a 14 day window.",
		"citations":    []string{"product_policy::chunk0"},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "test",
			"message": map[string]string{"role": "assistant", "content": string(content)},
			"done":    true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestConfig(t *testing.T, llmURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "product_policy.md"),
		[]byte("# Returns\n\nUnopened beverages can be returned within 14 days.\n\nPerishables cannot be returned."), 0o644))

	cfg := config.Default()
	cfg.Docs.Dir = docs
	cfg.Database.DSN = filepath.Join(dir, "shop.sqlite")
	cfg.LLM.BaseURL = llmURL
	return cfg
}

func newTestApp(t *testing.T) (*App, *config.Config, *atomic.Int32) {
	t.Helper()
	calls := &atomic.Int32{}
	cfg := newTestConfig(t, fakeOllama(t, calls).URL)

	app, err := New(context.Background(), cfg, WithLogger(logging.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app, cfg, calls
}

func TestNew_AnswersDocumentQuestion(t *testing.T) {
	app, _, _ := newTestApp(t)

	rec, err := app.Ask(context.Background(), domain.Question{ID: "q1", Question: "How long can beverages be returned?"})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyRAG, rec.Strategy)
	assert.Equal(t, "q1", rec.Output.ID)
	assert.Equal(t, 1.0, rec.Output.Confidence)
	assert.NotEmpty(t, rec.Path)
	assert.Positive(t, app.Index.Len())
}

func TestNew_MissingDocsDir(t *testing.T) {
	cfg := newTestConfig(t, "http://127.0.0.1:1")
	cfg.Docs.Dir = filepath.Join(t.TempDir(), "missing")

	_, err := New(context.Background(), cfg, WithLogger(logging.NewNop()))
	assert.Error(t, err)
}

func TestRunBatch_Resume(t *testing.T) {
	app, _, calls := newTestApp(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "questions.jsonl")
	out := filepath.Join(dir, "out", "outputs.jsonl")
	require.NoError(t, os.WriteFile(in, []byte(
		`{"id":"a","question":"Return window for beverages?","format_hint":"int"}`+"\n"+
			`{"id":"b","question":"Can perishables be returned?","format_hint":"str"}`+"\n"), 0o644))

	summary, err := RunBatch(context.Background(), app, BatchOptions{Input: in, Output: out, Workers: 2, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Answered)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"a"`)
	assert.Contains(t, lines[1], `"id":"b"`)

	before := calls.Load()
	summary, err = RunBatch(context.Background(), app, BatchOptions{Input: in, Output: out, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Reused)
	assert.Equal(t, before, calls.Load())
}

func TestAskOne_JSON(t *testing.T) {
	app, _, _ := newTestApp(t)

	var buf bytes.Buffer
	require.NoError(t, AskOne(context.Background(), app, &buf, "Return window?", AskOptions{ID: "x", JSON: true}))

	var rec domain.RunRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "x", rec.Output.ID)

	buf.Reset()
	require.NoError(t, AskOne(context.Background(), app, &buf, "Return window?", AskOptions{ID: "x", Plain: true}))
	assert.Contains(t, buf.String(), "14")
}

func TestSearch(t *testing.T) {
	app, _, _ := newTestApp(t)

	var buf bytes.Buffer
	require.NoError(t, Search(context.Background(), app, &buf, "perishables returned", 1))
	assert.Contains(t, buf.String(), "product_policy::chunk")

	buf.Reset()
	require.NoError(t, Search(context.Background(), app, &buf, "zebra", 1))
	assert.Contains(t, buf.String(), "No matching chunks.")
}

func TestPrintGraph(t *testing.T) {
	app, _, _ := newTestApp(t)

	var buf bytes.Buffer
	require.NoError(t, PrintGraph(context.Background(), app, &buf, "", true))
	assert.Contains(t, buf.String(), "graph TD")
	assert.Contains(t, buf.String(), "router")

	_, err := app.Ask(context.Background(), domain.Question{ID: "p", Question: "Return window?"})
	require.NoError(t, err)
	err = PrintGraph(context.Background(), app, &buf, "p", false)
	assert.Error(t, err, "runs answered outside the session manager are not stored")
}

func TestServeMCP_UnknownTransport(t *testing.T) {
	app, _, _ := newTestApp(t)
	assert.Error(t, ServeMCP(context.Background(), app, "carrier-pigeon", ":0", "dev"))
}

func TestNew_EncryptedRedactedStore(t *testing.T) {
	calls := &atomic.Int32{}
	cfg := newTestConfig(t, fakeOllama(t, calls).URL)
	cfg.Store.EncryptionKey = strings.Repeat("ab", 32)
	cfg.Store.Redact = []string{`beverages`}

	app, err := New(context.Background(), cfg, WithLogger(logging.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	var buf bytes.Buffer
	require.NoError(t, AskOne(context.Background(), app, &buf, "Return window for beverages?", AskOptions{ID: "enc", JSON: true}))

	rec, err := app.Sessions.Load(context.Background(), "enc")
	require.NoError(t, err)
	assert.Equal(t, "Return window for ***?", rec.Question.Question)
}

func TestNew_BadEncryptionKey(t *testing.T) {
	cfg := newTestConfig(t, "http://127.0.0.1:1")
	cfg.Store.EncryptionKey = "short"

	_, err := New(context.Background(), cfg, WithLogger(logging.NewNop()))
	assert.Error(t, err)
}
