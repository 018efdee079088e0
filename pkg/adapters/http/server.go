// Package http exposes the question answering workflow over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/hybridqa/internal/logging"
	"github.com/aretw0/hybridqa/internal/presentation/graph"
	"github.com/aretw0/hybridqa/internal/validator"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/ports"
	"github.com/aretw0/hybridqa/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Agent is the workflow the server drives.
type Agent interface {
	Ask(ctx context.Context, q domain.Question) (*domain.RunRecord, error)
	Graph() *domain.Graph
}

// Server serves the HTTP API.
type Server struct {
	Agent     Agent
	Retriever ports.Retriever
	Sessions  *session.Manager
	Streams   *StreamManager
	Gatherer  prometheus.Gatherer
	Version   string
	Origins   []string
	Logger    *slog.Logger
	TopK      int
}

// NewHandler builds the router.
//
//	GET    /health
//	GET    /info
//	POST   /ask
//	GET    /runs
//	GET    /runs/{id}
//	DELETE /runs/{id}
//	GET    /search?q=...&k=...
//	GET    /graph[?format=mermaid&run_id=...]
//	GET    /events[?run_id=...]
//	GET    /metrics
func NewHandler(s *Server) http.Handler {
	if s.Logger == nil {
		s.Logger = logging.NewNop()
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.Logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.Origins))

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Post("/ask", s.Ask)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Get("/{id}", s.GetRun)
		r.Delete("/{id}", s.DeleteRun)
	})
	r.Get("/search", s.Search)
	r.Get("/graph", s.GetGraph)
	r.Get("/events", s.SubscribeEvents)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func cors(origins []string) func(http.Handler) http.Handler {
	allow := "*"
	if len(origins) > 0 {
		allow = strings.Join(origins, ", ")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allow)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AskRequest is the POST /ask body. A missing id is generated.
type AskRequest struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	FormatHint string `json:"format_hint"`
}

// AskResponse wraps the output with the run details.
type AskResponse struct {
	domain.Output
	Strategy    domain.Strategy `json:"strategy"`
	Path        []domain.NodeID `json:"path"`
	RepairCount int             `json:"repair_count"`
	Cached      bool            `json:"cached"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var body AskRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}
	q := domain.Question{ID: body.ID, Question: strings.TrimSpace(body.Question), FormatHint: body.FormatHint}
	if err := validator.Struct(q); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	var (
		rec    *domain.RunRecord
		cached bool
		err    error
	)
	if s.Sessions != nil {
		rec, cached, err = s.Sessions.LoadOrAsk(r.Context(), q.ID, func(ctx context.Context) (*domain.RunRecord, error) {
			return s.Agent.Ask(ctx, q)
		})
	} else {
		rec, err = s.Agent.Ask(r.Context(), q)
	}
	if err != nil {
		s.Logger.Error("ask failed", "id", q.ID, "err", err)
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Output:      rec.Output,
		Strategy:    rec.Strategy,
		Path:        rec.Path,
		RepairCount: rec.RepairCount,
		Cached:      cached,
	})
}

func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if s.Sessions == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.loadRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if s.Sessions == nil {
		s.fail(w, http.StatusNotFound, domain.ErrRunNotFound)
		return
	}
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	if s.Sessions == nil {
		return nil, domain.ErrRunNotFound
	}
	return s.Sessions.Load(ctx, id)
}

func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	if s.Retriever == nil {
		s.fail(w, http.StatusNotImplemented, errors.New("search is not configured"))
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.fail(w, http.StatusBadRequest, errors.New("query parameter q is required"))
		return
	}
	k := s.TopK
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid k %q", raw))
			return
		}
		k = n
	}

	chunks, err := s.Retriever.Retrieve(r.Context(), q, k)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

type graphNode struct {
	ID      domain.NodeID   `json:"id"`
	Branch  bool            `json:"branch"`
	Targets []domain.NodeID `json:"targets"`
}

type graphResponse struct {
	Entry domain.NodeID `json:"entry"`
	Nodes []graphNode   `json:"nodes"`
}

// GetGraph returns the topology as JSON, or Mermaid text with format=mermaid.
// With run_id, the Mermaid output highlights the path that run took.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.Agent.Graph()

	if r.URL.Query().Get("format") == "mermaid" {
		var overlay *graph.GraphOverlay
		if id := r.URL.Query().Get("run_id"); id != "" {
			rec, err := s.loadRun(r.Context(), id)
			if err != nil {
				s.fail(w, statusFor(err), err)
				return
			}
			overlay = graph.OverlayFromPath(rec.Path)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(graph.GenerateMermaid(g, overlay)))
		return
	}

	resp := graphResponse{Entry: g.Entry, Nodes: []graphNode{}}
	for _, n := range g.Ordered() {
		targets := n.Edges()
		if targets == nil {
			targets = []domain.NodeID{}
		}
		resp.Nodes = append(resp.Nodes, graphNode{ID: n.ID, Branch: n.IsBranch(), Targets: targets})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "hybridqa-http",
		"version": strings.TrimSpace(s.Version),
	})
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrRunNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}
