// Package mcp exposes question answering, document search and schema
// description as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/hybridqa/internal/logging"
	"github.com/aretw0/hybridqa/internal/presentation/graph"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/ports"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// AskResponse is the structured result of the ask tool.
type AskResponse struct {
	Output   domain.Output   `json:"output" jsonschema_description:"The answer, its SQL, confidence, explanation and citations"`
	Strategy domain.Strategy `json:"strategy" jsonschema_description:"Strategy the router chose: rag, sql or hybrid"`
	Path     []domain.NodeID `json:"path" jsonschema_description:"Nodes visited in order"`
	Repairs  int             `json:"repair_count" jsonschema_description:"Repair passes used"`
}

// SearchResponse is the structured result of the search_docs tool.
type SearchResponse struct {
	Chunks []domain.Chunk `json:"chunks" jsonschema_description:"Matching document chunks, best first"`
}

// Agent is the workflow the server drives.
type Agent interface {
	Ask(ctx context.Context, q domain.Question) (*domain.RunRecord, error)
	Graph() *domain.Graph
}

// Server exposes the agent as an MCP server.
type Server struct {
	agent     Agent
	retriever ports.Retriever
	backend   ports.QueryBackend
	topK      int
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTopK sets the default number of chunks search_docs returns.
func WithTopK(k int) Option {
	return func(s *Server) {
		if k > 0 {
			s.topK = k
		}
	}
}

// NewServer registers the tools and resources.
func NewServer(agent Agent, retriever ports.Retriever, backend ports.QueryBackend, version string, opts ...Option) *Server {
	s := &Server{
		agent:     agent,
		retriever: retriever,
		backend:   backend,
		topK:      3,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("hybridqa-mcp", strings.TrimSpace(version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a retail analytics question using the document corpus and the database."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer")),
		mcp.WithString("format_hint", mcp.Description("Expected answer format, e.g. int, float, {category:str, quantity:int}")),
		mcp.WithString("id", mcp.Description("Identifier for the run (generated when omitted)")),
		mcp.WithOutputSchema[AskResponse](),
	), mcp.NewStructuredToolHandler(s.handleAsk))

	s.mcpServer.AddTool(mcp.NewTool("search_docs",
		mcp.WithDescription("Search the document corpus and return the most similar chunks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("k", mcp.Description("Number of chunks to return")),
		mcp.WithOutputSchema[SearchResponse](),
	), mcp.NewStructuredToolHandler(s.handleSearch))

	s.mcpServer.AddTool(mcp.NewTool("describe_schema",
		mcp.WithDescription("Describe the database tables and columns."),
	), s.handleSchema)

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the workflow topology as a Mermaid flowchart."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(graph.GenerateMermaid(s.agent.Graph(), nil)), nil
	})
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (AskResponse, error) {
	question, _ := args["question"].(string)
	hint, _ := args["format_hint"].(string)
	id, _ := args["id"].(string)
	if strings.TrimSpace(question) == "" {
		return AskResponse{}, errors.New("question is required")
	}
	if id == "" {
		id = uuid.NewString()
	}

	rec, err := s.agent.Ask(ctx, domain.Question{ID: id, Question: question, FormatHint: hint})
	if err != nil {
		s.logger.Error("MCP ask failed", "id", id, "err", err)
		return AskResponse{}, fmt.Errorf("ask failed: %w", err)
	}
	return AskResponse{Output: rec.Output, Strategy: rec.Strategy, Path: rec.Path, Repairs: rec.RepairCount}, nil
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SearchResponse, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return SearchResponse{}, errors.New("query is required")
	}
	k := s.topK
	if v, ok := args["k"].(float64); ok && v >= 1 {
		k = int(v)
	}

	chunks, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search failed: %w", err)
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	return SearchResponse{Chunks: chunks}, nil
}

func (s *Server) handleSchema(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schema, err := s.backend.Schema(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("schema introspection failed: %v", err)), nil
	}
	return mcp.NewToolResultText(schema), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("hybridqa://graph", "Workflow topology",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		g := s.agent.Graph()
		edges := make(map[domain.NodeID][]domain.NodeID, len(g.Order))
		for _, n := range g.Ordered() {
			edges[n.ID] = n.Edges()
		}
		b, err := json.Marshal(map[string]any{"entry": g.Entry, "order": g.Order, "edges": edges})
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: "hybridqa://graph", MIMEType: "application/json", Text: string(b)},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource("hybridqa://schema", "Database schema",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		schema, err := s.backend.Schema(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe schema: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: "hybridqa://schema", MIMEType: "text/plain", Text: schema},
		}, nil
	})
}
