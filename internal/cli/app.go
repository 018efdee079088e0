// Package cli wires configuration into a running question answering stack
// and implements the command behaviours behind cmd/hybridqa.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/hybridqa/internal/config"
	"github.com/aretw0/hybridqa/internal/logging"
	"github.com/aretw0/hybridqa/pkg/adapters/memory"
	httpadapter "github.com/aretw0/hybridqa/pkg/adapters/http"
	mcpadapter "github.com/aretw0/hybridqa/pkg/adapters/mcp"
	redisadapter "github.com/aretw0/hybridqa/pkg/adapters/redis"
	"github.com/aretw0/hybridqa/pkg/adapters/sqlbackend"
	"github.com/aretw0/hybridqa/pkg/agent"
	"github.com/aretw0/hybridqa/pkg/batch"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/llm"
	"github.com/aretw0/hybridqa/pkg/llm/ollama"
	"github.com/aretw0/hybridqa/pkg/observability"
	"github.com/aretw0/hybridqa/pkg/persistence/middleware"
	"github.com/aretw0/hybridqa/pkg/ports"
	"github.com/aretw0/hybridqa/pkg/reasoning"
	"github.com/aretw0/hybridqa/pkg/retrieval"
	"github.com/aretw0/hybridqa/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds every collaborator built from a Config.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Index    *retrieval.Index
	Backend  *sqlbackend.Backend
	Agent    *agent.Agent
	Sessions *session.Manager
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Streams  *httpadapter.StreamManager

	closers []func(context.Context) error
}

type buildOptions struct {
	logger   *slog.Logger
	provider llm.Provider
	store    ports.AnswerStore
}

// BuildOption overrides a collaborator the config would otherwise create.
type BuildOption func(*buildOptions)

func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// WithProvider replaces the configured language model provider.
func WithProvider(p llm.Provider) BuildOption {
	return func(o *buildOptions) {
		o.provider = p
	}
}

// WithStore replaces the configured answer store.
func WithStore(s ports.AnswerStore) BuildOption {
	return func(o *buildOptions) {
		o.store = s
	}
}

// New builds the stack. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config, opts ...BuildOption) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg, Logger: o.logger}
	if app.Logger == nil {
		app.Logger = logging.NewWithOptions(cfg.LoggingOptions())
	}
	if err := app.build(ctx, o); err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, o buildOptions) error {
	cfg := a.Config

	shutdown, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	a.Index, err = retrieval.BuildFromDir(cfg.Docs.Dir, cfg.Docs.Extensions...)
	if err != nil {
		return fmt.Errorf("documents: %w", err)
	}
	a.Logger.Info("Document index built", "dir", cfg.Docs.Dir, "chunks", a.Index.Len(), "vocabulary", a.Index.VocabularySize())

	backendOpts := []sqlbackend.Option{
		sqlbackend.WithLogger(a.Logger),
		sqlbackend.WithSchemaTTL(cfg.SchemaTTL()),
		sqlbackend.WithQueryTimeout(cfg.QueryTimeout()),
	}
	if cfg.Database.Serialize {
		backendOpts = append(backendOpts, sqlbackend.WithSerializedAccess())
	}
	a.Backend, err = sqlbackend.Open(cfg.Database.Driver, cfg.Database.DSN, backendOpts...)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.Backend.Close() })

	provider := o.provider
	if provider == nil {
		p := ollama.New(cfg.LLM.BaseURL, cfg.LLM.Model)
		p.Client.Timeout = time.Duration(cfg.LLM.TimeoutSecs) * time.Second
		provider = p
	}
	callOpts := []llm.Option{llm.WithTemperature(cfg.LLM.Temperature)}
	if cfg.LLM.MaxTokens > 0 {
		callOpts = append(callOpts, llm.WithMaxTokens(cfg.LLM.MaxTokens))
	}
	reasoner := reasoning.New(provider, reasoning.WithLogger(a.Logger), reasoning.WithCallOptions(callOpts...))

	if err := a.buildSessions(o.store); err != nil {
		return err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics, err = observability.NewMetrics(a.Registry)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	a.Streams = httpadapter.NewStreamManager(a.Logger)

	a.Agent, err = agent.New(a.Index, reasoner, a.Backend,
		agent.WithLogger(a.Logger),
		agent.WithTopK(cfg.Docs.TopK),
		agent.WithMaxRepairs(cfg.Repairs()),
		agent.WithMaxSteps(cfg.Agent.MaxSteps),
		agent.WithStaleErrors(cfg.Agent.StaleErrors),
		agent.WithAnswerCoercion(cfg.Agent.CoerceAnswers),
		agent.WithLifecycleHooks(domain.ComposeHooks(
			observability.LoggingHooks(a.Logger),
			a.Metrics.Hooks(),
			a.Streams.Hooks(),
		)),
	)
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	return nil
}

func (a *App) buildSessions(store ports.AnswerStore) error {
	cfg := a.Config
	sessionOpts := []session.Option{session.WithLogger(a.Logger)}

	switch {
	case store != nil:
	case cfg.Store.Type == "redis":
		rs, err := redisadapter.New(cfg.Store.RedisURL,
			redisadapter.WithPrefix(cfg.Store.Prefix),
			redisadapter.WithTTL(cfg.StoreTTL()),
		)
		if err != nil {
			return fmt.Errorf("answer store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return rs.Close() })
		sessionOpts = append(sessionOpts, session.WithLocker(redisadapter.NewLocker(rs.Client(), cfg.Store.Prefix)))
		store = rs
	default:
		store = memory.NewStore()
	}

	store, err := wrapStore(store, cfg.Store)
	if err != nil {
		return err
	}
	a.Sessions = session.NewManager(store, sessionOpts...)
	return nil
}

// wrapStore applies redaction and then encryption, as configured.
func wrapStore(store ports.AnswerStore, cfg config.StoreConfig) (ports.AnswerStore, error) {
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mw, err := middleware.NewPIIMiddleware(cfg.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.EncryptionKey != "" {
		active, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store encryption key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range cfg.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("store fallback key %d: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), nil
}

// Ask answers one question and records it in the metrics.
func (a *App) Ask(ctx context.Context, q domain.Question) (*domain.RunRecord, error) {
	rec, err := a.Agent.Ask(ctx, q)
	if err != nil {
		return nil, err
	}
	a.Metrics.ObserveRecord(rec)
	return rec, nil
}

func (a *App) Graph() *domain.Graph {
	return a.Agent.Graph()
}

// BatchRunner returns a runner using the configured worker count.
// With resume it reuses stored answers and stores new ones.
func (a *App) BatchRunner(workers int, resume bool) *batch.Runner {
	if workers <= 0 {
		workers = a.Config.Batch.Workers
	}
	opts := []batch.Option{batch.WithWorkers(workers), batch.WithLogger(a.Logger)}
	if resume {
		opts = append(opts, batch.WithSessions(a.Sessions))
	}
	return batch.NewRunner(a, opts...)
}

// HTTPHandler returns the HTTP API.
func (a *App) HTTPHandler(version string) http.Handler {
	return httpadapter.NewHandler(&httpadapter.Server{
		Agent:     a,
		Retriever: a.Index,
		Sessions:  a.Sessions,
		Streams:   a.Streams,
		Gatherer:  a.Registry,
		Version:   version,
		Origins:   a.Config.Server.CORSOrigins,
		Logger:    a.Logger,
		TopK:      a.Config.Docs.TopK,
	})
}

// MCPServer returns the Model Context Protocol server.
func (a *App) MCPServer(version string) *mcpadapter.Server {
	return mcpadapter.NewServer(a, a.Index, a.Backend, version,
		mcpadapter.WithLogger(a.Logger),
		mcpadapter.WithTopK(a.Config.Docs.TopK),
	)
}

// Close releases resources in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
