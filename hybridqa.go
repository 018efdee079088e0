package hybridqa

import (
	"context"
	"io"
	"log/slog"

	"github.com/aretw0/hybridqa/internal/cli"
	"github.com/aretw0/hybridqa/internal/config"
	"github.com/aretw0/hybridqa/pkg/batch"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/llm"
)

// Version is the release of the hybridqa module.
const Version = "0.3.0"

// Engine is the high-level entry point for the library.
// It wraps the configured stack and provides a simplified API for consumers.
type Engine struct {
	app *cli.App
}

// Option defines a functional option for configuring the Engine.
type Option func(*options)

type options struct {
	build []cli.BuildOption
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.build = append(o.build, cli.WithLogger(logger))
	}
}

// WithProvider injects a language model provider instead of the configured Ollama server.
func WithProvider(p llm.Provider) Option {
	return func(o *options) {
		o.build = append(o.build, cli.WithProvider(p))
	}
}

// Open resolves the config file at path (plus .env and environment overrides)
// and builds an engine from it. An empty path means config.DefaultPath.
func Open(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Resolve(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts...)
}

// New builds an engine from an already loaded config.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	app, err := cli.New(ctx, cfg, o.build...)
	if err != nil {
		return nil, err
	}
	return &Engine{app: app}, nil
}

// Ask answers one question. Runs with an ID already answered are served from the store.
func (e *Engine) Ask(ctx context.Context, q domain.Question) (*domain.RunRecord, error) {
	rec, _, err := e.app.Sessions.LoadOrAsk(ctx, q.ID, func(ctx context.Context) (*domain.RunRecord, error) {
		return e.app.Ask(ctx, q)
	})
	return rec, err
}

// AnswerBatch reads questions as JSON lines from in and writes one output line per question to out.
func (e *Engine) AnswerBatch(ctx context.Context, in io.Reader, out io.Writer) (batch.Summary, error) {
	return e.app.BatchRunner(0, true).Run(ctx, in, out)
}

// Search returns the k document chunks most similar to text.
func (e *Engine) Search(ctx context.Context, text string, k int) ([]domain.Chunk, error) {
	return e.app.Index.Retrieve(ctx, text, k)
}

// Schema describes the database the engine queries.
func (e *Engine) Schema(ctx context.Context) (string, error) {
	return e.app.Backend.Schema(ctx)
}

// Graph returns the workflow topology.
func (e *Engine) Graph() *domain.Graph {
	return e.app.Graph()
}

// Close releases the database, the answer store and the tracer.
func (e *Engine) Close(ctx context.Context) error {
	return e.app.Close(ctx)
}
