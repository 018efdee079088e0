// Package batch answers a file of questions with a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/aretw0/hybridqa/internal/logging"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/session"
	"golang.org/x/sync/errgroup"
)

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, q domain.Question) (*domain.RunRecord, error)
}

// Summary reports what a batch did.
type Summary struct {
	Total    int
	Answered int // ran the workflow
	Reused   int // served from the answer store
	Failed   int // workflow faults, written with zero confidence
	Duration time.Duration
}

// Runner answers questions concurrently and keeps outputs in input order.
type Runner struct {
	asker    Asker
	sessions *session.Manager
	workers  int
	logger   *slog.Logger
}

type Option func(*Runner)

// WithWorkers bounds concurrency. Values below one are ignored.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithSessions persists each record and reuses records already stored,
// which lets an interrupted batch resume.
func WithSessions(m *session.Manager) Option {
	return func(r *Runner) {
		r.sessions = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func NewRunner(asker Asker, opts ...Option) *Runner {
	r := &Runner{
		asker:   asker,
		workers: runtime.GOMAXPROCS(0),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type outcome struct {
	output domain.Output
	reused bool
	failed bool
}

// Answer runs every question and returns outputs in input order.
// A workflow fault on one question becomes an output with no answer and zero
// confidence; only cancellation or a store failure aborts the batch.
func (r *Runner) Answer(ctx context.Context, questions []domain.Question) ([]domain.Output, Summary, error) {
	start := time.Now()
	results := make([]outcome, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, q := range questions {
		g.Go(func() error {
			res, err := r.answerOne(gctx, q)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}

	sum := Summary{Total: len(questions), Duration: time.Since(start)}
	outputs := make([]domain.Output, len(results))
	for i, res := range results {
		outputs[i] = res.output
		switch {
		case res.failed:
			sum.Failed++
		case res.reused:
			sum.Reused++
		default:
			sum.Answered++
		}
	}
	r.logger.Info("batch complete",
		"total", sum.Total,
		"answered", sum.Answered,
		"reused", sum.Reused,
		"failed", sum.Failed,
		"duration", sum.Duration,
	)
	return outputs, sum, nil
}

func (r *Runner) answerOne(ctx context.Context, q domain.Question) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}

	if r.sessions == nil {
		rec, err := r.asker.Ask(ctx, q)
		if err != nil {
			return r.faulted(ctx, q, err)
		}
		return outcome{output: rec.Output}, nil
	}

	var fault error
	rec, cached, err := r.sessions.LoadOrAsk(ctx, q.ID, func(ctx context.Context) (*domain.RunRecord, error) {
		rec, err := r.asker.Ask(ctx, q)
		if err != nil {
			fault = err
		}
		return rec, err
	})
	if err != nil {
		if fault != nil {
			return r.faulted(ctx, q, fault)
		}
		return outcome{}, fmt.Errorf("question %s: %w", q.ID, err)
	}
	if cached {
		r.logger.Debug("reusing stored answer", "id", q.ID)
	}
	return outcome{output: rec.Output, reused: cached}, nil
}

// faulted turns a per-question workflow fault into an output. Cancellation is
// returned unchanged so the batch stops.
func (r *Runner) faulted(ctx context.Context, q domain.Question, err error) (outcome, error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return outcome{}, err
	}
	r.logger.Error("question failed", "id", q.ID, "err", err)
	return outcome{
		output: domain.Output{
			ID:          q.ID,
			Confidence:  0,
			Explanation: "run failed: " + err.Error(),
			Citations:   []string{},
		},
		failed: true,
	}, nil
}

// Run reads questions from in, answers them and writes outputs to out.
func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	questions, err := ReadQuestions(in)
	if err != nil {
		return Summary{}, err
	}
	outputs, sum, err := r.Answer(ctx, questions)
	if err != nil {
		return Summary{}, err
	}
	if err := WriteOutputs(out, outputs); err != nil {
		return Summary{}, err
	}
	return sum, nil
}
