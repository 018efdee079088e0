package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/hybridqa/internal/presentation/graph"
	"github.com/aretw0/hybridqa/internal/presentation/tui"
	"github.com/aretw0/hybridqa/internal/validator"
	"github.com/aretw0/hybridqa/pkg/batch"
	"github.com/aretw0/hybridqa/pkg/domain"
)

// BatchOptions controls RunBatch.
type BatchOptions struct {
	Input   string
	Output  string
	Workers int
	Resume  bool
}

// RunBatch answers every question in the input JSONL file and writes the
// outputs, in input order, to the output file.
func RunBatch(ctx context.Context, app *App, opts BatchOptions) (batch.Summary, error) {
	in, err := os.Open(opts.Input)
	if err != nil {
		return batch.Summary{}, fmt.Errorf("open batch: %w", err)
	}
	defer in.Close()

	questions, err := batch.ReadQuestions(in)
	if err != nil {
		return batch.Summary{}, err
	}

	outputs, summary, err := app.BatchRunner(opts.Workers, opts.Resume).Answer(ctx, questions)
	if err != nil {
		return summary, err
	}

	if dir := filepath.Dir(opts.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return summary, err
		}
	}
	out, err := os.Create(opts.Output)
	if err != nil {
		return summary, fmt.Errorf("create output: %w", err)
	}
	if err := batch.WriteOutputs(out, outputs); err != nil {
		out.Close()
		return summary, err
	}
	return summary, out.Close()
}

// AskOptions controls AskOne.
type AskOptions struct {
	ID         string
	FormatHint string
	JSON       bool
	Plain      bool
}

// AskOne answers a single question and prints it as JSON or rendered markdown.
func AskOne(ctx context.Context, app *App, w io.Writer, question string, opts AskOptions) error {
	id := opts.ID
	if id == "" {
		id = fmt.Sprintf("cli-%d", time.Now().UnixNano())
	}

	rec, _, err := app.Sessions.LoadOrAsk(ctx, id, func(ctx context.Context) (*domain.RunRecord, error) {
		return app.Ask(ctx, domain.Question{ID: id, Question: question, FormatHint: opts.FormatHint})
	})
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	md := tui.FormatRecord(rec)
	if opts.Plain {
		_, err = fmt.Fprint(w, md)
		return err
	}
	render, err := tui.NewRenderer()
	if err != nil {
		return err
	}
	out, err := render(md)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}

// Search prints the top k chunks for a query.
func Search(ctx context.Context, app *App, w io.Writer, query string, k int) error {
	if k <= 0 {
		k = app.Config.Docs.TopK
	}
	chunks, err := app.Index.Retrieve(ctx, query, k)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		_, err := fmt.Fprintln(w, "No matching chunks.")
		return err
	}
	for _, c := range chunks {
		if _, err := fmt.Fprintf(w, "[%.4f] %s\n%s\n\n", c.Score, c.ID, c.Content); err != nil {
			return err
		}
	}
	return nil
}

// PrintGraph writes the workflow as Mermaid. With runID the stored path is
// highlighted. With validate it fails on missing or unreachable nodes.
func PrintGraph(ctx context.Context, app *App, w io.Writer, runID string, validate bool) error {
	g := app.Graph()
	if validate {
		if err := validator.ValidateGraph(g); err != nil {
			return err
		}
	}

	var overlay *graph.GraphOverlay
	if runID != "" {
		rec, err := app.Sessions.Load(ctx, runID)
		if err != nil {
			return err
		}
		overlay = graph.OverlayFromPath(rec.Path)
	}
	_, err := fmt.Fprint(w, graph.GenerateMermaid(g, overlay))
	return err
}

// Serve runs the HTTP API until ctx is cancelled.
func Serve(ctx context.Context, app *App, addr, version string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.HTTPHandler(version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		app.Logger.Info("HTTP server listening", "address", addr)
		serverErrors <- srv.ListenAndServe()
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
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("Graceful shutdown did not complete", "err", err)
			return srv.Close()
		}
		app.Logger.Info("HTTP server stopped gracefully")
		return nil
	}
}

// ServeMCP runs the MCP server over stdio or SSE.
func ServeMCP(ctx context.Context, app *App, transport, addr, version string) error {
	srv := app.MCPServer(version)
	switch transport {
	case "stdio":
		return srv.ServeStdio()
	case "sse":
		return srv.ServeSSE(ctx, addr, "http://localhost"+addr)
	default:
		return fmt.Errorf("unknown transport %q: supported are stdio and sse", transport)
	}
}
