/*
Package hybridqa answers analytical questions about a retail business by combining
retrieval over a small document corpus with SQL over a relational database.

Every question runs through a fixed workflow. A router picks a strategy (rag, sql or hybrid),
documents are retrieved with TF-IDF, a planner extracts constraints, a language model writes
SQL, the database executes it, and a synthesizer produces an answer typed by the question's
format hint. Failed executions and syntheses are repaired a bounded number of times.

# Key Features

  - Deterministic Workflow: the graph is validated at build time and every run records its path.
  - Hexagonal Architecture: retrieval, reasoning, the database and the answer store sit behind ports.
  - Local Models: reasoning talks to an Ollama server and never needs a hosted API.
  - Resumable Batches: outputs are stored per question ID so an interrupted batch picks up where it stopped.

# Usage

Open reads hybridqa.yaml, a .env file and environment overrides, then builds the whole stack.

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/hybridqa"
		"github.com/aretw0/hybridqa/pkg/domain"
	)

	func main() {
		ctx := context.Background()
		eng, err := hybridqa.Open(ctx, "hybridqa.yaml")
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Close(ctx)

		rec, err := eng.Ask(ctx, domain.Question{
			ID:         "q1",
			Question:   "What is the return window (days) for unopened Beverages?",
			FormatHint: "int",
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(rec.Output.FinalAnswer, rec.Output.Citations)
	}

The cmd/hybridqa binary exposes the same engine as a batch runner, an HTTP API and an MCP server.
*/
package hybridqa
