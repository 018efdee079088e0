/*
Package domain contains the core domain models for the hybrid question-answering engine.

It defines the record threaded through a workflow run, the partial updates nodes
return, and the node/graph shapes the runtime executes. This package is kept pure
and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - SharedState: the single record threaded through every node of one run.
  - Update: a partial update returned by a node; only set fields are merged.
  - Chunk: a span of document text, the unit of retrieval.
  - Citations: the raw-or-structured citation output of answer synthesis.
  - Node / Graph: named processing steps with unconditional edges or routing functions.
*/
package domain
