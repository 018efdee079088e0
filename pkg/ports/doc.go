/*
Package ports defines the driven ports (interfaces) of the question-answering engine.

These interfaces decouple the workflow from its collaborators, so reasoning models,
relational backends and persistence can be swapped for deterministic stand-ins in tests.

# Key Interfaces

  - Reasoner: the four text reasoning capabilities (classify, plan, generate query, synthesize).
  - QueryBackend: schema introspection and query execution against a relational store.
  - Retriever: ranked chunk lookup over the document corpus.
  - AnswerStore: persistence of completed run records.
  - DistributedLocker: distributed locking for concurrent access to the same run ID.
*/
package ports
