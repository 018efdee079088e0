/*
Package session coordinates access to stored run records.

A Manager serialises work per run ID with in-process locks and, when a
ports.DistributedLocker is configured, a lock shared across replicas. Batch
resume and the HTTP surface use LoadOrAsk so a question that was already
answered is served from the store instead of running the workflow again.
*/
package session
