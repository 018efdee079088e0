package ports

import (
	"context"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// QueryBackend introspects and queries a relational store.
type QueryBackend interface {
	// Schema returns one paragraph per table listing column names and types.
	Schema(ctx context.Context) (string, error)

	// Execute runs query text. It never returns an error: failures are reported
	// in QueryResult.Error with empty columns and rows.
	Execute(ctx context.Context, query string) domain.QueryResult
}
