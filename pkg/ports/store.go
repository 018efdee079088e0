package ports

import (
	"context"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// AnswerStore persists completed run records.
// This allows batch runs to resume and answers to be fetched by ID.
type AnswerStore interface {
	// Save persists the record for a given run ID.
	Save(ctx context.Context, runID string, record *domain.RunRecord) error

	// Load retrieves the record for a given run ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.RunRecord, error)

	// Delete removes the record for a given run ID.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of stored runs.
	List(ctx context.Context) ([]string, error)
}
