package ports

import (
	"context"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// Retriever returns the chunks most similar to a text, highest score first.
type Retriever interface {
	Retrieve(ctx context.Context, text string, topK int) ([]domain.Chunk, error)
}
