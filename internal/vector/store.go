// Package vector stores embedded chunks and serves similarity search over
// them, one isolated namespace per user.
package vector

import (
	"context"

	"docuchat/internal/models"
)

// Store is a per-user view of the vector index. Implementations are bound to
// a single namespace at construction and must never read or write outside it.
type Store interface {
	Upsert(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, vector []float64, topK int) ([]models.SearchResult, error)
}
