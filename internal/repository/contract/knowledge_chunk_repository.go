package contract

import (
	"context"

	"biblo-chat-be/pkg/store"
)

type KnowledgeChunkRepository interface {
	// SearchSimilar returns the closest chunks of a collection by cosine distance.
	SearchSimilar(ctx context.Context, collection string, embedding []float32, limit int) ([]store.Document, error)
	Count(ctx context.Context, collection string) (int64, error)
}
