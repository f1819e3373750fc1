package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"biblo-chat-be/internal/constant"
	"biblo-chat-be/internal/pkg/logger"
	"biblo-chat-be/internal/repository/contract"
	"biblo-chat-be/pkg/embedding"
	"biblo-chat-be/pkg/store"
)

const DefaultTopK = 3

// ErrNoKnowledgeBase is returned when no vector store is configured.
var ErrNoKnowledgeBase = errors.New("knowledge base is not configured")

// Retriever embeds a query and pulls the closest chunks of the domain's collection.
type Retriever struct {
	embeddingProvider embedding.EmbeddingProvider
	chunks            contract.KnowledgeChunkRepository
	topK              int
	logger            logger.ILogger
}

func NewRetriever(
	embeddingProvider embedding.EmbeddingProvider,
	chunks contract.KnowledgeChunkRepository,
	topK int,
	logger logger.ILogger,
) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embeddingProvider: embeddingProvider,
		chunks:            chunks,
		topK:              topK,
		logger:            logger,
	}
}

// CollectionFor maps a domain onto its vector collection.
func CollectionFor(domain store.Domain) string {
	if domain == store.DomainLibrary {
		return constant.LibraryCollection
	}
	return constant.CompanyCollection
}

// Retrieve returns the formatted context block for the prompt. An empty string
// means nothing relevant was found.
func (r *Retriever) Retrieve(ctx context.Context, query string, domain store.Domain) (string, error) {
	docs, err := r.Search(ctx, query, domain)
	if err != nil {
		return "", err
	}
	return FormatContext(docs), nil
}

func (r *Retriever) Search(ctx context.Context, query string, domain store.Domain) ([]store.Document, error) {
	if r.chunks == nil {
		return nil, ErrNoKnowledgeBase
	}

	embeddingRes, err := r.embeddingProvider.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	collection := CollectionFor(domain)
	docs, err := r.chunks.SearchSimilar(ctx, collection, embeddingRes.Embedding.Values, r.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	for i, d := range docs {
		r.logger.Debug("RETRIEVER", "Candidate", map[string]interface{}{
			"rank":       i + 1,
			"collection": collection,
			"score":      d.Score,
			"id":         d.ID,
		})
	}
	return docs, nil
}

// FormatContext renders documents as "핵심정보: <content> \n<source_text>" lines.
func FormatContext(docs []store.Document) string {
	lines := make([]string, len(docs))
	for i, d := range docs {
		lines[i] = fmt.Sprintf("핵심정보: %s \n%s", d.Content, d.SourceText())
	}
	return strings.Join(lines, "\n")
}

// EmptyCollections returns the domain collections holding no chunks.
func (r *Retriever) EmptyCollections(ctx context.Context) ([]string, error) {
	if r.chunks == nil {
		return nil, ErrNoKnowledgeBase
	}

	var empty []string
	for _, collection := range []string{constant.CompanyCollection, constant.LibraryCollection} {
		n, err := r.chunks.Count(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", collection, err)
		}
		if n == 0 {
			empty = append(empty, collection)
		}
	}
	return empty, nil
}
