package implementation

import (
	"context"

	"biblo-chat-be/internal/mapper"
	"biblo-chat-be/internal/model"
	"biblo-chat-be/internal/repository/contract"
	"biblo-chat-be/internal/repository/specification"
	"biblo-chat-be/pkg/store"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const defaultSearchLimit = 3

type KnowledgeChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeChunkMapper
}

func NewKnowledgeChunkRepository(db *gorm.DB) contract.KnowledgeChunkRepository {
	return &KnowledgeChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeChunkMapper(),
	}
}

func (r *KnowledgeChunkRepositoryImpl) SearchSimilar(ctx context.Context, collection string, embedding []float32, limit int) ([]store.Document, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	// Cosine distance in pgvector is 1 - cosine_similarity
	type result struct {
		model.KnowledgeChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)
	query := specification.ByCollection{Collection: collection}.Apply(r.db.WithContext(ctx))

	err := query.
		Table("knowledge_chunks").
		Select("knowledge_chunks.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("deleted_at IS NULL").
		Order(gorm.Expr("embedding_value <=> ?", queryVector)).
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	docs := make([]store.Document, len(results))
	for i := range results {
		docs[i] = r.mapper.ToDocument(&results[i].KnowledgeChunk, results[i].Similarity)
	}
	return docs, nil
}

func (r *KnowledgeChunkRepositoryImpl) Count(ctx context.Context, collection string) (int64, error) {
	var count int64
	query := specification.ByCollection{Collection: collection}.Apply(r.db.WithContext(ctx))
	err := query.Model(&model.KnowledgeChunk{}).Count(&count).Error
	return count, err
}
