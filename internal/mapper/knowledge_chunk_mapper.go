package mapper

import (
	"biblo-chat-be/internal/model"
	"biblo-chat-be/pkg/store"
)

type KnowledgeChunkMapper struct{}

func NewKnowledgeChunkMapper() *KnowledgeChunkMapper {
	return &KnowledgeChunkMapper{}
}

func (m *KnowledgeChunkMapper) ToDocument(c *model.KnowledgeChunk, similarity float64) store.Document {
	return store.Document{
		ID:      c.Id.String(),
		Title:   c.Collection,
		Content: c.PageContent,
		Score:   float32(similarity),
		Metadata: map[string]interface{}{
			"source_text": c.SourceText,
			"collection":  c.Collection,
		},
	}
}
