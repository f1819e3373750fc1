package search

import (
	"context"
	"errors"
	"testing"

	"biblo-chat-be/internal/constant"
	"biblo-chat-be/internal/pkg/logger"
	"biblo-chat-be/pkg/embedding"
	"biblo-chat-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	err      error
	lastTask string
}

func (f *fakeEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	f.lastTask = taskType
	if f.err != nil {
		return nil, f.err
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{1, 0}},
	}, nil
}

type fakeChunks struct {
	docs           []store.Document
	err            error
	lastCollection string
	lastLimit      int
	counts         map[string]int64
}

func (f *fakeChunks) SearchSimilar(ctx context.Context, collection string, emb []float32, limit int) ([]store.Document, error) {
	f.lastCollection = collection
	f.lastLimit = limit
	return f.docs, f.err
}

func (f *fakeChunks) Count(ctx context.Context, collection string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[collection], nil
}

func TestRetriever_Retrieve(t *testing.T) {
	chunks := &fakeChunks{docs: []store.Document{
		{Content: "운영시간", Metadata: map[string]interface{}{"source_text": "평일 09-18시"}},
		{Content: "대출", Metadata: map[string]interface{}{}},
	}}
	emb := &fakeEmbedder{}
	r := NewRetriever(emb, chunks, 0, logger.NewNopLogger())

	out, err := r.Retrieve(context.Background(), "도서관 운영시간?", store.DomainLibrary)
	require.NoError(t, err)

	assert.Equal(t, "핵심정보: 운영시간 \n평일 09-18시\n핵심정보: 대출 \n", out)
	assert.Equal(t, constant.LibraryCollection, chunks.lastCollection)
	assert.Equal(t, DefaultTopK, chunks.lastLimit)
	assert.Equal(t, embedding.TaskRetrievalQuery, emb.lastTask)
}

func TestRetriever_Errors(t *testing.T) {
	t.Run("embedding failure", func(t *testing.T) {
		r := NewRetriever(&fakeEmbedder{err: errors.New("down")}, &fakeChunks{}, 3, logger.NewNopLogger())
		_, err := r.Retrieve(context.Background(), "q", store.DomainCompany)
		assert.ErrorContains(t, err, "embedding generation failed")
	})

	t.Run("search failure", func(t *testing.T) {
		chunks := &fakeChunks{err: errors.New("db")}
		r := NewRetriever(&fakeEmbedder{}, chunks, 3, logger.NewNopLogger())
		_, err := r.Retrieve(context.Background(), "q", store.DomainCompany)
		assert.ErrorContains(t, err, "vector search failed")
		assert.Equal(t, constant.CompanyCollection, chunks.lastCollection)
	})
}

func TestFormatContext_Empty(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))
}

func TestRetriever_NoKnowledgeBase(t *testing.T) {
	embedder := &fakeEmbedder{}
	r := NewRetriever(embedder, nil, 0, logger.NewNopLogger())

	_, err := r.Retrieve(context.Background(), "질문", store.DomainLibrary)
	assert.ErrorIs(t, err, ErrNoKnowledgeBase)
	assert.Empty(t, embedder.lastTask)
}

func TestRetriever_EmptyCollections(t *testing.T) {
	chunks := &fakeChunks{counts: map[string]int64{constant.CompanyCollection: 12}}
	r := NewRetriever(&fakeEmbedder{}, chunks, 0, logger.NewNopLogger())

	empty, err := r.EmptyCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{constant.LibraryCollection}, empty)

	_, err = NewRetriever(&fakeEmbedder{}, nil, 0, logger.NewNopLogger()).EmptyCollections(context.Background())
	assert.ErrorIs(t, err, ErrNoKnowledgeBase)
}
