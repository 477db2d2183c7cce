package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/researchpilot/internal/collection"
	"github.com/hyperjump/researchpilot/internal/embedding"
	"github.com/hyperjump/researchpilot/internal/fileid"
	"github.com/hyperjump/researchpilot/internal/models"
	"github.com/hyperjump/researchpilot/internal/storage"
)

type fakeIndex struct {
	neighbors []models.Neighbor
	count     int
	err       error
	queried   bool
	lastK     int
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, k int) ([]models.Neighbor, error) {
	f.queried = true
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.neighbors) {
		return f.neighbors[:k], nil
	}
	return f.neighbors, nil
}

func (f *fakeIndex) Count() int { return f.count }

type flakyEmbedder struct {
	*embedding.HashEmbedder
	failures int
	calls    int
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, models.ErrEmbedding
	}
	return f.HashEmbedder.Embed(ctx, text)
}

func neighbors(n int) []models.Neighbor {
	out := make([]models.Neighbor, n)
	for i := range out {
		out[i] = models.Neighbor{
			ID:       fileid.RecordID("/d/p.pdf", i),
			Text:     "chunk",
			Metadata: map[string]interface{}{"chunk_index": i},
			Distance: 0.123456 * float64(i),
		}
	}
	return out
}

func TestClampTopK(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 1}, {-3, 1}, {1, 1}, {5, 5}, {20, 20}, {21, 20}, {100, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampTopK(tt.in, 20), "ClampTopK(%d)", tt.in)
	}
}

func TestRetriever_EmptyCollectionSkipsQuery(t *testing.T) {
	idx := &fakeIndex{}
	r := NewRetriever(embedding.NewHashEmbedder(8), idx)
	results, err := r.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.False(t, idx.queried, "index must not be queried when empty")
}

func TestRetriever_MapsAndRounds(t *testing.T) {
	idx := &fakeIndex{neighbors: neighbors(3), count: 3}
	r := NewRetriever(embedding.NewHashEmbedder(8), idx)
	results, err := r.Search(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 3, idx.lastK, "k should be min(top_k, count)")
	for i, res := range results {
		assert.Equal(t, i+1, res.Rank)
		assert.Equal(t, "chunk", res.Document)
	}
	assert.Equal(t, 0.1235, results[1].Distance)
	assert.Equal(t, 0.8765, results[1].Similarity)
	assert.Equal(t, 1.0, results[0].Similarity)
	assert.Equal(t, 0.2469, results[2].Distance)
}

func TestRetriever_ClampsTopK(t *testing.T) {
	idx := &fakeIndex{neighbors: neighbors(30), count: 30}
	r := NewRetriever(embedding.NewHashEmbedder(8), idx)

	results, err := r.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = r.Search(context.Background(), "q", 100)
	require.NoError(t, err)
	assert.Len(t, results, 20)

	r = NewRetriever(embedding.NewHashEmbedder(8), idx, WithMaxTopK(7))
	results, err = r.Search(context.Background(), "q", 100)
	require.NoError(t, err)
	assert.Len(t, results, 7)
}

func TestRetriever_RejectsEmptyQuery(t *testing.T) {
	r := NewRetriever(embedding.NewHashEmbedder(8), &fakeIndex{count: 1})
	_, err := r.Search(context.Background(), "   ", 5)
	assert.True(t, errors.Is(err, models.ErrValidation), "got %v", err)
}

func TestRetriever_RetriesEmbeddingOnce(t *testing.T) {
	idx := &fakeIndex{neighbors: neighbors(1), count: 1}

	once := &flakyEmbedder{HashEmbedder: embedding.NewHashEmbedder(8), failures: 1}
	_, err := NewRetriever(once, idx).Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, once.calls)

	twice := &flakyEmbedder{HashEmbedder: embedding.NewHashEmbedder(8), failures: 2}
	_, err = NewRetriever(twice, idx).Search(context.Background(), "q", 5)
	assert.True(t, errors.Is(err, models.ErrEmbedding), "got %v", err)
	assert.Equal(t, 2, twice.calls)
}

func TestRetriever_PropagatesIndexErrors(t *testing.T) {
	idx := &fakeIndex{count: 2, err: models.ErrIndex}
	_, err := NewRetriever(embedding.NewHashEmbedder(8), idx).Search(context.Background(), "q", 5)
	assert.True(t, errors.Is(err, models.ErrIndex), "got %v", err)
}

func TestRetriever_RoundTripWithCollection(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	emb := embedding.NewHashEmbedder(64)
	coll, err := collection.Open(ctx, store, "papers", emb.Dimensions())
	require.NoError(t, err)
	defer coll.Close()

	texts := []string{
		"graph neural networks for molecules",
		"retrieval augmented generation with dense passages",
		"protein structure prediction",
	}
	vecs, err := emb.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	records := make([]*models.IndexRecord, len(texts))
	for i, text := range texts {
		records[i] = &models.IndexRecord{
			ID:        fileid.RecordID("/d/p.pdf", i),
			Embedding: vecs[i],
			Text:      text,
			Metadata:  models.ChunkMetadata{Source: "p.pdf", FilePath: "/d/p.pdf", DocumentType: "pdf", ChunkIndex: i}.Map(),
		}
	}
	require.NoError(t, coll.Add(ctx, records))

	results, err := NewRetriever(emb, coll).Search(ctx, texts[1], 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, texts[1], results[0].Document)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-4)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-4)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Similarity, results[i-1].Similarity)
	}

	require.NoError(t, coll.Clear(ctx))
	results, err = NewRetriever(emb, coll).Search(ctx, texts[1], 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
