// Package vectortest holds behaviour checks shared by every vectorstore.Index
// implementation that can run without a network.
package vectortest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Meta builds metadata for chunk i of docID.
func Meta(docID string, i int, text string) domain.RAGMetadata {
	return domain.RAGMetadata{
		UserID:     "user-1",
		DocID:      docID,
		DocName:    docID + ".pdf",
		Page:       i + 1,
		ChunkIndex: i,
		Text:       text,
	}
}

// Run exercises idx, which must start empty.
func Run(t *testing.T, newIndex func(t *testing.T) vectorstore.Index) {
	t.Helper()

	t.Run("idempotent upsert keeps latest vector", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		require.NoError(t, idx.Upsert(ctx, "ns", [][]float32{{1, 0, 0}}, []domain.RAGMetadata{Meta("d1", 0, "first")}))
		require.NoError(t, idx.Upsert(ctx, "ns", [][]float32{{0, 1, 0}}, []domain.RAGMetadata{Meta("d1", 0, "second")}))

		matches, err := idx.Query(ctx, "ns", []float32{0, 1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "d1::chunk-0", matches[0].ID)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
		require.NotNil(t, matches[0].Metadata)
		assert.Equal(t, "second", matches[0].Metadata.Text)
	})

	t.Run("namespace isolation", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		require.NoError(t, idx.Upsert(ctx, "alice", [][]float32{{1, 0}}, []domain.RAGMetadata{Meta("a-doc", 0, "alice text")}))
		require.NoError(t, idx.Upsert(ctx, "bob", [][]float32{{1, 0}}, []domain.RAGMetadata{Meta("b-doc", 0, "bob text")}))

		matches, err := idx.Query(ctx, "alice", []float32{1, 0}, 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "a-doc::chunk-0", matches[0].ID)

		matches, err = idx.Query(ctx, "carol", []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("results ordered by similarity", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		vectors := [][]float32{{0, 1}, {1, 0}, {0.7, 0.7}}
		metas := []domain.RAGMetadata{Meta("d", 0, "a"), Meta("d", 1, "b"), Meta("d", 2, "c")}
		require.NoError(t, idx.Upsert(ctx, "ns", vectors, metas))

		matches, err := idx.Query(ctx, "ns", []float32{1, 0.1}, 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "d::chunk-1", matches[0].ID)
		assert.Equal(t, "d::chunk-2", matches[1].ID)
		assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
		assert.Equal(t, 1, matches[0].Metadata.ChunkIndex)
		assert.Equal(t, "d.pdf", matches[0].Metadata.DocName)
		assert.Equal(t, "user-1", matches[0].Metadata.UserID)
	})

	t.Run("default topK", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		var vectors [][]float32
		var metas []domain.RAGMetadata
		for i := 0; i < 8; i++ {
			vectors = append(vectors, []float32{1, float32(i)})
			metas = append(metas, Meta("d", i, "t"))
		}
		require.NoError(t, idx.Upsert(ctx, "ns", vectors, metas))

		matches, err := idx.Query(ctx, "ns", []float32{1, 1}, 0)
		require.NoError(t, err)
		assert.Len(t, matches, vectorstore.DefaultTopK)
	})

	t.Run("delete document", func(t *testing.T) {
		idx := newIndex(t)
		ctx := context.Background()

		require.NoError(t, idx.Upsert(ctx, "ns",
			[][]float32{{1, 0}, {1, 0}, {1, 0}},
			[]domain.RAGMetadata{Meta("keep", 0, "k"), Meta("drop", 0, "x"), Meta("drop", 1, "y")}))
		require.NoError(t, idx.Upsert(ctx, "other", [][]float32{{1, 0}}, []domain.RAGMetadata{Meta("drop", 0, "z")}))

		require.NoError(t, idx.DeleteDocument(ctx, "ns", "drop"))

		matches, err := idx.Query(ctx, "ns", []float32{1, 0}, 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "keep::chunk-0", matches[0].ID)

		matches, err = idx.Query(ctx, "other", []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, matches, 1, "other namespaces untouched")
	})

	t.Run("invalid upsert", func(t *testing.T) {
		idx := newIndex(t)
		err := idx.Upsert(context.Background(), "ns", [][]float32{{1}}, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	})

	t.Run("cancelled context", func(t *testing.T) {
		idx := newIndex(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := idx.Query(ctx, "ns", []float32{1}, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
