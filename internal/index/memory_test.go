package index

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInitializedIndex(t *testing.T, dimension int) *MemoryIndex {
	t.Helper()
	idx, err := NewMemoryIndex(dimension, domain.SimilarityCosine)
	require.NoError(t, err)
	require.NoError(t, idx.EnsureInitialized(context.Background()))
	return idx
}

func record(id string, vec ...float32) domain.IndexedRecord {
	return domain.IndexedRecord{ID: id, Content: "content of " + id, SourceFile: "a.txt", Embedding: vec}
}

func TestNewMemoryIndex_Validation(t *testing.T) {
	_, err := NewMemoryIndex(0, domain.SimilarityCosine)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewMemoryIndex(3, "euclid")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	idx, err := NewMemoryIndex(3, "")
	require.NoError(t, err)
	assert.Equal(t, domain.SimilarityCosine, idx.Similarity())
	assert.Equal(t, 3, idx.Dimension())
}

func TestMemoryIndex_NotInitialized(t *testing.T) {
	idx, err := NewMemoryIndex(2, domain.SimilarityCosine)
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, idx.Upsert(ctx, record("a", 1, 0)), domain.ErrNotInitialized)
	_, err = idx.Search(ctx, []float32{1, 0}, 3)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = idx.Count(ctx)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestMemoryIndex_EnsureInitializedIsIdempotent(t *testing.T) {
	idx := newInitializedIndex(t, 2)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, record("a", 1, 0)))

	require.NoError(t, idx.EnsureInitialized(ctx))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryIndex_UpsertReplaces(t *testing.T) {
	idx := newInitializedIndex(t, 2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, domain.IndexedRecord{ID: "a", Content: "first", Embedding: []float32{1, 0}}))
	require.NoError(t, idx.Upsert(ctx, domain.IndexedRecord{ID: "a", Content: "second", Embedding: []float32{0, 1}}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second", results[0].Record.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestMemoryIndex_UpsertValidation(t *testing.T) {
	idx := newInitializedIndex(t, 3)
	ctx := context.Background()

	err := idx.Upsert(ctx, record("a", 1, 2))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "expected 3 dimensions, got 2")

	assert.ErrorIs(t, idx.Upsert(ctx, domain.IndexedRecord{Content: "x", Embedding: []float32{1, 2, 3}}), domain.ErrMissingRequiredField)
	assert.ErrorIs(t, idx.Upsert(ctx, domain.IndexedRecord{ID: "x", Embedding: []float32{1, 2, 3}}), domain.ErrMissingRequiredField)
}

func TestMemoryIndex_SearchOrdering(t *testing.T) {
	idx := newInitializedIndex(t, 2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, record("far", -1, 0)))
	require.NoError(t, idx.Upsert(ctx, record("near", 1, 0.1)))
	require.NoError(t, idx.Upsert(ctx, record("mid", 1, 1)))
	require.NoError(t, idx.Upsert(ctx, record("exact", 1, 0)))

	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].Record.ID)
	assert.Equal(t, "near", results[1].Record.ID)
	assert.Equal(t, "mid", results[2].Record.ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	all, err := idx.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "far", all[3].Record.ID)
	assert.InDelta(t, -1.0, all[3].Score, 1e-9)
}

func TestMemoryIndex_SearchTiesKeepInsertionOrder(t *testing.T) {
	idx := newInitializedIndex(t, 2)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, idx.Upsert(ctx, record(id, 1, 1)))
	}
	// replacing keeps the original position
	require.NoError(t, idx.Upsert(ctx, domain.IndexedRecord{ID: "first", Content: "replaced", Embedding: []float32{1, 1}}))

	results, err := idx.Search(ctx, []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{results[0].Record.ID, results[1].Record.ID, results[2].Record.ID})
	assert.Equal(t, "replaced", results[0].Record.Content)
}

func TestMemoryIndex_SearchEdgeCases(t *testing.T) {
	idx := newInitializedIndex(t, 2)
	ctx := context.Background()

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, idx.Upsert(ctx, record("a", 1, 0)))

	results, err = idx.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = idx.Search(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestMemoryIndex_SearchReturnsSnapshot(t *testing.T) {
	idx := newInitializedIndex(t, 2)
	ctx := context.Background()
	vec := []float32{1, 0}
	require.NoError(t, idx.Upsert(ctx, record("a", vec...)))

	results, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, domain.IndexedRecord{ID: "a", Content: "changed", Embedding: []float32{0, 1}}))
	results[0].Record.Embedding[0] = 42

	assert.Equal(t, "content of a", results[0].Record.Content)
	again, err := idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, again[0].Record.Embedding)
}

func TestMemoryIndex_ConcurrentUpsertAndSearch(t *testing.T) {
	idx := newInitializedIndex(t, 4)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				rec := record(fmt.Sprintf("w%d-%d", w, i%10), float32(w), float32(i), 1, 1)
				assert.NoError(t, idx.Upsert(ctx, rec))
				_, err := idx.Search(ctx, []float32{1, 1, 1, 1}, 5)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80, count)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.InDelta(t, 11.0, Dot([]float32{1, 2}, []float32{3, 4}), 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, Cosine([]float32{1, 0}, []float32{1, 1}), 1e-6)

	fn, err := ScoreFuncFor(domain.SimilarityDot)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, fn([]float32{1, 2}, []float32{3, 4}), 1e-9)
}
