//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/testutil"
)

func setupVectorRepository(ctx context.Context, t *testing.T, similarity domain.Similarity) *VectorRepository {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc)
	t.Cleanup(pool.Close)

	repo, err := NewVectorRepository(pool, pc.ConnectionString(), 3, similarity)
	require.NoError(t, err)
	require.NoError(t, repo.EnsureInitialized(ctx))
	return repo
}

func TestVectorRepository_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	repo := setupVectorRepository(ctx, t, domain.SimilarityCosine)

	records := []domain.IndexedRecord{
		{ID: "a.txt_chunk_0", Content: "alpha", SourceFile: "a.txt", Embedding: []float32{1, 0, 0}},
		{ID: "a.txt_chunk_1", Content: "beta", SourceFile: "a.txt", Embedding: []float32{0, 1, 0}},
		{ID: "b.txt_chunk_0", Content: "gamma", SourceFile: "b.txt", Embedding: []float32{0.9, 0.1, 0}},
	}
	for _, r := range records {
		require.NoError(t, repo.Upsert(ctx, r))
	}

	results, err := repo.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.txt_chunk_0", results[0].Record.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "b.txt_chunk_0", results[1].Record.ID)
	assert.Equal(t, []float32{0.9, 0.1, 0}, results[1].Record.Embedding)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestVectorRepository_UpsertReplacesRecord(t *testing.T) {
	ctx := context.Background()
	repo := setupVectorRepository(ctx, t, domain.SimilarityCosine)

	require.NoError(t, repo.Upsert(ctx, domain.IndexedRecord{ID: "x", Content: "old", SourceFile: "x.txt", Embedding: []float32{1, 0, 0}}))
	require.NoError(t, repo.Upsert(ctx, domain.IndexedRecord{ID: "y", Content: "other", SourceFile: "y.txt", Embedding: []float32{1, 0, 0}}))
	require.NoError(t, repo.Upsert(ctx, domain.IndexedRecord{ID: "x", Content: "new", SourceFile: "x.txt", Embedding: []float32{1, 0, 0}}))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := repo.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// equal scores keep first-insert order
	assert.Equal(t, "x", results[0].Record.ID)
	assert.Equal(t, "new", results[0].Record.Content)
	assert.Equal(t, "y", results[1].Record.ID)
}

func TestVectorRepository_DotSimilarity(t *testing.T) {
	ctx := context.Background()
	repo := setupVectorRepository(ctx, t, domain.SimilarityDot)

	require.NoError(t, repo.Upsert(ctx, domain.IndexedRecord{ID: "small", Content: "s", Embedding: []float32{1, 0, 0}}))
	require.NoError(t, repo.Upsert(ctx, domain.IndexedRecord{ID: "large", Content: "l", Embedding: []float32{3, 0, 0}}))

	results, err := repo.Search(ctx, []float32{2, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "large", results[0].Record.ID)
	assert.InDelta(t, 6.0, results[0].Score, 1e-6)
	assert.InDelta(t, 2.0, results[1].Score, 1e-6)
}

func TestVectorRepository_NewInstanceStartsEmpty(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)
	pool := testutil.NewTestPool(ctx, t, pc)
	defer pool.Close()

	first, err := NewVectorRepository(pool, pc.ConnectionString(), 3, domain.SimilarityCosine)
	require.NoError(t, err)
	require.NoError(t, first.EnsureInitialized(ctx))
	require.NoError(t, first.Upsert(ctx, domain.IndexedRecord{ID: "a", Content: "a", Embedding: []float32{1, 0, 0}}))

	second, err := NewVectorRepository(pool, pc.ConnectionString(), 3, domain.SimilarityCosine)
	require.NoError(t, err)
	require.NoError(t, second.EnsureInitialized(ctx))

	n, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, testutil.TruncateAll(ctx, pool))
}
