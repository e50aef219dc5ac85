package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/index"
	"github.com/cloo-solutions/ragkit/internal/report"
	"github.com/cloo-solutions/ragkit/internal/service"
)

type singleChunker struct{}

func (singleChunker) Chunk(_ context.Context, doc domain.Document) ([]domain.Chunk, error) {
	return domain.NewChunks(domain.ChunkKindFixed, doc.SourceFile, []string{doc.Text}), nil
}

// flakyEmbedder fails every call while down is set.
type flakyEmbedder struct {
	down atomic.Bool
}

func (e *flakyEmbedder) GenerateEmbedding(context.Context, string) ([]float32, error) {
	if e.down.Load() {
		return nil, errors.New("rate limited")
	}
	return []float32{1, 0}, nil
}

func TestReindexWorker_KeepsNewerContent(t *testing.T) {
	ctx := context.Background()
	idx, err := index.NewMemoryIndex(2, domain.SimilarityCosine)
	require.NoError(t, err)
	require.NoError(t, idx.EnsureInitialized(ctx))

	queue := NewMemoryQueue(0)
	embedder := &flakyEmbedder{}
	svc, err := service.NewRetrievalServiceWithOptions(singleChunker{}, embedder, idx, nil, service.Options{
		Concurrency: 1,
		Sink:        report.Discard,
		Queue:       queue,
	})
	require.NoError(t, err)

	embedder.down.Store(true)
	first, err := svc.Ingest(ctx, []domain.Document{{SourceFile: "cocoa.md", Text: "old version"}})
	require.NoError(t, err)
	require.Len(t, first.Failures, 1)
	assert.Equal(t, 1, queue.Stats()[domain.EmbeddingJobStatusPending])

	embedder.down.Store(false)
	second, err := svc.Ingest(ctx, []domain.Document{{SourceFile: "cocoa.md", Text: "new version"}})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Indexed)
	assert.Zero(t, queue.Stats()[domain.EmbeddingJobStatusPending])

	worker := NewReindexWorker(queue, svc, nil)
	require.NoError(t, worker.ProcessJobs(ctx))

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new version", results[0].Record.Content)
	assert.Equal(t, 1, queue.Stats()[domain.EmbeddingJobStatusCompleted])
}

func TestMemoryQueue_Resolve(t *testing.T) {
	ctx := context.Background()
	queue := NewMemoryQueue(0)

	require.NoError(t, queue.Resolve(ctx, "unknown.md_chunk_0"))

	job, err := queue.Enqueue(ctx, testChunk(0), errors.New("timeout"))
	require.NoError(t, err)
	require.NoError(t, queue.Resolve(ctx, testChunk(0).ID))

	got, ok := queue.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, domain.EmbeddingJobStatusCompleted, got.Status)
	require.NotNil(t, got.ProcessedAt)

	claimed, err := queue.GetPendingJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	// a failed job stays failed
	failed, err := queue.Enqueue(ctx, testChunk(1), errors.New("timeout"))
	require.NoError(t, err)
	require.NoError(t, queue.UpdateJobStatus(ctx, failed.ID, domain.EmbeddingJobStatusFailed, "gave up"))
	require.NoError(t, queue.Resolve(ctx, testChunk(1).ID))
	got, _ = queue.Get(failed.ID)
	assert.Equal(t, domain.EmbeddingJobStatusFailed, got.Status)
}
