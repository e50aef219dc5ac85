package jobs

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/report"
)

const (
	// MaxRetries is the maximum number of attempts for a failed job
	MaxRetries = 3
)

// JobStore defines the interface for embedding job persistence
type JobStore interface {
	// GetPendingJobs retrieves and claims pending embedding jobs
	GetPendingJobs(ctx context.Context) ([]*domain.EmbeddingJob, error)

	// UpdateJobStatus updates the status of an embedding job
	UpdateJobStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// ChunkIndexer embeds a chunk and writes it to the index.
type ChunkIndexer interface {
	IndexChunk(ctx context.Context, chunk domain.Chunk) error
}

// ReindexWorker retries chunks that failed to index during ingestion.
type ReindexWorker struct {
	store   JobStore
	indexer ChunkIndexer
	sink    report.Sink
}

// NewReindexWorker creates a new ReindexWorker instance
func NewReindexWorker(store JobStore, indexer ChunkIndexer, sink report.Sink) *ReindexWorker {
	if sink == nil {
		sink = report.Discard
	}
	return &ReindexWorker{
		store:   store,
		indexer: indexer,
		sink:    sink,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *ReindexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.store.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.sink.Emit(ctx, report.Event{Level: report.LevelInfo, Stage: report.StageReindex, Count: len(jobs), Message: "processing pending re-index jobs"})

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			w.sink.Emit(ctx, report.Failure(report.StageReindex, job.Chunk.SourceFile, job.Chunk.ID, err))
		}
	}

	return nil
}

func (w *ReindexWorker) processJob(ctx context.Context, job *domain.EmbeddingJob) error {
	if job.Chunk.ID == "" {
		return fmt.Errorf("job %s has no chunk", job.ID)
	}

	if err := w.indexer.IndexChunk(ctx, job.Chunk); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.store.UpdateJobStatus(ctx, job.ID, domain.EmbeddingJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	w.sink.Emit(ctx, report.Event{Level: report.LevelInfo, Stage: report.StageReindex, Document: job.Chunk.SourceFile, ChunkID: job.Chunk.ID, Message: "chunk re-indexed"})
	return nil
}

// handleJobFailure handles a failed job with retry logic. Index contract
// violations are not retried.
func (w *ReindexWorker) handleJobFailure(ctx context.Context, job *domain.EmbeddingJob, jobErr error) error {
	w.sink.Emit(ctx, report.Event{Level: report.LevelWarn, Stage: report.StageReindex, Document: job.Chunk.SourceFile, ChunkID: job.Chunk.ID, Err: jobErr})

	if err := w.store.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if domain.IsIndexContractViolation(jobErr) || job.Retries+1 >= MaxRetries {
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if domain.IsIndexContractViolation(jobErr) {
			errMsg = fmt.Sprintf("not retryable: %v", jobErr)
		}
		if err := w.store.UpdateJobStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.store.UpdateJobStatus(ctx, job.ID, domain.EmbeddingJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
