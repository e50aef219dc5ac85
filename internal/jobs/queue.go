package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/ragkit/internal/domain"
)

// DefaultBatchSize is the number of jobs claimed per GetPendingJobs call.
const DefaultBatchSize = 10

// ErrJobNotFound is returned for an unknown job id.
var ErrJobNotFound = domain.NewDomainError(domain.ErrCodeValidation, "embedding job not found")

// MemoryQueue is an in-process JobStore. Jobs live as long as the process,
// like the index they feed.
type MemoryQueue struct {
	mu        sync.Mutex
	jobs      map[string]*domain.EmbeddingJob
	byChunk   map[string]string
	batchSize int
	now       func() time.Time
}

// NewMemoryQueue creates an empty queue. batchSize <= 0 uses DefaultBatchSize.
func NewMemoryQueue(batchSize int) *MemoryQueue {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &MemoryQueue{
		jobs:      make(map[string]*domain.EmbeddingJob),
		byChunk:   make(map[string]string),
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Enqueue adds a pending job for chunk. A chunk that already has an open
// job is refreshed instead of queued twice.
func (q *MemoryQueue) Enqueue(_ context.Context, chunk domain.Chunk, cause error) (*domain.EmbeddingJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id, ok := q.byChunk[chunk.ID]; ok {
		job := q.jobs[id]
		if job.Status == domain.EmbeddingJobStatusPending || job.Status == domain.EmbeddingJobStatusProcessing {
			job.Chunk = chunk
			if cause != nil {
				job.Error = cause.Error()
			}
			return copyJob(job), nil
		}
	}

	job := domain.NewEmbeddingJob(uuid.NewString(), chunk, cause, q.now())
	if err := domain.ValidateEmbeddingJob(job); err != nil {
		return nil, err
	}
	q.jobs[job.ID] = job
	q.byChunk[chunk.ID] = job.ID
	return copyJob(job), nil
}

// GetPendingJobs claims up to the batch size of pending jobs, oldest first,
// and marks them processing.
func (q *MemoryQueue) GetPendingJobs(context.Context) ([]*domain.EmbeddingJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []*domain.EmbeddingJob
	for _, job := range q.jobs {
		if job.Status == domain.EmbeddingJobStatusPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > q.batchSize {
		pending = pending[:q.batchSize]
	}

	claimed := make([]*domain.EmbeddingJob, 0, len(pending))
	for _, job := range pending {
		job.Status = domain.EmbeddingJobStatusProcessing
		claimed = append(claimed, copyJob(job))
	}
	return claimed, nil
}

// UpdateJobStatus updates the status of an embedding job
func (q *MemoryQueue) UpdateJobStatus(_ context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error {
	if !status.IsValid() {
		return domain.ErrInvalidEmbeddingJobStatus
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = status
	job.Error = errMsg
	if status == domain.EmbeddingJobStatusCompleted || status == domain.EmbeddingJobStatusFailed {
		processedAt := q.now()
		job.ProcessedAt = &processedAt
	}
	return nil
}

// Resolve marks the open job for chunkID completed. It is a no-op when the
// chunk has no open job.
func (q *MemoryQueue) Resolve(_ context.Context, chunkID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	id, ok := q.byChunk[chunkID]
	if !ok {
		return nil
	}
	job := q.jobs[id]
	if job.Status != domain.EmbeddingJobStatusPending && job.Status != domain.EmbeddingJobStatusProcessing {
		return nil
	}
	processedAt := q.now()
	job.Status = domain.EmbeddingJobStatusCompleted
	job.ProcessedAt = &processedAt
	return nil
}

// IncrementRetries increments the retry count for a job
func (q *MemoryQueue) IncrementRetries(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Retries++
	return nil
}

// Get returns a copy of the job with id.
func (q *MemoryQueue) Get(id string) (*domain.EmbeddingJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	return copyJob(job), true
}

// Stats counts jobs by status.
func (q *MemoryQueue) Stats() map[domain.EmbeddingJobStatus]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := make(map[domain.EmbeddingJobStatus]int, 4)
	for _, job := range q.jobs {
		stats[job.Status]++
	}
	return stats
}

func copyJob(job *domain.EmbeddingJob) *domain.EmbeddingJob {
	c := *job
	if job.ProcessedAt != nil {
		t := *job.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}
