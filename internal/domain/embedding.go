package domain

import (
	"fmt"
	"time"
)

// EmbeddingJobStatus represents the status of an embedding job
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

// EmbeddingJob re-indexes a chunk whose embedding failed during ingestion.
type EmbeddingJob struct {
	ID          string
	Chunk       Chunk
	Status      EmbeddingJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewEmbeddingJob creates a pending EmbeddingJob for chunk
func NewEmbeddingJob(id string, chunk Chunk, cause error, createdAt time.Time) *EmbeddingJob {
	job := &EmbeddingJob{
		ID:        id,
		Chunk:     chunk,
		Status:    EmbeddingJobStatusPending,
		CreatedAt: createdAt,
	}
	if cause != nil {
		job.Error = cause.Error()
	}
	return job
}

// ValidateEmbeddingJob validates an EmbeddingJob instance
func ValidateEmbeddingJob(j *EmbeddingJob) error {
	if j == nil {
		return fmt.Errorf("embedding job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("embedding job ID is required")
	}

	if err := ValidateChunk(&j.Chunk); err != nil {
		return fmt.Errorf("embedding job Chunk is invalid: %w", err)
	}

	if !isValidEmbeddingJobStatus(j.Status) {
		return fmt.Errorf("embedding job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("embedding job Retries cannot be negative")
	}

	return nil
}

// isValidEmbeddingJobStatus checks if an EmbeddingJobStatus is valid
func isValidEmbeddingJobStatus(s EmbeddingJobStatus) bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusProcessing,
		EmbeddingJobStatusCompleted, EmbeddingJobStatusFailed:
		return true
	}
	return false
}

// IsValid checks if the status is one of the known job states
func (s EmbeddingJobStatus) IsValid() bool {
	return isValidEmbeddingJobStatus(s)
}
