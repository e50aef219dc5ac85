package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/ragkit/internal/domain"
)

// DefaultClaimLimit is the number of jobs claimed per GetPendingJobs call.
const DefaultClaimLimit = 100

var ErrEmbeddingJobNotFound = domain.NewDomainError(domain.ErrCodeValidation, "embedding job not found")

const jobColumns = `id, chunk_id, source_file, content, sequence_index, status, retries, error, created_at, processed_at`

// EmbeddingJobRepository is the re-index queue of the pgvector backend.
// Its table is created by the vector repository's migrations and cleared
// with the index.
type EmbeddingJobRepository struct {
	db         dbtx
	claimLimit int
	now        func() time.Time
}

func NewEmbeddingJobRepository(pool *pgxpool.Pool) *EmbeddingJobRepository {
	return newEmbeddingJobRepository(pool)
}

func newEmbeddingJobRepository(db dbtx) *EmbeddingJobRepository {
	return &EmbeddingJobRepository{
		db:         db,
		claimLimit: DefaultClaimLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue adds a pending job for chunk. A chunk that already has an open
// job is refreshed instead of queued twice.
func (r *EmbeddingJobRepository) Enqueue(ctx context.Context, chunk domain.Chunk, cause error) (*domain.EmbeddingJob, error) {
	job := domain.NewEmbeddingJob(uuid.NewString(), chunk, cause, r.now())
	if err := domain.ValidateEmbeddingJob(job); err != nil {
		return nil, err
	}

	var errMsg *string
	if job.Error != "" {
		errMsg = &job.Error
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO embedding_jobs (id, chunk_id, source_file, content, sequence_index, status, retries, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
		 ON CONFLICT (chunk_id) WHERE status IN ('pending', 'processing')
		 DO UPDATE SET content = EXCLUDED.content,
		               source_file = EXCLUDED.source_file,
		               sequence_index = EXCLUDED.sequence_index,
		               error = COALESCE(EXCLUDED.error, embedding_jobs.error)
		 RETURNING `+jobColumns,
		job.ID, chunk.ID, chunk.SourceFile, chunk.Content, chunk.SequenceIndex, job.Status, errMsg, job.CreatedAt,
	)
	stored, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job for %s: %w", chunk.ID, err)
	}
	return stored, nil
}

func (r *EmbeddingJobRepository) GetByID(ctx context.Context, id string) (*domain.EmbeddingJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM embedding_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmbeddingJobNotFound
	}
	return job, err
}

// ClaimPending marks up to limit pending jobs processing, oldest first, and
// returns them. Concurrent claimers never receive the same job.
func (r *EmbeddingJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error) {
	if limit <= 0 {
		limit = DefaultClaimLimit
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM embedding_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC, id ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE embedding_jobs
		 SET status = $3,
		     processed_at = NULL
		 FROM cte
		 WHERE embedding_jobs.id = cte.id
		 RETURNING embedding_jobs.id, embedding_jobs.chunk_id, embedding_jobs.source_file, embedding_jobs.content,
		           embedding_jobs.sequence_index, embedding_jobs.status, embedding_jobs.retries, embedding_jobs.error,
		           embedding_jobs.created_at, embedding_jobs.processed_at`,
		domain.EmbeddingJobStatusPending, limit, domain.EmbeddingJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.EmbeddingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *EmbeddingJobRepository) UpdateStatus(ctx context.Context, id string, status domain.EmbeddingJobStatus, errMsg string) error {
	if !status.IsValid() {
		return domain.ErrInvalidEmbeddingJobStatus
	}

	var processedAt *time.Time
	if status == domain.EmbeddingJobStatusCompleted || status == domain.EmbeddingJobStatusFailed {
		now := r.now()
		processedAt = &now
	}

	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE embedding_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, errPtr, processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrEmbeddingJobNotFound
	}
	return nil
}

// Resolve completes the open job for chunkID, if any.
func (r *EmbeddingJobRepository) Resolve(ctx context.Context, chunkID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE embedding_jobs SET status = $1, processed_at = $2
		 WHERE chunk_id = $3 AND status IN ('pending', 'processing')`,
		domain.EmbeddingJobStatusCompleted, r.now(), chunkID,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve embedding job for %s: %w", chunkID, err)
	}
	return nil
}

func (r *EmbeddingJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE embedding_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrEmbeddingJobNotFound
	}
	return nil
}

// GetPendingJobs implements jobs.JobStore.
func (r *EmbeddingJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.EmbeddingJob, error) {
	return r.ClaimPending(ctx, r.claimLimit)
}

// UpdateJobStatus implements jobs.JobStore.
func (r *EmbeddingJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error {
	return r.UpdateStatus(ctx, jobID, status, errMsg)
}

func scanJob(row pgx.Row) (*domain.EmbeddingJob, error) {
	var job domain.EmbeddingJob
	var errMsg pgtype.Text
	var sequence int32
	if err := row.Scan(
		&job.ID, &job.Chunk.ID, &job.Chunk.SourceFile, &job.Chunk.Content, &sequence,
		&job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt,
	); err != nil {
		return nil, err
	}
	job.Chunk.SequenceIndex = int(sequence)
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}
