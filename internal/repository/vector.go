// Package repository provides the PostgreSQL/pgvector vector index and the
// re-index job queue stored beside it.
package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/ragkit/internal/domain"
)

// resetSQL clears records and jobs left by an earlier process.
const resetSQL = `TRUNCATE TABLE indexed_records, embedding_jobs`

type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// VectorRepository stores indexed records in a pgvector table. The first
// EnsureInitialized of an instance applies migrations and clears records and
// jobs left by earlier processes, so every instance starts empty.
type VectorRepository struct {
	db          dbtx
	databaseURL string
	dimension   int
	similarity  domain.Similarity
	migrate     func(databaseURL string) (uint, error)

	mu          sync.RWMutex
	initialized bool
}

// NewVectorRepository creates a repository for vectors of the given
// dimension. databaseURL is used for migrations only.
func NewVectorRepository(pool *pgxpool.Pool, databaseURL string, dimension int, similarity domain.Similarity) (*VectorRepository, error) {
	return newVectorRepository(pool, databaseURL, dimension, similarity)
}

func newVectorRepository(db dbtx, databaseURL string, dimension int, similarity domain.Similarity) (*VectorRepository, error) {
	if dimension <= 0 {
		return nil, domain.NewConfigurationError("vector dimension must be positive, got %d", dimension)
	}
	if similarity == "" {
		similarity = domain.SimilarityCosine
	}
	if !similarity.IsValid() {
		return nil, domain.NewConfigurationError("unknown similarity %q", similarity)
	}
	return &VectorRepository{
		db:          db,
		databaseURL: databaseURL,
		dimension:   dimension,
		similarity:  similarity,
		migrate:     Migrate,
	}, nil
}

// Dimension returns the vector length accepted by the repository.
func (r *VectorRepository) Dimension() int {
	return r.dimension
}

// Similarity returns the scoring function of the repository.
func (r *VectorRepository) Similarity() domain.Similarity {
	return r.similarity
}

// EnsureInitialized migrates the schema and empties the table. Only the
// first successful call does any work.
func (r *VectorRepository) EnsureInitialized(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}
	if r.databaseURL != "" {
		if _, err := r.migrate(r.databaseURL); err != nil {
			return err
		}
	}
	if _, err := r.db.Exec(ctx, resetSQL); err != nil {
		return fmt.Errorf("failed to reset indexed records: %w", err)
	}
	r.initialized = true
	return nil
}

func (r *VectorRepository) ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// Upsert stores record, replacing any record with the same ID. A replaced
// record keeps its original position for tie-breaking.
func (r *VectorRepository) Upsert(ctx context.Context, record domain.IndexedRecord) error {
	if !r.ready() {
		return domain.ErrNotInitialized
	}
	if record.ID == "" || record.Content == "" {
		return domain.ErrMissingRequiredField
	}
	if len(record.Embedding) != r.dimension {
		return domain.NewDimensionMismatchError(r.dimension, len(record.Embedding))
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO indexed_records (id, content, source_file, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			source_file = EXCLUDED.source_file,
			embedding = EXCLUDED.embedding,
			updated_at = now()`,
		record.ID,
		record.Content,
		record.SourceFile,
		pgvector.NewVector(record.Embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", record.ID, err)
	}
	return nil
}

// Search returns up to k records ordered by descending score. Equal scores
// keep insertion order.
func (r *VectorRepository) Search(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	if !r.ready() {
		return nil, domain.ErrNotInitialized
	}
	if len(query) != r.dimension {
		return nil, domain.NewDimensionMismatchError(r.dimension, len(query))
	}
	if k <= 0 {
		return []domain.SearchResult{}, nil
	}

	rows, err := r.db.Query(ctx, searchSQL(r.similarity), pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	defer rows.Close()

	results := make([]domain.SearchResult, 0, k)
	for rows.Next() {
		var (
			res       domain.SearchResult
			embedding pgvector.Vector
		)
		if err := rows.Scan(&res.Record.ID, &res.Record.Content, &res.Record.SourceFile, &embedding, &res.Score); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		res.Record.Embedding = embedding.Slice()
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	return results, nil
}

// Count returns the number of stored records.
func (r *VectorRepository) Count(ctx context.Context) (int, error) {
	if !r.ready() {
		return 0, domain.ErrNotInitialized
	}
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM indexed_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// searchSQL orders by distance, which is the reverse of the reported score.
func searchSQL(s domain.Similarity) string {
	score, distance := "1 - (embedding <=> $1)", "embedding <=> $1"
	if s == domain.SimilarityDot {
		score, distance = "-(embedding <#> $1)", "embedding <#> $1"
	}
	return `SELECT id, content, source_file, embedding, ` + score + ` AS score
		FROM indexed_records
		ORDER BY ` + distance + `, seq
		LIMIT $2`
}
