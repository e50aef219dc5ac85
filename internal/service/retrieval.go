package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/report"
	"github.com/cloo-solutions/ragkit/internal/telemetry"
)

const (
	// DefaultSearchLimit is the number of results returned when no limit is given.
	DefaultSearchLimit = 5
	// DefaultConcurrency bounds in-flight chunking and embedding calls.
	DefaultConcurrency = 8
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores embedded chunks and answers similarity queries.
type VectorIndex interface {
	EnsureInitialized(ctx context.Context) error
	Upsert(ctx context.Context, record domain.IndexedRecord) error
	Search(ctx context.Context, embedding []float32, k int) ([]domain.SearchResult, error)
	Count(ctx context.Context) (int, error)
}

// Chunker splits a document into chunks.
type Chunker interface {
	Chunk(ctx context.Context, doc domain.Document) ([]domain.Chunk, error)
}

// QueryAnalyzer classifies and rewrites queries.
type QueryAnalyzer interface {
	Analyze(ctx context.Context, query string) (*domain.QueryAnalysis, error)
	RewriteWithAnalysis(ctx context.Context, query string, analysis *domain.QueryAnalysis) (string, error)
}

// DocumentSource lists and reads the documents of one location.
type DocumentSource interface {
	Name() string
	ListDocuments(ctx context.Context) ([]string, error)
	ReadDocument(ctx context.Context, name string) (domain.Document, error)
}

// JobQueue receives chunks that could not be indexed for a later retry.
// Resolve closes the open job for a chunk that has since been indexed.
type JobQueue interface {
	Enqueue(ctx context.Context, chunk domain.Chunk, cause error) (*domain.EmbeddingJob, error)
	Resolve(ctx context.Context, chunkID string) error
}

// Options controls RetrievalService behavior.
type Options struct {
	// Concurrency bounds in-flight chunking and embedding calls.
	Concurrency int
	// SearchLimit is used when a caller passes k <= 0.
	SearchLimit int
	Sink        report.Sink
	// Queue is optional; failed chunks are dropped from retry when nil.
	Queue JobQueue
}

// DefaultOptions returns the default service options.
func DefaultOptions() Options {
	return Options{
		Concurrency: DefaultConcurrency,
		SearchLimit: DefaultSearchLimit,
		Sink:        report.Discard,
	}
}

// RetrieveOutput is the result of a full retrieval.
type RetrieveOutput struct {
	Analysis       *domain.QueryAnalysis
	RewrittenQuery string
	Results        []domain.SearchResult
}

// RetrievalService coordinates ingestion and retrieval over a vector index.
type RetrievalService struct {
	chunker  Chunker
	embedder EmbeddingClient
	index    VectorIndex
	analyzer QueryAnalyzer
	opts     Options
}

// NewRetrievalService creates a RetrievalService with default options.
func NewRetrievalService(chunker Chunker, embedder EmbeddingClient, index VectorIndex, analyzer QueryAnalyzer) *RetrievalService {
	svc, _ := NewRetrievalServiceWithOptions(chunker, embedder, index, analyzer, DefaultOptions())
	return svc
}

// NewRetrievalServiceWithOptions creates a RetrievalService with explicit options.
func NewRetrievalServiceWithOptions(
	chunker Chunker,
	embedder EmbeddingClient,
	index VectorIndex,
	analyzer QueryAnalyzer,
	opts Options,
) (*RetrievalService, error) {
	if opts.Concurrency < 1 {
		return nil, domain.NewConfigurationError("concurrency must be at least 1, got %d", opts.Concurrency)
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.Sink == nil {
		opts.Sink = report.Discard
	}

	return &RetrievalService{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		analyzer: analyzer,
		opts:     opts,
	}, nil
}

// Initialize prepares the index for use. It is safe to call more than once.
func (s *RetrievalService) Initialize(ctx context.Context) error {
	return s.index.EnsureInitialized(ctx)
}

// Count returns the number of indexed records.
func (s *RetrievalService) Count(ctx context.Context) (int, error) {
	return s.index.Count(ctx)
}

// AnalyzeQuery classifies query without searching.
func (s *RetrievalService) AnalyzeQuery(ctx context.Context, query string) (*domain.QueryAnalysis, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.AnalyzeQuery", telemetry.SpanAttributes{
		Query:     query,
		Operation: "analyze",
	})
	defer span.End()

	analysis, err := s.analyzer.Analyze(ctx, query)
	if err != nil {
		s.emit(ctx, report.Failure(report.StageQuery, "", "", err))
		return nil, err
	}
	return analysis, nil
}

// Retrieve analyzes and rewrites query, then searches with the rewritten form.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) (*RetrieveOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		Query:     query,
		Limit:     k,
		Operation: "retrieve",
	})
	defer span.End()

	analysis, err := s.AnalyzeQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	rewritten, err := s.analyzer.RewriteWithAnalysis(ctx, query, analysis)
	if err != nil {
		s.emit(ctx, report.Failure(report.StageQuery, "", "", err))
		return nil, err
	}
	span.SetData("query_type", string(analysis.Type))

	results, err := s.searchText(ctx, rewritten, k)
	if err != nil {
		return nil, err
	}

	return &RetrieveOutput{
		Analysis:       analysis,
		RewrittenQuery: rewritten,
		Results:        results,
	}, nil
}

// Search embeds the raw query and returns its nearest chunks, skipping
// analysis and rewriting. A blank query yields no results.
func (s *RetrievalService) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Search", telemetry.SpanAttributes{
		Query:     query,
		Limit:     k,
		Operation: "search",
	})
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return []domain.SearchResult{}, nil
	}
	return s.searchText(ctx, query, k)
}

func (s *RetrievalService) searchText(ctx context.Context, text string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = s.opts.SearchLimit
	}

	embedding, err := s.embed(ctx, text)
	if err != nil {
		s.emit(ctx, report.Failure(report.StageQuery, "", "", err))
		return nil, err
	}

	results, err := s.index.Search(ctx, embedding, k)
	if err != nil {
		s.emit(ctx, report.Failure(report.StageQuery, "", "", err))
		return nil, err
	}

	s.emit(ctx, report.Event{Level: report.LevelInfo, Stage: report.StageQuery, Count: len(results), Message: "search completed"})
	return results, nil
}

// IndexChunk embeds chunk and upserts it into the index.
func (s *RetrievalService) IndexChunk(ctx context.Context, chunk domain.Chunk) error {
	if err := domain.ValidateChunk(&chunk); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid chunk", err)
	}

	embedding, err := s.embed(ctx, chunk.Content)
	if err != nil {
		return err
	}

	if err := s.index.Upsert(ctx, domain.NewIndexedRecord(chunk, embedding)); err != nil {
		if domain.IsIndexContractViolation(err) {
			return err
		}
		return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
	}
	return nil
}

func (s *RetrievalService) embed(ctx context.Context, text string) ([]float32, error) {
	embedding, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "failed to generate embedding", err)
	}
	return embedding, nil
}

func (s *RetrievalService) emit(ctx context.Context, e report.Event) {
	s.opts.Sink.Emit(ctx, e)
}
