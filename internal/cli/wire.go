package cli

import (
	"context"
	"fmt"
	"log"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/ragkit/internal/chunking"
	"github.com/cloo-solutions/ragkit/internal/config"
	"github.com/cloo-solutions/ragkit/internal/database"
	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/index"
	"github.com/cloo-solutions/ragkit/internal/jobs"
	"github.com/cloo-solutions/ragkit/internal/openai"
	"github.com/cloo-solutions/ragkit/internal/prompts"
	"github.com/cloo-solutions/ragkit/internal/query"
	"github.com/cloo-solutions/ragkit/internal/report"
	"github.com/cloo-solutions/ragkit/internal/repository"
	"github.com/cloo-solutions/ragkit/internal/service"
	"github.com/cloo-solutions/ragkit/internal/source"
	"github.com/cloo-solutions/ragkit/internal/storage"
)

// JobQueue holds chunks that failed to index until the re-index worker
// retries them.
type JobQueue interface {
	jobs.JobStore
	service.JobQueue
}

// Pipeline is a RetrievalService wired from config together with the
// collaborators the commands need around it.
type Pipeline struct {
	Service *service.RetrievalService
	Source  service.DocumentSource
	// Files is set when documents come from a local directory.
	Files *source.FilesystemSource
	Queue JobQueue
	Sink  report.Sink

	closers []func()
}

// Close releases connections opened by BuildPipeline.
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}

// BuildPipeline validates cfg and wires the retrieval pipeline. Events are
// written as JSON lines to logger and forwarded to Sentry. The index is
// initialized before returning. The pgvector backend keeps its re-index
// queue in Postgres; the memory backend keeps it in process.
func BuildPipeline(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.HasOpenAI() {
		return nil, domain.NewConfigurationError("RAGKIT_OPENAI_API_KEY is required")
	}

	store := prompts.Default()
	if cfg.PromptsFile != "" {
		loaded, err := prompts.Load(cfg.PromptsFile)
		if err != nil {
			return nil, domain.NewConfigurationError("failed to load prompts: %v", err)
		}
		store = loaded
	}

	client := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
		RequestsPerSecond:   cfg.RequestsPerSecond,
		RequestBurst:        cfg.RequestBurst,
	})

	var semantic *chunking.SemanticChunker
	if chunking.Strategy(cfg.ChunkStrategy) == chunking.StrategySemantic {
		semantic = chunking.NewSemanticChunker(client, store)
	}
	engine, err := chunking.NewEngine(cfg.Chunking(), semantic)
	if err != nil {
		return nil, err
	}

	minLevel := report.LevelWarn
	if cfg.Debug {
		minLevel = report.LevelInfo
	}
	if logger == nil {
		logger = log.Default()
	}
	sink := report.Multi{report.NewLogSink(logger, minLevel), report.NewSentrySink()}

	p := &Pipeline{Sink: sink}

	idx, err := buildIndex(ctx, cfg, client.Dimensions(), p)
	if err != nil {
		p.Close()
		return nil, err
	}

	if err := buildSource(ctx, cfg, p); err != nil {
		p.Close()
		return nil, err
	}

	svc, err := service.NewRetrievalServiceWithOptions(
		engine,
		client,
		idx,
		query.NewAnalyzer(client, store, cfg.DomainContext),
		service.Options{
			Concurrency: cfg.Concurrency,
			SearchLimit: cfg.SearchLimit,
			Sink:        sink,
			Queue:       p.Queue,
		},
	)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := svc.Initialize(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to initialize index: %w", err)
	}
	p.Service = svc

	return p, nil
}

func buildIndex(ctx context.Context, cfg *config.Config, dimension int, p *Pipeline) (service.VectorIndex, error) {
	similarity := domain.Similarity(cfg.Similarity)
	if cfg.IndexBackend != config.BackendPGVector {
		p.Queue = jobs.NewMemoryQueue(jobs.DefaultBatchSize)
		return index.NewMemoryIndex(dimension, similarity)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	p.closers = append(p.closers, pool.Close)
	p.Queue = repository.NewEmbeddingJobRepository(pool)

	return repository.NewVectorRepository(pool, cfg.DatabaseURL, dimension, similarity)
}

func buildSource(ctx context.Context, cfg *config.Config, p *Pipeline) error {
	if !cfg.HasS3() {
		p.Files = source.NewFilesystemSource(cfg.DocumentsDir, cfg.DocumentExtensions, nil)
		p.Source = p.Files
		return nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	p.Source = source.NewS3Source(s3Client, cfg.S3Prefix, cfg.DocumentExtensions, nil)
	return nil
}
