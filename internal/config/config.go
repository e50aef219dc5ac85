package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloo-solutions/ragkit/internal/chunking"
	"github.com/cloo-solutions/ragkit/internal/domain"
)

// Index backends.
const (
	BackendMemory   = "memory"
	BackendPGVector = "pgvector"
)

// DefaultEnvironment is the environment name used for local development.
const DefaultEnvironment = "development"

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DocumentsDir       string   `envconfig:"DOCUMENTS_DIR" default:"Documents"`
	DocumentExtensions []string `envconfig:"DOCUMENT_EXTENSIONS" default:".txt,.md,.markdown"`

	ChunkStrategy    string `envconfig:"CHUNK_STRATEGY" default:"fixed"`
	ChunkSize        int    `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap     int    `envconfig:"CHUNK_OVERLAP" default:"200"`
	SemanticMinChars int    `envconfig:"SEMANTIC_MIN_CHARS" default:"500"`
	SemanticMaxChars int    `envconfig:"SEMANTIC_MAX_CHARS" default:"2000"`

	Concurrency       int     `envconfig:"CONCURRENCY" default:"8"`
	RequestsPerSecond float64 `envconfig:"REQUESTS_PER_SECOND" default:"0"`
	RequestBurst      int     `envconfig:"REQUEST_BURST" default:"1"`
	SearchLimit       int     `envconfig:"SEARCH_LIMIT" default:"5"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	Similarity   string `envconfig:"SIMILARITY" default:"cosine"`
	IndexBackend string `envconfig:"INDEX_BACKEND" default:"memory"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DBMaxConns   int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Prefix    string `envconfig:"S3_PREFIX"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	PromptsFile   string `envconfig:"PROMPTS_FILE"`
	DomainContext string `envconfig:"DOMAIN_CONTEXT"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	ReindexInterval time.Duration `envconfig:"REINDEX_INTERVAL" default:"30s"`
	Watch           bool          `envconfig:"WATCH" default:"false"`
	APIURL          string        `envconfig:"API_URL"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RAGKIT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Chunking returns the chunking engine configuration.
func (c *Config) Chunking() chunking.Config {
	return chunking.Config{
		Strategy:         chunking.Strategy(c.ChunkStrategy),
		ChunkSize:        c.ChunkSize,
		Overlap:          c.ChunkOverlap,
		SemanticMinChars: c.SemanticMinChars,
		SemanticMaxChars: c.SemanticMaxChars,
	}
}

// Validate reports the first setting the pipeline cannot start with.
func (c *Config) Validate() error {
	if err := c.Chunking().Validate(); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return domain.NewConfigurationError("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.SearchLimit < 1 {
		return domain.NewConfigurationError("search limit must be at least 1, got %d", c.SearchLimit)
	}
	if c.EmbeddingDimensions <= 0 {
		return domain.NewConfigurationError("embedding dimensions must be positive, got %d", c.EmbeddingDimensions)
	}
	if c.RequestsPerSecond < 0 {
		return domain.NewConfigurationError("requests per second cannot be negative")
	}
	if !domain.Similarity(c.Similarity).IsValid() {
		return domain.NewConfigurationError("unknown similarity %q", c.Similarity)
	}
	switch c.IndexBackend {
	case BackendMemory:
	case BackendPGVector:
		if !c.HasDatabase() {
			return domain.NewConfigurationError("index backend %q requires RAGKIT_DATABASE_URL", c.IndexBackend)
		}
	default:
		return domain.NewConfigurationError("unknown index backend %q", c.IndexBackend)
	}
	if c.S3Bucket != "" && !c.HasS3() {
		return domain.NewConfigurationError("s3 bucket %q requires endpoint and credentials", c.S3Bucket)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != "" && c.S3Bucket != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

// IsRemote reports whether the CLI should call a running daemon instead of
// building a local pipeline.
func (c *Config) IsRemote() bool {
	return c.APIURL != ""
}
