package chunking

import (
	"context"

	"github.com/cloo-solutions/ragkit/internal/domain"
)

// Strategy names a chunking strategy.
type Strategy string

const (
	StrategyFixed    Strategy = "fixed"
	StrategySemantic Strategy = "semantic"
)

// Config controls how documents are chunked.
type Config struct {
	Strategy         Strategy
	ChunkSize        int
	Overlap          int
	SemanticMinChars int
	SemanticMaxChars int
}

// DefaultConfig provides the fixed-window defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:         StrategyFixed,
		ChunkSize:        DefaultChunkSize,
		Overlap:          DefaultOverlap,
		SemanticMinChars: DefaultSemanticMinChars,
		SemanticMaxChars: DefaultSemanticMaxChars,
	}
}

// Validate rejects configurations the selected strategy cannot run with.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyFixed:
		return validateWindow(c.ChunkSize, c.Overlap)
	case StrategySemantic:
		if c.SemanticMinChars <= 0 || c.SemanticMaxChars <= 0 || c.SemanticMinChars > c.SemanticMaxChars {
			return domain.NewConfigurationError("invalid semantic chunk range [%d, %d]", c.SemanticMinChars, c.SemanticMaxChars)
		}
		return nil
	default:
		return domain.NewConfigurationError("unknown chunk strategy %q", c.Strategy)
	}
}

// Engine turns documents into chunks with the configured strategy.
type Engine struct {
	cfg      Config
	semantic *SemanticChunker
}

// NewEngine validates cfg and creates an Engine. semantic is required only
// for the semantic strategy.
func NewEngine(cfg Config, semantic *SemanticChunker) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Strategy == StrategySemantic && semantic == nil {
		return nil, domain.NewConfigurationError("semantic chunk strategy requires a completion client")
	}
	return &Engine{cfg: cfg, semantic: semantic}, nil
}

// Kind returns the chunk id scheme of the configured strategy.
func (e *Engine) Kind() domain.ChunkKind {
	if e.cfg.Strategy == StrategySemantic {
		return domain.ChunkKindSemantic
	}
	return domain.ChunkKindFixed
}

// Chunk splits doc into ordered chunks.
func (e *Engine) Chunk(ctx context.Context, doc domain.Document) ([]domain.Chunk, error) {
	var (
		contents []string
		err      error
	)
	switch e.cfg.Strategy {
	case StrategySemantic:
		contents, err = e.semantic.Chunk(ctx, doc.Text, e.cfg.SemanticMinChars, e.cfg.SemanticMaxChars)
	default:
		contents, err = FixedWindow(doc.Text, e.cfg.ChunkSize, e.cfg.Overlap)
	}
	if err != nil {
		return nil, err
	}
	return domain.NewChunks(e.Kind(), doc.SourceFile, contents), nil
}
