package chunking

import (
	"context"
	"strings"

	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/prompts"
)

// Delimiter separates chunks in the completion returned for semantic chunking.
const Delimiter = "---CHUNK---"

// Defaults for semantic chunking, in characters.
const (
	DefaultSemanticMinChars = 500
	DefaultSemanticMaxChars = 2000
)

// Completer sends a prompt to a text-understanding model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SemanticChunker asks a model to place chunk boundaries at topic changes.
type SemanticChunker struct {
	completer Completer
	prompts   *prompts.Store
}

// NewSemanticChunker creates a SemanticChunker. A nil store uses the built-in prompts.
func NewSemanticChunker(completer Completer, store *prompts.Store) *SemanticChunker {
	if store == nil {
		store = prompts.Default()
	}
	return &SemanticChunker{completer: completer, prompts: store}
}

// Chunk returns the segments the model produced for text. The size range is
// a hint to the model and is not enforced on the result.
func (c *SemanticChunker) Chunk(ctx context.Context, text string, minSize, maxSize int) ([]string, error) {
	if minSize <= 0 || maxSize <= 0 {
		return nil, domain.NewConfigurationError("semantic chunk sizes must be positive, got min %d max %d", minSize, maxSize)
	}
	if minSize > maxSize {
		return nil, domain.NewConfigurationError("semantic min size (%d) exceeds max size (%d)", minSize, maxSize)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prompt, err := c.prompts.Render(prompts.SemanticChunking, prompts.SemanticChunkingData{
		Text:      text,
		MinSize:   minSize,
		MaxSize:   maxSize,
		Delimiter: Delimiter,
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "semantic chunking prompt", err)
	}

	reply, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, "semantic chunking request failed", err)
	}

	segments := SplitSegments(reply)
	if len(segments) == 0 {
		return nil, domain.ErrNoChunksProduced
	}
	return segments, nil
}

// SplitSegments splits a delimited completion into trimmed, non-empty segments.
func SplitSegments(reply string) []string {
	parts := strings.Split(reply, Delimiter)
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
