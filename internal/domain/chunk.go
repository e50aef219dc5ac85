package domain

import (
	"fmt"
	"strings"
)

// Document is the extracted text of one source file.
type Document struct {
	SourceFile string
	Text       string
}

// ChunkKind selects the id scheme of a chunk.
type ChunkKind string

const (
	ChunkKindFixed    ChunkKind = "fixed"
	ChunkKindSemantic ChunkKind = "semantic"
)

// Chunk is a contiguous, retrievable span of a document's text.
type Chunk struct {
	ID            string
	Content       string
	SourceFile    string
	SequenceIndex int
}

// ChunkID derives the identifier of the chunk at index within sourceFile.
func ChunkID(kind ChunkKind, sourceFile string, index int) string {
	if kind == ChunkKindSemantic {
		return fmt.Sprintf("%s_semantic_chunk_%d", sourceFile, index)
	}
	return fmt.Sprintf("%s_chunk_%d", sourceFile, index)
}

// NewChunks wraps ordered contents into chunks of sourceFile.
func NewChunks(kind ChunkKind, sourceFile string, contents []string) []Chunk {
	chunks := make([]Chunk, 0, len(contents))
	for _, content := range contents {
		i := len(chunks)
		chunks = append(chunks, Chunk{
			ID:            ChunkID(kind, sourceFile, i),
			Content:       content,
			SourceFile:    sourceFile,
			SequenceIndex: i,
		})
	}
	return chunks
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("chunk Content is required")
	}
	if c.SequenceIndex < 0 {
		return fmt.Errorf("chunk SequenceIndex cannot be negative")
	}
	return nil
}
