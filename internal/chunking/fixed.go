// Package chunking splits document text into retrievable chunks.
package chunking

import (
	"strings"

	"github.com/cloo-solutions/ragkit/internal/domain"
)

// Defaults for fixed-window chunking, in characters.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// FixedWindow splits text into windows of chunkSize characters, each
// starting chunkSize-overlap characters after the previous one. Windows are
// trimmed and whitespace-only windows are dropped without changing the
// stepping. The last window is the first one that reaches the end of text.
func FixedWindow(text string, chunkSize, overlap int) ([]string, error) {
	if err := validateWindow(chunkSize, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	step := chunkSize - overlap
	chunks := make([]string, 0, len(runes)/step+1)

	for offset := 0; ; offset += step {
		end := offset + chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		if chunk := strings.TrimSpace(string(runes[offset:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}
	}

	return chunks, nil
}

func validateWindow(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return domain.NewConfigurationError("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return domain.NewConfigurationError("chunk overlap cannot be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return domain.NewConfigurationError("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, chunkSize)
	}
	return nil
}
