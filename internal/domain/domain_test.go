package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkID(t *testing.T) {
	assert.Equal(t, "notes/a.txt_chunk_3", ChunkID(ChunkKindFixed, "notes/a.txt", 3))
	assert.Equal(t, "a.txt_semantic_chunk_0", ChunkID(ChunkKindSemantic, "a.txt", 0))
}

func TestNewChunks(t *testing.T) {
	chunks := NewChunks(ChunkKindFixed, "a.txt", []string{"one", "two"})

	require.Len(t, chunks, 2)
	assert.Equal(t, Chunk{ID: "a.txt_chunk_0", Content: "one", SourceFile: "a.txt", SequenceIndex: 0}, chunks[0])
	assert.Equal(t, Chunk{ID: "a.txt_chunk_1", Content: "two", SourceFile: "a.txt", SequenceIndex: 1}, chunks[1])
}

func TestValidateChunk(t *testing.T) {
	assert.NoError(t, ValidateChunk(&Chunk{ID: "x", Content: "text"}))
	assert.Error(t, ValidateChunk(nil))
	assert.Error(t, ValidateChunk(&Chunk{Content: "text"}))
	assert.Error(t, ValidateChunk(&Chunk{ID: "x", Content: "  \n"}))
	assert.Error(t, ValidateChunk(&Chunk{ID: "x", Content: "text", SequenceIndex: -1}))
}

func TestParseQueryType(t *testing.T) {
	tests := []struct {
		input    string
		expected QueryType
		wantErr  bool
	}{
		{"Factual", QueryTypeFactual, false},
		{"factual", QueryTypeFactual, false},
		{" SMALLTALK ", QueryTypeSmallTalk, false},
		{"ambiguous", QueryTypeAmbiguous, false},
		{"small talk", "", true},
		{"", "", true},
		{"Unknown", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseQueryType(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQueryType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQueryType_IsValid(t *testing.T) {
	for _, qt := range QueryTypes {
		assert.True(t, qt.IsValid())
	}
	assert.False(t, QueryType("Other").IsValid())
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("upsert: %w", NewDimensionMismatchError(3, 2))

	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.NotErrorIs(t, err, ErrNotInitialized)
	assert.True(t, IsIndexContractViolation(err))
	assert.True(t, IsIndexContractViolation(ErrNotInitialized))
	assert.False(t, IsIndexContractViolation(ErrEmbedding))
	assert.False(t, IsIndexContractViolation(errors.New("plain")))
}

func TestDomainError_Error(t *testing.T) {
	assert.Equal(t, "[NOT_INITIALIZED] vector index not initialized", ErrNotInitialized.Error())

	wrapped := NewDomainErrorWithCause(ErrCodeEmbedding, "embed chunk a_chunk_0", errors.New("timeout"))
	assert.Equal(t, "[EMBEDDING_ERROR] embed chunk a_chunk_0: timeout", wrapped.Error())
	assert.Equal(t, "timeout", errors.Unwrap(wrapped).Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeConfiguration, CodeOf(fmt.Errorf("load: %w", NewConfigurationError("overlap %d", 5))))
	assert.Equal(t, ErrCodeInternalError, CodeOf(errors.New("boom")))
}

func TestIngestReport_FailedDocuments(t *testing.T) {
	report := &IngestReport{
		Failures: []IngestFailure{
			{SourceFile: "a.txt", ChunkID: "a.txt_chunk_0"},
			{SourceFile: "a.txt", ChunkID: "a.txt_chunk_1", Skipped: true, Err: ErrChunkSkipped},
			{SourceFile: "b.txt"},
		},
	}
	assert.Equal(t, 2, report.FailedDocuments())
	assert.Equal(t, 1, report.SkippedChunks())
	assert.ErrorIs(t, report.Failures[1].Err, ErrEmbedding)

	report.Merge(&IngestReport{Documents: 1, Chunks: 2, Indexed: 2})
	report.Merge(nil)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 2, report.Indexed)
	assert.Len(t, report.Failures, 3)
}
