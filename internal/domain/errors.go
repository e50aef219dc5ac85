package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, ErrDimensionMismatch) matches any dimension mismatch
// regardless of its message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Domain error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeIngestion          = "INGESTION_ERROR"
	ErrCodeNoChunksProduced   = "NO_CHUNKS_PRODUCED"
	ErrCodeEmbedding          = "EMBEDDING_ERROR"
	ErrCodeDimensionMismatch  = "DIMENSION_MISMATCH"
	ErrCodeNotInitialized     = "NOT_INITIALIZED"
	ErrCodeQueryAnalysisParse = "QUERY_ANALYSIS_PARSE_ERROR"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingRequiredField      = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery                = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidEmbeddingJobStatus = NewDomainError(ErrCodeValidation, "invalid embedding job status")
	ErrInvalidQueryType          = NewDomainError(ErrCodeValidation, "invalid query type")
)

// Pipeline errors. Use these as errors.Is targets; concrete errors carry
// details through NewDomainErrorWithCause.
var (
	ErrConfiguration      = NewDomainError(ErrCodeConfiguration, "invalid configuration")
	ErrIngestion          = NewDomainError(ErrCodeIngestion, "document ingestion failed")
	ErrNoChunksProduced   = NewDomainError(ErrCodeNoChunksProduced, "no chunks produced")
	ErrEmbedding          = NewDomainError(ErrCodeEmbedding, "embedding failed")
	ErrDimensionMismatch  = NewDomainError(ErrCodeDimensionMismatch, "vector dimension mismatch")
	ErrNotInitialized     = NewDomainError(ErrCodeNotInitialized, "vector index not initialized")
	ErrQueryAnalysisParse = NewDomainError(ErrCodeQueryAnalysisParse, "could not parse query analysis")
	ErrChunkSkipped       = NewDomainError(ErrCodeEmbedding, "skipped after an earlier chunk of the document failed")
)

// NewConfigurationError returns a configuration error with a formatted message.
func NewConfigurationError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeConfiguration, fmt.Sprintf(format, args...))
}

// NewDimensionMismatchError reports a vector whose length differs from the index dimension.
func NewDimensionMismatchError(expected, got int) *DomainError {
	return NewDomainError(ErrCodeDimensionMismatch, fmt.Sprintf("expected %d dimensions, got %d", expected, got))
}

// IsIndexContractViolation reports whether err must abort the calling
// operation instead of being collected per unit.
func IsIndexContractViolation(err error) bool {
	return errors.Is(err, ErrDimensionMismatch) || errors.Is(err, ErrNotInitialized)
}

// CodeOf returns the code of the outermost DomainError in err's chain, or
// ErrCodeInternalError when there is none.
func CodeOf(err error) string {
	if de, ok := asDomainError(err); ok {
		return de.Code
	}
	return ErrCodeInternalError
}

func asDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
