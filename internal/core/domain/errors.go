package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPermissionDenied indicates access to another owner's entity.
	ErrPermissionDenied = errors.New("not enough permissions")

	// ErrUnsupportedFileType indicates a file kind outside pdf, txt, docx and md.
	ErrUnsupportedFileType = errors.New("file type not supported")

	// ErrExtractionFailed indicates text could not be extracted from a file.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrDocumentsNotReady indicates requested documents are missing or not yet indexed.
	ErrDocumentsNotReady = errors.New("one or more documents are not found or not processed")

	// ErrMessageFinalized indicates an attempt to finalize a message twice.
	ErrMessageFinalized = errors.New("message already finalized")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Provider Errors. A *ProviderError matches one of these with errors.Is.

	// ErrEmbeddingProvider indicates a failed call to the embedding provider.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrLLMProvider indicates a failed call to the language model provider.
	ErrLLMProvider = errors.New("LLM provider error")
)

// ProviderSource identifies which AI capability failed.
type ProviderSource string

// Provider sources.
const (
	ProviderEmbedding ProviderSource = "embedding"
	ProviderLLM       ProviderSource = "llm"
)

// FailureKind classifies a provider failure.
type FailureKind string

// Failure kinds.
const (
	FailureConnection FailureKind = "connection"
	FailureTimeout    FailureKind = "timeout"
	FailureGeneric    FailureKind = "generic"
)

// ProviderError is a classified failure of an embedding or LLM provider.
type ProviderError struct {
	Source ProviderSource
	Kind   FailureKind
	Err    error
}

// NewProviderError builds a provider error of an explicit kind.
func NewProviderError(source ProviderSource, kind FailureKind, err error) *ProviderError {
	return &ProviderError{Source: source, Kind: kind, Err: err}
}

// Error implements error.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider %s failure: %v", e.Source, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's source.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrEmbeddingProvider:
		return e.Source == ProviderEmbedding
	case ErrLLMProvider:
		return e.Source == ProviderLLM
	default:
		return false
	}
}

// WrapProviderError classifies err and wraps it as a ProviderError.
// Returns nil for a nil error and err unchanged if it is already a ProviderError.
func WrapProviderError(source ProviderSource, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Source: source, Kind: ClassifyFailure(err), Err: err}
}

// ClassifyFailure decides whether err is a connection failure, a timeout or something else.
func ClassifyFailure(err error) FailureKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureConnection
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return FailureConnection
	}
	return FailureGeneric
}

// ApologyFor returns the assistant text written after a query failed with err.
func ApologyFor(err error) string {
	switch ClassifyFailure(err) {
	case FailureConnection:
		return ConnectionApology
	case FailureTimeout:
		return TimeoutApology
	default:
		return GenericApology
	}
}
