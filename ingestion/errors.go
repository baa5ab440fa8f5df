package ingestion

import "errors"

// Constructor errors.
var (
	ErrSourceRepositoryRequired = errors.New("ingestion: source repository required")
	ErrJobRepositoryRequired    = errors.New("ingestion: job repository required")
	ErrChunkRepositoryRequired  = errors.New("ingestion: chunk repository required")
	ErrAIProviderRequired       = errors.New("ingestion: AI provider required")

	// ErrBlobReaderRequired is returned when a file-backed source reaches a
	// pipeline built without a blob reader.
	ErrBlobReaderRequired = errors.New("ingestion: blob reader required")
)
