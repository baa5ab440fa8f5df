package reembed

import "errors"

var (
	ErrChunkRepositoryRequired = errors.New("reembed: chunk repository required")
	ErrEmbedderRequired        = errors.New("reembed: embedder required")

	// ErrInvalidMaxAttempts rejects retry policies that would never call the embedder.
	ErrInvalidMaxAttempts = errors.New("reembed: retry policy needs at least one attempt")
)
