package ai

import "context"

// Embedder maps text to vectors. Vectors from one Embedder are comparable by
// cosine similarity. Safe for concurrent use.
type Embedder interface {
	// EmbedText embeds one string. Failures wrap core.ErrProvider.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts embeds a batch; result i belongs to texts[i].
	// Failures wrap core.ErrProvider.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator completes an already assembled prompt. Safe for concurrent use.
type Generator interface {
	// Generate returns the model's answer. Failures wrap core.ErrProvider and
	// are not retried.
	Generate(ctx context.Context, prompt string) (string, error)
}

// AIProvider hands out the embedder and generator built from one Config.
type AIProvider interface {
	Embedder() Embedder
	Generator() Generator

	// Close releases the provider; neither service may be used afterwards.
	Close() error
}
