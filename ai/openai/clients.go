package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DhruvTemura/second-brain-ai/ai"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
)

// answerTemperature keeps grounded answers close to the supplied context.
const answerTemperature = 0.2

// Embedder turns text into vectors through the embeddings endpoint.
type Embedder struct {
	inner  embeddings.Embedder
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(client embeddings.EmbedderClient, logger *slog.Logger) (*Embedder, error) {
	inner, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrProvider, err)
	}
	return &Embedder{inner: inner, logger: logger.With("role", "embedder")}, nil
}

// EmbedText embeds one string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty vector returned", core.ErrProvider)
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in one request and returns vectors in input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("embedding", "count", len(texts))

	vectors, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Warn("embedding request failed", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: embed %d texts: %w", core.ErrProvider, len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: asked for %d vectors, received %d", core.ErrProvider, len(texts), len(vectors))
	}
	return vectors, nil
}

// Generator answers prompts through the chat completions endpoint.
type Generator struct {
	model  llms.Model
	logger *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

func newGenerator(model llms.Model, logger *slog.Logger) *Generator {
	return &Generator{model: model, logger: logger.With("role", "generator")}
}

// Generate sends prompt as a single user turn and returns the completion
// text exactly as the model produced it.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("completing", "promptRunes", len([]rune(prompt)))

	answer, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, llms.WithTemperature(answerTemperature))
	if err != nil {
		g.logger.Warn("completion failed", "err", err)
		return "", fmt.Errorf("%w: completion: %w", core.ErrProvider, err)
	}
	return answer, nil
}
