package reembed

import (
	"context"
	"fmt"

	"github.com/DhruvTemura/second-brain-ai/ai"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/storage"
)

// BatchProcessor re-embeds one batch of chunks and stores the new vectors.
type BatchProcessor struct {
	repo     storage.ChunkRepository
	embedder ai.Embedder
	policy   RetryPolicy
}

// NewBatchProcessor creates a new batch processor that retries embedding calls per policy.
func NewBatchProcessor(repo storage.ChunkRepository, embedder ai.Embedder, policy RetryPolicy) *BatchProcessor {
	return &BatchProcessor{
		repo:     repo,
		embedder: embedder,
		policy:   policy,
	}
}

// Process embeds the text of each chunk and replaces its stored vector.
// Vectors are normalized to unit length before storage.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var embeddings [][]float32
	err := Retry(ctx, bp.policy, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: embedding count mismatch: expected %d, got %d", core.ErrProvider, len(chunks), len(embeddings))
	}

	updates := make([]*core.Chunk, len(chunks))
	for i, chunk := range chunks {
		updates[i] = &core.Chunk{Id: chunk.Id, Vector: NormalizeVector(embeddings[i])}
	}

	if err := bp.repo.ReplaceVectors(ctx, updates...); err != nil {
		return fmt.Errorf("failed to replace vectors: %w", err)
	}
	return nil
}
