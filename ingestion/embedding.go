package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DhruvTemura/second-brain-ai/ai"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"
)

// embeddingProcessor generates one embedding per chunk text.
type embeddingProcessor struct {
	embedder ai.Embedder
	pool     *ants.Pool
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// newEmbeddingProcessor creates a processor with poolSize workers that start
// at most one request per delay. A non-positive delay disables the limit.
func newEmbeddingProcessor(embedder ai.Embedder, poolSize int, delay time.Duration, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if poolSize < 1 {
		poolSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	return &embeddingProcessor{
		embedder: embedder,
		pool:     pool,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.With("processor", "embeddings"),
	}, nil
}

// embed returns vectors in the same order as texts.
// The first failure in chunk order is returned.
func (ep *embeddingProcessor) embed(ctx context.Context, texts []string) ([][]float32, error) {
	ep.logger.Debug("generating embeddings", "chunks", len(texts))

	vectors := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	var wg sync.WaitGroup

	for i, text := range texts {
		if err := ep.limiter.Wait(ctx); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		err := ep.pool.Submit(func() {
			defer wg.Done()
			vectors[i], errs[i] = ep.embedder.EmbedText(ctx, text)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting embedding task: %w", err)
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			ep.logger.Error("error generating embedding", "chunk", i, "err", err)
			return nil, err
		}
		if len(vectors[i]) == 0 {
			return nil, fmt.Errorf("%w: empty embedding for chunk %d", core.ErrProvider, i)
		}
	}
	return vectors, nil
}

// release stops the worker pool.
func (ep *embeddingProcessor) release() {
	ep.pool.Release()
}
