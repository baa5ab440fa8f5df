// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/DhruvTemura/second-brain-ai/ai"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/storage"
)

// Config holds configuration for a re-embedding run.
type Config struct {
	// BatchSize is the number of chunks embedded per request
	BatchSize int

	// ReportInterval is how often to report progress, in chunks
	ReportInterval int

	// Retry bounds retries of failed embedding requests
	Retry RetryPolicy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: DefaultBatchSize,
		Retry:          DefaultRetryPolicy(),
	}
}

// Result summarizes a completed run.
type Result struct {
	Total    int
	Embedded int
	Elapsed  time.Duration
}

// Option configures a Reembedder.
type Option func(*Reembedder) error

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "reembedder")
		return nil
	}
}

// WithProgress sets where progress lines are written. Defaults to io.Discard.
func WithProgress(w io.Writer) Option {
	return func(r *Reembedder) error {
		if w == nil {
			w = io.Discard
		}
		r.progress = w
		return nil
	}
}

// Reembedder replaces the vector of every stored chunk with a fresh
// embedding of its text.
type Reembedder struct {
	repo      storage.ChunkRepository
	config    *Config
	progress  io.Writer
	logger    *slog.Logger
	processor *BatchProcessor
	iterator  *ChunkIterator
}

// NewReembedder creates a new reembedder. A nil config selects DefaultConfig().
func NewReembedder(repo storage.ChunkRepository, embedder ai.Embedder, config *Config, opts ...Option) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Retry.MaxAttempts <= 0 {
		return nil, ErrInvalidMaxAttempts
	}

	r := &Reembedder{
		repo:      repo,
		config:    config,
		progress:  io.Discard,
		logger:    slog.Default().With("component", "reembedder"),
		processor: NewBatchProcessor(repo, embedder, config.Retry),
		iterator:  NewChunkIterator(repo, config.BatchSize),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Run re-embeds every chunk in the store. A failed batch aborts the run;
// batches already written keep their new vectors.
func (r *Reembedder) Run(ctx context.Context) (*Result, error) {
	total, err := r.repo.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	result := &Result{Total: total}
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks to re-embed\n")
		return result, nil
	}

	r.logger.Info("re-embedding started", "chunks", total, "batchSize", r.config.BatchSize)
	fmt.Fprintf(r.progress, "Re-embedding %d chunks (batch size: %d)\n", total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(chunks []*core.Chunk) error {
		if err := r.processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("failed to process batch starting at chunk %d: %w", chunks[0].Id, err)
		}
		result.Embedded += len(chunks)
		tracker.Add(len(chunks))
		return nil
	})
	result.Elapsed = tracker.Elapsed()
	if err != nil {
		r.logger.Error("re-embedding aborted", "embedded", result.Embedded, "err", err)
		return result, err
	}

	tracker.Finish()
	r.logger.Info("re-embedding complete", "chunks", result.Embedded, "elapsed", result.Elapsed)
	fmt.Fprintf(r.progress, "Re-embedded %d chunks in %v\n", result.Embedded, result.Elapsed.Round(time.Millisecond))
	return result, nil
}
