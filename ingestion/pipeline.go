package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DhruvTemura/second-brain-ai/ai"
	"github.com/DhruvTemura/second-brain-ai/chunker"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/extract"
	"github.com/DhruvTemura/second-brain-ai/storage"
)

// Default embedding throttle settings.
const (
	DefaultPoolSize   = 1
	DefaultEmbedDelay = 100 * time.Millisecond
)

// Pipeline orchestrates extraction, chunking, embedding and persistence for one job at a time.
type Pipeline struct {
	sources       storage.SourceRepository
	jobs          storage.JobRepository
	chunks        storage.ChunkRepository
	embedder      ai.Embedder
	blobs         BlobReader
	extractor     extract.Extractor
	embeddingProc *embeddingProcessor
	readers       map[core.SourceType]sourceReader
	poolSize      int
	embedDelay    time.Duration
	maxTokens     int
	overlapTokens int
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of concurrent embedding requests.
// Default is 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithEmbedDelay sets the minimum interval between embedding requests.
// Zero disables throttling. Default is 100ms.
func WithEmbedDelay(delay time.Duration) Option {
	return func(p *Pipeline) error {
		if delay < 0 {
			return fmt.Errorf("%w: negative embed delay", core.ErrValidation)
		}
		p.embedDelay = delay
		return nil
	}
}

// WithChunkSize sets the chunk size and overlap in approximate tokens.
func WithChunkSize(maxTokens, overlapTokens int) Option {
	return func(p *Pipeline) error {
		if maxTokens <= 0 || overlapTokens < 0 || overlapTokens >= maxTokens {
			return fmt.Errorf("%w: invalid chunk size %d/%d", core.ErrValidation, maxTokens, overlapTokens)
		}
		p.maxTokens = maxTokens
		p.overlapTokens = overlapTokens
		return nil
	}
}

// WithBlobReader sets where document and audio bytes are loaded from.
func WithBlobReader(blobs BlobReader) Option {
	return func(p *Pipeline) error {
		p.blobs = blobs
		return nil
	}
}

// WithExtractor replaces the default document extractor.
func WithExtractor(extractor extract.Extractor) Option {
	return func(p *Pipeline) error {
		p.extractor = extractor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	sources storage.SourceRepository,
	jobs storage.JobRepository,
	chunks storage.ChunkRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if sources == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	// Create pipeline with defaults
	p := &Pipeline{
		sources:       sources,
		jobs:          jobs,
		chunks:        chunks,
		embedder:      provider.Embedder(),
		poolSize:      DefaultPoolSize,
		embedDelay:    DefaultEmbedDelay,
		maxTokens:     chunker.DefaultMaxTokens,
		overlapTokens: chunker.DefaultOverlapTokens,
		logger:        slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	if p.extractor == nil {
		extractor, err := extract.NewDocumentExtractor(extract.WithLogger(p.logger))
		if err != nil {
			return nil, err
		}
		p.extractor = extractor
	}
	p.readers = map[core.SourceType]sourceReader{
		core.SourceTypeText:     textReader{},
		core.SourceTypeDocument: documentReader{blobs: p.blobs, extractor: p.extractor},
		core.SourceTypeAudio:    audioReader{blobs: p.blobs},
	}

	// Create processor after options are applied (so it gets final config)
	embeddingProc, err := newEmbeddingProcessor(p.embedder, p.poolSize, p.embedDelay, p.logger)
	if err != nil {
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// Ingest processes one queued job and returns the number of chunks created.
//
// The job is claimed atomically first; a job that is no longer queued yields
// storage.ErrJobNotQueued and is left untouched. Any later failure marks the
// job failed with the error message and is returned to the caller.
func (p *Pipeline) Ingest(ctx context.Context, job *core.Job) (int, error) {
	claimed, err := p.jobs.ClaimJob(ctx, job.Id)
	if err != nil {
		return 0, err
	}
	logger := p.logger.With("job", claimed.Id, "source", claimed.SourceID)
	logger.Info("processing job")

	start := time.Now()
	count, err := p.process(ctx, claimed)
	if err != nil {
		p.fail(ctx, logger, claimed, err)
		return 0, err
	}

	if _, err := p.jobs.UpdateStatus(ctx, claimed.Id, core.JobStatusDone, ""); err != nil {
		p.fail(ctx, logger, claimed, err)
		return 0, err
	}

	logger.Info("job completed", "chunks", count, "elapsed", time.Since(start))
	return count, nil
}

// process runs extraction through persistence for a claimed job.
func (p *Pipeline) process(ctx context.Context, job *core.Job) (int, error) {
	source, err := p.sources.GetSource(ctx, job.SourceID)
	if err != nil {
		return 0, err
	}

	raw, err := p.readText(ctx, source)
	if err != nil {
		return 0, err
	}

	cleaned := chunker.Clean(raw)
	if cleaned == "" {
		return 0, fmt.Errorf("%w: source %d produced no text", core.ErrExtraction, source.Id)
	}

	texts := chunker.Chunk(cleaned, p.maxTokens, p.overlapTokens)
	vectors, err := p.embeddingProc.embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	timestamp := source.EffectiveTimestamp()
	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &core.Chunk{
			SourceID:  source.Id,
			UserID:    source.UserID,
			Index:     i,
			Text:      text,
			Vector:    vectors[i],
			Timestamp: timestamp,
		}
	}

	if err := p.chunks.AddChunks(ctx, chunks...); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// readText dispatches on the source type.
func (p *Pipeline) readText(ctx context.Context, source *core.Source) (string, error) {
	reader, ok := p.readers[source.Type]
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedType, source.Type)
	}
	return reader.read(ctx, source)
}

// fail records cause on the job. A failure to record is logged, not returned.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, job *core.Job, cause error) {
	logger.Error("job failed", "err", cause)
	if _, err := p.jobs.UpdateStatus(ctx, job.Id, core.JobStatusFailed, cause.Error()); err != nil {
		if !errors.Is(err, core.ErrInvalidTransition) {
			logger.Error("error marking job failed", "err", err)
		}
	}
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingProc != nil {
		p.embeddingProc.release()
	}
}
