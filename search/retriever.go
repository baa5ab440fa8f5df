package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DhruvTemura/second-brain-ai/ai"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/storage"
	"github.com/DhruvTemura/second-brain-ai/temporal"
)

// Retrieval limits.
const (
	DefaultLimit  = 5
	TemporalLimit = 10
)

// Constructor errors.
var (
	ErrSourceRepositoryRequired = errors.New("search: source repository required")
	ErrChunkRepositoryRequired  = errors.New("search: chunk repository required")
	ErrAIProviderRequired       = errors.New("search: AI provider required")
)

// Retriever selects the stored chunks that best answer a query.
type Retriever struct {
	sources  storage.SourceRepository
	chunks   storage.ChunkRepository
	embedder ai.Embedder
	parser   *temporal.Parser
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithParser sets the temporal parser used to resolve date ranges.
func WithParser(parser *temporal.Parser) Option {
	return func(r *Retriever) error {
		r.parser = parser
		return nil
	}
}

// NewRetriever creates a new Retriever.
func NewRetriever(
	sources storage.SourceRepository,
	chunks storage.ChunkRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Retriever, error) {
	if sources == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	r := &Retriever{
		sources:  sources,
		chunks:   chunks,
		embedder: provider.Embedder(),
		parser:   temporal.NewParser(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retriever")
	return r, nil
}

// Retrieve returns the chunks of userID most relevant to query.
// A non-positive limit means DefaultLimit.
func (r *Retriever) Retrieve(ctx context.Context, query, userID string, limit int) ([]*core.RetrievedChunk, error) {
	return r.RetrieveWithMonitor(ctx, query, userID, limit, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
// If monitor is nil, a no-op monitor is used.
//
// Temporal-only queries are answered from the time index, newest first,
// capped at TemporalLimit, with similarity 1.0. All other queries embed the
// query and rank by similarity, filtered to the parsed range when present.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query, userID string, limit int, monitor RetrievalMonitor) ([]*core.RetrievedChunk, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyQuery)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyUser)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	monitor.Start(query, userID)

	queryType := Classify(query)
	var timeRange *core.TimeRange
	if tr, ok := r.parser.Parse(query); ok {
		timeRange = &tr
	}
	monitor.Classified(queryType, timeRange)
	r.logger.Debug("classified query", "type", queryType, "range", timeRange)

	var (
		results []*core.RetrievedChunk
		err     error
	)
	if queryType == TemporalOnly && timeRange != nil {
		results, err = r.temporalLookup(ctx, userID, *timeRange, monitor)
	} else {
		results, err = r.semanticSearch(ctx, query, userID, limit, timeRange, monitor)
	}
	if err != nil {
		return nil, err
	}

	if err := r.attachTitles(ctx, results); err != nil {
		return nil, err
	}

	r.logger.Debug("retrieved chunks", "type", queryType, "results", len(results))
	monitor.Finish(results)
	return results, nil
}

func (r *Retriever) temporalLookup(ctx context.Context, userID string, timeRange core.TimeRange, monitor RetrievalMonitor) ([]*core.RetrievedChunk, error) {
	chunks, err := r.chunks.TimeRangeQuery(ctx, userID, timeRange.Start, timeRange.End, TemporalLimit)
	if err != nil {
		return nil, err
	}
	monitor.AfterTemporalLookup(chunks)

	results := make([]*core.RetrievedChunk, len(chunks))
	for i, chunk := range chunks {
		results[i] = &core.RetrievedChunk{Chunk: chunk, Similarity: 1.0}
	}
	return results, nil
}

func (r *Retriever) semanticSearch(ctx context.Context, query, userID string, limit int, timeRange *core.TimeRange, monitor RetrievalMonitor) ([]*core.RetrievedChunk, error) {
	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		if !errors.Is(err, core.ErrProvider) {
			err = fmt.Errorf("%w: embedding query: %w", core.ErrProvider, err)
		}
		return nil, err
	}
	monitor.AfterQueryEmbedding(vector)

	results, err := r.chunks.SimilaritySearch(ctx, vector, userID, limit, timeRange)
	if err != nil {
		return nil, err
	}
	monitor.AfterSemanticSearch(results)
	return results, nil
}

// attachTitles fills SourceTitle from the sources referenced by results.
func (r *Retriever) attachTitles(ctx context.Context, results []*core.RetrievedChunk) error {
	if len(results) == 0 {
		return nil
	}
	seen := make(map[core.ID]bool)
	var ids []core.ID
	for _, result := range results {
		if !seen[result.Chunk.SourceID] {
			seen[result.Chunk.SourceID] = true
			ids = append(ids, result.Chunk.SourceID)
		}
	}

	sources, err := r.sources.GetSources(ctx, ids...)
	if err != nil {
		return err
	}
	titles := make(map[core.ID]string, len(sources))
	for _, source := range sources {
		titles[source.Id] = source.Title
	}
	for _, result := range results {
		result.SourceTitle = titles[result.Chunk.SourceID]
	}
	return nil
}
