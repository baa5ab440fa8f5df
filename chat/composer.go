// Package chat answers questions from a user's stored memory by grounding a
// language model in retrieved chunks.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DhruvTemura/second-brain-ai/ai"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/search"
)

// PreviewLength is the number of characters of chunk text kept in a source citation.
const PreviewLength = 150

var (
	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)

// Retriever finds the chunks relevant to a query. *search.Retriever implements it.
type Retriever interface {
	Retrieve(ctx context.Context, query, userID string, limit int) ([]*core.RetrievedChunk, error)
}

// Source is a citation for one retrieved chunk.
type Source struct {
	ChunkID    core.ID   `json:"chunk_id"`
	SourceID   core.ID   `json:"source_id"`
	Title      string    `json:"title,omitempty"`
	Text       string    `json:"text"`
	Similarity float32   `json:"similarity"`
	Timestamp  time.Time `json:"timestamp"`
}

// Answer is the result of a chat query.
type Answer struct {
	Answer     string                 `json:"answer"`
	Sources    []Source               `json:"sources"`
	RawContext []*core.RetrievedChunk `json:"-"`
}

// Composer builds grounded prompts and asks the generator for an answer.
type Composer struct {
	retriever Retriever
	generator ai.Generator
	limit     int
	location  *time.Location
	logger    *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer) error

// WithLimit sets how many chunks semantic retrieval returns. Default is 5.
func WithLimit(limit int) Option {
	return func(c *Composer) error {
		if limit <= 0 {
			return fmt.Errorf("%w: limit must be positive", core.ErrValidation)
		}
		c.limit = limit
		return nil
	}
}

// WithLocation sets the time zone used to render timestamps in the prompt.
// Default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(c *Composer) error {
		if loc != nil {
			c.location = loc
		}
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) error {
		c.logger = logger
		return nil
	}
}

// NewComposer creates a Composer.
func NewComposer(retriever Retriever, provider ai.AIProvider, opts ...Option) (*Composer, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	c := &Composer{
		retriever: retriever,
		generator: provider.Generator(),
		limit:     search.DefaultLimit,
		location:  time.Local,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "chat")
	return c, nil
}

// Answer retrieves context for query and generates a grounded answer.
// When nothing is retrieved it returns NoInformationAnswer without calling the model.
func (c *Composer) Answer(ctx context.Context, query, userID string) (*Answer, error) {
	results, err := c.retriever.Retrieve(ctx, query, userID, c.limit)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		c.logger.Debug("no context retrieved", "user", userID)
		return &Answer{
			Answer:     NoInformationAnswer,
			Sources:    []Source{},
			RawContext: []*core.RetrievedChunk{},
		}, nil
	}

	queryType := search.Classify(query)
	prompt := buildPrompt(query, buildContext(results, c.location), queryType == search.TemporalOnly)

	c.logger.Debug("generating answer", "user", userID, "chunks", len(results), "type", queryType)
	text, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		if !errors.Is(err, core.ErrProvider) {
			err = fmt.Errorf("%w: generating answer: %w", core.ErrProvider, err)
		}
		return nil, err
	}

	sources := make([]Source, len(results))
	for i, result := range results {
		sources[i] = Source{
			ChunkID:    result.Chunk.Id,
			SourceID:   result.Chunk.SourceID,
			Title:      result.SourceTitle,
			Text:       preview(result.Chunk.Text, PreviewLength),
			Similarity: result.Similarity,
			Timestamp:  result.Chunk.Timestamp,
		}
	}

	return &Answer{
		Answer:     text,
		Sources:    sources,
		RawContext: results,
	}, nil
}
