package storage

import (
	"context"
	"time"

	"github.com/DhruvTemura/second-brain-ai/core"
)

// SourceRepository provides operations for managing sources.
// Implementations must be thread-safe and support concurrent access.
type SourceRepository interface {
	// AddSource stores a new source.
	// Generates the ID from a sequence and sets CreatedAt.
	// Returns the source with ID and timestamps populated.
	AddSource(ctx context.Context, source *core.Source) (*core.Source, error)

	// GetSource retrieves a single source by ID.
	// Returns ErrNotFound if the source doesn't exist.
	GetSource(ctx context.Context, id core.ID) (*core.Source, error)

	// GetSources retrieves multiple sources by their IDs.
	// Returns only the sources that exist (no error for missing sources).
	GetSources(ctx context.Context, ids ...core.ID) ([]*core.Source, error)

	// Close releases repository resources.
	Close() error
}

// JobRepository provides operations for managing ingestion jobs.
type JobRepository interface {
	// CreateJob stores a new job in the queued state for an existing source.
	// Returns ErrNotFound if the source doesn't exist.
	CreateJob(ctx context.Context, userID string, sourceID core.ID) (*core.Job, error)

	// ClaimJob atomically moves a job from queued to processing.
	// Returns ErrJobNotQueued if the job is in any other state or another
	// claimant won a concurrent race, and ErrNotFound if it doesn't exist.
	ClaimJob(ctx context.Context, id core.ID) (*core.Job, error)

	// UpdateStatus moves a job to a new status, recording errMsg for failures.
	// Returns core.ErrInvalidTransition if the lifecycle forbids the change.
	UpdateStatus(ctx context.Context, id core.ID, status core.JobStatus, errMsg string) (*core.Job, error)

	// GetJob retrieves a single job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id core.ID) (*core.Job, error)

	// ListJobsByUser returns up to limit jobs owned by userID, newest first.
	ListJobsByUser(ctx context.Context, userID string, limit int) ([]*core.Job, error)

	// ListPending returns up to limit queued jobs ordered by creation time ascending.
	ListPending(ctx context.Context, limit int) ([]*core.Job, error)

	// Close releases repository resources.
	Close() error
}

// ChunkRepository is the vector store: it persists chunks with their
// embeddings and answers similarity and time-range queries.
type ChunkRepository interface {
	// AddChunks persists all chunks of one source as one logical batch, however
	// large. When it returns an error, none of the chunks remain stored.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) error

	// GetChunksBySource returns the chunks of a source ordered by index.
	GetChunksBySource(ctx context.Context, sourceID core.ID) ([]*core.Chunk, error)

	// SimilaritySearch returns the top limit chunks owned by userID ranked by
	// cosine similarity to vector, most similar first. When timeRange is set,
	// only chunks whose timestamp lies within it are considered.
	SimilaritySearch(ctx context.Context, vector []float32, userID string, limit int, timeRange *core.TimeRange) ([]*core.RetrievedChunk, error)

	// TimeRangeQuery returns up to limit chunks owned by userID with
	// start <= Timestamp <= end, ordered by timestamp descending.
	TimeRangeQuery(ctx context.Context, userID string, start, end time.Time, limit int) ([]*core.Chunk, error)

	// CountChunks returns the number of stored chunks across all users.
	CountChunks(ctx context.Context) (int, error)

	// ScanChunks returns up to limit chunks with IDs greater than after, in ID order.
	// Pass 0 to start from the beginning.
	ScanChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error)

	// ReplaceVectors overwrites the embedding of existing chunks, leaving every
	// other field untouched. Only the offline re-embedding task calls this; it
	// is the single exception to chunks being immutable after ingestion.
	// Returns ErrNotFound if any chunk doesn't exist.
	ReplaceVectors(ctx context.Context, chunks ...*core.Chunk) error

	// Close releases repository resources.
	Close() error
}
