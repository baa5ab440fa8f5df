package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/DhruvTemura/second-brain-ai/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReembedder_Validation(t *testing.T) {
	repos := setupRepos(t)

	_, err := NewReembedder(nil, mock.NewMockEmbedder(), nil)
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewReembedder(repos.Chunks, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	cfg := DefaultConfig()
	cfg.Retry.MaxAttempts = 0
	_, err = NewReembedder(repos.Chunks, mock.NewMockEmbedder(), cfg)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Positive(t, cfg.Retry.BaseDelay)
}

func TestReembedder_Run(t *testing.T) {
	repos := setupRepos(t)
	seedChunks(t, repos, 25)

	cfg := &Config{BatchSize: 10, ReportInterval: 10, Retry: fastPolicy(2)}
	var out bytes.Buffer
	embedder := mock.NewMockEmbedder()
	r, err := NewReembedder(repos.Chunks, embedder, cfg, WithProgress(&out))
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, result.Total)
	assert.Equal(t, 25, result.Embedded)
	assert.Equal(t, 3, embedder.CallCount(), "one request per batch")

	for _, c := range allChunks(t, repos) {
		assert.Len(t, c.Vector, mock.DefaultDimensions)
		assert.InDeltaSlice(t, mock.DeterministicVector(c.Text, mock.DefaultDimensions), c.Vector, 1e-5)
	}

	assert.Contains(t, out.String(), "Re-embedding 25 chunks (batch size: 10)")
	assert.Contains(t, out.String(), "25/25 chunks")
	assert.Contains(t, out.String(), "Re-embedded 25 chunks in")
}

func TestReembedder_EmptyStore(t *testing.T) {
	repos := setupRepos(t)
	var out bytes.Buffer
	embedder := mock.NewMockEmbedder()

	r, err := NewReembedder(repos.Chunks, embedder, nil, WithProgress(&out))
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Total)
	assert.Zero(t, embedder.CallCount())
	assert.Contains(t, out.String(), "No chunks to re-embed")
}

func TestReembedder_AbortsOnFailedBatch(t *testing.T) {
	repos := setupRepos(t)
	seedChunks(t, repos, 6)

	calls := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("quota exhausted")
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{0, 1, 0}
		}
		return out, nil
	}

	cfg := &Config{BatchSize: 3, ReportInterval: 3, Retry: fastPolicy(1)}
	r, err := NewReembedder(repos.Chunks, embedder, cfg)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")
	assert.Equal(t, 3, result.Embedded)

	var fresh, stale int
	for _, c := range allChunks(t, repos) {
		if c.Vector[1] == 1 {
			fresh++
		} else {
			stale++
		}
	}
	assert.Equal(t, 3, fresh, "completed batches keep their new vectors")
	assert.Equal(t, 3, stale)
}

func TestReembedder_Idempotent(t *testing.T) {
	repos := setupRepos(t)
	seedChunks(t, repos, 5)

	r, err := NewReembedder(repos.Chunks, mock.NewMockEmbedder(), &Config{BatchSize: 2, Retry: fastPolicy(1)})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	first := allChunks(t, repos)

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	second := allChunks(t, repos)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Id, second[i].Id)
		assert.InDeltaSlice(t, first[i].Vector, second[i].Vector, 1e-6)
	}
}

func TestReembedder_ContextCancellation(t *testing.T) {
	repos := setupRepos(t)
	seedChunks(t, repos, 9)

	ctx, cancel := context.WithCancel(context.Background())
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		cancel()
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, 4)
		}
		return out, nil
	}

	r, err := NewReembedder(repos.Chunks, embedder, &Config{BatchSize: 3, Retry: fastPolicy(1)})
	require.NoError(t, err)

	result, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, result.Embedded)
}

func TestReembedder_SearchUsesNewVectors(t *testing.T) {
	repos := setupRepos(t)
	seedChunks(t, repos, 3)

	embedder := mock.NewMockEmbedder()
	r, err := NewReembedder(repos.Chunks, embedder, &Config{BatchSize: 10, Retry: fastPolicy(1)})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	query := mock.DeterministicVector("chunk text 1", mock.DefaultDimensions)
	hits, err := repos.Chunks.SimilaritySearch(context.Background(), query, "u1", 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk text 1", hits[0].Chunk.Text)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-4)
}

func TestReembedder_LeavesChunkContentUnchanged(t *testing.T) {
	repos := setupRepos(t)
	seedChunks(t, repos, 7)
	before := allChunks(t, repos)

	r, err := NewReembedder(repos.Chunks, mock.NewMockEmbedder(), &Config{BatchSize: 3, Retry: fastPolicy(1)})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	after := allChunks(t, repos)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Id, after[i].Id)
		assert.Equal(t, before[i].SourceID, after[i].SourceID)
		assert.Equal(t, before[i].UserID, after[i].UserID)
		assert.Equal(t, before[i].Index, after[i].Index)
		assert.Equal(t, before[i].Text, after[i].Text)
		assert.True(t, before[i].Timestamp.Equal(after[i].Timestamp))
		assert.True(t, before[i].CreatedAt.Equal(after[i].CreatedAt))
		assert.NotEqual(t, before[i].Vector, after[i].Vector)
	}
}
