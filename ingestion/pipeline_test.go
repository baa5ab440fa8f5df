package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DhruvTemura/second-brain-ai/ai/mock"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/extract"
	"github.com/DhruvTemura/second-brain-ai/storage"
	"github.com/DhruvTemura/second-brain-ai/storage/badger"
	"github.com/DhruvTemura/second-brain-ai/storage/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	repos    *badger.Repositories
	provider *mock.MockProvider
	blobs    *blob.Store
	pipeline *Pipeline
}

func setupTestPipeline(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)

	provider := mock.NewMockProvider()
	opts = append([]Option{WithEmbedDelay(0), WithBlobReader(blobs)}, opts...)
	p, err := NewPipeline(repos.Sources, repos.Jobs, repos.Chunks, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	return &testEnv{repos: repos, provider: provider, blobs: blobs, pipeline: p}
}

func (e *testEnv) submit(t *testing.T, source *core.Source) *core.Job {
	t.Helper()
	added, err := e.repos.Sources.AddSource(context.Background(), source)
	require.NoError(t, err)
	job, err := e.repos.Jobs.CreateJob(context.Background(), added.UserID, added.Id)
	require.NoError(t, err)
	return job
}

func (e *testEnv) submitFile(t *testing.T, userID, filename, mimeType string, data []byte) *core.Job {
	t.Helper()
	loc, err := e.blobs.Save(context.Background(), filename, data)
	require.NoError(t, err)
	typ := core.SourceTypeDocument
	if extract.IsAudio(mimeType, filename) {
		typ = core.SourceTypeAudio
	}
	return e.submit(t, &core.Source{
		UserID:   userID,
		Type:     typ,
		Title:    filename,
		Location: loc,
		MimeType: mimeType,
	})
}

func TestNewPipeline_RequiredDependencies(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	provider := mock.NewMockProvider()

	_, err = NewPipeline(nil, repos.Jobs, repos.Chunks, provider)
	assert.ErrorIs(t, err, ErrSourceRepositoryRequired)
	_, err = NewPipeline(repos.Sources, nil, repos.Chunks, provider)
	assert.ErrorIs(t, err, ErrJobRepositoryRequired)
	_, err = NewPipeline(repos.Sources, repos.Jobs, nil, provider)
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)
	_, err = NewPipeline(repos.Sources, repos.Jobs, repos.Chunks, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	_, err = NewPipeline(repos.Sources, repos.Jobs, repos.Chunks, provider, WithChunkSize(10, 10))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestPipeline_IngestTextNote(t *testing.T) {
	env := setupTestPipeline(t)
	ctx := context.Background()

	job := env.submit(t, &core.Source{
		UserID:  "u1",
		Type:    core.SourceTypeText,
		Title:   "Text Note",
		Content: "Meeting notes: discussed Q3 roadmap.",
	})
	assert.Equal(t, core.JobStatusQueued, job.Status)

	count, err := env.pipeline.Ingest(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := env.repos.Jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusDone, got.Status)
	assert.Empty(t, got.Error)

	source, err := env.repos.Sources.GetSource(ctx, job.SourceID)
	require.NoError(t, err)
	chunks, err := env.repos.Chunks.GetChunksBySource(ctx, job.SourceID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Meeting notes: discussed Q3 roadmap.", chunks[0].Text)
	assert.Equal(t, "u1", chunks[0].UserID)
	assert.True(t, chunks[0].Timestamp.Equal(source.EffectiveTimestamp()))
	assert.Equal(t, mock.DeterministicVector(chunks[0].Text, mock.DefaultDimensions), chunks[0].Vector)
}

func TestPipeline_ChunkTimestampUsesSourceTimestamp(t *testing.T) {
	env := setupTestPipeline(t)
	explicit := time.Date(2024, 11, 5, 8, 0, 0, 0, time.UTC)

	job := env.submit(t, &core.Source{
		UserID:    "u1",
		Type:      core.SourceTypeText,
		Content:   "Dated note.",
		Timestamp: explicit,
	})
	_, err := env.pipeline.Ingest(context.Background(), job)
	require.NoError(t, err)

	chunks, err := env.repos.Chunks.GetChunksBySource(context.Background(), job.SourceID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Timestamp.Equal(explicit))
}

func TestPipeline_MultipleChunksKeepOrder(t *testing.T) {
	env := setupTestPipeline(t, WithPoolSize(4), WithChunkSize(10, 4))
	ctx := context.Background()

	var sentences []string
	for i := 0; i < 12; i++ {
		sentences = append(sentences, "Sentence number "+strings.Repeat("x", i+1)+" is here.")
	}
	job := env.submit(t, &core.Source{UserID: "u1", Type: core.SourceTypeText, Content: strings.Join(sentences, " ")})

	count, err := env.pipeline.Ingest(ctx, job)
	require.NoError(t, err)
	require.Greater(t, count, 1)

	chunks, err := env.repos.Chunks.GetChunksBySource(ctx, job.SourceID)
	require.NoError(t, err)
	require.Len(t, chunks, count)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, mock.DeterministicVector(chunk.Text, mock.DefaultDimensions), chunk.Vector)
	}
	assert.Equal(t, count, env.provider.GetMockEmbedder().CallCount())
}

func TestPipeline_DocumentViaBlob(t *testing.T) {
	env := setupTestPipeline(t)
	job := env.submitFile(t, "u1", "notes.md", extract.MimeMarkdown, []byte("# Ideas\n\nBuild a garden shed."))

	count, err := env.pipeline.Ingest(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	chunks, err := env.repos.Chunks.GetChunksBySource(context.Background(), job.SourceID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "garden shed")
}

func TestPipeline_AudioPlaceholder(t *testing.T) {
	env := setupTestPipeline(t)
	job := env.submitFile(t, "u1", "memo.mp3", extract.MimeMP3, []byte{0xff, 0xfb})

	count, err := env.pipeline.Ingest(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	chunks, err := env.repos.Chunks.GetChunksBySource(context.Background(), job.SourceID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, extract.AudioTranscriptPlaceholder, chunks[0].Text)
}

func TestPipeline_LargeDocumentOnDisk(t *testing.T) {
	repos, err := badger.OpenRepositories(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)

	p, err := NewPipeline(repos.Sources, repos.Jobs, repos.Chunks, mock.NewMockProvider(),
		WithEmbedDelay(0), WithPoolSize(4), WithBlobReader(blobs))
	require.NoError(t, err)
	t.Cleanup(p.Release)
	env := &testEnv{repos: repos, blobs: blobs, pipeline: p}

	// 8 MiB of text yields more chunk records than one badger transaction holds.
	sentence := "Sprint retro notes cover the deployment tooling backlog. "
	doc := strings.Repeat(sentence, 8<<20/len(sentence))
	job := env.submitFile(t, "u1", "retro.txt", extract.MimeText, []byte(doc))

	count, err := p.Ingest(context.Background(), job)
	require.NoError(t, err)
	assert.Greater(t, count, 2000)

	got, err := repos.Jobs.GetJob(context.Background(), job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusDone, got.Status)

	chunks, err := repos.Chunks.GetChunksBySource(context.Background(), job.SourceID)
	require.NoError(t, err)
	require.Len(t, chunks, count)
	assert.Equal(t, count-1, chunks[count-1].Index)
}

func assertFailedWithoutChunks(t *testing.T, env *testEnv, job *core.Job) {
	t.Helper()
	got, err := env.repos.Jobs.GetJob(context.Background(), job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)

	chunks, err := env.repos.Chunks.GetChunksBySource(context.Background(), job.SourceID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestPipeline_ExtractionFailure(t *testing.T) {
	t.Run("missing blob", func(t *testing.T) {
		env := setupTestPipeline(t)
		job := env.submit(t, &core.Source{
			UserID:   "u1",
			Type:     core.SourceTypeDocument,
			Location: "missing.pdf",
			MimeType: extract.MimePDF,
		})

		_, err := env.pipeline.Ingest(context.Background(), job)
		assert.ErrorIs(t, err, core.ErrExtraction)
		assertFailedWithoutChunks(t, env, job)
	})

	t.Run("unsupported format", func(t *testing.T) {
		env := setupTestPipeline(t)
		job := env.submitFile(t, "u1", "image.png", "image/png", []byte{0x89})

		_, err := env.pipeline.Ingest(context.Background(), job)
		assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
		assertFailedWithoutChunks(t, env, job)
	})

	t.Run("blank document", func(t *testing.T) {
		env := setupTestPipeline(t)
		job := env.submitFile(t, "u1", "blank.txt", extract.MimeText, []byte(" \n\n \t"))

		_, err := env.pipeline.Ingest(context.Background(), job)
		assert.ErrorIs(t, err, core.ErrExtraction)
		assertFailedWithoutChunks(t, env, job)
	})

	t.Run("no blob reader", func(t *testing.T) {
		env := setupTestPipeline(t)
		p, err := NewPipeline(env.repos.Sources, env.repos.Jobs, env.repos.Chunks, env.provider, WithEmbedDelay(0))
		require.NoError(t, err)
		defer p.Release()
		job := env.submitFile(t, "u1", "notes.txt", extract.MimeText, []byte("hello."))

		_, err = p.Ingest(context.Background(), job)
		assert.ErrorIs(t, err, ErrBlobReaderRequired)
		assertFailedWithoutChunks(t, env, job)
	})
}

func TestPipeline_EmbeddingFailure(t *testing.T) {
	env := setupTestPipeline(t, WithPoolSize(3), WithChunkSize(10, 0))
	var calls atomic.Int32
	env.provider.GetMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if calls.Add(1) == 2 {
			return nil, errors.Join(core.ErrProvider, errors.New("quota exceeded"))
		}
		return []float32{1, 0}, nil
	})

	content := strings.Repeat("A sentence that is long enough to fill a chunk. ", 6)
	job := env.submit(t, &core.Source{UserID: "u1", Type: core.SourceTypeText, Content: content})

	_, err := env.pipeline.Ingest(context.Background(), job)
	assert.ErrorIs(t, err, core.ErrProvider)
	assertFailedWithoutChunks(t, env, job)
}

func TestPipeline_JobNotQueued(t *testing.T) {
	env := setupTestPipeline(t)
	job := env.submit(t, &core.Source{UserID: "u1", Type: core.SourceTypeText, Content: "Once."})

	_, err := env.pipeline.Ingest(context.Background(), job)
	require.NoError(t, err)

	_, err = env.pipeline.Ingest(context.Background(), job)
	assert.ErrorIs(t, err, storage.ErrJobNotQueued)

	got, err := env.repos.Jobs.GetJob(context.Background(), job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusDone, got.Status)
}

func TestPipeline_UnsupportedSourceType(t *testing.T) {
	env := setupTestPipeline(t)
	_, err := env.pipeline.readText(context.Background(), &core.Source{Type: "video"})
	assert.ErrorIs(t, err, core.ErrUnsupportedType)
}

func TestEmbeddingProcessor_RateLimited(t *testing.T) {
	ep, err := newEmbeddingProcessor(mock.NewMockEmbedder(), 2, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer ep.release()

	start := time.Now()
	vectors, err := ep.embed(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Len(t, vectors, 4)
	// First request is immediate, the other three wait one interval each.
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
	assert.Equal(t, mock.DeterministicVector("c", mock.DefaultDimensions), vectors[2])
}
