package secondbrain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DhruvTemura/second-brain-ai/ai/mock"
	"github.com/DhruvTemura/second-brain-ai/chat"
	"github.com/DhruvTemura/second-brain-ai/config"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/extract"
	"github.com/DhruvTemura/second-brain-ai/ingestion"
	"github.com/DhruvTemura/second-brain-ai/reembed"
	"github.com/DhruvTemura/second-brain-ai/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBrain(t *testing.T, opts ...Option) (*Brain, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProvider()
	base := []Option{
		InMemory(),
		WithProvider(provider),
		WithBlobDir(t.TempDir()),
		WithLocation(time.UTC),
		WithIngestionOptions(ingestion.WithEmbedDelay(0)),
	}
	b, err := Open("", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b, provider
}

func drain(t *testing.T, b *Brain) {
	t.Helper()
	w, err := b.NewWorker()
	require.NoError(t, err)
	_, err = w.RunOnce(context.Background())
	require.NoError(t, err)
}

func TestOpen(t *testing.T) {
	t.Run("on disk", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "brain.db")
		b, err := Open(dir, WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		assert.NotNil(t, b.Sources())
		assert.NotNil(t, b.Jobs())
		assert.NotNil(t, b.Chunks())
		require.NoError(t, b.Close())

		info, err := os.Stat(dir + ".blobs")
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

		b, err := Open(file, WithProvider(mock.NewMockProvider()), WithBlobDir(t.TempDir()))
		assert.Error(t, err)
		assert.Nil(t, b)
	})

	t.Run("invalid option", func(t *testing.T) {
		_, err := Open("", InMemory(), WithRetrievalLimit(0))
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("in memory temp blobs are removed", func(t *testing.T) {
		b, err := Open("", InMemory(), WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		dir := b.tempBlobDir
		require.DirExists(t, dir)
		require.NoError(t, b.Close())
		assert.NoDirExists(t, dir)
	})
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "db")
	cfg.Blobs.Dir = filepath.Join(t.TempDir(), "uploads")
	cfg.Ingestion.EmbedDelay = 0

	b, err := FromConfig(cfg, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer b.Close()

	sub, err := b.SubmitText(context.Background(), "u1", TextNote{Text: "configured store works"})
	require.NoError(t, err)
	drain(t, b)

	job, err := b.GetJob(context.Background(), sub.Job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusDone, job.Status)
	assert.DirExists(t, cfg.Blobs.Dir)
}

func TestSubmitText_EndToEnd(t *testing.T) {
	b, _ := openTestBrain(t)
	ctx := context.Background()

	sub, err := b.SubmitText(ctx, "u1", TextNote{Text: "Meeting notes: discussed Q3 roadmap."})
	require.NoError(t, err)
	assert.Equal(t, core.SourceTypeText, sub.Source.Type)
	assert.Equal(t, DefaultTextTitle, sub.Source.Title)
	assert.Equal(t, core.JobStatusQueued, sub.Job.Status)

	drain(t, b)

	job, err := b.GetJob(ctx, sub.Job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusDone, job.Status)

	chunks, err := b.ChunksBySource(ctx, sub.Source.Id)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Meeting notes: discussed Q3 roadmap.", chunks[0].Text)
}

func TestSubmitText_Validation(t *testing.T) {
	b, _ := openTestBrain(t)
	ctx := context.Background()

	_, err := b.SubmitText(ctx, "u1", TextNote{Text: "   "})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = b.SubmitText(ctx, "", TextNote{Text: "hello"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSubmitFile(t *testing.T) {
	b, _ := openTestBrain(t)
	ctx := context.Background()

	t.Run("markdown document", func(t *testing.T) {
		sub, err := b.SubmitFile(ctx, "u1", FileUpload{
			Filename: "notes.md",
			Data:     []byte("# Garden\n\nPlant tomatoes in May."),
		})
		require.NoError(t, err)
		assert.Equal(t, core.SourceTypeDocument, sub.Source.Type)
		assert.Equal(t, extract.MimeMarkdown, sub.Source.MimeType)
		assert.Equal(t, "notes.md", sub.Source.Title)
		assert.NotEmpty(t, sub.Source.Location)

		drain(t, b)
		job, err := b.GetJob(ctx, sub.Job.Id)
		require.NoError(t, err)
		assert.Equal(t, core.JobStatusDone, job.Status, job.Error)

		chunks, err := b.ChunksBySource(ctx, sub.Source.Id)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		assert.Contains(t, chunks[0].Text, "tomatoes")
	})

	t.Run("audio by declared type", func(t *testing.T) {
		sub, err := b.SubmitFile(ctx, "u1", FileUpload{
			Filename: "memo",
			MimeType: "audio/x-m4a",
			Data:     []byte{0x00, 0x01},
			Title:    "Voice memo",
		})
		require.NoError(t, err)
		assert.Equal(t, core.SourceTypeAudio, sub.Source.Type)
		assert.Equal(t, "Voice memo", sub.Source.Title)

		drain(t, b)
		chunks, err := b.ChunksBySource(ctx, sub.Source.Id)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, extract.AudioTranscriptPlaceholder, chunks[0].Text)
	})

	t.Run("generic declared type falls back to extension", func(t *testing.T) {
		sub, err := b.SubmitFile(ctx, "u1", FileUpload{
			Filename: "todo.txt",
			MimeType: "application/octet-stream",
			Data:     []byte("buy milk"),
		})
		require.NoError(t, err)
		assert.Equal(t, extract.MimeText, sub.Source.MimeType)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := b.SubmitFile(ctx, "u1", FileUpload{Filename: "photo.png", MimeType: "image/png", Data: []byte("png")})
		assert.ErrorIs(t, err, core.ErrValidation)
		assert.ErrorIs(t, err, ErrUnsupportedUpload)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := b.SubmitFile(ctx, "u1", FileUpload{Filename: "empty.txt"})
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestSubmitFile_TooLarge(t *testing.T) {
	b, _ := openTestBrain(t, WithMaxUploadBytes(8))

	_, err := b.SubmitFile(context.Background(), "u1", FileUpload{Filename: "big.txt", Data: []byte(strings.Repeat("x", 9))})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestSubmitFile_RemovesBlobWhenSourceRejected(t *testing.T) {
	blobDir := t.TempDir()
	b, _ := openTestBrain(t, WithBlobDir(blobDir))

	_, err := b.SubmitFile(context.Background(), "", FileUpload{Filename: "a.txt", Data: []byte("hi")})
	assert.ErrorIs(t, err, core.ErrValidation)

	entries, err := os.ReadDir(blobDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetJob_NotFound(t *testing.T) {
	b, _ := openTestBrain(t)
	_, err := b.GetJob(context.Background(), 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListJobs(t *testing.T) {
	b, _ := openTestBrain(t)
	ctx := context.Background()

	first, err := b.SubmitText(ctx, "u1", TextNote{Text: "first", Title: "One"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := b.SubmitFile(ctx, "u1", FileUpload{Filename: "two.txt", Data: []byte("second")})
	require.NoError(t, err)
	_, err = b.SubmitText(ctx, "u2", TextNote{Text: "someone else"})
	require.NoError(t, err)

	jobs, err := b.ListJobs(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.Job.Id, jobs[0].Job.Id)
	assert.Equal(t, "two.txt", jobs[0].SourceTitle)
	assert.Equal(t, core.SourceTypeDocument, jobs[0].SourceType)
	assert.Equal(t, first.Job.Id, jobs[1].Job.Id)
	assert.Equal(t, "One", jobs[1].SourceTitle)

	limited, err := b.ListJobs(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestChat_NoMemories(t *testing.T) {
	b, provider := openTestBrain(t)

	answer, err := b.Chat(context.Background(), "What did I upload today?", "u1")
	require.NoError(t, err)
	assert.Equal(t, chat.NoInformationAnswer, answer.Answer)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, provider.GetMockGenerator().CallCount())
}

func TestChat_GroundedAnswer(t *testing.T) {
	b, provider := openTestBrain(t)
	ctx := context.Background()

	_, err := b.SubmitText(ctx, "u1", TextNote{Text: "roadmap planning", Title: "Planning"})
	require.NoError(t, err)
	_, err = b.SubmitText(ctx, "u1", TextNote{Text: "grocery list: eggs and flour"})
	require.NoError(t, err)
	drain(t, b)

	answer, err := b.Chat(ctx, "roadmap planning", "u1")
	require.NoError(t, err)
	assert.Equal(t, "mock answer", answer.Answer)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "Planning", answer.Sources[0].Title)
	assert.Equal(t, 1, provider.GetMockGenerator().CallCount())
	assert.Contains(t, provider.GetMockGenerator().LastPrompt(), "roadmap planning")

	hits, err := b.Retrieve(ctx, "roadmap planning", "u1", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "roadmap planning", hits[0].Chunk.Text)
}

func TestNewReembedder(t *testing.T) {
	b, provider := openTestBrain(t)
	ctx := context.Background()

	_, err := b.SubmitText(ctx, "u1", TextNote{Text: "some memory"})
	require.NoError(t, err)
	drain(t, b)

	before := provider.GetMockEmbedder().CallCount()
	r, err := b.NewReembedder(&reembed.Config{BatchSize: 10, Retry: reembed.RetryPolicy{MaxAttempts: 1}})
	require.NoError(t, err)

	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Embedded)
	assert.Equal(t, before+1, provider.GetMockEmbedder().CallCount())
}
