// Package secondbrain wires storage, ingestion, retrieval and chat into a
// single personal memory store.
//
// A Brain accepts text notes and uploaded files, queues an ingestion job for
// each and answers questions grounded in what has been ingested. Jobs are
// processed by a worker obtained from NewWorker, either in the same process
// or in a separate one sharing the database.
package secondbrain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/DhruvTemura/second-brain-ai/ai"
	"github.com/DhruvTemura/second-brain-ai/ai/openai"
	"github.com/DhruvTemura/second-brain-ai/chat"
	"github.com/DhruvTemura/second-brain-ai/config"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/extract"
	"github.com/DhruvTemura/second-brain-ai/ingestion"
	"github.com/DhruvTemura/second-brain-ai/reembed"
	"github.com/DhruvTemura/second-brain-ai/search"
	"github.com/DhruvTemura/second-brain-ai/storage"
	"github.com/DhruvTemura/second-brain-ai/storage/badger"
	"github.com/DhruvTemura/second-brain-ai/storage/blob"
	"github.com/DhruvTemura/second-brain-ai/temporal"
	"github.com/DhruvTemura/second-brain-ai/worker"
)

const (
	// DefaultTextTitle is the title given to text notes submitted without one.
	DefaultTextTitle = "Text Note"

	// DefaultMaxUploadBytes bounds the size of an uploaded file.
	DefaultMaxUploadBytes = 50 << 20

	// DefaultJobListLimit is how many jobs ListJobs returns when asked for none.
	DefaultJobListLimit = 50
)

var (
	// ErrUnsupportedUpload is returned for files whose type cannot be ingested.
	ErrUnsupportedUpload = errors.New("unsupported upload type")

	// ErrUploadTooLarge is returned for files over the upload size limit.
	ErrUploadTooLarge = errors.New("upload too large")
)

// Submission is the result of submitting a source: the stored source and
// the queued job that will ingest it.
type Submission struct {
	Source *core.Source
	Job    *core.Job
}

// TextNote is a text source to submit.
type TextNote struct {
	Text      string
	Title     string    // Defaults to DefaultTextTitle
	Timestamp time.Time // Optional; chunks fall back to the creation time
}

// FileUpload is an uploaded file to submit.
type FileUpload struct {
	Filename  string
	MimeType  string // Declared type; the extension decides when empty or generic
	Data      []byte
	Title     string    // Defaults to Filename
	Timestamp time.Time // Optional
}

type options struct {
	aiConfig      *ai.Config
	provider      ai.AIProvider
	blobDir       string
	inMemory      bool
	logger        *slog.Logger
	ingestionOpts []ingestion.Option
	location      *time.Location
	limit         int
	maxUpload     int64
}

// Option configures a Brain.
type Option func(*options) error

// WithAIConfig selects the OpenAI-compatible provider configuration.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *options) error {
		o.aiConfig = cfg
		return nil
	}
}

// WithProvider uses an existing AI provider instead of building one.
// The Brain does not close a provider supplied this way.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) error {
		o.provider = provider
		return nil
	}
}

// WithBlobDir sets the directory for uploaded files.
// Defaults to "<path>.blobs" next to the database.
func WithBlobDir(dir string) Option {
	return func(o *options) error {
		o.blobDir = dir
		return nil
	}
}

// InMemory keeps the database in memory. The path given to Open is ignored.
func InMemory() Option {
	return func(o *options) error {
		o.inMemory = true
		return nil
	}
}

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithIngestionOptions passes options through to the ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) Option {
	return func(o *options) error {
		o.ingestionOpts = append(o.ingestionOpts, opts...)
		return nil
	}
}

// WithLocation sets the time zone used to resolve temporal phrases and
// render timestamps. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *options) error {
		if loc == nil {
			return fmt.Errorf("%w: nil location", core.ErrValidation)
		}
		o.location = loc
		return nil
	}
}

// WithRetrievalLimit sets how many chunks semantic retrieval returns.
func WithRetrievalLimit(limit int) Option {
	return func(o *options) error {
		if limit <= 0 {
			return fmt.Errorf("%w: retrieval limit must be positive", core.ErrValidation)
		}
		o.limit = limit
		return nil
	}
}

// WithMaxUploadBytes sets the upload size limit.
func WithMaxUploadBytes(n int64) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("%w: upload limit must be positive", core.ErrValidation)
		}
		o.maxUpload = n
		return nil
	}
}

// Brain is a personal memory store.
type Brain struct {
	repos        *badger.Repositories
	blobs        *blob.Store
	tempBlobDir  string
	provider     ai.AIProvider
	ownsProvider bool
	pipeline     *ingestion.Pipeline
	retriever    *search.Retriever
	composer     *chat.Composer
	maxUpload    int64
	logger       *slog.Logger
}

// Open opens or creates the store at path.
func Open(path string, opts ...Option) (*Brain, error) {
	o := &options{
		location:  time.Local,
		limit:     search.DefaultLimit,
		maxUpload: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	b := &Brain{
		maxUpload: o.maxUpload,
		logger:    o.logger.With("component", "secondbrain"),
	}
	if err := b.init(path, o); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// FromConfig opens the store described by cfg. Extra options are applied
// after those derived from cfg.
func FromConfig(cfg *config.Config, opts ...Option) (*Brain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithAIConfig(cfg.AIConfig()),
		WithBlobDir(cfg.Blobs.Dir),
		WithLocation(loc),
		WithRetrievalLimit(cfg.Retrieval.Limit),
		WithMaxUploadBytes(cfg.Ingestion.MaxUploadBytes),
		WithIngestionOptions(
			ingestion.WithPoolSize(cfg.Ingestion.EmbedConcurrency),
			ingestion.WithEmbedDelay(cfg.Ingestion.EmbedDelay),
			ingestion.WithChunkSize(cfg.Ingestion.MaxTokens, cfg.Ingestion.OverlapTokens),
		),
	}
	return Open(cfg.Database.Path, append(base, opts...)...)
}

func (b *Brain) init(path string, o *options) error {
	var err error
	if o.inMemory {
		b.repos, err = badger.NewMemoryRepositories()
	} else {
		b.repos, err = badger.OpenRepositories(path)
	}
	if err != nil {
		return err
	}

	blobDir := o.blobDir
	if blobDir == "" {
		if o.inMemory {
			if blobDir, err = os.MkdirTemp("", "secondbrain-blobs-"); err != nil {
				return err
			}
			b.tempBlobDir = blobDir
		} else {
			blobDir = strings.TrimRight(path, "/") + ".blobs"
		}
	}
	if b.blobs, err = blob.NewStore(blobDir); err != nil {
		return err
	}

	b.provider = o.provider
	if b.provider == nil {
		aiConfig := o.aiConfig
		if aiConfig == nil {
			aiConfig = ai.DefaultConfig()
		}
		if b.provider, err = openai.NewProvider(aiConfig); err != nil {
			return err
		}
		b.ownsProvider = true
	}

	extractor, err := extract.NewDocumentExtractor(extract.WithLogger(o.logger))
	if err != nil {
		return err
	}
	pipelineOpts := append([]ingestion.Option{
		ingestion.WithBlobReader(b.blobs),
		ingestion.WithExtractor(extractor),
		ingestion.WithLogger(o.logger),
	}, o.ingestionOpts...)
	b.pipeline, err = ingestion.NewPipeline(b.repos.Sources, b.repos.Jobs, b.repos.Chunks, b.provider, pipelineOpts...)
	if err != nil {
		return err
	}

	b.retriever, err = search.NewRetriever(b.repos.Sources, b.repos.Chunks, b.provider,
		search.WithParser(temporal.NewParser(temporal.WithLocation(o.location))),
		search.WithLogger(o.logger),
	)
	if err != nil {
		return err
	}

	b.composer, err = chat.NewComposer(b.retriever, b.provider,
		chat.WithLimit(o.limit),
		chat.WithLocation(o.location),
		chat.WithLogger(o.logger),
	)
	return err
}

// Close releases the pipeline, the provider when the Brain built it, and the database.
func (b *Brain) Close() error {
	var errs []error
	if b.pipeline != nil {
		b.pipeline.Release()
	}
	if b.ownsProvider && b.provider != nil {
		if err := b.provider.Close(); err != nil {
			b.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if b.repos != nil {
		if err := b.repos.Close(); err != nil {
			b.logger.Error("error closing storage", "err", err)
			errs = append(errs, err)
		}
	}
	if b.tempBlobDir != "" {
		if err := os.RemoveAll(b.tempBlobDir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SubmitText stores a text note and queues it for ingestion.
func (b *Brain) SubmitText(ctx context.Context, userID string, note TextNote) (*Submission, error) {
	if strings.TrimSpace(note.Text) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyContent)
	}
	title := strings.TrimSpace(note.Title)
	if title == "" {
		title = DefaultTextTitle
	}

	return b.submit(ctx, &core.Source{
		UserID:    userID,
		Type:      core.SourceTypeText,
		Title:     title,
		Content:   note.Text,
		Timestamp: note.Timestamp,
	})
}

// SubmitFile stores an uploaded file and queues it for ingestion.
// Audio files become audio sources; everything else is a document.
func (b *Brain) SubmitFile(ctx context.Context, userID string, upload FileUpload) (*Submission, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyUser)
	}
	if len(upload.Data) == 0 {
		return nil, fmt.Errorf("%w: no file uploaded", core.ErrValidation)
	}
	if int64(len(upload.Data)) > b.maxUpload {
		return nil, fmt.Errorf("%w: %w: %d bytes exceeds %d", core.ErrValidation, ErrUploadTooLarge, len(upload.Data), b.maxUpload)
	}

	mimeType, err := uploadMimeType(upload)
	if err != nil {
		return nil, err
	}

	sourceType := core.SourceTypeDocument
	if extract.IsAudio(mimeType, upload.Filename) {
		sourceType = core.SourceTypeAudio
	}
	title := strings.TrimSpace(upload.Title)
	if title == "" {
		title = upload.Filename
	}

	location, err := b.blobs.Save(ctx, upload.Filename, upload.Data)
	if err != nil {
		return nil, err
	}

	sub, err := b.submit(ctx, &core.Source{
		UserID:    userID,
		Type:      sourceType,
		Title:     title,
		Location:  location,
		MimeType:  mimeType,
		Timestamp: upload.Timestamp,
	})
	if err != nil {
		if delErr := b.blobs.Delete(ctx, location); delErr != nil {
			b.logger.Warn("failed to remove orphaned upload", "location", location, "err", delErr)
		}
		return nil, err
	}
	return sub, nil
}

// uploadMimeType accepts an upload by extension or by declared type and
// returns the mimetype recorded on its source.
func uploadMimeType(upload FileUpload) (string, error) {
	declared := extract.BaseType(upload.MimeType)
	byExt, extOK := extract.MimeTypeFor(upload.Filename)

	switch {
	case declared != "" && declared != "application/octet-stream" && extract.Accepted(declared):
		return declared, nil
	case extOK:
		return byExt, nil
	default:
		return "", fmt.Errorf("%w: %w: %q (%s)", core.ErrValidation, ErrUnsupportedUpload, upload.Filename, upload.MimeType)
	}
}

func (b *Brain) submit(ctx context.Context, source *core.Source) (*Submission, error) {
	stored, job, err := b.repos.Submit(ctx, source)
	if err != nil {
		return nil, err
	}

	b.logger.Info("source submitted", "sourceID", stored.Id, "jobID", job.Id, "type", stored.Type, "user", stored.UserID)
	return &Submission{Source: stored, Job: job}, nil
}

// GetJob returns a job by ID.
func (b *Brain) GetJob(ctx context.Context, id core.ID) (*core.Job, error) {
	return b.repos.Jobs.GetJob(ctx, id)
}

// ListJobs returns a user's most recent jobs with their source titles,
// newest first. A non-positive limit selects DefaultJobListLimit.
func (b *Brain) ListJobs(ctx context.Context, userID string, limit int) ([]*core.JobSummary, error) {
	if limit <= 0 {
		limit = DefaultJobListLimit
	}
	jobs, err := b.repos.Jobs.ListJobsByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]core.ID, len(jobs))
	for i, job := range jobs {
		ids[i] = job.SourceID
	}
	sources, err := b.repos.Sources.GetSources(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byID := make(map[core.ID]*core.Source, len(sources))
	for _, s := range sources {
		byID[s.Id] = s
	}

	summaries := make([]*core.JobSummary, len(jobs))
	for i, job := range jobs {
		summary := &core.JobSummary{Job: job}
		if s, ok := byID[job.SourceID]; ok {
			summary.SourceTitle = s.Title
			summary.SourceType = s.Type
		}
		summaries[i] = summary
	}
	return summaries, nil
}

// ChunksBySource returns the chunks ingested from a source, in order.
func (b *Brain) ChunksBySource(ctx context.Context, sourceID core.ID) ([]*core.Chunk, error) {
	return b.repos.Chunks.GetChunksBySource(ctx, sourceID)
}

// Chat answers a question from the user's memory.
func (b *Brain) Chat(ctx context.Context, query, userID string) (*chat.Answer, error) {
	return b.composer.Answer(ctx, query, userID)
}

// Retrieve returns the chunks relevant to query without asking the model.
func (b *Brain) Retrieve(ctx context.Context, query, userID string, limit int) ([]*core.RetrievedChunk, error) {
	return b.retriever.Retrieve(ctx, query, userID, limit)
}

// RetrieveWithMonitor is Retrieve with routing hooks.
func (b *Brain) RetrieveWithMonitor(ctx context.Context, query, userID string, limit int, monitor search.RetrievalMonitor) ([]*core.RetrievedChunk, error) {
	return b.retriever.RetrieveWithMonitor(ctx, query, userID, limit, monitor)
}

// NewWorker returns a worker that ingests this store's queued jobs.
func (b *Brain) NewWorker(opts ...worker.Option) (*worker.Worker, error) {
	return worker.New(b.repos.Jobs, b.pipeline, opts...)
}

// NewReembedder returns a reembedder over every stored chunk using this
// store's embedder. It rewrites chunk vectors in place and is meant for
// maintenance runs with no ingestion in flight; the HTTP server does not
// expose it.
func (b *Brain) NewReembedder(cfg *reembed.Config, opts ...reembed.Option) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(b.repos.Chunks, b.provider.Embedder(), cfg, opts...)
}

// Sources returns the source repository.
func (b *Brain) Sources() storage.SourceRepository { return b.repos.Sources }

// Jobs returns the job repository.
func (b *Brain) Jobs() storage.JobRepository { return b.repos.Jobs }

// Chunks returns the chunk repository.
func (b *Brain) Chunks() storage.ChunkRepository { return b.repos.Chunks }

// Provider returns the AI provider.
func (b *Brain) Provider() ai.AIProvider { return b.provider }
