package ingestion

import (
	"context"
	"fmt"

	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/extract"
)

// BlobReader loads the stored bytes of an uploaded file.
type BlobReader interface {
	Read(ctx context.Context, location string) ([]byte, error)
}

// sourceReader produces the raw text of one kind of source.
// Implementations handle a single core.SourceType.
type sourceReader interface {
	read(ctx context.Context, source *core.Source) (string, error)
}

// textReader returns inline content.
type textReader struct{}

func (textReader) read(ctx context.Context, source *core.Source) (string, error) {
	if source.Content == "" {
		return "", fmt.Errorf("%w: text source %d has no content", core.ErrExtraction, source.Id)
	}
	return source.Content, nil
}

// documentReader loads a blob and hands it to the extractor with the declared mimetype.
type documentReader struct {
	blobs     BlobReader
	extractor extract.Extractor
}

func (r documentReader) read(ctx context.Context, source *core.Source) (string, error) {
	data, err := loadBlob(ctx, r.blobs, source)
	if err != nil {
		return "", err
	}
	return r.extractor.Extract(ctx, data, source.MimeType)
}

// audioReader loads the blob to confirm it exists and returns the transcription placeholder.
type audioReader struct {
	blobs BlobReader
}

func (r audioReader) read(ctx context.Context, source *core.Source) (string, error) {
	data, err := loadBlob(ctx, r.blobs, source)
	if err != nil {
		return "", err
	}
	return extract.Transcribe(ctx, data)
}

func loadBlob(ctx context.Context, blobs BlobReader, source *core.Source) ([]byte, error) {
	if blobs == nil {
		return nil, fmt.Errorf("%w: %w", core.ErrExtraction, ErrBlobReaderRequired)
	}
	data, err := blobs.Read(ctx, source.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", core.ErrExtraction, source.Location, err)
	}
	return data, nil
}
