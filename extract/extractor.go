package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/xuri/excelize/v2"
)

// AudioTranscriptPlaceholder is the text produced for every audio source.
const AudioTranscriptPlaceholder = "[Audio transcription placeholder]"

// Extractor converts document bytes with a declared mimetype into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

// DocumentExtractor is the default Extractor.
type DocumentExtractor struct {
	logger *slog.Logger
}

var _ Extractor = (*DocumentExtractor)(nil)

// Option configures a DocumentExtractor.
type Option func(*DocumentExtractor) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *DocumentExtractor) error {
		e.logger = logger
		return nil
	}
}

// NewDocumentExtractor creates an extractor for PDF, text, markdown, HTML and XLSX.
func NewDocumentExtractor(opts ...Option) (*DocumentExtractor, error) {
	e := &DocumentExtractor{}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "extractor")
	return e, nil
}

// Extract returns the text content of data.
func (e *DocumentExtractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	mt := BaseType(mimeType)
	var (
		text string
		err  error
	)
	switch mt {
	case MimePDF:
		text, err = loadDocuments(ctx, documentloaders.NewPDF(bytes.NewReader(data), int64(len(data))))
	case MimeText, MimeMarkdown, "text/x-markdown":
		text, err = loadDocuments(ctx, documentloaders.NewText(bytes.NewReader(data)))
	case MimeHTML:
		text, err = extractHTML(data)
	case MimeXLSX:
		text, err = extractXLSX(data)
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, mimeType)
	}
	if err != nil {
		e.logger.Warn("extraction failed", "mimetype", mt, "bytes", len(data), "err", err)
		return "", fmt.Errorf("%w: %s: %w", core.ErrExtraction, mt, err)
	}
	e.logger.Debug("extracted document", "mimetype", mt, "bytes", len(data), "chars", len(text))
	return text, nil
}

// Transcribe returns the fixed audio placeholder. Transcription is not implemented.
func Transcribe(ctx context.Context, data []byte) (string, error) {
	return AudioTranscriptPlaceholder, nil
}

func loadDocuments(ctx context.Context, loader documentloaders.Loader) (string, error) {
	docs, err := loader.Load(ctx)
	if err != nil {
		return "", err
	}
	return joinPages(docs), nil
}

func joinPages(docs []schema.Document) string {
	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		if content := strings.TrimSpace(doc.PageContent); content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n\n")
}

// extractHTML keeps the title and the text of headings, paragraphs and list items,
// preferring main or article content when present.
func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var parts []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}

	sel := doc.Find("main, article")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	sel.Find("h1,h2,h3,h4,p,li,pre,blockquote").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(parts, "\n"), nil
}

// extractXLSX renders each sheet as a heading followed by tab-separated rows.
func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sheet)
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			b.WriteByte('\n')
			b.WriteString(line)
		}
	}
	return b.String(), nil
}
