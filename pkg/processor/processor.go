package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"pdf-qa-be/pkg/embedding"
	"pdf-qa-be/pkg/utils"

	"github.com/google/uuid"
)

var (
	// ErrProcessingFailed wraps any ingestion failure. The caller's session
	// state must be left untouched when this is returned.
	ErrProcessingFailed = errors.New("document processing failed")

	// ErrEmptyDocument means the raw bytes held no usable text.
	ErrEmptyDocument = errors.New("document is empty or unreadable")

	// ErrUnsupportedFormat means the format hint names something this
	// processor cannot ingest. Binary format parsing (real PDF decoding)
	// belongs to an upstream extractor, not here.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Format hints which extractor path the raw bytes need. Text-like formats
// are ingested directly; pages are delimited by form-feed characters the way
// upstream PDF-to-text extractors emit them.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// Processor turns raw document bytes into a queryable index handle.
type Processor interface {
	Process(ctx context.Context, raw []byte, hint Format) (*IndexHandle, error)
}

// TextProcessor is the built-in Processor: normalize, page-split, chunk,
// embed, index. Embedding every chunk can take seconds; callers must never
// invoke Process while holding a session store lock.
type TextProcessor struct {
	embedder  embedding.Provider
	chunkSize int
	overlap   int
	logger    *log.Logger
}

func NewTextProcessor(embedder embedding.Provider, chunkSize, overlap int, logger *log.Logger) *TextProcessor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 150
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PROCESSOR] ", log.LstdFlags)
	}
	return &TextProcessor{
		embedder:  embedder,
		chunkSize: chunkSize,
		overlap:   overlap,
		logger:    logger,
	}
}

var _ Processor = &TextProcessor{}

func (p *TextProcessor) Process(ctx context.Context, raw []byte, hint Format) (*IndexHandle, error) {
	switch hint {
	case FormatText, FormatMarkdown, "":
		// text-like, ingest directly
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, hint)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, ErrEmptyDocument
	}

	// Layer 1: normalize at ingestion so embeddings are computed on real
	// words, not character-spaced extractor artifacts.
	pages := splitPages(text)
	chunks := make([]Chunk, 0, len(pages))
	for pageNo, page := range pages {
		cleaned := utils.NormalizeSpacedText(page)
		for _, piece := range utils.SplitText(cleaned, p.chunkSize, p.overlap) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			chunks = append(chunks, Chunk{Text: piece, Page: pageNo + 1})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no text chunks generated", ErrProcessingFailed)
	}

	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			// Aborted mid-build: nothing was installed anywhere, the partial
			// vectors are plain memory and just get dropped.
			return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
		}
		res, err := p.embedder.Generate(c.Text, embedding.TaskDocument)
		if err != nil {
			return nil, fmt.Errorf("%w: embed chunk %d: %v", ErrProcessingFailed, i, err)
		}
		vectors[i] = res.Values
	}

	h := &IndexHandle{
		id:        uuid.NewString(),
		pageCount: len(pages),
		chunks:    chunks,
		vectors:   vectors,
		embedder:  p.embedder,
	}
	p.logger.Printf("indexed document %s: %d pages, %d chunks", h.id, h.pageCount, len(chunks))
	return h, nil
}

// splitPages splits extracted text on form feeds. Text with no page breaks
// is a single page.
func splitPages(text string) []string {
	parts := strings.Split(text, "\f")
	pages := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			pages = append(pages, p)
		}
	}
	if len(pages) == 0 {
		return []string{text}
	}
	return pages
}
