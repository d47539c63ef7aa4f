package document

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/docket/pkg/formatting"
	"github.com/JaimeStill/docket/pkg/storage"
)

// Extractor fetches source documents and computes their Metadata.
type Extractor struct {
	store   storage.System
	logger  *slog.Logger
	maxSize int64
}

// NewExtractor creates an Extractor reading from store. A maxSize of zero
// disables the size check.
func NewExtractor(store storage.System, logger *slog.Logger, maxSize int64) *Extractor {
	return &Extractor{
		store:   store,
		logger:  logger.With("system", "document"),
		maxSize: maxSize,
	}
}

// Fetch downloads the document at key. Every failure is reported as
// ErrUnreadableSource, including documents over the size limit.
func (e *Extractor) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := storage.ReadAll(ctx, e.store, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadableSource, key, err)
	}

	if e.maxSize > 0 && int64(len(data)) > e.maxSize {
		return nil, fmt.Errorf(
			"%w: %w: %s is %s (max %s)",
			ErrUnreadableSource, ErrTooLarge, key,
			formatting.FormatBytes(int64(len(data)), 1),
			formatting.FormatBytes(e.maxSize, 1),
		)
	}

	return data, nil
}

// Extract computes Metadata for data. A pdf whose page count cannot be read
// is logged as a corrupt document and treated as a single page.
func (e *Extractor) Extract(data []byte, filename string, chunkCharSize int) (Metadata, error) {
	fileType, err := DetectType(data, filename)
	if err != nil {
		return Metadata{}, err
	}

	if chunkCharSize <= 0 {
		chunkCharSize = DefaultChunkCharSize
	}

	pageCount := 1
	if fileType == PDF {
		n, err := CountPages(data)
		if err != nil {
			e.logger.Warn(
				"page count unavailable, defaulting to one page",
				"filename", filename,
				"error", err,
			)
		} else {
			pageCount = n
		}
	}

	meta := Metadata{
		FileType:            fileType,
		PageCount:           pageCount,
		ByteSize:            int64(len(data)),
		EstimatedChunkCount: max(1, pageCount/PagesPerEstimatedChunk),
		ChunkCharSize:       chunkCharSize,
	}

	e.logger.Info(
		"metadata extracted",
		"filename", filename,
		"file_type", meta.FileType,
		"page_count", meta.PageCount,
		"size", formatting.FormatBytes(meta.ByteSize, 1),
	)

	return meta, nil
}

// CountPages returns the number of pages in a pdf. Failures wrap ErrCorruptDocument.
func CountPages(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorruptDocument, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: no pages", ErrCorruptDocument)
	}
	return n, nil
}
