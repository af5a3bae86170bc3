// Package extractor turns stored uploads into plain text, dispatching on
// mime type and file extension. Formats: PDF, XLSX, and UTF-8 plain text.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
	"github.com/kirillkom/hybrid-doc-qa/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	switch kind(doc) {
	case "pdf":
		return extractPDF(raw)
	case "xlsx":
		return extractXLSX(raw)
	default:
		return extractPlaintext(raw, doc.Filename)
	}
}

func kind(doc *domain.Document) string {
	mime := strings.ToLower(doc.MimeType)
	switch {
	case strings.Contains(mime, "pdf"):
		return "pdf"
	case strings.Contains(mime, "spreadsheet"):
		return "xlsx"
	}
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".pdf":
		return "pdf"
	case ".xlsx", ".xlsm":
		return "xlsx"
	}
	return "text"
}
