package usecase

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
	"github.com/kirillkom/hybrid-doc-qa/internal/core/ports"
)

// ChunkCounter receives the number of chunks appended per ingested document.
type ChunkCounter interface {
	ObserveIngestedChunks(n int)
}

// IngestDocumentUseCase runs the whole ingestion pipeline synchronously:
// store the raw upload, extract text, split, append to the corpus, rebuild
// the retrieval indexes. By the time Upload returns, the new document is
// queryable.
type IngestDocumentUseCase struct {
	store     ports.CorpusStore
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	chunker   ports.Chunker
	retrieval ports.RetrievalFacade
	logger    *slog.Logger
	counter   ChunkCounter
}

func NewIngestDocumentUseCase(
	store ports.CorpusStore,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	retrieval ports.RetrievalFacade,
	logger *slog.Logger,
	counter ChunkCounter,
) *IngestDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestDocumentUseCase{
		store:     store,
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		retrieval: retrieval,
		logger:    logger,
		counter:   counter,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload body", errors.New("empty file"))
	}

	sum := md5.Sum(raw)
	contentHash := hex.EncodeToString(sum[:])

	// Idempotent ingestion: a previously seen content hash is never
	// re-chunked and triggers no rebuild.
	if uc.store.SeenHash(ctx, contentHash) {
		existing, err := uc.store.GetByHash(ctx, contentHash)
		if err != nil {
			return nil, fmt.Errorf("resolve duplicate document: %w", err)
		}
		existing.Status = domain.StatusDuplicate
		uc.logger.Info("duplicate upload skipped",
			"filename", filename, "content_hash", contentHash, "document_id", existing.ID)
		return existing, nil
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		ContentHash: contentHash,
		Status:      domain.StatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "split text", errors.New("no chunks produced"))
	}

	// Ingestion is synchronous: the document is queryable by the time Upload
	// returns, so it is stored ready rather than transitioned afterwards.
	doc.Status = domain.StatusReady
	ids, err := uc.store.AppendDocument(ctx, doc, chunks)
	if err != nil {
		return nil, fmt.Errorf("append chunks: %w", err)
	}
	if uc.counter != nil {
		uc.counter.ObserveIngestedChunks(len(ids))
	}

	uc.retrieval.OnCorpusChanged(ctx)

	uc.logger.Info("document ingested",
		"document_id", doc.ID, "filename", filename, "chunks", len(ids))
	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
