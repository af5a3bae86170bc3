package ports

import (
	"context"
	"io"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// RetrievalFacade owns the index rebuild lifecycle and is the single query
// entry point for the answer-generation layer. Retrieve never fails: every
// core failure degrades to an empty result.
type RetrievalFacade interface {
	OnCorpusChanged(ctx context.Context)
	Retrieve(ctx context.Context, question string) []domain.RetrievedChunk
	ClearAll(ctx context.Context)
}

// DocumentQueryService answers a question over the ingested corpus.
type DocumentQueryService interface {
	Answer(ctx context.Context, question string) (*domain.Answer, error)
}

// ChatService runs one chat exchange and returns the updated session history.
type ChatService interface {
	Chat(ctx context.Context, sessionID, message string) ([]domain.ChatMessage, error)
	ClearSessions()
}

// DocumentReader is the inbound read model for document metadata.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) []domain.Document
}
