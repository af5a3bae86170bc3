package ports

import (
	"context"
	"io"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
)

// CorpusStore is the single owner of chunk text and chunk id assignment.
// Chunk ids form a dense 0-based sequence in insertion order; chunks are
// never mutated or removed individually, only wiped wholesale by Clear.
type CorpusStore interface {
	// AppendDocument registers the document, appends its chunks and returns
	// the assigned chunk ids in order.
	AppendDocument(ctx context.Context, doc *domain.Document, chunks []string) ([]int, error)
	// SeenHash reports whether a document with this content hash was already
	// ingested.
	SeenHash(ctx context.Context, contentHash string) bool
	GetByHash(ctx context.Context, contentHash string) (*domain.Document, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) []domain.Document
	// AllText returns the chunk texts ordered by chunk id; index i is the
	// text of chunk id i.
	AllText(ctx context.Context) []string
	ChunkCount(ctx context.Context) int
	// DocumentForChunk resolves a chunk id to its owning document id.
	DocumentForChunk(ctx context.Context, chunkID int) (string, bool)
	Clear(ctx context.Context)
}

// RetrieverIndex is a derived, disposable view over the corpus. Rebuild
// replaces the whole index; the returned error is advisory for logging and
// metrics, the index itself is already reset to unavailable on failure.
// Query never fails: an unavailable index yields an empty result.
type RetrieverIndex interface {
	Rebuild(ctx context.Context, chunks []string) error
	Query(ctx context.Context, text string, topK int) []domain.ScoredChunk
	Reset()
}

// ObjectStorage stores raw uploaded documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits extracted text into retrieval chunks.
type Chunker interface {
	Split(text string) []string
}

// AnswerGenerator creates the final user-facing answer from ranked chunks.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error)
}

// KnowledgeGraph is an optional collaborator: entity lookup over an external
// graph. Implementations return an empty answer on a miss. A nil port means
// the capability is absent and chat falls through to retrieval.
type KnowledgeGraph interface {
	Lookup(ctx context.Context, question string) (string, error)
}
