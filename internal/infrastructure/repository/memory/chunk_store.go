package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
)

var errEmptyChunk = errors.New("empty chunk text")

// ChunkStore is the append-only in-memory owner of chunk text, chunk id
// assignment and the document registry. Chunk ids are dense, 0-based and
// stable for the process lifetime; the only mutation besides append is a
// wholesale Clear.
type ChunkStore struct {
	mu        sync.RWMutex
	chunks    []string
	chunkDocs []string
	docs      map[string]*domain.Document
	byHash    map[string]string
	order     []string
}

func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		docs:   make(map[string]*domain.Document),
		byHash: make(map[string]string),
	}
}

func (s *ChunkStore) AppendDocument(_ context.Context, doc *domain.Document, chunks []string) ([]int, error) {
	if doc == nil || doc.ID == "" {
		return nil, domain.ErrInvalidInput
	}
	for _, chunk := range chunks {
		if chunk == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "append chunks", errEmptyChunk)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(chunks))
	for _, chunk := range chunks {
		ids = append(ids, len(s.chunks))
		s.chunks = append(s.chunks, chunk)
		s.chunkDocs = append(s.chunkDocs, doc.ID)
	}

	stored := *doc
	stored.ChunkIDs = append([]int(nil), ids...)
	stored.UpdatedAt = time.Now().UTC()
	s.docs[stored.ID] = &stored
	if stored.ContentHash != "" {
		s.byHash[stored.ContentHash] = stored.ID
	}
	s.order = append(s.order, stored.ID)

	doc.ChunkIDs = append([]int(nil), ids...)
	return ids, nil
}

func (s *ChunkStore) SeenHash(_ context.Context, contentHash string) bool {
	if contentHash == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byHash[contentHash]
	return ok
}

func (s *ChunkStore) GetByHash(ctx context.Context, contentHash string) (*domain.Document, error) {
	s.mu.RLock()
	id, ok := s.byHash[contentHash]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *ChunkStore) GetByID(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	copyDoc := *doc
	copyDoc.ChunkIDs = append([]int(nil), doc.ChunkIDs...)
	return &copyDoc, nil
}

func (s *ChunkStore) List(_ context.Context) []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.order))
	for _, id := range s.order {
		doc := s.docs[id]
		copyDoc := *doc
		copyDoc.ChunkIDs = append([]int(nil), doc.ChunkIDs...)
		out = append(out, copyDoc)
	}
	return out
}

func (s *ChunkStore) AllText(_ context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.chunks...)
}

func (s *ChunkStore) ChunkCount(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *ChunkStore) DocumentForChunk(_ context.Context, chunkID int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if chunkID < 0 || chunkID >= len(s.chunkDocs) {
		return "", false
	}
	return s.chunkDocs[chunkID], true
}

func (s *ChunkStore) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.chunkDocs = nil
	s.docs = make(map[string]*domain.Document)
	s.byHash = make(map[string]string)
	s.order = nil
}
