package usecase

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
)

type fakeCorpusStore struct {
	chunks    []string
	chunkDocs []string
	docs      map[string]*domain.Document
	hashes    map[string]string
	appendErr error
	cleared   bool
}

func newFakeCorpusStore(chunks ...string) *fakeCorpusStore {
	s := &fakeCorpusStore{
		docs:   make(map[string]*domain.Document),
		hashes: make(map[string]string),
	}
	for _, c := range chunks {
		s.chunks = append(s.chunks, c)
		s.chunkDocs = append(s.chunkDocs, "seed")
	}
	return s
}

func (s *fakeCorpusStore) AppendDocument(_ context.Context, doc *domain.Document, chunks []string) ([]int, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	ids := make([]int, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, len(s.chunks))
		s.chunks = append(s.chunks, c)
		s.chunkDocs = append(s.chunkDocs, doc.ID)
	}
	stored := *doc
	stored.ChunkIDs = ids
	s.docs[doc.ID] = &stored
	if doc.ContentHash != "" {
		s.hashes[doc.ContentHash] = doc.ID
	}
	doc.ChunkIDs = ids
	return ids, nil
}

func (s *fakeCorpusStore) SeenHash(_ context.Context, contentHash string) bool {
	_, ok := s.hashes[contentHash]
	return ok
}

func (s *fakeCorpusStore) GetByHash(_ context.Context, contentHash string) (*domain.Document, error) {
	id, ok := s.hashes[contentHash]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	doc := *s.docs[id]
	return &doc, nil
}

func (s *fakeCorpusStore) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (s *fakeCorpusStore) List(_ context.Context) []domain.Document {
	out := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, *doc)
	}
	return out
}

func (s *fakeCorpusStore) AllText(_ context.Context) []string {
	return append([]string(nil), s.chunks...)
}

func (s *fakeCorpusStore) ChunkCount(_ context.Context) int { return len(s.chunks) }

func (s *fakeCorpusStore) DocumentForChunk(_ context.Context, chunkID int) (string, bool) {
	if chunkID < 0 || chunkID >= len(s.chunkDocs) {
		return "", false
	}
	return s.chunkDocs[chunkID], true
}

func (s *fakeCorpusStore) Clear(_ context.Context) {
	s.chunks = nil
	s.chunkDocs = nil
	s.docs = make(map[string]*domain.Document)
	s.hashes = make(map[string]string)
	s.cleared = true
}

// fakeIndex returns a preset hit list and records lifecycle calls.
type fakeIndex struct {
	hits       []domain.ScoredChunk
	rebuildErr error

	rebuilds   int
	lastChunks []string
	resets     int
	lastTopK   int
}

func (f *fakeIndex) Rebuild(_ context.Context, chunks []string) error {
	f.rebuilds++
	f.lastChunks = append([]string(nil), chunks...)
	return f.rebuildErr
}

func (f *fakeIndex) Query(_ context.Context, _ string, topK int) []domain.ScoredChunk {
	f.lastTopK = topK
	if len(f.hits) > topK {
		return append([]domain.ScoredChunk(nil), f.hits[:topK]...)
	}
	return append([]domain.ScoredChunk(nil), f.hits...)
}

func (f *fakeIndex) Reset() { f.resets++ }

type fakeRetrieval struct {
	chunks          []domain.RetrievedChunk
	corpusChanges   int
	clears          int
	lastQuestion    string
	retrievalCalled int
}

func (f *fakeRetrieval) OnCorpusChanged(context.Context) { f.corpusChanges++ }

func (f *fakeRetrieval) Retrieve(_ context.Context, question string) []domain.RetrievedChunk {
	f.retrievalCalled++
	f.lastQuestion = question
	return f.chunks
}

func (f *fakeRetrieval) ClearAll(context.Context) { f.clears++ }

type fakeGenerator struct {
	answer     string
	err        error
	lastChunks []domain.RetrievedChunk
	calls      int
}

func (f *fakeGenerator) GenerateAnswer(_ context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	f.calls++
	f.lastChunks = chunks
	if f.err != nil {
		return "", f.err
	}
	if f.answer != "" {
		return f.answer, nil
	}
	return "answer to " + question, nil
}

type fakeStorage struct {
	saved map[string]string
	err   error
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, _ := io.ReadAll(data)
	if f.saved == nil {
		f.saved = make(map[string]string)
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *fakeStorage) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, domain.ErrDocumentNotFound
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, *domain.Document) (string, error) {
	return f.text, f.err
}

// fakeChunker splits on newlines.
type fakeChunker struct{}

func (fakeChunker) Split(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type fakeKnowledgeGraph struct {
	answer string
	err    error
	calls  int
}

func (f *fakeKnowledgeGraph) Lookup(context.Context, string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type recordingObserver struct {
	rebuilds   []string
	rebuildOK  []bool
	retrievals int
	lastChunks int
	lastOK     bool
	ingested   int
}

func (o *recordingObserver) ObserveRebuild(index string, ok bool) {
	o.rebuilds = append(o.rebuilds, index)
	o.rebuildOK = append(o.rebuildOK, ok)
}

func (o *recordingObserver) ObserveRetrieval(chunks int, _ time.Duration, ok bool) {
	o.retrievals++
	o.lastChunks = chunks
	o.lastOK = ok
}

func (o *recordingObserver) ObserveIngestedChunks(n int) { o.ingested += n }
