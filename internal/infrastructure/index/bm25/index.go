// Package bm25 implements the lexical retriever index: an inverted-index
// corpus with Snowball-stemmed terms, ranked by BM25. Like the statistical
// index, rebuilds construct a fresh corpus aside and swap it in atomically.
package bm25

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/chriscorrea/bm25md"
	"github.com/kljensen/snowball/english"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
)

type Index struct {
	logger *slog.Logger

	mu     sync.RWMutex
	corpus *bm25md.Corpus
}

func New(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{logger: logger.With("index", "bm25")}
}

// Rebuild discards any previous corpus and indexes every chunk under its
// chunk id with stemming applied. Soft-fail: the returned error is advisory,
// the index is already reset when it fires.
func (idx *Index) Rebuild(ctx context.Context, chunks []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			idx.Reset()
			idx.logger.Error("rebuild panicked", "panic", r)
			err = domain.WrapError(domain.ErrIndexUnavailable, "bm25 rebuild", fmt.Errorf("%v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		idx.Reset()
		return fmt.Errorf("bm25 rebuild: %w", err)
	}
	if len(chunks) == 0 {
		idx.Reset()
		idx.logger.Warn("rebuild skipped, corpus is empty")
		return nil
	}

	corpus := bm25md.NewCorpus()
	parser := bm25md.NewMarkdownFieldParser()
	for i, chunk := range chunks {
		corpus.AddDocument(bm25md.Document{
			ID:       i,
			Fields:   parser.ParseDocument(stemText(chunk)),
			Original: chunk,
		})
	}

	idx.mu.Lock()
	idx.corpus = corpus
	idx.mu.Unlock()

	idx.logger.Info("index rebuilt", "chunks", len(chunks))
	return nil
}

// Query stems the query terms and runs a BM25 search, returning up to topK
// hits by descending relevance. Search failures are contained here: the
// retriever contributes an empty candidate list instead of failing the
// hybrid query.
func (idx *Index) Query(_ context.Context, text string, topK int) (hits []domain.ScoredChunk) {
	defer func() {
		if r := recover(); r != nil {
			idx.logger.Error("search panicked", "panic", r, "query", text)
			hits = nil
		}
	}()

	idx.mu.RLock()
	corpus := idx.corpus
	idx.mu.RUnlock()

	if corpus == nil {
		idx.logger.Warn("query against unavailable index")
		return nil
	}
	if topK <= 0 {
		return nil
	}

	stemmed := stemText(text)
	if stemmed == "" {
		return nil
	}

	results := corpus.Search(stemmed, topK)
	hits = make([]domain.ScoredChunk, 0, len(results))
	for _, result := range results {
		hits = append(hits, domain.ScoredChunk{
			ChunkIndex: result.Document.ID,
			Score:      result.Score,
		})
	}
	return hits
}

func (idx *Index) Reset() {
	idx.mu.Lock()
	idx.corpus = nil
	idx.mu.Unlock()
}

// stemText lowercases, splits on alphanumeric runs and stems each token, so
// indexed chunks and queries meet in the same term space.
func stemText(s string) string {
	if s == "" {
		return ""
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, english.Stem(b.String(), false))
		}
		b.Reset()
	}
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return strings.Join(out, " ")
}
