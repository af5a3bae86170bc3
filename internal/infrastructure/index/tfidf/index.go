// Package tfidf implements the statistical retriever index: a term-weighted
// vector per chunk, queried by cosine similarity. The fitted model is an
// immutable snapshot; Rebuild constructs a new one off to the side and swaps
// it in as a single step, so concurrent queries always see a complete index.
package tfidf

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/bbalet/stopwords"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
)

type snapshot struct {
	vocab   map[string]int
	idf     []float64
	vectors []map[int]float64
}

type Index struct {
	logger *slog.Logger

	mu   sync.RWMutex
	snap *snapshot
}

func New(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{logger: logger.With("index", "tfidf")}
}

// Rebuild fits the vocabulary and per-chunk weight vectors over the full
// corpus. Fails softly: on any problem the index is reset to unavailable and
// the error is returned for logging only, never as a hard fault upstream.
func (idx *Index) Rebuild(ctx context.Context, chunks []string) error {
	if err := ctx.Err(); err != nil {
		idx.Reset()
		return fmt.Errorf("tfidf rebuild: %w", err)
	}
	if len(chunks) == 0 {
		idx.Reset()
		idx.logger.Warn("rebuild skipped, corpus is empty")
		return nil
	}

	snap, err := fit(chunks)
	if err != nil {
		idx.Reset()
		idx.logger.Error("rebuild failed", "error", err)
		return domain.WrapError(domain.ErrIndexUnavailable, "tfidf rebuild", err)
	}

	idx.mu.Lock()
	idx.snap = snap
	idx.mu.Unlock()

	idx.logger.Info("index rebuilt", "chunks", len(chunks), "vocabulary", len(snap.vocab))
	return nil
}

// Query embeds the text with the fitted model and ranks every chunk by
// cosine similarity, ties broken by lower chunk index. Returns nil when the
// index is unavailable.
func (idx *Index) Query(_ context.Context, text string, topK int) []domain.ScoredChunk {
	idx.mu.RLock()
	snap := idx.snap
	idx.mu.RUnlock()

	if snap == nil {
		idx.logger.Warn("query against unavailable index")
		return nil
	}
	if topK <= 0 {
		return nil
	}

	query := snap.embed(text)

	hits := make([]domain.ScoredChunk, len(snap.vectors))
	for i, vec := range snap.vectors {
		hits[i] = domain.ScoredChunk{ChunkIndex: i, Score: dot(query, vec)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func (idx *Index) Reset() {
	idx.mu.Lock()
	idx.snap = nil
	idx.mu.Unlock()
}

func fit(chunks []string) (*snapshot, error) {
	tokenized := make([][]string, len(chunks))
	df := make(map[string]int)
	for i, chunk := range chunks {
		tokens := tokenize(chunk)
		tokenized[i] = tokens
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return nil, fmt.Errorf("no indexable terms in %d chunks", len(chunks))
	}

	vocab := make(map[string]int, len(df))
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for i, term := range terms {
		vocab[term] = i
	}

	n := float64(len(chunks))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	snap := &snapshot{vocab: vocab, idf: idf}
	snap.vectors = make([]map[int]float64, len(chunks))
	for i, tokens := range tokenized {
		snap.vectors[i] = snap.vectorize(tokens)
	}
	return snap, nil
}

func (s *snapshot) embed(text string) map[int]float64 {
	return s.vectorize(tokenize(text))
}

// vectorize builds the l2-normalised tf-idf vector for a token sequence.
func (s *snapshot) vectorize(tokens []string) map[int]float64 {
	vec := make(map[int]float64)
	for _, tok := range tokens {
		termID, ok := s.vocab[tok]
		if !ok {
			continue
		}
		vec[termID]++
	}

	var norm float64
	for termID := range vec {
		vec[termID] *= s.idf[termID]
		norm += vec[termID] * vec[termID]
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for termID := range vec {
		vec[termID] /= norm
	}
	return vec
}

// dot of two l2-normalised vectors is their cosine similarity.
func dot(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for termID, v := range a {
		sum += v * b[termID]
	}
	return sum
}

// tokenize lowercases, strips English stop words and splits on alphanumeric
// runs, dropping single-character tokens.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	cleaned := stopwords.CleanString(s, "en", false)

	out := make([]string, 0, 24)
	var b strings.Builder
	flush := func() {
		if b.Len() > 1 {
			out = append(out, b.String())
		}
		b.Reset()
	}
	for _, r := range cleaned {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}
