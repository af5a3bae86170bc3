package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
	"github.com/kirillkom/hybrid-doc-qa/internal/core/ports"
)

// RetrievalObserver receives retrieval telemetry. Satisfied by the metrics
// package; a nil observer disables reporting.
type RetrievalObserver interface {
	ObserveRebuild(index string, ok bool)
	ObserveRetrieval(chunks int, duration time.Duration, ok bool)
}

// RetrievalOptions is the tuning surface of the hybrid engine. Weights scale
// each retriever's positional contribution and need not sum to one.
type RetrievalOptions struct {
	TopK         int
	SparseWeight float64
	DenseWeight  float64
}

func (o RetrievalOptions) normalize() RetrievalOptions {
	out := o
	if out.TopK <= 0 {
		out.TopK = 3
	}
	if out.SparseWeight < 0 {
		out.SparseWeight = 0
	}
	if out.DenseWeight < 0 {
		out.DenseWeight = 0
	}
	return out
}

// RetrievalService owns the rebuild lifecycle of both indexes and fuses
// their rankings into the single ordered result set consumed by answer
// generation. It is the only writer of index state; queries are read-only
// and freely concurrent.
type RetrievalService struct {
	store    ports.CorpusStore
	dense    ports.RetrieverIndex
	sparse   ports.RetrieverIndex
	opts     RetrievalOptions
	logger   *slog.Logger
	observer RetrievalObserver

	// rebuildMu serializes OnCorpusChanged and ClearAll; at most one rebuild
	// is in flight, and a clear issued during a rebuild discards its result
	// by resetting both indexes after the rebuild releases the lock.
	rebuildMu sync.Mutex
}

func NewRetrievalService(
	store ports.CorpusStore,
	dense ports.RetrieverIndex,
	sparse ports.RetrieverIndex,
	opts RetrievalOptions,
	logger *slog.Logger,
	observer RetrievalObserver,
) *RetrievalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalService{
		store:    store,
		dense:    dense,
		sparse:   sparse,
		opts:     opts.normalize(),
		logger:   logger,
		observer: observer,
	}
}

// OnCorpusChanged rebuilds the statistical index, then the lexical index,
// synchronously. The order carries no semantic weight but stays fixed so
// rebuilds are deterministic. Until each swap completes, queries keep
// reading the previous snapshot.
func (s *RetrievalService) OnCorpusChanged(ctx context.Context) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	chunks := s.store.AllText(ctx)

	if err := s.dense.Rebuild(ctx, chunks); err != nil {
		s.logger.Error("statistical index rebuild failed", "error", err)
		s.observeRebuild("tfidf", false)
	} else {
		s.observeRebuild("tfidf", true)
	}

	if err := s.sparse.Rebuild(ctx, chunks); err != nil {
		s.logger.Error("lexical index rebuild failed", "error", err)
		s.observeRebuild("bm25", false)
	} else {
		s.observeRebuild("bm25", true)
	}
}

// Retrieve queries both indexes for 2*TopK candidates each, fuses the two
// rankings by weighted rank position and returns the overall top TopK
// chunks. Never fails: every error path degrades to an empty result.
func (s *RetrievalService) Retrieve(ctx context.Context, question string) (out []domain.RetrievedChunk) {
	start := time.Now()
	ok := true
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("hybrid retrieval panicked", "panic", r, "query", question)
			out = nil
			ok = false
		}
		s.observeRetrieval(len(out), time.Since(start), ok)
	}()

	fetch := 2 * s.opts.TopK
	allText := s.store.AllText(ctx)

	var sparseHits, denseHits []domain.ScoredChunk
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sparseHits = s.sparse.Query(gctx, question, fetch)
		return nil
	})
	g.Go(func() error {
		denseHits = s.dense.Query(gctx, question, fetch)
		return nil
	})
	_ = g.Wait()

	s.logger.Debug("hybrid retrieval candidates",
		"sparse", len(sparseHits), "dense", len(denseHits), "query", question)

	out = s.fuse(allText, sparseHits, denseHits)
	s.annotateSources(ctx, out)
	return out
}

// annotateSources resolves each fused chunk to its owning document's
// filename. Best-effort: a chunk whose document cannot be resolved keeps an
// empty source.
func (s *RetrievalService) annotateSources(ctx context.Context, chunks []domain.RetrievedChunk) {
	for i := range chunks {
		docID, ok := s.store.DocumentForChunk(ctx, chunks[i].ChunkIndex)
		if !ok {
			continue
		}
		doc, err := s.store.GetByID(ctx, docID)
		if err != nil {
			continue
		}
		chunks[i].Source = doc.Filename
	}
}

type fusedCandidate struct {
	chunkIndex int
	text       string
	score      float64
}

// fuse converts each candidate's rank position into a weighted positional
// score, linear from the top of its list to the bottom, and accumulates
// scores per chunk by text identity. Raw retriever scores are never mixed:
// cosine similarity and BM25 live on incomparable scales.
func (s *RetrievalService) fuse(allText []string, sparseHits, denseHits []domain.ScoredChunk) []domain.RetrievedChunk {
	acc := make(map[string]*fusedCandidate, len(sparseHits)+len(denseHits))

	addList := func(hits []domain.ScoredChunk, weight float64) {
		length := len(hits)
		for rank, hit := range hits {
			if hit.ChunkIndex < 0 || hit.ChunkIndex >= len(allText) {
				// stale hit from an index built over a corpus that has
				// since been cleared
				continue
			}
			text := allText[hit.ChunkIndex]
			candidate, seen := acc[text]
			if !seen {
				candidate = &fusedCandidate{chunkIndex: hit.ChunkIndex, text: text}
				acc[text] = candidate
			}
			if hit.ChunkIndex < candidate.chunkIndex {
				candidate.chunkIndex = hit.ChunkIndex
			}
			candidate.score += weight * float64(length-rank)
		}
	}

	addList(sparseHits, s.opts.SparseWeight)
	addList(denseHits, s.opts.DenseWeight)

	fused := make([]*fusedCandidate, 0, len(acc))
	for _, candidate := range acc {
		fused = append(fused, candidate)
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].chunkIndex < fused[j].chunkIndex
	})
	if len(fused) > s.opts.TopK {
		fused = fused[:s.opts.TopK]
	}

	out := make([]domain.RetrievedChunk, 0, len(fused))
	for _, candidate := range fused {
		out = append(out, domain.RetrievedChunk{
			ChunkIndex: candidate.chunkIndex,
			Text:       candidate.text,
			Score:      candidate.score,
		})
	}
	return out
}

// ClearAll empties the chunk store and invalidates both indexes. Safe at any
// time: a rebuild in flight finishes first and its snapshot is discarded by
// the resets below.
func (s *RetrievalService) ClearAll(ctx context.Context) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	s.store.Clear(ctx)
	s.dense.Reset()
	s.sparse.Reset()
	s.logger.Info("corpus and indexes cleared")
}

func (s *RetrievalService) observeRebuild(index string, ok bool) {
	if s.observer != nil {
		s.observer.ObserveRebuild(index, ok)
	}
}

func (s *RetrievalService) observeRetrieval(chunks int, d time.Duration, ok bool) {
	if s.observer != nil {
		s.observer.ObserveRetrieval(chunks, d, ok)
	}
}
