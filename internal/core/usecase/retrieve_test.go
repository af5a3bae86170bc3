package usecase

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/kirillkom/hybrid-doc-qa/internal/core/domain"
)

func scored(indexes ...int) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, 0, len(indexes))
	for i, idx := range indexes {
		out = append(out, domain.ScoredChunk{ChunkIndex: idx, Score: float64(len(indexes) - i)})
	}
	return out
}

func TestRetrieveReturnsAtMostTopK(t *testing.T) {
	store := newFakeCorpusStore("c0", "c1", "c2", "c3", "c4", "c5")
	sparse := &fakeIndex{hits: scored(0, 1, 2, 3, 4, 5)}
	dense := &fakeIndex{hits: scored(5, 4, 3, 2, 1, 0)}
	svc := NewRetrievalService(store, dense, sparse,
		RetrievalOptions{TopK: 3, SparseWeight: 0.3, DenseWeight: 0.7}, nil, nil)

	out := svc.Retrieve(context.Background(), "anything")
	if len(out) != 3 {
		t.Fatalf("expected exactly top k results, got %d", len(out))
	}
	if sparse.lastTopK != 6 || dense.lastTopK != 6 {
		t.Fatalf("expected both indexes queried for 2*topK candidates, got %d/%d",
			sparse.lastTopK, dense.lastTopK)
	}
}

func TestRetrieveFusesByWeightedRankPosition(t *testing.T) {
	store := newFakeCorpusStore("t0", "t1", "t2", "t3", "t4")
	sparse := &fakeIndex{hits: scored(0, 2, 3, 1, 4)}
	dense := &fakeIndex{hits: scored(0, 1, 2, 3, 4)}
	svc := NewRetrievalService(store, dense, sparse,
		RetrievalOptions{TopK: 5, SparseWeight: 0.3, DenseWeight: 0.7}, nil, nil)

	out := svc.Retrieve(context.Background(), "q")
	if len(out) != 5 {
		t.Fatalf("expected 5 fused chunks, got %v", out)
	}
	// Chunk 0 tops both lists: 0.3*5 + 0.7*5.
	if out[0].ChunkIndex != 0 || math.Abs(out[0].Score-5.0) > 1e-9 {
		t.Fatalf("expected chunk 0 first with score 5.0, got %+v", out[0])
	}
	// Chunk 4 sits at the bottom of both lists: 0.3*1 + 0.7*1.
	if out[4].ChunkIndex != 4 || math.Abs(out[4].Score-1.0) > 1e-9 {
		t.Fatalf("expected chunk 4 last with score 1.0, got %+v", out[4])
	}
	wantOrder := []int{0, 1, 2, 3, 4}
	for i, want := range wantOrder {
		if out[i].ChunkIndex != want {
			t.Fatalf("expected order %v, got %+v", wantOrder, out)
		}
	}
}

func TestRetrieveWeightsSteerTheFusion(t *testing.T) {
	store := newFakeCorpusStore("c0", "c1", "c2", "c3")
	sparse := &fakeIndex{hits: scored(2, 0, 1)}
	dense := &fakeIndex{hits: scored(1, 3)}
	svc := NewRetrievalService(store, dense, sparse,
		RetrievalOptions{TopK: 2, SparseWeight: 1, DenseWeight: 0}, nil, nil)

	out := svc.Retrieve(context.Background(), "q")
	if len(out) != 2 || out[0].ChunkIndex != 2 || out[1].ChunkIndex != 0 {
		t.Fatalf("expected pure lexical order [2 0] with dense weight zero, got %+v", out)
	}
}

func TestRetrieveAccumulatesByTextIdentity(t *testing.T) {
	store := newFakeCorpusStore("same", "same", "other")
	sparse := &fakeIndex{hits: scored(1)}
	dense := &fakeIndex{hits: scored(0)}
	svc := NewRetrievalService(store, dense, sparse,
		RetrievalOptions{TopK: 3, SparseWeight: 0.3, DenseWeight: 0.7}, nil, nil)

	out := svc.Retrieve(context.Background(), "q")
	if len(out) != 1 {
		t.Fatalf("expected identical texts fused into one candidate, got %+v", out)
	}
	if out[0].ChunkIndex != 0 {
		t.Fatalf("expected the lowest contributing chunk id, got %+v", out[0])
	}
	if math.Abs(out[0].Score-1.0) > 1e-9 {
		t.Fatalf("expected accumulated score 0.3*1 + 0.7*1, got %v", out[0].Score)
	}
}

func TestRetrieveAnnotatesSourceDocuments(t *testing.T) {
	ctx := context.Background()
	store := newFakeCorpusStore()
	if _, err := store.AppendDocument(ctx, &domain.Document{ID: "doc-1", Filename: "paper.pdf"}, []string{"c0", "c1"}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	sparse := &fakeIndex{hits: scored(0)}
	dense := &fakeIndex{hits: scored(1)}
	svc := NewRetrievalService(store, dense, sparse,
		RetrievalOptions{TopK: 3, SparseWeight: 0.3, DenseWeight: 0.7}, nil, nil)

	out := svc.Retrieve(ctx, "q")
	if len(out) != 2 {
		t.Fatalf("expected 2 chunks, got %+v", out)
	}
	for _, chunk := range out {
		if chunk.Source != "paper.pdf" {
			t.Fatalf("expected the owning document's filename as source, got %+v", out)
		}
	}
}

func TestRetrieveSkipsStaleHits(t *testing.T) {
	store := newFakeCorpusStore("c0", "c1")
	sparse := &fakeIndex{hits: scored(10)}
	dense := &fakeIndex{hits: scored(0)}
	svc := NewRetrievalService(store, dense, sparse,
		RetrievalOptions{TopK: 3, SparseWeight: 0.3, DenseWeight: 0.7}, nil, nil)

	out := svc.Retrieve(context.Background(), "q")
	if len(out) != 1 || out[0].ChunkIndex != 0 {
		t.Fatalf("expected stale index hit dropped, got %+v", out)
	}
}

func TestRetrieveOnEmptyStateIsSafe(t *testing.T) {
	store := newFakeCorpusStore()
	observer := &recordingObserver{}
	svc := NewRetrievalService(store, &fakeIndex{}, &fakeIndex{},
		RetrievalOptions{TopK: 3, SparseWeight: 0.3, DenseWeight: 0.7}, nil, observer)

	out := svc.Retrieve(context.Background(), "q")
	if len(out) != 0 {
		t.Fatalf("expected empty result before any ingestion, got %+v", out)
	}
	if observer.retrievals != 1 || !observer.lastOK || observer.lastChunks != 0 {
		t.Fatalf("expected a successful zero-chunk observation, got %+v", observer)
	}
}

func TestRetrieveTiesBreakOnLowerChunkIndex(t *testing.T) {
	store := newFakeCorpusStore("a", "b")
	sparse := &fakeIndex{hits: scored(0, 1)}
	dense := &fakeIndex{hits: scored(1, 0)}
	svc := NewRetrievalService(store, dense, sparse,
		RetrievalOptions{TopK: 2, SparseWeight: 0.5, DenseWeight: 0.5}, nil, nil)

	first := svc.Retrieve(context.Background(), "q")
	second := svc.Retrieve(context.Background(), "q")
	if len(first) != 2 || first[0].ChunkIndex != 0 {
		t.Fatalf("expected the tie to resolve to chunk 0, got %+v", first)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results across runs: %+v vs %+v", first, second)
	}
}

func TestOnCorpusChangedRebuildsBothIndexes(t *testing.T) {
	store := newFakeCorpusStore("c0", "c1")
	sparse := &fakeIndex{}
	dense := &fakeIndex{rebuildErr: domain.ErrIndexUnavailable}
	observer := &recordingObserver{}
	svc := NewRetrievalService(store, dense, sparse,
		RetrievalOptions{TopK: 3, SparseWeight: 0.3, DenseWeight: 0.7}, nil, observer)

	svc.OnCorpusChanged(context.Background())

	if dense.rebuilds != 1 || sparse.rebuilds != 1 {
		t.Fatalf("expected one rebuild per index, got %d/%d", dense.rebuilds, sparse.rebuilds)
	}
	if len(dense.lastChunks) != 2 || len(sparse.lastChunks) != 2 {
		t.Fatal("expected both indexes rebuilt over the full corpus")
	}
	// A failing rebuild is advisory: the other index still rebuilds and the
	// failure is reported, not propagated.
	if !reflect.DeepEqual(observer.rebuilds, []string{"tfidf", "bm25"}) {
		t.Fatalf("expected tfidf then bm25 observations, got %v", observer.rebuilds)
	}
	if observer.rebuildOK[0] || !observer.rebuildOK[1] {
		t.Fatalf("expected failed tfidf and successful bm25, got %v", observer.rebuildOK)
	}
}

func TestClearAllResetsStoreAndIndexes(t *testing.T) {
	store := newFakeCorpusStore("c0")
	sparse := &fakeIndex{}
	dense := &fakeIndex{}
	svc := NewRetrievalService(store, dense, sparse,
		RetrievalOptions{TopK: 3, SparseWeight: 0.3, DenseWeight: 0.7}, nil, nil)

	svc.ClearAll(context.Background())

	if !store.cleared {
		t.Fatal("expected the corpus store cleared")
	}
	if dense.resets != 1 || sparse.resets != 1 {
		t.Fatalf("expected both indexes reset, got %d/%d", dense.resets, sparse.resets)
	}
}

func TestRetrievalOptionsNormalize(t *testing.T) {
	opts := RetrievalOptions{TopK: 0, SparseWeight: -1, DenseWeight: -2}.normalize()
	if opts.TopK != 3 {
		t.Fatalf("expected top k fallback 3, got %d", opts.TopK)
	}
	if opts.SparseWeight != 0 || opts.DenseWeight != 0 {
		t.Fatalf("expected negative weights clamped to zero, got %+v", opts)
	}
}
