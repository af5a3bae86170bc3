package chunking

import (
	"strings"
	"testing"
)

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(500, 100)
	if got := s.Split(""); got != nil {
		t.Fatalf("expected no chunks for empty text, got %v", got)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(500, 100)
	got := s.Split("hello world")
	if len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("expected single chunk, got %v", got)
	}
}

func TestSplitOverlappingWindows(t *testing.T) {
	s := NewSplitter(10, 4)
	text := "abcdefghijklmnopqrstuvwxyz"
	got := s.Split(text)

	if len(got) < 3 {
		t.Fatalf("expected at least 3 chunks, got %v", got)
	}
	if got[0] != "abcdefghij" {
		t.Fatalf("unexpected first chunk %q", got[0])
	}
	// Each window starts chunkSize-overlap runes after the previous one.
	if got[1] != "ghijklmnop" {
		t.Fatalf("unexpected second chunk %q", got[1])
	}
	if !strings.HasSuffix(got[len(got)-1], "z") {
		t.Fatalf("expected last chunk to cover end of text, got %q", got[len(got)-1])
	}
}

func TestSplitTrimsWhitespaceChunks(t *testing.T) {
	s := NewSplitter(4, 0)
	got := s.Split("ab      cd")
	for _, c := range got {
		if strings.TrimSpace(c) != c || c == "" {
			t.Fatalf("expected trimmed non-empty chunks, got %v", got)
		}
	}
}

func TestNewSplitterClampsBadOverlap(t *testing.T) {
	s := NewSplitter(100, 100)
	if s.Overlap >= s.ChunkSize {
		t.Fatalf("expected overlap clamped below chunk size, got %d/%d", s.Overlap, s.ChunkSize)
	}
}
