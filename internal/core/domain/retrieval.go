package domain

// ScoredChunk is a single hit from one retriever index: the chunk's store
// index plus that index's raw, retriever-scale score.
type ScoredChunk struct {
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// RetrievedChunk is a fused, rank-ordered result handed to answer generation.
type RetrievedChunk struct {
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Source     string  `json:"source,omitempty"`
	Score      float64 `json:"score"`
}

type Answer struct {
	Text    string           `json:"text"`
	Sources []RetrievedChunk `json:"sources"`
}
