package domain

// Chunk is a contiguous slice of a document's extracted text.
// Start and End are half-open rune offsets into the full text.
type Chunk struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Page       int    `json:"page"`
	ChunkIndex int    `json:"chunk_index"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// ScoredChunk is a chunk paired with its lexical relevance score.
type ScoredChunk struct {
	Chunk Chunk `json:"chunk"`
	Score int   `json:"score"`
}

// RAGMetadata is the payload stored next to every vector index entry.
type RAGMetadata struct {
	UserID     string `json:"userId"`
	DocID      string `json:"docId"`
	DocName    string `json:"docName"`
	Page       int    `json:"page"`
	ChunkIndex int    `json:"chunkIndex"`
	Text       string `json:"text"`
}

// RAGMatch is a single vector index query result. Metadata is nil when the
// backing store returned no payload or one that could not be decoded.
type RAGMatch struct {
	ID       string       `json:"id"`
	Score    float64      `json:"score"`
	Metadata *RAGMetadata `json:"metadata,omitempty"`
}
