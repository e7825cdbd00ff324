package lexical

import (
	"sort"
	"strings"
	"time"

	"docqa/internal/domain"
)

// SessionChunk is a chunk together with its precomputed token set.
type SessionChunk struct {
	domain.Chunk
	Tokens map[string]struct{} `json:"-"`

	lower string
}

// Session is one uploaded, not yet published document. Its chunks never
// change after creation.
type Session struct {
	ID        string         `json:"id"`
	DocName   string         `json:"doc_name"`
	NumPages  int            `json:"numpages"`
	Chunks    []SessionChunk `json:"chunks"`
	CreatedAt time.Time      `json:"created_at"`
}

func newSession(id, docName string, numpages int, chunks []domain.Chunk, now time.Time) *Session {
	ordered := make([]domain.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ChunkIndex < ordered[j].ChunkIndex })

	sc := make([]SessionChunk, len(ordered))
	for i, ch := range ordered {
		sc[i] = SessionChunk{
			Chunk:  ch,
			Tokens: Tokenize(ch.Text),
			lower:  strings.ToLower(ch.Text),
		}
	}
	return &Session{
		ID:        id,
		DocName:   docName,
		NumPages:  numpages,
		Chunks:    sc,
		CreatedAt: now,
	}
}

// PlainChunks returns the session's chunks without token sets.
func (s *Session) PlainChunks() []domain.Chunk {
	out := make([]domain.Chunk, len(s.Chunks))
	for i, ch := range s.Chunks {
		out[i] = ch.Chunk
	}
	return out
}
