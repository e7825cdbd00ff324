package chunker

import (
	"strconv"

	"docqa/internal/domain"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// WindowChunker splits text into fixed-size, overlapping character windows
// and tags each window with an approximate page number.
type WindowChunker struct {
	chunkSize int
	overlap   int
}

// NewWindowChunker validates the window parameters. chunkSize must be
// greater than overlap, and overlap must not be negative.
func NewWindowChunker(chunkSize, overlap int) (*WindowChunker, error) {
	if chunkSize <= 0 {
		return nil, domain.InvalidParametersf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, domain.InvalidParametersf("overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return nil, domain.InvalidParametersf("overlap %d must be smaller than chunk size %d", overlap, chunkSize)
	}
	return &WindowChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the window width in characters.
func (c *WindowChunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the number of characters shared by consecutive windows.
func (c *WindowChunker) Overlap() int { return c.overlap }

// Chunk slides the window over text. Offsets count runes, not bytes, so a
// window never splits a multi-byte character. numpages below 1 is treated
// as a single page. Empty text yields no chunks.
func (c *WindowChunker) Chunk(text string, numpages int) []domain.Chunk {
	runes := []rune(text)
	total := len(runes)
	if total == 0 {
		return nil
	}
	if numpages < 1 {
		numpages = 1
	}
	step := c.chunkSize - c.overlap
	if step < 1 {
		step = 1
	}

	chunks := make([]domain.Chunk, 0, total/step+1)
	idx := 0
	for start := 0; start < total; start += step {
		end := start + c.chunkSize
		if end > total {
			end = total
		}
		chunks = append(chunks, domain.Chunk{
			ID:         "chunk-" + strconv.Itoa(idx),
			Text:       string(runes[start:end]),
			Page:       approximatePage(start, end, total, numpages),
			ChunkIndex: idx,
			Start:      start,
			End:        end,
		})
		idx++
	}
	return chunks
}

// Chunk is a convenience wrapper around NewWindowChunker and Chunk.
func Chunk(text string, numpages, chunkSize, overlap int) ([]domain.Chunk, error) {
	c, err := NewWindowChunker(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Chunk(text, numpages), nil
}

// approximatePage assumes uniform character density across pages and maps
// the window midpoint onto [1, numpages].
func approximatePage(start, end, total, numpages int) int {
	mid := float64(start) + float64(end-start)/2
	page := 1 + int(mid/float64(total)*float64(numpages))
	if page < 1 {
		return 1
	}
	if page > numpages {
		return numpages
	}
	return page
}
