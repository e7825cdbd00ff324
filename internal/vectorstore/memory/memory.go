package memory

import (
	"context"
	"sort"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

type entry struct {
	vector []float32
	meta   domain.RAGMetadata
}

// Storage is an in-process vector index using brute-force cosine
// similarity. Namespaces are fully separate maps.
type Storage struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]entry
	dimension  map[string]int
}

var _ vectorstore.Index = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{
		namespaces: make(map[string]map[string]entry),
		dimension:  make(map[string]int),
	}
}

func (s *Storage) Upsert(ctx context.Context, namespace string, vectors [][]float32, metas []domain.RAGMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := vectorstore.ValidateUpsert(namespace, vectors, metas); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension[namespace]
	for i, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return domain.InvalidParametersf("vector %d has dimension %d, namespace uses %d", i, len(v), dim)
		}
	}
	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]entry)
		s.namespaces[namespace] = ns
	}
	s.dimension[namespace] = dim
	for i := range vectors {
		v := make([]float32, len(vectors[i]))
		copy(v, vectors[i])
		ns[vectorstore.EntryID(metas[i].DocID, metas[i].ChunkIndex)] = entry{vector: v, meta: metas[i]}
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.RAGMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns := s.namespaces[namespace]
	results := make([]domain.RAGMatch, 0, len(ns))
	for id, e := range ns {
		meta := e.meta
		results = append(results, domain.RAGMatch{
			ID:       id,
			Score:    vectorstore.Cosine(e.vector, vector),
			Metadata: &meta,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Storage) DeleteDocument(ctx context.Context, namespace, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.namespaces[namespace] {
		if e.meta.DocID == docID {
			delete(s.namespaces[namespace], id)
		}
	}
	return nil
}

// Len returns the number of entries stored in namespace.
func (s *Storage) Len(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace])
}
