package vectorstore

import (
	"context"
	"io"
	"sync"

	"docqa/internal/domain"
)

// Factory builds an Index. It should fail with a domain.ErrConfiguration
// error when credentials or index settings are missing.
type Factory func(ctx context.Context) (Index, error)

// Lazy builds its Index on first use and reuses it for the life of the
// process. Failed construction is not cached, so every call attempted before
// the configuration is fixed reports the failure.
type Lazy struct {
	factory Factory

	mu    sync.Mutex
	index Index
}

var _ Index = (*Lazy)(nil)

// NewLazy wraps factory.
func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

func (l *Lazy) get(ctx context.Context) (Index, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index != nil {
		return l.index, nil
	}
	if l.factory == nil {
		return nil, domain.Configurationf("no vector index configured")
	}
	idx, err := l.factory(ctx)
	if err != nil {
		return nil, err
	}
	l.index = idx
	return idx, nil
}

// Upsert implements Index.
func (l *Lazy) Upsert(ctx context.Context, namespace string, vectors [][]float32, metas []domain.RAGMetadata) error {
	idx, err := l.get(ctx)
	if err != nil {
		return err
	}
	return idx.Upsert(ctx, namespace, vectors, metas)
}

// Query implements Index.
func (l *Lazy) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.RAGMatch, error) {
	idx, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Query(ctx, namespace, vector, topK)
}

// DeleteDocument implements Index.
func (l *Lazy) DeleteDocument(ctx context.Context, namespace, docID string) error {
	idx, err := l.get(ctx)
	if err != nil {
		return err
	}
	return idx.DeleteDocument(ctx, namespace, docID)
}

// Close closes the built index if it holds resources. It is a no-op when
// the index was never built.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.index.(io.Closer)
	if !ok {
		return nil
	}
	l.index = nil
	return c.Close()
}
