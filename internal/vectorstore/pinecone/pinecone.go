// Package pinecone stores vectors in a Pinecone index through the official
// Go SDK. Each namespace maps onto a native Pinecone namespace.
package pinecone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	pc "github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

const defaultTimeout = 20 * time.Second

type Config struct {
	APIKey    string
	IndexName string
	// Host skips the describe-index lookup when set.
	Host string
	// ControllerURL overrides the control plane address.
	ControllerURL string
	Timeout       time.Duration
}

// dataPlane is the part of *pc.IndexConnection that Storage uses.
type dataPlane interface {
	UpsertVectors(ctx context.Context, in []*pc.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pc.QueryByVectorValuesRequest) (*pc.QueryVectorsResponse, error)
	ListVectors(ctx context.Context, in *pc.ListVectorsRequest) (*pc.ListVectorsResponse, error)
	DeleteVectorsById(ctx context.Context, ids []string) error
	Close() error
}

type dialer func(host, namespace string) (dataPlane, error)

// Storage talks to one Pinecone index. Index connections are opened once per
// namespace and reused.
type Storage struct {
	host    string
	timeout time.Duration
	dial    dialer

	mu    sync.Mutex
	conns map[string]dataPlane
}

var _ vectorstore.Index = (*Storage)(nil)

// NewStorage validates cfg and resolves the index host. Missing credentials
// or index name fail with domain.ErrConfiguration; a failed lookup fails
// with domain.ErrRemote.
func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.APIKey == "" {
		return nil, domain.Configurationf("pinecone api key is not set")
	}
	if cfg.IndexName == "" && cfg.Host == "" {
		return nil, domain.Configurationf("pinecone index name is not set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client, err := pc.NewClient(pc.NewClientParams{
		ApiKey:     cfg.APIKey,
		Host:       cfg.ControllerURL,
		RestClient: &http.Client{Timeout: cfg.Timeout},
		SourceTag:  "docqa",
	})
	if err != nil {
		return nil, domain.Configurationf("pinecone client: %v", err)
	}

	host := cfg.Host
	if host == "" {
		idx, err := client.DescribeIndex(ctx, cfg.IndexName)
		if err != nil {
			return nil, remoteErr(ctx, "pinecone describe index", err)
		}
		if idx == nil || idx.Host == "" {
			return nil, domain.NewRemoteError("pinecone describe index", 0, fmt.Errorf("index %q has no host", cfg.IndexName))
		}
		host = idx.Host
	}
	return newStorage(host, cfg.Timeout, func(host, namespace string) (dataPlane, error) {
		return client.Index(pc.NewIndexConnParams{Host: host, Namespace: namespace})
	}), nil
}

func newStorage(host string, timeout time.Duration, dial dialer) *Storage {
	return &Storage{host: host, timeout: timeout, dial: dial, conns: map[string]dataPlane{}}
}

// Close closes every open index connection.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for ns, c := range s.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.conns, ns)
	}
	return first
}

func (s *Storage) conn(namespace string) (dataPlane, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[namespace]; ok {
		return c, nil
	}
	c, err := s.dial(s.host, namespace)
	if err != nil {
		return nil, domain.NewRemoteError("pinecone connect", 0, err)
	}
	s.conns[namespace] = c
	return c, nil
}

func (s *Storage) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Storage) Upsert(ctx context.Context, namespace string, vectors [][]float32, metas []domain.RAGMetadata) error {
	if err := vectorstore.ValidateUpsert(namespace, vectors, metas); err != nil {
		return err
	}
	batch := make([]*pc.Vector, len(metas))
	for i, m := range metas {
		md, err := structpb.NewStruct(map[string]any{
			"userId":     m.UserID,
			"docId":      m.DocID,
			"docName":    m.DocName,
			"page":       m.Page,
			"chunkIndex": m.ChunkIndex,
			"text":       m.Text,
		})
		if err != nil {
			return fmt.Errorf("pinecone metadata for %s: %w", m.DocID, err)
		}
		values := vectors[i]
		batch[i] = &pc.Vector{
			Id:       vectorstore.EntryID(m.DocID, m.ChunkIndex),
			Values:   &values,
			Metadata: md,
		}
	}
	c, err := s.conn(namespace)
	if err != nil {
		return err
	}
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	if _, err := c.UpsertVectors(cctx, batch); err != nil {
		return remoteErr(ctx, "pinecone upsert", err)
	}
	return nil
}

// Query returns matches in the order Pinecone ranked them.
func (s *Storage) Query(ctx context.Context, namespace string, vec []float32, topK int) ([]domain.RAGMatch, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	c, err := s.conn(namespace)
	if err != nil {
		return nil, err
	}
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	resp, err := c.QueryByVectorValues(cctx, &pc.QueryByVectorValuesRequest{
		Vector:          vec,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, remoteErr(ctx, "pinecone query", err)
	}
	if resp == nil {
		return []domain.RAGMatch{}, nil
	}
	results := make([]domain.RAGMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		results = append(results, domain.RAGMatch{
			ID:       m.Vector.Id,
			Score:    float64(m.Score),
			Metadata: decodeMetadata(m.Vector.Metadata),
		})
	}
	return results, nil
}

// DeleteDocument lists the document's entries by id prefix and deletes them
// page by page.
func (s *Storage) DeleteDocument(ctx context.Context, namespace, docID string) error {
	c, err := s.conn(namespace)
	if err != nil {
		return err
	}
	prefix := docID + vectorstore.EntrySeparator + "chunk-"
	var token *string
	for {
		cctx, cancel := s.callCtx(ctx)
		page, err := c.ListVectors(cctx, &pc.ListVectorsRequest{Prefix: &prefix, PaginationToken: token})
		cancel()
		if err != nil {
			return remoteErr(ctx, "pinecone list", err)
		}
		if page == nil {
			return nil
		}
		ids := make([]string, 0, len(page.VectorIds))
		for _, id := range page.VectorIds {
			if id != nil {
				ids = append(ids, *id)
			}
		}
		if len(ids) > 0 {
			cctx, cancel := s.callCtx(ctx)
			err := c.DeleteVectorsById(cctx, ids)
			cancel()
			if err != nil {
				return remoteErr(ctx, "pinecone delete", err)
			}
		}
		if page.NextPaginationToken == nil || *page.NextPaginationToken == "" {
			return nil
		}
		token = page.NextPaginationToken
	}
}

// metadata mirrors domain.RAGMetadata with float fields because Pinecone
// returns every number as a float.
type metadata struct {
	UserID     string  `json:"userId"`
	DocID      string  `json:"docId"`
	DocName    string  `json:"docName"`
	Page       float64 `json:"page"`
	ChunkIndex float64 `json:"chunkIndex"`
	Text       string  `json:"text"`
}

func decodeMetadata(md *pc.Metadata) *domain.RAGMetadata {
	if md == nil {
		return nil
	}
	raw, err := json.Marshal(md.AsMap())
	if err != nil {
		return nil
	}
	var m metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return &domain.RAGMetadata{
		UserID:     m.UserID,
		DocID:      m.DocID,
		DocName:    m.DocName,
		Page:       int(m.Page),
		ChunkIndex: int(m.ChunkIndex),
		Text:       m.Text,
	}
}

// remoteErr keeps the caller's cancellation visible and reports everything
// else, including a per-call timeout, as a remote failure.
func remoteErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return domain.NewRemoteError(op, 0, err)
}
