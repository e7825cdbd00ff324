package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// pointNamespace seeds the name-based UUIDs used as Qdrant point ids.
var pointNamespace = uuid.MustParse("6f1c2a52-3c1e-4b8f-9a55-0d2f5e7b9c41")

// Storage is a minimal REST client to Qdrant. All namespaces share one
// collection and are separated by a payload filter. Qdrant only accepts
// integer or UUID point ids, so the entry id is hashed into a UUID and kept
// in the payload.
type Storage struct {
	url        string
	apiKey     string
	collection string
	distance   string
	client     *http.Client

	mu          sync.Mutex
	initialized bool
}

var _ vectorstore.Index = (*Storage)(nil)

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Distance   string
	Timeout    time.Duration
}

// NewStorage validates cfg. It does not contact the server.
func NewStorage(cfg Config) (*Storage, error) {
	if cfg.URL == "" {
		return nil, domain.Configurationf("qdrant url is not set")
	}
	if cfg.Collection == "" {
		return nil, domain.Configurationf("qdrant collection is not set")
	}
	if cfg.Distance == "" {
		cfg.Distance = "Cosine"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		distance:   cfg.Distance,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// PointID returns the Qdrant point id for an entry in namespace.
func PointID(namespace, entryID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(namespace+"/"+entryID)).String()
}

type payload struct {
	Namespace string `json:"namespace"`
	EntryID   string `json:"entry_id"`
	domain.RAGMetadata
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload payload   `json:"payload"`
}

type match struct {
	Key   string         `json:"key"`
	Match map[string]any `json:"match"`
}

type filter struct {
	Must []match `json:"must"`
}

func fieldEquals(key, value string) match {
	return match{Key: key, Match: map[string]any{"value": value}}
}

func (s *Storage) Upsert(ctx context.Context, namespace string, vectors [][]float32, metas []domain.RAGMetadata) error {
	if err := vectorstore.ValidateUpsert(namespace, vectors, metas); err != nil {
		return err
	}
	if err := s.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}
	points := make([]point, len(metas))
	for i, m := range metas {
		entryID := vectorstore.EntryID(m.DocID, m.ChunkIndex)
		points[i] = point{
			ID:      PointID(namespace, entryID),
			Vector:  vectors[i],
			Payload: payload{Namespace: namespace, EntryID: entryID, RAGMetadata: m},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, "qdrant upsert", http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
}

func (s *Storage) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.RAGMatch, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter":       filter{Must: []match{fieldEquals("namespace", namespace)}},
	}
	var resp struct {
		Result []struct {
			ID      json.RawMessage `json:"id"`
			Score   float64         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, "qdrant search", http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.RAGMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		m := domain.RAGMatch{ID: strings.Trim(string(r.ID), `"`), Score: r.Score}
		if p, ok := decodePayload(r.Payload); ok {
			if p.EntryID != "" {
				m.ID = p.EntryID
			}
			meta := p.RAGMetadata
			m.Metadata = &meta
		}
		results = append(results, m)
	}
	return results, nil
}

func (s *Storage) DeleteDocument(ctx context.Context, namespace, docID string) error {
	body := map[string]any{
		"filter": filter{Must: []match{fieldEquals("namespace", namespace), fieldEquals("docId", docID)}},
	}
	return s.do(ctx, "qdrant delete", http.MethodPost, s.collectionURL("/points/delete?wait=true"), body, nil)
}

// ensureCollection creates the collection on first write when it does not
// exist yet.
func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	err := s.do(ctx, "qdrant get collection", http.MethodGet, s.collectionURL(""), nil, nil)
	var re *domain.RemoteError
	switch {
	case err == nil:
	case errors.As(err, &re) && re.StatusCode == http.StatusNotFound:
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": s.distance,
			},
		}
		if err := s.do(ctx, "qdrant create collection", http.MethodPut, s.collectionURL(""), body, nil); err != nil {
			return err
		}
	default:
		return err
	}
	s.initialized = true
	return nil
}

func decodePayload(raw json.RawMessage) (payload, bool) {
	var p payload
	if len(raw) == 0 || string(raw) == "null" {
		return p, false
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, false
	}
	return p, true
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) do(ctx context.Context, op, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return domain.NewRemoteError(op, 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewRemoteError(op, resp.StatusCode, fmt.Errorf("%s %s: %s", method, url, strings.TrimSpace(string(msg))))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.NewRemoteError(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}
