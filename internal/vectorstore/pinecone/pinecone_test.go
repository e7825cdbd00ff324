package pinecone

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	pc "github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/vectortest"
)

type record struct {
	values   []float32
	metadata *pc.Metadata
}

// fakeIndex keeps every namespace of one index in memory and hands out
// per-namespace connections shaped like *pc.IndexConnection.
type fakeIndex struct {
	mu         sync.Mutex
	namespaces map[string]map[string]record
	pageSize   int
	dials      map[string]int
	lists      int
	closed     int
	failWith   error
	matches    []*pc.ScoredVector
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{namespaces: map[string]map[string]record{}, dials: map[string]int{}, pageSize: 2}
}

func (f *fakeIndex) dial(_, namespace string) (dataPlane, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials[namespace]++
	return &fakeConn{f: f, ns: namespace}, nil
}

func (f *fakeIndex) storage() *Storage {
	return newStorage("medical-abc.svc.pinecone.io", 0, f.dial)
}

type fakeConn struct {
	f  *fakeIndex
	ns string
}

func (c *fakeConn) UpsertVectors(ctx context.Context, in []*pc.Vector) (uint32, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if c.f.failWith != nil {
		return 0, c.f.failWith
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ns := c.f.namespaces[c.ns]
	if ns == nil {
		ns = map[string]record{}
		c.f.namespaces[c.ns] = ns
	}
	for _, v := range in {
		ns[v.Id] = record{values: *v.Values, metadata: v.Metadata}
	}
	return uint32(len(in)), nil
}

func (c *fakeConn) QueryByVectorValues(ctx context.Context, in *pc.QueryByVectorValuesRequest) (*pc.QueryVectorsResponse, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if c.f.failWith != nil {
		return nil, c.f.failWith
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.f.matches != nil {
		return &pc.QueryVectorsResponse{Matches: c.f.matches}, nil
	}
	var matches []*pc.ScoredVector
	for id, rec := range c.f.namespaces[c.ns] {
		matches = append(matches, &pc.ScoredVector{
			Vector: &pc.Vector{Id: id, Metadata: rec.metadata},
			Score:  float32(vectorstore.Cosine(rec.values, in.Vector)),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Vector.Id < matches[j].Vector.Id
	})
	if len(matches) > int(in.TopK) {
		matches = matches[:in.TopK]
	}
	return &pc.QueryVectorsResponse{Matches: matches}, nil
}

func (c *fakeConn) ListVectors(_ context.Context, in *pc.ListVectorsRequest) (*pc.ListVectorsResponse, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.lists++
	var ids []string
	for id := range c.f.namespaces[c.ns] {
		if in.Prefix == nil || strings.HasPrefix(id, *in.Prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	start := 0
	if in.PaginationToken != nil {
		for start < len(ids) && ids[start] < *in.PaginationToken {
			start++
		}
	}
	resp := &pc.ListVectorsResponse{}
	end := start + c.f.pageSize
	if end < len(ids) {
		next := ids[end]
		resp.NextPaginationToken = &next
	} else {
		end = len(ids)
	}
	for _, id := range ids[start:end] {
		id := id
		resp.VectorIds = append(resp.VectorIds, &id)
	}
	return resp, nil
}

func (c *fakeConn) DeleteVectorsById(_ context.Context, ids []string) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	for _, id := range ids {
		delete(c.f.namespaces[c.ns], id)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.closed++
	return nil
}

func TestStorage_Contract(t *testing.T) {
	vectortest.Run(t, func(t *testing.T) vectorstore.Index {
		return newFakeIndex().storage()
	})
}

func TestNewStorage_Configuration(t *testing.T) {
	ctx := context.Background()
	_, err := NewStorage(ctx, Config{IndexName: "medical"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = NewStorage(ctx, Config{APIKey: "pk-test"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

// controlPlane answers describe-index calls the way the Pinecone API does.
func controlPlane(t *testing.T, describes *int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") != "pk-test" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"UNAUTHENTICATED","message":"invalid api key"},"status":401}`))
			return
		}
		if r.URL.Path != "/indexes/medical" {
			http.NotFound(w, r)
			return
		}
		*describes++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"name": "medical",
			"dimension": 3,
			"metric": "cosine",
			"host": "medical-abc.svc.pinecone.io",
			"vector_type": "dense",
			"deletion_protection": "disabled",
			"spec": {"serverless": {"cloud": "aws", "region": "us-east-1"}},
			"status": {"ready": true, "state": "Ready"}
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewStorage_ResolvesHost(t *testing.T) {
	describes := 0
	srv := controlPlane(t, &describes)

	s, err := NewStorage(context.Background(), Config{APIKey: "pk-test", IndexName: "medical", ControllerURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "medical-abc.svc.pinecone.io", s.host)
	assert.Equal(t, 1, describes)

	s, err = NewStorage(context.Background(), Config{APIKey: "pk-test", Host: "other-xyz.svc.pinecone.io", ControllerURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "other-xyz.svc.pinecone.io", s.host)
	assert.Equal(t, 1, describes, "explicit host skips lookup")
}

func TestNewStorage_DescribeFailureIsRemote(t *testing.T) {
	describes := 0
	srv := controlPlane(t, &describes)
	_, err := NewStorage(context.Background(), Config{APIKey: "wrong", IndexName: "medical", ControllerURL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.NotErrorIs(t, err, domain.ErrConfiguration)
}

func TestStorage_ReusesConnectionPerNamespace(t *testing.T) {
	f := newFakeIndex()
	s := f.storage()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Upsert(ctx, "alice", [][]float32{{1, 0}}, []domain.RAGMetadata{vectortest.Meta("d", i, "t")}))
	}
	_, err := s.Query(ctx, "bob", []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"alice": 1, "bob": 1}, f.dials)

	require.NoError(t, s.Close())
	assert.Equal(t, 2, f.closed)
}

func TestStorage_DeletePaginates(t *testing.T) {
	f := newFakeIndex()
	s := f.storage()
	ctx := context.Background()

	var vectors [][]float32
	var metas []domain.RAGMetadata
	for i := 0; i < 5; i++ {
		vectors = append(vectors, []float32{1, float32(i)})
		metas = append(metas, vectortest.Meta("big", i, "t"))
	}
	require.NoError(t, s.Upsert(ctx, "ns", vectors, metas))
	require.NoError(t, s.Upsert(ctx, "ns", [][]float32{{1, 1}}, []domain.RAGMetadata{vectortest.Meta("bigger", 0, "t")}))

	require.NoError(t, s.DeleteDocument(ctx, "ns", "big"))
	assert.Len(t, f.namespaces["ns"], 1)
	assert.Contains(t, f.namespaces["ns"], "bigger::chunk-0")
	assert.Equal(t, 3, f.lists)
}

func TestStorage_MetadataDecoding(t *testing.T) {
	good, err := structpb.NewStruct(map[string]any{
		"docId": "d", "chunkIndex": 2, "page": 1, "text": "t", "userId": "u", "docName": "d.pdf",
	})
	require.NoError(t, err)
	bad, err := structpb.NewStruct(map[string]any{"chunkIndex": "oops"})
	require.NoError(t, err)

	f := newFakeIndex()
	f.matches = []*pc.ScoredVector{
		{Vector: &pc.Vector{Id: "d::chunk-2", Metadata: good}, Score: 0.91},
		{Vector: &pc.Vector{Id: "d::chunk-3"}, Score: 0.5},
		{Vector: &pc.Vector{Id: "d::chunk-4", Metadata: bad}, Score: 0.4},
		nil,
	}
	matches, err := f.storage().Query(context.Background(), "ns", []float32{1}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	require.NotNil(t, matches[0].Metadata)
	assert.Equal(t, 2, matches[0].Metadata.ChunkIndex)
	assert.Equal(t, 1, matches[0].Metadata.Page)
	assert.Equal(t, "d.pdf", matches[0].Metadata.DocName)
	assert.Nil(t, matches[1].Metadata)
	assert.Nil(t, matches[2].Metadata)
	assert.InDelta(t, 0.91, matches[0].Score, 1e-6)
}

func TestStorage_UpsertWritesEntryIDsAndMetadata(t *testing.T) {
	f := newFakeIndex()
	require.NoError(t, f.storage().Upsert(context.Background(), "user-9", [][]float32{{0.5}}, []domain.RAGMetadata{vectortest.Meta("rep", 7, "body")}))

	rec, ok := f.namespaces["user-9"]["rep::chunk-7"]
	require.True(t, ok)
	assert.Equal(t, []float32{0.5}, rec.values)
	meta := rec.metadata.AsMap()
	assert.Equal(t, "rep", meta["docId"])
	assert.Equal(t, float64(7), meta["chunkIndex"])
	assert.Equal(t, "body", meta["text"])
}

func TestStorage_ErrorMapping(t *testing.T) {
	f := newFakeIndex()
	f.failWith = errors.New("rpc error: code = Unavailable")
	s := f.storage()

	err := s.Upsert(context.Background(), "ns", [][]float32{{1}}, []domain.RAGMetadata{vectortest.Meta("d", 0, "t")})
	assert.ErrorIs(t, err, domain.ErrRemote)
	_, err = s.Query(context.Background(), "ns", []float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrRemote)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Query(ctx, "ns", []float32{1}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrRemote)
}
