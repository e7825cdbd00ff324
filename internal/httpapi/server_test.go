package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/embedding/hashing"
	"docqa/internal/generation/extractive"
	"docqa/internal/lexical"
	"docqa/internal/service"
	"docqa/internal/vectorstore/memory"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	emb, err := hashing.NewEmbedder(128)
	require.NoError(t, err)
	gen := extractive.New(2)
	svc, err := service.New(lexical.NewStore(lexical.StoreConfig{}), memory.NewStorage(), emb, gen, service.Options{
		ChunkSize:  200,
		Overlap:    40,
		Summarizer: gen,
	})
	require.NoError(t, err)
	return NewEcho(New(svc, Options{MaxUploadBytes: 1 << 10}), Options{})
}

func do(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, r)
	return rec
}

func upload(t *testing.T, e *echo.Echo, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/sessions", &buf)
	r.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

const leaflet = "Metformin lowers blood sugar in type 2 diabetes. Take metformin with meals. " +
	"Common side effects include nausea and stomach upset. Store tablets at room temperature."

func TestSessionLifecycle(t *testing.T) {
	e := newTestServer(t)

	rec := upload(t, e, "leaflet.txt", leaflet)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[sessionResp](t, rec)
	assert.NotEmpty(t, created.SessionID)
	assert.Equal(t, "leaflet.txt", created.DocName)
	assert.Equal(t, 1, created.NumPages)
	assert.Equal(t, 1, created.PagesRead)
	assert.False(t, created.Truncated)
	assert.Positive(t, created.Chunks)

	rec = do(t, e, http.MethodGet, "/sessions/"+created.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[sessionResp](t, rec)
	assert.NotEmpty(t, got.Summary)

	rec = do(t, e, http.MethodPost, "/sessions/"+created.SessionID+"/search", questionReq{Question: "side effects", TopK: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	search := decode[struct {
		Results []domain.ScoredChunk `json:"results"`
	}](t, rec)
	require.Len(t, search.Results, 1)
	assert.Contains(t, search.Results[0].Chunk.Text, "side effects")

	rec = do(t, e, http.MethodPost, "/sessions/"+created.SessionID+"/ask", questionReq{Question: "What are the side effects?"})
	require.Equal(t, http.StatusOK, rec.Code)
	ans := decode[service.Answer](t, rec)
	assert.True(t, ans.Found)
	assert.Contains(t, ans.Text, "nausea")

	rec = do(t, e, http.MethodPost, "/sessions/"+created.SessionID+"/ask", questionReq{Question: "zebra"})
	require.Equal(t, http.StatusOK, rec.Code)
	ans = decode[service.Answer](t, rec)
	assert.False(t, ans.Found)
	assert.Equal(t, service.NoRelevantContent, ans.Text)

	rec = do(t, e, http.MethodDelete, "/sessions/"+created.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, e, http.MethodPost, "/sessions/"+created.SessionID+"/ask", questionReq{Question: "side effects"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, sessionExpiredMessage, decode[map[string]string](t, rec)["error"])
}

func TestUploadLimitsAndValidation(t *testing.T) {
	e := newTestServer(t)

	rec := upload(t, e, "big.txt", strings.Repeat("x", 2<<10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "file too large", decode[map[string]string](t, rec)["error"])

	// Far beyond the limit the body is refused before the form is parsed.
	rec = upload(t, e, "huge.txt", strings.Repeat("x", 256<<10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, http.StatusText(http.StatusRequestEntityTooLarge), decode[map[string]string](t, rec)["error"])

	rec = do(t, e, http.MethodPost, "/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, e, "blob.bin", "\x00\x01\x02")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishAndNamespaceQueries(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodPost, "/namespaces/alice/documents", publishDocumentReq{
		DocID: "leaflet", DocName: "leaflet.pdf", Text: leaflet, NumPages: 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode[map[string]any](t, rec)["chunks"])

	rec = do(t, e, http.MethodPost, "/namespaces/alice/search", questionReq{Question: "metformin meals"})
	require.Equal(t, http.StatusOK, rec.Code)
	search := decode[struct {
		Matches []domain.RAGMatch `json:"matches"`
	}](t, rec)
	require.NotEmpty(t, search.Matches)
	assert.Equal(t, "leaflet::chunk-0", search.Matches[0].ID)

	rec = do(t, e, http.MethodPost, "/namespaces/bob/search", questionReq{Question: "metformin meals"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"matches":[]}`, rec.Body.String())

	rec = do(t, e, http.MethodPost, "/namespaces/alice/ask", questionReq{Question: "metformin meals"})
	require.Equal(t, http.StatusOK, rec.Code)
	ans := decode[service.Answer](t, rec)
	assert.True(t, ans.Found)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, "leaflet", ans.Sources[0].DocID)

	rec = do(t, e, http.MethodDelete, "/namespaces/alice/documents/leaflet", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, e, http.MethodPost, "/namespaces/alice/search", questionReq{Question: "metformin meals"})
	assert.JSONEq(t, `{"matches":[]}`, rec.Body.String())
}

func TestPublishSessionRoute(t *testing.T) {
	e := newTestServer(t)
	created := decode[sessionResp](t, upload(t, e, "leaflet.txt", leaflet))

	rec := do(t, e, http.MethodPost, "/sessions/"+created.SessionID+"/publish", publishSessionReq{Namespace: "carol"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, created.SessionID, body["doc_id"])

	rec = do(t, e, http.MethodPost, "/sessions/"+created.SessionID+"/publish", publishSessionReq{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuestionRequired(t *testing.T) {
	e := newTestServer(t)
	rec := do(t, e, http.MethodPost, "/namespaces/alice/ask", questionReq{Question: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "question is required", decode[map[string]string](t, rec)["error"])
}

func TestHealthAndVars(t *testing.T) {
	e := newTestServer(t)
	rec := do(t, e, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodGet, "/debug/vars", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sessions_created_total")
}

// failingBackend returns err from every namespace call.
type failingBackend struct {
	Backend
	err error
}

func (f failingBackend) AskNamespace(context.Context, string, string) (service.Answer, error) {
	return service.Answer{}, f.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid", domain.InvalidParametersf("bad"), http.StatusBadRequest},
		{"session", domain.ErrSessionNotFound, http.StatusNotFound},
		{"configuration", domain.Configurationf("PINECONE_INDEX is not set"), http.StatusServiceUnavailable},
		{"remote", domain.NewRemoteError("query", 500, errors.New("boom")), http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("surprise"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEcho(New(failingBackend{err: tt.err}, Options{}), Options{})
			rec := do(t, e, http.MethodPost, "/namespaces/x/ask", questionReq{Question: "q"})
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}
