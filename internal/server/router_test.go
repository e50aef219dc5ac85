package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragkit/internal/api/handlers"
	"github.com/cloo-solutions/ragkit/internal/chunking"
	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/index"
	"github.com/cloo-solutions/ragkit/internal/service"
	"github.com/cloo-solutions/ragkit/internal/source"
)

// keywordEmbedder maps text onto three topic axes.
type keywordEmbedder struct{}

func (keywordEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	text = strings.ToLower(text)
	v := []float32{0.01, 0.01, 0.01}
	for i, kw := range []string{"chocolate", "coffee", "tea"} {
		v[i] += float32(strings.Count(text, kw))
	}
	return v, nil
}

type fixedAnalyzer struct{}

func (fixedAnalyzer) Analyze(_ context.Context, query string) (*domain.QueryAnalysis, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	return &domain.QueryAnalysis{Type: domain.QueryTypeFactual, RewrittenQuery: query, Reasoning: "test"}, nil
}

func (fixedAnalyzer) RewriteWithAnalysis(_ context.Context, query string, _ *domain.QueryAnalysis) (string, error) {
	return query + " facts", nil
}

func setupRouter(t *testing.T) (http.Handler, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "chocolate.md"), []byte("Chocolate is made from roasted cocoa beans. Chocolate melts."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tea.txt"), []byte("Tea leaves are steeped in hot water."), 0o644))

	engine, err := chunking.NewEngine(chunking.DefaultConfig(), nil)
	require.NoError(t, err)
	idx, err := index.NewMemoryIndex(3, domain.SimilarityCosine)
	require.NoError(t, err)

	svc := service.NewRetrievalService(engine, keywordEmbedder{}, idx, fixedAnalyzer{})
	require.NoError(t, svc.Initialize(context.Background()))

	var logs bytes.Buffer
	router := NewRouter(RouterConfig{
		RetrievalHandler: handlers.NewRetrievalHandler(svc, source.NewFilesystemSource(root, nil, nil)),
		AccessLogger:     log.New(&logs, "", 0),
	})
	return router, &logs
}

func do(t *testing.T, router http.Handler, method, path string, body io.Reader) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, logs := setupRouter(t)

	w, resp := do(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	data := resp["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, float64(0), data["records"])
	assert.Contains(t, logs.String(), `"path":"/health"`)
}

func TestRouter_IngestThenSearch(t *testing.T) {
	router, _ := setupRouter(t)

	w, resp := do(t, router, http.MethodPost, "/ingest", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(2), data["documents"])
	assert.Equal(t, float64(2), data["indexed"])
	assert.Empty(t, data["failures"])

	w, resp = do(t, router, http.MethodPost, "/search", strings.NewReader(`{"query":"chocolate","limit":1}`))
	require.Equal(t, http.StatusOK, w.Code)
	results := resp["data"].(map[string]any)["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "chocolate.md_chunk_0", results[0].(map[string]any)["id"])

	w, resp = do(t, router, http.MethodPost, "/retrieve", strings.NewReader(`{"query":"tea"}`))
	require.Equal(t, http.StatusOK, w.Code)
	data = resp["data"].(map[string]any)
	assert.Equal(t, "tea facts", data["rewritten_query"])
	assert.Equal(t, "Factual", data["analysis"].(map[string]any)["type"])
	first := data["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "tea.txt", first["source_file"])

	w, resp = do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp["data"].(map[string]any)["records"])
}

func TestRouter_Analyze(t *testing.T) {
	router, _ := setupRouter(t)

	w, resp := do(t, router, http.MethodPost, "/analyze", strings.NewReader(`{"query":"how is coffee brewed"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, "Factual", data["type"])
	assert.Equal(t, "how is coffee brewed", data["rewritten_query"])
}

func TestRouter_BodyTooLarge(t *testing.T) {
	router, _ := setupRouter(t)

	big := `{"query":"` + strings.Repeat("a", 2<<20) + `"}`
	w, resp := do(t, router, http.MethodPost, "/search", strings.NewReader(big))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "request body too large", resp["error"])
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/knowledge", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
