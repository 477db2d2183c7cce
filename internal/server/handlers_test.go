package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/researchpilot/internal/assistant"
	"github.com/hyperjump/researchpilot/internal/collection"
	"github.com/hyperjump/researchpilot/internal/config"
	"github.com/hyperjump/researchpilot/internal/embedding"
	"github.com/hyperjump/researchpilot/internal/extract"
	"github.com/hyperjump/researchpilot/internal/indexer"
	"github.com/hyperjump/researchpilot/internal/models"
	"github.com/hyperjump/researchpilot/internal/search"
	"github.com/hyperjump/researchpilot/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	dir := t.TempDir()
	cfg.Storage.DBPath = filepath.Join(dir, "vector_db")
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Embedding.Provider = config.ProviderHash
	cfg.Embedding.Dimensions = 32
	cfg.Chunking.Extensions = []string{".txt"}
	return cfg
}

// newStack wires the real pipeline over a temp directory with the hash embedder and no LLM.
func newStack(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	require.NoError(t, cfg.EnsureDirs())
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabaseFile())
	require.NoError(t, err)
	embedder := embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	coll, err := collection.Open(context.Background(), store, cfg.Storage.CollectionName, embedder.Dimensions(),
		collection.WithDBPath(cfg.Storage.DBPath))
	require.NoError(t, err)
	t.Cleanup(func() { _ = coll.Close() })
	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	require.NoError(t, err)
	idx := indexer.NewIndexer(coll, embedder, chunker, extract.NewExtractor(), cfg.Storage.DataDir,
		indexer.WithExtensions(cfg.Chunking.Extensions))
	retriever := search.NewRetriever(embedder, coll, search.WithMaxTopK(cfg.Search.MaxTopK))
	srv := NewServer(Dependencies{
		Retriever:      retriever,
		Assistant:      assistant.New(retriever, nil, assistant.WithMaxTopK(cfg.Search.MaxTopK)),
		Indexer:        idx,
		Collection:     coll,
		EmbeddingModel: embedder.Model(),
	}, cfg, zap.NewNop(), WithVersion("test"))
	return srv, cfg
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var body map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w, body
}

func jsonRequest(method, path string, v interface{}) *http.Request {
	b, _ := json.Marshal(v)
	r := httptest.NewRequest(method, path, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, "/api/v1/papers/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestRootAndHealth(t *testing.T) {
	srv, _ := newStack(t)
	h := srv.Handler()

	w, body := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", body["version"])
	assert.Contains(t, body["endpoints"], "chat")

	w, body = do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])

	w, body = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/chat/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["llm_ready"])
}

func TestStatus(t *testing.T) {
	srv, _ := newStack(t)
	w, body := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	components := body["components"].(map[string]interface{})
	assert.Equal(t, "ready", components["vector_store"])
	features := body["features"].(map[string]interface{})
	assert.Equal(t, false, features["llm_integration"])
	assert.Contains(t, body, "disk_usage_bytes")
	usage := body["disk_usage"].(map[string]interface{})
	assert.Contains(t, usage, "database_bytes")
	assert.Contains(t, usage, "document_files")
	assert.EqualValues(t, 0, body["document_count"])
}

func TestUploadSearchStatsClear(t *testing.T) {
	srv, cfg := newStack(t)
	h := srv.Handler()

	w, body := do(t, h, uploadRequest(t, "transformers.txt", "Self attention lets transformers model long range dependencies."))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "File uploaded and ingested successfully", body["message"])
	assert.Equal(t, "transformers.txt", body["filename"])
	assert.EqualValues(t, 1, body["documents_ingested"])
	assert.FileExists(t, filepath.Join(cfg.Storage.DataDir, "transformers.txt"))

	w, body = do(t, h, httptest.NewRequest(http.MethodGet,
		"/api/v1/papers/search?query="+url.QueryEscape("self attention transformers")+"&top_k=3", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "success", body["status"])
	assert.EqualValues(t, 1, body["results_count"])
	results := body["results"].([]interface{})
	first := results[0].(map[string]interface{})
	assert.EqualValues(t, 1, first["rank"])
	assert.Contains(t, first["document"], "Self attention")
	meta := first["metadata"].(map[string]interface{})
	assert.Equal(t, "transformers.txt", meta["source"])

	w, body = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/papers/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["document_count"])
	assert.Equal(t, cfg.Storage.CollectionName, data["collection_name"])
	assert.EqualValues(t, 32, data["embedding_dimension"])

	w, body = do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/papers/clear", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Collection cleared successfully", body["message"])

	w, body = do(t, h, jsonRequest(http.MethodPost, "/api/v1/papers/search", map[string]interface{}{"query": "attention", "top_k": 5}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["results_count"])
	assert.Empty(t, body["results"])
}

func TestUpload_rejections(t *testing.T) {
	srv, _ := newStack(t)
	h := srv.Handler()

	w, body := do(t, h, uploadRequest(t, "slides.pptx", "x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", body["status"])
	assert.NotEmpty(t, body["detail"])

	w, _ = do(t, h, uploadRequest(t, "blank.txt", "   "))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/papers/upload", strings.NewReader("not multipart"))
	w, _ = do(t, h, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_tooLarge(t *testing.T) {
	srv, cfg := newStack(t)
	cfg.Server.MaxUploadBytes = 64
	w, body := do(t, srv.Handler(), uploadRequest(t, "big.txt", strings.Repeat("x", 1024)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "error", body["status"])
	assert.NoFileExists(t, filepath.Join(cfg.Storage.DataDir, "big.txt"))
}

func TestIngestDirectory_warningWhenEmpty(t *testing.T) {
	srv, _ := newStack(t)
	w, body := do(t, srv.Handler(), httptest.NewRequest(http.MethodPost, "/api/v1/papers/ingest", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "warning", body["status"])
	assert.EqualValues(t, 0, body["documents_ingested"])
}

func TestSearch_emptyQuery(t *testing.T) {
	srv, _ := newStack(t)
	w, body := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/api/v1/papers/search?query=%20", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["detail"], "query cannot be empty")

	w, _ = do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/api/v1/papers/search?query=x&top_k=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_degradedMode(t *testing.T) {
	srv, _ := newStack(t)
	w, body := do(t, srv.Handler(), jsonRequest(http.MethodPost, "/api/v1/chat/chat", map[string]interface{}{"query": "graph neural networks"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, body["model"])
	assert.EqualValues(t, 0, body["source_chunks_used"])
	assert.EqualValues(t, 5, body["top_k"])
	assert.Contains(t, body["analysis"], "No relevant documents were found")

	w, _ = do(t, srv.Handler(), jsonRequest(http.MethodPost, "/api/v1/chat/chat", map[string]interface{}{"query": ""}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubSearcher struct{ err error }

func (s stubSearcher) Search(context.Context, string, int) ([]*models.QueryResult, error) {
	return nil, s.err
}

type stubAnalyzer struct {
	gotTopK int
	err     error
}

func (s *stubAnalyzer) Analyze(_ context.Context, req *models.AnalysisRequest) (*models.Analysis, error) {
	s.gotTopK = req.TopK
	if s.err != nil {
		return nil, s.err
	}
	model := "stub"
	return &models.Analysis{Query: req.Query, Analysis: "ok", TopK: req.TopK, Model: &model}, nil
}

func (s *stubAnalyzer) Ready() bool { return true }

func (s *stubAnalyzer) Model() *string {
	m := "stub"
	return &m
}

func TestChat_clampsTopKAndMapsLLMErrors(t *testing.T) {
	cfg := testConfig(t)
	an := &stubAnalyzer{}
	h := NewServer(Dependencies{Assistant: an}, cfg, nil).Handler()

	w, body := do(t, h, jsonRequest(http.MethodPost, "/api/v1/chat/chat", map[string]interface{}{"query": "q", "top_k": 100}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, an.gotTopK)
	assert.Equal(t, "stub", body["model"])

	an.err = fmt.Errorf("groq: %w", models.ErrLLM)
	w, _ = do(t, h, jsonRequest(http.MethodPost, "/api/v1/chat/chat", map[string]interface{}{"query": "q"}))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestNotInitialized(t *testing.T) {
	h := NewServer(Dependencies{}, testConfig(t), nil).Handler()
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/papers/search?query=x", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/papers/stats", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/papers/clear", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/papers/ingest", nil),
		jsonRequest(http.MethodPost, "/api/v1/chat/chat", map[string]string{"query": "x"}),
	} {
		w, body := do(t, h, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, req.URL.Path)
		assert.Equal(t, "error", body["status"])
	}
}

func TestSearch_embeddingFailure(t *testing.T) {
	cfg := testConfig(t)
	h := NewServer(Dependencies{Retriever: stubSearcher{err: fmt.Errorf("embed query: %w", models.ErrEmbedding)}}, cfg, nil).Handler()
	w, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/papers/search?query=x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", models.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w", models.ErrUnsupportedFile), http.StatusBadRequest},
		{fmt.Errorf("x: %w", models.ErrNoText), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", models.ErrNotInitialized), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", models.ErrEmbedding), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", models.ErrIndex), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", models.ErrLLM), http.StatusBadGateway},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newStack(t)
	r := httptest.NewRequest(http.MethodOptions, "/api/v1/papers/search", nil)
	r.Header.Set("Origin", "http://localhost:5173")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
