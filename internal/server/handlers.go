package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/researchpilot/internal/models"
	"github.com/hyperjump/researchpilot/internal/search"
	"github.com/hyperjump/researchpilot/internal/storage"
)

const (
	serviceName   = "ResearchPilot AI Agent"
	multipartMem  = 32 << 20
	statusSuccess = "success"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": serviceName,
		"version": s.version,
		"status":  "operational",
		"endpoints": map[string]string{
			"papers_upload": "POST /api/v1/papers/upload",
			"papers_ingest": "POST /api/v1/papers/ingest",
			"papers_search": "GET /api/v1/papers/search?query=<query>",
			"papers_stats":  "GET /api/v1/papers/stats",
			"papers_clear":  "POST /api/v1/papers/clear",
			"chat":          "POST /api/v1/chat/chat",
			"chat_health":   "GET /api/v1/chat/health",
			"status":        "GET /api/v1/status",
			"metrics":       "GET /metrics",
		},
		"environment": map[string]string{
			"vector_db":       s.config.Storage.DBPath,
			"data_directory":  s.config.Storage.DataDir,
			"embedding_model": s.deps.EmbeddingModel,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
		"message": "All systems operational",
	})
}

func readiness(ok bool) string {
	if ok {
		return "ready"
	}
	return "not_initialized"
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	llmReady := s.deps.Assistant != nil && s.deps.Assistant.Ready()
	cfg := s.config
	resp := map[string]interface{}{
		"status":  "operational",
		"version": s.version,
		"components": map[string]string{
			"vector_store":       readiness(s.deps.Collection != nil),
			"document_loader":    readiness(s.deps.Indexer != nil),
			"retriever":          readiness(s.deps.Retriever != nil),
			"research_assistant": readiness(s.deps.Assistant != nil),
		},
		"features": map[string]bool{
			"document_ingestion": s.deps.Indexer != nil,
			"semantic_search":    s.deps.Retriever != nil,
			"llm_integration":    llmReady,
			"auto_ingest":        cfg.Watch.Enabled,
		},
		"configuration": map[string]interface{}{
			"vector_db_path":      cfg.Storage.DBPath,
			"data_dir":            cfg.Storage.DataDir,
			"collection_name":     cfg.Storage.CollectionName,
			"embedding_provider":  cfg.Embedding.Provider,
			"embedding_model":     s.deps.EmbeddingModel,
			"embedding_dimension": cfg.Embedding.Dimensions,
			"chunk_size":          cfg.Chunking.ChunkSize,
			"chunk_overlap":       cfg.Chunking.ChunkOverlap,
			"max_top_k":           cfg.Search.MaxTopK,
		},
	}
	if llmReady {
		resp["llm_model"] = *s.deps.Assistant.Model()
	}
	if s.deps.Collection != nil {
		resp["document_count"] = s.deps.Collection.Stats().DocumentCount
	}
	if usage, err := storage.MeasureUsage(cfg.Storage.DatabaseFile(), cfg.Storage.DataDir); err == nil {
		resp["disk_usage_bytes"] = usage.Total()
		resp["disk_usage"] = usage
	} else {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Indexer == nil {
		s.respondErr(w, fmt.Errorf("document loader: %w", models.ErrNotInitialized))
		return
	}
	if max := s.config.Server.MaxUploadBytes; max > 0 {
		if r.ContentLength > max {
			s.respondErr(w, &http.MaxBytesError{Limit: max})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, max)
	}
	if err := r.ParseMultipartForm(multipartMem); err != nil {
		s.respondErr(w, uploadError(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondErr(w, fmt.Errorf("file field is required: %w", models.ErrValidation))
		return
	}
	defer file.Close()

	s.logger.Info("upload request", zap.String("filename", header.Filename), zap.Int64("size", header.Size))
	result, err := s.deps.Indexer.SaveUpload(r.Context(), header.Filename, file)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("invalid multipart form: %w: %w", models.ErrValidation, err)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Indexer == nil {
		s.respondErr(w, fmt.Errorf("document loader: %w", models.ErrNotInitialized))
		return
	}
	result, err := s.deps.Indexer.IngestDirectory(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	q := models.SearchQuery{Query: r.URL.Query().Get("query"), TopK: s.config.Search.DefaultTopK}
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			s.respondErr(w, fmt.Errorf("top_k must be an integer: %w", models.ErrValidation))
			return
		}
		q.TopK = k
	}
	s.search(w, r, &q)
}

func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	q := models.SearchQuery{TopK: s.config.Search.DefaultTopK}
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.respondErr(w, fmt.Errorf("invalid request body: %w", models.ErrValidation))
		return
	}
	s.search(w, r, &q)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, q *models.SearchQuery) {
	if err := q.Validate(); err != nil {
		s.respondErr(w, err)
		return
	}
	if s.deps.Retriever == nil {
		s.respondErr(w, fmt.Errorf("vector store: %w", models.ErrNotInitialized))
		return
	}
	s.logger.Debug("search request", zap.String("query", q.Query), zap.Int("top_k", q.TopK))
	results, err := s.deps.Retriever.Search(r.Context(), q.Query, q.TopK)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		Status:       statusSuccess,
		Query:        q.Query,
		ResultsCount: len(results),
		Results:      results,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collection == nil {
		s.respondErr(w, fmt.Errorf("vector store: %w", models.ErrNotInitialized))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": statusSuccess,
		"data":   s.deps.Collection.Stats(),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collection == nil {
		s.respondErr(w, fmt.Errorf("vector store: %w", models.ErrNotInitialized))
		return
	}
	if err := s.deps.Collection.Clear(r.Context()); err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Warn("collection cleared")
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  statusSuccess,
		"message": "Collection cleared successfully",
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req := models.AnalysisRequest{TopK: s.config.Search.DefaultTopK}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondErr(w, fmt.Errorf("invalid request body: %w", models.ErrValidation))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondErr(w, fmt.Errorf("query cannot be empty: %w", models.ErrValidation))
		return
	}
	if s.deps.Assistant == nil {
		s.respondErr(w, fmt.Errorf("chat service: %w", models.ErrNotInitialized))
		return
	}
	req.TopK = search.ClampTopK(req.TopK, s.config.Search.MaxTopK)
	analysis, err := s.deps.Assistant.Analyze(r.Context(), &req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleChatHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "chat",
		"llm_ready": s.deps.Assistant != nil && s.deps.Assistant.Ready(),
	})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrUnsupportedFile):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNotInitialized),
		errors.Is(err, models.ErrEmbedding),
		errors.Is(err, models.ErrIndex):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrLLM):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"status": "error", "detail": message})
}
