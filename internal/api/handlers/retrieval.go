package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragkit/internal/api"
	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/service"
	"github.com/cloo-solutions/ragkit/internal/source"
)

// RetrievalService is the part of service.RetrievalService the API exposes.
type RetrievalService interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
	Retrieve(ctx context.Context, query string, k int) (*service.RetrieveOutput, error)
	AnalyzeQuery(ctx context.Context, query string) (*domain.QueryAnalysis, error)
	IngestSource(ctx context.Context, src service.DocumentSource) (*domain.IngestReport, error)
	Count(ctx context.Context) (int, error)
}

type RetrievalHandler struct {
	svc RetrievalService
	src service.DocumentSource
}

// NewRetrievalHandler creates the handler. src is the source re-ingested by
// POST /ingest; ingestion is unavailable when it is nil.
func NewRetrievalHandler(svc RetrievalService, src service.DocumentSource) *RetrievalHandler {
	return &RetrievalHandler{svc: svc, src: src}
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type AnalyzeRequest struct {
	Query string `json:"query"`
}

type IngestRequest struct {
	// Documents restricts ingestion to these names of the configured source.
	Documents []string `json:"documents,omitempty"`
}

type SearchResultResponse struct {
	ID         string  `json:"id"`
	SourceFile string  `json:"source_file"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

type SearchResponse struct {
	Results []*SearchResultResponse `json:"results"`
}

type AnalysisResponse struct {
	Type           string `json:"type"`
	RewrittenQuery string `json:"rewritten_query"`
	Reasoning      string `json:"reasoning,omitempty"`
}

type RetrieveResponse struct {
	Analysis       *AnalysisResponse       `json:"analysis"`
	RewrittenQuery string                  `json:"rewritten_query"`
	Results        []*SearchResultResponse `json:"results"`
}

type IngestFailureResponse struct {
	SourceFile string `json:"source_file"`
	ChunkID    string `json:"chunk_id,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Code       string `json:"code"`
	Error      string `json:"error"`
}

type IngestResponse struct {
	Source          string                   `json:"source"`
	Documents       int                      `json:"documents"`
	Chunks          int                      `json:"chunks"`
	Indexed         int                      `json:"indexed"`
	FailedDocuments int                      `json:"failed_documents"`
	SkippedChunks   int                      `json:"skipped_chunks"`
	Failures        []*IngestFailureResponse `json:"failures"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}

func (h *RetrievalHandler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Count(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, HealthResponse{Status: "ok", Records: n})
}

func (h *RetrievalHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Limit < 0 {
		api.Error(w, http.StatusBadRequest, "limit cannot be negative")
		return
	}

	results, err := h.svc.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SearchResponse{Results: NewSearchResultResponses(results)})
}

func (h *RetrievalHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit < 0 {
		api.Error(w, http.StatusBadRequest, "limit cannot be negative")
		return
	}

	out, err := h.svc.Retrieve(r.Context(), req.Query, req.Limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, RetrieveResponse{
		Analysis:       NewAnalysisResponse(out.Analysis),
		RewrittenQuery: out.RewrittenQuery,
		Results:        NewSearchResultResponses(out.Results),
	})
}

func (h *RetrievalHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	analysis, err := h.svc.AnalyzeQuery(r.Context(), req.Query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, NewAnalysisResponse(analysis))
}

func (h *RetrievalHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.src == nil {
		api.Error(w, http.StatusServiceUnavailable, "no document source configured")
		return
	}

	var req IngestRequest
	if !decode(w, r, &req) {
		return
	}

	var src service.DocumentSource = h.src
	if len(req.Documents) > 0 {
		src = source.Only(h.src, req.Documents)
	}

	rep, err := h.svc.IngestSource(r.Context(), src)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, NewIngestResponse(h.src.Name(), rep))
}

// decode reads an optional JSON body into v. An empty body leaves v zero.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	api.Error(w, http.StatusBadRequest, "invalid request body")
	return false
}

func NewSearchResultResponses(results []domain.SearchResult) []*SearchResultResponse {
	out := make([]*SearchResultResponse, len(results))
	for i, res := range results {
		out[i] = &SearchResultResponse{
			ID:         res.Record.ID,
			SourceFile: res.Record.SourceFile,
			Content:    res.Record.Content,
			Score:      res.Score,
		}
	}
	return out
}

func NewAnalysisResponse(a *domain.QueryAnalysis) *AnalysisResponse {
	if a == nil {
		return nil
	}
	return &AnalysisResponse{
		Type:           string(a.Type),
		RewrittenQuery: a.RewrittenQuery,
		Reasoning:      a.Reasoning,
	}
}

func NewIngestResponse(sourceName string, rep *domain.IngestReport) *IngestResponse {
	resp := &IngestResponse{
		Source:          sourceName,
		Documents:       rep.Documents,
		Chunks:          rep.Chunks,
		Indexed:         rep.Indexed,
		FailedDocuments: rep.FailedDocuments(),
		SkippedChunks:   rep.SkippedChunks(),
		Failures:        make([]*IngestFailureResponse, len(rep.Failures)),
	}
	for i, f := range rep.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		resp.Failures[i] = &IngestFailureResponse{
			SourceFile: f.SourceFile,
			ChunkID:    f.ChunkID,
			Skipped:    f.Skipped,
			Code:       domain.CodeOf(f.Err),
			Error:      msg,
		}
	}
	return resp
}
