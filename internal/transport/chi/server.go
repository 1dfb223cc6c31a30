// Package chi is the HTTP transport: a hand-written chi router over the
// ingestion, retrieval, and admin use cases.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	usageuc "github.com/kailas-cloud/ragdex/internal/usecase/usage"
	"github.com/kailas-cloud/ragdex/internal/version"
)

// maxBodyBytes bounds document uploads.
const maxBodyBytes = 10 << 20

// errorCode values returned in error responses.
const (
	codeBadRequest           = "bad_request"
	codeUnauthorized         = "unauthorized"
	codeNotFound             = "not_found"
	codeTimeout              = "timeout"
	codeRateLimited          = "rate_limited"
	codeQuotaExceeded        = "embedding_quota_exceeded"
	codeEmbeddingUnavailable = "embedding_unavailable"
	codeIndexUnavailable     = "index_unavailable"
	codeDimensionMismatch    = "dimension_mismatch"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Pipeline answers questions.
type Pipeline interface {
	Retrieve(ctx context.Context, question string, topK *int) (domain.RetrievalContext, error)
}

// Ingester ingests documents.
type Ingester interface {
	Ingest(ctx context.Context, doc domain.Document) (ingestuc.Result, error)
}

// Admin is the index administration surface.
type Admin interface {
	Stats(ctx context.Context) domain.Stats
	Reset(ctx context.Context) error
	Backup(ctx context.Context, path string) error
	Restore(ctx context.Context, path string) error
}

// Server is the HTTP API server.
type Server struct {
	pipeline      Pipeline
	ingester      Ingester
	admin         Admin
	usage         *usageuc.Service
	health        *healthuc.Service
	backupDir     string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	pipeline Pipeline,
	ingester Ingester,
	admin Admin,
	usage *usageuc.Service,
	health *healthuc.Service,
	backupDir string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		pipeline:  pipeline,
		ingester:  ingester,
		admin:     admin,
		usage:     usage,
		health:    health,
		backupDir: backupDir,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, codeTimeout),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, codeEmbeddingUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingUnavailable),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, codeDimensionMismatch),
	}
	return s
}

// Router builds the chi router with all routes and middlewares.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chimw.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())
	r.Use(BearerAuthMiddleware(apiKeys))

	r.Get("/health", s.GetHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/documents", s.IngestDocument)
		r.Post("/query", s.Query)
		r.Get("/stats", s.GetStats)
		r.Get("/usage", s.GetUsage)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/reset", s.ResetIndex)
		r.Post("/backup", s.BackupIndex)
		r.Post("/restore", s.RestoreIndex)
	})

	return r
}

type ingestRequest struct {
	ID         string `json:"id"`
	SourceName string `json:"source_name"`
	Text       string `json:"text"`
	Format     string `json:"format"`
}

// IngestDocument handles POST /api/documents.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.SourceName == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "source_name is required")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "text is required")
		return
	}

	format := domain.Format(req.Format)
	switch format {
	case domain.FormatPDF, domain.FormatText:
	case "":
		format = domain.FormatText
	default:
		writeError(w, http.StatusBadRequest, codeBadRequest,
			fmt.Sprintf("format must be %q or %q", domain.FormatPDF, domain.FormatText))
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	result, err := s.ingester.Ingest(r.Context(), domain.Document{
		ID:         req.ID,
		SourceName: req.SourceName,
		RawText:    req.Text,
		Format:     format,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"top_k,omitempty"`
}

// Query handles POST /api/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "question is required")
		return
	}

	rc, err := s.pipeline.Retrieve(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rc)
}

type statsResponse struct {
	TotalEntries    int    `json:"total_entries"`
	DistinctSources int    `json:"distinct_sources"`
	Version         string `json:"version"`
}

// GetStats handles GET /api/stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.admin.Stats(r.Context())
	writeJSON(w, http.StatusOK, statsResponse{
		TotalEntries:    stats.TotalEntries,
		DistinctSources: stats.DistinctSources,
		Version:         version.Version,
	})
}

// GetUsage handles GET /api/usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period := usageuc.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = usageuc.PeriodDay
	}
	writeJSON(w, http.StatusOK, s.usage.GetReport(r.Context(), period))
}

type healthResponse struct {
	Status       string            `json:"status"`
	Checks       map[string]string `json:"checks"`
	IndexEntries int               `json:"index_entries"`
	Version      string            `json:"version"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, healthResponse{
		Status:       string(report.Status),
		Checks:       checks,
		IndexEntries: report.IndexEntries,
		Version:      version.Version,
	})
}

// ResetIndex handles POST /admin/reset.
func (s *Server) ResetIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.Reset(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.logger.Warn("Index reset via admin API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type backupRequest struct {
	Name string `json:"name"`
}

type backupResponse struct {
	Path string `json:"path"`
}

// BackupIndex handles POST /admin/backup.
func (s *Server) BackupIndex(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}
	name := req.Name
	if name == "" {
		name = time.Now().UTC().Format("20060102-150405") + ".json"
	}
	if name != filepath.Base(name) {
		writeError(w, http.StatusBadRequest, codeBadRequest, "name must not contain path separators")
		return
	}

	path := filepath.Join(s.backupDir, name)
	if err := s.admin.Backup(r.Context(), path); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, backupResponse{Path: path})
}

// RestoreIndex handles POST /admin/restore.
func (s *Server) RestoreIndex(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" || req.Name != filepath.Base(req.Name) {
		writeError(w, http.StatusBadRequest, codeBadRequest, "name is required and must be a bare file name")
		return
	}

	path := filepath.Join(s.backupDir, req.Name)
	if err := s.admin.Restore(r.Context(), path); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored", "path": path})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// safeDomainMessage returns the sentinel text only, keeping wrapped internals
// (addresses, file paths) out of responses.
func safeDomainMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrNotFound,
		domain.ErrTimeout,
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrIndexUnavailable,
		domain.ErrDimensionMismatch,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
