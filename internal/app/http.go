package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"legalhelp/api/internal/generation"
	"legalhelp/api/internal/lineage"
	"legalhelp/api/internal/logger"
)

const (
	maxBodyBytes    = 10 << 20
	readyTimeout    = 5 * time.Second
	maxVersionLimit = 100
)

type Options struct {
	Generator  Generator
	Usage      UsageReader   // optional
	Versions   VersionReader // optional
	Checks     map[string]Pinger
	Metrics    http.Handler // optional
	Logger     logger.Logger
	CORSOrigin string
}

type HTTPServer struct {
	router     chi.Router
	generator  Generator
	usage      UsageReader
	versions   VersionReader
	checks     map[string]Pinger
	log        logger.Logger
	corsOrigin string
}

func NewHTTPServer(opts Options) *HTTPServer {
	s := &HTTPServer{
		router:     chi.NewRouter(),
		generator:  opts.Generator,
		usage:      opts.Usage,
		versions:   opts.Versions,
		checks:     opts.Checks,
		log:        opts.Logger,
		corsOrigin: opts.CORSOrigin,
	}
	if s.log == nil {
		s.log = logger.NewNoOpLogger()
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}

	s.router.Use(s.withMiddleware)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/ready", s.handleReady)
	s.router.Post("/api/documents/generate", s.handleGenerate)
	s.router.Post("/api/compliance/validate", s.handleComplianceValidate)
	s.router.Get("/api/templates/{id}", s.handleDescribeTemplate)
	if s.usage != nil {
		s.router.Get("/api/templates/{id}/usage", s.handleTemplateUsage)
	}
	if s.versions != nil {
		s.router.Get("/api/templates/{id}/versions", s.handleTemplateVersions)
	}
	if opts.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ok, checks := readiness(r.Context(), s.checks, readyTimeout)
	status, code := "ready", http.StatusOK
	if !ok {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ok":     ok,
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generation.Request
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}

	out, err := s.generator.Generate(r.Context(), body)
	if err != nil {
		s.fail(w, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", out.MimeType)
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	header.Set("Content-Length", fmt.Sprint(len(out.Data)))
	header.Set("X-Generated-At", out.GeneratedAt.UTC().Format(time.RFC3339))
	header.Set("X-Compliance-Status", out.Compliance.Status())
	if out.Version != "" {
		header.Set("X-Document-Version", out.Version)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Data); err != nil {
		s.log.WithError(err).Warn("failed to write document response", map[string]interface{}{
			"filename": out.Filename,
		})
	}
}

func (s *HTTPServer) handleComplianceValidate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Variables map[string]any `json:"variables"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}
	if body.Variables == nil {
		s.fail(w, domainError(http.StatusBadRequest, "INVALID_REQUEST", "variables is required", nil))
		return
	}
	writeJSON(w, http.StatusOK, s.generator.CheckCompliance(body.Variables))
}

func (s *HTTPServer) handleDescribeTemplate(w http.ResponseWriter, r *http.Request) {
	desc, err := s.generator.DescribeTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *HTTPServer) handleTemplateUsage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, err := s.usage.Usage(r.Context(), id)
	if err != nil {
		s.log.WithError(err).Error("failed to read template usage", map[string]interface{}{"template_id": id})
		s.fail(w, domainError(http.StatusServiceUnavailable, "USAGE_UNAVAILABLE", "Usage statistics unavailable", nil))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templateId": id, "usage": stats})
}

func (s *HTTPServer) handleTemplateVersions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxVersionLimit {
			s.fail(w, domainError(http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("limit must be between 1 and %d", maxVersionLimit), nil))
			return
		}
		limit = n
	}

	entries, err := s.versions.History(id, userID, limit)
	if errors.Is(err, lineage.ErrNoLineage) {
		s.fail(w, domainError(http.StatusNotFound, "NO_VERSIONS", "No archived versions for this template", nil))
		return
	}
	if err != nil {
		s.log.WithError(err).Error("failed to read document versions", map[string]interface{}{
			"template_id": id,
			"user_id":     userID,
		})
		s.fail(w, domainError(http.StatusServiceUnavailable, "VERSIONS_UNAVAILABLE", "Document versions unavailable", nil))
		return
	}

	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, map[string]any{
			"version":   e.Version,
			"hash":      e.Hash,
			"message":   e.Message,
			"author":    e.Author,
			"createdAt": e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templateId": id, "userId": userID, "versions": items})
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.log.Info("request", map[string]interface{}{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Document-Version, X-Generated-At, X-Compliance-Status, X-Request-ID")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	if r.Body == nil {
		return invalidBody("request body is required")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidBody("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domainError(http.StatusRequestEntityTooLarge, "INVALID_BODY", "request body too large", nil)
		}
		return invalidBody("invalid JSON body")
	}
	return nil
}

func invalidBody(message string) *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_BODY", message, nil)
}
