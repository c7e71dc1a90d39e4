package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/young1lin/browsersearch/internal/browser"
	"github.com/young1lin/browsersearch/internal/models"
	"github.com/young1lin/browsersearch/internal/runner"
	"github.com/young1lin/browsersearch/internal/search"
	"github.com/young1lin/browsersearch/internal/snapshot"
	"github.com/young1lin/browsersearch/pkg/logger"
)

const maxRequestBody = 64 * 1024

// Searcher runs validated searches
type Searcher interface {
	Search(ctx context.Context, query string, limit any) (*models.SearchResponse, error)
}

// Bootstrapper reports and establishes browser readiness
type Bootstrapper interface {
	Ready() bool
	Ensure(ctx context.Context) (browser.EnsureResult, error)
}

// SearchHandler serves the HTTP search API
type SearchHandler struct {
	searcher Searcher
	boot     Bootstrapper
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(s Searcher, boot Bootstrapper) *SearchHandler {
	return &SearchHandler{searcher: s, boot: boot}
}

// ServeHTTP handles all HTTP requests
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Check multiple headers that clients might use
	traceID := extractTraceID(r)
	if traceID == "" {
		traceID = generateTraceID()
	}

	r = r.WithContext(logger.ContextWithTraceID(r.Context(), traceID))

	log := logger.WithTraceID(traceID)
	log.Info("request received",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("X-Trace-ID", traceID)

	switch r.URL.Path {
	case "/health":
		h.handleHealth(w, r, log)
	case "/status":
		h.handleStatus(w, r, log)
	case "/search":
		h.handleSearch(w, r, log)
	default:
		h.handleError(w, http.StatusNotFound, "not_found", "Endpoint not found", log)
	}

	log.Info("request completed",
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

// handleHealth handles health check requests
func (h *SearchHandler) handleHealth(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// handleStatus reports browser readiness; ?ensure=true runs the bootstrap first
func (h *SearchHandler) handleStatus(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	if r.URL.Query().Get("ensure") != "true" {
		writeJSON(w, http.StatusOK, models.StatusResponse{Ready: h.boot.Ready()})
		return
	}

	res, err := h.boot.Ensure(r.Context())
	if err != nil {
		h.handleError(w, http.StatusServiceUnavailable, "cancelled", err.Error(), log)
		return
	}
	status := http.StatusOK
	if !res.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, models.StatusResponse{Ready: res.Ready, Instructions: res.Instructions})
}

// handleSearch accepts GET ?q=&limit= or a POST JSON body {"query","limit"}
func (h *SearchHandler) handleSearch(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	var args models.WebSearchArgs

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		args.Query = q.Get("q")
		if args.Query == "" {
			args.Query = q.Get("query")
		}
		args.Limit = search.ParseLimit(q.Get("limit"))
	case http.MethodPost:
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			h.handleError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body", log)
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		h.handleError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Use GET or POST", log)
		return
	}

	resp, err := h.searcher.Search(r.Context(), args.Query, args.Limit)
	if err != nil {
		status, errType := classifyError(err)
		h.handleError(w, status, errType, err.Error(), log)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// classifyError maps search failures to an HTTP status and error type
func classifyError(err error) (int, string) {
	var (
		validationErr *search.ValidationError
		notReadyErr   *search.NotReadyError
		notFoundErr   *runner.NotFoundError
		timeoutErr    *runner.TimeoutError
		sizeErr       *snapshot.SizeError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "invalid_query"
	case errors.Is(err, search.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.As(err, &notReadyErr):
		return http.StatusServiceUnavailable, "browser_not_ready"
	case errors.As(err, &notFoundErr):
		return http.StatusServiceUnavailable, "browser_not_found"
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &sizeErr):
		return http.StatusBadGateway, "output_too_large"
	case errors.Is(err, snapshot.ErrInvalidJSON):
		return http.StatusBadGateway, "invalid_output"
	default:
		return http.StatusBadGateway, "search_failed"
	}
}

// handleError writes an error response
func (h *SearchHandler) handleError(w http.ResponseWriter, status int, errType, message string, log *zap.Logger) {
	log.Error("request error",
		zap.String("error_type", errType),
		zap.String("message", message),
		zap.Int("status", status),
	)

	writeJSON(w, status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Type:    errType,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// extractTraceID extracts trace ID from request headers
func extractTraceID(r *http.Request) string {
	// Check common trace ID headers in order of preference
	headers := []string{
		"X-Trace-ID",
		"X-Request-ID",
		"X-Correlation-ID",
		"Trace-ID",
		"Request-ID",
	}

	for _, header := range headers {
		if id := r.Header.Get(header); id != "" {
			return id
		}
	}

	return ""
}

// generateTraceID generates a new trace ID
func generateTraceID() string {
	id := uuid.New()
	return id.String()[:16]
}
