package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/young1lin/browsersearch/internal/browser"
	"github.com/young1lin/browsersearch/internal/models"
	"github.com/young1lin/browsersearch/internal/runner"
	"github.com/young1lin/browsersearch/internal/search"
	"github.com/young1lin/browsersearch/internal/snapshot"
)

type stubSearcher struct {
	query string
	limit any
	err   error
}

func (s *stubSearcher) Search(_ context.Context, query string, limit any) (*models.SearchResponse, error) {
	s.query, s.limit = query, limit
	if s.err != nil {
		return nil, s.err
	}
	return &models.SearchResponse{
		Query:   query,
		Source:  "google",
		Results: []models.SearchResult{{Title: "Go", URL: "https://go.dev"}},
	}, nil
}

type stubBoot struct {
	ready  bool
	result browser.EnsureResult
}

func (b *stubBoot) Ready() bool { return b.ready }

func (b *stubBoot) Ensure(context.Context) (browser.EnsureResult, error) {
	return b.result, nil
}

func TestHealth(t *testing.T) {
	h := NewSearchHandler(&stubSearcher{}, &stubBoot{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Trace-ID") == "" {
		t.Error("Expected X-Trace-ID header")
	}
}

func TestTraceIDPassthrough(t *testing.T) {
	h := NewSearchHandler(&stubSearcher{}, &stubBoot{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Trace-ID"); got != "abc-123" {
		t.Errorf("Expected trace id abc-123, got %q", got)
	}
}

func TestSearchGET(t *testing.T) {
	s := &stubSearcher{}
	h := NewSearchHandler(s, &stubBoot{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=golang+testing&limit=3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if s.query != "golang testing" {
		t.Errorf("Expected query 'golang testing', got %q", s.query)
	}
	if s.limit != 3.0 {
		t.Errorf("Expected limit 3, got %v", s.limit)
	}

	var resp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if resp.Source != "google" || len(resp.Results) != 1 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestSearchPOST(t *testing.T) {
	s := &stubSearcher{}
	h := NewSearchHandler(s, &stubBoot{})
	body := strings.NewReader(`{"query":"golang","limit":7}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if s.limit != json.Number("7") {
		t.Errorf("Expected json.Number limit, got %#v", s.limit)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad body, got %d", rec.Code)
	}
}

func TestSearchMethodNotAllowed(t *testing.T) {
	h := NewSearchHandler(&stubSearcher{}, &stubBoot{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/search", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		errType string
	}{
		{&search.ValidationError{Reason: "query must not be empty"}, http.StatusBadRequest, "invalid_query"},
		{fmt.Errorf("%w: context deadline exceeded", search.ErrRateLimited), http.StatusTooManyRequests, "rate_limited"},
		{&search.NotReadyError{Instructions: "install it"}, http.StatusServiceUnavailable, "browser_not_ready"},
		{&runner.NotFoundError{Name: "agent-browser"}, http.StatusServiceUnavailable, "browser_not_found"},
		{&runner.TimeoutError{Name: "agent-browser", Timeout: time.Second}, http.StatusGatewayTimeout, "timeout"},
		{&snapshot.SizeError{Size: 11, Max: 10}, http.StatusBadGateway, "output_too_large"},
		{snapshot.ErrInvalidJSON, http.StatusBadGateway, "invalid_output"},
		{errors.New("boom"), http.StatusBadGateway, "search_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.errType, func(t *testing.T) {
			h := NewSearchHandler(&stubSearcher{err: tt.err}, &stubBoot{})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=go", nil))

			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
			var body models.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Invalid error body: %v", err)
			}
			if body.Error.Type != tt.errType {
				t.Errorf("Expected type %s, got %s", tt.errType, body.Error.Type)
			}
			if body.Error.Message != tt.err.Error() {
				t.Errorf("Expected message %q, got %q", tt.err.Error(), body.Error.Message)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	t.Run("Passive", func(t *testing.T) {
		h := NewSearchHandler(&stubSearcher{}, &stubBoot{ready: true})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		var st models.StatusResponse
		json.Unmarshal(rec.Body.Bytes(), &st)
		if rec.Code != http.StatusOK || !st.Ready {
			t.Errorf("Expected ready status, got %d %+v", rec.Code, st)
		}
	})

	t.Run("Ensure fails", func(t *testing.T) {
		boot := &stubBoot{result: browser.EnsureResult{Ready: false, Instructions: "npm install -g agent-browser"}}
		h := NewSearchHandler(&stubSearcher{}, boot)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?ensure=true", nil))

		var st models.StatusResponse
		json.Unmarshal(rec.Body.Bytes(), &st)
		if rec.Code != http.StatusServiceUnavailable || st.Ready || st.Instructions == "" {
			t.Errorf("Expected not-ready status with instructions, got %d %+v", rec.Code, st)
		}
	})
}

func TestNotFound(t *testing.T) {
	h := NewSearchHandler(&stubSearcher{}, &stubBoot{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}
