package httpserver

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/helixir/citation-enrichment-service/internal/observability"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	var captured string
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = observability.RequestIDFromContext(r.Context())
	}))

	t.Run("uses the incoming header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(correlationHeader, "abc-123")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, "abc-123", captured)
		assert.Equal(t, "abc-123", rr.Header().Get(correlationHeader))
	})

	t.Run("falls back to the chi request id", func(t *testing.T) {
		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(correlationIDMiddleware)
		var fromChi string
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			captured = observability.RequestIDFromContext(r.Context())
			fromChi = middleware.GetReqID(r.Context())
		})

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, captured)
		assert.Equal(t, fromChi, captured)
	})

	t.Run("generates an id when none is available", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Len(t, captured, 16)
		assert.Equal(t, captured, rr.Header().Get(correlationHeader))
	})
}

func TestJSONContentTypeMiddleware(t *testing.T) {
	handler := jsonContentTypeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/", nil))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestRequestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := correlationIDMiddleware(requestLoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set(correlationHeader, "log-me")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/api/v1/stats"`)
	assert.Contains(t, out, `"request_id":"log-me"`)
}
