package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServer_CORSMiddleware(t *testing.T) {
	server := &Server{corsOrigin: "*"}

	handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("sets CORS headers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("OPTIONS preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/detect", nil)
		w := httptest.NewRecorder()

		called := false
		server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, called)
		assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	})
}

func TestServer_ExtractWebSocketOptions(t *testing.T) {
	server := &Server{}

	opts := server.extractWebSocketOptions(nil)
	assert.True(t, opts.IncludeInline)
	assert.True(t, opts.IncludeDisplay)

	opts = server.extractWebSocketOptions(map[string]interface{}{
		"min_confidence":  0.8,
		"include_inline":  false,
		"include_display": true,
	})
	assert.InDelta(t, 0.8, opts.MinConfidence, 1e-9)
	assert.False(t, opts.IncludeInline)
	assert.True(t, opts.IncludeDisplay)

	// Wrongly typed values are ignored.
	opts = server.extractWebSocketOptions(map[string]interface{}{
		"min_confidence": "high",
	})
	assert.InDelta(t, 0.0, opts.MinConfidence, 1e-9)
}
