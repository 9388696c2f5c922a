package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRateLimitRejectsBeyondBurst(t *testing.T) {
	r := newRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestRateLimitTracksClientsSeparately(t *testing.T) {
	r := newRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))

	first := httptest.NewRequest(http.MethodGet, "/ping", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	second := httptest.NewRequest(http.MethodGet, "/ping", nil)
	second.RemoteAddr = "10.0.0.2:1234"

	w := httptest.NewRecorder()
	r.ServeHTTP(w, first)
	require.Equal(t, http.StatusOK, w.Code)

	// A different client still has a full bucket.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, second)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSExposesTraceHeaders(t *testing.T) {
	r := newRouter(CORS(DefaultCORSConfig()))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Trace-ID")
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(CORS(DefaultCORSConfig()))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}
