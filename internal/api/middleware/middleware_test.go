package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, AccountID(c))
	})
	return r
}

func TestAuth(t *testing.T) {
	r := newRouter(Auth(map[string]string{"k1": "account-1", "k2": "account-2"}))

	tests := []struct {
		name    string
		headers map[string]string
		status  int
		account string
	}{
		{"x-api-key", map[string]string{"X-API-Key": "k1"}, http.StatusOK, "account-1"},
		{"bearer", map[string]string{"Authorization": "Bearer k2"}, http.StatusOK, "account-2"},
		{"missing", nil, http.StatusUnauthorized, ""},
		{"unknown", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.account, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"kind":"unauthorized"`)
			}
		})
	}
}

func TestAuthWithoutKeys(t *testing.T) {
	r := newRouter(Auth(nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, LocalAccount, w.Body.String())
}

func TestCORS(t *testing.T) {
	r := newRouter(CORS([]string{"http://localhost:3000"}))

	req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiterPerAccount(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	r := newRouter(Auth(map[string]string{"k1": "a", "k2": "b"}), limiter.Middleware())

	call := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-API-Key", key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("k1"))
	assert.Equal(t, http.StatusOK, call("k1"))
	assert.Equal(t, http.StatusTooManyRequests, call("k1"))
	assert.Equal(t, http.StatusOK, call("k2"), "budgets are per account")
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, 1)
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow("a"))
	}
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newRouter(Logger(zap.New(core)), Auth(nil))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "request", entries[0].Message)
		assert.Equal(t, LocalAccount, entries[0].ContextMap()["account_id"])
		assert.Equal(t, "request failed", entries[1].Message)
		assert.EqualValues(t, 500, entries[1].ContextMap()["status"])
	}
}
