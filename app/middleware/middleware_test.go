package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), Logger())
	api := r.Group("/api", AuthMiddleware(testSecret))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUser(c).ID})
	})
	api.DELETE("/things/:id", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func token(t *testing.T, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := IssueToken(testSecret, Claims{ID: "u1", Role: role, Username: "alice"}, ttl)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := newEngine()

	tests := []struct {
		name   string
		setup  func(req *http.Request)
		status int
	}{
		{"missing token", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer token", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token(t, "user", time.Hour)) }, http.StatusOK},
		{"expired token", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token(t, "user", -time.Minute)) }, http.StatusUnauthorized},
		{"garbage", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"query token", func(req *http.Request) {
			req.URL.RawQuery = "token=" + token(t, "user", time.Hour)
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	tok, err := IssueToken("other", Claims{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, tok)
	assert.Error(t, err)

	_, err = ParseToken(testSecret, "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestRequireAdmin(t *testing.T) {
	r := newEngine()

	for role, status := range map[string]int{"user": http.StatusForbidden, RoleAdmin: http.StatusNoContent} {
		req := httptest.NewRequest(http.MethodDelete, "/api/things/1", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, role, time.Hour))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, role)
	}
}

func TestRecovery(t *testing.T) {
	r := newEngine()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.NotContains(t, w.Body.String(), "stack")
}

func TestLogger_RequestID(t *testing.T) {
	r := newEngine()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 8)
}

func TestCompressBody(t *testing.T) {
	assert.Equal(t, `{"a":1,"b":[1,2]}`, CompressBody("{\n  \"a\": 1,\n  \"b\": [1, 2]\n}"))
	assert.Equal(t, "", CompressBody(""))
	long := CompressBody(`"` + strings.Repeat("x", 2000) + `"`)
	assert.True(t, strings.HasSuffix(long, "..."))
	assert.Len(t, long, 1003)
}
