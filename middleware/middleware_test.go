package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestOrigin(t *testing.T) {
	check := Origin([]string{"app.example.com", "*.ppchat.io", "localhost:3000"})
	for origin, want := range map[string]bool{
		"":                         true,
		"https://app.example.com":  true,
		"https://m.ppchat.io":      true,
		"http://localhost:3000":    true,
		"http://localhost:4000":    false,
		"https://evil.example.com": false,
		"https://ppchat.io.evil":   false,
		"::bad":                    false,
	} {
		r := httptest.NewRequest(http.MethodGet, "/socket", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		assert.Equal(t, want, check(r), origin)
	}

	r := httptest.NewRequest(http.MethodGet, "/socket", nil)
	r.Header.Set("Origin", "https://anything.test")
	assert.True(t, Origin(nil)(r))
}

func TestManagerAndRecovery(t *testing.T) {
	m := NewManager()
	m.Add("recovery", Recovery(zap.NewNop()))
	m.Add("deny", func(c *gin.Context) { c.AbortWithStatus(http.StatusTeapot) })
	m.Add("access", AccessLog(zap.NewNop()))
	assert.Equal(t, []string{"recovery", "deny", "access"}, m.Names())

	r := gin.New()
	r.Use(m.Use())
	GET(r, "/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") }, RouteOpt{})
	POST(r, "/boom", func(c *gin.Context) { panic("boom") }, RouteOpt{})
	GET(r, "/guarded", func(c *gin.Context) { c.String(http.StatusOK, "in") }, RouteOpt{
		Auth: func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) },
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	assert.True(t, m.Remove("deny"))
	assert.False(t, m.Remove("deny"))
	assert.Equal(t, []string{"recovery", "access"}, m.Names())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, "ok", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"msg":"Internal server error"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
