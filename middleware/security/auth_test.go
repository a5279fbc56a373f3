package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", Middleware(DefaultOptions("s3cret")), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(PPCtxAuthKey))
	})

	do := func(h string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("Bearer s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s3cret", w.Body.String())
	assert.Equal(t, http.StatusOK, do("bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, do("s3cret").Code)

	w = do("")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"code":1101,"msg":"Token is required"}`, w.Body.String())

	w = do("Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"code":1101,"msg":"Token is invalid"}`, w.Body.String())
}

func TestMiddleware_EmptyTokenRejectsAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", Middleware(nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
