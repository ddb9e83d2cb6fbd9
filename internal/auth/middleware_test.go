package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(m *Manager) *gin.Engine {
	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/open", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant": TenantID(c)})
	})
	protected := router.Group("")
	protected.Use(RequireAuth())
	protected.GET("/private", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant": TenantID(c)})
	})
	return router
}

func TestMiddlewareAnonymousOnPublicRoute(t *testing.T) {
	router := setupRouter(NewManager(NewMemoryStore()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/open", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tenant":""`)
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	router := setupRouter(NewManager(NewMemoryStore()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthAcceptsValidKey(t *testing.T) {
	m := NewManager(NewMemoryStore())
	raw, _, err := m.GenerateKey(context.Background(), "ten_42", "test")
	require.NoError(t, err)

	router := setupRouter(m)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ten_42")
}

func TestRequireAuthRejectsRevokedKey(t *testing.T) {
	m := NewManager(NewMemoryStore())
	ctx := context.Background()
	raw, key, err := m.GenerateKey(ctx, "ten_42", "test")
	require.NoError(t, err)
	require.NoError(t, m.RevokeKey(ctx, key.ID, "ten_42"))

	router := setupRouter(m)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("X-API-Key", raw)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	router := gin.New()
	router.Use(RequireAdmin("hunter2"))
	router.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("X-Admin-Secret", "hunter2")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdminDisabledWhenUnset(t *testing.T) {
	router := gin.New()
	router.Use(RequireAdmin(""))
	router.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("X-Admin-Secret", "")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
