package provider

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func integrationsRouter(authed bool) *gin.Engine {
	conns := NewMemoryConnectionStore()
	registry := NewRegistry()
	registry.Register(NewKit(KitConfig{ClientID: "cid", ClientSecret: "sec"}, conns))
	registry.Register(NewBuffer(BufferConfig{}, ChannelTwitter, conns))

	handler := NewHandler(registry)

	router := gin.New()
	group := router.Group("/v1")
	if authed {
		group.Use(func(c *gin.Context) {
			c.Set(auth.ContextKeyTenantID, "ten_1")
		})
	}
	handler.RegisterProtectedRoutes(group)
	return router
}

func TestIntegrationStatusDisconnected(t *testing.T) {
	router := integrationsRouter(true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/integrations/kit/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connected":false`)
}

func TestIntegrationUnknownProvider(t *testing.T) {
	router := integrationsRouter(true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/integrations/ghost/status", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIntegrationRequiresAuth(t *testing.T) {
	router := integrationsRouter(false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/integrations/kit/status", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIntegrationAuthURL(t *testing.T) {
	router := integrationsRouter(true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/integrations/kit/auth-url?state=s1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"supported":true`)
	assert.Contains(t, w.Body.String(), "oauth")
}

// An unconfigured provider reports its auth URL as unsupported rather
// than erroring.
func TestIntegrationAuthURLNotConfigured(t *testing.T) {
	router := integrationsRouter(true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/integrations/buffer-twitter/auth-url", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"supported":false`)
	assert.Contains(t, w.Body.String(), "not_configured")
}

func TestIntegrationCallbackMissingCode(t *testing.T) {
	router := integrationsRouter(true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/integrations/kit/callback", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListIntegrations(t *testing.T) {
	router := integrationsRouter(true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/integrations", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kit"`)
	assert.Contains(t, w.Body.String(), `"buffer-twitter"`)
	assert.Contains(t, w.Body.String(), "capabilities")
}
