package provider

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/auth"
)

// Handler exposes the integration-management endpoints. Unsupported
// results are rendered as 200s with the tagged payload: "this provider
// cannot do that" is an answer, not a failure.
type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/integrations", h.ListIntegrations)
	r.GET("/integrations/:provider/status", h.Status)
	r.GET("/integrations/:provider/auth-url", h.AuthURL)
	r.GET("/integrations/:provider/callback", h.Callback)
	r.POST("/integrations/:provider/disconnect", h.Disconnect)
}

func (h *Handler) adapter(c *gin.Context) (Adapter, string, bool) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, "", false
	}
	a, ok := h.registry.Get(c.Param("provider"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return nil, "", false
	}
	return a, tenantID, true
}

// ListIntegrations reports every registered provider with its channel,
// capabilities, and connection status for the tenant.
func (h *Handler) ListIntegrations(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	out := make([]gin.H, 0)
	for _, name := range h.registry.Names() {
		a, _ := h.registry.Get(name)
		status := a.Status(c.Request.Context(), tenantID)
		out = append(out, gin.H{
			"provider":     a.Name(),
			"channel":      a.Channel(),
			"capabilities": a.Capabilities(),
			"status":       status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"integrations": out})
}

func (h *Handler) Status(c *gin.Context) {
	a, tenantID, ok := h.adapter(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a.Status(c.Request.Context(), tenantID))
}

func (h *Handler) AuthURL(c *gin.Context) {
	a, tenantID, ok := h.adapter(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a.AuthURL(c.Request.Context(), tenantID, c.Query("state")))
}

// Callback completes the OAuth flow. The tenant is taken from the
// authenticated request, not from the state parameter, so a forged
// callback cannot attach a connection to someone else's account.
func (h *Handler) Callback(c *gin.Context) {
	a, tenantID, ok := h.adapter(c)
	if !ok {
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code parameter"})
		return
	}
	c.JSON(http.StatusOK, a.HandleCallback(c.Request.Context(), tenantID, code))
}

func (h *Handler) Disconnect(c *gin.Context) {
	a, tenantID, ok := h.adapter(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a.Disconnect(c.Request.Context(), tenantID))
}
