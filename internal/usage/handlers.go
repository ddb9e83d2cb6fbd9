package usage

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/auth"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/logging"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
)

type Handler struct {
	tenants tenant.Store
	agg     *Aggregator
}

func NewHandler(tenants tenant.Store, agg *Aggregator) *Handler {
	return &Handler{tenants: tenants, agg: agg}
}

func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/usage", h.GetUsage)
}

// GetUsage returns the authenticated tenant's consumption for the current
// billing cycle alongside its plan limits.
func (h *Handler) GetUsage(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	t, err := h.tenants.Get(c.Request.Context(), tenantID)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load tenant for usage report",
			"tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load usage"})
		return
	}

	c.JSON(http.StatusOK, h.agg.Report(c.Request.Context(), t))
}
