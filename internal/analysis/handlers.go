package analysis

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/auth"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/idgen"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/logging"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/pagination"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/usage"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/validation"
)

type Handler struct {
	store    Store
	tenants  tenant.Store
	enforcer *usage.Enforcer
}

func NewHandler(store Store, tenants tenant.Store, enforcer *usage.Enforcer) *Handler {
	return &Handler{store: store, tenants: tenants, enforcer: enforcer}
}

func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/analyses", h.CreateAnalysis)
	r.GET("/analyses", h.ListAnalyses)
	r.GET("/analyses/:id", h.GetAnalysis)
}

type createRequest struct {
	EpisodeTitle string `json:"episodeTitle" binding:"required"`
	AudioURL     string `json:"audioUrl"`
	Transcript   string `json:"transcript"`
}

// CreateAnalysis records a new analysis request after the plan guard
// passes. Processing happens out of band; the record starts pending.
func (h *Handler) CreateAnalysis(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "episodeTitle is required"})
		return
	}

	t, err := h.tenants.Get(c.Request.Context(), tenantID)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load tenant", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}

	denial, err := h.enforcer.Check(c.Request.Context(), t, plan.ResourceAnalyses)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check usage"})
		return
	}
	if denial != nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error":           denial.Message,
			"code":            denial.Code,
			"limit":           denial.Limit,
			"used":            denial.Used,
			"cycleEnd":        denial.CycleEnd,
			"upgradeRequired": denial.UpgradeRequired,
		})
		return
	}

	a := &Analysis{
		ID:           idgen.WithPrefix("ana_"),
		TenantID:     tenantID,
		EpisodeTitle: validation.SanitizeString(req.EpisodeTitle, 300),
		AudioURL:     req.AudioURL,
		Transcript:   req.Transcript,
		Status:       StatusPending,
	}
	if err := h.store.Create(c.Request.Context(), a); err != nil {
		logging.L(c.Request.Context()).Error("failed to create analysis", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create analysis"})
		return
	}
	c.JSON(http.StatusCreated, a)
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (h *Handler) ListAnalyses(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		limit = n
	}
	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
		return
	}

	// Fetch one extra row to learn whether another page exists.
	analyses, err := h.store.List(c.Request.Context(), tenantID, cursor, limit+1)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list analyses", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list analyses"})
		return
	}

	analyses, next, hasMore := pagination.ComputePage(analyses, limit, func(a *Analysis) (time.Time, string) {
		return a.CreatedAt, a.ID
	})
	if analyses == nil {
		analyses = []*Analysis{}
	}
	resp := gin.H{"analyses": analyses, "hasMore": hasMore}
	if next != "" {
		resp["nextCursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetAnalysis(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id := c.Param("id")
	if !validation.IsValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis id"})
		return
	}

	a, err := h.store.Get(c.Request.Context(), tenantID, id)
	if errors.Is(err, ErrAnalysisNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load analysis", "analysis_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analysis"})
		return
	}
	c.JSON(http.StatusOK, a)
}
