package automation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/auth"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/idgen"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/logging"
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
	r.POST("/automations", h.CreateAutomation)
	r.GET("/automations", h.ListAutomations)
	r.DELETE("/automations/:id", h.DeleteAutomation)
}

type createRequest struct {
	Name    string  `json:"name" binding:"required"`
	Trigger Trigger `json:"trigger" binding:"required"`
	Action  Action  `json:"action" binding:"required"`
	Tag     string  `json:"tag"`
}

func validTrigger(t Trigger) bool {
	return t == TriggerNewEpisode || t == TriggerTagApplied
}

func validAction(a Action) bool {
	return a == ActionApplyTag || a == ActionSchedulePost
}

func (h *Handler) CreateAutomation(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, trigger, and action are required"})
		return
	}
	if !validTrigger(req.Trigger) || !validAction(req.Action) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown trigger or action"})
		return
	}

	t, err := h.tenants.Get(c.Request.Context(), tenantID)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load tenant", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}

	denial, err := h.enforcer.Check(c.Request.Context(), t, plan.ResourceAutomations)
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

	a := &Automation{
		ID:       idgen.WithPrefix("aut_"),
		TenantID: tenantID,
		Name:     validation.SanitizeString(req.Name, 200),
		Trigger:  req.Trigger,
		Action:   req.Action,
		Tag:      req.Tag,
		Active:   true,
	}
	if err := h.store.Create(c.Request.Context(), a); err != nil {
		logging.L(c.Request.Context()).Error("failed to create automation", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create automation"})
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAutomations(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	automations, err := h.store.List(c.Request.Context(), tenantID)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list automations", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list automations"})
		return
	}
	if automations == nil {
		automations = []*Automation{}
	}
	c.JSON(http.StatusOK, gin.H{"automations": automations})
}

// DeleteAutomation deactivates the automation, freeing its plan slot.
func (h *Handler) DeleteAutomation(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id := c.Param("id")
	if !validation.IsValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid automation id"})
		return
	}

	err := h.store.Deactivate(c.Request.Context(), tenantID, id)
	if errors.Is(err, ErrAutomationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "automation not found"})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to deactivate automation", "automation_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate automation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "active": false})
}
