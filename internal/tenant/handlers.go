package tenant

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/auth"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/idgen"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/validation"
)

// Handler provides HTTP endpoints for tenant management.
type Handler struct {
	store   Store
	authMgr *auth.Manager
}

// NewHandler creates a new tenant handler.
func NewHandler(store Store, authMgr *auth.Manager) *Handler {
	return &Handler{store: store, authMgr: authMgr}
}

// RegisterAdminRoutes sets up admin-only tenant routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/tenants", h.CreateTenant)
	r.PATCH("/tenants/:id", h.UpdateTenant)
}

// RegisterProtectedRoutes sets up tenant self-service routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/tenant", h.GetTenant)
}

// CreateTenant handles POST /admin/tenants.
// The identity provider calls this after signup; the cycle anchor defaults
// to creation time and is immutable afterwards.
func (h *Handler) CreateTenant(c *gin.Context) {
	var req struct {
		Name        string     `json:"name" binding:"required"`
		Email       string     `json:"email" binding:"required"`
		Plan        plan.Plan  `json:"plan"`
		CycleAnchor *time.Time `json:"cycleAnchor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and email required"})
		return
	}

	if !validation.IsValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email", "message": "email address is not valid"})
		return
	}

	if req.Plan == "" {
		req.Plan = plan.PlanFree
	}
	if !plan.Valid(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "unknown plan"})
		return
	}

	now := time.Now()
	t := &Tenant{
		ID:          idgen.WithPrefix("ten_"),
		Name:        validation.SanitizeString(req.Name, 200),
		Email:       req.Email,
		Plan:        req.Plan,
		Status:      StatusActive,
		CycleAnchor: req.CycleAnchor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.Create(c.Request.Context(), t); err != nil {
		if err == ErrEmailTaken {
			c.JSON(http.StatusConflict, gin.H{"error": "email_taken", "message": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create tenant"})
		return
	}

	rawKey, keyInfo, err := h.authMgr.GenerateKey(c.Request.Context(), t.ID, "Default key")
	if err != nil {
		c.JSON(http.StatusCreated, gin.H{
			"tenant":  t,
			"warning": "Tenant created but key generation failed. Use admin API to create keys.",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tenant":  t,
		"apiKey":  rawKey,
		"keyId":   keyInfo.ID,
		"warning": "Store this API key securely. It will not be shown again.",
	})
}

// UpdateTenant handles PATCH /admin/tenants/:id (plan and status changes).
// The cycle anchor is deliberately not updatable.
func (h *Handler) UpdateTenant(c *gin.Context) {
	id := c.Param("id")

	t, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if err == ErrTenantNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load tenant"})
		return
	}

	var req struct {
		Name   *string    `json:"name"`
		Plan   *plan.Plan `json:"plan"`
		Status *Status    `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed body"})
		return
	}

	if req.Plan != nil {
		if !plan.Valid(*req.Plan) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "unknown plan"})
			return
		}
		t.Plan = *req.Plan
	}
	if req.Name != nil {
		t.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.Status != nil {
		switch *req.Status {
		case StatusActive, StatusSuspended, StatusCancelled:
			t.Status = *req.Status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": "unknown status"})
			return
		}
	}
	t.UpdatedAt = time.Now()

	if err := h.store.Update(c.Request.Context(), t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update tenant"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tenant": t})
}

// GetTenant handles GET /v1/tenant for the authenticated tenant.
func (h *Handler) GetTenant(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "API key required"})
		return
	}

	t, err := h.store.Get(c.Request.Context(), tenantID)
	if err != nil {
		if err == ErrTenantNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load tenant"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenant": t,
		"limits": t.Limits(),
	})
}
