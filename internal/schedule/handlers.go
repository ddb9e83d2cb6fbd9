package schedule

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/auth"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/logging"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/validation"
)

type Handler struct {
	service *Service
	tenants tenant.Store
}

func NewHandler(service *Service, tenants tenant.Store) *Handler {
	return &Handler{service: service, tenants: tenants}
}

func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/schedule", h.CreateSchedule)
	r.GET("/schedule", h.ListDeliveries)
	r.GET("/schedule/:id", h.GetDelivery)
	r.DELETE("/schedule/:id", h.CancelDelivery)
}

func (h *Handler) requireTenant(c *gin.Context) (*tenant.Tenant, bool) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, false
	}
	t, err := h.tenants.Get(c.Request.Context(), tenantID)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load tenant", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return nil, false
	}
	return t, true
}

// CreateSchedule schedules content. 201 carries every created delivery;
// 403 carries the plan-limit payload with remediation data.
func (h *Handler) CreateSchedule(c *gin.Context) {
	t, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	deliveries, denial, err := h.service.Schedule(c.Request.Context(), t, req)
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
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.L(c.Request.Context()).Error("scheduling failed", "tenant_id", t.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to schedule content"})
		return
	}

	ids := make([]string, len(deliveries))
	for i, d := range deliveries {
		ids[i] = d.ID
	}
	c.JSON(http.StatusCreated, gin.H{"ids": ids, "deliveries": deliveries})
}

func isValidationError(err error) bool {
	for _, v := range []error{
		ErrNoContent, ErrAmbiguousShape, ErrMissingTime,
		ErrInvalidChannel, ErrBadSeriesDay, ErrEmptySeriesItem,
		ErrUnknownProvider,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

func (h *Handler) ListDeliveries(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var from, to time.Time
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
		to = parsed
	}

	deliveries, err := h.service.List(c.Request.Context(), tenantID, from, to)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list deliveries", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list deliveries"})
		return
	}
	if deliveries == nil {
		deliveries = []*Delivery{}
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": deliveries})
}

func (h *Handler) GetDelivery(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id := c.Param("id")
	if !validation.IsValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delivery id"})
		return
	}

	d, err := h.service.Get(c.Request.Context(), tenantID, id)
	if errors.Is(err, ErrDeliveryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "delivery not found"})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to load delivery", "delivery_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load delivery"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) CancelDelivery(c *gin.Context) {
	tenantID := auth.TenantID(c)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id := c.Param("id")
	if !validation.IsValidID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delivery id"})
		return
	}

	err := h.service.Cancel(c.Request.Context(), tenantID, id)
	switch {
	case errors.Is(err, ErrDeliveryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "delivery not found"})
	case errors.Is(err, ErrNotCancelable):
		c.JSON(http.StatusConflict, gin.H{"error": "delivery is no longer cancelable"})
	case err != nil:
		logging.L(c.Request.Context()).Error("failed to cancel delivery", "delivery_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel delivery"})
	default:
		c.JSON(http.StatusOK, gin.H{"id": id, "status": StatusCanceled})
	}
}
