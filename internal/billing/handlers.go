package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/auth"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/logging"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
)

const maxWebhookBody = 64 * 1024

// Handler provides checkout, portal, and webhook endpoints.
type Handler struct {
	service *Service
	tenants tenant.Store
}

func NewHandler(service *Service, tenants tenant.Store) *Handler {
	return &Handler{service: service, tenants: tenants}
}

// RegisterProtectedRoutes sets up authenticated billing routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/billing/checkout", h.CreateCheckout)
	r.POST("/billing/portal", h.CreatePortal)
}

// RegisterWebhookRoutes sets up the public Stripe callback. Authentication
// is the webhook signature, not an API key.
func (h *Handler) RegisterWebhookRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/stripe", h.StripeWebhook)
}

// CreateCheckout handles POST /billing/checkout.
func (h *Handler) CreateCheckout(c *gin.Context) {
	var req struct {
		Plan       plan.Plan `json:"plan" binding:"required"`
		SuccessURL string    `json:"successUrl" binding:"required"`
		CancelURL  string    `json:"cancelUrl" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "plan, successUrl and cancelUrl required"})
		return
	}

	t, err := h.tenants.Get(c.Request.Context(), auth.TenantID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found"})
		return
	}

	url, err := h.service.CheckoutURL(c.Request.Context(), t, req.Plan, req.SuccessURL, req.CancelURL)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing_unavailable", "message": "billing is not configured"})
		case errors.Is(err, ErrUnknownPlan):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "no subscription available for this plan"})
		default:
			logging.L(c.Request.Context()).Error("checkout session failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "stripe_error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CreatePortal handles POST /billing/portal.
func (h *Handler) CreatePortal(c *gin.Context) {
	var req struct {
		ReturnURL string `json:"returnUrl" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "returnUrl required"})
		return
	}

	t, err := h.tenants.Get(c.Request.Context(), auth.TenantID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found"})
		return
	}

	url, err := h.service.PortalURL(c.Request.Context(), t, req.ReturnURL)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing_unavailable"})
			return
		}
		logging.L(c.Request.Context()).Error("portal session failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "stripe_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// StripeWebhook handles POST /webhooks/stripe. Stripe retries on non-2xx,
// so persistent application errors return 200 after logging to avoid
// redelivery storms; only signature failures are rejected.
func (h *Handler) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	event, err := h.service.VerifyWebhook(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		logging.L(c.Request.Context()).Warn("stripe webhook rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
		return
	}

	if err := h.service.HandleEvent(c.Request.Context(), event); err != nil {
		logging.L(c.Request.Context()).Error("stripe webhook handling failed",
			"type", event.Type, "event_id", event.ID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
