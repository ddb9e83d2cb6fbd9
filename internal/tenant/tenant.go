// Package tenant provides multi-tenancy for the dashboard platform.
//
// A tenant is one podcast workspace. The upstream identity provider owns
// signup and sessions; this service keeps the plan assignment and the
// billing-cycle anchor that quota enforcement is computed from.
package tenant

import (
	"errors"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
)

// Errors
var (
	ErrTenantNotFound = errors.New("tenant: not found")
	ErrEmailTaken     = errors.New("tenant: email already registered")
)

// Status represents a tenant's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Tenant represents one podcast workspace using the platform.
type Tenant struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Plan             plan.Plan  `json:"plan"`
	Status           Status     `json:"status"`
	StripeCustomerID string     `json:"stripeCustomerId,omitempty"`
	// CycleAnchor pins the billing cycle. Immutable once set; nil means the
	// account-creation time is the anchor.
	CycleAnchor *time.Time `json:"cycleAnchor,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Anchor resolves the billing-cycle anchor: the explicit anchor when set,
// otherwise account creation, otherwise now as a last resort for records
// with no discoverable timestamp.
func (t *Tenant) Anchor() time.Time {
	if t.CycleAnchor != nil && !t.CycleAnchor.IsZero() {
		return *t.CycleAnchor
	}
	if !t.CreatedAt.IsZero() {
		return t.CreatedAt
	}
	return time.Now()
}

// Limits returns the plan caps for this tenant, falling back to the free
// tier for unknown plan identifiers.
func (t *Tenant) Limits() plan.Limits {
	return plan.LimitsFor(t.Plan)
}
