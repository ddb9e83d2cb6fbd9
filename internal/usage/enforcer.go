package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/logging"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/metrics"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
)

// DenialCode is the machine-readable reason attached to a limit denial.
const DenialCode = "plan_limit_reached"

// Denial describes why a metered write was refused. It carries everything
// a client needs to render the refusal and decide on an upgrade.
type Denial struct {
	Code            string        `json:"code"`
	Message         string        `json:"message"`
	Plan            plan.Plan     `json:"plan"`
	Resource        plan.Resource `json:"resource"`
	Limit           int           `json:"limit"`
	Used            int           `json:"used"`
	CycleEnd        time.Time     `json:"cycleEnd"`
	UpgradeRequired bool          `json:"upgradeRequired"`
}

// Enforcer gates metered writes against the tenant's plan. Checks are
// advisory rather than transactional: two concurrent writes near the cap
// can both pass, which overshoots by at most the burst width. That is an
// accepted trade for keeping writes lock-free.
type Enforcer struct {
	store Store
	now   func() time.Time
}

func NewEnforcer(store Store) *Enforcer {
	return &Enforcer{store: store, now: time.Now}
}

// WithClock swaps the time source. Tests use it to pin cycle windows.
func (e *Enforcer) WithClock(now func() time.Time) *Enforcer {
	e.now = now
	return e
}

// Check returns a Denial when the tenant has exhausted the resource's cap
// for the current cycle, or nil when the write may proceed. Unlimited
// plans are approved without touching the store. Counting errors fail
// open: an unreachable store never blocks a paying customer.
func (e *Enforcer) Check(ctx context.Context, t *tenant.Tenant, r plan.Resource) (*Denial, error) {
	return e.CheckBatch(ctx, t, r, 1)
}

// CheckBatch is Check for an action that consumes n units at once, such
// as a series expanding to n deliveries. The whole batch must fit under
// the cap.
func (e *Enforcer) CheckBatch(ctx context.Context, t *tenant.Tenant, r plan.Resource, n int) (*Denial, error) {
	limit := t.Limits().For(r)
	if limit.IsUnlimited() {
		return nil, nil
	}

	start, end := plan.CycleWindow(t.Anchor(), e.now())

	used, err := e.count(ctx, t.ID, r, start, end)
	if err != nil {
		logging.L(ctx).Warn("usage count failed, allowing write",
			"tenant_id", t.ID, "resource", string(r), "error", err)
		return nil, nil
	}

	if used+n <= int(limit) {
		return nil, nil
	}

	metrics.QuotaDenialsTotal.WithLabelValues(string(r)).Inc()
	logging.L(ctx).Info("plan limit reached",
		"tenant_id", t.ID, "resource", string(r), "used", used, "limit", int(limit))

	return &Denial{
		Code:            DenialCode,
		Message:         denialMessage(t.Plan, r, int(limit)),
		Plan:            t.Plan,
		Resource:        r,
		Limit:           int(limit),
		Used:            used,
		CycleEnd:        end,
		UpgradeRequired: true,
	}, nil
}

func (e *Enforcer) count(ctx context.Context, tenantID string, r plan.Resource, start, end time.Time) (int, error) {
	switch r {
	case plan.ResourceAnalyses:
		return e.store.CountAnalyses(ctx, tenantID, start, end)
	case plan.ResourceScheduledPosts:
		return e.store.CountScheduledPosts(ctx, tenantID, start, end)
	case plan.ResourceAutomations:
		return e.store.CountActiveAutomations(ctx, tenantID)
	default:
		return 0, fmt.Errorf("unmetered resource %q", r)
	}
}

func denialMessage(p plan.Plan, r plan.Resource, limit int) string {
	switch r {
	case plan.ResourceAnalyses:
		return fmt.Sprintf("the %s plan allows %d episode analyses per billing cycle", p, limit)
	case plan.ResourceScheduledPosts:
		return fmt.Sprintf("the %s plan allows %d scheduled posts per billing cycle", p, limit)
	case plan.ResourceAutomations:
		return fmt.Sprintf("the %s plan allows at most %d active automations", p, limit)
	default:
		return fmt.Sprintf("the %s plan limit of %d reached for %s", p, limit, r)
	}
}
