// Package usage aggregates a tenant's consumption against its plan limits
// for the current billing cycle.
package usage

import (
	"context"
	"sync"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/logging"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
)

// Counters holds the raw per-resource counts for one cycle.
type Counters struct {
	Analyses          int `json:"analyses"`
	ScheduledPosts    int `json:"scheduledPosts"`
	ActiveAutomations int `json:"activeAutomations"`
}

// For returns the count for a metered resource. Team members are not
// metered per cycle and always read as zero here.
func (c Counters) For(r plan.Resource) int {
	switch r {
	case plan.ResourceAnalyses:
		return c.Analyses
	case plan.ResourceScheduledPosts:
		return c.ScheduledPosts
	case plan.ResourceAutomations:
		return c.ActiveAutomations
	default:
		return 0
	}
}

// ResourceUsage pairs a count with its plan limit for reporting.
type ResourceUsage struct {
	Used      int        `json:"used"`
	Limit     plan.Limit `json:"limit"`
	Unlimited bool       `json:"unlimited"`
}

// Report is the full usage picture returned by GET /v1/usage.
type Report struct {
	Plan       plan.Plan                       `json:"plan"`
	CycleStart time.Time                       `json:"cycleStart"`
	CycleEnd   time.Time                       `json:"cycleEnd"`
	Resources  map[plan.Resource]ResourceUsage `json:"resources"`
}

// Aggregator computes cycle counters for a tenant. Counting queries run
// concurrently and fail open: a failed count reads as zero so a flaky
// store degrades limit enforcement rather than blocking writes.
type Aggregator struct {
	store Store
	now   func() time.Time
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// WithClock swaps the time source. Tests use it to pin cycle windows.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Counters returns the tenant's counts for the billing cycle containing now.
func (a *Aggregator) Counters(ctx context.Context, t *tenant.Tenant) (Counters, time.Time, time.Time) {
	start, end := plan.CycleWindow(t.Anchor(), a.now())

	var (
		wg sync.WaitGroup
		c  Counters
	)

	count := func(dst *int, name string, fn func() (int, error)) {
		defer wg.Done()
		n, err := fn()
		if err != nil {
			logging.L(ctx).Warn("usage count failed, treating as zero",
				"tenant_id", t.ID, "resource", name, "error", err)
			return
		}
		*dst = n
	}

	wg.Add(3)
	go count(&c.Analyses, "analyses", func() (int, error) {
		return a.store.CountAnalyses(ctx, t.ID, start, end)
	})
	go count(&c.ScheduledPosts, "scheduled_posts", func() (int, error) {
		return a.store.CountScheduledPosts(ctx, t.ID, start, end)
	})
	go count(&c.ActiveAutomations, "automations", func() (int, error) {
		return a.store.CountActiveAutomations(ctx, t.ID)
	})
	wg.Wait()

	return c, start, end
}

// Report builds the full usage report for a tenant.
func (a *Aggregator) Report(ctx context.Context, t *tenant.Tenant) Report {
	counters, start, end := a.Counters(ctx, t)
	limits := t.Limits()

	resources := make(map[plan.Resource]ResourceUsage, 3)
	for _, r := range []plan.Resource{
		plan.ResourceAnalyses,
		plan.ResourceScheduledPosts,
		plan.ResourceAutomations,
	} {
		limit := limits.For(r)
		resources[r] = ResourceUsage{
			Used:      counters.For(r),
			Limit:     limit,
			Unlimited: limit.IsUnlimited(),
		}
	}

	return Report{
		Plan:       t.Plan,
		CycleStart: start,
		CycleEnd:   end,
		Resources:  resources,
	}
}
