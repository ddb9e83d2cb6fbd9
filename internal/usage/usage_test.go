package usage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
)

// countingStore wraps fixed counts and tracks how often it is queried.
type countingStore struct {
	analyses    int
	posts       int
	automations int
	calls       int64
	err         error
}

func (s *countingStore) CountAnalyses(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	atomic.AddInt64(&s.calls, 1)
	return s.analyses, s.err
}

func (s *countingStore) CountScheduledPosts(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	atomic.AddInt64(&s.calls, 1)
	return s.posts, s.err
}

func (s *countingStore) CountActiveAutomations(ctx context.Context, tenantID string) (int, error) {
	atomic.AddInt64(&s.calls, 1)
	return s.automations, s.err
}

func testTenant(p plan.Plan) *tenant.Tenant {
	anchor := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return &tenant.Tenant{
		ID:          "ten_usage",
		Name:        "Usage Test",
		Email:       "usage@example.com",
		Plan:        p,
		Status:      tenant.StatusActive,
		CycleAnchor: &anchor,
		CreatedAt:   anchor,
	}
}

func TestAggregatorCountersAndWindow(t *testing.T) {
	store := &countingStore{analyses: 2, posts: 4, automations: 1}
	agg := NewAggregator(store)
	agg.now = func() time.Time { return time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC) }

	c, start, end := agg.Counters(context.Background(), testTenant(plan.PlanFree))

	assert.Equal(t, Counters{Analyses: 2, ScheduledPosts: 4, ActiveAutomations: 1}, c)
	assert.Equal(t, time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC), end)
	assert.EqualValues(t, 3, store.calls)
}

func TestAggregatorFailsOpen(t *testing.T) {
	store := &countingStore{analyses: 9, posts: 9, automations: 9, err: errors.New("db down")}
	agg := NewAggregator(store)

	c, _, _ := agg.Counters(context.Background(), testTenant(plan.PlanFree))

	// Every failed count reads as zero.
	assert.Equal(t, Counters{}, c)
}

func TestAggregatorReport(t *testing.T) {
	store := &countingStore{analyses: 1, posts: 3, automations: 0}
	agg := NewAggregator(store)

	r := agg.Report(context.Background(), testTenant(plan.PlanFree))

	assert.Equal(t, plan.PlanFree, r.Plan)
	assert.Equal(t, 3, r.Resources[plan.ResourceScheduledPosts].Used)
	assert.Equal(t, plan.Limit(5), r.Resources[plan.ResourceScheduledPosts].Limit)
	assert.False(t, r.Resources[plan.ResourceScheduledPosts].Unlimited)
}

func TestAggregatorReportUnlimitedPlan(t *testing.T) {
	store := &countingStore{analyses: 100, posts: 200}
	agg := NewAggregator(store)

	r := agg.Report(context.Background(), testTenant(plan.PlanBeta))

	assert.True(t, r.Resources[plan.ResourceAnalyses].Unlimited)
	assert.Equal(t, 100, r.Resources[plan.ResourceAnalyses].Used)
}

func TestEnforcerAllowsBelowCap(t *testing.T) {
	store := &countingStore{posts: 4}
	enf := NewEnforcer(store)

	denial, err := enf.Check(context.Background(), testTenant(plan.PlanFree), plan.ResourceScheduledPosts)
	require.NoError(t, err)
	assert.Nil(t, denial)
}

func TestEnforcerDeniesAtCap(t *testing.T) {
	store := &countingStore{posts: 5}
	enf := NewEnforcer(store)
	enf.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }

	denial, err := enf.Check(context.Background(), testTenant(plan.PlanFree), plan.ResourceScheduledPosts)
	require.NoError(t, err)
	require.NotNil(t, denial)

	assert.Equal(t, DenialCode, denial.Code)
	assert.Equal(t, 5, denial.Limit)
	assert.Equal(t, 5, denial.Used)
	assert.True(t, denial.UpgradeRequired)
	assert.Equal(t, time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC), denial.CycleEnd)
}

func TestEnforcerDenialNamesPlanAndResource(t *testing.T) {
	store := &countingStore{analyses: 3, posts: 5, automations: 1}
	enf := NewEnforcer(store)
	ctx := context.Background()
	tn := testTenant(plan.PlanFree)

	for _, r := range []plan.Resource{
		plan.ResourceAnalyses,
		plan.ResourceScheduledPosts,
		plan.ResourceAutomations,
	} {
		denial, err := enf.Check(ctx, tn, r)
		require.NoError(t, err)
		require.NotNil(t, denial, r)
		assert.Equal(t, plan.PlanFree, denial.Plan)
		assert.Contains(t, denial.Message, "free plan", r)
	}
}

func TestEnforcerDeniesAboveCap(t *testing.T) {
	store := &countingStore{posts: 7}
	enf := NewEnforcer(store)

	denial, err := enf.Check(context.Background(), testTenant(plan.PlanFree), plan.ResourceScheduledPosts)
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, 7, denial.Used)
}

func TestEnforcerUnlimitedSkipsStore(t *testing.T) {
	store := &countingStore{posts: 1_000_000}
	enf := NewEnforcer(store)

	denial, err := enf.Check(context.Background(), testTenant(plan.PlanBeta), plan.ResourceScheduledPosts)
	require.NoError(t, err)
	assert.Nil(t, denial)
	assert.EqualValues(t, 0, store.calls, "unlimited plans must not query the store")
}

func TestEnforcerCheckBatch(t *testing.T) {
	store := &countingStore{posts: 3}
	enf := NewEnforcer(store)
	ctx := context.Background()
	tn := testTenant(plan.PlanFree) // cap 5

	denial, err := enf.CheckBatch(ctx, tn, plan.ResourceScheduledPosts, 2)
	require.NoError(t, err)
	assert.Nil(t, denial, "batch that exactly fills the cap is allowed")

	denial, err = enf.CheckBatch(ctx, tn, plan.ResourceScheduledPosts, 3)
	require.NoError(t, err)
	assert.NotNil(t, denial, "batch that would overflow the cap is denied")
}

func TestEnforcerFailsOpenOnStoreError(t *testing.T) {
	store := &countingStore{err: errors.New("connection refused")}
	enf := NewEnforcer(store)

	denial, err := enf.Check(context.Background(), testTenant(plan.PlanFree), plan.ResourceScheduledPosts)
	require.NoError(t, err)
	assert.Nil(t, denial)
}

func TestMemoryStoreWindows(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	start := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	store.RecordScheduledPost("ten_1", start)                    // inclusive start
	store.RecordScheduledPost("ten_1", start.AddDate(0, 0, 10))  // inside
	store.RecordScheduledPost("ten_1", end)                      // exclusive end
	store.RecordScheduledPost("ten_1", start.Add(-time.Second))  // previous cycle
	store.RecordScheduledPost("ten_2", start.AddDate(0, 0, 1))   // other tenant

	n, err := store.CountScheduledPosts(ctx, "ten_1", start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryStoreAutomationsFloorAtZero(t *testing.T) {
	store := NewMemoryStore()
	store.AddAutomations("ten_1", 2)
	store.AddAutomations("ten_1", -5)

	n, err := store.CountActiveAutomations(context.Background(), "ten_1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
