package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/provider"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/usage"
)

// deliveryCounts adapts the delivery store into the usage counting
// interface; only scheduled posts are live here.
type deliveryCounts struct {
	store *MemoryStore
}

func (c deliveryCounts) CountAnalyses(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	return 0, nil
}

func (c deliveryCounts) CountScheduledPosts(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	return c.store.CountCreatedInWindow(ctx, tenantID, start, end)
}

func (c deliveryCounts) CountActiveAutomations(ctx context.Context, tenantID string) (int, error) {
	return 0, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	scheduled int
	canceled  []string
}

func (n *recordingNotifier) DeliveriesScheduled(tenantID string, deliveries []*Delivery) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scheduled += len(deliveries)
}

func (n *recordingNotifier) DeliveryCanceled(tenantID, deliveryID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.canceled = append(n.canceled, deliveryID)
}

func testRegistry() *provider.Registry {
	conns := provider.NewMemoryConnectionStore()
	r := provider.NewRegistry()
	r.Register(provider.NewBuffer(provider.BufferConfig{}, provider.ChannelTwitter, conns))
	r.Register(provider.NewKit(provider.KitConfig{}, conns))
	r.Register(provider.NewMailchimp(provider.MailchimpConfig{}, conns))
	return r
}

func freeTenant() *tenant.Tenant {
	anchor := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return &tenant.Tenant{
		ID:          "ten_svc",
		Name:        "Svc",
		Email:       "svc@example.com",
		Plan:        plan.PlanFree,
		Status:      tenant.StatusActive,
		CycleAnchor: &anchor,
	}
}

func newTestService(notifier Notifier) (*Service, *MemoryStore) {
	// Pin both the store and enforcer clocks inside the same cycle so
	// created rows count against the window being enforced.
	clock := func() time.Time { return time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC) }
	store := NewMemoryStore()
	store.now = clock
	enf := usage.NewEnforcer(deliveryCounts{store: store}).WithClock(clock)
	return NewService(store, enf, testRegistry(), notifier), store
}

func TestServiceSchedulesAndNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, store := newTestService(notifier)

	deliveries, denial, err := svc.Schedule(context.Background(), freeTenant(), Request{
		Channel:     provider.ChannelTwitter,
		ScheduledAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Thread:      []string{"a", "b", "c"},
	})
	require.NoError(t, err)
	require.Nil(t, denial)
	require.Len(t, deliveries, 3)
	assert.Equal(t, 3, notifier.scheduled)

	stored, err := store.List(context.Background(), "ten_svc", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestServiceDeniesWhenCapConsumed(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	tn := freeTenant()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, denial, err := svc.Schedule(ctx, tn, Request{
			Channel: provider.ChannelTwitter, ScheduledAt: at, Content: "post",
		})
		require.NoError(t, err)
		require.Nil(t, denial, "post %d should fit under the cap", i+1)
	}

	_, denial, err := svc.Schedule(ctx, tn, Request{
		Channel: provider.ChannelTwitter, ScheduledAt: at, Content: "one too many",
	})
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, 5, denial.Limit)
	assert.Equal(t, 5, denial.Used)
	assert.Equal(t, time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC), denial.CycleEnd)
	assert.True(t, denial.UpgradeRequired)
}

func TestServiceDeniesOversizedBatch(t *testing.T) {
	svc, _ := newTestService(nil)

	series := make([]SeriesItem, 6)
	for i := range series {
		series[i] = SeriesItem{Day: i + 1, Body: "b"}
	}
	_, denial, err := svc.Schedule(context.Background(), freeTenant(), Request{
		Channel:     provider.ChannelEmail,
		Provider:    "mailchimp",
		ScheduledAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Series:      series,
	})
	require.NoError(t, err)
	require.NotNil(t, denial, "a 6-part series cannot fit a cap of 5")
	assert.Equal(t, 0, denial.Used)
}

func TestServiceUnlimitedPlanSkipsQuota(t *testing.T) {
	svc, _ := newTestService(nil)
	tn := freeTenant()
	tn.Plan = plan.PlanBeta

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		_, denial, err := svc.Schedule(context.Background(), tn, Request{
			Channel: provider.ChannelTwitter, ScheduledAt: at, Content: "post",
		})
		require.NoError(t, err)
		require.Nil(t, denial)
	}
}

func TestServiceTagTriggerViaEmailDefault(t *testing.T) {
	svc, _ := newTestService(nil)

	// Kit is the default email provider in the test registry and only
	// supports tag triggering.
	deliveries, denial, err := svc.Schedule(context.Background(), freeTenant(), Request{
		Channel:     provider.ChannelEmail,
		ScheduledAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Subject:     "digest",
		Content:     "body",
	})
	require.NoError(t, err)
	require.Nil(t, denial)
	require.Len(t, deliveries, 1)
	assert.True(t, deliveries[0].Metadata.TagTrigger)
	assert.Equal(t, "kit", deliveries[0].Provider)
}

func TestServiceRejectsUnknownProvider(t *testing.T) {
	svc, _ := newTestService(nil)

	_, _, err := svc.Schedule(context.Background(), freeTenant(), Request{
		Channel:     provider.ChannelTwitter,
		Provider:    "ghost",
		ScheduledAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Content:     "post",
	})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestServiceCancel(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _ := newTestService(notifier)
	ctx := context.Background()

	deliveries, _, err := svc.Schedule(ctx, freeTenant(), Request{
		Channel:     provider.ChannelTwitter,
		ScheduledAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Content:     "post",
	})
	require.NoError(t, err)

	id := deliveries[0].ID
	require.NoError(t, svc.Cancel(ctx, "ten_svc", id))
	assert.Equal(t, []string{id}, notifier.canceled)

	got, err := svc.Get(ctx, "ten_svc", id)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, got.Status)
}
