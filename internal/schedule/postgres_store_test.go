package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/provider"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/testutil"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	batch := []*Delivery{
		{
			ID:          "dlv_000000000001",
			TenantID:    "ten_pg",
			Channel:     provider.ChannelTwitter,
			Provider:    "buffer-twitter",
			Content:     "part one",
			ScheduledAt: at,
			Status:      StatusScheduled,
			Metadata:    Metadata{ThreadPosition: 1, ThreadTotal: 2},
		},
		{
			ID:          "dlv_000000000002",
			TenantID:    "ten_pg",
			Channel:     provider.ChannelTwitter,
			Provider:    "buffer-twitter",
			Content:     "part two",
			ScheduledAt: at.AddDate(0, 0, 1),
			Status:      StatusScheduled,
			Metadata:    Metadata{ThreadPosition: 2, ThreadTotal: 2},
		},
	}
	require.NoError(t, store.CreateBatch(ctx, batch))

	got, err := store.Get(ctx, "ten_pg", "dlv_000000000001")
	require.NoError(t, err)
	assert.Equal(t, provider.ChannelTwitter, got.Channel)
	assert.Equal(t, 1, got.Metadata.ThreadPosition)
	assert.True(t, got.ScheduledAt.Equal(at))

	// Other tenants cannot see the row.
	_, err = store.Get(ctx, "ten_other", "dlv_000000000001")
	assert.ErrorIs(t, err, ErrDeliveryNotFound)

	deliveries, err := store.List(ctx, "ten_pg", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, deliveries, 2)

	// Window filter on scheduled_at.
	deliveries, err = store.List(ctx, "ten_pg", at.Add(time.Hour), time.Time{})
	require.NoError(t, err)
	assert.Len(t, deliveries, 1)
}

func TestPostgresStoreCancelAndCount(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateBatch(ctx, []*Delivery{{
		ID:          "dlv_00000000000a",
		TenantID:    "ten_pg",
		Channel:     provider.ChannelEmail,
		Provider:    "kit",
		Content:     "newsletter",
		ScheduledAt: at,
		Status:      StatusScheduled,
	}}))

	start := time.Now().Add(-time.Minute)
	end := time.Now().Add(time.Minute)

	n, err := store.CountCreatedInWindow(ctx, "ten_pg", start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Cancel(ctx, "ten_pg", "dlv_00000000000a"))

	got, err := store.Get(ctx, "ten_pg", "dlv_00000000000a")
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, got.Status)

	// Canceled deliveries stop counting against the cycle.
	n, err = store.CountCreatedInWindow(ctx, "ten_pg", start, end)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// A second cancel is rejected.
	assert.ErrorIs(t, store.Cancel(ctx, "ten_pg", "dlv_00000000000a"), ErrNotCancelable)
}
