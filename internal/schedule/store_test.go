package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/provider"
)

func mkDelivery(id, tenantID string, at time.Time) *Delivery {
	return &Delivery{
		ID:          id,
		TenantID:    tenantID,
		Channel:     provider.ChannelTwitter,
		Provider:    "buffer-twitter",
		Content:     "post",
		ScheduledAt: at,
		Status:      StatusScheduled,
	}
}

func TestMemoryStoreBatchAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	batch := []*Delivery{
		mkDelivery("dlv_aaa111aaa111", "ten_1", at),
		mkDelivery("dlv_bbb222bbb222", "ten_1", at.AddDate(0, 0, 1)),
	}
	require.NoError(t, store.CreateBatch(ctx, batch))

	got, err := store.Get(ctx, "ten_1", "dlv_aaa111aaa111")
	require.NoError(t, err)
	assert.Equal(t, "post", got.Content)
	assert.False(t, got.CreatedAt.IsZero())

	// Tenant isolation.
	_, err = store.Get(ctx, "ten_2", "dlv_aaa111aaa111")
	assert.ErrorIs(t, err, ErrDeliveryNotFound)
}

func TestMemoryStoreListOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	d1 := mkDelivery("dlv_c1", "ten_1", time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC))
	d2 := mkDelivery("dlv_c2", "ten_1", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	d3 := mkDelivery("dlv_c3", "ten_1", time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.CreateBatch(ctx, []*Delivery{d1, d2, d3}))

	all, err := store.List(ctx, "ten_1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "dlv_c2", all[0].ID)
	assert.Equal(t, "dlv_c1", all[1].ID)
	assert.Equal(t, "dlv_c3", all[2].ID)

	window, err := store.List(ctx, "ten_1",
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "dlv_c1", window[0].ID)
}

func TestMemoryStoreCancel(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	d := mkDelivery("dlv_x1", "ten_1", time.Now())
	require.NoError(t, store.CreateBatch(ctx, []*Delivery{d}))

	require.NoError(t, store.Cancel(ctx, "ten_1", "dlv_x1"))

	got, err := store.Get(ctx, "ten_1", "dlv_x1")
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, got.Status)

	// A canceled delivery cannot be canceled again.
	assert.ErrorIs(t, store.Cancel(ctx, "ten_1", "dlv_x1"), ErrNotCancelable)
	assert.ErrorIs(t, store.Cancel(ctx, "ten_1", "dlv_missing"), ErrDeliveryNotFound)
	assert.ErrorIs(t, store.Cancel(ctx, "ten_2", "dlv_x1"), ErrDeliveryNotFound)
}

func TestMemoryStoreCountExcludesCanceled(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	batch := []*Delivery{
		mkDelivery("dlv_n1", "ten_1", time.Now()),
		mkDelivery("dlv_n2", "ten_1", time.Now()),
	}
	require.NoError(t, store.CreateBatch(ctx, batch))
	require.NoError(t, store.Cancel(ctx, "ten_1", "dlv_n1"))

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	n, err := store.CountCreatedInWindow(ctx, "ten_1", start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
