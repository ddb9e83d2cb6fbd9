package schedule

import (
	"context"
	"time"
)

// Store persists deliveries. CreateBatch is all-or-nothing: a request
// that expands to five rows either schedules all five or none.
type Store interface {
	CreateBatch(ctx context.Context, deliveries []*Delivery) error
	Get(ctx context.Context, tenantID, id string) (*Delivery, error)
	List(ctx context.Context, tenantID string, from, to time.Time) ([]*Delivery, error)
	// Cancel moves a scheduled delivery to canceled. Deliveries in any
	// other state return ErrNotCancelable.
	Cancel(ctx context.Context, tenantID, id string) error
	// CountCreatedInWindow counts non-canceled deliveries created inside
	// [start, end). This is the quota-facing count.
	CountCreatedInWindow(ctx context.Context, tenantID string, start, end time.Time) (int, error)
}
