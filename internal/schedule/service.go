package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/logging"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/plan"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/provider"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/traces"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/usage"
)

// Notifier receives delivery lifecycle events for live dashboards.
// Notifications are best-effort; a nil Notifier is valid.
type Notifier interface {
	DeliveriesScheduled(tenantID string, deliveries []*Delivery)
	DeliveryCanceled(tenantID, deliveryID string)
}

// Service applies the plan guard, expands requests, and persists the
// resulting batch.
type Service struct {
	store    Store
	enforcer *usage.Enforcer
	registry *provider.Registry
	notifier Notifier
}

func NewService(store Store, enforcer *usage.Enforcer, registry *provider.Registry, notifier Notifier) *Service {
	return &Service{store: store, enforcer: enforcer, registry: registry, notifier: notifier}
}

// Schedule handles one scheduling request end to end. A non-nil Denial
// means the tenant's plan refused the batch; err covers validation and
// storage failures.
//
// The guard and the batch insert are not one transaction: two requests
// racing against a near-exhausted cap can both pass and overshoot
// slightly. That over-admission is accepted; the alternative is
// serializing every scheduling write.
func (s *Service) Schedule(ctx context.Context, t *tenant.Tenant, req Request) ([]*Delivery, *usage.Denial, error) {
	ctx, span := traces.StartSpan(ctx, "schedule.create",
		traces.TenantID(t.ID),
		traces.Channel(string(req.Channel)),
	)
	defer span.End()

	adapter, err := s.registry.ForChannel(req.Channel, req.Provider)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnknownProvider, err)
	}

	deliveries, err := Expand(t.ID, req, adapter.Capabilities(), adapter.Name())
	if err != nil {
		return nil, nil, err
	}

	denial, err := s.enforcer.CheckBatch(ctx, t, plan.ResourceScheduledPosts, len(deliveries))
	if err != nil {
		return nil, nil, err
	}
	if denial != nil {
		return nil, denial, nil
	}

	if err := s.store.CreateBatch(ctx, deliveries); err != nil {
		return nil, nil, fmt.Errorf("persist deliveries: %w", err)
	}

	deliveriesScheduled.WithLabelValues(string(req.Channel)).Add(float64(len(deliveries)))
	logging.L(ctx).Info("deliveries scheduled",
		"tenant_id", t.ID,
		"channel", string(req.Channel),
		"provider", adapter.Name(),
		"count", len(deliveries))

	if s.notifier != nil {
		s.notifier.DeliveriesScheduled(t.ID, deliveries)
	}
	return deliveries, nil, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*Delivery, error) {
	return s.store.Get(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID string, from, to time.Time) ([]*Delivery, error) {
	return s.store.List(ctx, tenantID, from, to)
}

// Cancel cancels a still-pending delivery.
func (s *Service) Cancel(ctx context.Context, tenantID, id string) error {
	ctx, span := traces.StartSpan(ctx, "schedule.cancel",
		traces.TenantID(tenantID),
		traces.DeliveryID(id),
	)
	defer span.End()

	if err := s.store.Cancel(ctx, tenantID, id); err != nil {
		return err
	}

	deliveriesCanceled.Inc()
	logging.L(ctx).Info("delivery canceled", "tenant_id", tenantID, "delivery_id", id)

	if s.notifier != nil {
		s.notifier.DeliveryCanceled(tenantID, id)
	}
	return nil
}
