package schedule

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and DB-less deployments.
type MemoryStore struct {
	mu         sync.RWMutex
	deliveries map[string]*Delivery
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deliveries: make(map[string]*Delivery),
		now:        time.Now,
	}
}

func (s *MemoryStore) CreateBatch(ctx context.Context, deliveries []*Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, d := range deliveries {
		d.CreatedAt = now
		d.UpdatedAt = now
		cp := *d
		s.deliveries[d.ID] = &cp
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, id string) (*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[id]
	if !ok || d.TenantID != tenantID {
		return nil, ErrDeliveryNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, tenantID string, from, to time.Time) ([]*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Delivery
	for _, d := range s.deliveries {
		if d.TenantID != tenantID {
			continue
		}
		if !from.IsZero() && d.ScheduledAt.Before(from) {
			continue
		}
		if !to.IsZero() && !d.ScheduledAt.Before(to) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

func (s *MemoryStore) Cancel(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deliveries[id]
	if !ok || d.TenantID != tenantID {
		return ErrDeliveryNotFound
	}
	if d.Status != StatusScheduled {
		return ErrNotCancelable
	}
	d.Status = StatusCanceled
	d.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) CountCreatedInWindow(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, d := range s.deliveries {
		if d.TenantID != tenantID || d.Status == StatusCanceled {
			continue
		}
		if !d.CreatedAt.Before(start) && d.CreatedAt.Before(end) {
			n++
		}
	}
	return n, nil
}
