package automation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and DB-less deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	automations map[string]*Automation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{automations: make(map[string]*Automation)}
}

func (s *MemoryStore) Create(ctx context.Context, a *Automation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	s.automations[a.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, id string) (*Automation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.automations[id]
	if !ok || a.TenantID != tenantID {
		return nil, ErrAutomationNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, tenantID string) ([]*Automation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Automation
	for _, a := range s.automations {
		if a.TenantID == tenantID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.automations[id]
	if !ok || a.TenantID != tenantID {
		return ErrAutomationNotFound
	}
	a.Active = false
	a.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) CountActive(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.automations {
		if a.TenantID == tenantID && a.Active {
			n++
		}
	}
	return n, nil
}
