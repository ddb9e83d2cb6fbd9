package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/pagination"
)

// MemoryStore is an in-memory Store for tests and DB-less deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	analyses map[string]*Analysis
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		analyses: make(map[string]*Analysis),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, a *Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	s.analyses[a.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, id string) (*Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analyses[id]
	if !ok || a.TenantID != tenantID {
		return nil, ErrAnalysisNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) ([]*Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Analysis
	for _, a := range s.analyses {
		if a.TenantID != tenantID {
			continue
		}
		if cursor != nil {
			// Newest-first: only records strictly after the cursor position.
			if a.CreatedAt.After(cursor.CreatedAt) {
				continue
			}
			if a.CreatedAt.Equal(cursor.CreatedAt) && a.ID >= cursor.ID {
				continue
			}
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountInWindow(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.analyses {
		if a.TenantID != tenantID {
			continue
		}
		if !a.CreatedAt.Before(start) && a.CreatedAt.Before(end) {
			n++
		}
	}
	return n, nil
}
