package usage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and DB-less deployments.
// Callers record metered events as they happen; counts are computed by
// scanning the recorded timestamps.
type MemoryStore struct {
	mu          sync.RWMutex
	analyses    map[string][]time.Time
	posts       map[string][]time.Time
	automations map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		analyses:    make(map[string][]time.Time),
		posts:       make(map[string][]time.Time),
		automations: make(map[string]int),
	}
}

func (s *MemoryStore) RecordAnalysis(tenantID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[tenantID] = append(s.analyses[tenantID], at)
}

func (s *MemoryStore) RecordScheduledPost(tenantID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[tenantID] = append(s.posts[tenantID], at)
}

// AddAutomations adjusts the active-automation count by delta. Negative
// deltas never take the count below zero.
func (s *MemoryStore) AddAutomations(tenantID string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.automations[tenantID] + delta
	if n < 0 {
		n = 0
	}
	s.automations[tenantID] = n
}

func (s *MemoryStore) CountAnalyses(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	return s.countWindow(s.analyses, tenantID, start, end), nil
}

func (s *MemoryStore) CountScheduledPosts(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	return s.countWindow(s.posts, tenantID, start, end), nil
}

func (s *MemoryStore) CountActiveAutomations(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.automations[tenantID], nil
}

func (s *MemoryStore) countWindow(m map[string][]time.Time, tenantID string, start, end time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, at := range m[tenantID] {
		if !at.Before(start) && at.Before(end) {
			n++
		}
	}
	return n
}
