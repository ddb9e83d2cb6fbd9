package provider

import (
	"context"
	"sync"
	"time"
)

// MemoryConnectionStore is an in-memory ConnectionStore for tests and
// DB-less deployments.
type MemoryConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]*Connection // keyed by tenantID + "/" + provider
}

func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{conns: make(map[string]*Connection)}
}

func connKey(tenantID, providerName string) string {
	return tenantID + "/" + providerName
}

func (s *MemoryConnectionStore) Upsert(ctx context.Context, conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *conn
	if existing, ok := s.conns[connKey(conn.TenantID, conn.Provider)]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	}
	cp.UpdatedAt = time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = cp.UpdatedAt
	}
	s.conns[connKey(cp.TenantID, cp.Provider)] = &cp
	*conn = cp
	return nil
}

func (s *MemoryConnectionStore) Get(ctx context.Context, tenantID, providerName string) (*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.conns[connKey(tenantID, providerName)]
	if !ok {
		return nil, ErrNotConnected
	}
	cp := *conn
	return &cp, nil
}

func (s *MemoryConnectionStore) Delete(ctx context.Context, tenantID, providerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := connKey(tenantID, providerName)
	if _, ok := s.conns[key]; !ok {
		return ErrNotConnected
	}
	delete(s.conns, key)
	return nil
}

func (s *MemoryConnectionStore) ListByTenant(ctx context.Context, tenantID string) ([]*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Connection
	for _, conn := range s.conns {
		if conn.TenantID == tenantID {
			cp := *conn
			out = append(out, &cp)
		}
	}
	return out, nil
}
