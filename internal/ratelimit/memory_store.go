package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process CounterStore. Each counter remembers the
// end of the fixed window it belongs to; a counter from an elapsed window
// reads as zero and is reset on the next increment. A background sweep
// reclaims entries for callers that went quiet.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type windowCounter struct {
	count     int
	windowEnd time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		counters: make(map[string]*windowCounter),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wc := s.counter(key, window)
	wc.count++
	return wc.count, nil
}

func (s *MemoryStore) Peek(ctx context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter(key, window).count, nil
}

// counter returns the live counter for key, rolling it over when its
// window has elapsed. Windows are aligned to the epoch so every instance
// using the same clock agrees on boundaries.
func (s *MemoryStore) counter(key string, window time.Duration) *windowCounter {
	now := s.now()
	wc, ok := s.counters[key]
	if !ok || !now.Before(wc.windowEnd) {
		wc = &windowCounter{windowEnd: now.Truncate(window).Add(window)}
		s.counters[key] = wc
	}
	return wc
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for key, wc := range s.counters {
				if wc.windowEnd.Before(now) {
					delete(s.counters, key)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}

// Stop terminates the sweep goroutine.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
