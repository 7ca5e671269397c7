package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store holds sliding-window hit timestamps and the IP blocklist. Implementations
// must be safe for concurrent use.
type Store interface {
	// Check drops hits of key at or before now-window and returns how many remain.
	Check(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
	// Record appends a hit for key. window bounds how long the hit must be kept.
	Record(ctx context.Context, key string, now time.Time, window time.Duration) error
	// IsBlocked reports whether ip is blocked at now and for how much longer.
	IsBlocked(ctx context.Context, ip string, now time.Time) (time.Duration, bool, error)
	Block(ctx context.Context, ip string, until time.Time) error
	// Prune removes hits older than maxAge and blocks that have expired.
	Prune(ctx context.Context, now time.Time, maxAge time.Duration) error
}

// MemoryStore keeps all state in process. One mutex guards both maps.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	blocks  map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: map[string][]time.Time{},
		blocks:  map[string]time.Time{},
	}
}

func (s *MemoryStore) Check(_ context.Context, key string, window time.Duration, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits := dropBefore(s.windows[key], now.Add(-window))
	if len(hits) == 0 {
		delete(s.windows, key)
		return 0, nil
	}
	s.windows[key] = hits
	return len(hits), nil
}

func (s *MemoryStore) Record(_ context.Context, key string, now time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windows[key] = append(s.windows[key], now)
	return nil
}

func (s *MemoryStore) IsBlocked(_ context.Context, ip string, now time.Time) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocks[ip]
	if !ok {
		return 0, false, nil
	}
	if !until.After(now) {
		delete(s.blocks, ip)
		return 0, false, nil
	}
	return until.Sub(now), true, nil
}

func (s *MemoryStore) Block(_ context.Context, ip string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.blocks[ip]; ok && current.After(until) {
		return nil
	}
	s.blocks[ip] = until
	return nil
}

func (s *MemoryStore) Prune(_ context.Context, now time.Time, maxAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-maxAge)
	for key, hits := range s.windows {
		kept := dropBefore(hits, cutoff)
		if len(kept) == 0 {
			delete(s.windows, key)
			continue
		}
		s.windows[key] = kept
	}

	for ip, until := range s.blocks {
		if !until.After(now) {
			delete(s.blocks, ip)
		}
	}
	return nil
}

// dropBefore returns the suffix of hits strictly after cutoff. hits are
// appended in arrival order so they are sorted.
func dropBefore(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0:0], hits[i:]...)
}
