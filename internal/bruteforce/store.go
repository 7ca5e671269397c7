package bruteforce

import (
	"context"
	"sync"
	"time"
)

type Attempt struct {
	At      time.Time
	Success bool
}

// Store keeps login attempts and lockouts per client IP.
type Store interface {
	// Append records an attempt; window bounds how long it must be kept.
	Append(ctx context.Context, ip string, attempt Attempt, window time.Duration) error
	// Failures drops attempts at or before since and counts the failed ones left.
	Failures(ctx context.Context, ip string, since time.Time) (int, error)
	// Lock marks ip locked until the given time and clears its attempt history.
	Lock(ctx context.Context, ip string, until time.Time) error
	LockedUntil(ctx context.Context, ip string) (time.Time, bool, error)
	Prune(ctx context.Context, now time.Time, window time.Duration) error
}

type record struct {
	attempts    []Attempt
	lockedUntil time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*record{}}
}

func (s *MemoryStore) get(ip string) *record {
	rec, ok := s.records[ip]
	if !ok {
		rec = &record{}
		s.records[ip] = rec
	}
	return rec
}

func (s *MemoryStore) Append(_ context.Context, ip string, attempt Attempt, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.get(ip)
	rec.attempts = append(rec.attempts, attempt)
	return nil
}

func (s *MemoryStore) Failures(_ context.Context, ip string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[ip]
	if !ok {
		return 0, nil
	}

	rec.attempts = keepAfter(rec.attempts, since)
	failures := 0
	for _, a := range rec.attempts {
		if !a.Success {
			failures++
		}
	}
	return failures, nil
}

func (s *MemoryStore) Lock(_ context.Context, ip string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.get(ip)
	rec.lockedUntil = until
	rec.attempts = nil
	return nil
}

func (s *MemoryStore) LockedUntil(_ context.Context, ip string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[ip]
	if !ok || rec.lockedUntil.IsZero() {
		return time.Time{}, false, nil
	}
	return rec.lockedUntil, true, nil
}

func (s *MemoryStore) Prune(_ context.Context, now time.Time, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	for ip, rec := range s.records {
		rec.attempts = keepAfter(rec.attempts, cutoff)
		if !rec.lockedUntil.IsZero() && !rec.lockedUntil.After(now) {
			rec.lockedUntil = time.Time{}
		}
		if len(rec.attempts) == 0 && rec.lockedUntil.IsZero() {
			delete(s.records, ip)
		}
	}
	return nil
}

func keepAfter(attempts []Attempt, cutoff time.Time) []Attempt {
	kept := attempts[:0]
	for _, a := range attempts {
		if a.At.After(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}
