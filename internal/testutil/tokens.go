package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bus-stop-inventory/internal/model"
)

type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken
	Now    func() time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: map[string]model.RefreshToken{}, Now: time.Now}
}

func (s *TokenStore) Create(_ context.Context, t *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(t)
	return nil
}

func (s *TokenStore) insertLocked(t *model.RefreshToken) {
	t.ID = uuid.NewString()
	t.CreatedAt = s.Now().UTC()
	s.tokens[t.TokenHash] = *t
}

func (s *TokenStore) GetByHash(_ context.Context, hash string) (*model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[hash]
	if !ok {
		return nil, model.ErrTokenNotFound
	}
	return &t, nil
}

func (s *TokenStore) Rotate(_ context.Context, oldHash string, next *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tokens[oldHash]
	now := s.Now().UTC()
	if !ok || !old.IsValid(now) {
		return model.ErrInvalidToken
	}
	old.RevokedAt = &now
	s.tokens[oldHash] = old

	s.insertLocked(next)
	return nil
}

func (s *TokenStore) Revoke(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[hash]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	now := s.Now().UTC()
	t.RevokedAt = &now
	s.tokens[hash] = t
	return true, nil
}

func (s *TokenStore) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	var revoked int64
	for hash, t := range s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			s.tokens[hash] = t
			revoked++
		}
	}
	return revoked, nil
}

func (s *TokenStore) ListActive(_ context.Context, userID string) ([]model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	active := make([]model.RefreshToken, 0)
	for _, t := range s.tokens {
		if t.UserID == userID && t.IsValid(now) {
			active = append(active, t)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	return active, nil
}

func (s *TokenStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	var deleted int64
	for hash, t := range s.tokens {
		if !t.ExpiresAt.After(now) {
			delete(s.tokens, hash)
			deleted++
		}
	}
	return deleted, nil
}

// All returns every stored record, revoked ones included.
func (s *TokenStore) All() []model.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.RefreshToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		all = append(all, t)
	}
	return all
}
