// Package testutil holds in-memory implementations of the persistence
// interfaces used by service, handler and router tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/pkg/apierror"
)

type UserStore struct {
	mu    sync.Mutex
	users map[string]model.User
	Now   func() time.Time
	// UpdateErr fails UpdateWithPassword before anything is stored.
	UpdateErr error
}

func NewUserStore() *UserStore {
	return &UserStore{users: map[string]model.User{}, Now: time.Now}
}

func (s *UserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return &u, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (s *UserStore) List(_ context.Context, query model.UserQuery) ([]model.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(query.Search)
	matched := make([]model.User, 0)
	for _, u := range s.users {
		if search != "" && !strings.Contains(strings.ToLower(u.Email), search) && !strings.Contains(strings.ToLower(u.Name), search) {
			continue
		}
		if query.Role != "" && string(u.Role) != query.Role {
			continue
		}
		if query.IsActive != nil && u.IsActive != *query.IsActive {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	return paginate(matched, query.Page, query.Limit), len(matched), nil
}

func (s *UserStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *UserStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apierror.Conflict("email already registered", u.Email)
		}
	}

	now := s.Now().UTC()
	u.ID = uuid.NewString()
	u.PasswordChangedAt = now
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = *u
	return nil
}

func (s *UserStore) Update(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(u, nil)
}

func (s *UserStore) UpdateWithPassword(_ context.Context, u *model.User, passwordHash string, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	return s.updateLocked(u, func(stored *model.User) {
		stored.PasswordHash = passwordHash
		stored.PasswordChangedAt = changedAt
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = changedAt
	})
}

// updateLocked applies the whole change or nothing.
func (s *UserStore) updateLocked(u *model.User, withPassword func(stored *model.User)) error {
	stored, ok := s.users[u.ID]
	if !ok {
		return model.ErrUserNotFound
	}
	for id, existing := range s.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return apierror.Conflict("email already registered", u.Email)
		}
	}

	stored.Email, stored.Name, stored.Role, stored.IsActive = u.Email, u.Name, u.Role, u.IsActive
	if withPassword != nil {
		withPassword(&stored)
	}
	stored.UpdatedAt = s.Now().UTC()
	u.UpdatedAt = stored.UpdatedAt
	s.users[u.ID] = stored
	return nil
}

func (s *UserStore) UpdatePassword(_ context.Context, id string, passwordHash string, changedAt time.Time) error {
	return s.mutate(id, func(u *model.User) {
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = changedAt
	})
}

func (s *UserStore) RecordLoginFailure(_ context.Context, id string, attempts int, lockedUntil *time.Time) error {
	return s.mutate(id, func(u *model.User) {
		u.FailedLoginAttempts = attempts
		u.LockedUntil = lockedUntil
	})
}

func (s *UserStore) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	return s.mutate(id, func(u *model.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.LastLogin = &at
	})
}

func (s *UserStore) Unlock(_ context.Context, id string) error {
	return s.mutate(id, func(u *model.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (s *UserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *UserStore) mutate(id string, fn func(u *model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func paginate[T any](items []T, page int, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return items[start:end]
}
