package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"bus-stop-inventory/internal/model"
)

type AuditStore struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	nextID  int64
	// Err, when set, fails every Insert.
	Err error
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Insert(_ context.Context, entry *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	s.nextID++
	entry.ID = s.nextID
	entry.Timestamp = time.Now().UTC()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *AuditStore) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]model.AuditEntry, 0)
	for _, e := range s.entries {
		if query.UserID != "" && (e.UserID == nil || *e.UserID != query.UserID) {
			continue
		}
		if query.Action != "" && string(e.Action) != query.Action {
			continue
		}
		if query.ResourceType != "" && e.ResourceType != query.ResourceType {
			continue
		}
		if query.From != nil && e.Timestamp.Before(*query.From) {
			continue
		}
		if query.To != nil && e.Timestamp.After(*query.To) {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	return paginate(matched, query.Page, query.Limit), len(matched), nil
}

// Entries returns a copy of everything written so far, oldest first.
func (s *AuditStore) Entries() []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.entries...)
}

// Actions lists the actions written so far, oldest first.
func (s *AuditStore) Actions() []model.AuditAction {
	entries := s.Entries()
	actions := make([]model.AuditAction, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}
