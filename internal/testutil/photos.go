package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"bus-stop-inventory/internal/model"
)

type PhotoStore struct {
	mu     sync.Mutex
	photos map[int64]model.Photo
	nextID int64
}

func NewPhotoStore() *PhotoStore {
	return &PhotoStore{photos: map[int64]model.Photo{}}
}

func (s *PhotoStore) Create(_ context.Context, p *model.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.IsMain {
		s.clearMainLocked(p.StopID)
	}
	s.nextID++
	p.ID = s.nextID
	p.UploadedAt = time.Now().UTC()
	s.photos[p.ID] = *p
	return nil
}

func (s *PhotoStore) GetByID(_ context.Context, id int64) (*model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.photos[id]
	if !ok {
		return nil, model.ErrPhotoNotFound
	}
	return &p, nil
}

func (s *PhotoStore) ListByStop(_ context.Context, stopID int64) ([]model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	photos := make([]model.Photo, 0)
	for _, p := range s.photos {
		if p.StopID == stopID {
			photos = append(photos, p)
		}
	}
	sort.Slice(photos, func(i, j int) bool {
		if photos[i].IsMain != photos[j].IsMain {
			return photos[i].IsMain
		}
		return photos[i].ID > photos[j].ID
	})
	return photos, nil
}

func (s *PhotoStore) SetMain(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.photos[id]
	if !ok {
		return model.ErrPhotoNotFound
	}
	s.clearMainLocked(p.StopID)
	p.IsMain = true
	s.photos[id] = p
	return nil
}

func (s *PhotoStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[id]; !ok {
		return model.ErrPhotoNotFound
	}
	delete(s.photos, id)
	return nil
}

func (s *PhotoStore) clearMainLocked(stopID int64) {
	for id, p := range s.photos {
		if p.StopID == stopID && p.IsMain {
			p.IsMain = false
			s.photos[id] = p
		}
	}
}
