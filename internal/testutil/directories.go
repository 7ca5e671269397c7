package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/pkg/apierror"
)

type DirectoryStore struct {
	mu        sync.Mutex
	districts map[int64]model.District
	routes    map[int64]model.Route
	nextID    int64
}

func NewDirectoryStore() *DirectoryStore {
	return &DirectoryStore{districts: map[int64]model.District{}, routes: map[int64]model.Route{}}
}

func (s *DirectoryStore) ListDistricts(_ context.Context, activeOnly bool) ([]model.District, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.District, 0, len(s.districts))
	for _, d := range s.districts {
		if activeOnly && !d.IsActive {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *DirectoryStore) GetDistrict(_ context.Context, id int64) (*model.District, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.districts[id]
	if !ok {
		return nil, model.ErrDistrictNotFound
	}
	return &d, nil
}

func (s *DirectoryStore) CreateDistrict(_ context.Context, d *model.District) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.districtTakenLocked(d.Name, 0) {
		return apierror.Conflict("district already exists", d.Name)
	}
	s.nextID++
	d.ID = s.nextID
	d.CreatedAt = time.Now().UTC()
	s.districts[d.ID] = *d
	return nil
}

func (s *DirectoryStore) UpdateDistrict(_ context.Context, d *model.District) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.districts[d.ID]; !ok {
		return model.ErrDistrictNotFound
	}
	if s.districtTakenLocked(d.Name, d.ID) {
		return apierror.Conflict("district already exists", d.Name)
	}
	s.districts[d.ID] = *d
	return nil
}

func (s *DirectoryStore) DeleteDistrict(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.districts[id]; !ok {
		return model.ErrDistrictNotFound
	}
	delete(s.districts, id)
	return nil
}

func (s *DirectoryStore) ListRoutes(_ context.Context, activeOnly bool) ([]model.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Route, 0, len(s.routes))
	for _, r := range s.routes {
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *DirectoryStore) GetRoute(_ context.Context, id int64) (*model.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routes[id]
	if !ok {
		return nil, model.ErrRouteNotFound
	}
	return &r, nil
}

func (s *DirectoryStore) CreateRoute(_ context.Context, r *model.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.routeTakenLocked(r.Number, 0) {
		return apierror.Conflict("route already exists", r.Number)
	}
	s.nextID++
	r.ID = s.nextID
	r.CreatedAt = time.Now().UTC()
	s.routes[r.ID] = *r
	return nil
}

func (s *DirectoryStore) UpdateRoute(_ context.Context, r *model.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.routes[r.ID]; !ok {
		return model.ErrRouteNotFound
	}
	if s.routeTakenLocked(r.Number, r.ID) {
		return apierror.Conflict("route already exists", r.Number)
	}
	s.routes[r.ID] = *r
	return nil
}

func (s *DirectoryStore) DeleteRoute(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.routes[id]; !ok {
		return model.ErrRouteNotFound
	}
	delete(s.routes, id)
	return nil
}

func (s *DirectoryStore) districtTakenLocked(name string, exceptID int64) bool {
	for id, d := range s.districts {
		if id != exceptID && strings.EqualFold(d.Name, name) {
			return true
		}
	}
	return false
}

func (s *DirectoryStore) routeTakenLocked(number string, exceptID int64) bool {
	for id, r := range s.routes {
		if id != exceptID && strings.EqualFold(r.Number, number) {
			return true
		}
	}
	return false
}
