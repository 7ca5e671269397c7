package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/pkg/apierror"
)

// DirectoryService maintains the editable district and route lists.
type DirectoryService struct {
	store DirectoryStore
	audit *AuditService
}

func NewDirectoryService(store DirectoryStore, audit *AuditService) *DirectoryService {
	return &DirectoryService{store: store, audit: audit}
}

// ListDistricts returns active districts first, then by name.
func (s *DirectoryService) ListDistricts(ctx context.Context, activeOnly bool) ([]model.District, error) {
	districts, err := s.store.ListDistricts(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(districts, func(i, j int) bool {
		if districts[i].IsActive != districts[j].IsActive {
			return districts[i].IsActive
		}
		return strings.ToLower(districts[i].Name) < strings.ToLower(districts[j].Name)
	})
	return districts, nil
}

func (s *DirectoryService) CreateDistrict(ctx context.Context, actor model.AuditActor, req model.DistrictRequest) (*model.District, error) {
	name, err := requiredName("name", req.Name, 100)
	if err != nil {
		return nil, err
	}

	district := &model.District{Name: name, IsActive: true}
	if req.IsActive != nil {
		district.IsActive = *req.IsActive
	}
	if err := s.store.CreateDistrict(ctx, district); err != nil {
		return nil, err
	}

	s.audit.LogCreate(ctx, actor, "district", fmt.Sprint(district.ID), district.Snapshot())
	return district, nil
}

func (s *DirectoryService) UpdateDistrict(ctx context.Context, actor model.AuditActor, id int64, req model.DistrictRequest) (*model.District, error) {
	district, err := s.store.GetDistrict(ctx, id)
	if err != nil {
		return nil, err
	}

	before := district.Snapshot()
	if req.Name != nil {
		name, err := requiredName("name", req.Name, 100)
		if err != nil {
			return nil, err
		}
		district.Name = name
	}
	if req.IsActive != nil {
		district.IsActive = *req.IsActive
	}

	if len(DiffSnapshots(before, district.Snapshot())) == 0 {
		return district, nil
	}
	if err := s.store.UpdateDistrict(ctx, district); err != nil {
		return nil, err
	}

	s.audit.LogUpdate(ctx, actor, "district", fmt.Sprint(id), before, district.Snapshot())
	return district, nil
}

func (s *DirectoryService) DeleteDistrict(ctx context.Context, actor model.AuditActor, id int64) error {
	district, err := s.store.GetDistrict(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDistrict(ctx, id); err != nil {
		return err
	}

	s.audit.LogDelete(ctx, actor, "district", fmt.Sprint(id), district.Snapshot())
	return nil
}

// ListRoutes returns active routes first, then by number.
func (s *DirectoryService) ListRoutes(ctx context.Context, activeOnly bool) ([]model.Route, error) {
	routes, err := s.store.ListRoutes(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].IsActive != routes[j].IsActive {
			return routes[i].IsActive
		}
		return routes[i].Number < routes[j].Number
	})
	return routes, nil
}

func (s *DirectoryService) CreateRoute(ctx context.Context, actor model.AuditActor, req model.RouteRequest) (*model.Route, error) {
	number, err := requiredName("number", req.Number, 20)
	if err != nil {
		return nil, err
	}

	route := &model.Route{Number: number, Name: trimmedOrNil(req.Name), IsActive: true}
	if req.IsActive != nil {
		route.IsActive = *req.IsActive
	}
	if err := s.store.CreateRoute(ctx, route); err != nil {
		return nil, err
	}

	s.audit.LogCreate(ctx, actor, "route", fmt.Sprint(route.ID), route.Snapshot())
	return route, nil
}

func (s *DirectoryService) UpdateRoute(ctx context.Context, actor model.AuditActor, id int64, req model.RouteRequest) (*model.Route, error) {
	route, err := s.store.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}

	before := route.Snapshot()
	if req.Number != nil {
		number, err := requiredName("number", req.Number, 20)
		if err != nil {
			return nil, err
		}
		route.Number = number
	}
	if req.Name != nil {
		route.Name = trimmedOrNil(req.Name)
	}
	if req.IsActive != nil {
		route.IsActive = *req.IsActive
	}

	if len(DiffSnapshots(before, route.Snapshot())) == 0 {
		return route, nil
	}
	if err := s.store.UpdateRoute(ctx, route); err != nil {
		return nil, err
	}

	s.audit.LogUpdate(ctx, actor, "route", fmt.Sprint(id), before, route.Snapshot())
	return route, nil
}

func (s *DirectoryService) DeleteRoute(ctx context.Context, actor model.AuditActor, id int64) error {
	route, err := s.store.GetRoute(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRoute(ctx, id); err != nil {
		return err
	}

	s.audit.LogDelete(ctx, actor, "route", fmt.Sprint(id), route.Snapshot())
	return nil
}

func requiredName(field string, value *string, maxLen int) (string, error) {
	if value == nil {
		return "", apierror.Validation(map[string]string{field: "required"})
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" || len(trimmed) > maxLen {
		return "", apierror.Validation(map[string]string{field: fmt.Sprintf("must be 1-%d characters", maxLen)})
	}
	return trimmed, nil
}
