package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bus-stop-inventory/internal/model"
)

type StopStore struct {
	mu      sync.Mutex
	stops   map[int64]model.BusStop
	history []model.ChangeLog
	nextID  int64
	nextLog int64
	Now     func() time.Time
}

func NewStopStore() *StopStore {
	return &StopStore{stops: map[int64]model.BusStop{}, Now: time.Now}
}

func (s *StopStore) sortedLocked() []model.BusStop {
	stops := make([]model.BusStop, 0, len(s.stops))
	for _, stop := range s.stops {
		stops = append(stops, stop)
	}
	sort.Slice(stops, func(i, j int) bool { return stops[i].StopCode < stops[j].StopCode })
	return stops
}

func (s *StopStore) List(_ context.Context, query model.StopQuery) ([]model.BusStop, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(query.Search)
	matched := make([]model.BusStop, 0)
	for _, stop := range s.sortedLocked() {
		if search != "" && !strings.Contains(strings.ToLower(stop.StopCode+" "+stop.Address+" "+stop.District), search) {
			continue
		}
		if query.District != "" && stop.District != query.District {
			continue
		}
		if query.Status != "" && string(stop.Status) != query.Status {
			continue
		}
		if query.Condition != "" && string(stop.Condition) != query.Condition {
			continue
		}
		if query.HasElectricity != nil && stop.HasElectricity != *query.HasElectricity {
			continue
		}
		if query.HasBin != nil && stop.HasBin != *query.HasBin {
			continue
		}
		if query.MeetsStandards != nil && stop.MeetsStandards != *query.MeetsStandards {
			continue
		}
		matched = append(matched, stop)
	}
	return paginate(matched, query.Page, query.Limit), len(matched), nil
}

func (s *StopStore) All(_ context.Context) ([]model.BusStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(), nil
}

func (s *StopStore) Export(_ context.Context, filter model.ExportFilter) ([]model.BusStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]model.BusStop, 0)
	for _, stop := range s.sortedLocked() {
		if filter.District != "" && stop.District != filter.District {
			continue
		}
		if filter.Status != "" && string(stop.Status) != filter.Status {
			continue
		}
		if filter.Condition != "" && string(stop.Condition) != filter.Condition {
			continue
		}
		matched = append(matched, stop)
	}
	return matched, nil
}

func (s *StopStore) GetByID(_ context.Context, id int64) (*model.BusStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stop, ok := s.stops[id]
	if !ok {
		return nil, model.ErrStopNotFound
	}
	return &stop, nil
}

func (s *StopStore) GetByCode(_ context.Context, code string) (*model.BusStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stop := range s.stops {
		if stop.StopCode == code {
			return &stop, nil
		}
	}
	return nil, model.ErrStopNotFound
}

func (s *StopStore) Create(_ context.Context, stop *model.BusStop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	codes := make([]string, 0, len(s.stops))
	passports := make([]string, 0, len(s.stops))
	for _, existing := range s.stops {
		codes = append(codes, existing.StopCode)
		if strings.HasPrefix(existing.PassportNumber, fmt.Sprintf("TP-%d-", now.Year())) {
			passports = append(passports, existing.PassportNumber)
		}
	}

	s.nextID++
	stop.ID = s.nextID
	stop.StopCode = model.NextStopCode(codes)
	stop.PassportNumber = model.NextPassportNumber(now.Year(), passports)
	stop.CreatedAt = now
	stop.UpdatedAt = now
	s.stops[stop.ID] = *stop
	return nil
}

func (s *StopStore) Update(_ context.Context, stop *model.BusStop, changes []model.ChangeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stops[stop.ID]; !ok {
		return model.ErrStopNotFound
	}

	stop.UpdatedAt = s.Now().UTC()
	stored := *stop
	stored.Photos = nil
	s.stops[stop.ID] = stored

	for _, c := range changes {
		s.nextLog++
		c.ID = s.nextLog
		c.StopID = stop.ID
		s.history = append(s.history, c)
	}
	return nil
}

func (s *StopStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stops[id]; !ok {
		return model.ErrStopNotFound
	}
	delete(s.stops, id)

	kept := s.history[:0]
	for _, c := range s.history {
		if c.StopID != id {
			kept = append(kept, c)
		}
	}
	s.history = kept
	return nil
}

func (s *StopStore) History(_ context.Context, stopID int64) ([]model.ChangeLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := make([]model.ChangeLog, 0)
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].StopID == stopID {
			logs = append(logs, s.history[i])
		}
	}
	return logs, nil
}

func (s *StopStore) Districts(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]struct{}{}
	districts := make([]string, 0)
	for _, stop := range s.stops {
		if _, ok := seen[stop.District]; ok || stop.District == "" {
			continue
		}
		seen[stop.District] = struct{}{}
		districts = append(districts, stop.District)
	}
	sort.Strings(districts)
	return districts, nil
}

func (s *StopStore) Stats(_ context.Context, monthStart time.Time) (model.StopStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := model.StopStats{
		ByStatus:    map[string]int{},
		ByCondition: map[string]int{},
		ByDistrict:  map[string]int{},
	}
	for _, stop := range s.stops {
		stats.Total++
		stats.ByStatus[string(stop.Status)]++
		stats.ByCondition[string(stop.Condition)]++
		stats.ByDistrict[stop.District]++
		if stop.LastInspectionDate != nil && !stop.LastInspectionDate.Before(monthStart) {
			stats.InspectedThisMonth++
		}
	}
	return stats, nil
}

func (s *StopStore) NeedingAttention(_ context.Context, limit int) ([]model.AttentionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]model.BusStop, 0)
	for _, stop := range s.stops {
		if stop.Condition == model.ConditionCritical || stop.Condition == model.ConditionNeedsRepair {
			candidates = append(candidates, stop)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i].Condition == model.ConditionCritical, candidates[j].Condition == model.ConditionCritical
		if ci != cj {
			return ci
		}
		if !candidates[i].UpdatedAt.Equal(candidates[j].UpdatedAt) {
			return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
		}
		return candidates[i].ID > candidates[j].ID
	})

	items := make([]model.AttentionItem, 0, min(limit, len(candidates)))
	for _, stop := range paginate(candidates, 1, limit) {
		items = append(items, model.AttentionItem{
			ID:        stop.ID,
			StopCode:  stop.StopCode,
			Address:   stop.Address,
			District:  stop.District,
			Condition: stop.Condition,
			Status:    stop.Status,
		})
	}
	return items, nil
}
