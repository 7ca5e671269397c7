package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/pkg/apierror"
)

const stopResource = "stop"

// StopService manages the bus-stop inventory and its change history.
type StopService struct {
	stops  StopStore
	photos PhotoStore
	files  PhotoFiles
	audit  *AuditService
	now    func() time.Time
}

func NewStopService(stops StopStore, photos PhotoStore, files PhotoFiles, audit *AuditService) *StopService {
	return &StopService{stops: stops, photos: photos, files: files, audit: audit, now: time.Now}
}

func (s *StopService) List(ctx context.Context, query model.StopQuery) ([]model.BusStop, model.Meta, error) {
	query.Page, query.Limit = normalizePage(query.Page, query.Limit, 20, 100)

	fields := map[string]string{}
	if query.Status != "" && !model.StopStatus(query.Status).Valid() {
		fields["status"] = "unknown status"
	}
	if query.Condition != "" && !model.Condition(query.Condition).Valid() {
		fields["condition"] = "unknown condition"
	}
	if len(fields) > 0 {
		return nil, model.Meta{}, apierror.Validation(fields)
	}

	stops, total, err := s.stops.List(ctx, query)
	if err != nil {
		return nil, model.Meta{}, err
	}
	return stops, model.NewMeta(query.Page, query.Limit, total), nil
}

func (s *StopService) All(ctx context.Context) ([]model.BusStop, error) {
	return s.stops.All(ctx)
}

func (s *StopService) Districts(ctx context.Context) ([]string, error) {
	return s.stops.Districts(ctx)
}

func (s *StopService) Stats(ctx context.Context) (model.StopStats, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.stops.Stats(ctx, monthStart)
}

// Get looks a stop up by numeric id or stop code and attaches its photos.
func (s *StopService) Get(ctx context.Context, ref string) (*model.BusStop, error) {
	stop, err := resolveStop(ctx, s.stops, ref)
	if err != nil {
		return nil, err
	}

	photos, err := s.photos.ListByStop(ctx, stop.ID)
	if err != nil {
		return nil, err
	}
	stop.Photos = photos
	return stop, nil
}

func (s *StopService) History(ctx context.Context, ref string) ([]model.ChangeLog, error) {
	stop, err := resolveStop(ctx, s.stops, ref)
	if err != nil {
		return nil, err
	}
	return s.stops.History(ctx, stop.ID)
}

func (s *StopService) Create(ctx context.Context, actor model.AuditActor, req model.CreateStopRequest) (*model.BusStop, error) {
	stop := newStopFromRequest(req)
	if fields := validateStop(stop, s.now()); len(fields) > 0 {
		return nil, apierror.Validation(fields)
	}
	if actor.UserID != "" {
		createdBy := actor.UserID
		stop.CreatedBy = &createdBy
	}

	if err := s.stops.Create(ctx, stop); err != nil {
		return nil, err
	}

	data := stop.Snapshot()
	data["stop_id"] = stop.StopCode
	data["passport_number"] = stop.PassportNumber
	s.audit.LogCreate(ctx, actor, stopResource, stop.StopCode, data)
	return stop, nil
}

// Update applies a partial change, writing one change-log row per modified
// field together with the stop. An update that changes nothing writes
// nothing.
func (s *StopService) Update(ctx context.Context, actor model.AuditActor, ref string, req model.UpdateStopRequest) (*model.BusStop, error) {
	stop, err := resolveStop(ctx, s.stops, ref)
	if err != nil {
		return nil, err
	}

	before := stop.Snapshot()
	applyStopUpdate(stop, req)
	if fields := validateStop(stop, s.now()); len(fields) > 0 {
		return nil, apierror.Validation(fields)
	}

	return s.save(ctx, actor, stop, before, model.AuditUpdate, nil)
}

// RecordInspection stamps the stop as inspected now by the caller.
func (s *StopService) RecordInspection(ctx context.Context, actor model.AuditActor, ref string, next *time.Time) (*model.BusStop, error) {
	stop, err := resolveStop(ctx, s.stops, ref)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if next != nil && !next.After(now) {
		return nil, apierror.Validation(map[string]string{"next_inspection_date": "must be in the future"})
	}

	before := stop.Snapshot()
	inspector := actor.Name
	if inspector == "" {
		inspector = actor.Email
	}
	stop.LastInspectionDate = &now
	stop.InspectorName = &inspector
	if next != nil {
		nextUTC := next.UTC()
		stop.NextInspectionDate = &nextUTC
	}

	details := map[string]any{
		"stop_id":              stop.StopCode,
		"inspector":            inspector,
		"next_inspection_date": stop.NextInspectionDate,
	}
	return s.save(ctx, actor, stop, before, model.AuditInspection, details)
}

func (s *StopService) save(ctx context.Context, actor model.AuditActor, stop *model.BusStop, before map[string]any, action model.AuditAction, details map[string]any) (*model.BusStop, error) {
	changes := DiffSnapshots(before, stop.Snapshot())
	if len(changes) == 0 {
		return stop, nil
	}

	now := s.now().UTC()
	logs := make([]model.ChangeLog, 0, len(changes))
	for _, field := range sortedKeys(changes) {
		change := changes[field]
		entry := model.ChangeLog{
			StopID:    stop.ID,
			UserName:  actor.Name,
			FieldName: field,
			OldValue:  changeValue(change.Old),
			NewValue:  changeValue(change.New),
			ChangedAt: now,
			IPAddress: truncate(actor.IP, maxIPLength),
		}
		if actor.UserID != "" {
			userID := actor.UserID
			entry.UserID = &userID
		}
		logs = append(logs, entry)
	}

	if err := s.stops.Update(ctx, stop, logs); err != nil {
		return nil, err
	}

	if action == model.AuditUpdate {
		s.audit.Log(ctx, actor, model.AuditUpdate, stopResource, stop.StopCode, map[string]any{"changes": changes})
	} else {
		details["changes"] = changes
		s.audit.Log(ctx, actor, action, stopResource, stop.StopCode, SerializeMap(details))
	}
	return stop, nil
}

// Delete removes the stop with its photos and change history. Photo files
// are removed after the rows are gone; a leftover file is only logged.
func (s *StopService) Delete(ctx context.Context, actor model.AuditActor, ref string) error {
	stop, err := resolveStop(ctx, s.stops, ref)
	if err != nil {
		return err
	}

	if err := s.stops.Delete(ctx, stop.ID); err != nil {
		return err
	}

	if s.files != nil {
		if err := s.files.RemoveAll(stop.StopCode); err != nil {
			slog.Warn("failed to remove stop photos", "stop_id", stop.StopCode, "error", err)
		}
	}

	s.audit.LogDelete(ctx, actor, stopResource, stop.StopCode, map[string]any{
		"stop_id":         stop.StopCode,
		"passport_number": stop.PassportNumber,
		"address":         stop.Address,
		"district":        stop.District,
	})
	return nil
}

// resolveStop accepts either the numeric id or the stop code.
func resolveStop(ctx context.Context, stops StopStore, ref string) (*model.BusStop, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, model.ErrStopNotFound
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		stop, err := stops.GetByID(ctx, id)
		if !errors.Is(err, model.ErrStopNotFound) {
			return stop, err
		}
	}
	return stops.GetByCode(ctx, strings.ToUpper(ref))
}

func newStopFromRequest(req model.CreateStopRequest) *model.BusStop {
	stop := &model.BusStop{
		Address:            strings.TrimSpace(req.Address),
		Landmark:           trimmedOrNil(req.Landmark),
		District:           strings.TrimSpace(req.District),
		Routes:             trimmedOrNil(req.Routes),
		Latitude:           req.Latitude,
		Longitude:          req.Longitude,
		Status:             req.Status,
		Condition:          req.Condition,
		MeetsStandards:     true,
		StopType:           req.StopType,
		LegsCount:          2,
		YearBuilt:          req.YearBuilt,
		LastRepairDate:     req.LastRepairDate,
		PaintColor:         trimmedOrNil(req.PaintColor),
		RoofType:           req.RoofType,
		RoofCondition:      req.RoofCondition,
		GlassCondition:     req.GlassCondition,
		HasElectricity:     req.HasElectricity,
		HasBin:             req.HasBin,
		BinCondition:       req.BinCondition,
		NextInspectionDate: req.NextInspectionDate,
	}
	if req.MeetsStandards != nil {
		stop.MeetsStandards = *req.MeetsStandards
	}
	if req.LegsCount != nil {
		stop.LegsCount = *req.LegsCount
	}
	if stop.Status == "" {
		stop.Status = model.StopActive
	}
	if stop.Condition == "" {
		stop.Condition = model.ConditionSatisfactory
	}
	if stop.StopType == "" {
		stop.StopType = model.StopType4m
	}
	if stop.RoofType == "" {
		stop.RoofType = model.RoofFlat
	}
	if stop.RoofCondition == "" {
		stop.RoofCondition = model.ConditionSatisfactory
	}
	if stop.GlassCondition == "" {
		stop.GlassCondition = model.ConditionSatisfactory
	}
	return stop
}

func applyStopUpdate(stop *model.BusStop, req model.UpdateStopRequest) {
	if req.Address != nil {
		stop.Address = strings.TrimSpace(*req.Address)
	}
	if req.Landmark != nil {
		stop.Landmark = trimmedOrNil(req.Landmark)
	}
	if req.District != nil {
		stop.District = strings.TrimSpace(*req.District)
	}
	if req.Routes != nil {
		stop.Routes = trimmedOrNil(req.Routes)
	}
	if req.Latitude != nil {
		stop.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		stop.Longitude = *req.Longitude
	}
	if req.Status != nil {
		stop.Status = *req.Status
	}
	if req.Condition != nil {
		stop.Condition = *req.Condition
	}
	if req.MeetsStandards != nil {
		stop.MeetsStandards = *req.MeetsStandards
	}
	if req.StopType != nil {
		stop.StopType = *req.StopType
	}
	if req.LegsCount != nil {
		stop.LegsCount = *req.LegsCount
	}
	if req.YearBuilt != nil {
		stop.YearBuilt = req.YearBuilt
	}
	if req.LastRepairDate != nil {
		stop.LastRepairDate = req.LastRepairDate
	}
	if req.PaintColor != nil {
		stop.PaintColor = trimmedOrNil(req.PaintColor)
	}
	if req.RoofType != nil {
		stop.RoofType = *req.RoofType
	}
	if req.RoofCondition != nil {
		stop.RoofCondition = *req.RoofCondition
	}
	if req.GlassCondition != nil {
		stop.GlassCondition = *req.GlassCondition
	}
	if req.HasElectricity != nil {
		stop.HasElectricity = *req.HasElectricity
	}
	if req.HasBin != nil {
		stop.HasBin = *req.HasBin
	}
	if req.BinCondition != nil {
		stop.BinCondition = req.BinCondition
	}
	if req.NextInspectionDate != nil {
		stop.NextInspectionDate = req.NextInspectionDate
	}
}

func validateStop(stop *model.BusStop, now time.Time) map[string]string {
	fields := map[string]string{}

	if stop.Address == "" || len(stop.Address) > 500 {
		fields["address"] = "must be 1-500 characters"
	}
	if stop.District == "" || len(stop.District) > 100 {
		fields["district"] = "must be 1-100 characters"
	}
	if stop.Latitude < -90 || stop.Latitude > 90 {
		fields["latitude"] = "must be between -90 and 90"
	}
	if stop.Longitude < -180 || stop.Longitude > 180 {
		fields["longitude"] = "must be between -180 and 180"
	}
	if !stop.Status.Valid() {
		fields["status"] = "unknown status"
	}
	if !stop.Condition.Valid() {
		fields["condition"] = "unknown condition"
	}
	if !stop.StopType.Valid() {
		fields["stop_type"] = "must be 4m or 7m"
	}
	if !stop.RoofType.Valid() {
		fields["roof_type"] = "must be flat, arched or peaked"
	}
	if !stop.RoofCondition.Valid() {
		fields["roof_condition"] = "unknown condition"
	}
	if !stop.GlassCondition.Valid() {
		fields["glass_condition"] = "unknown condition"
	}
	if stop.BinCondition != nil && !stop.BinCondition.Valid() {
		fields["bin_condition"] = "unknown condition"
	}
	if stop.LegsCount < 0 || stop.LegsCount > 20 {
		fields["legs_count"] = "must be between 0 and 20"
	}
	if stop.YearBuilt != nil && (*stop.YearBuilt < 1900 || *stop.YearBuilt > now.Year()+1) {
		fields["year_built"] = fmt.Sprintf("must be between 1900 and %d", now.Year()+1)
	}

	return fields
}

// changeValue renders a serialized snapshot value for the change log.
func changeValue(v any) *string {
	var text string
	switch value := v.(type) {
	case nil:
		return nil
	case string:
		text = value
	case bool:
		text = strconv.FormatBool(value)
	case int64:
		text = strconv.FormatInt(value, 10)
	case float64:
		text = strconv.FormatFloat(value, 'f', -1, 64)
	default:
		text = fmt.Sprint(value)
	}
	return &text
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
