package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/pkg/apierror"
)

const attentionLimit = 10

var exportHeader = []string{
	"stop_id", "passport_number", "address", "landmark", "district", "routes",
	"latitude", "longitude", "status", "condition", "meets_standards",
	"stop_type", "legs_count", "year_built", "paint_color",
	"roof_type", "roof_condition", "glass_condition",
	"has_electricity", "has_bin", "last_inspection_date", "inspector_name", "qr_payload",
}

type ReportService struct {
	stops StopStore
	audit *AuditService
	now   func() time.Time
}

func NewReportService(stops StopStore, audit *AuditService) *ReportService {
	return &ReportService{stops: stops, audit: audit, now: time.Now}
}

func (s *ReportService) Dashboard(ctx context.Context) (model.Dashboard, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	stats, err := s.stops.Stats(ctx, monthStart)
	if err != nil {
		return model.Dashboard{}, err
	}

	attention, err := s.stops.NeedingAttention(ctx, attentionLimit)
	if err != nil {
		return model.Dashboard{}, err
	}

	return model.Dashboard{Stats: stats, AttentionNeeded: attention}, nil
}

// ExportFilename is the download name for an export generated now.
func (s *ReportService) ExportFilename(format string) string {
	return fmt.Sprintf("bus_stops_%s.%s", s.now().UTC().Format("20060102_150405"), format)
}

// PrepareExport validates the filter, loads the matching stops and records
// the export in the audit trail. The caller then streams them with WriteCSV.
func (s *ReportService) PrepareExport(ctx context.Context, actor model.AuditActor, filter model.ExportFilter) ([]model.BusStop, error) {
	filter.Format = strings.ToLower(strings.TrimSpace(filter.Format))
	if filter.Format == "" {
		filter.Format = "csv"
	}

	fields := map[string]string{}
	if filter.Format != "csv" {
		fields["format"] = "only csv is supported"
	}
	if filter.Status != "" && !model.StopStatus(filter.Status).Valid() {
		fields["status"] = "unknown status"
	}
	if filter.Condition != "" && !model.Condition(filter.Condition).Valid() {
		fields["condition"] = "unknown condition"
	}
	if len(fields) > 0 {
		return nil, apierror.Validation(fields)
	}

	stops, err := s.stops.Export(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.audit.LogExport(ctx, actor, filter.Format, map[string]any{
		"district":  filter.District,
		"status":    filter.Status,
		"condition": filter.Condition,
		"count":     len(stops),
	})
	return stops, nil
}

func WriteCSV(w io.Writer, stops []model.BusStop) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}

	for _, stop := range stops {
		record := []string{
			stop.StopCode,
			stop.PassportNumber,
			stop.Address,
			deref(stop.Landmark),
			stop.District,
			deref(stop.Routes),
			strconv.FormatFloat(stop.Latitude, 'f', -1, 64),
			strconv.FormatFloat(stop.Longitude, 'f', -1, 64),
			string(stop.Status),
			string(stop.Condition),
			strconv.FormatBool(stop.MeetsStandards),
			string(stop.StopType),
			strconv.Itoa(stop.LegsCount),
			optionalInt(stop.YearBuilt),
			deref(stop.PaintColor),
			string(stop.RoofType),
			string(stop.RoofCondition),
			string(stop.GlassCondition),
			strconv.FormatBool(stop.HasElectricity),
			strconv.FormatBool(stop.HasBin),
			optionalDate(stop.LastInspectionDate),
			deref(stop.InspectorName),
			stop.QRPayload(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optionalInt(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

func optionalDate(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format("2006-01-02")
}
