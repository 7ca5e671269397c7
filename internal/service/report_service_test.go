package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-stop-inventory/internal/model"
)

func TestReportService_Dashboard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	actor := anonymousClient()

	createStop(t, f, actor, "1 Main St")
	createStop(t, f, actor, "2 Main St")
	createStop(t, f, actor, "3 Main St")

	_, err := f.stopsSvc.Update(ctx, actor, "BS-001", model.UpdateStopRequest{Condition: ptr(model.ConditionNeedsRepair)})
	require.NoError(t, err)
	_, err = f.stopsSvc.Update(ctx, actor, "BS-002", model.UpdateStopRequest{Condition: ptr(model.ConditionCritical)})
	require.NoError(t, err)

	dashboard, err := f.reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dashboard.Stats.Total)
	assert.Equal(t, 1, dashboard.Stats.ByCondition["critical"])
	assert.Equal(t, 3, dashboard.Stats.ByDistrict["Central"])

	require.Len(t, dashboard.AttentionNeeded, 2)
	assert.Equal(t, "BS-002", dashboard.AttentionNeeded[0].StopCode)
	assert.Equal(t, "BS-001", dashboard.AttentionNeeded[1].StopCode)
}

func TestReportService_Export(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("filters and audits", func(t *testing.T) {
		f := newFixture(t)
		admin := actorFor(f.addUser(t, "admin@example.com", "secret123", model.RoleAdmin))
		createStop(t, f, admin, "1 Main St")
		createStop(t, f, admin, "2 Main St")
		_, err := f.stopsSvc.Update(ctx, admin, "BS-002", model.UpdateStopRequest{Status: ptr(model.StopRepair)})
		require.NoError(t, err)

		stops, err := f.reports.PrepareExport(ctx, admin, model.ExportFilter{Status: "repair"})
		require.NoError(t, err)
		require.Len(t, stops, 1)
		assert.Equal(t, "BS-002", stops[0].StopCode)

		entries := f.auditStore.Entries()
		last := entries[len(entries)-1]
		assert.Equal(t, model.AuditExport, last.Action)
		assert.Equal(t, "csv", last.Details["export_type"])
		filters := last.Details["filters"].(map[string]any)
		assert.Equal(t, "repair", filters["status"])
		assert.Equal(t, int64(1), filters["count"])
	})

	t.Run("unsupported format and bad filters", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.reports.PrepareExport(ctx, anonymousClient(), model.ExportFilter{Format: "xlsx", Condition: "broken"})
		apiErr := requireAPIError(t, err, "VALIDATION_ERROR", http.StatusUnprocessableEntity)
		assert.Contains(t, apiErr.Fields, "format")
		assert.Contains(t, apiErr.Fields, "condition")
		assert.Empty(t, f.auditStore.Entries())
	})

	t.Run("filename carries the timestamp", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, "bus_stops_20260310_090000.csv", f.reports.ExportFilename("csv"))
	})
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	landmark := "Near \"the\" park, east side"
	year := 2015
	stops := []model.BusStop{{
		StopCode:       "BS-001",
		PassportNumber: "TP-2026-0001",
		Address:        "1 Main St",
		Landmark:       &landmark,
		District:       "Central",
		Latitude:       51.125,
		Longitude:      71.43,
		Status:         model.StopActive,
		Condition:      model.ConditionExcellent,
		MeetsStandards: true,
		StopType:       model.StopType7m,
		LegsCount:      4,
		YearBuilt:      &year,
		RoofType:       model.RoofArched,
		RoofCondition:  model.ConditionExcellent,
		GlassCondition: model.ConditionSatisfactory,
		HasBin:         true,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, stops))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportHeader, records[0])

	row := map[string]string{}
	for i, column := range records[0] {
		row[column] = records[1][i]
	}
	assert.Equal(t, landmark, row["landmark"])
	assert.Equal(t, "51.125", row["latitude"])
	assert.Equal(t, "2015", row["year_built"])
	assert.Equal(t, "", row["routes"])
	assert.Equal(t, "true", row["has_bin"])
	assert.Equal(t, "passport:TP-2026-0001", row["qr_payload"])
}
