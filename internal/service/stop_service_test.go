package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/storage"
)

func ptr[T any](v T) *T {
	return &v
}

func createStop(t *testing.T, f *fixture, actor model.AuditActor, address string) *model.BusStop {
	t.Helper()

	stop, err := f.stopsSvc.Create(context.Background(), actor, model.CreateStopRequest{
		Address:   address,
		District:  "Central",
		Latitude:  51.12,
		Longitude: 71.43,
	})
	require.NoError(t, err)
	return stop
}

func TestStopService_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("allocates codes and applies defaults", func(t *testing.T) {
		f := newFixture(t)
		inspector := f.addUser(t, "inspector@example.com", "secret123", model.RoleInspector)

		first := createStop(t, f, actorFor(inspector), "1 Main St")
		second := createStop(t, f, actorFor(inspector), "2 Main St")

		assert.Equal(t, "BS-001", first.StopCode)
		assert.Equal(t, "BS-002", second.StopCode)
		assert.Equal(t, "TP-2026-0001", first.PassportNumber)
		assert.Equal(t, model.StopActive, first.Status)
		assert.Equal(t, model.ConditionSatisfactory, first.Condition)
		assert.Equal(t, model.StopType4m, first.StopType)
		assert.Equal(t, model.RoofFlat, first.RoofType)
		assert.Equal(t, 2, first.LegsCount)
		assert.True(t, first.MeetsStandards)
		require.NotNil(t, first.CreatedBy)
		assert.Equal(t, inspector.ID, *first.CreatedBy)

		entry := f.auditStore.Entries()[0]
		assert.Equal(t, model.AuditCreate, entry.Action)
		require.NotNil(t, entry.ResourceID)
		assert.Equal(t, "BS-001", *entry.ResourceID)
		data := entry.Details["data"].(map[string]any)
		assert.Equal(t, "TP-2026-0001", data["passport_number"])
		assert.Contains(t, data, "last_repair_date")
		assert.Nil(t, data["last_repair_date"])
	})

	t.Run("freed codes are reused", func(t *testing.T) {
		f := newFixture(t)
		actor := anonymousClient()
		createStop(t, f, actor, "1 Main St")
		createStop(t, f, actor, "2 Main St")

		require.NoError(t, f.stopsSvc.Delete(ctx, actor, "BS-001"))
		third := createStop(t, f, actor, "3 Main St")
		assert.Equal(t, "BS-001", third.StopCode)
	})

	t.Run("invalid fields", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.stopsSvc.Create(ctx, anonymousClient(), model.CreateStopRequest{
			Latitude:  91,
			Longitude: -181,
			Status:    model.StopStatus("lost"),
			YearBuilt: ptr(1850),
		})
		apiErr := requireAPIError(t, err, "VALIDATION_ERROR", http.StatusUnprocessableEntity)
		for _, field := range []string{"address", "district", "latitude", "longitude", "status", "year_built"} {
			assert.Contains(t, apiErr.Fields, field)
		}
		assert.Empty(t, f.auditStore.Entries())
	})
}

func TestStopService_Resolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	created := createStop(t, f, anonymousClient(), "1 Main St")

	for _, ref := range []string{"1", "BS-001", "bs-001", " BS-001 "} {
		stop, err := f.stopsSvc.Get(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, created.ID, stop.ID)
	}

	_, err := f.stopsSvc.Get(ctx, "BS-999")
	assert.ErrorIs(t, err, model.ErrStopNotFound)
	_, err = f.stopsSvc.Get(ctx, "")
	assert.ErrorIs(t, err, model.ErrStopNotFound)
}

func TestStopService_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("writes a change log per field", func(t *testing.T) {
		f := newFixture(t)
		inspector := f.addUser(t, "inspector@example.com", "secret123", model.RoleInspector)
		createStop(t, f, actorFor(inspector), "1 Main St")

		updated, err := f.stopsSvc.Update(ctx, actorFor(inspector), "BS-001", model.UpdateStopRequest{
			Condition:      ptr(model.ConditionCritical),
			HasElectricity: ptr(true),
			Landmark:       ptr("  near the park "),
		})
		require.NoError(t, err)
		assert.Equal(t, model.ConditionCritical, updated.Condition)

		history, err := f.stopsSvc.History(ctx, "BS-001")
		require.NoError(t, err)
		require.Len(t, history, 3)

		byField := map[string]model.ChangeLog{}
		for _, entry := range history {
			byField[entry.FieldName] = entry
		}
		require.Contains(t, byField, "condition")
		assert.Equal(t, "satisfactory", *byField["condition"].OldValue)
		assert.Equal(t, "critical", *byField["condition"].NewValue)
		assert.Nil(t, byField["landmark"].OldValue)
		assert.Equal(t, "near the park", *byField["landmark"].NewValue)
		assert.Equal(t, "true", *byField["has_electricity"].NewValue)
		assert.Equal(t, inspector.Name, byField["condition"].UserName)

		last := f.auditStore.Entries()[1]
		assert.Equal(t, model.AuditUpdate, last.Action)
		assert.Len(t, last.Details["changes"], 3)
	})

	t.Run("no-op update writes nothing", func(t *testing.T) {
		f := newFixture(t)
		createStop(t, f, anonymousClient(), "1 Main St")

		_, err := f.stopsSvc.Update(ctx, anonymousClient(), "BS-001", model.UpdateStopRequest{
			Address:  ptr("1 Main St"),
			District: ptr("Central"),
		})
		require.NoError(t, err)

		history, err := f.stopsSvc.History(ctx, "BS-001")
		require.NoError(t, err)
		assert.Empty(t, history)
		assert.Equal(t, []model.AuditAction{model.AuditCreate}, f.auditStore.Actions())
	})

	t.Run("invalid update is rejected", func(t *testing.T) {
		f := newFixture(t)
		createStop(t, f, anonymousClient(), "1 Main St")

		_, err := f.stopsSvc.Update(ctx, anonymousClient(), "BS-001", model.UpdateStopRequest{LegsCount: ptr(50)})
		requireAPIError(t, err, "VALIDATION_ERROR", http.StatusUnprocessableEntity)
	})
}

func TestStopService_RecordInspection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	inspector := f.addUser(t, "inspector@example.com", "secret123", model.RoleInspector)
	createStop(t, f, anonymousClient(), "1 Main St")

	past := f.clock.Now().Add(-time.Hour)
	_, err := f.stopsSvc.RecordInspection(ctx, actorFor(inspector), "BS-001", &past)
	requireAPIError(t, err, "VALIDATION_ERROR", http.StatusUnprocessableEntity)

	next := f.clock.Now().Add(90 * 24 * time.Hour)
	stop, err := f.stopsSvc.RecordInspection(ctx, actorFor(inspector), "BS-001", &next)
	require.NoError(t, err)
	require.NotNil(t, stop.LastInspectionDate)
	assert.Equal(t, f.clock.Now(), *stop.LastInspectionDate)
	require.NotNil(t, stop.InspectorName)
	assert.Equal(t, inspector.Name, *stop.InspectorName)

	entries := f.auditStore.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, model.AuditInspection, last.Action)
	assert.Equal(t, inspector.Name, last.Details["inspector"])
	assert.Contains(t, last.Details, "changes")

	stats, err := f.stopsSvc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.InspectedThisMonth)
}

func TestStopService_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("removes photo files", func(t *testing.T) {
		f := newFixture(t)
		files := new(storage.MockStorage)
		svc := NewStopService(f.stops, f.photos, files, f.audit)
		createStop(t, f, anonymousClient(), "1 Main St")

		files.On("RemoveAll", "BS-001").Return(nil)

		require.NoError(t, svc.Delete(ctx, anonymousClient(), "1"))
		files.AssertExpectations(t)

		_, err := svc.Get(ctx, "BS-001")
		assert.ErrorIs(t, err, model.ErrStopNotFound)
		assert.Equal(t, []model.AuditAction{model.AuditCreate, model.AuditDelete}, f.auditStore.Actions())
	})

	t.Run("file cleanup failure is not fatal", func(t *testing.T) {
		f := newFixture(t)
		files := new(storage.MockStorage)
		svc := NewStopService(f.stops, f.photos, files, f.audit)
		createStop(t, f, anonymousClient(), "1 Main St")

		files.On("RemoveAll", mock.Anything).Return(errors.New("permission denied"))

		require.NoError(t, svc.Delete(ctx, anonymousClient(), "BS-001"))
		assert.Equal(t, []model.AuditAction{model.AuditCreate, model.AuditDelete}, f.auditStore.Actions())
	})
}
