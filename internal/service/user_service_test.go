package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-stop-inventory/internal/model"
)

func TestUserService_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("defaults to an active viewer", func(t *testing.T) {
		f := newFixture(t)
		admin := f.addUser(t, "admin@example.com", "secret123", model.RoleAdmin)

		user, err := f.usersSvc.Create(ctx, actorFor(admin), model.CreateUserRequest{
			Email:    " New.User@Example.com ",
			Password: "secret123",
			Name:     "New User",
		})
		require.NoError(t, err)
		assert.Equal(t, "new.user@example.com", user.Email)
		assert.Equal(t, model.RoleViewer, user.Role)
		assert.True(t, user.IsActive)
		require.NotNil(t, user.CreatedBy)
		assert.Equal(t, admin.ID, *user.CreatedBy)

		entry := f.auditStore.Entries()[0]
		assert.Equal(t, model.AuditCreate, entry.Action)
		assert.Equal(t, "user", entry.ResourceType)
		data := entry.Details["data"].(map[string]any)
		assert.Equal(t, "new.user@example.com", data["email"])
		assert.NotContains(t, data, "password_hash")
	})

	t.Run("validation collects every field", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.usersSvc.Create(ctx, anonymousClient(), model.CreateUserRequest{
			Email:    "not-an-email",
			Password: "123",
			Role:     model.Role("root"),
		})
		apiErr := requireAPIError(t, err, "VALIDATION_ERROR", http.StatusUnprocessableEntity)
		assert.Contains(t, apiErr.Fields, "email")
		assert.Contains(t, apiErr.Fields, "password")
		assert.Contains(t, apiErr.Fields, "name")
		assert.Contains(t, apiErr.Fields, "role")
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "taken@example.com", "secret123", model.RoleViewer)

		_, err := f.usersSvc.Create(ctx, anonymousClient(), model.CreateUserRequest{
			Email: "taken@example.com", Password: "secret123", Name: "Dup",
		})
		requireAPIError(t, err, "CONFLICT", http.StatusConflict)
	})
}

func TestUserService_SelfModification(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	admin := f.addUser(t, "admin@example.com", "secret123", model.RoleAdmin)
	actor := actorFor(admin)

	viewer := model.RoleViewer
	_, err := f.usersSvc.Update(ctx, actor, admin.ID, model.UpdateUserRequest{Role: &viewer})
	assert.ErrorIs(t, err, model.ErrSelfModification)

	inactive := false
	_, err = f.usersSvc.Update(ctx, actor, admin.ID, model.UpdateUserRequest{IsActive: &inactive})
	assert.ErrorIs(t, err, model.ErrSelfModification)

	assert.ErrorIs(t, f.usersSvc.Delete(ctx, actor, admin.ID), model.ErrSelfModification)

	name := "Renamed Admin"
	updated, err := f.usersSvc.Update(ctx, actor, admin.ID, model.UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, []model.AuditAction{model.AuditUpdate}, f.auditStore.Actions())
}

func TestUserService_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	admin := f.addUser(t, "admin@example.com", "secret123", model.RoleAdmin)
	target := f.addUser(t, "viewer@example.com", "secret123", model.RoleViewer)

	inspector := model.RoleInspector
	password := "another-secret"
	updated, err := f.usersSvc.Update(ctx, actorFor(admin), target.ID, model.UpdateUserRequest{
		Role:     &inspector,
		Password: &password,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleInspector, updated.Role)

	changes := f.auditStore.Entries()[0].Details["changes"].(map[string]model.FieldChange)
	assert.Equal(t, model.FieldChange{Old: "viewer", New: "inspector"}, changes["role"])
	assert.Contains(t, changes, "password_changed_at")

	_, err = f.auth.Login(ctx, target.Email, password, anonymousClient())
	require.NoError(t, err)

	unchanged := model.RoleInspector
	_, err = f.usersSvc.Update(ctx, actorFor(admin), target.ID, model.UpdateUserRequest{Role: &unchanged})
	require.NoError(t, err)
	assert.Equal(t, []model.AuditAction{model.AuditUpdate, model.AuditLoginSuccess}, f.auditStore.Actions())
}

func TestUserService_UpdatePassword(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("new password ends every session", func(t *testing.T) {
		f := newFixture(t)
		admin := f.addUser(t, "admin@example.com", "secret123", model.RoleAdmin)
		target := f.addUser(t, "viewer@example.com", "secret123", model.RoleViewer)
		for i := 0; i < 2; i++ {
			_, err := f.auth.Login(ctx, target.Email, "secret123", anonymousClient())
			require.NoError(t, err)
		}

		password := "another-secret"
		_, err := f.usersSvc.Update(ctx, actorFor(admin), target.ID, model.UpdateUserRequest{Password: &password})
		require.NoError(t, err)

		sessions, err := f.auth.Sessions(ctx, model.Identity{UserID: target.ID})
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})

	t.Run("failed write leaves the profile untouched", func(t *testing.T) {
		f := newFixture(t)
		admin := f.addUser(t, "admin@example.com", "secret123", model.RoleAdmin)
		target := f.addUser(t, "viewer@example.com", "secret123", model.RoleViewer)
		f.users.UpdateErr = errors.New("connection reset")

		name := "Renamed"
		password := "another-secret"
		_, err := f.usersSvc.Update(ctx, actorFor(admin), target.ID, model.UpdateUserRequest{Name: &name, Password: &password})
		require.Error(t, err)

		stored, err := f.users.GetByID(ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, target.Name, stored.Name)
		assert.Equal(t, target.PasswordHash, stored.PasswordHash)
		assert.Empty(t, f.auditStore.Entries())
	})
}

func TestUserService_UnlockAndReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	admin := f.addUser(t, "admin@example.com", "secret123", model.RoleAdmin)
	target := f.addUser(t, "viewer@example.com", "secret123", model.RoleViewer)

	for i := 0; i < 2; i++ {
		_, err := f.auth.Login(ctx, target.Email, "secret123", anonymousClient())
		require.NoError(t, err)
	}

	until := f.clock.Now().Add(time.Hour)
	require.NoError(t, f.users.RecordLoginFailure(ctx, target.ID, 5, &until))

	unlocked, err := f.usersSvc.Unlock(ctx, actorFor(admin), target.ID)
	require.NoError(t, err)
	assert.Zero(t, unlocked.FailedLoginAttempts)
	assert.Nil(t, unlocked.LockedUntil)

	entries := f.auditStore.Entries()
	unlockEntry := entries[len(entries)-1]
	assert.Equal(t, model.AuditUnlock, unlockEntry.Action)
	assert.Equal(t, 5, unlockEntry.Details["failed_login_attempts"])

	t.Run("weak password is rejected", func(t *testing.T) {
		err := f.usersSvc.ResetPassword(ctx, actorFor(admin), target.ID, "abc")
		apiErr := requireAPIError(t, err, "VALIDATION_ERROR", http.StatusUnprocessableEntity)
		assert.Contains(t, apiErr.Fields, "new_password")
	})

	t.Run("reset revokes every session", func(t *testing.T) {
		require.NoError(t, f.usersSvc.ResetPassword(ctx, actorFor(admin), target.ID, "brand-new-secret"))

		sessions, err := f.auth.Sessions(ctx, model.Identity{UserID: target.ID})
		require.NoError(t, err)
		assert.Empty(t, sessions)

		entries := f.auditStore.Entries()
		last := entries[len(entries)-1]
		assert.Equal(t, model.AuditResetPassword, last.Action)
		assert.Equal(t, int64(2), last.Details["sessions_revoked"])

		_, err = f.auth.Login(ctx, target.Email, "secret123", anonymousClient())
		requireAPIError(t, err, "INVALID_CREDENTIALS", http.StatusUnauthorized)
		_, err = f.auth.Login(ctx, target.Email, "brand-new-secret", anonymousClient())
		require.NoError(t, err)
	})
}

func TestUserService_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "a@example.com", "secret123", model.RoleAdmin)
	f.addUser(t, "b@example.com", "secret123", model.RoleViewer)

	_, _, err := f.usersSvc.List(ctx, model.UserQuery{Role: "superuser"})
	requireAPIError(t, err, "VALIDATION_ERROR", http.StatusUnprocessableEntity)

	users, meta, err := f.usersSvc.List(ctx, model.UserQuery{Role: "viewer"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "b@example.com", users[0].Email)
	assert.Equal(t, 20, meta.Limit)
	assert.Equal(t, 1, meta.Total)
}
