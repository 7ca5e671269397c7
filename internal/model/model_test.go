package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextStopCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "BS-001", NextStopCode(nil))
	assert.Equal(t, "BS-003", NextStopCode([]string{"BS-001", "BS-002", "BS-004"}))
	assert.Equal(t, "BS-002", NextStopCode([]string{"BS-001", "BS-003"}))
}

func TestNextPassportNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TP-2026-0001", NextPassportNumber(2026, nil))
	assert.Equal(t, "TP-2026-0002", NextPassportNumber(2026, []string{"TP-2026-0001", "TP-2025-0002"}))
}

func TestUserIsLocked(t *testing.T) {
	t.Parallel()

	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, User{}.IsLocked(now))
	assert.True(t, User{LockedUntil: &future}.IsLocked(now))
	assert.False(t, User{LockedUntil: &past}.IsLocked(now))
}

func TestRefreshTokenIsValid(t *testing.T) {
	t.Parallel()

	now := time.Now()
	revoked := now.Add(-time.Second)

	assert.True(t, RefreshToken{ExpiresAt: now.Add(time.Hour)}.IsValid(now))
	assert.False(t, RefreshToken{ExpiresAt: now.Add(-time.Hour)}.IsValid(now))
	assert.False(t, RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}.IsValid(now))
}

func TestBusStopQRPayload(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "passport:TP-2026-0007", BusStop{PassportNumber: "TP-2026-0007"}.QRPayload())
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	role, ok := ParseRole(" Inspector ")
	assert.True(t, ok)
	assert.Equal(t, RoleInspector, role)

	_, ok = ParseRole("editor")
	assert.False(t, ok)
}

func TestNewMeta(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Meta{Page: 2, Limit: 20, Total: 41, TotalPages: 3}, NewMeta(2, 20, 41))
	assert.Equal(t, 0, NewMeta(1, 20, 0).TotalPages)
}
