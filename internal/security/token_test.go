package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"bus-stop-inventory/internal/model"
)

func TestTokenServiceIssueAndVerify(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	pair, err := svc.IssuePair("user-1", "admin@example.com", model.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, int64(900), pair.AccessExpiresIn)

	access, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", access.Subject)
	require.Equal(t, "admin@example.com", access.Email)
	require.Equal(t, model.RoleAdmin, access.Role)
	require.Equal(t, AccessToken, access.Type)
	require.NotEmpty(t, access.ID)

	refresh, err := svc.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, RefreshToken, refresh.Type)
	require.NotEqual(t, access.ID, refresh.ID)
}

func TestTokenServiceRejectsCrossUse(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService("access-secret", "refresh-secret", time.Minute, time.Hour)
	require.NoError(t, err)
	pair, err := svc.IssuePair("user-1", "a@b.c", model.RoleViewer)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.RefreshToken)
	require.ErrorIs(t, err, model.ErrInvalidToken)

	_, err = svc.VerifyRefresh(pair.AccessToken)
	require.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestTokenServiceRejectsWrongTypeWithRightSecret(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService("access-secret", "refresh-secret", time.Minute, time.Hour)
	require.NoError(t, err)

	// Signed with the access secret but claiming to be a refresh token.
	forged, err := svc.sign("user-1", "a@b.c", model.RoleAdmin, RefreshToken, time.Now(), time.Now().Add(time.Minute), svc.accessSecret)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(forged)
	require.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestTokenServiceExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewTokenService("access-secret", "refresh-secret", 15*time.Minute, time.Hour,
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	pair, err := svc.IssuePair("user-1", "a@b.c", model.RoleInspector)
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	_, err = svc.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, model.ErrInvalidToken)

	_, err = svc.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
}

func TestTokenServiceRejectsTamperingAndAlgorithms(t *testing.T) {
	t.Parallel()

	svc, err := NewTokenService("access-secret", "refresh-secret", time.Minute, time.Hour)
	require.NoError(t, err)

	t.Run("foreign secret", func(t *testing.T) {
		other, err := NewTokenService("other-access", "other-refresh", time.Minute, time.Hour)
		require.NoError(t, err)
		pair, err := other.IssuePair("user-1", "a@b.c", model.RoleAdmin)
		require.NoError(t, err)

		_, err = svc.VerifyAccess(pair.AccessToken)
		require.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		claims := Claims{Type: AccessToken, RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.VerifyAccess(unsigned)
		require.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.VerifyAccess("not.a.jwt")
		require.ErrorIs(t, err, model.ErrInvalidToken)
	})
}

func TestNewTokenServiceValidation(t *testing.T) {
	t.Parallel()

	_, err := NewTokenService("same", "same", time.Minute, time.Hour)
	require.Error(t, err)

	_, err = NewTokenService("", "refresh", time.Minute, time.Hour)
	require.Error(t, err)

	_, err = NewTokenService("a", "b", 0, time.Hour)
	require.Error(t, err)
}

func TestHashToken(t *testing.T) {
	t.Parallel()

	require.Len(t, HashToken("raw"), 64)
	require.Equal(t, HashToken("raw"), HashToken("raw"))
	require.NotEqual(t, HashToken("raw"), HashToken("raw2"))
}
