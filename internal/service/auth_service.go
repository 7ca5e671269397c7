package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"bus-stop-inventory/internal/bruteforce"
	"bus-stop-inventory/internal/metrics"
	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/security"
	"bus-stop-inventory/pkg/apierror"
)

type AuthConfig struct {
	MaxLoginAttempts int
	AccountLockout   time.Duration
}

// AuthService runs the login, refresh and logout flows.
type AuthService struct {
	users   UserStore
	tokens  TokenStore
	hasher  *security.Hasher
	issuer  *security.TokenService
	guard   *bruteforce.Guard
	audit   *AuditService
	metrics *metrics.Metrics
	cfg     AuthConfig
	now     func() time.Time

	guardWarn rate.Sometimes
}

type AuthOption func(*AuthService)

func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		s.now = now
	}
}

func NewAuthService(users UserStore, tokens TokenStore, hasher *security.Hasher, issuer *security.TokenService, guard *bruteforce.Guard, audit *AuditService, m *metrics.Metrics, cfg AuthConfig, opts ...AuthOption) *AuthService {
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = 5
	}
	if cfg.AccountLockout <= 0 {
		cfg.AccountLockout = 30 * time.Minute
	}

	s := &AuthService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		issuer:    issuer,
		guard:     guard,
		audit:     audit,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
		guardWarn: rate.Sometimes{Interval: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks the IP guard before touching the account, then the account
// lock before the password.
func (s *AuthService) Login(ctx context.Context, email string, password string, client model.AuditActor) (model.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return model.TokenPair{}, apierror.Validation(map[string]string{"email": "required", "password": "required"})
	}

	locked, retryAfter, err := s.guard.IsLocked(ctx, client.IP)
	if err != nil {
		s.warnGuard("check", err)
	}
	if locked {
		s.metrics.Login("ip_locked")
		return model.TokenPair{}, apierror.New("TOO_MANY_ATTEMPTS",
			fmt.Sprintf("too many failed attempts, retry in %d seconds", retryAfter), "", http.StatusTooManyRequests).
			WithRetryAfter(retryAfter)
	}

	now := s.now().UTC()

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.BurnTime(ctx, password)
		return model.TokenPair{}, s.failLogin(ctx, email, client)
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if user.IsLocked(now) {
		s.metrics.Login("account_locked")
		seconds := int(user.LockedUntil.Sub(now).Seconds()) + 1
		return model.TokenPair{}, apierror.New("ACCOUNT_LOCKED",
			fmt.Sprintf("account locked, retry in %d seconds", seconds), "", http.StatusLocked).
			WithRetryAfter(seconds)
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !ok {
		if err := s.recordAccountFailure(ctx, user, now); err != nil {
			return model.TokenPair{}, err
		}
		return model.TokenPair{}, s.failLogin(ctx, email, client)
	}

	if !user.IsActive {
		s.metrics.Login("inactive")
		return model.TokenPair{}, apierror.New("ACCOUNT_INACTIVE", "account is deactivated, contact an administrator", "", http.StatusForbidden)
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return model.TokenPair{}, err
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now

	pair, err := s.issue(ctx, *user, client)
	if err != nil {
		return model.TokenPair{}, err
	}

	if _, err := s.guard.RecordAttempt(ctx, client.IP, true); err != nil {
		s.warnGuard("record", err)
	}
	s.metrics.Login("success")

	actor := client
	actor.UserID = user.ID
	actor.Email = user.Email
	actor.Name = user.Name
	actor.Role = user.Role
	s.audit.LogLogin(ctx, actor, user.Email, true)

	return pair, nil
}

// recordAccountFailure bumps the per-account counter. A lock that has already
// expired restarts the count.
func (s *AuthService) recordAccountFailure(ctx context.Context, user *model.User, now time.Time) error {
	attempts := user.FailedLoginAttempts + 1
	if user.LockedUntil != nil && !user.LockedUntil.After(now) {
		attempts = 1
	}

	var lockedUntil *time.Time
	if attempts >= s.cfg.MaxLoginAttempts {
		until := now.Add(s.cfg.AccountLockout)
		lockedUntil = &until
	}
	return s.users.RecordLoginFailure(ctx, user.ID, attempts, lockedUntil)
}

func (s *AuthService) failLogin(ctx context.Context, email string, client model.AuditActor) error {
	s.metrics.Login("invalid_credentials")
	s.audit.LogLogin(ctx, client, email, false)

	lockedNow, err := s.guard.RecordAttempt(ctx, client.IP, false)
	if err != nil {
		s.warnGuard("record", err)
	}
	if lockedNow {
		s.metrics.IPLocked()
	}

	remaining, err := s.guard.Remaining(ctx, client.IP)
	if err != nil {
		s.warnGuard("remaining", err)
	}
	return apierror.New("INVALID_CREDENTIALS",
		fmt.Sprintf("invalid email or password, %d attempts remaining", remaining), "", http.StatusUnauthorized)
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked in the same transaction that stores its successor.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client model.AuditActor) (model.TokenPair, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	hash := security.HashToken(refreshToken)
	record, err := s.tokens.GetByHash(ctx, hash)
	if errors.Is(err, model.ErrTokenNotFound) {
		return model.TokenPair{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.TokenPair{}, err
	}
	if record.UserID != claims.Subject || !record.IsValid(s.now()) {
		return model.TokenPair{}, model.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.TokenPair{}, err
	}
	if !user.IsActive {
		return model.TokenPair{}, model.ErrInvalidToken
	}

	issued, err := s.issuer.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		return model.TokenPair{}, err
	}
	next := s.refreshRecord(user.ID, issued, client)
	if err := s.tokens.Rotate(ctx, hash, &next); err != nil {
		return model.TokenPair{}, err
	}

	return toTokenPair(issued, *user), nil
}

// Logout revokes refreshToken when one is presented. identity may be nil
// when the access token has already expired; the refresh token then
// identifies the caller.
func (s *AuthService) Logout(ctx context.Context, identity *model.Identity, refreshToken string, client model.AuditActor) error {
	var record *model.RefreshToken
	if refreshToken != "" {
		found, err := s.tokens.GetByHash(ctx, security.HashToken(refreshToken))
		switch {
		case err == nil:
			record = found
		case !errors.Is(err, model.ErrTokenNotFound):
			return err
		}
	}

	actor := client
	switch {
	case identity != nil:
		actor = identity.Actor(client.IP, client.UserAgent)
	case refreshToken != "":
		claims, err := s.issuer.VerifyRefresh(refreshToken)
		if err != nil {
			return model.ErrUnauthorized
		}
		actor.UserID, actor.Email, actor.Role = claims.Subject, claims.Email, claims.Role
	default:
		return model.ErrUnauthorized
	}

	if record != nil && record.UserID == actor.UserID {
		if _, err := s.tokens.Revoke(ctx, record.TokenHash); err != nil {
			return err
		}
	}

	s.audit.LogLogout(ctx, actor, false)
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, identity model.Identity, client model.AuditActor) (int64, error) {
	revoked, err := s.tokens.RevokeAllForUser(ctx, identity.UserID)
	if err != nil {
		return 0, err
	}

	s.audit.LogLogout(ctx, identity.Actor(client.IP, client.UserAgent), true)
	return revoked, nil
}

func (s *AuthService) Me(ctx context.Context, identity model.Identity) (*model.User, error) {
	return s.users.GetByID(ctx, identity.UserID)
}

func (s *AuthService) Sessions(ctx context.Context, identity model.Identity) ([]model.Session, error) {
	tokens, err := s.tokens.ListActive(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}

	sessions := make([]model.Session, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, model.Session{
			ID:        t.ID,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
			IPAddress: t.IPAddress,
			UserAgent: t.UserAgent,
		})
	}
	return sessions, nil
}

type SeedUser struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
}

// Seed creates the given accounts when the user table is empty. Every seed
// needs an explicit password; none is ever generated or logged.
func (s *AuthService) Seed(ctx context.Context, users []SeedUser) error {
	for _, seed := range users {
		if seed.Password == "" {
			return fmt.Errorf("seed %s: %w: password is required", seed.Email, model.ErrInvalidInput)
		}
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, seed := range users {
		hash, err := s.hasher.Hash(ctx, seed.Password)
		if err != nil {
			return err
		}

		user := model.User{
			Email:        strings.ToLower(seed.Email),
			PasswordHash: hash,
			Name:         seed.Name,
			Role:         seed.Role,
			IsActive:     true,
		}
		if err := s.users.Create(ctx, &user); err != nil {
			return fmt.Errorf("seed %s: %w", seed.Email, err)
		}
		slog.Info("seeded user", "email", user.Email, "role", user.Role)
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, user model.User, client model.AuditActor) (model.TokenPair, error) {
	issued, err := s.issuer.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		return model.TokenPair{}, err
	}

	record := s.refreshRecord(user.ID, issued, client)
	if err := s.tokens.Create(ctx, &record); err != nil {
		return model.TokenPair{}, err
	}
	return toTokenPair(issued, user), nil
}

func (s *AuthService) refreshRecord(userID string, issued security.IssuedPair, client model.AuditActor) model.RefreshToken {
	return model.RefreshToken{
		UserID:    userID,
		TokenHash: security.HashToken(issued.RefreshToken),
		ExpiresAt: issued.RefreshExpiresAt,
		IPAddress: truncate(client.IP, maxIPLength),
		UserAgent: truncate(client.UserAgent, maxUserAgentLength),
	}
}

func (s *AuthService) warnGuard(op string, err error) {
	s.guardWarn.Do(func() {
		slog.Warn("brute-force store unavailable", "op", op, "error", err)
	})
}

func toTokenPair(issued security.IssuedPair, user model.User) model.TokenPair {
	return model.TokenPair{
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    issued.AccessExpiresIn,
		User:         user,
	}
}
