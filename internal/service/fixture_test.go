package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bus-stop-inventory/internal/bruteforce"
	"bus-stop-inventory/internal/metrics"
	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/security"
	"bus-stop-inventory/internal/testutil"
	"bus-stop-inventory/pkg/apierror"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	err     error
}

func (p *recordingPublisher) PublishAudit(_ context.Context, entry model.AuditEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.entries = append(p.entries, entry)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Published() []model.AuditEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.AuditEntry(nil), p.entries...)
}

type fixture struct {
	clock      *testClock
	users      *testutil.UserStore
	tokens     *testutil.TokenStore
	auditStore *testutil.AuditStore
	publisher  *recordingPublisher
	stops      *testutil.StopStore
	photos     *testutil.PhotoStore
	dirs       *testutil.DirectoryStore

	hasher  *security.Hasher
	issuer  *security.TokenService
	guard   *bruteforce.Guard
	metrics *metrics.Metrics

	audit    *AuditService
	auth     *AuthService
	usersSvc *UserService
	stopsSvc *StopService
	dirSvc   *DirectoryService
	reports  *ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:      newTestClock(),
		users:      testutil.NewUserStore(),
		tokens:     testutil.NewTokenStore(),
		auditStore: testutil.NewAuditStore(),
		publisher:  &recordingPublisher{},
		stops:      testutil.NewStopStore(),
		photos:     testutil.NewPhotoStore(),
		dirs:       testutil.NewDirectoryStore(),
		metrics:    metrics.New(),
	}
	f.users.Now = f.clock.Now
	f.tokens.Now = f.clock.Now
	f.stops.Now = f.clock.Now

	hasher, err := security.NewHasher(bcrypt.MinCost, 4)
	require.NoError(t, err)
	f.hasher = hasher

	issuer, err := security.NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour,
		security.WithClock(f.clock.Now))
	require.NoError(t, err)
	f.issuer = issuer

	f.guard = bruteforce.NewGuard(bruteforce.NewMemoryStore(), bruteforce.Config{
		MaxAttempts: 10,
		Window:      5 * time.Minute,
		Lockout:     10 * time.Minute,
	}, bruteforce.WithClock(f.clock.Now))

	f.audit = NewAuditService(f.auditStore, f.publisher, f.metrics)
	f.auth = NewAuthService(f.users, f.tokens, f.hasher, f.issuer, f.guard, f.audit, f.metrics,
		AuthConfig{MaxLoginAttempts: 5, AccountLockout: 30 * time.Minute}, WithAuthClock(f.clock.Now))
	f.usersSvc = NewUserService(f.users, f.tokens, f.hasher, f.audit, false)
	f.stopsSvc = NewStopService(f.stops, f.photos, nil, f.audit)
	f.dirSvc = NewDirectoryService(f.dirs, f.audit)
	f.reports = NewReportService(f.stops, f.audit)
	f.usersSvc.now = f.clock.Now
	f.stopsSvc.now = f.clock.Now
	f.reports.now = f.clock.Now
	return f
}

// addUser stores an active account with the given password.
func (f *fixture) addUser(t *testing.T, email string, password string, role model.Role) model.User {
	t.Helper()

	hash, err := f.hasher.Hash(context.Background(), password)
	require.NoError(t, err)

	user := model.User{Email: email, PasswordHash: hash, Name: "User " + email, Role: role, IsActive: true}
	require.NoError(t, f.users.Create(context.Background(), &user))
	return user
}

func actorFor(user model.User) model.AuditActor {
	return model.AuditActor{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		IP:        "203.0.113.10",
		UserAgent: "test-agent",
	}
}

func anonymousClient() model.AuditActor {
	return model.AuditActor{IP: "198.51.100.7", UserAgent: "test-agent"}
}

func requireAPIError(t *testing.T, err error, code string, status int) *apierror.APIError {
	t.Helper()

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr), "expected *apierror.APIError, got %v", err)
	require.Equal(t, code, apiErr.Code)
	require.Equal(t, status, apiErr.HTTPStatus)
	return apiErr
}

func scrapeMetrics(t *testing.T, f *fixture) string {
	t.Helper()

	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}
