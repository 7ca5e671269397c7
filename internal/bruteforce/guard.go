package bruteforce

import (
	"context"
	"math"
	"time"
)

type Config struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 10, Window: 300 * time.Second, Lockout: 600 * time.Second}
}

// Guard locks out client IPs after repeated failed logins. It is independent
// of the request rate limiter.
type Guard struct {
	store Store
	cfg   Config
	now   func() time.Time
}

type Option func(*Guard)

func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

func NewGuard(store Store, cfg Config, opts ...Option) *Guard {
	defaults := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = defaults.Lockout
	}

	g := &Guard{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsLocked reports whether ip is locked and the whole seconds left, rounded up.
func (g *Guard) IsLocked(ctx context.Context, ip string) (bool, int, error) {
	until, ok, err := g.store.LockedUntil(ctx, ip)
	if err != nil || !ok {
		return false, 0, err
	}

	remaining := until.Sub(g.now())
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, int(math.Ceil(remaining.Seconds())), nil
}

// RecordAttempt stores the outcome of a login. It returns true when this
// failure locked the IP.
func (g *Guard) RecordAttempt(ctx context.Context, ip string, success bool) (bool, error) {
	now := g.now()
	if err := g.store.Append(ctx, ip, Attempt{At: now, Success: success}, g.cfg.Window); err != nil {
		return false, err
	}
	if success {
		return false, nil
	}

	failures, err := g.store.Failures(ctx, ip, now.Add(-g.cfg.Window))
	if err != nil {
		return false, err
	}
	if failures < g.cfg.MaxAttempts {
		return false, nil
	}

	if err := g.store.Lock(ctx, ip, now.Add(g.cfg.Lockout)); err != nil {
		return false, err
	}
	return true, nil
}

// Remaining is how many more failures ip may make before it is locked.
func (g *Guard) Remaining(ctx context.Context, ip string) (int, error) {
	failures, err := g.store.Failures(ctx, ip, g.now().Add(-g.cfg.Window))
	if err != nil {
		return 0, err
	}
	if left := g.cfg.MaxAttempts - failures; left > 0 {
		return left, nil
	}
	return 0, nil
}

func (g *Guard) LockoutSeconds() int {
	return int(g.cfg.Lockout.Seconds())
}

func (g *Guard) Prune(ctx context.Context) error {
	return g.store.Prune(ctx, g.now(), g.cfg.Window)
}
