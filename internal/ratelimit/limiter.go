package ratelimit

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

const (
	ClassLogin   = "login"
	ClassUpload  = "upload"
	ClassDefault = "default"

	// retention is how long hits survive the background prune.
	retention = 5 * time.Minute
)

type Quotas struct {
	Window        time.Duration
	Login         int
	Upload        int
	Default       int
	BlockDuration time.Duration
}

func DefaultQuotas() Quotas {
	return Quotas{
		Window:        60 * time.Second,
		Login:         5,
		Upload:        10,
		Default:       100,
		BlockDuration: 300 * time.Second,
	}
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Class      string
	Limit      int
	Remaining  int
	Window     time.Duration
	RetryAfter time.Duration
	// Blocked is set when the caller's IP was already on the blocklist.
	Blocked bool
	// Escalated is set when this rejection put the caller's IP on the blocklist.
	Escalated bool
}

type Limiter struct {
	store  Store
	quotas Quotas
	now    func() time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(store Store, quotas Quotas, opts ...Option) *Limiter {
	defaults := DefaultQuotas()
	if quotas.Window <= 0 {
		quotas.Window = defaults.Window
	}
	if quotas.Login <= 0 {
		quotas.Login = defaults.Login
	}
	if quotas.Upload <= 0 {
		quotas.Upload = defaults.Upload
	}
	if quotas.Default <= 0 {
		quotas.Default = defaults.Default
	}
	if quotas.BlockDuration <= 0 {
		quotas.BlockDuration = defaults.BlockDuration
	}

	l := &Limiter{store: store, quotas: quotas, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow checks and, when permitted, records one request.
func (l *Limiter) Allow(ctx context.Context, ip string, userAgent string, path string) (Decision, error) {
	now := l.now()
	class, limit := l.classify(path)
	decision := Decision{Class: class, Limit: limit, Window: l.quotas.Window}

	remaining, blocked, err := l.store.IsBlocked(ctx, ip, now)
	if err != nil {
		return decision, err
	}
	if blocked {
		decision.Blocked = true
		decision.RetryAfter = remaining
		return decision, nil
	}

	key := ClientKey(ip, userAgent) + ":" + NormalizePath(path)
	count, err := l.store.Check(ctx, key, l.quotas.Window, now)
	if err != nil {
		return decision, err
	}

	if count >= limit {
		decision.RetryAfter = l.quotas.Window
		if class == ClassLogin {
			until := now.Add(l.quotas.BlockDuration)
			if err := l.store.Block(ctx, ip, until); err != nil {
				return decision, err
			}
			decision.Escalated = true
		}
		return decision, nil
	}

	if err := l.store.Record(ctx, key, now, l.quotas.Window); err != nil {
		return decision, err
	}

	decision.Allowed = true
	decision.Remaining = limit - count - 1
	return decision, nil
}

func (l *Limiter) classify(path string) (string, int) {
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "/auth/login"):
		return ClassLogin, l.quotas.Login
	case strings.Contains(lower, "/upload"), strings.Contains(lower, "/photos"):
		return ClassUpload, l.quotas.Upload
	default:
		return ClassDefault, l.quotas.Default
	}
}

func (l *Limiter) Prune(ctx context.Context) error {
	return l.store.Prune(ctx, l.now(), retention)
}

// ClientKey identifies a client by address and user agent without keeping
// either in memory verbatim.
func ClientKey(ip string, userAgent string) string {
	sum := md5.Sum([]byte(ip + ":" + userAgent))
	return hex.EncodeToString(sum[:])
}

// NormalizePath folds identifier-like segments into {id} so that every
// record of one resource type shares a budget.
func NormalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if looksLikeID(part) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func looksLikeID(segment string) bool {
	if segment == "" {
		return false
	}
	if len(segment) > 20 && strings.Contains(segment, "-") {
		return true
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
