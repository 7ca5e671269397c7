package security

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher wraps bcrypt and bounds how many hashes run at once so that a burst
// of logins cannot occupy every CPU.
type Hasher struct {
	cost  int
	sem   *semaphore.Weighted
	dummy []byte
}

func NewHasher(cost int, concurrency int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(concurrency)), dummy: dummy}, nil
}

func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hash. A mismatch is not an error;
// only context cancellation or a malformed hash is.
func (h *Hasher) Verify(ctx context.Context, plain string, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}

// BurnTime spends one comparison against a throwaway hash so that unknown
// emails take as long to reject as wrong passwords.
func (h *Hasher) BurnTime(ctx context.Context, plain string) {
	_, _ = h.Verify(ctx, plain, string(h.dummy))
}

// ValidatePassword returns a human readable problem with plain, or "" when
// it is acceptable. Strict mode requires mixed character classes.
func ValidatePassword(plain string, strict bool) string {
	if len(plain) > 72 {
		return "password must be at most 72 bytes"
	}

	if !strict {
		if len([]rune(plain)) < 6 {
			return "password must be at least 6 characters"
		}
		return ""
	}

	if len([]rune(plain)) < 8 {
		return "password must be at least 8 characters"
	}

	var upper, lower, digit, special bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	switch {
	case !upper:
		return "password must contain an uppercase letter"
	case !lower:
		return "password must contain a lowercase letter"
	case !digit:
		return "password must contain a digit"
	case !special:
		return "password must contain a special character"
	}
	return ""
}
