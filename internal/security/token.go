package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bus-stop-inventory/internal/model"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

type Claims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	Type  TokenType  `json:"type"`
	jwt.RegisteredClaims
}

// IssuedPair is a freshly minted access/refresh pair.
type IssuedPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  int64
	RefreshExpiresAt time.Time
}

type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

func NewTokenService(accessSecret string, refreshSecret string, accessTTL time.Duration, refreshTTL time.Duration, opts ...TokenOption) (*TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}

	s := &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

func (s *TokenService) IssuePair(userID string, email string, role model.Role) (IssuedPair, error) {
	now := s.now().UTC()

	access, err := s.sign(userID, email, role, AccessToken, now, now.Add(s.accessTTL), s.accessSecret)
	if err != nil {
		return IssuedPair{}, err
	}

	refreshExpiry := now.Add(s.refreshTTL)
	refresh, err := s.sign(userID, email, role, RefreshToken, now, refreshExpiry, s.refreshSecret)
	if err != nil {
		return IssuedPair{}, err
	}

	return IssuedPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  int64(s.accessTTL.Seconds()),
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func (s *TokenService) sign(userID string, email string, role model.Role, typ TokenType, issuedAt time.Time, expiresAt time.Time, secret []byte) (string, error) {
	claims := Claims{
		Email: email,
		Role:  role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, AccessToken, s.accessSecret)
}

func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, RefreshToken, s.refreshSecret)
}

func (s *TokenService) verify(token string, expected TokenType, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", model.ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Type != expected || claims.Subject == "" {
		return nil, fmt.Errorf("%w: wrong token type", model.ErrInvalidToken)
	}

	return claims, nil
}

// HashToken is the at-rest form of a refresh token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
