package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/policy"
	"bus-stop-inventory/internal/security"
)

type tokenVerifier interface {
	VerifyAccess(token string) (*security.Claims, error)
}

type userLoader interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type contextKey string

const identityContextKey contextKey = "identity"

var (
	errMissingBearer = errors.New("missing or invalid authorization header")
	errStaleAccount  = errors.New("account not found or inactive")
)

type Authenticator struct {
	tokens tokenVerifier
	users  userLoader
}

func NewAuthenticator(tokens tokenVerifier, users userLoader) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate resolves the bearer token into an identity. The role is taken
// from the stored account so demotions apply to tokens already issued.
func (a *Authenticator) Authenticate(r *http.Request) (*model.Identity, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, errMissingBearer
	}

	claims, err := a.tokens.VerifyAccess(raw)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, errStaleAccount
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errStaleAccount
	}

	return &model.Identity{
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Role:    user.Role,
		TokenID: claims.ID,
	}, nil
}

// TryAuthenticate is Authenticate without the failure: callers that accept
// anonymous or expired sessions get ok == false instead of an error.
func (a *Authenticator) TryAuthenticate(r *http.Request) (*model.Identity, bool) {
	identity, err := a.Authenticate(r)
	if err != nil {
		return nil, false
	}
	return identity, true
}

// RequireAuth rejects the request with 401 unless it carries a valid access token.
func (a *Authenticator) RequireAuth() Stage {
	return StageFunc("authenticate", func(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection) {
		identity, err := a.Authenticate(r)
		if err != nil {
			if errors.Is(err, errMissingBearer) || errors.Is(err, errStaleAccount) {
				return r, reject(http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			}
			if errors.Is(err, model.ErrInvalidToken) {
				return r, reject(http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			}
			return r, reject(http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
		}
		return r.WithContext(WithIdentity(r.Context(), identity)), nil
	})
}

// OptionalAuth attaches an identity when one can be resolved and never rejects.
func (a *Authenticator) OptionalAuth() Stage {
	return StageFunc("authenticate-optional", func(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection) {
		if identity, ok := a.TryAuthenticate(r); ok {
			return r.WithContext(WithIdentity(r.Context(), identity)), nil
		}
		return r, nil
	})
}

// Authorize admits the request only if the authenticated identity holds capability.
func Authorize(capability policy.Capability) Stage {
	return StageFunc("authorize", func(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection) {
		identity, _ := IdentityFromContext(r.Context())
		err := policy.Authorize(identity, capability)
		switch {
		case err == nil:
			return r, nil
		case errors.Is(err, model.ErrUnauthorized):
			return r, reject(http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		default:
			return r, reject(http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
		}
	})
}

func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	return identity, ok && identity != nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
