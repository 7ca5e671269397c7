package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/security"
	"bus-stop-inventory/pkg/apierror"
)

// UserService is the administrative user-management surface.
type UserService struct {
	users          UserStore
	tokens         TokenStore
	hasher         *security.Hasher
	audit          *AuditService
	passwordStrict bool
	now            func() time.Time
}

func NewUserService(users UserStore, tokens TokenStore, hasher *security.Hasher, audit *AuditService, passwordStrict bool) *UserService {
	return &UserService{
		users:          users,
		tokens:         tokens,
		hasher:         hasher,
		audit:          audit,
		passwordStrict: passwordStrict,
		now:            time.Now,
	}
}

func (s *UserService) List(ctx context.Context, query model.UserQuery) ([]model.User, model.Meta, error) {
	query.Page, query.Limit = normalizePage(query.Page, query.Limit, 20, 100)
	if query.Role != "" {
		if _, ok := model.ParseRole(query.Role); !ok {
			return nil, model.Meta{}, apierror.Validation(map[string]string{"role": "unknown role"})
		}
	}

	users, total, err := s.users.List(ctx, query)
	if err != nil {
		return nil, model.Meta{}, err
	}
	return users, model.NewMeta(query.Page, query.Limit, total), nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) Create(ctx context.Context, actor model.AuditActor, req model.CreateUserRequest) (*model.User, error) {
	fields := map[string]string{}
	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		fields["email"] = "must be a valid email address"
	}
	if problem := security.ValidatePassword(req.Password, s.passwordStrict); problem != "" {
		fields["password"] = problem
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 255 {
		fields["name"] = "must be 1-255 characters"
	}
	role := req.Role
	if role == "" {
		role = model.RoleViewer
	}
	if !role.Valid() {
		fields["role"] = "must be admin, inspector or viewer"
	}
	if len(fields) > 0 {
		return nil, apierror.Validation(fields)
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	createdBy := actor.UserID

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		IsActive:     isActive,
		CreatedBy:    &createdBy,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.audit.LogCreate(ctx, actor, "user", user.ID, user.Snapshot())
	return user, nil
}

// Update applies a partial change. Callers can never change their own role
// or deactivate themselves.
func (s *UserService) Update(ctx context.Context, actor model.AuditActor, id string, req model.UpdateUserRequest) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if user.ID == actor.UserID {
		if req.Role != nil && *req.Role != user.Role {
			return nil, model.ErrSelfModification
		}
		if req.IsActive != nil && !*req.IsActive {
			return nil, model.ErrSelfModification
		}
	}

	before := user.Snapshot()
	fields := map[string]string{}

	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if validEmail(email) {
			user.Email = email
		} else {
			fields["email"] = "must be a valid email address"
		}
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 255 {
			fields["name"] = "must be 1-255 characters"
		} else {
			user.Name = name
		}
	}
	if req.Role != nil {
		if req.Role.Valid() {
			user.Role = *req.Role
		} else {
			fields["role"] = "must be admin, inspector or viewer"
		}
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	var newHash string
	if req.Password != nil && *req.Password != "" {
		if problem := security.ValidatePassword(*req.Password, s.passwordStrict); problem != "" {
			fields["password"] = problem
		}
	}
	if len(fields) > 0 {
		return nil, apierror.Validation(fields)
	}

	if req.Password != nil && *req.Password != "" {
		newHash, err = s.hasher.Hash(ctx, *req.Password)
		if err != nil {
			return nil, err
		}
	}

	if newHash == "" {
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		s.audit.LogUpdate(ctx, actor, "user", user.ID, before, user.Snapshot())
		return user, nil
	}

	changedAt := s.now().UTC()
	if err := s.users.UpdateWithPassword(ctx, user, newHash, changedAt); err != nil {
		return nil, err
	}
	// A new password ends every session, as reset-password does.
	if _, err := s.tokens.RevokeAllForUser(ctx, user.ID); err != nil {
		return nil, err
	}

	after := user.Snapshot()
	before["password_changed_at"] = nil
	after["password_changed_at"] = changedAt
	s.audit.LogUpdate(ctx, actor, "user", user.ID, before, after)
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, actor model.AuditActor, id string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.ID == actor.UserID {
		return model.ErrSelfModification
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}

	s.audit.LogDelete(ctx, actor, "user", user.ID, user.Snapshot())
	return nil
}

// Unlock clears the failed-login counter and any account lock.
func (s *UserService) Unlock(ctx context.Context, actor model.AuditActor, id string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.Unlock(ctx, user.ID); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actor, model.AuditUnlock, "user", user.ID, map[string]any{
		"email":                 user.Email,
		"failed_login_attempts": user.FailedLoginAttempts,
	})

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	return user, nil
}

// ResetPassword sets a new password and revokes every refresh token of the
// user, ending their sessions.
func (s *UserService) ResetPassword(ctx context.Context, actor model.AuditActor, id string, newPassword string) error {
	if problem := security.ValidatePassword(newPassword, s.passwordStrict); problem != "" {
		return apierror.Validation(map[string]string{"new_password": problem})
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.now().UTC()); err != nil {
		return err
	}

	revoked, err := s.tokens.RevokeAllForUser(ctx, user.ID)
	if err != nil {
		return err
	}

	s.audit.Log(ctx, actor, model.AuditResetPassword, "user", user.ID, map[string]any{
		"email":            user.Email,
		"sessions_revoked": revoked,
	})
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" || len(email) > 255 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@")+1:], ".")
}
