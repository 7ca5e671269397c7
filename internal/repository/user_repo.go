package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bus-stop-inventory/internal/database"
	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/pkg/apierror"
)

const userColumns = `id, email, password_hash, name, role, is_active, failed_login_attempts,
	locked_until, last_login, password_changed_at, created_at, updated_at, created_by`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.IsActive,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.LastLogin, &u.PasswordChangedAt,
		&u.CreatedAt, &u.UpdatedAt, &u.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context, query model.UserQuery) ([]model.User, int, error) {
	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if search := strings.TrimSpace(query.Search); search != "" {
		where = append(where, fmt.Sprintf("(email ILIKE $%d OR name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+search+"%")
		argIdx++
	}
	if query.Role != "" {
		where = append(where, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, query.Role)
		argIdx++
	}
	if query.IsActive != nil {
		where = append(where, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *query.IsActive)
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, argIdx, argIdx+1)
	args = append(args, query.Limit, (query.Page-1)*query.Limit)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, name, role, is_active, password_changed_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, NOW(), $6)
		 RETURNING id, password_changed_at, created_at, updated_at`,
		u.Email, u.PasswordHash, u.Name, u.Role, u.IsActive, u.CreatedBy).
		Scan(&u.ID, &u.PasswordChangedAt, &u.CreatedAt, &u.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return apierror.Conflict("email already registered", u.Email)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *model.User) error {
	return r.updateProfile(ctx, r.pool, u)
}

// UpdateWithPassword stores the profile and a new password hash in one
// transaction.
func (r *UserRepository) UpdateWithPassword(ctx context.Context, u *model.User, passwordHash string, changedAt time.Time) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.updateProfile(ctx, tx, u); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $2, password_changed_at = $3 WHERE id::text = $1`,
			u.ID, passwordHash, changedAt); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = changedAt
		return nil
	})
}

func (r *UserRepository) updateProfile(ctx context.Context, q execQuerier, u *model.User) error {
	err := q.QueryRow(ctx,
		`UPDATE users SET email = $2, name = $3, role = $4, is_active = $5, updated_at = NOW()
		 WHERE id::text = $1
		 RETURNING updated_at`,
		u.ID, u.Email, u.Name, u.Role, u.IsActive).Scan(&u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrUserNotFound
	}
	if database.IsUniqueViolation(err) {
		return apierror.Conflict("email already registered", u.Email)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, password_changed_at = $3, updated_at = NOW() WHERE id::text = $1`,
		id, passwordHash, changedAt)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// RecordLoginFailure stores the failure counter and, when set, the lockout deadline.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET failed_login_attempts = $2, locked_until = $3, updated_at = NOW() WHERE id::text = $1`,
		id, attempts, lockedUntil)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL, last_login = $2 WHERE id::text = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	return nil
}

func (r *UserRepository) Unlock(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW() WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("unlock user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}
