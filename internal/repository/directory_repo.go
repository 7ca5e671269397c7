package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bus-stop-inventory/internal/database"
	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/pkg/apierror"
)

// DirectoryRepository stores the district and route reference lists.
type DirectoryRepository struct {
	pool *pgxpool.Pool
}

func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

func (r *DirectoryRepository) ListDistricts(ctx context.Context, activeOnly bool) ([]model.District, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, is_active, created_at FROM districts WHERE NOT $1 OR is_active ORDER BY name`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list districts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.District, error) {
		var d model.District
		err := row.Scan(&d.ID, &d.Name, &d.IsActive, &d.CreatedAt)
		return d, err
	})
}

func (r *DirectoryRepository) GetDistrict(ctx context.Context, id int64) (*model.District, error) {
	var d model.District
	err := r.pool.QueryRow(ctx, `SELECT id, name, is_active, created_at FROM districts WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.IsActive, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrDistrictNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find district: %w", err)
	}
	return &d, nil
}

func (r *DirectoryRepository) CreateDistrict(ctx context.Context, d *model.District) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO districts (name, is_active) VALUES ($1, $2) RETURNING id, created_at`, d.Name, d.IsActive).
		Scan(&d.ID, &d.CreatedAt)
	if database.IsUniqueViolation(err) {
		return apierror.Conflict("district already exists", d.Name)
	}
	if err != nil {
		return fmt.Errorf("create district: %w", err)
	}
	return nil
}

func (r *DirectoryRepository) UpdateDistrict(ctx context.Context, d *model.District) error {
	tag, err := r.pool.Exec(ctx, `UPDATE districts SET name = $2, is_active = $3 WHERE id = $1`, d.ID, d.Name, d.IsActive)
	if database.IsUniqueViolation(err) {
		return apierror.Conflict("district already exists", d.Name)
	}
	if err != nil {
		return fmt.Errorf("update district: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrDistrictNotFound
	}
	return nil
}

func (r *DirectoryRepository) DeleteDistrict(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM districts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete district: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrDistrictNotFound
	}
	return nil
}

func (r *DirectoryRepository) ListRoutes(ctx context.Context, activeOnly bool) ([]model.Route, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, number, name, is_active, created_at FROM routes WHERE NOT $1 OR is_active ORDER BY number`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Route, error) {
		var rt model.Route
		err := row.Scan(&rt.ID, &rt.Number, &rt.Name, &rt.IsActive, &rt.CreatedAt)
		return rt, err
	})
}

func (r *DirectoryRepository) GetRoute(ctx context.Context, id int64) (*model.Route, error) {
	var rt model.Route
	err := r.pool.QueryRow(ctx, `SELECT id, number, name, is_active, created_at FROM routes WHERE id = $1`, id).
		Scan(&rt.ID, &rt.Number, &rt.Name, &rt.IsActive, &rt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find route: %w", err)
	}
	return &rt, nil
}

func (r *DirectoryRepository) CreateRoute(ctx context.Context, rt *model.Route) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO routes (number, name, is_active) VALUES ($1, $2, $3) RETURNING id, created_at`,
		rt.Number, rt.Name, rt.IsActive).Scan(&rt.ID, &rt.CreatedAt)
	if database.IsUniqueViolation(err) {
		return apierror.Conflict("route already exists", rt.Number)
	}
	if err != nil {
		return fmt.Errorf("create route: %w", err)
	}
	return nil
}

func (r *DirectoryRepository) UpdateRoute(ctx context.Context, rt *model.Route) error {
	tag, err := r.pool.Exec(ctx, `UPDATE routes SET number = $2, name = $3, is_active = $4 WHERE id = $1`,
		rt.ID, rt.Number, rt.Name, rt.IsActive)
	if database.IsUniqueViolation(err) {
		return apierror.Conflict("route already exists", rt.Number)
	}
	if err != nil {
		return fmt.Errorf("update route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRouteNotFound
	}
	return nil
}

func (r *DirectoryRepository) DeleteRoute(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRouteNotFound
	}
	return nil
}
