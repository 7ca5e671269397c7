package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bus-stop-inventory/internal/database"
	"bus-stop-inventory/internal/model"
)

const photoColumns = `id, bus_stop_id, filename, original_filename, file_path, file_size, mime_type,
	is_main, uploaded_at, uploaded_by, uploader_name`

type PhotoRepository struct {
	pool *pgxpool.Pool
}

func NewPhotoRepository(pool *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

func scanPhoto(row pgx.Row) (*model.Photo, error) {
	var p model.Photo
	err := row.Scan(&p.ID, &p.StopID, &p.Filename, &p.OriginalFilename, &p.FilePath, &p.FileSize, &p.MimeType,
		&p.IsMain, &p.UploadedAt, &p.UploadedBy, &p.UploaderName)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts p; a main photo demotes the stop's previous main photo.
func (r *PhotoRepository) Create(ctx context.Context, p *model.Photo) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if p.IsMain {
			if _, err := tx.Exec(ctx, `UPDATE photos SET is_main = FALSE WHERE bus_stop_id = $1 AND is_main`, p.StopID); err != nil {
				return fmt.Errorf("clear main photo: %w", err)
			}
		}

		err := tx.QueryRow(ctx,
			`INSERT INTO photos (bus_stop_id, filename, original_filename, file_path, file_size, mime_type,
			    is_main, uploaded_by, uploader_name)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id, uploaded_at`,
			p.StopID, p.Filename, p.OriginalFilename, p.FilePath, p.FileSize, p.MimeType,
			p.IsMain, p.UploadedBy, p.UploaderName).
			Scan(&p.ID, &p.UploadedAt)
		if err != nil {
			return fmt.Errorf("create photo: %w", err)
		}
		return nil
	})
}

func (r *PhotoRepository) GetByID(ctx context.Context, id int64) (*model.Photo, error) {
	p, err := scanPhoto(r.pool.QueryRow(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrPhotoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find photo: %w", err)
	}
	return p, nil
}

func (r *PhotoRepository) ListByStop(ctx context.Context, stopID int64) ([]model.Photo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE bus_stop_id = $1 ORDER BY is_main DESC, uploaded_at DESC`, stopID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	photos := make([]model.Photo, 0)
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}

func (r *PhotoRepository) SetMain(ctx context.Context, id int64) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var stopID int64
		err := tx.QueryRow(ctx, `SELECT bus_stop_id FROM photos WHERE id = $1 FOR UPDATE`, id).Scan(&stopID)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrPhotoNotFound
		}
		if err != nil {
			return fmt.Errorf("find photo: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE photos SET is_main = FALSE WHERE bus_stop_id = $1 AND is_main`, stopID); err != nil {
			return fmt.Errorf("clear main photo: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE photos SET is_main = TRUE WHERE id = $1`, id); err != nil {
			return fmt.Errorf("set main photo: %w", err)
		}
		return nil
	})
}

func (r *PhotoRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPhotoNotFound
	}
	return nil
}
