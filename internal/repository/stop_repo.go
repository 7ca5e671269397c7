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

const stopColumns = `id, stop_code, passport_number, address, landmark, district, routes,
	latitude, longitude, status, condition, meets_standards, stop_type, legs_count, year_built,
	last_repair_date, paint_color, roof_type, roof_condition, glass_condition, has_electricity,
	has_bin, bin_condition, last_inspection_date, inspector_name, next_inspection_date,
	created_at, updated_at, created_by`

// stopSortColumns maps accepted sort keys to columns; anything else sorts by created_at.
var stopSortColumns = map[string]string{
	"created_at":           "created_at",
	"updated_at":           "updated_at",
	"stop_id":              "stop_code",
	"stop_code":            "stop_code",
	"address":              "address",
	"district":             "district",
	"status":               "status",
	"condition":            "condition",
	"last_inspection_date": "last_inspection_date",
	"next_inspection_date": "next_inspection_date",
}

// codeLockKey serializes code and passport allocation across connections.
const codeLockKey = 7_370_001

type StopRepository struct {
	pool *pgxpool.Pool
}

func NewStopRepository(pool *pgxpool.Pool) *StopRepository {
	return &StopRepository{pool: pool}
}

func scanStop(row pgx.Row) (*model.BusStop, error) {
	var s model.BusStop
	err := row.Scan(&s.ID, &s.StopCode, &s.PassportNumber, &s.Address, &s.Landmark, &s.District, &s.Routes,
		&s.Latitude, &s.Longitude, &s.Status, &s.Condition, &s.MeetsStandards, &s.StopType, &s.LegsCount,
		&s.YearBuilt, &s.LastRepairDate, &s.PaintColor, &s.RoofType, &s.RoofCondition, &s.GlassCondition,
		&s.HasElectricity, &s.HasBin, &s.BinCondition, &s.LastInspectionDate, &s.InspectorName,
		&s.NextInspectionDate, &s.CreatedAt, &s.UpdatedAt, &s.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectStops(rows pgx.Rows) ([]model.BusStop, error) {
	defer rows.Close()

	stops := make([]model.BusStop, 0)
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		stops = append(stops, *s)
	}
	return stops, rows.Err()
}

func (r *StopRepository) List(ctx context.Context, query model.StopQuery) ([]model.BusStop, int, error) {
	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if search := strings.TrimSpace(query.Search); search != "" {
		where = append(where, fmt.Sprintf(
			"(stop_code ILIKE $%[1]d OR address ILIKE $%[1]d OR landmark ILIKE $%[1]d OR routes ILIKE $%[1]d OR district ILIKE $%[1]d)",
			argIdx))
		args = append(args, "%"+search+"%")
		argIdx++
	}
	for column, value := range map[string]string{
		"district":  query.District,
		"status":    query.Status,
		"condition": query.Condition,
	} {
		if value = strings.TrimSpace(value); value != "" {
			where = append(where, fmt.Sprintf("%s = $%d", column, argIdx))
			args = append(args, value)
			argIdx++
		}
	}
	for column, value := range map[string]*bool{
		"has_electricity": query.HasElectricity,
		"has_bin":         query.HasBin,
		"meets_standards": query.MeetsStandards,
	} {
		if value != nil {
			where = append(where, fmt.Sprintf("%s = $%d", column, argIdx))
			args = append(args, *value)
			argIdx++
		}
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM bus_stops "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stops: %w", err)
	}

	sortColumn, ok := stopSortColumns[query.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	direction := "ASC"
	if query.SortDesc {
		direction = "DESC"
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM bus_stops %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		stopColumns, whereClause, sortColumn, direction, direction, argIdx, argIdx+1)
	args = append(args, query.Limit, (query.Page-1)*query.Limit)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query stops: %w", err)
	}
	stops, err := collectStops(rows)
	if err != nil {
		return nil, 0, err
	}
	return stops, total, nil
}

func (r *StopRepository) All(ctx context.Context) ([]model.BusStop, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stopColumns+` FROM bus_stops ORDER BY stop_code`)
	if err != nil {
		return nil, fmt.Errorf("query all stops: %w", err)
	}
	return collectStops(rows)
}

func (r *StopRepository) Export(ctx context.Context, filter model.ExportFilter) ([]model.BusStop, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+stopColumns+` FROM bus_stops
		 WHERE ($1 = '' OR district = $1) AND ($2 = '' OR status = $2) AND ($3 = '' OR condition = $3)
		 ORDER BY stop_code`,
		filter.District, filter.Status, filter.Condition)
	if err != nil {
		return nil, fmt.Errorf("query export stops: %w", err)
	}
	return collectStops(rows)
}

func (r *StopRepository) GetByID(ctx context.Context, id int64) (*model.BusStop, error) {
	s, err := scanStop(r.pool.QueryRow(ctx, `SELECT `+stopColumns+` FROM bus_stops WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrStopNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find stop by id: %w", err)
	}
	return s, nil
}

func (r *StopRepository) GetByCode(ctx context.Context, code string) (*model.BusStop, error) {
	s, err := scanStop(r.pool.QueryRow(ctx, `SELECT `+stopColumns+` FROM bus_stops WHERE stop_code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrStopNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find stop by code: %w", err)
	}
	return s, nil
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Create allocates the stop code and passport number and inserts s.
func (r *StopRepository) Create(ctx context.Context, s *model.BusStop) error {
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, codeLockKey); err != nil {
			return fmt.Errorf("lock stop codes: %w", err)
		}

		rows, err := tx.Query(ctx, `SELECT stop_code FROM bus_stops`)
		if err != nil {
			return fmt.Errorf("load stop codes: %w", err)
		}
		codes, err := collectStrings(rows)
		if err != nil {
			return fmt.Errorf("load stop codes: %w", err)
		}

		year := time.Now().Year()
		rows, err = tx.Query(ctx, `SELECT passport_number FROM bus_stops WHERE passport_number LIKE $1`,
			fmt.Sprintf("TP-%d-%%", year))
		if err != nil {
			return fmt.Errorf("load passport numbers: %w", err)
		}
		passports, err := collectStrings(rows)
		if err != nil {
			return fmt.Errorf("load passport numbers: %w", err)
		}

		s.StopCode = model.NextStopCode(codes)
		s.PassportNumber = model.NextPassportNumber(year, passports)

		return tx.QueryRow(ctx,
			`INSERT INTO bus_stops (stop_code, passport_number, address, landmark, district, routes,
			    latitude, longitude, status, condition, meets_standards, stop_type, legs_count, year_built,
			    last_repair_date, paint_color, roof_type, roof_condition, glass_condition, has_electricity,
			    has_bin, bin_condition, next_inspection_date, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			    $19, $20, $21, $22, $23, $24)
			 RETURNING id, created_at, updated_at`,
			s.StopCode, s.PassportNumber, s.Address, s.Landmark, s.District, s.Routes,
			s.Latitude, s.Longitude, s.Status, s.Condition, s.MeetsStandards, s.StopType, s.LegsCount, s.YearBuilt,
			s.LastRepairDate, s.PaintColor, s.RoofType, s.RoofCondition, s.GlassCondition, s.HasElectricity,
			s.HasBin, s.BinCondition, s.NextInspectionDate, s.CreatedBy).
			Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	})
	if database.IsUniqueViolation(err) {
		return apierror.Conflict("stop code already taken", s.StopCode)
	}
	if err != nil {
		return fmt.Errorf("create stop: %w", err)
	}
	return nil
}

// Update writes every editable column of s and its change log in one transaction.
func (r *StopRepository) Update(ctx context.Context, s *model.BusStop, changes []model.ChangeLog) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE bus_stops SET address = $2, landmark = $3, district = $4, routes = $5, latitude = $6,
			    longitude = $7, status = $8, condition = $9, meets_standards = $10, stop_type = $11,
			    legs_count = $12, year_built = $13, last_repair_date = $14, paint_color = $15, roof_type = $16,
			    roof_condition = $17, glass_condition = $18, has_electricity = $19, has_bin = $20,
			    bin_condition = $21, last_inspection_date = $22, inspector_name = $23,
			    next_inspection_date = $24, updated_at = NOW()
			 WHERE id = $1
			 RETURNING updated_at`,
			s.ID, s.Address, s.Landmark, s.District, s.Routes, s.Latitude,
			s.Longitude, s.Status, s.Condition, s.MeetsStandards, s.StopType,
			s.LegsCount, s.YearBuilt, s.LastRepairDate, s.PaintColor, s.RoofType,
			s.RoofCondition, s.GlassCondition, s.HasElectricity, s.HasBin,
			s.BinCondition, s.LastInspectionDate, s.InspectorName,
			s.NextInspectionDate).Scan(&s.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrStopNotFound
		}
		if err != nil {
			return fmt.Errorf("update stop: %w", err)
		}

		batch := &pgx.Batch{}
		for _, c := range changes {
			batch.Queue(
				`INSERT INTO change_logs (bus_stop_id, user_id, user_name, field_name, old_value, new_value, ip_address)
				 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
				s.ID, c.UserID, c.UserName, c.FieldName, c.OldValue, c.NewValue, c.IPAddress)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("write change log: %w", err)
		}
		return nil
	})
}

func (r *StopRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bus_stops WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete stop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrStopNotFound
	}
	return nil
}

func (r *StopRepository) History(ctx context.Context, stopID int64) ([]model.ChangeLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, bus_stop_id, user_id, user_name, field_name, old_value, new_value, changed_at,
		        COALESCE(ip_address, '')
		 FROM change_logs WHERE bus_stop_id = $1
		 ORDER BY changed_at DESC, id DESC`, stopID)
	if err != nil {
		return nil, fmt.Errorf("query stop history: %w", err)
	}
	defer rows.Close()

	logs := make([]model.ChangeLog, 0)
	for rows.Next() {
		var c model.ChangeLog
		if err := rows.Scan(&c.ID, &c.StopID, &c.UserID, &c.UserName, &c.FieldName, &c.OldValue, &c.NewValue,
			&c.ChangedAt, &c.IPAddress); err != nil {
			return nil, fmt.Errorf("scan change log: %w", err)
		}
		logs = append(logs, c)
	}
	return logs, rows.Err()
}

func (r *StopRepository) Districts(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT district FROM bus_stops WHERE district <> '' ORDER BY district`)
	if err != nil {
		return nil, fmt.Errorf("query stop districts: %w", err)
	}
	districts, err := collectStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan stop district: %w", err)
	}
	return districts, nil
}

func (r *StopRepository) groupCount(ctx context.Context, column string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM bus_stops GROUP BY %[1]s`, column))
	if err != nil {
		return nil, fmt.Errorf("count stops by %s: %w", column, err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan %s count: %w", column, err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func (r *StopRepository) Stats(ctx context.Context, monthStart time.Time) (model.StopStats, error) {
	stats := model.StopStats{}

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE last_inspection_date >= $1) FROM bus_stops`, monthStart).
		Scan(&stats.Total, &stats.InspectedThisMonth)
	if err != nil {
		return stats, fmt.Errorf("count stops: %w", err)
	}

	if stats.ByStatus, err = r.groupCount(ctx, "status"); err != nil {
		return stats, err
	}
	if stats.ByCondition, err = r.groupCount(ctx, "condition"); err != nil {
		return stats, err
	}
	if stats.ByDistrict, err = r.groupCount(ctx, "district"); err != nil {
		return stats, err
	}
	return stats, nil
}

// NeedingAttention lists critical stops first, then those needing repair,
// most recently changed first within each group.
func (r *StopRepository) NeedingAttention(ctx context.Context, limit int) ([]model.AttentionItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, stop_code, address, district, condition, status FROM bus_stops
		 WHERE condition IN ('critical', 'needs_repair')
		 ORDER BY (condition = 'critical') DESC, updated_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query stops needing attention: %w", err)
	}
	defer rows.Close()

	items := make([]model.AttentionItem, 0)
	for rows.Next() {
		var it model.AttentionItem
		if err := rows.Scan(&it.ID, &it.StopCode, &it.Address, &it.District, &it.Condition, &it.Status); err != nil {
			return nil, fmt.Errorf("scan attention item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
