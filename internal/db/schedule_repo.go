package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rollcall/internal/types"
)

// ScheduleRepository provides data access for the schedules table.
type ScheduleRepository struct {
	db DBTX
}

// NewScheduleRepository creates a new ScheduleRepository backed by the given
// database connection (pool or transaction).
func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a new schedule. If the ID is empty a prefixed UUID is
// generated.
func (r *ScheduleRepository) Create(ctx context.Context, s *types.Schedule) error {
	if s.ID == "" {
		s.ID = "sch_" + uuid.NewString()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO schedules
		 (id, name, sender_name, frequency, delivery_time, timezone,
		  template, admin_template, event_id, tenant_code, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		s.ID,
		s.Name,
		s.SenderName,
		string(s.Frequency),
		s.DeliveryTime,
		s.Timezone,
		s.Template,
		s.AdminTemplate,
		s.EventID,
		s.TenantCode,
	)
	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create schedule", err)
	}
	return nil
}

// GetByID retrieves a schedule by ID. Returns a not-found AppError when no
// row matches.
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*types.Schedule, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, name, sender_name, frequency, delivery_time, timezone,
		        template, admin_template, event_id, tenant_code, created_at, updated_at
		 FROM schedules
		 WHERE id = $1`,
		id,
	)
	s, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get schedule", err)
	}
	return s, nil
}

// Update persists changes to an existing schedule.
func (r *ScheduleRepository) Update(ctx context.Context, s *types.Schedule) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE schedules SET
			name = $1,
			sender_name = $2,
			frequency = $3,
			delivery_time = $4,
			timezone = $5,
			template = $6,
			admin_template = $7,
			event_id = $8,
			updated_at = NOW()
		 WHERE id = $9`,
		s.Name,
		s.SenderName,
		string(s.Frequency),
		s.DeliveryTime,
		s.Timezone,
		s.Template,
		s.AdminTemplate,
		s.EventID,
		s.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update schedule", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
	}
	return nil
}

// Delete removes a schedule. Recipients referencing it cascade-delete via
// the ON DELETE CASCADE foreign key.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete schedule", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
	}
	return nil
}

// ScheduleFilter narrows a List query.
type ScheduleFilter struct {
	TenantCode string
	Limit      int
	Offset     int
}

// List retrieves schedules matching the filter, newest first.
func (r *ScheduleRepository) List(ctx context.Context, filter ScheduleFilter) ([]*types.Schedule, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var conditions []string
	var args []any
	argIdx := 1

	if filter.TenantCode != "" {
		conditions = append(conditions, fmt.Sprintf("tenant_code = $%d", argIdx))
		args = append(args, filter.TenantCode)
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT id, name, sender_name, frequency, delivery_time, timezone,
		        template, admin_template, event_id, tenant_code, created_at, updated_at
		 FROM schedules
		 %s
		 ORDER BY created_at DESC, id
		 LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1,
	)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list schedules", err)
	}
	defer rows.Close()

	var results []*types.Schedule
	for rows.Next() {
		s, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan schedule row", scanErr)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating schedule rows", err)
	}
	return results, nil
}

// GetManyByIDs retrieves the schedules for a set of IDs in one query. The
// sweep engine uses this to resolve every due recipient's schedule up front.
// Missing IDs are silently absent from the result map.
func (r *ScheduleRepository) GetManyByIDs(ctx context.Context, ids []string) (map[string]*types.Schedule, error) {
	if len(ids) == 0 {
		return map[string]*types.Schedule{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, name, sender_name, frequency, delivery_time, timezone,
		        template, admin_template, event_id, tenant_code, created_at, updated_at
		 FROM schedules
		 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get schedules", err)
	}
	defer rows.Close()

	results := make(map[string]*types.Schedule, len(ids))
	for rows.Next() {
		s, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan schedule row", scanErr)
		}
		results[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating schedule rows", err)
	}
	return results, nil
}

func scanSchedule(row pgx.Row) (*types.Schedule, error) {
	var (
		s         types.Schedule
		frequency string
	)
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.SenderName,
		&frequency,
		&s.DeliveryTime,
		&s.Timezone,
		&s.Template,
		&s.AdminTemplate,
		&s.EventID,
		&s.TenantCode,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Frequency = types.Frequency(frequency)
	return &s, nil
}
