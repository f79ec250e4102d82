package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rollcall/internal/types"
)

// RecipientRepository provides data access for the recipients table.
//
// Delivery state (last_sent, retry_attempts, next_retry_at, active) is
// written only through UpdateDeliveryState so that the sweep engine's
// transitions cannot be clobbered by a concurrent CRUD edit of the
// subscription fields.
type RecipientRepository struct {
	db DBTX
}

// NewRecipientRepository creates a new RecipientRepository backed by the
// given database connection (pool or transaction).
func NewRecipientRepository(db DBTX) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// Create inserts a new recipient. If the ID is empty a prefixed UUID is
// generated. CreatedAt/UpdatedAt are set server-side.
func (r *RecipientRepository) Create(ctx context.Context, rec *types.Recipient) error {
	if rec.ID == "" {
		rec.ID = "rcp_" + uuid.NewString()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO recipients
		 (id, schedule_id, phone, frequency, message_type, tenant_code,
		  start_date, last_sent, retry_attempts, next_retry_at, active,
		  created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		rec.ID,
		rec.ScheduleID,
		rec.Phone,
		string(rec.Frequency),
		string(rec.MessageType),
		rec.TenantCode,
		rec.StartDate,
		rec.LastSent,
		rec.RetryAttempts,
		rec.NextRetryAt,
		rec.Active,
	)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create recipient", err)
	}
	return nil
}

// GetByID retrieves a recipient by ID. Returns a not-found AppError when no
// row matches.
func (r *RecipientRepository) GetByID(ctx context.Context, id string) (*types.Recipient, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, schedule_id, phone, frequency, message_type, tenant_code,
		        start_date, last_sent, retry_attempts, next_retry_at, active,
		        created_at, updated_at
		 FROM recipients
		 WHERE id = $1`,
		id,
	)
	rec, err := scanRecipient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRecipient, "recipient not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get recipient", err)
	}
	return rec, nil
}

// Update persists the subscription fields of an existing recipient. Delivery
// state columns are untouched; use UpdateDeliveryState for those.
func (r *RecipientRepository) Update(ctx context.Context, rec *types.Recipient) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE recipients SET
			schedule_id = $1,
			phone = $2,
			frequency = $3,
			message_type = $4,
			start_date = $5,
			active = $6,
			updated_at = NOW()
		 WHERE id = $7`,
		rec.ScheduleID,
		rec.Phone,
		string(rec.Frequency),
		string(rec.MessageType),
		rec.StartDate,
		rec.Active,
		rec.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update recipient", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRecipient, "recipient not found", nil)
	}
	return nil
}

// UpdateDeliveryState persists the outcome of a delivery attempt: last_sent,
// retry_attempts, next_retry_at, and active, exactly as computed by the retry
// policy. The write is unconditional. The sweep engine owns these columns;
// the only other caller is the API's re-activation path, which resets the
// retry counters.
func (r *RecipientRepository) UpdateDeliveryState(ctx context.Context, rec *types.Recipient) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE recipients SET
			last_sent = $1,
			retry_attempts = $2,
			next_retry_at = $3,
			active = $4,
			updated_at = NOW()
		 WHERE id = $5`,
		rec.LastSent,
		rec.RetryAttempts,
		rec.NextRetryAt,
		rec.Active,
		rec.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodePersistenceFailed, "failed to persist delivery state", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRecipient, "recipient not found", nil)
	}
	return nil
}

// Delete removes a recipient.
func (r *RecipientRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM recipients WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete recipient", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRecipient, "recipient not found", nil)
	}
	return nil
}

// ListActive returns every active recipient, ordered by ID for a stable
// sweep order. The sweep engine calls this once per run and applies due and
// retry filtering in memory, so inactive rows are excluded up front.
func (r *RecipientRepository) ListActive(ctx context.Context) ([]*types.Recipient, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, schedule_id, phone, frequency, message_type, tenant_code,
		        start_date, last_sent, retry_attempts, next_retry_at, active,
		        created_at, updated_at
		 FROM recipients
		 WHERE active = TRUE
		 ORDER BY id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list active recipients", err)
	}
	defer rows.Close()

	return collectRecipients(rows)
}

// RecipientFilter narrows a List query.
type RecipientFilter struct {
	ScheduleID string
	TenantCode string
	Active     *bool
	Limit      int
	Offset     int
}

// List retrieves recipients matching the filter, newest first.
func (r *RecipientRepository) List(ctx context.Context, filter RecipientFilter) ([]*types.Recipient, error) {
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

	if filter.ScheduleID != "" {
		conditions = append(conditions, fmt.Sprintf("schedule_id = $%d", argIdx))
		args = append(args, filter.ScheduleID)
		argIdx++
	}
	if filter.TenantCode != "" {
		conditions = append(conditions, fmt.Sprintf("tenant_code = $%d", argIdx))
		args = append(args, filter.TenantCode)
		argIdx++
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argIdx))
		args = append(args, *filter.Active)
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT id, schedule_id, phone, frequency, message_type, tenant_code,
		        start_date, last_sent, retry_attempts, next_retry_at, active,
		        created_at, updated_at
		 FROM recipients
		 %s
		 ORDER BY created_at DESC, id
		 LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1,
	)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list recipients", err)
	}
	defer rows.Close()

	return collectRecipients(rows)
}

func collectRecipients(rows pgx.Rows) ([]*types.Recipient, error) {
	var results []*types.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan recipient row", err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating recipient rows", err)
	}
	return results, nil
}

// scanRecipient scans a recipient from any row source sharing the canonical
// column order.
func scanRecipient(row pgx.Row) (*types.Recipient, error) {
	var (
		rec         types.Recipient
		frequency   string
		messageType string
		lastSent    *time.Time
		nextRetryAt *time.Time
	)
	err := row.Scan(
		&rec.ID,
		&rec.ScheduleID,
		&rec.Phone,
		&frequency,
		&messageType,
		&rec.TenantCode,
		&rec.StartDate,
		&lastSent,
		&rec.RetryAttempts,
		&nextRetryAt,
		&rec.Active,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Frequency = types.Frequency(frequency)
	rec.MessageType = types.MessageType(messageType)
	rec.LastSent = lastSent
	rec.NextRetryAt = nextRetryAt
	return &rec, nil
}
