package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rollcall/internal/types"
)

// ============================================================
// DeliveryLogRepository
// ============================================================

// DeliveryLogRepository provides append-only data access for the
// delivery_logs table. Log rows are write-once: there is no update path.
type DeliveryLogRepository struct {
	db DBTX
}

// NewDeliveryLogRepository creates a new DeliveryLogRepository backed by the
// given database connection (pool or transaction).
func NewDeliveryLogRepository(db DBTX) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

// Create inserts a delivery log entry. If the ID is empty a prefixed UUID is
// generated. Error text is truncated to its storage bound before insert.
func (r *DeliveryLogRepository) Create(ctx context.Context, l *types.DeliveryLog) error {
	if l.ID == "" {
		l.ID = "dlog_" + uuid.NewString()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO delivery_logs
		 (id, phone, content, status, provider_message_id, error_text,
		  frequency, tenant_code, admin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		 RETURNING created_at`,
		l.ID,
		l.Phone,
		l.Content,
		string(l.Status),
		nilIfEmpty(l.ProviderMsgID),
		nilIfEmpty(types.TruncateErrorText(l.ErrorText)),
		string(l.Frequency),
		l.TenantCode,
		l.Admin,
	)
	if err := row.Scan(&l.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodePersistenceFailed, "failed to create delivery log", err)
	}
	return nil
}

// DeliveryLogFilter narrows a List query.
type DeliveryLogFilter struct {
	Phone      string
	TenantCode string
	Status     types.DeliveryStatus
	Limit      int
	Offset     int
}

// List retrieves delivery log entries matching the filter, newest first.
func (r *DeliveryLogRepository) List(ctx context.Context, filter DeliveryLogFilter) ([]*types.DeliveryLog, error) {
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

	if filter.Phone != "" {
		conditions = append(conditions, fmt.Sprintf("phone = $%d", argIdx))
		args = append(args, filter.Phone)
		argIdx++
	}
	if filter.TenantCode != "" {
		conditions = append(conditions, fmt.Sprintf("tenant_code = $%d", argIdx))
		args = append(args, filter.TenantCode)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(filter.Status))
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT id, phone, content, status, provider_message_id, error_text,
		        frequency, tenant_code, admin, created_at
		 FROM delivery_logs
		 %s
		 ORDER BY created_at DESC, id
		 LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1,
	)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list delivery logs", err)
	}
	defer rows.Close()

	var results []*types.DeliveryLog
	for rows.Next() {
		l, scanErr := scanDeliveryLog(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan delivery log row", scanErr)
		}
		results = append(results, l)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating delivery log rows", err)
	}
	return results, nil
}

// DeleteBefore hard-deletes delivery logs older than the cutoff time. Used
// for retention cleanup. Returns the count of deleted records.
func (r *DeliveryLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM delivery_logs WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete old delivery logs", err)
	}
	return tag.RowsAffected(), nil
}

func scanDeliveryLog(row pgx.Row) (*types.DeliveryLog, error) {
	var (
		l             types.DeliveryLog
		status        string
		frequency     string
		providerMsgID *string
		errorText     *string
	)
	err := row.Scan(
		&l.ID,
		&l.Phone,
		&l.Content,
		&status,
		&providerMsgID,
		&errorText,
		&frequency,
		&l.TenantCode,
		&l.Admin,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = types.DeliveryStatus(status)
	l.Frequency = types.Frequency(frequency)
	if providerMsgID != nil {
		l.ProviderMsgID = *providerMsgID
	}
	if errorText != nil {
		l.ErrorText = *errorText
	}
	return &l, nil
}

// ============================================================
// CronRunRepository
// ============================================================

// CronRunRepository provides data access for the cron_runs table. One row is
// created per sweep invocation at start and finalized at end, so a row stuck
// in status=started marks a crashed run.
type CronRunRepository struct {
	db DBTX
}

// NewCronRunRepository creates a new CronRunRepository backed by the given
// database connection (pool or transaction).
func NewCronRunRepository(db DBTX) *CronRunRepository {
	return &CronRunRepository{db: db}
}

// Start inserts a cron run row with status 'started' and returns its ID.
// The caller finalizes the row via Finish.
func (r *CronRunRepository) Start(ctx context.Context, jobType types.JobType) (string, error) {
	id := "run_" + uuid.NewString()
	_, err := r.db.Exec(ctx,
		`INSERT INTO cron_runs (id, job_type, status, processed, failed, started_at)
		 VALUES ($1, $2, $3, 0, 0, NOW())`,
		id,
		string(jobType),
		string(types.CronRunStarted),
	)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to start cron run", err)
	}
	return id, nil
}

// Finish updates a cron run with the final status, counters, and optional
// detail text, and stamps finished_at.
func (r *CronRunRepository) Finish(ctx context.Context, id string, status types.CronRunStatus, processed, failed int, detail string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE cron_runs SET
			status = $1,
			processed = $2,
			failed = $3,
			detail = $4,
			finished_at = NOW()
		 WHERE id = $5`,
		string(status),
		processed,
		failed,
		nilIfEmpty(detail),
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish cron run", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeInternalDB, "cron run not found", nil)
	}
	return nil
}

// List retrieves the most recent cron runs, newest first.
func (r *CronRunRepository) List(ctx context.Context, limit int) ([]*types.CronRun, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, job_type, status, processed, failed, detail, started_at, finished_at
		 FROM cron_runs
		 ORDER BY started_at DESC, id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list cron runs", err)
	}
	defer rows.Close()

	var results []*types.CronRun
	for rows.Next() {
		var (
			run        types.CronRun
			jobType    string
			status     string
			detail     *string
			finishedAt *time.Time
		)
		if scanErr := rows.Scan(&run.ID, &jobType, &status, &run.Processed,
			&run.Failed, &detail, &run.StartedAt, &finishedAt); scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan cron run row", scanErr)
		}
		run.JobType = types.JobType(jobType)
		run.Status = types.CronRunStatus(status)
		if detail != nil {
			run.Detail = *detail
		}
		run.FinishedAt = finishedAt
		results = append(results, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating cron run rows", err)
	}
	return results, nil
}

// nilIfEmpty maps an empty string to NULL for nullable text columns.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
