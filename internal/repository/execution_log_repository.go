package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vaultlink/connector-core/internal/models"
)

type ExecutionLogRepository struct {
	db *sql.DB
}

func NewExecutionLogRepository(db *sql.DB) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db}
}

// CreatePending inserts the audit row before the action runs so an
// abandoned caller still leaves a trace.
func (r *ExecutionLogRepository) CreatePending(ctx context.Context, log *models.ExecutionLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}

	log.Status = models.ExecutionStatusPending
	log.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO execution_logs (
			id, user_id, platform_id, action, request_data, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.PlatformID,
		log.Action,
		log.RequestData,
		log.Status,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution log: %w", err)
	}

	return nil
}

// Finalize writes the terminal status exactly once. Rows already in a
// terminal state are left untouched.
func (r *ExecutionLogRepository) Finalize(ctx context.Context, logID string, status models.ExecutionStatus, responseData models.JSONB, errorMessage *string, executionTimeMs int64) error {
	query := `
		UPDATE execution_logs
		SET status = $1, response_data = $2, error_message = $3, execution_time_ms = $4
		WHERE id = $5 AND status = $6
	`

	_, err := r.db.ExecContext(ctx, query,
		status,
		responseData,
		errorMessage,
		executionTimeMs,
		logID,
		models.ExecutionStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize execution log: %w", err)
	}

	return nil
}

// Insert writes a complete row as-is, used to replay audit entries that
// were buffered while the database was unreachable.
func (r *ExecutionLogRepository) Insert(ctx context.Context, log *models.ExecutionLog) error {
	query := `
		INSERT INTO execution_logs (
			id, user_id, platform_id, action, request_data, response_data,
			status, error_message, execution_time_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.PlatformID,
		log.Action,
		log.RequestData,
		log.ResponseData,
		log.Status,
		log.ErrorMessage,
		log.ExecutionTimeMs,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution log: %w", err)
	}

	return nil
}

// ListByUser returns execution logs newest first, optionally filtered by
// platform, bounded by limit.
func (r *ExecutionLogRepository) ListByUser(ctx context.Context, userID string, platformID *string, limit int) ([]models.ExecutionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, platform_id, action, request_data, response_data,
		       status, error_message, execution_time_ms, created_at
		FROM execution_logs
		WHERE user_id = $1 AND ($2::text IS NULL OR platform_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, platformID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}
	defer rows.Close()

	return r.scanLogs(rows)
}

// scanLogs scans database rows into an ExecutionLog slice
func (r *ExecutionLogRepository) scanLogs(rows *sql.Rows) ([]models.ExecutionLog, error) {
	var logs []models.ExecutionLog

	for rows.Next() {
		var log models.ExecutionLog
		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.PlatformID,
			&log.Action,
			&log.RequestData,
			&log.ResponseData,
			&log.Status,
			&log.ErrorMessage,
			&log.ExecutionTimeMs,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return logs, nil
}
