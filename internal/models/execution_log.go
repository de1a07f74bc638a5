package models

import "time"

type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "pending" // Row created, action still in flight
	ExecutionStatusSuccess ExecutionStatus = "success" // Action completed, connector reported success
	ExecutionStatusError   ExecutionStatus = "error"   // Action completed, connector reported failure
)

// ExecutionLog is an append-only audit row for one action attempt.
// A row is inserted as pending and finalized exactly once to a terminal
// status; it is never mutated afterwards.
type ExecutionLog struct {
	ID              string          `gorm:"column:id;primaryKey"`
	UserID          string          `gorm:"column:user_id;index"`
	PlatformID      string          `gorm:"column:platform_id;index"`
	Action          string          `gorm:"column:action"`
	RequestData     JSONB           `gorm:"column:request_data;type:jsonb"`
	ResponseData    JSONB           `gorm:"column:response_data;type:jsonb"`
	Status          ExecutionStatus `gorm:"column:status;index"`
	ErrorMessage    *string         `gorm:"column:error_message"`
	ExecutionTimeMs *int64          `gorm:"column:execution_time_ms"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
}

// TableName specifies the table name for GORM
func (ExecutionLog) TableName() string {
	return "execution_logs"
}
