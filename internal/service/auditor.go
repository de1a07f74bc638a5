package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaultlink/connector-core/internal/models"
)

// auditBacklogCap bounds the in-memory buffer of audit rows waiting for
// the database to come back. Beyond it the oldest entries are dropped.
const auditBacklogCap = 256

// ExecutionLogStore is the persistence surface the auditor writes to.
type ExecutionLogStore interface {
	CreatePending(ctx context.Context, log *models.ExecutionLog) error
	Finalize(ctx context.Context, logID string, status models.ExecutionStatus, responseData models.JSONB, errorMessage *string, executionTimeMs int64) error
	Insert(ctx context.Context, log *models.ExecutionLog) error
	ListByUser(ctx context.Context, userID string, platformID *string, limit int) ([]models.ExecutionLog, error)
}

// AuditEntry tracks one action attempt between Begin and Finish.
type AuditEntry struct {
	log       *models.ExecutionLog
	persisted bool
	started   time.Time
}

// Auditor records every action attempt as a pending row finalized to a
// terminal status. It never fails the action it observes: when the
// database is unreachable it buffers finished rows and replays them on
// the next successful write.
type Auditor struct {
	store  ExecutionLogStore
	logger *zap.Logger

	mu      sync.Mutex
	backlog []*models.ExecutionLog
	dropped int64
}

func NewAuditor(store ExecutionLogStore, logger *zap.Logger) *Auditor {
	return &Auditor{store: store, logger: logger}
}

// Begin inserts the pending audit row for the request. Always returns a
// usable entry; a failed insert degrades to buffered mode.
func (a *Auditor) Begin(ctx context.Context, req *models.ActionRequest) *AuditEntry {
	log := &models.ExecutionLog{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		PlatformID:  req.PlatformID,
		Action:      req.Action,
		RequestData: models.JSONB(req.Params),
		Status:      models.ExecutionStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	entry := &AuditEntry{log: log, started: time.Now()}

	if err := a.store.CreatePending(ctx, log); err != nil {
		a.logger.Warn("failed to record pending execution, buffering",
			zap.String("platform_id", req.PlatformID),
			zap.String("action", req.Action),
			zap.Error(err),
		)

		return entry
	}

	entry.persisted = true
	a.replayBacklog(ctx)

	return entry
}

// Finish writes the terminal status for the entry exactly once.
func (a *Auditor) Finish(ctx context.Context, entry *AuditEntry, res *models.ActionResult) {
	elapsed := time.Since(entry.started).Milliseconds()

	status := models.ExecutionStatusSuccess
	var errorMessage *string
	var responseData models.JSONB

	if res == nil || !res.Success {
		status = models.ExecutionStatusError
		msg := "unknown error"
		if res != nil && res.Error != "" {
			msg = res.Error
		}
		errorMessage = &msg
	} else if data, ok := res.Data.(map[string]interface{}); ok {
		responseData = models.JSONB(data)
	}

	entry.log.Status = status
	entry.log.ResponseData = responseData
	entry.log.ErrorMessage = errorMessage
	entry.log.ExecutionTimeMs = &elapsed

	if !entry.persisted {
		a.buffer(entry.log)
		return
	}

	if err := a.store.Finalize(ctx, entry.log.ID, status, responseData, errorMessage, elapsed); err != nil {
		a.logger.Warn("failed to finalize execution log, buffering",
			zap.String("log_id", entry.log.ID),
			zap.Error(err),
		)
		a.buffer(entry.log)
	}
}

// History returns past attempts for the user, newest first.
func (a *Auditor) History(ctx context.Context, userID string, platformID *string, limit int) ([]models.ExecutionLog, error) {
	return a.store.ListByUser(ctx, userID, platformID, limit)
}

func (a *Auditor) buffer(log *models.ExecutionLog) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.backlog) >= auditBacklogCap {
		a.backlog = a.backlog[1:]
		a.dropped++

		if a.dropped == 1 || a.dropped%100 == 0 {
			a.logger.Warn("audit backlog full, dropping oldest entries",
				zap.Int64("dropped_total", a.dropped),
			)
		}
	}

	a.backlog = append(a.backlog, log)
}

// replayBacklog drains buffered rows after the store proved writable.
// Rows that fail again go back to the front of the buffer.
func (a *Auditor) replayBacklog(ctx context.Context) {
	a.mu.Lock()
	pending := a.backlog
	a.backlog = nil
	a.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	for i, log := range pending {
		if err := a.store.Insert(ctx, log); err != nil {
			a.mu.Lock()
			a.backlog = append(pending[i:], a.backlog...)
			a.mu.Unlock()

			return
		}
	}

	a.logger.Info("replayed buffered execution logs", zap.Int("count", len(pending)))
}
