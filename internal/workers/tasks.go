// internal/workers/tasks.go
package workers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

const (
	TypeStockChanged   = "stock:changed"
	TypeSendEmail      = "email:send"
	TypeExportReport   = "report:export"
	TypeRefreshReports = "report:refresh"
)

// Queue names, matching the configured priorities.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// EmailPayload is the body of an email:send task
type EmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// ExportPayload is the body of a report:export task
type ExportPayload struct {
	JobID       string               `json:"job_id"`
	Kind        domain.OperationKind `json:"kind"`
	From        time.Time            `json:"from"`
	To          time.Time            `json:"to"`
	RequestedBy int64                `json:"requested_by"`
}

// NewStockChangedTask wraps a change event. The event id doubles as the task
// id so a re-enqueued event is rejected by asynq as a duplicate.
func NewStockChangedTask(event domain.ChangeEvent) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal stock event: %w", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(event.ID.String()),
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
		asynq.Retention(time.Hour),
	}
	return asynq.NewTask(TypeStockChanged, payload), opts, nil
}

// NewEmailTask builds an email:send task
func NewEmailTask(p EmailPayload) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal email payload: %w", err)
	}
	return asynq.NewTask(TypeSendEmail, payload), []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(3)}, nil
}

// NewExportTask builds a report:export task
func NewExportTask(p ExportPayload) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal export payload: %w", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(p.JobID),
		asynq.Queue(QueueLow),
		asynq.MaxRetry(2),
		asynq.Timeout(10 * time.Minute),
		asynq.Retention(24 * time.Hour),
	}
	return asynq.NewTask(TypeExportReport, payload), opts, nil
}

// NewRefreshReportsTask builds the periodic dashboard warm-up task
func NewRefreshReportsTask() *asynq.Task {
	return asynq.NewTask(TypeRefreshReports, nil)
}
