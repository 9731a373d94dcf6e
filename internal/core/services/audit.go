// internal/core/services/audit.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// AuditRecorder writes activity log rows through the caller's open unit, so an
// entry commits or rolls back together with the record it describes.
type AuditRecorder struct {
	now func() time.Time
}

var _ ports.AuditRecorder = (*AuditRecorder)(nil)

// NewAuditRecorder creates a new audit recorder
func NewAuditRecorder() *AuditRecorder {
	return &AuditRecorder{now: func() time.Time { return time.Now().UTC() }}
}

// Record appends one entry for recordID.
func (a *AuditRecorder) Record(ctx context.Context, unit ports.LedgerUnit, actorID, recordID int64, description string) error {
	entry := &domain.AuditEntry{
		ActorID:   actorID,
		RecordID:  recordID,
		Action:    description,
		CreatedAt: a.now(),
	}

	if err := unit.InsertAudit(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry for %d: %w", recordID, err)
	}
	return nil
}
