// internal/core/domain/event.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names what changed.
type EventKind string

const (
	EventSale          EventKind = "sale"
	EventRestock       EventKind = "restock"
	EventNewProduct    EventKind = "new_product"
	EventUpdateProduct EventKind = "update_product"
	EventDeleteProduct EventKind = "delete_product"
)

// StockLevel is the post-commit stock of one product.
type StockLevel struct {
	ProductID int64 `json:"product_id"`
	NewStock  int64 `json:"newStock"`
}

// ChangeEvent is published after a change is durable.
type ChangeEvent struct {
	ID               uuid.UUID    `json:"id"`
	Kind             EventKind    `json:"kind"`
	AffectedProducts []StockLevel `json:"affectedProducts"`
	LedgerRecordID   *int64       `json:"ledgerRecordId,omitempty"`
	OccurredAt       time.Time    `json:"occurredAt"`
}

// NewLedgerEvent describes a committed ledger record.
func NewLedgerEvent(record *LedgerRecord) ChangeEvent {
	kind := EventSale
	if record.Kind == KindRestock {
		kind = EventRestock
	}

	affected := make([]StockLevel, 0, len(record.Lines))
	for _, l := range record.Lines {
		affected = append(affected, StockLevel{ProductID: l.ProductID, NewStock: l.StockAfter})
	}

	id := record.ID
	return ChangeEvent{
		ID:               uuid.New(),
		Kind:             kind,
		AffectedProducts: affected,
		LedgerRecordID:   &id,
		OccurredAt:       record.CreatedAt,
	}
}

// NewCatalogEvent describes a catalog write on p.
func NewCatalogEvent(kind EventKind, p *Product) ChangeEvent {
	return ChangeEvent{
		ID:               uuid.New(),
		Kind:             kind,
		AffectedProducts: []StockLevel{{ProductID: p.ID, NewStock: p.Stock}},
		OccurredAt:       time.Now().UTC(),
	}
}

