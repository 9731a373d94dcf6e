// internal/core/domain/ledger.go
package domain

import (
	"fmt"
	"strings"
	"time"
)

// OperationKind distinguishes stock-consuming from stock-producing operations
type OperationKind string

const (
	KindSale    OperationKind = "sale"
	KindRestock OperationKind = "restock"
)

// Valid reports whether k is a known kind.
func (k OperationKind) Valid() bool {
	return k == KindSale || k == KindRestock
}

// Sign is the direction stock moves for this kind.
func (k OperationKind) Sign() int64 {
	if k == KindSale {
		return -1
	}
	return 1
}

// Payment methods accepted at the register.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
	PaymentQRIS     = "qris"
)

// MaxIdempotencyKeyLength bounds the stored key.
const MaxIdempotencyKeyLength = 128

// LineRequest is one requested product movement. UnitCost applies to restocks only.
type LineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"qty"`
	UnitCost  int64 `json:"cost,omitempty"`
}

// Operation is a request to apply a stock-affecting change on behalf of an actor.
type Operation struct {
	Kind           OperationKind `json:"kind"`
	ActorID        int64         `json:"actor_id"`
	Lines          []LineRequest `json:"lines"`
	SupplierID     *int64        `json:"supplier_id,omitempty"`
	PaymentMethod  string        `json:"payment_method,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
}

// NewSale builds a stock-consuming operation.
func NewSale(actorID int64, lines []LineRequest, paymentMethod string) Operation {
	if paymentMethod == "" {
		paymentMethod = PaymentCash
	}
	return Operation{
		Kind:          KindSale,
		ActorID:       actorID,
		Lines:         lines,
		PaymentMethod: paymentMethod,
	}
}

// NewRestock builds a stock-producing operation against a supplier.
func NewRestock(actorID int64, supplierID *int64, lines []LineRequest) Operation {
	return Operation{
		Kind:       KindRestock,
		ActorID:    actorID,
		Lines:      lines,
		SupplierID: supplierID,
	}
}

// WithIdempotencyKey returns a copy of o carrying key.
func (o Operation) WithIdempotencyKey(key string) Operation {
	o.IdempotencyKey = strings.TrimSpace(key)
	return o
}

// Validate runs every check that needs no store access. Quantity problems are
// reported before duplicates so a single bad line is always named precisely.
func (o Operation) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: unknown operation kind %q", ErrInvalidOperation, o.Kind)
	}
	if len(o.Lines) == 0 {
		return ErrEmptyOperation
	}
	if len(o.IdempotencyKey) > MaxIdempotencyKeyLength {
		return fmt.Errorf("%w: idempotency key exceeds %d characters", ErrInvalidOperation, MaxIdempotencyKeyLength)
	}

	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: line.ProductID, Quantity: line.Quantity}
		}
		if o.Kind == KindRestock && line.UnitCost < 0 {
			return &InvalidQuantityError{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Reason:    "unit cost cannot be negative",
			}
		}
	}

	seen := make(map[int64]struct{}, len(o.Lines))
	for _, line := range o.Lines {
		if _, dup := seen[line.ProductID]; dup {
			return &DuplicateLineError{ProductID: line.ProductID}
		}
		seen[line.ProductID] = struct{}{}
	}

	return nil
}

// ProductIDs returns the distinct product ids referenced, in request order.
func (o Operation) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.Lines))
	seen := make(map[int64]struct{}, len(o.Lines))
	for _, line := range o.Lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

// LedgerLine is a persisted line. UnitValue is the price or cost in effect at commit.
type LedgerLine struct {
	ProductID  int64 `json:"product_id"`
	Quantity   int64 `json:"qty"`
	UnitValue  int64 `json:"price"`
	LineTotal  int64 `json:"subtotal"`
	StockAfter int64 `json:"stock_after"`
}

// LedgerRecord is the immutable result of a committed operation.
type LedgerRecord struct {
	ID             int64         `json:"id"`
	Kind           OperationKind `json:"kind"`
	ActorID        int64         `json:"user_id"`
	SupplierID     *int64        `json:"supplier_id,omitempty"`
	PaymentMethod  string        `json:"payment_method,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	Total          int64         `json:"total"`
	CreatedAt      time.Time     `json:"created_at"`
	Lines          []LedgerLine  `json:"items"`

	// Replayed is set when the idempotency key matched an earlier commit.
	Replayed bool `json:"-"`
}

// ComputeTotal sums the line totals.
func (r *LedgerRecord) ComputeTotal() int64 {
	var total int64
	for _, l := range r.Lines {
		total += l.LineTotal
	}
	return total
}

// AuditDescription is the activity-log text for a committed record.
func (r *LedgerRecord) AuditDescription() string {
	if r.Kind == KindSale {
		return fmt.Sprintf("Created transaction %d with total %d", r.ID, r.Total)
	}
	return fmt.Sprintf("Added stock via purchase %d", r.ID)
}

// LedgerFilter narrows ledger listings.
type LedgerFilter struct {
	Kind     OperationKind
	ActorID  *int64
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// Normalize clamps paging.
func (f *LedgerFilter) Normalize() {
	if !f.Kind.Valid() {
		f.Kind = KindSale
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}
}

// AuditEntry is an append-only activity log row.
type AuditEntry struct {
	ID        int64     `json:"id"`
	ActorID   int64     `json:"user_id"`
	RecordID  int64     `json:"record_id"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}
