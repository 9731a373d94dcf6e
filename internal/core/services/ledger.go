// internal/core/services/ledger.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// DefaultUnitTimeout bounds a single atomic unit once it has started.
const DefaultUnitTimeout = 15 * time.Second

// LedgerOptions tunes the engine.
type LedgerOptions struct {
	// UnitTimeout bounds the atomic unit independently of the caller's context.
	UnitTimeout time.Duration
}

// LedgerEngine validates and applies sales and restocks as single atomic units.
type LedgerEngine struct {
	store    ports.StockStore
	records  ports.LedgerRepository
	audit    ports.AuditRecorder
	notifier ports.ChangeNotifier
	opts     LedgerOptions
	logger   *slog.Logger
}

var _ ports.LedgerService = (*LedgerEngine)(nil)

// NewLedgerEngine creates a new ledger engine. records may be nil when only
// Apply is needed; notifier may be nil to disable change events.
func NewLedgerEngine(
	store ports.StockStore,
	records ports.LedgerRepository,
	audit ports.AuditRecorder,
	notifier ports.ChangeNotifier,
	opts LedgerOptions,
	logger *slog.Logger,
) *LedgerEngine {
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = DefaultUnitTimeout
	}
	return &LedgerEngine{
		store:    store,
		records:  records,
		audit:    audit,
		notifier: notifier,
		opts:     opts,
		logger:   logger.With(slog.String("service", "ledger")),
	}
}

// Apply validates op and applies it against the store in one atomic unit.
//
// The unit is detached from ctx cancellation so that a started unit always ends
// in a commit or a rollback; it is bounded by UnitTimeout instead. A caller
// that gives up early must treat the outcome as unknown and may look the
// operation up by its idempotency key.
func (e *LedgerEngine) Apply(ctx context.Context, op domain.Operation) (*domain.LedgerRecord, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	unitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.UnitTimeout)
	defer cancel()

	start := time.Now()
	var record *domain.LedgerRecord

	err := e.store.WithinUnit(unitCtx, func(ctx context.Context, unit ports.LedgerUnit) error {
		if op.IdempotencyKey != "" {
			existing, err := unit.FindByIdempotencyKey(ctx, op.Kind, op.ActorID, op.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				existing.Replayed = true
				record = existing
				return nil
			}
		}

		r, err := e.applyInUnit(ctx, unit, op)
		if err != nil {
			return err
		}
		record = r
		return nil
	})

	// Logging happens only after the unit has released its locks.
	if err != nil {
		e.logFailure(ctx, op, err)
		return nil, err
	}

	if record.Replayed {
		e.logger.InfoContext(ctx, "idempotent replay of committed operation",
			slog.String("kind", string(op.Kind)),
			slog.Int64("record_id", record.ID),
			slog.String("idempotency_key", op.IdempotencyKey))
		return record, nil
	}

	e.logger.InfoContext(ctx, "ledger operation committed",
		slog.String("kind", string(record.Kind)),
		slog.Int64("record_id", record.ID),
		slog.Int64("actor_id", record.ActorID),
		slog.Int64("total", record.Total),
		slog.Int("lines", len(record.Lines)),
		slog.Duration("duration", time.Since(start)))

	return record, nil
}

func (e *LedgerEngine) applyInUnit(ctx context.Context, unit ports.LedgerUnit, op domain.Operation) (*domain.LedgerRecord, error) {
	// Lock in ascending id order so overlapping operations cannot deadlock.
	ids := op.ProductIDs()
	slices.Sort(ids)

	locked := make(map[int64]*domain.Product, len(ids))
	for _, id := range ids {
		p, err := unit.LockProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, &domain.ProductNotFoundError{ProductID: id}
		}
		locked[id] = p
	}

	record := &domain.LedgerRecord{
		Kind:           op.Kind,
		ActorID:        op.ActorID,
		SupplierID:     op.SupplierID,
		PaymentMethod:  op.PaymentMethod,
		IdempotencyKey: op.IdempotencyKey,
		Lines:          make([]domain.LedgerLine, 0, len(op.Lines)),
	}

	for _, req := range op.Lines {
		p := locked[req.ProductID]

		unitValue := req.UnitCost
		if op.Kind == domain.KindSale {
			if p.Stock < req.Quantity {
				return nil, &domain.InsufficientStockError{
					ProductID: p.ID,
					Available: p.Stock,
					Requested: req.Quantity,
				}
			}
			unitValue = p.Price
		}

		lineTotal, ok := mulInt64(unitValue, req.Quantity)
		if !ok {
			return nil, &domain.InvalidQuantityError{ProductID: p.ID, Quantity: req.Quantity, Reason: "line total overflows"}
		}
		stockAfter, ok := addInt64(p.Stock, op.Kind.Sign()*req.Quantity)
		if !ok {
			return nil, &domain.InvalidQuantityError{ProductID: p.ID, Quantity: req.Quantity, Reason: "resulting stock overflows"}
		}
		if record.Total, ok = addInt64(record.Total, lineTotal); !ok {
			return nil, &domain.InvalidQuantityError{ProductID: p.ID, Quantity: req.Quantity, Reason: "operation total overflows"}
		}

		record.Lines = append(record.Lines, domain.LedgerLine{
			ProductID:  p.ID,
			Quantity:   req.Quantity,
			UnitValue:  unitValue,
			LineTotal:  lineTotal,
			StockAfter: stockAfter,
		})
	}

	if err := unit.InsertHeader(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to insert %s header: %w", op.Kind, err)
	}

	if err := unit.InsertLines(ctx, record.ID, op.Kind, record.Lines); err != nil {
		return nil, fmt.Errorf("failed to insert %s lines: %w", op.Kind, err)
	}

	for i := range record.Lines {
		line := &record.Lines[i]
		newStock, err := unit.AdjustStock(ctx, line.ProductID, op.Kind.Sign()*line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to adjust stock for product %d: %w", line.ProductID, err)
		}
		if newStock < 0 {
			return nil, domain.NewStoreUnavailable("stock invariant",
				fmt.Errorf("stock for product %d would become %d", line.ProductID, newStock))
		}
		line.StockAfter = newStock
	}

	if err := e.audit.Record(ctx, unit, op.ActorID, record.ID, record.AuditDescription()); err != nil {
		return nil, err
	}

	return record, nil
}

// ApplyAndNotify applies op and, once the commit is confirmed, hands exactly
// one change event to the notifier. Replays publish nothing.
func (e *LedgerEngine) ApplyAndNotify(ctx context.Context, op domain.Operation) (*domain.LedgerRecord, error) {
	record, err := e.Apply(ctx, op)
	if err != nil {
		return nil, err
	}

	if e.notifier != nil && !record.Replayed {
		e.notifier.Notify(domain.NewLedgerEvent(record))
	}

	return record, nil
}

// Get returns a committed record with its lines.
func (e *LedgerEngine) Get(ctx context.Context, kind domain.OperationKind, id int64) (*domain.LedgerRecord, error) {
	if e.records == nil {
		return nil, fmt.Errorf("ledger reads are not configured")
	}

	record, err := e.records.FindByID(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %d: %w", kind, id, err)
	}
	return record, nil
}

// List returns a page of committed records.
func (e *LedgerEngine) List(ctx context.Context, filter domain.LedgerFilter) (*ports.ListResult[*domain.LedgerRecord], error) {
	if e.records == nil {
		return nil, fmt.Errorf("ledger reads are not configured")
	}

	filter.Normalize()
	records, total, err := e.records.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", filter.Kind, err)
	}

	return ports.NewListResult(records, filter.Page, filter.PageSize, total), nil
}

func (e *LedgerEngine) logFailure(ctx context.Context, op domain.Operation, err error) {
	attrs := []any{
		slog.String("kind", string(op.Kind)),
		slog.Int64("actor_id", op.ActorID),
		slog.Int("lines", len(op.Lines)),
		slog.String("error", err.Error()),
	}

	switch {
	case domain.IsClientError(err):
		e.logger.InfoContext(ctx, "ledger operation rejected", attrs...)
	case domain.IsRetryable(err):
		e.logger.WarnContext(ctx, "ledger operation failed, retryable", attrs...)
	case errors.Is(err, context.DeadlineExceeded):
		e.logger.ErrorContext(ctx, "ledger operation exceeded unit timeout", attrs...)
	default:
		e.logger.ErrorContext(ctx, "ledger operation failed", attrs...)
	}
}

// mulInt64 multiplies non-negative a and b, reporting false on overflow.
func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a < 0 || b < 0 || a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}
