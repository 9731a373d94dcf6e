// internal/adapters/db/stock_store.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// StockStore applies ledger units against Postgres using row locks
// (SELECT ... FOR UPDATE) inside a read-committed transaction.
type StockStore struct {
	db          *Database
	lockTimeout time.Duration
	logger      *slog.Logger
}

var _ ports.StockStore = (*StockStore)(nil)

// NewStockStore creates a new Postgres stock store. A positive lockTimeout
// bounds every row-lock wait inside a unit.
func NewStockStore(db *Database, lockTimeout time.Duration, logger *slog.Logger) *StockStore {
	return &StockStore{
		db:          db,
		lockTimeout: lockTimeout,
		logger:      logger.With(slog.String("component", "stock_store")),
	}
}

// WithinUnit runs fn in one transaction and classifies failures
func (s *StockStore) WithinUnit(ctx context.Context, fn func(ctx context.Context, unit ports.LedgerUnit) error) error {
	err := s.db.Transaction(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if s.lockTimeout > 0 {
			// SET does not accept bind parameters.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}
		return fn(ctx, &pgUnit{tx: tx})
	})
	return classifyUnitError(err)
}

// classifyUnitError keeps business errors intact and turns every store-side
// failure into a retryable kind. Every path that reaches here has rolled back.
func classifyUnitError(err error) error {
	if err == nil {
		return nil
	}

	if domain.IsClientError(err) || domain.IsRetryable(err) {
		return err
	}

	var txErr *txError
	if errors.As(err, &txErr) {
		return domain.NewStoreUnavailable(txErr.stage, err)
	}

	switch pgErrorCode(err) {
	case codeLockNotAvailable:
		return fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
	case codeUniqueViolation:
		// A concurrent submission with the same idempotency key won the race.
		return domain.NewStoreUnavailable("idempotency conflict", err)
	case codeForeignKeyViolation:
		// Product rows are locked before any write, so only the supplier can be missing.
		return fmt.Errorf("%w: %v", domain.ErrReferenceNotFound, err)
	}

	return domain.NewStoreUnavailable("unit", err)
}

type pgUnit struct {
	tx pgx.Tx
}

var _ ports.LedgerUnit = (*pgUnit)(nil)

func (u *pgUnit) LockProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	sql, args, err := psql.
		Select(productColumns...).
		From("products").
		Where("id = ?", productID).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build lock query: %w", err)
	}

	p, err := scanProduct(u.tx.QueryRow(ctx, sql, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, &domain.ProductNotFoundError{ProductID: productID}
		}
		return nil, fmt.Errorf("failed to lock product %d: %w", productID, err)
	}
	return p, nil
}

func (u *pgUnit) InsertHeader(ctx context.Context, record *domain.LedgerRecord) error {
	var key *string
	if record.IdempotencyKey != "" {
		key = &record.IdempotencyKey
	}

	t := tablesFor(record.Kind)
	insert := psql.Insert(t.header)
	if record.Kind == domain.KindRestock {
		insert = insert.
			Columns("user_id", "supplier_id", "total", "idempotency_key").
			Values(record.ActorID, record.SupplierID, record.Total, key)
	} else {
		insert = insert.
			Columns("user_id", "total", "payment_method", "idempotency_key").
			Values(record.ActorID, record.Total, record.PaymentMethod, key)
	}

	sql, args, err := insert.Suffix("RETURNING id, created_at").ToSql()
	if err != nil {
		return fmt.Errorf("failed to build header insert: %w", err)
	}

	return u.tx.QueryRow(ctx, sql, args...).Scan(&record.ID, &record.CreatedAt)
}

func (u *pgUnit) InsertLines(ctx context.Context, recordID int64, kind domain.OperationKind, lines []domain.LedgerLine) error {
	t := tablesFor(kind)
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s, product_id, qty, %s, subtotal) VALUES ($1, $2, $3, $4, $5)",
		t.lines, t.fk, t.valueCol)

	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(stmt, recordID, l.ProductID, l.Quantity, l.UnitValue, l.LineTotal)
	}

	results := u.tx.SendBatch(ctx, batch)
	for range lines {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

func (u *pgUnit) AdjustStock(ctx context.Context, productID int64, delta int64) (int64, error) {
	var stock int64
	err := u.tx.QueryRow(ctx,
		`UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2 RETURNING stock`,
		delta, productID,
	).Scan(&stock)
	if err != nil {
		if isNoRows(err) {
			return 0, &domain.ProductNotFoundError{ProductID: productID}
		}
		if pgErrorCode(err) == codeCheckViolation {
			// The ledger checks stock under lock; reaching the constraint is a broken invariant.
			return 0, domain.NewStoreUnavailable("stock invariant", fmt.Errorf("product %d: %w", productID, err))
		}
		return 0, err
	}
	return stock, nil
}

func (u *pgUnit) InsertAudit(ctx context.Context, entry *domain.AuditEntry) error {
	sql, args, err := psql.
		Insert("activity_logs").
		Columns("user_id", "record_id", "action", "created_at").
		Values(entry.ActorID, entry.RecordID, entry.Action, entry.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build audit insert: %w", err)
	}
	return u.tx.QueryRow(ctx, sql, args...).Scan(&entry.ID)
}

func (u *pgUnit) FindByIdempotencyKey(ctx context.Context, kind domain.OperationKind, actorID int64, key string) (*domain.LedgerRecord, error) {
	return findByIdempotencyKey(ctx, u.tx, kind, actorID, key)
}
