// internal/adapters/db/ledger_repository.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// ledgerTables maps an operation kind onto its header and line tables.
type ledgerTables struct {
	header     string
	lines      string
	fk         string
	valueCol   string
	headerCols []string
}

func tablesFor(kind domain.OperationKind) ledgerTables {
	if kind == domain.KindRestock {
		return ledgerTables{
			header:   "purchases",
			lines:    "purchase_items",
			fk:       "purchase_id",
			valueCol: "cost",
			headerCols: []string{
				"id", "user_id", "supplier_id", "''::text AS payment_method",
				"idempotency_key", "total", "created_at",
			},
		}
	}
	return ledgerTables{
		header:   "transactions",
		lines:    "transaction_items",
		fk:       "transaction_id",
		valueCol: "price",
		headerCols: []string{
			"id", "user_id", "NULL::bigint AS supplier_id", "payment_method",
			"idempotency_key", "total", "created_at",
		},
	}
}

func scanHeader(kind domain.OperationKind) func(pgx.Rows) (*domain.LedgerRecord, error) {
	return func(row pgx.Rows) (*domain.LedgerRecord, error) {
		r := &domain.LedgerRecord{Kind: kind}
		var key *string
		if err := row.Scan(&r.ID, &r.ActorID, &r.SupplierID, &r.PaymentMethod, &key, &r.Total, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s header: %w", kind, err)
		}
		if key != nil {
			r.IdempotencyKey = *key
		}
		return r, nil
	}
}

// findRecords loads headers matching where, then their lines in one query.
func findRecords(ctx context.Context, q Querier, kind domain.OperationKind, query squirrel.SelectBuilder) ([]*domain.LedgerRecord, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", kind, err)
	}

	records, err := scanMany(rows, scanHeader(kind))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	if err := attachLines(ctx, q, kind, records); err != nil {
		return nil, err
	}
	return records, nil
}

func attachLines(ctx context.Context, q Querier, kind domain.OperationKind, records []*domain.LedgerRecord) error {
	t := tablesFor(kind)

	ids := make([]int64, 0, len(records))
	byID := make(map[int64]*domain.LedgerRecord, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
		byID[r.ID] = r
	}

	sql, args, err := psql.
		Select(t.fk, "product_id", "qty", t.valueCol, "subtotal").
		From(t.lines).
		Where(squirrel.Expr(t.fk+" = ANY(?)", ids)).
		OrderBy(t.fk, "id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build lines query: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to query %s lines: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID int64
		var line domain.LedgerLine
		if err := rows.Scan(&recordID, &line.ProductID, &line.Quantity, &line.UnitValue, &line.LineTotal); err != nil {
			return fmt.Errorf("failed to scan %s line: %w", kind, err)
		}
		if r, ok := byID[recordID]; ok {
			r.Lines = append(r.Lines, line)
		}
	}
	return rows.Err()
}

func findByIdempotencyKey(ctx context.Context, q Querier, kind domain.OperationKind, actorID int64, key string) (*domain.LedgerRecord, error) {
	t := tablesFor(kind)
	records, err := findRecords(ctx, q, kind, psql.
		Select(t.headerCols...).
		From(t.header).
		Where(squirrel.Eq{"user_id": actorID, "idempotency_key": key}).
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// LedgerRepository reads committed ledger records
type LedgerRepository struct {
	db     Querier
	logger *slog.Logger
}

var _ ports.LedgerRepository = (*LedgerRepository)(nil)

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db Querier, logger *slog.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "ledger")),
	}
}

// FindByID returns a record with its lines
func (r *LedgerRepository) FindByID(ctx context.Context, kind domain.OperationKind, id int64) (*domain.LedgerRecord, error) {
	t := tablesFor(kind)
	records, err := findRecords(ctx, r.db, kind, psql.
		Select(t.headerCols...).
		From(t.header).
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s %d: %w", kind, id, domain.ErrRecordNotFound)
	}
	return records[0], nil
}

// FindByIdempotencyKey returns nil, nil when no record carries key
func (r *LedgerRepository) FindByIdempotencyKey(ctx context.Context, kind domain.OperationKind, actorID int64, key string) (*domain.LedgerRecord, error) {
	return findByIdempotencyKey(ctx, r.db, kind, actorID, key)
}

// List returns a page of records, newest first
func (r *LedgerRepository) List(ctx context.Context, filter domain.LedgerFilter) ([]*domain.LedgerRecord, int64, error) {
	filter.Normalize()
	t := tablesFor(filter.Kind)

	where := squirrel.And{}
	if filter.ActorID != nil {
		where = append(where, squirrel.Eq{"user_id": *filter.ActorID})
	}
	if filter.From != nil {
		where = append(where, squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		where = append(where, squirrel.Lt{"created_at": *filter.To})
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From(t.header).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s records: %w", filter.Kind, err)
	}

	records, err := findRecords(ctx, r.db, filter.Kind, psql.
		Select(t.headerCols...).
		From(t.header).
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64((filter.Page-1)*filter.PageSize)))
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
