// internal/adapters/db/repository.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// Repository is the generic CRUD surface of a reference table
type Repository[T any] interface {
	Create(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*T, error)
	FindAll(ctx context.Context, opts ...QueryOption) ([]*T, error)
}

// QueryOption shapes a FindAll query
type QueryOption func(squirrel.SelectBuilder) squirrel.SelectBuilder

// WithNameLike filters rows whose name contains s, case-insensitively
func WithNameLike(s string) QueryOption {
	return func(b squirrel.SelectBuilder) squirrel.SelectBuilder {
		return b.Where(squirrel.ILike{"name": "%" + s + "%"})
	}
}

// WithLimit caps the number of rows returned
func WithLimit(n uint64) QueryOption {
	return func(b squirrel.SelectBuilder) squirrel.SelectBuilder {
		return b.Limit(n)
	}
}

// BaseRepository maps T onto a table with a BIGSERIAL id and a created_at
// column. columns lists the remaining writable columns in the order values
// returns them.
type BaseRepository[T any] struct {
	db      Querier
	table   string
	columns []string
	values  func(*T) []any
	targets func(*T) []any
	setID   func(*T, int64, time.Time)
}

func (r *BaseRepository[T]) selectColumns() []string {
	cols := append([]string{"id"}, r.columns...)
	return append(cols, "created_at")
}

func (r *BaseRepository[T]) scan(row pgx.Row) (*T, error) {
	entity := new(T)
	var (
		id        int64
		createdAt time.Time
	)
	dest := append([]any{&id}, r.targets(entity)...)
	dest = append(dest, &createdAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	r.setID(entity, id, createdAt)
	return entity, nil
}

// Create inserts entity and fills in its id and creation time
func (r *BaseRepository[T]) Create(ctx context.Context, entity *T) error {
	sql, args, err := psql.
		Insert(r.table).
		Columns(r.columns...).
		Values(r.values(entity)...).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	var (
		id        int64
		createdAt time.Time
	)
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id, &createdAt); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", r.table, err)
	}
	r.setID(entity, id, createdAt)
	return nil
}

// Delete removes one row by id
func (r *BaseRepository[T]) Delete(ctx context.Context, id int64) error {
	sql, args, err := psql.Delete(r.table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", r.table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", r.table, id, domain.ErrReferenceNotFound)
	}
	return nil
}

// FindByID reads one row
func (r *BaseRepository[T]) FindByID(ctx context.Context, id int64) (*T, error) {
	sql, args, err := psql.Select(r.selectColumns()...).From(r.table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	entity, err := r.scan(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%s %d: %w", r.table, id, domain.ErrReferenceNotFound)
		}
		return nil, fmt.Errorf("failed to find in %s: %w", r.table, err)
	}
	return entity, nil
}

// FindAll lists rows ordered by name
func (r *BaseRepository[T]) FindAll(ctx context.Context, opts ...QueryOption) ([]*T, error) {
	query := psql.Select(r.selectColumns()...).From(r.table).OrderBy("name ASC", "id ASC")
	for _, opt := range opts {
		query = opt(query)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.table, err)
	}
	return scanMany(rows, func(rows pgx.Rows) (*T, error) { return r.scan(rows) })
}

// NewCategoryRepository returns the categories table repository
func NewCategoryRepository(db Querier) Repository[domain.Category] {
	return &BaseRepository[domain.Category]{
		db:      db,
		table:   "categories",
		columns: []string{"name"},
		values:  func(c *domain.Category) []any { return []any{c.Name} },
		targets: func(c *domain.Category) []any { return []any{&c.Name} },
		setID: func(c *domain.Category, id int64, at time.Time) {
			c.ID, c.CreatedAt = id, at
		},
	}
}

// NewSupplierRepository returns the suppliers table repository
func NewSupplierRepository(db Querier) Repository[domain.Supplier] {
	return &BaseRepository[domain.Supplier]{
		db:      db,
		table:   "suppliers",
		columns: []string{"name", "phone", "address"},
		values: func(s *domain.Supplier) []any {
			return []any{s.Name, nullableString(s.Phone), nullableString(s.Address)}
		},
		targets: func(s *domain.Supplier) []any {
			return []any{&s.Name, &optionalString{&s.Phone}, &optionalString{&s.Address}}
		},
		setID: func(s *domain.Supplier, id int64, at time.Time) {
			s.ID, s.CreatedAt = id, at
		},
	}
}

// optionalString scans a nullable text column into a plain string
type optionalString struct {
	dst *string
}

func (o *optionalString) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*o.dst = ""
	case string:
		*o.dst = v
	case []byte:
		*o.dst = string(v)
	default:
		return fmt.Errorf("cannot scan %T into string", src)
	}
	return nil
}
