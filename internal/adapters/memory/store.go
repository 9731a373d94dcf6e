// internal/adapters/memory/store.go
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// Stage names a point in a unit where a fault can be injected.
type Stage string

const (
	StageBegin        Stage = "begin"
	StageLock         Stage = "lock"
	StageInsertHeader Stage = "insert_header"
	StageInsertLines  Stage = "insert_lines"
	StageAdjustStock  Stage = "adjust_stock"
	StageInsertAudit  Stage = "insert_audit"
	StageCommit       Stage = "commit"
)

// Store is an in-process stock store. Each product row has its own exclusive
// lock held from LockProduct until the unit ends; writes are staged per unit
// and become visible together on commit.
type Store struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	records  map[domain.OperationKind][]*domain.LedgerRecord
	audit    []domain.AuditEntry
	rowLocks map[int64]chan struct{}

	nextProductID int64
	nextRecordID  map[domain.OperationKind]int64
	nextAuditID   int64

	lockTimeout time.Duration
	faults      map[Stage]error
	now         func() time.Time
}

var (
	_ ports.StockStore        = (*Store)(nil)
	_ ports.ProductRepository = (*Store)(nil)
	_ ports.LedgerRepository  = LedgerReader{}
	_ ports.ReportRepository  = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long LockProduct waits for a row.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		products: make(map[int64]domain.Product),
		records:  make(map[domain.OperationKind][]*domain.LedgerRecord),
		rowLocks: make(map[int64]chan struct{}),
		nextRecordID: map[domain.OperationKind]int64{
			domain.KindSale:    0,
			domain.KindRestock: 0,
		},
		faults: make(map[Stage]error),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailOn makes every later unit fail at stage with err until ClearFaults.
func (s *Store) FailOn(stage Stage, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[stage] = err
}

// ClearFaults removes all injected faults.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[Stage]error)
}

func (s *Store) fault(stage Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults[stage]
}

// WithinUnit runs fn as one atomic unit
func (s *Store) WithinUnit(ctx context.Context, fn func(ctx context.Context, unit ports.LedgerUnit) error) error {
	if err := s.fault(StageBegin); err != nil {
		return domain.NewStoreUnavailable("begin", err)
	}

	u := &unit{store: s, deltas: make(map[int64]int64), locked: make(map[int64]bool)}
	defer u.release()

	if err := fn(ctx, u); err != nil {
		return classify(err)
	}

	if err := s.fault(StageCommit); err != nil {
		return domain.NewStoreUnavailable("commit", err)
	}
	if err := s.commit(u); err != nil {
		return domain.NewStoreUnavailable("commit", err)
	}
	return nil
}

func classify(err error) error {
	if domain.IsClientError(err) || domain.IsRetryable(err) {
		return err
	}
	return domain.NewStoreUnavailable("unit", err)
}

var errIdempotencyConflict = errors.New("idempotency key already committed")

func (s *Store) commit(u *unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.header != nil && u.header.IdempotencyKey != "" {
		if s.findByKeyLocked(u.header.Kind, u.header.ActorID, u.header.IdempotencyKey) != nil {
			return errIdempotencyConflict
		}
	}

	for id := range u.deltas {
		if _, ok := s.products[id]; !ok {
			return fmt.Errorf("product %d was removed while locked", id)
		}
	}

	for id, delta := range u.deltas {
		p := s.products[id]
		p.Stock += delta
		p.UpdatedAt = s.now()
		s.products[id] = p
	}

	if u.header != nil {
		rec := *u.header
		rec.Lines = append([]domain.LedgerLine(nil), u.lines...)
		rec.Replayed = false
		s.records[rec.Kind] = append(s.records[rec.Kind], &rec)
	}

	for _, e := range u.audit {
		s.nextAuditID++
		e.ID = s.nextAuditID
		s.audit = append(s.audit, e)
	}
	return nil
}

func (s *Store) rowLock(id int64) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.rowLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[id] = ch
	}
	return ch
}

type unit struct {
	store  *Store
	locked map[int64]bool
	header *domain.LedgerRecord
	lines  []domain.LedgerLine
	deltas map[int64]int64
	audit  []domain.AuditEntry
}

func (u *unit) release() {
	for id := range u.locked {
		u.store.unlockRow(id)
	}
	u.locked = nil
}

func (u *unit) LockProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	if err := u.store.fault(StageLock); err != nil {
		return nil, err
	}

	if !u.locked[productID] {
		if err := u.acquire(ctx, productID); err != nil {
			return nil, err
		}
	}

	u.store.mu.Lock()
	p, ok := u.store.products[productID]
	u.store.mu.Unlock()
	if !ok {
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}

	p.Stock += u.deltas[productID]
	return &p, nil
}

func (u *unit) acquire(ctx context.Context, productID int64) error {
	if err := u.store.lockRow(ctx, productID); err != nil {
		return err
	}
	u.locked[productID] = true
	return nil
}

// lockRow waits for the exclusive row lock of id, bounded by the lock timeout
// and ctx. The caller releases it with unlockRow.
func (s *Store) lockRow(ctx context.Context, id int64) error {
	ch := s.rowLock(id)

	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		t := time.NewTimer(s.lockTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case ch <- struct{}{}:
		return nil
	case <-timeout:
		return fmt.Errorf("product %d: %w", id, domain.ErrLockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlockRow(id int64) {
	<-s.rowLock(id)
}

func (u *unit) InsertHeader(_ context.Context, record *domain.LedgerRecord) error {
	if err := u.store.fault(StageInsertHeader); err != nil {
		return err
	}

	u.store.mu.Lock()
	u.store.nextRecordID[record.Kind]++
	record.ID = u.store.nextRecordID[record.Kind]
	record.CreatedAt = u.store.now()
	u.store.mu.Unlock()

	h := *record
	h.Lines = nil
	u.header = &h
	return nil
}

func (u *unit) InsertLines(_ context.Context, recordID int64, _ domain.OperationKind, lines []domain.LedgerLine) error {
	if err := u.store.fault(StageInsertLines); err != nil {
		return err
	}
	if u.header == nil || u.header.ID != recordID {
		return fmt.Errorf("no header %d in this unit", recordID)
	}
	u.lines = append(u.lines, lines...)
	return nil
}

func (u *unit) AdjustStock(_ context.Context, productID int64, delta int64) (int64, error) {
	if err := u.store.fault(StageAdjustStock); err != nil {
		return 0, err
	}
	if !u.locked[productID] {
		return 0, fmt.Errorf("product %d is not locked by this unit", productID)
	}

	u.store.mu.Lock()
	p, ok := u.store.products[productID]
	u.store.mu.Unlock()
	if !ok {
		return 0, &domain.ProductNotFoundError{ProductID: productID}
	}

	next := p.Stock + u.deltas[productID] + delta
	if next < 0 {
		// mirrors the CHECK (stock >= 0) constraint of the SQL schema
		return 0, domain.NewStoreUnavailable("stock invariant",
			fmt.Errorf("product %d stock would become %d", productID, next))
	}
	u.deltas[productID] += delta
	return next, nil
}

func (u *unit) InsertAudit(_ context.Context, entry *domain.AuditEntry) error {
	if err := u.store.fault(StageInsertAudit); err != nil {
		return err
	}
	u.audit = append(u.audit, *entry)
	return nil
}

func (u *unit) FindByIdempotencyKey(_ context.Context, kind domain.OperationKind, actorID int64, key string) (*domain.LedgerRecord, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	return u.store.findByKeyLocked(kind, actorID, key), nil
}

func (s *Store) findByKeyLocked(kind domain.OperationKind, actorID int64, key string) *domain.LedgerRecord {
	for _, r := range s.records[kind] {
		if r.ActorID == actorID && r.IdempotencyKey == key {
			return cloneRecord(r)
		}
	}
	return nil
}

func cloneRecord(r *domain.LedgerRecord) *domain.LedgerRecord {
	c := *r
	c.Lines = append([]domain.LedgerLine(nil), r.Lines...)
	return &c
}
