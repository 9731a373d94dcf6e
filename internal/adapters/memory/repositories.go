// internal/adapters/memory/repositories.go
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// Create inserts a product and assigns its id
func (s *Store) Create(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Barcode != "" {
		for _, existing := range s.products {
			if existing.Barcode == p.Barcode {
				return fmt.Errorf("%w: barcode %q already exists", domain.ErrInvalidProduct, p.Barcode)
			}
		}
	}

	s.nextProductID++
	p.ID = s.nextProductID
	s.products[p.ID] = *p
	return nil
}

// Update writes catalog fields; stock is left untouched
func (s *Store) Update(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[p.ID]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: p.ID}
	}

	current.Name = p.Name
	current.Barcode = p.Barcode
	current.CategoryID = p.CategoryID
	current.Price = p.Price
	current.MinStock = p.MinStock
	current.UpdatedAt = p.UpdatedAt
	s.products[p.ID] = current
	return nil
}

// Delete removes a product that no ledger line references. It waits for the
// row lock like the SQL DELETE does, so it never races an open unit.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.lockRow(ctx, id); err != nil {
		return err
	}
	defer s.unlockRow(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return &domain.ProductNotFoundError{ProductID: id}
	}
	for _, records := range s.records {
		for _, r := range records {
			for _, l := range r.Lines {
				if l.ProductID == id {
					return fmt.Errorf("product %d: %w", id, domain.ErrProductInUse)
				}
			}
		}
	}
	delete(s.products, id)
	return nil
}

// FindByID returns a copy of the committed product
func (s *Store) FindByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, &domain.ProductNotFoundError{ProductID: id}
	}
	return &p, nil
}

// List filters, sorts and pages products the way the SQL adapter does
func (s *Store) List(_ context.Context, filter domain.ProductFilter) ([]*domain.Product, int64, error) {
	filter.Normalize()

	s.mu.Lock()
	matched := make([]*domain.Product, 0, len(s.products))
	search := strings.ToLower(filter.Search)
	for _, p := range s.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) && p.Barcode != filter.Search {
			continue
		}
		if filter.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *filter.CategoryID) {
			continue
		}
		if filter.LowStock && !p.IsLowStock() {
			continue
		}
		c := p
		matched = append(matched, &c)
	}
	s.mu.Unlock()

	slices.SortFunc(matched, func(a, b *domain.Product) int {
		var c int
		switch filter.SortBy {
		case "price":
			c = cmp.Compare(a.Price, b.Price)
		case "stock":
			c = cmp.Compare(a.Stock, b.Stock)
		case "created_at":
			c = a.CreatedAt.Compare(b.CreatedAt)
		default:
			c = strings.Compare(a.Name, b.Name)
		}
		if filter.SortOrder == "desc" {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	})

	return page(matched, filter.Offset(), filter.PageSize), int64(len(matched)), nil
}

// LowStock lists products at or below min_stock, emptiest first
func (s *Store) LowStock(_ context.Context) ([]*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Product, 0)
	for _, p := range s.products {
		if p.IsLowStock() {
			c := p
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Product) int {
		return cmp.Or(cmp.Compare(a.Stock, b.Stock), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// FindByID returns a committed ledger record. It satisfies the ledger port
// through LedgerReader, since the product port already claims the name.
func (r LedgerReader) FindByID(_ context.Context, kind domain.OperationKind, id int64) (*domain.LedgerRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records[kind] {
		if rec.ID == id {
			return cloneRecord(rec), nil
		}
	}
	return nil, fmt.Errorf("%s %d: %w", kind, id, domain.ErrRecordNotFound)
}

// FindByIdempotencyKey returns nil, nil when nothing matches
func (r LedgerReader) FindByIdempotencyKey(_ context.Context, kind domain.OperationKind, actorID int64, key string) (*domain.LedgerRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByKeyLocked(kind, actorID, key), nil
}

// List pages committed records newest first
func (r LedgerReader) List(_ context.Context, filter domain.LedgerFilter) ([]*domain.LedgerRecord, int64, error) {
	filter.Normalize()

	s := r.store
	s.mu.Lock()
	matched := make([]*domain.LedgerRecord, 0, len(s.records[filter.Kind]))
	for _, rec := range s.records[filter.Kind] {
		if filter.ActorID != nil && rec.ActorID != *filter.ActorID {
			continue
		}
		if filter.From != nil && rec.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !rec.CreatedAt.Before(*filter.To) {
			continue
		}
		matched = append(matched, cloneRecord(rec))
	}
	s.mu.Unlock()

	slices.SortFunc(matched, func(a, b *domain.LedgerRecord) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})

	offset := (filter.Page - 1) * filter.PageSize
	return page(matched, offset, filter.PageSize), int64(len(matched)), nil
}

// DailyRevenue groups sales by UTC day, newest first
func (s *Store) DailyRevenue(_ context.Context, days int) ([]domain.DailyRevenue, error) {
	s.mu.Lock()
	byDay := make(map[time.Time]*domain.DailyRevenue)
	for _, rec := range s.records[domain.KindSale] {
		day := rec.CreatedAt.UTC().Truncate(24 * time.Hour)
		d, ok := byDay[day]
		if !ok {
			d = &domain.DailyRevenue{Date: day}
			byDay[day] = d
		}
		d.TransactionCount++
		d.Revenue += rec.Total
	}
	s.mu.Unlock()

	out := make([]domain.DailyRevenue, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b domain.DailyRevenue) int { return b.Date.Compare(a.Date) })
	if days > 0 && len(out) > days {
		out = out[:days]
	}
	return out, nil
}

// BestSelling ranks products by quantity sold
func (s *Store) BestSelling(_ context.Context, limit int) ([]domain.BestSeller, error) {
	s.mu.Lock()
	byProduct := make(map[int64]*domain.BestSeller)
	for _, rec := range s.records[domain.KindSale] {
		for _, l := range rec.Lines {
			b, ok := byProduct[l.ProductID]
			if !ok {
				b = &domain.BestSeller{ProductID: l.ProductID, Name: s.products[l.ProductID].Name}
				byProduct[l.ProductID] = b
			}
			b.TotalSold += l.Quantity
			b.Revenue += l.LineTotal
		}
	}
	s.mu.Unlock()

	out := make([]domain.BestSeller, 0, len(byProduct))
	for _, b := range byProduct {
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b domain.BestSeller) int {
		return cmp.Or(cmp.Compare(b.TotalSold, a.TotalSold), cmp.Compare(a.ProductID, b.ProductID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DashboardStats computes today's cards
func (s *Store) DashboardStats(_ context.Context) (*domain.DashboardStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.now().UTC().Truncate(24 * time.Hour)
	stats := &domain.DashboardStats{}
	for _, rec := range s.records[domain.KindSale] {
		if !rec.CreatedAt.Before(today) {
			stats.SalesToday += rec.Total
			stats.TransactionsToday++
		}
	}
	for _, p := range s.products {
		if p.IsLowStock() {
			stats.LowStockCount++
		}
	}
	return stats, nil
}

// LedgerReader exposes the committed ledger of a Store through the
// ports.LedgerRepository method set.
type LedgerReader struct {
	store *Store
}

// Ledger returns the read side of the committed ledger.
func (s *Store) Ledger() LedgerReader {
	return LedgerReader{store: s}
}

// Snapshot is a point-in-time copy of committed state, for assertions.
type Snapshot struct {
	Products map[int64]domain.Product
	Records  map[domain.OperationKind]int
	Lines    int
	Audit    []domain.AuditEntry
}

// Snapshot copies the committed state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Products: make(map[int64]domain.Product, len(s.products)),
		Records:  make(map[domain.OperationKind]int, len(s.records)),
		Audit:    append([]domain.AuditEntry(nil), s.audit...),
	}
	for id, p := range s.products {
		snap.Products[id] = p
	}
	for kind, records := range s.records {
		snap.Records[kind] = len(records)
		for _, r := range records {
			snap.Lines += len(r.Lines)
		}
	}
	return snap
}

func page[T any](items []T, offset, size int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
