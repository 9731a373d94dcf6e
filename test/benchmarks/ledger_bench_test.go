package benchmarks

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/ammerola/pos-ledger/internal/adapters/memory"
	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/notifier"
	"github.com/ammerola/pos-ledger/test/helpers"
)

const plentiful = math.MaxInt64 / 4

func newEngine(store *memory.Store, events ports.ChangeNotifier) *services.LedgerEngine {
	return services.NewLedgerEngine(store, store.Ledger(), services.NewAuditRecorder(), events,
		services.LedgerOptions{UnitTimeout: 5 * time.Second}, helpers.TestLogger())
}

func BenchmarkLedgerApply(b *testing.B) {
	ctx := context.Background()

	for _, lines := range []int{1, 5, 20} {
		b.Run(fmt.Sprintf("Sale_%d_lines", lines), func(b *testing.B) {
			store := memory.NewStore()
			ids := helpers.SeedProducts(b, store, lines, plentiful)
			engine := newEngine(store, nil)

			reqs := make([]domain.LineRequest, len(ids))
			for i, id := range ids {
				reqs[i] = domain.LineRequest{ProductID: id, Quantity: 1}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Apply(ctx, domain.NewSale(1, reqs, "")); err != nil {
					b.Fatal(err)
				}
			}
		})
	}

	b.Run("Restock", func(b *testing.B) {
		store := memory.NewStore()
		ids := helpers.SeedProducts(b, store, 3, 0)
		engine := newEngine(store, nil)
		reqs := []domain.LineRequest{
			{ProductID: ids[0], Quantity: 2, UnitCost: 100},
			{ProductID: ids[1], Quantity: 2, UnitCost: 100},
			{ProductID: ids[2], Quantity: 2, UnitCost: 100},
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := engine.Apply(ctx, domain.NewRestock(1, nil, reqs)); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Replay", func(b *testing.B) {
		store := memory.NewStore()
		ids := helpers.SeedProducts(b, store, 1, plentiful)
		engine := newEngine(store, nil)
		op := domain.NewSale(1, []domain.LineRequest{{ProductID: ids[0], Quantity: 1}}, "").
			WithIdempotencyKey("bench-replay")
		if _, err := engine.Apply(ctx, op); err != nil {
			b.Fatal(err)
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := engine.Apply(ctx, op); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkLedgerContention measures throughput when every sale touches the
// same two rows in opposite orders
func BenchmarkLedgerContention(b *testing.B) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := helpers.SeedProducts(b, store, 2, plentiful)
	engine := newEngine(store, nil)

	forward := []domain.LineRequest{{ProductID: ids[0], Quantity: 1}, {ProductID: ids[1], Quantity: 1}}
	backward := []domain.LineRequest{{ProductID: ids[1], Quantity: 1}, {ProductID: ids[0], Quantity: 1}}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			lines := forward
			if i%2 == 1 {
				lines = backward
			}
			i++
			if _, err := engine.Apply(ctx, domain.NewSale(1, lines, "")); err != nil && !domain.IsRetryable(err) {
				b.Error(err)
			}
		}
	})
}

func BenchmarkApplyAndNotify(b *testing.B) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := helpers.SeedProducts(b, store, 1, plentiful)

	events := notifier.NewDispatcher(notifier.Config{Buffer: 1024}, helpers.TestLogger(),
		notifier.SinkFunc{SinkName: "discard", Fn: func(context.Context, domain.ChangeEvent) error { return nil }})
	events.Start(ctx)
	defer events.Close(ctx)

	engine := newEngine(store, events)
	lines := []domain.LineRequest{{ProductID: ids[0], Quantity: 1}}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.ApplyAndNotify(ctx, domain.NewSale(1, lines, "")); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLedgerList(b *testing.B) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := helpers.SeedProducts(b, store, 10, plentiful)
	engine := newEngine(store, nil)
	for i := 0; i < 1000; i++ {
		lines := []domain.LineRequest{{ProductID: ids[i%len(ids)], Quantity: 1}}
		if _, err := engine.Apply(ctx, domain.NewSale(int64(i%5+1), lines, "")); err != nil {
			b.Fatal(err)
		}
	}
	actor := int64(3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.List(ctx, domain.LedgerFilter{Kind: domain.KindSale, ActorID: &actor, PageSize: 50}); err != nil {
			b.Fatal(err)
		}
	}
}
