// internal/notifier/dispatcher_test.go
package notifier_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/notifier"
	"github.com/ammerola/pos-ledger/test/helpers"
	"github.com/ammerola/pos-ledger/test/mocks"
)

func saleEvent(productID, stock int64) domain.ChangeEvent {
	id := int64(1)
	return domain.ChangeEvent{
		ID:               uuid.New(),
		Kind:             domain.EventSale,
		AffectedProducts: []domain.StockLevel{{ProductID: productID, NewStock: stock}},
		LedgerRecordID:   &id,
		OccurredAt:       time.Now().UTC(),
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (s *recordingSink) sink(name string) notifier.SinkFunc {
	return notifier.SinkFunc{
		SinkName: name,
		Fn: func(_ context.Context, event domain.ChangeEvent) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.events = append(s.events, event)
			return nil
		},
	}
}

func (s *recordingSink) received() []domain.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChangeEvent(nil), s.events...)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	rec := &recordingSink{}
	d := notifier.NewDispatcher(notifier.DefaultConfig(), helpers.TestLogger(), rec.sink("recorder"))
	d.Start(context.Background())

	var sent []uuid.UUID
	for i := int64(1); i <= 5; i++ {
		event := saleEvent(i, 10-i)
		sent = append(sent, event.ID)
		d.Notify(event)
	}

	require.NoError(t, d.Close(context.Background()))

	got := rec.received()
	require.Len(t, got, 5)
	for i, event := range got {
		assert.Equal(t, sent[i], event.ID)
	}

	stats := d.Stats()
	assert.Equal(t, uint64(5), stats.Published)
	assert.Equal(t, uint64(5), stats.Delivered)
	assert.Zero(t, stats.Dropped)
	assert.Zero(t, stats.Pending)
}

func TestDispatcher_DropsWhenBufferFull(t *testing.T) {
	rec := &recordingSink{}
	d := notifier.NewDispatcher(notifier.Config{Buffer: 1}, helpers.TestLogger(), rec.sink("recorder"))

	// not started, so the second event has nowhere to go
	first := saleEvent(1, 3)
	d.Notify(first)
	d.Notify(saleEvent(2, 4))

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 1, stats.Pending)

	// Close drains a dispatcher that was never started
	require.NoError(t, d.Close(context.Background()))
	got := rec.received()
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].ID)
}

func TestDispatcher_NotifyNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	blocking := notifier.SinkFunc{
		SinkName: "slow",
		Fn: func(ctx context.Context, _ domain.ChangeEvent) error {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}

	d := notifier.NewDispatcher(notifier.Config{Buffer: 2, DeliveryTimeout: time.Second}, helpers.TestLogger(), blocking)
	d.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := int64(0); i < 50; i++ {
			d.Notify(saleEvent(i, i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a slow sink")
	}

	assert.Positive(t, d.Stats().Dropped)
	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_SinkFailuresAreIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)
	failing := mocks.NewMockChangeSink(ctrl)
	failing.EXPECT().Name().Return("failing").AnyTimes()
	failing.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(errors.New("broker offline")).Times(2)

	panicking := notifier.SinkFunc{
		SinkName: "panicking",
		Fn: func(context.Context, domain.ChangeEvent) error {
			panic("boom")
		},
	}
	rec := &recordingSink{}

	d := notifier.NewDispatcher(notifier.DefaultConfig(), helpers.TestLogger(), failing, panicking, rec.sink("recorder"))
	d.Start(context.Background())

	d.Notify(saleEvent(1, 5))
	d.Notify(saleEvent(2, 6))
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, rec.received(), 2)

	stats := d.Stats()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(4), stats.Failed)
	assert.Equal(t, uint64(2), stats.Delivered)
}

func TestDispatcher_Close(t *testing.T) {
	t.Run("notify_after_close_is_dropped", func(t *testing.T) {
		rec := &recordingSink{}
		d := notifier.NewDispatcher(notifier.DefaultConfig(), helpers.TestLogger(), rec.sink("recorder"))
		d.Start(context.Background())
		require.NoError(t, d.Close(context.Background()))

		d.Notify(saleEvent(1, 1))
		assert.Empty(t, rec.received())
		assert.Equal(t, uint64(1), d.Stats().Dropped)
	})

	t.Run("second_close_reports_closed", func(t *testing.T) {
		d := notifier.NewDispatcher(notifier.DefaultConfig(), helpers.TestLogger())
		require.NoError(t, d.Close(context.Background()))
		assert.ErrorIs(t, d.Close(context.Background()), notifier.ErrClosed)
	})

	t.Run("drain_bounded_by_context", func(t *testing.T) {
		stuck := notifier.SinkFunc{
			SinkName: "stuck",
			Fn: func(ctx context.Context, _ domain.ChangeEvent) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}
		d := notifier.NewDispatcher(notifier.Config{DeliveryTimeout: time.Second}, helpers.TestLogger(), stuck)
		d.Start(context.Background())
		d.Notify(saleEvent(1, 1))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	})
}
