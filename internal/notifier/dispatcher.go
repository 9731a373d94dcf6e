// internal/notifier/dispatcher.go
package notifier

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// ErrClosed is returned by Close when the dispatcher was already closed.
var ErrClosed = errors.New("dispatcher closed")

// Config tunes the dispatcher.
type Config struct {
	Buffer          int
	DeliveryTimeout time.Duration
}

// DefaultConfig returns a dispatcher configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Buffer:          1024,
		DeliveryTimeout: 5 * time.Second,
	}
}

// Stats are cumulative dispatcher counters.
type Stats struct {
	Published uint64 `json:"published"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
	Pending   int    `json:"pending"`
}

// Dispatcher hands post-commit events to a background broker that fans them
// out to every sink. Notify never blocks: when the buffer is full the event is
// dropped and counted.
type Dispatcher struct {
	cfg    Config
	sinks  []ports.ChangeSink
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	events chan domain.ChangeEvent
	done   chan struct{}
	start  sync.Once

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

var _ ports.ChangeNotifier = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher delivering to sinks in order.
func NewDispatcher(cfg Config, logger *slog.Logger, sinks ...ports.ChangeSink) *Dispatcher {
	def := DefaultConfig()
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = def.DeliveryTimeout
	}

	return &Dispatcher{
		cfg:    cfg,
		sinks:  sinks,
		logger: logger.With(slog.String("component", "notifier")),
		events: make(chan domain.ChangeEvent, cfg.Buffer),
		done:   make(chan struct{}),
	}
}

// Start launches the broker. Calling it more than once has no effect.
func (d *Dispatcher) Start(ctx context.Context) {
	d.start.Do(func() {
		go d.broker(context.WithoutCancel(ctx))
	})
}

// Notify enqueues event for delivery.
func (d *Dispatcher) Notify(event domain.ChangeEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		d.logger.Warn("event dropped after close",
			slog.String("event_id", event.ID.String()),
			slog.String("kind", string(event.Kind)))
		return
	}

	select {
	case d.events <- event:
		d.published.Add(1)
	default:
		d.dropped.Add(1)
		d.logger.Warn("event dropped, notifier buffer full",
			slog.String("event_id", event.ID.String()),
			slog.String("kind", string(event.Kind)),
			slog.Int("buffer", d.cfg.Buffer))
	}
}

func (d *Dispatcher) broker(ctx context.Context) {
	defer close(d.done)
	for event := range d.events {
		d.deliver(ctx, event)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.ChangeEvent) {
	for _, sink := range d.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
		err := d.safeDeliver(sinkCtx, sink, event)
		cancel()

		if err != nil {
			d.failed.Add(1)
			d.logger.ErrorContext(ctx, "event delivery failed",
				slog.String("sink", sink.Name()),
				slog.String("event_id", event.ID.String()),
				slog.String("kind", string(event.Kind)),
				slog.String("error", err.Error()))
			continue
		}
		d.delivered.Add(1)
	}
}

func (d *Dispatcher) safeDeliver(ctx context.Context, sink ports.ChangeSink, event domain.ChangeEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("sink panicked")
			d.logger.ErrorContext(ctx, "sink panic recovered",
				slog.String("sink", sink.Name()),
				slog.Any("panic", r))
		}
	}()
	return sink.Deliver(ctx, event)
}

// Close stops intake and waits until queued events are delivered or ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()

	// Make sure a never-started dispatcher still drains.
	d.Start(ctx)

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Published: d.published.Load(),
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
		Failed:    d.failed.Load(),
		Pending:   len(d.events),
	}
}
