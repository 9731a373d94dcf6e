// internal/workers/stock_event_processor.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/core/services"
)

// Enqueuer is the subset of *asynq.Client the processors use
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// StockEventProcessor reacts to committed stock changes
type StockEventProcessor struct {
	invalidator ports.CacheInvalidator
	products    ports.ProductRepository
	enqueuer    Enqueuer
	alertTo     []string
	logger      *slog.Logger
}

// NewStockEventProcessor creates a new stock event processor. Low-stock alerts
// are only sent when alertTo is non-empty.
func NewStockEventProcessor(
	invalidator ports.CacheInvalidator,
	products ports.ProductRepository,
	enqueuer Enqueuer,
	alertTo []string,
	logger *slog.Logger,
) *StockEventProcessor {
	return &StockEventProcessor{
		invalidator: invalidator,
		products:    products,
		enqueuer:    enqueuer,
		alertTo:     alertTo,
		logger:      logger.With(slog.String("processor", "stock_event")),
	}
}

// HandleStockChanged invalidates cached views and raises low-stock alerts
func (p *StockEventProcessor) HandleStockChanged(ctx context.Context, t *asynq.Task) error {
	var event domain.ChangeEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("failed to unmarshal stock event: %w: %w", err, asynq.SkipRetry)
	}

	keys, patterns := services.InvalidationTargets(event)
	if err := p.invalidator.Invalidate(ctx, keys, patterns...); err != nil {
		return fmt.Errorf("failed to invalidate caches for event %s: %w", event.ID, err)
	}

	if event.Kind != domain.EventSale || len(p.alertTo) == 0 {
		return nil
	}

	var low []string
	for _, level := range event.AffectedProducts {
		product, err := p.products.FindByID(ctx, level.ProductID)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("failed to load product %d: %w", level.ProductID, err)
		}
		if level.NewStock > product.MinStock {
			continue
		}
		low = append(low, fmt.Sprintf("- %s (id %d): %d left, minimum %d",
			product.Name, product.ID, level.NewStock, product.MinStock))
	}

	if len(low) == 0 {
		return nil
	}

	task, opts, err := NewEmailTask(EmailPayload{
		To:      p.alertTo,
		Subject: fmt.Sprintf("Low stock alert: %d product(s)", len(low)),
		Body:    "The following products are at or below their minimum stock:\n" + strings.Join(low, "\n"),
	})
	if err != nil {
		return err
	}
	// One alert per event, even when this task is retried.
	opts = append(opts, asynq.TaskID("lowstock:"+event.ID.String()))

	if _, err := p.enqueuer.EnqueueContext(ctx, task, opts...); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("failed to enqueue low stock alert: %w", err)
	}

	p.logger.InfoContext(ctx, "low stock alert queued",
		slog.String("event_id", event.ID.String()),
		slog.Int("products", len(low)))
	return nil
}
