// internal/notifier/sinks.go
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/workers"
)

// DefaultChannel is the pub/sub channel stock events are published on.
const DefaultChannel = "stock:updated"

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

var _ ports.ChangeSink = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher on channel, or DefaultChannel when empty.
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Name() string { return "redis_pubsub" }

func (p *RedisPublisher) Deliver(ctx context.Context, event domain.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}
	return nil
}

// TaskEnqueuer is the subset of *asynq.Client the enqueuer needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskSink hands events to background workers through asynq.
type TaskSink struct {
	client TaskEnqueuer
}

var _ ports.ChangeSink = (*TaskSink)(nil)

// NewTaskSink creates a new task sink
func NewTaskSink(client TaskEnqueuer) *TaskSink {
	return &TaskSink{client: client}
}

func (s *TaskSink) Name() string { return "asynq" }

func (s *TaskSink) Deliver(ctx context.Context, event domain.ChangeEvent) error {
	task, opts, err := workers.NewStockChangedTask(event)
	if err != nil {
		return err
	}

	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		// Already enqueued under the same event id.
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("failed to enqueue %s: %w", workers.TypeStockChanged, err)
	}
	return nil
}

// CacheSink drops the cached views an event makes stale.
type CacheSink struct {
	invalidator ports.CacheInvalidator
}

var _ ports.ChangeSink = (*CacheSink)(nil)

// NewCacheSink creates a new cache sink
func NewCacheSink(invalidator ports.CacheInvalidator) *CacheSink {
	return &CacheSink{invalidator: invalidator}
}

func (s *CacheSink) Name() string { return "cache" }

func (s *CacheSink) Deliver(ctx context.Context, event domain.ChangeEvent) error {
	keys, patterns := services.InvalidationTargets(event)
	return s.invalidator.Invalidate(ctx, keys, patterns...)
}

// SinkFunc adapts a function to ports.ChangeSink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, event domain.ChangeEvent) error
}

func (f SinkFunc) Name() string { return f.SinkName }

func (f SinkFunc) Deliver(ctx context.Context, event domain.ChangeEvent) error {
	return f.Fn(ctx, event)
}
