package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler processes one task id. A nil return acknowledges the message;
// an error leaves it pending for redelivery.
type Handler func(ctx context.Context, taskID string) error

// WorkerPool runs a bounded set of consumers against one consumer group.
// Each worker holds at most one message in flight, so the pool size is the
// concurrency cap for external research calls.
type WorkerPool struct {
	Queue   *Queue
	Handler Handler
	Logger  *zap.Logger
	Workers int

	readBlock time.Duration
}

// Run blocks until ctx is cancelled. Worker errors are logged and the
// worker keeps reading; only context cancellation stops the pool.
func (p *WorkerPool) Run(ctx context.Context) error {
	workers := p.Workers
	if workers <= 0 {
		workers = 10
	}
	block := p.readBlock
	if block <= 0 {
		block = 5 * time.Second
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		consumer := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			return p.consume(ctx, consumer, block)
		})
	}
	return g.Wait()
}

func (p *WorkerPool) consume(ctx context.Context, consumer string, block time.Duration) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msgs, err := p.Queue.Read(ctx, consumer, 1, block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if p.Logger != nil {
				p.Logger.Warn("queue read failed", zap.String("consumer", consumer), zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		for _, msg := range msgs {
			if err := p.Handler(ctx, msg.TaskID); err != nil {
				// Leave unacked; the reclaimer or this group's pending list
				// will redeliver after the visibility timeout.
				if p.Logger != nil {
					p.Logger.Warn("task handling interrupted, message left pending",
						zap.String("consumer", consumer),
						zap.String("task_id", msg.TaskID),
						zap.Error(err),
					)
				}
				continue
			}
			if err := p.Queue.Ack(ctx, msg.ID); err != nil && p.Logger != nil {
				p.Logger.Warn("ack failed", zap.String("message_id", msg.ID), zap.Error(err))
			}
		}
	}
}
