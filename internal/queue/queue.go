// Package queue provides the durable research task queue on Redis Streams
// with consumer-group delivery, acknowledgement, and stuck-message reclaim.
package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"polyresearch/internal/config"
)

// streamMaxLen bounds the stream via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// NewRedisClient connects and pings, failing fast on bad config.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// Queue is a durable at-least-once task queue. Messages carry a task id;
// all task state lives in Postgres, so redelivery of an already finished
// task is a harmless no-op for an idempotent consumer.
type Queue struct {
	rdb    *redis.Client
	stream string
	group  string
}

func New(rdb *redis.Client, stream, group string) *Queue {
	if stream == "" {
		stream = "research:tasks"
	}
	if group == "" {
		group = "research-workers"
	}
	return &Queue{rdb: rdb, stream: stream, group: group}
}

// EnsureGroup creates the consumer group, tolerating prior existence.
func (q *Queue) EnsureGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("redis: create group %s on %s: %w", q.group, q.stream, err)
	}
	return nil
}

// Enqueue appends a task id to the stream.
func (q *Queue) Enqueue(ctx context.Context, taskID string) error {
	err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"task_id": taskID},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: enqueue task %s: %w", taskID, err)
	}
	return nil
}

// Message is one delivered queue entry.
type Message struct {
	ID     string
	TaskID string
}

// Read blocks up to block for the next batch delivered to consumer.
func (q *Queue) Read(ctx context.Context, consumer string, count int64, block time.Duration) ([]Message, error) {
	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: read group %s: %w", q.group, err)
	}
	return flatten(res), nil
}

// Ack acknowledges a processed message.
func (q *Queue) Ack(ctx context.Context, messageID string) error {
	if err := q.rdb.XAck(ctx, q.stream, q.group, messageID).Err(); err != nil {
		return fmt.Errorf("redis: ack %s: %w", messageID, err)
	}
	return nil
}

func flatten(streams []redis.XStream) []Message {
	var out []Message
	for _, s := range streams {
		for _, msg := range s.Messages {
			raw, ok := msg.Values["task_id"]
			if !ok {
				continue
			}
			taskID, ok := raw.(string)
			if !ok || taskID == "" {
				continue
			}
			out = append(out, Message{ID: msg.ID, TaskID: taskID})
		}
	}
	return out
}
