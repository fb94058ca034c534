package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Reclaim transfers messages pending longer than minIdle to the given
// consumer and returns them for processing. This is the retry path for
// deliveries held by crashed workers.
func (q *Queue) Reclaim(ctx context.Context, consumer string, minIdle time.Duration) ([]Message, error) {
	if minIdle <= 0 {
		minIdle = 2 * time.Minute
	}
	var out []Message
	start := "0-0"
	for {
		msgs, next, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: consumer,
			MinIdle:  minIdle,
			Start:    start,
			Count:    100,
		}).Result()
		if err != nil {
			return out, fmt.Errorf("redis: autoclaim %s: %w", q.stream, err)
		}
		for _, msg := range msgs {
			raw, ok := msg.Values["task_id"]
			if !ok {
				// Poison entry; ack it away.
				_ = q.rdb.XAck(ctx, q.stream, q.group, msg.ID).Err()
				continue
			}
			taskID, ok := raw.(string)
			if !ok || taskID == "" {
				_ = q.rdb.XAck(ctx, q.stream, q.group, msg.ID).Err()
				continue
			}
			out = append(out, Message{ID: msg.ID, TaskID: taskID})
		}
		if next == "0-0" || len(msgs) == 0 {
			return out, nil
		}
		start = next
	}
}
