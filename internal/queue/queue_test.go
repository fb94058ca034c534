package queue

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestFlatten(t *testing.T) {
	streams := []redis.XStream{
		{
			Stream: "research:tasks",
			Messages: []redis.XMessage{
				{ID: "1-0", Values: map[string]interface{}{"task_id": "task-a"}},
				{ID: "2-0", Values: map[string]interface{}{"other": "x"}},
				{ID: "3-0", Values: map[string]interface{}{"task_id": ""}},
				{ID: "4-0", Values: map[string]interface{}{"task_id": "task-b"}},
			},
		},
	}
	msgs := flatten(streams)
	if len(msgs) != 2 {
		t.Fatalf("messages=%d want 2", len(msgs))
	}
	if msgs[0].TaskID != "task-a" || msgs[0].ID != "1-0" {
		t.Fatalf("first=%+v", msgs[0])
	}
	if msgs[1].TaskID != "task-b" {
		t.Fatalf("second=%+v", msgs[1])
	}
}
