package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/rigradar/go-radar-backend/internal/domain"
)

type fakePusher struct {
	key      string
	payloads []string
	err      error
}

func (f *fakePusher) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.key = key
	for _, v := range values {
		switch raw := v.(type) {
		case []byte:
			f.payloads = append(f.payloads, string(raw))
		case string:
			f.payloads = append(f.payloads, raw)
		}
	}
	return redis.NewIntResult(int64(len(f.payloads)), nil)
}

func TestProducer_Enqueue(t *testing.T) {
	f := &fakePusher{}
	p := &Producer{rdb: f, key: "scan_queue"}

	task := domain.ScanTask{
		Query:      "rtx 4090",
		Stores:     []string{"ebay"},
		OwnerEmail: "a@x.com",
		Condition:  "any",
		Timestamp:  1700000000000,
		Priority:   true,
		Source:     "user_request",
	}
	if err := p.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if f.key != "scan_queue" || len(f.payloads) != 1 {
		t.Fatalf("push: key=%q n=%d", f.key, len(f.payloads))
	}

	var got domain.ScanTask
	if err := json.Unmarshal([]byte(f.payloads[0]), &got); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if got.Query != task.Query || got.Priority != task.Priority || got.OwnerEmail != task.OwnerEmail {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestProducer_EnqueuePushError(t *testing.T) {
	f := &fakePusher{err: errors.New("connection refused")}
	p := &Producer{rdb: f, key: "scan_queue"}

	if err := p.Enqueue(context.Background(), domain.ScanTask{Query: "ssd"}); err == nil {
		t.Fatalf("expected push error")
	}
}
