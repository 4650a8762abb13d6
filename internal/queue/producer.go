// Package queue publishes scan tasks onto the shared Redis list drained
// by the external scanning worker.
//
// The queue is a flag-annotated FIFO: tasks append at the tail in arrival
// order and the priority field is only a hint for the consumer. The
// producer performs no acknowledgement, retry, or dead-lettering; once a
// task is appended its fate belongs to the worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/store"
)

// pusher is the single Redis capability the producer needs.
type pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Producer appends tasks to one named queue.
type Producer struct {
	rdb pusher
	key string
}

// NewProducer binds a producer to the queue at key.
func NewProducer(rdb *redis.Client, key string) *Producer {
	return &Producer{rdb: rdb, key: key}
}

// Enqueue serializes the task and appends it to the queue tail.
func (p *Producer) Enqueue(ctx context.Context, task domain.ScanTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: marshal task: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.key, payload).Err(); err != nil {
		return fmt.Errorf("queue: push task: %w", err)
	}
	return nil
}

// Append queues the task onto tx so it lands in the same commit as the
// caller's other writes (quota-metered dispatch needs the counter bump
// and the enqueue to be one atomic unit).
func (p *Producer) Append(tx store.Tx, task domain.ScanTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: marshal task: %w", err)
	}
	tx.PushBack(p.key, string(payload))
	return nil
}
