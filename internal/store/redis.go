package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Open dials Redis and verifies the connection with a ping.
func Open(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: ping %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// Client implements Store on top of go-redis. Construct once at process
// start and share across requests.
type Client struct {
	rdb *redis.Client
}

// New wraps an established Redis client.
func New(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Client) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

func (c *Client) GetString(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get %s: %w", key, err)
	}
	return val, true, nil
}

func (c *Client) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	val, err := c.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: get %s: %w", key, err)
	}
	return val, nil
}

func (c *Client) Increment(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.rdb.LRange(ctx, key, start, stop).Result()
}

func (c *Client) PushBack(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return c.rdb.RPush(ctx, key, toAny(values)...).Err()
}

// Atomic applies fn's queued writes through a MULTI/EXEC pipeline: the
// server applies the whole group or none of it.
func (c *Client) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(&redisTx{ctx: ctx, pipe: pipe})
	})
	return err
}

// redisTx queues commands on a go-redis transactional pipeline. Command
// errors surface from TxPipelined on exec.
type redisTx struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (t *redisTx) SetJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	t.pipe.Set(t.ctx, key, raw, 0)
	return nil
}

func (t *redisTx) Increment(key string) {
	t.pipe.Incr(t.ctx, key)
}

func (t *redisTx) Expire(key string, ttl time.Duration) {
	t.pipe.Expire(t.ctx, key, ttl)
}

func (t *redisTx) Delete(key string) {
	t.pipe.Del(t.ctx, key)
}

func (t *redisTx) PushFront(key string, values ...string) {
	if len(values) == 0 {
		return
	}
	t.pipe.LPush(t.ctx, key, toAny(values)...)
}

func (t *redisTx) PushBack(key string, values ...string) {
	if len(values) == 0 {
		return
	}
	t.pipe.RPush(t.ctx, key, toAny(values)...)
}

func (t *redisTx) Trim(key string, start, stop int64) {
	t.pipe.LTrim(t.ctx, key, start, stop)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
