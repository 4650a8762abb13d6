// Package store wraps the shared Redis key-value store behind a typed
// client. Every piece of cross-request state (sessions, user records,
// chat transcripts, quota counters, deal lists, the scan queue) lives in
// this store; the process itself holds no shared mutable state.
//
// The one guarantee callers rely on is Atomic: a group of writes queued
// inside one Atomic call is applied all-or-nothing and is never observed
// half-applied by a concurrent reader.
package store

import (
	"context"
	"time"
)

// Store is the typed access contract consumed by the service layer.
// Implementations must be safe for concurrent use.
//
// Absent keys are not errors: GetJSON and GetString report presence via
// their boolean return, and GetInt treats a missing counter as zero.
type Store interface {
	// GetJSON unmarshals the value at key into dest. The boolean is false
	// when the key does not exist.
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	// SetJSON marshals value and writes it at key. A zero ttl means no expiry.
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error

	// GetString reads a plain string value; false when absent.
	GetString(ctx context.Context, key string) (string, bool, error)
	// SetString writes a plain string value. A zero ttl means no expiry.
	SetString(ctx context.Context, key, value string, ttl time.Duration) error

	// GetInt reads an integer counter; an absent key reads as 0.
	GetInt(ctx context.Context, key string) (int64, error)
	// Increment atomically adds one to the counter at key and returns the
	// post-increment value.
	Increment(ctx context.Context, key string) (int64, error)
	// Expire (re-)sets the TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes keys; deleting an absent key is not an error.
	Delete(ctx context.Context, keys ...string) error

	// Range returns list elements between start and stop inclusive
	// (negative indexes count from the tail, -1 being the last element).
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)
	// PushBack appends values to the tail of the list at key.
	PushBack(ctx context.Context, key string, values ...string) error

	// Atomic runs fn against a transaction recorder and applies every
	// queued write in one all-or-nothing commit. If fn returns an error
	// nothing is written.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx records writes inside an Atomic commit. Methods queue commands; they
// take effect only when the whole group commits.
type Tx interface {
	// SetJSON queues a marshal-and-set of value at key (no expiry).
	// A marshal failure is reported immediately and aborts the commit.
	SetJSON(key string, value any) error
	// Increment queues a counter increment.
	Increment(key string)
	// Expire queues a TTL (re-)set.
	Expire(key string, ttl time.Duration)
	// Delete queues a key removal.
	Delete(key string)
	// PushFront queues a prepend of values onto the list at key.
	PushFront(key string, values ...string)
	// PushBack queues an append of values onto the list at key.
	PushBack(key string, values ...string)
	// Trim queues a trim of the list at key to [start, stop].
	Trim(key string, start, stop int64)
}
