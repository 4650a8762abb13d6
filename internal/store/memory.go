package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Store used by unit tests and local development
// without a Redis instance. It honors the same contract as Client,
// including all-or-nothing Atomic commits and TTL expiry.
//
// Memory is safe for concurrent use. It is not suitable for multi-process
// deployments: state is process-local by definition.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	strings map[string]string
	lists   map[string][]string
	expiry  map[string]time.Time

	failNext error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:     time.Now,
		strings: map[string]string{},
		lists:   map[string][]string{},
		expiry:  map[string]time.Time{},
	}
}

// FailNext makes the next store operation return err. Tests use it to
// exercise degraded read paths and aborted commits.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

func (m *Memory) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

// expired removes key if its TTL has elapsed and reports whether it did.
func (m *Memory) expired(key string) bool {
	at, ok := m.expiry[key]
	if !ok || m.now().Before(at) {
		return false
	}
	delete(m.strings, key)
	delete(m.lists, key)
	delete(m.expiry, key)
	return true
}

func (m *Memory) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return false, err
	}
	if m.expired(key) {
		return false, nil
	}
	raw, ok := m.strings[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return m.SetString(ctx, key, string(raw), ttl)
}

func (m *Memory) GetString(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return "", false, err
	}
	if m.expired(key) {
		return "", false, nil
	}
	val, ok := m.strings[key]
	return val, ok, nil
}

func (m *Memory) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.strings[key] = value
	if ttl > 0 {
		m.expiry[key] = m.now().Add(ttl)
	} else {
		delete(m.expiry, key)
	}
	return nil
}

func (m *Memory) GetInt(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return 0, err
	}
	if m.expired(key) {
		return 0, nil
	}
	raw, ok := m.strings[key]
	if !ok {
		return 0, nil
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("store: %s is not an integer: %w", key, err)
	}
	return val, nil
}

func (m *Memory) Increment(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return 0, err
	}
	return m.incrLocked(key), nil
}

func (m *Memory) incrLocked(key string) int64 {
	m.expired(key)
	val, _ := strconv.ParseInt(m.strings[key], 10, 64)
	val++
	m.strings[key] = strconv.FormatInt(val, 10)
	return val
}

func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.expireLocked(key, ttl)
	return nil
}

func (m *Memory) expireLocked(key string, ttl time.Duration) {
	if _, ok := m.strings[key]; !ok {
		if _, ok := m.lists[key]; !ok {
			return
		}
	}
	m.expiry[key] = m.now().Add(ttl)
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	for _, key := range keys {
		m.deleteLocked(key)
	}
	return nil
}

func (m *Memory) deleteLocked(key string) {
	delete(m.strings, key)
	delete(m.lists, key)
	delete(m.expiry, key)
}

func (m *Memory) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if m.expired(key) {
		return nil, nil
	}
	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (m *Memory) PushBack(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

// Atomic buffers fn's writes and applies them under one lock acquisition,
// so concurrent readers observe either none or all of the group.
func (m *Memory) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	for _, op := range tx.ops {
		op(m)
	}
	return nil
}

// memTx buffers operations as closures applied after fn succeeds.
type memTx struct {
	ops []func(*Memory)
}

func (t *memTx) SetJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	t.ops = append(t.ops, func(m *Memory) {
		m.strings[key] = string(raw)
		delete(m.expiry, key)
	})
	return nil
}

func (t *memTx) Increment(key string) {
	t.ops = append(t.ops, func(m *Memory) { m.incrLocked(key) })
}

func (t *memTx) Expire(key string, ttl time.Duration) {
	t.ops = append(t.ops, func(m *Memory) { m.expireLocked(key, ttl) })
}

func (t *memTx) Delete(key string) {
	t.ops = append(t.ops, func(m *Memory) { m.deleteLocked(key) })
}

func (t *memTx) PushFront(key string, values ...string) {
	t.ops = append(t.ops, func(m *Memory) {
		list := m.lists[key]
		next := make([]string, 0, len(values)+len(list))
		// LPUSH semantics: values land head-first, so the last value
		// pushed ends up at the head.
		for i := len(values) - 1; i >= 0; i-- {
			next = append(next, values[i])
		}
		m.lists[key] = append(next, list...)
	})
}

func (t *memTx) PushBack(key string, values ...string) {
	t.ops = append(t.ops, func(m *Memory) {
		m.lists[key] = append(m.lists[key], values...)
	})
}

func (t *memTx) Trim(key string, start, stop int64) {
	t.ops = append(t.ops, func(m *Memory) {
		list := m.lists[key]
		n := int64(len(list))
		if start < 0 {
			start += n
		}
		if stop < 0 {
			stop += n
		}
		if start < 0 {
			start = 0
		}
		if stop >= n {
			stop = n - 1
		}
		if n == 0 || start > stop || start >= n {
			delete(m.lists, key)
			return
		}
		trimmed := make([]string, stop-start+1)
		copy(trimmed, list[start:stop+1])
		m.lists[key] = trimmed
	})
}
