package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rigradar/go-radar-backend/internal/store"
)

// DefaultFreeDailyLimit caps metered operations per free-tier identity
// per UTC day.
const DefaultFreeDailyLimit = 5

// usageTTL keeps a day's counter around past its midnight rollover so
// operators can inspect yesterday's usage, then lets it lapse.
const usageTTL = 48 * time.Hour

// Quota admits or rejects metered operations against the per-day counter
// usage_chat:<email>:<YYYY-MM-DD>. Premium identities bypass it entirely.
//
// Admission is two-phase: Check reads the counter and decides, then the
// caller applies the increment inside the same atomic commit as the state
// the operation produces. A rejected or failed operation therefore never
// consumes quota. Two in-flight requests that both pass Check before
// either commits can each land, so the ceiling is enforced within one
// count of exact; the counter itself never drifts.
type Quota struct {
	Store store.Store
	// Limit is the daily ceiling; zero means DefaultFreeDailyLimit.
	Limit int
	// Now is a clock seam for tests; nil means time.Now.
	Now func() time.Time
}

// Admission is a granted slot. Apply queues the counter increment and
// a TTL refresh into the caller's commit.
type Admission struct {
	key string
}

// Apply queues the usage increment into tx and re-arms the counter's
// expiry, so the TTL always measures from the latest commit. A nil
// admission (premium caller) is a no-op, so call sites need no tier
// branching.
func (a *Admission) Apply(tx store.Tx) {
	if a == nil {
		return
	}
	tx.Increment(a.key)
	tx.Expire(a.key, usageTTL)
}

// Check decides whether a metered operation may proceed. It returns a
// nil admission for premium callers, a non-nil admission when under the
// ceiling, and a *QuotaError when the day's allowance is spent.
func (q *Quota) Check(ctx context.Context, email string, premium bool) (*Admission, error) {
	if premium {
		return nil, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultFreeDailyLimit
	}
	now := time.Now
	if q.Now != nil {
		now = q.Now
	}

	today := now().UTC()
	key := store.UsageKey(email, today)
	used, err := q.Store.GetInt(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("quota: read counter: %w", err)
	}
	if used >= int64(limit) {
		return nil, &QuotaError{Limit: limit, ResetAt: nextUTCMidnight(today)}
	}
	return &Admission{key: key}, nil
}

func nextUTCMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
