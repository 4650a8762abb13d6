// Package services – ScanService
//
// This file implements ScanService, which validates marketplace scan
// requests and dispatches them onto the worker queue. Free-tier scans
// are metered: the quota increment and the queue append land in the same
// atomic commit, so a scan either counts and is queued or neither.
// Premium scans skip the meter and are flagged priority.
package services

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/store"
)

const (
	// maxQueryRunes caps a sanitized scan query.
	maxQueryRunes = 60
	// minQueryRunes is the shortest query the worker will accept.
	minQueryRunes = 2

	sourceUserRequest = "user_request"
)

// queryAlphabet keeps letters, digits, whitespace and the few symbols
// that appear in product names; everything else is dropped before the
// query reaches the worker.
var queryAlphabet = regexp.MustCompile(`[^a-zA-Z0-9\s\-\.\+]`)

// Marketplace identifiers the worker knows how to scan. Some are
// reserved for premium subscribers.
var (
	knownStores   = map[string]bool{"ebay": true, "amazon": true, "alza": true, "bazos": true}
	premiumStores = map[string]bool{"amazon": true, "alza": true}
	defaultStores = []string{"ebay"}

	knownConditions = map[string]bool{"any": true, "new": true, "used": true}
)

// TaskQueue is the dispatch contract required by ScanService. Enqueue
// appends directly; Append queues the push into an atomic commit.
type TaskQueue interface {
	Enqueue(ctx context.Context, task domain.ScanTask) error
	Append(tx store.Tx, task domain.ScanTask) error
}

// ScanRequest carries the client-supplied scan parameters before
// validation. The owner is never part of it; it comes from the session.
type ScanRequest struct {
	Query     string
	Stores    []string
	Condition string
	MinPrice  *float64
	MaxPrice  *float64
}

// ScanService validates, meters, and dispatches scan tasks.
type ScanService struct {
	Store store.Store
	Queue TaskQueue
	Quota *Quota

	// Now is a clock seam for tests; nil means time.Now.
	Now func() time.Time
}

// Dispatch validates the request for the identity and appends the
// resulting task to the worker queue. It returns the task as queued.
//
// Rejections are typed: ErrInvalidQuery for an unusable query,
// *PremiumStoreError when a free-tier caller asks for premium
// marketplaces, and *QuotaError when the day's allowance is spent.
func (s *ScanService) Dispatch(ctx context.Context, email string, req ScanRequest) (*domain.ScanTask, error) {
	tr := otel.Tracer("services/ScanService")
	ctx, span := tr.Start(ctx, "Dispatch",
		trace.WithAttributes(attribute.Int("scan.stores", len(req.Stores))),
	)
	defer span.End()

	query, err := sanitizeQuery(req.Query)
	if err != nil {
		return nil, err
	}

	record := domain.NewUserRecord()
	if _, err := s.Store.GetJSON(ctx, store.UserDataKey(email), record); err != nil {
		return nil, fmt.Errorf("scan: load user record: %w", err)
	}
	span.SetAttributes(attribute.Bool("user.premium", record.IsPremium))

	stores, err := resolveStores(req.Stores, record.IsPremium)
	if err != nil {
		return nil, err
	}

	task := domain.ScanTask{
		Query:      query,
		Stores:     stores,
		OwnerEmail: email,
		Condition:  resolveCondition(req.Condition),
		MinPrice:   absPrice(req.MinPrice),
		MaxPrice:   absPrice(req.MaxPrice),
		Timestamp:  s.now().UnixMilli(),
		Priority:   record.IsPremium,
		Source:     sourceUserRequest,
	}

	if record.IsPremium {
		if err := s.Queue.Enqueue(ctx, task); err != nil {
			return nil, err
		}
		return &task, nil
	}

	adm, err := s.Quota.Check(ctx, email, false)
	if err != nil {
		return nil, err
	}
	err = s.Store.Atomic(ctx, func(tx store.Tx) error {
		if err := s.Queue.Append(tx, task); err != nil {
			return err
		}
		adm.Apply(tx)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: dispatch: %w", err)
	}
	return &task, nil
}

// sanitizeQuery strips out-of-alphabet characters, collapses whitespace,
// and enforces the length window.
func sanitizeQuery(q string) (string, error) {
	q = queryAlphabet.ReplaceAllString(q, "")
	q = strings.Join(strings.Fields(q), " ")
	if utf8.RuneCountInString(q) > maxQueryRunes {
		q = strings.TrimSpace(string([]rune(q)[:maxQueryRunes]))
	}
	if utf8.RuneCountInString(q) < minQueryRunes {
		return "", ErrInvalidQuery
	}
	return q, nil
}

// resolveStores lowercases and filters the requested stores against the
// known set, defaults to ebay when nothing usable remains, and gates
// premium-only marketplaces for free-tier callers.
func resolveStores(requested []string, premium bool) ([]string, error) {
	stores := make([]string, 0, len(requested))
	for _, s := range requested {
		s = strings.ToLower(strings.TrimSpace(s))
		if knownStores[s] {
			stores = append(stores, s)
		}
	}
	if len(stores) == 0 {
		stores = append(stores, defaultStores...)
	}
	if !premium {
		var gated []string
		for _, s := range stores {
			if premiumStores[s] {
				gated = append(gated, s)
			}
		}
		if len(gated) > 0 {
			return nil, &PremiumStoreError{Stores: gated}
		}
	}
	return stores, nil
}

func resolveCondition(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if knownConditions[c] {
		return c
	}
	return "any"
}

// absPrice normalizes a price bound to a non-negative value; nil stays nil.
func absPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := math.Abs(*p)
	return &v
}

func (s *ScanService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
