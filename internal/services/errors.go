// Package services implements the business logic: quota-gated chat turns,
// scan dispatch, deal bookkeeping, and the support bot. This file
// centralizes service-level error values so handlers can translate them
// into HTTP results consistently.
//
// Quota and premium-store rejections are expected, frequent outcomes, not
// faults; they carry enough structure for the client to render specific
// messaging ("come back at midnight", "upgrade to Premium").
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyMessage is returned when a chat message is empty after
	// sanitization.
	ErrEmptyMessage = errors.New("empty or invalid message")

	// ErrInvalidQuery is returned when a scan query is empty or too short
	// once out-of-alphabet characters are stripped.
	ErrInvalidQuery = errors.New("invalid or too short search query")

	// ErrDealMissingID is returned when a saved-deal operation lacks the
	// deal identifier.
	ErrDealMissingID = errors.New("deal id required")

	// ErrMissingDealFields is returned when a worker deal ingestion lacks
	// the mandatory price or opinion fields.
	ErrMissingDealFields = errors.New("deal record missing price or opinion")

	// ErrSupportRateLimited is returned when a client IP exceeds the
	// support-bot message allowance.
	ErrSupportRateLimited = errors.New("support message rate exceeded")
)

// QuotaError is the structured rejection for an exhausted daily quota.
// It is a normal outcome: the handler renders it as limitReached, not as
// a server fault.
type QuotaError struct {
	// Limit is the daily ceiling that was hit.
	Limit int
	// ResetAt is the next UTC midnight, when a fresh counter starts.
	ResetAt time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("daily limit (%d messages) reached, resets at %s",
		e.Limit, e.ResetAt.UTC().Format("15:04 MST"))
}

// PremiumStoreError rejects a free-tier scan that targets premium-only
// marketplaces.
type PremiumStoreError struct {
	// Stores are the requested premium-only store names.
	Stores []string
}

func (e *PremiumStoreError) Error() string {
	return fmt.Sprintf("%s available for Premium users only", strings.Join(e.Stores, " and "))
}
