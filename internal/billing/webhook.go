// Package billing consumes payment-provider webhook events and keeps the
// subscription tier flag on the identity record in sync.
//
// The provider signs each delivery with an HMAC-SHA256 of the raw body
// under a pre-shared webhook secret; nothing is trusted before the
// signature checks out.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/store"
)

// Event types that change the subscription state. Anything else is
// acknowledged and ignored.
const (
	EventCheckoutCompleted   = "checkout.completed"
	EventInvoicePaid         = "invoice.paid"
	EventSubscriptionDeleted = "subscription.deleted"
)

// Parse/verify errors.
var (
	// ErrBadSignature is returned when the signature header is missing or
	// does not match the body.
	ErrBadSignature = errors.New("billing: invalid webhook signature")

	// ErrNoEmail is returned when the event carries no customer email to
	// apply the change to.
	ErrNoEmail = errors.New("billing: event has no customer email")
)

// Event is a verified billing notification.
type Event struct {
	Type        string `json:"type"`
	Email       string `json:"email"`
	CustomerRef string `json:"customerId"`
}

// ParseEvent verifies the hex HMAC-SHA256 signature over the raw body and
// decodes the event. The caller must pass the body exactly as received.
func ParseEvent(body []byte, signature, secret string) (Event, error) {
	signature = strings.TrimSpace(signature)
	if signature == "" || !verifySignature(body, signature, secret) {
		return Event{}, ErrBadSignature
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("billing: decode event: %w", err)
	}
	return ev, nil
}

func verifySignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(signature)))
}

// Sign computes the signature for a body. Exposed for tests and for the
// worker-side delivery tooling.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Sync applies verified events to the identity record through the shared
// store's write contract.
type Sync struct {
	Store store.Store
}

// Apply flips the premium flag according to the event type. Events the
// system does not care about are a successful no-op.
func (s *Sync) Apply(ctx context.Context, ev Event) error {
	var premium bool
	switch ev.Type {
	case EventCheckoutCompleted, EventInvoicePaid:
		premium = true
	case EventSubscriptionDeleted:
		premium = false
	default:
		return nil
	}
	if ev.Email == "" {
		return ErrNoEmail
	}

	key := store.UserDataKey(ev.Email)
	record := domain.NewUserRecord()
	if _, err := s.Store.GetJSON(ctx, key, record); err != nil {
		return fmt.Errorf("billing: load user record: %w", err)
	}
	if record.Chats == nil {
		record.Chats = map[string]domain.ChatMeta{}
	}

	record.IsPremium = premium
	if ev.CustomerRef != "" {
		record.CustomerRef = ev.CustomerRef
	}
	if err := s.Store.SetJSON(ctx, key, record, 0); err != nil {
		return fmt.Errorf("billing: persist user record: %w", err)
	}
	return nil
}
