// Package services – SupportService
//
// This file implements SupportService, the pre-login support bot. It is
// rate limited per client IP rather than per session because callers are
// anonymous, and it files a ticket copy for operators whenever a message
// looks like a contact or problem report.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/rigradar/go-radar-backend/internal/completion"
	"github.com/rigradar/go-radar-backend/internal/store"
)

const (
	// supportMaxPerWindow caps support messages per IP per window.
	supportMaxPerWindow = 5
	// supportWindow is the rolling allowance window.
	supportWindow = 10 * time.Minute
	// maxSupportTickets caps the operator ticket list.
	maxSupportTickets = 100
)

// ticketMarkers flag messages worth filing for a human follow-up.
var ticketMarkers = []string{"kontakt", "problem"}

// SupportTicket is the operator-facing copy of a flagged message.
type SupportTicket struct {
	Message   string `json:"message"`
	IP        string `json:"ip"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// SupportService answers anonymous support questions.
type SupportService struct {
	Store       store.Store
	Completions Completer

	// Now is a clock seam for tests; nil means time.Now.
	Now func() time.Time
}

// Ask answers one support message from the given client IP. It returns
// ErrSupportRateLimited once the IP exceeds its window allowance and
// ErrEmptyMessage for messages that sanitize to nothing.
func (s *SupportService) Ask(ctx context.Context, ip, message string) (string, error) {
	tr := otel.Tracer("services/SupportService")
	ctx, span := tr.Start(ctx, "Ask")
	defer span.End()

	message = sanitizeMessage(message, defaultMaxMessageRunes)
	if message == "" {
		return "", ErrEmptyMessage
	}

	key := store.SupportLimitKey(ip)
	n, err := s.Store.Increment(ctx, key)
	if err != nil {
		return "", fmt.Errorf("support: rate counter: %w", err)
	}
	if n == 1 {
		if err := s.Store.Expire(ctx, key, supportWindow); err != nil {
			return "", fmt.Errorf("support: rate window: %w", err)
		}
	}
	if n > supportMaxPerWindow {
		return "", ErrSupportRateLimited
	}

	s.fileTicket(ctx, ip, message)

	answer, err := s.Completions.Complete(ctx, []completion.Message{
		{Role: completion.RoleSystem, Content: supportPersona},
		{Role: completion.RoleUser, Content: message},
	})
	if err != nil {
		return "", fmt.Errorf("support: completion: %w", err)
	}
	return answer, nil
}

// fileTicket copies flagged messages onto the operator list. Filing is
// best effort; a failed write never blocks the answer.
func (s *SupportService) fileTicket(ctx context.Context, ip, message string) {
	lower := strings.ToLower(message)
	flagged := false
	for _, marker := range ticketMarkers {
		if strings.Contains(lower, marker) {
			flagged = true
			break
		}
	}
	if !flagged {
		return
	}

	ticket := SupportTicket{Message: message, IP: ip, Timestamp: s.now().UnixMilli()}
	payload, err := json.Marshal(ticket)
	if err != nil {
		return
	}
	err = s.Store.Atomic(ctx, func(tx store.Tx) error {
		tx.PushFront(store.SupportTicketsKey, string(payload))
		tx.Trim(store.SupportTicketsKey, 0, maxSupportTickets-1)
		return nil
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("support ticket filing failed")
	}
}

const supportPersona = "You are the RigRadar support assistant. Help visitors with " +
	"questions about the service: marketplace scans, daily limits, Premium " +
	"benefits and account issues. Keep answers short and friendly. If you " +
	"cannot help, ask the visitor to leave contact details."

func (s *SupportService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
