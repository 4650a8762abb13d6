// Package auth owns identity: opaque session credentials backed by the
// shared store, scrypt password credentials, and the thin clients for the
// external OAuth identity providers.
//
// A session token is the only credential the rest of the system sees.
// Once issued it maps to exactly one email for its whole lifetime; it is
// never extended in place; renewal means issuing a new token.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rigradar/go-radar-backend/internal/store"
)

// DefaultSessionTTL is the fixed session lifetime.
const DefaultSessionTTL = 7 * 24 * time.Hour

// sessionTokenBytes gives 256 bits of entropy per token.
const sessionTokenBytes = 32

// Sessions issues and resolves opaque session credentials.
type Sessions struct {
	Store store.Store
	TTL   time.Duration
}

// NewSessions constructs a resolver with the default 7-day lifetime.
func NewSessions(s store.Store) *Sessions {
	return &Sessions{Store: s, TTL: DefaultSessionTTL}
}

// Create issues a fresh high-entropy token mapped to email and returns it.
func (s *Sessions) Create(ctx context.Context, email string) (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate session token: %w", err)
	}
	token := hex.EncodeToString(buf)

	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if err := s.Store.SetString(ctx, store.SessionKey(token), email, ttl); err != nil {
		return "", fmt.Errorf("auth: persist session: %w", err)
	}
	return token, nil
}

// Resolve maps a token back to its email. The boolean is false for a
// missing, expired, or unreadable session; callers treat all three as
// "unauthenticated" and this method never fails louder than that.
func (s *Sessions) Resolve(ctx context.Context, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	email, ok, err := s.Store.GetString(ctx, store.SessionKey(token))
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("session lookup failed")
		return "", false
	}
	return email, ok && email != ""
}

// Destroy removes the session mapping. Destroying an absent token is a
// no-op, so logout is safe to retry.
func (s *Sessions) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.Store.Delete(ctx, store.SessionKey(token))
}
