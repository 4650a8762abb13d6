package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rigradar/go-radar-backend/internal/store"
)

func TestSessions_CreateResolveDestroy(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := NewSessions(mem)

	token, err := s.Create(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(token) != 64 { // 32 random bytes, hex-encoded
		t.Fatalf("token length = %d, want 64", len(token))
	}

	email, ok := s.Resolve(ctx, token)
	if !ok || email != "a@x.com" {
		t.Fatalf("Resolve = (%q, %v)", email, ok)
	}

	if err := s.Destroy(ctx, token); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, ok := s.Resolve(ctx, token); ok {
		t.Fatalf("token resolved after destroy")
	}
	// Destroy is idempotent.
	if err := s.Destroy(ctx, token); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}
}

func TestSessions_TokensAreUnique(t *testing.T) {
	ctx := context.Background()
	s := NewSessions(store.NewMemory())

	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		tok, err := s.Create(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token issued")
		}
		seen[tok] = true
	}
}

func TestSessions_ResolveUnauthenticatedCases(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := NewSessions(mem)

	if _, ok := s.Resolve(ctx, ""); ok {
		t.Fatalf("empty token resolved")
	}
	if _, ok := s.Resolve(ctx, "deadbeef"); ok {
		t.Fatalf("unknown token resolved")
	}

	// Store failure degrades to unauthenticated, never an error.
	token, err := s.Create(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mem.FailNext(errors.New("store down"))
	if _, ok := s.Resolve(ctx, token); ok {
		t.Fatalf("token resolved during store outage")
	}
}

func TestSessions_Expiry(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := &Sessions{Store: mem, TTL: time.Nanosecond}

	token, err := s.Create(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, ok := s.Resolve(ctx, token); ok {
		t.Fatalf("expired token resolved")
	}
}

func TestPasswords_RegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	p := &Passwords{Store: store.NewMemory()}

	if err := p.Register(ctx, "a@x.com", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("short password: %v", err)
	}
	if err := p.Register(ctx, "a@x.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Register(ctx, "a@x.com", "hunter22"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate register: %v", err)
	}

	if err := p.Authenticate(ctx, "a@x.com", "hunter22"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := p.Authenticate(ctx, "a@x.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if err := p.Authenticate(ctx, "b@x.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}
}

func TestVerifyPassword_MalformedStored(t *testing.T) {
	if _, err := verifyPassword("no-separator", "pw"); err == nil {
		t.Fatalf("expected error for malformed credential")
	}
	if _, err := verifyPassword("zz:zz", "pw"); err == nil {
		t.Fatalf("expected error for non-hex credential")
	}
}
