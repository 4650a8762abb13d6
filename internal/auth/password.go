package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"

	"github.com/rigradar/go-radar-backend/internal/store"
)

// Credential errors surfaced to the handler layer.
var (
	// ErrUserExists is returned when registering an email that already
	// has a credential.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials covers both unknown emails and wrong
	// passwords, deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrWeakPassword is returned when a password fails the minimum
	// length requirement.
	ErrWeakPassword = errors.New("password too short")
)

// MinPasswordLen is the minimum accepted password length.
const MinPasswordLen = 6

// scrypt parameters; stored hashes encode to "salt:hash" hex pairs.
const (
	scryptN       = 1 << 14
	scryptR       = 8
	scryptP       = 1
	scryptKeyLen  = 64
	scryptSaltLen = 16
)

// Passwords manages email+password credentials in the store.
type Passwords struct {
	Store store.Store
}

// Register creates a credential for email. It rejects short passwords and
// already-registered emails; the caller issues the session afterwards.
func (p *Passwords) Register(ctx context.Context, email, password string) error {
	if len(password) < MinPasswordLen {
		return ErrWeakPassword
	}
	key := store.UserAuthKey(email)
	if _, exists, err := p.Store.GetString(ctx, key); err != nil {
		return fmt.Errorf("auth: check existing credential: %w", err)
	} else if exists {
		return ErrUserExists
	}

	encoded, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := p.Store.SetString(ctx, key, encoded, 0); err != nil {
		return fmt.Errorf("auth: persist credential: %w", err)
	}
	return nil
}

// Authenticate verifies email+password against the stored credential.
func (p *Passwords) Authenticate(ctx context.Context, email, password string) error {
	stored, ok, err := p.Store.GetString(ctx, store.UserAuthKey(email))
	if err != nil {
		return fmt.Errorf("auth: load credential: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	match, err := verifyPassword(stored, password)
	if err != nil {
		return err
	}
	if !match {
		return ErrInvalidCredentials
	}
	return nil
}

// hashPassword derives an scrypt key under a fresh random salt and
// encodes both as "salt:hash" hex.
func hashPassword(password string) (string, error) {
	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("auth: derive key: %w", err)
	}
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key), nil
}

// verifyPassword re-derives the key under the stored salt and compares in
// constant time.
func verifyPassword(stored, password string) (bool, error) {
	saltHex, keyHex, found := strings.Cut(stored, ":")
	if !found {
		return false, errors.New("auth: malformed stored credential")
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, fmt.Errorf("auth: decode salt: %w", err)
	}
	want, err := hex.DecodeString(keyHex)
	if err != nil {
		return false, fmt.Errorf("auth: decode key: %w", err)
	}
	got, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, len(want))
	if err != nil {
		return false, fmt.Errorf("auth: derive key: %w", err)
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
