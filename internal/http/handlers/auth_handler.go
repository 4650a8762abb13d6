// Authentication HTTP handlers.
//
// This file exposes the sign-up / sign-in surface:
//   - POST /auth/register          (email + password)
//   - POST /auth/login             (email + password)
//   - POST /auth/logout            (destroy session)
//   - POST /auth/google            (Google ID token sign-in)
//   - GET  /auth/github/callback   (GitHub OAuth code exchange)
//   - GET  /me                     (current identity)
//
// Every successful sign-in path converges on the same steps: make sure the
// identity record exists, issue an opaque session token, and set it as an
// HttpOnly cookie. Handlers are transport-thin; credential rules live in the
// auth package.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rigradar/go-radar-backend/internal/auth"
	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/http/middleware"
	"github.com/rigradar/go-radar-backend/internal/store"
)

//
// Service contracts (context-aware)
//

// PasswordStore manages email+password credentials.
type PasswordStore interface {
	// Register creates a credential; rejects duplicates and weak passwords.
	Register(ctx context.Context, email, password string) error
	// Authenticate verifies a credential pair.
	Authenticate(ctx context.Context, email, password string) error
}

// SessionIssuer creates and destroys opaque session tokens.
type SessionIssuer interface {
	Create(ctx context.Context, email string) (string, error)
	Destroy(ctx context.Context, token string) error
}

// GoogleTokenVerifier validates a Google ID token and returns the email.
type GoogleTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (string, error)
}

// GitHubCodeExchanger swaps an OAuth code for the account identity.
type GitHubCodeExchanger interface {
	Exchange(ctx context.Context, code string) (auth.GitHubIdentity, error)
}

//
// Handler wiring
//

// AuthHandlers groups the authentication endpoints.
type AuthHandlers struct {
	passwords PasswordStore
	sessions  SessionIssuer
	google    GoogleTokenVerifier
	github    GitHubCodeExchanger
	store     store.Store

	cookieSecure bool
	sessionTTL   time.Duration
}

// NewAuth constructs the authentication handlers.
func NewAuth(passwords PasswordStore, sessions SessionIssuer, google GoogleTokenVerifier, github GitHubCodeExchanger, st store.Store, cookieSecure bool, sessionTTL time.Duration) *AuthHandlers {
	if sessionTTL <= 0 {
		sessionTTL = auth.DefaultSessionTTL
	}
	return &AuthHandlers{
		passwords:    passwords,
		sessions:     sessions,
		google:       google,
		github:       github,
		store:        st,
		cookieSecure: cookieSecure,
		sessionTTL:   sessionTTL,
	}
}

//
// DTOs
//

// CredentialsRequest is the JSON payload for register and login.
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email" example:"user@example.com"`
	Password string `json:"password" binding:"required" example:"hunter22"`
}

// GoogleSignInRequest carries the Google ID token from the client SDK.
type GoogleSignInRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// IdentityResponse is the signed-in identity view.
type IdentityResponse struct {
	Email     string `json:"email" example:"user@example.com"`
	IsPremium bool   `json:"isPremium"`
}

//
// Handlers
//

// Register godoc
// @ID          register
// @Summary     Register with email and password
// @Description Creates a credential and signs the new user in (session cookie).
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CredentialsRequest  true  "Credentials"
// @Success     201  {object}  handlers.IdentityResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already registered"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/register [post]
func (h *AuthHandlers) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "valid email and password required")
		return
	}
	email := normalizeEmail(req.Email)
	ctx := c.Request.Context()

	err := h.passwords.Register(ctx, email, req.Password)
	switch {
	case errors.Is(err, auth.ErrWeakPassword):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrUserExists):
		fail(c, http.StatusConflict, ErrCodeConflict, "email already registered")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "registration failed")
		return
	}

	record, err := h.ensureRecord(ctx, email)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "registration failed")
		return
	}
	if !h.issueSession(c, email) {
		return
	}
	ok(c, http.StatusCreated, IdentityResponse{Email: email, IsPremium: record.IsPremium})
}

// Login godoc
// @ID          login
// @Summary     Sign in with email and password
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CredentialsRequest  true  "Credentials"
// @Success     200  {object}  handlers.IdentityResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/login [post]
func (h *AuthHandlers) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "valid email and password required")
		return
	}
	email := normalizeEmail(req.Email)
	ctx := c.Request.Context()

	if err := h.passwords.Authenticate(ctx, email, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "login failed")
		return
	}

	record, err := h.ensureRecord(ctx, email)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "login failed")
		return
	}
	if !h.issueSession(c, email) {
		return
	}
	ok(c, http.StatusOK, IdentityResponse{Email: email, IsPremium: record.IsPremium})
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Description Destroys the session and clears the cookie. Idempotent.
// @Tags        Auth
// @Success     204  {string}  string  "No Content"
// @Router      /auth/logout [post]
func (h *AuthHandlers) Logout(c *gin.Context) {
	if token, err := c.Cookie(middleware.SessionCookie); err == nil && token != "" {
		if err := h.sessions.Destroy(c.Request.Context(), token); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("session destroy failed")
		}
	}
	h.clearCookie(c)
	noContent(c)
}

// GoogleSignIn godoc
// @ID          googleSignIn
// @Summary     Sign in with a Google ID token
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.GoogleSignInRequest  true  "ID token"
// @Success     200  {object}  handlers.IdentityResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Token rejected"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/google [post]
func (h *AuthHandlers) GoogleSignIn(c *gin.Context) {
	var req GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "credential required")
		return
	}
	ctx := c.Request.Context()

	email, err := h.google.VerifyIDToken(ctx, req.Credential)
	if err != nil {
		if errors.Is(err, auth.ErrProviderDenied) || errors.Is(err, auth.ErrNoVerifiedEmail) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "google sign-in rejected")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "google sign-in failed")
		return
	}
	email = normalizeEmail(email)

	record, err := h.ensureRecord(ctx, email)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "google sign-in failed")
		return
	}
	if !h.issueSession(c, email) {
		return
	}
	ok(c, http.StatusOK, IdentityResponse{Email: email, IsPremium: record.IsPremium})
}

// GitHubCallback godoc
// @ID          githubCallback
// @Summary     GitHub OAuth callback
// @Description Exchanges the authorization code, signs the user in, and
// @Description redirects to the application root.
// @Tags        Auth
// @Param       code  query  string  true  "Authorization code"
// @Success     302  {string}  string  "Redirect"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing code"
// @Failure     401  {object}  handlers.ErrorResponse  "Code rejected"
// @Router      /auth/github/callback [get]
func (h *AuthHandlers) GitHubCallback(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "authorization code required")
		return
	}
	ctx := c.Request.Context()

	identity, err := h.github.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, auth.ErrProviderDenied) || errors.Is(err, auth.ErrNoVerifiedEmail) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "github sign-in rejected")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "github sign-in failed")
		return
	}
	email := normalizeEmail(identity.Email)

	if _, err := h.ensureRecord(ctx, email); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "github sign-in failed")
		return
	}
	if !h.issueSession(c, email) {
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// Me godoc
// @ID          me
// @Summary     Current identity
// @Description Returns the signed-in user's email and subscription tier.
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  handlers.IdentityResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Router      /me [get]
func (h *AuthHandlers) Me(c *gin.Context) {
	email, okID := middleware.Identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	record := domain.NewUserRecord()
	if _, err := h.store.GetJSON(c.Request.Context(), store.UserDataKey(email), record); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "profile lookup failed")
		return
	}
	ok(c, http.StatusOK, IdentityResponse{Email: email, IsPremium: record.IsPremium})
}

//
// Helpers
//

// ensureRecord creates the identity record on first sign-in and returns it.
func (h *AuthHandlers) ensureRecord(ctx context.Context, email string) (*domain.UserRecord, error) {
	record := domain.NewUserRecord()
	found, err := h.store.GetJSON(ctx, store.UserDataKey(email), record)
	if err != nil {
		return nil, err
	}
	if !found {
		if err := h.store.SetJSON(ctx, store.UserDataKey(email), record, 0); err != nil {
			return nil, err
		}
	}
	if record.Chats == nil {
		record.Chats = map[string]domain.ChatMeta{}
	}
	return record, nil
}

// issueSession creates a session token and sets it as the auth cookie.
// On failure it writes the error response and returns false.
func (h *AuthHandlers) issueSession(c *gin.Context, email string) bool {
	token, err := h.sessions.Create(c.Request.Context(), email)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "session creation failed")
		return false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(h.sessionTTL.Seconds()), "/", "", h.cookieSecure, true)
	return true
}

func (h *AuthHandlers) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.cookieSecure, true)
}

// normalizeEmail lowercases and trims the address so every key derived
// from it is stable.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
