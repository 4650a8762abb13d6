package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Errors returned by the identity provider clients.
var (
	// ErrProviderDenied is returned when the provider rejects the
	// presented proof (bad token, bad code, wrong audience).
	ErrProviderDenied = errors.New("identity provider rejected credentials")

	// ErrNoVerifiedEmail is returned when the provider account carries no
	// usable verified email address.
	ErrNoVerifiedEmail = errors.New("no verified email on provider account")
)

const providerTimeout = 10 * time.Second

// GoogleVerifier validates Google ID tokens against the tokeninfo
// endpoint and extracts the verified email.
type GoogleVerifier struct {
	HTTP     *http.Client
	Audience string

	// Endpoint overrides the tokeninfo URL in tests.
	Endpoint string
}

// VerifyIDToken checks the token's validity and audience and returns the
// account email.
func (g *GoogleVerifier) VerifyIDToken(ctx context.Context, idToken string) (string, error) {
	endpoint := g.Endpoint
	if endpoint == "" {
		endpoint = "https://oauth2.googleapis.com/tokeninfo"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		endpoint+"?id_token="+url.QueryEscape(idToken), nil)
	if err != nil {
		return "", fmt.Errorf("auth: build tokeninfo request: %w", err)
	}

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("auth: tokeninfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrProviderDenied
	}

	var claims struct {
		Aud           string `json:"aud"`
		Email         string `json:"email"`
		EmailVerified string `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return "", fmt.Errorf("auth: decode tokeninfo: %w", err)
	}
	if g.Audience != "" && claims.Aud != g.Audience {
		return "", ErrProviderDenied
	}
	if claims.Email == "" || claims.EmailVerified != "true" {
		return "", ErrNoVerifiedEmail
	}
	return claims.Email, nil
}

func (g *GoogleVerifier) httpClient() *http.Client {
	if g.HTTP != nil {
		return g.HTTP
	}
	return &http.Client{Timeout: providerTimeout}
}

// GitHubExchanger swaps an OAuth authorization code for the account's
// primary verified email and avatar.
type GitHubExchanger struct {
	HTTP         *http.Client
	ClientID     string
	ClientSecret string

	// Endpoint overrides in tests.
	TokenURL string
	APIBase  string
}

// GitHubIdentity is what the login flow needs from a GitHub account.
type GitHubIdentity struct {
	Email     string
	AvatarURL string
}

// Exchange performs the code→token→email flow.
func (g *GitHubExchanger) Exchange(ctx context.Context, code string) (GitHubIdentity, error) {
	token, err := g.exchangeCode(ctx, code)
	if err != nil {
		return GitHubIdentity{}, err
	}

	var user struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := g.apiGet(ctx, token, "/user", &user); err != nil {
		return GitHubIdentity{}, err
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := g.apiGet(ctx, token, "/user/emails", &emails); err != nil {
		return GitHubIdentity{}, err
	}

	for _, e := range emails {
		if e.Primary && e.Verified && e.Email != "" {
			return GitHubIdentity{Email: e.Email, AvatarURL: user.AvatarURL}, nil
		}
	}
	// Fall back to the first address, matching the provider's ordering.
	if len(emails) > 0 && emails[0].Email != "" {
		return GitHubIdentity{Email: emails[0].Email, AvatarURL: user.AvatarURL}, nil
	}
	return GitHubIdentity{}, ErrNoVerifiedEmail
}

func (g *GitHubExchanger) exchangeCode(ctx context.Context, code string) (string, error) {
	tokenURL := g.TokenURL
	if tokenURL == "" {
		tokenURL = "https://github.com/login/oauth/access_token"
	}
	body, err := json.Marshal(map[string]string{
		"client_id":     g.ClientID,
		"client_secret": g.ClientSecret,
		"code":          code,
	})
	if err != nil {
		return "", fmt.Errorf("auth: encode exchange request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("auth: build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("auth: exchange request: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("auth: decode exchange response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", ErrProviderDenied
	}
	return payload.AccessToken, nil
}

func (g *GitHubExchanger) apiGet(ctx context.Context, token, path string, dest any) error {
	base := g.APIBase
	if base == "" {
		base = "https://api.github.com"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return fmt.Errorf("auth: build api request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "RigRadar-App")

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("auth: api request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return ErrProviderDenied
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("auth: decode api response %s: %w", path, err)
	}
	return nil
}

func (g *GitHubExchanger) httpClient() *http.Client {
	if g.HTTP != nil {
		return g.HTTP
	}
	return &http.Client{Timeout: providerTimeout}
}
