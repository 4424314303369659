package backend

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/folio/internal/auth"
)

// User is the identity API's view of a signed-in user.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// AuthProvider implements auth.Provider with the identity API's PKCE
// magic-link flow.
type AuthProvider struct {
	c   *Client
	now func() time.Time
}

// Auth returns the identity API provider.
func (c *Client) Auth() *AuthProvider {
	return &AuthProvider{c: c, now: time.Now}
}

// newVerifier returns a PKCE code verifier and its S256 challenge.
func newVerifier() (verifier, challenge string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(verifier))
	return verifier, base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// SendMagicLink asks the identity API to email a sign-in link.
func (p *AuthProvider) SendMagicLink(ctx context.Context, email, redirectTo string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New("email is required")
	}
	verifier, challenge, err := newVerifier()
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"email":                 email,
		"create_user":           true,
		"code_challenge":        challenge,
		"code_challenge_method": "s256",
	}
	err = p.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/otp",
		query:  url.Values{"redirect_to": {redirectTo}},
		body:   body,
		token:  p.c.anonKey,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("sending magic link: %w", err)
	}
	p.c.logger.Info("magic link requested", zap.String("email", email))
	return verifier, nil
}

// ExchangeCode trades the link's code and the stored verifier for a
// session.
func (p *AuthProvider) ExchangeCode(ctx context.Context, code, verifier string) (*auth.Identity, error) {
	if code == "" || verifier == "" {
		return nil, auth.ErrInvalidCode
	}
	var tok tokenResponse
	err := p.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"pkce"}},
		body:   map[string]string{"auth_code": code, "code_verifier": verifier},
		token:  p.c.anonKey,
	}, &tok)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return nil, fmt.Errorf("%w: %v", auth.ErrInvalidCode, err)
		}
		return nil, fmt.Errorf("exchanging code: %w", err)
	}
	if tok.AccessToken == "" || tok.User.ID == "" {
		return nil, fmt.Errorf("exchanging code: incomplete token response")
	}

	id := &auth.Identity{
		UserID:       tok.User.ID,
		Email:        strings.ToLower(tok.User.Email),
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	switch {
	case tok.ExpiresAt > 0:
		id.ExpiresAt = time.Unix(tok.ExpiresAt, 0)
	case tok.ExpiresIn > 0:
		id.ExpiresAt = p.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return id, nil
}

// User returns the user an access token belongs to. A missing or revoked
// token yields nil without an error.
func (p *AuthProvider) User(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, nil
	}
	var u User
	err := p.c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", token: accessToken}, &u)
	if errors.Is(err, ErrUnauthorized) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// SignOut revokes the access token's session.
func (p *AuthProvider) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	err := p.c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", token: accessToken}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	return nil
}

var _ auth.Provider = (*AuthProvider)(nil)
