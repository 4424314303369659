// Package auth manages sign-in sessions: magic-link identity providers,
// the signed session cookie and the middleware that exposes the session
// to handlers.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoSession is returned when a request carries no session.
	ErrNoSession = errors.New("auth: no session")
	// ErrInvalidCode is returned when a sign-in code is unknown, expired
	// or already used.
	ErrInvalidCode = errors.New("auth: invalid or expired sign-in code")
)

// Identity is a signed-in user as reported by an identity provider.
type Identity struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Session is the identity carried by a request.
type Session struct {
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// Claims are the session cookie's JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	AccessToken string `json:"at,omitempty"`
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Secret     []byte
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager issues and verifies session cookies.
type Manager struct {
	cfg ManagerConfig
	now func() time.Time
}

// NewManager creates a Manager. The secret must be at least 16 bytes.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if len(cfg.Secret) < 16 {
		return nil, fmt.Errorf("auth: session secret must be at least 16 bytes")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "folio_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &Manager{cfg: cfg, now: time.Now}, nil
}

// CookieName returns the session cookie name.
func (m *Manager) CookieName() string { return m.cfg.CookieName }

// Sign creates a session token for id. The token never outlives the
// provider's own access token.
func (m *Manager) Sign(id *Identity) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.cfg.TTL)
	if !id.ExpiresAt.IsZero() && id.ExpiresAt.Before(exp) {
		exp = id.ExpiresAt
	}
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:       id.Email,
		AccessToken: id.AccessToken,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session: %w", err)
	}
	return token, exp, nil
}

// Verify parses a session token. Only HS256 is accepted.
func (m *Manager) Verify(token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.cfg.Secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("auth: invalid session token")
	}
	return &Session{
		UserID:      claims.Subject,
		Email:       claims.Email,
		AccessToken: claims.AccessToken,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Issue signs a session for id and sets it as a cookie.
func (m *Manager) Issue(w http.ResponseWriter, id *Identity) error {
	token, exp, err := m.Sign(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(exp.Sub(m.now()).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.cfg.Secure,
	})
	return nil
}

// Clear removes the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.cfg.Secure,
	})
}

// token extracts the raw session token from the cookie or, failing that,
// a bearer header. fromCookie reports where it came from.
func (m *Manager) token(r *http.Request) (tok string, fromCookie bool) {
	if c, err := r.Cookie(m.cfg.CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer "), false
	}
	return "", false
}

// Parse returns the request's session, or ErrNoSession.
func (m *Manager) Parse(r *http.Request) (*Session, error) {
	tok, _ := m.token(r)
	if tok == "" {
		return nil, ErrNoSession
	}
	return m.Verify(tok)
}
