package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ziadkadry99/folio/internal/db"
)

// loginAudience marks sign-in codes so they cannot pass as sessions.
const loginAudience = "folio-login"

// DefaultCodeTTL is how long a local sign-in link stays valid.
const DefaultCodeTTL = 15 * time.Minute

// LocalProvider is a Provider for the sqlite driver. Instead of sending
// mail it writes the link to the log. Codes are signed one-time tokens
// recorded in the login_codes table.
type LocalProvider struct {
	db     *db.DB
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	// Sent receives every link when set. Used by tests and the CLI.
	Sent func(email, link string)
}

// NewLocalProvider creates a LocalProvider.
func NewLocalProvider(d *db.DB, secret []byte, logger *zap.Logger) *LocalProvider {
	return &LocalProvider{db: d, secret: secret, ttl: DefaultCodeTTL, logger: logger, now: time.Now}
}

// SendMagicLink records a one-time code and logs the link.
func (p *LocalProvider) SendMagicLink(ctx context.Context, email, redirectTo string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", fmt.Errorf("invalid email: %w", err)
	}
	email = strings.ToLower(addr.Address)

	now := p.now()
	jti := uuid.NewString()
	exp := now.Add(p.ttl)
	if _, err := p.db.ExecContext(ctx, `INSERT INTO login_codes (jti, email, expires_at) VALUES (?, ?, ?)`,
		jti, email, exp.UnixMilli()); err != nil {
		return "", fmt.Errorf("recording sign-in code: %w", err)
	}

	claims := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   email,
		Audience:  jwt.ClaimStrings{loginAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	code, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("signing code: %w", err)
	}

	link, err := withQuery(redirectTo, "code", code)
	if err != nil {
		return "", err
	}
	p.logger.Info("magic link issued", zap.String("email", email), zap.String("link", link))
	if p.Sent != nil {
		p.Sent(email, link)
	}
	return "", nil
}

// ExchangeCode verifies and consumes a code, creating the user on first
// sign-in.
func (p *LocalProvider) ExchangeCode(ctx context.Context, code, _ string) (*Identity, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(code, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithAudience(loginAudience), jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}

	var id Identity
	err = p.db.Tx(ctx, func(tx *sql.Tx) error {
		now := p.now()
		res, err := tx.ExecContext(ctx, `UPDATE login_codes SET used_at = ?
			WHERE jti = ? AND email = ? AND used_at IS NULL AND expires_at > ?`,
			now.UnixMilli(), claims.ID, claims.Subject, now.UnixMilli())
		if err != nil {
			return fmt.Errorf("consuming code: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return ErrInvalidCode
		}

		err = tx.QueryRowContext(ctx, `SELECT id, email FROM users WHERE email = ?`, claims.Subject).
			Scan(&id.UserID, &id.Email)
		if errors.Is(err, sql.ErrNoRows) {
			id.UserID = uuid.NewString()
			id.Email = claims.Subject
			_, err = tx.ExecContext(ctx, `INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)`,
				id.UserID, id.Email, now.UnixMilli())
		}
		if err != nil {
			return fmt.Errorf("loading user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// SignOut has nothing to revoke locally.
func (p *LocalProvider) SignOut(context.Context, string) error { return nil }

func withQuery(raw, key, value string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid redirect %q: %w", raw, err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
