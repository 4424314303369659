package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the request's session, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// AccessToken returns the provider access token of the request's session,
// or "".
func AccessToken(ctx context.Context) string {
	if s, ok := FromContext(ctx); ok {
		return s.AccessToken
	}
	return ""
}

// Middleware parses the session cookie (or bearer token) into the request
// context. Invalid cookies are cleared. Requests whose path matches one
// of the public globs skip parsing.
func Middleware(m *Manager, publicPaths []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(publicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			tok, fromCookie := m.token(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}

			s, err := m.Verify(tok)
			if err != nil {
				logger.Debug("rejecting session", zap.Error(err), zap.String("path", r.URL.Path))
				if fromCookie {
					m.Clear(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// IsPublicPath reports whether path matches any of the globs. Malformed
// patterns never match.
func IsPublicPath(globs []string, path string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, path); err == nil && ok {
			return true
		}
	}
	return false
}

// Admin decides who may manage posts.
type Admin struct {
	Email string
}

// IsAdmin reports whether s belongs to the site owner. Emails compare
// case-insensitively; an unset admin email matches nobody.
func (a Admin) IsAdmin(s *Session) bool {
	if s == nil || s.Email == "" || a.Email == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(s.Email), strings.TrimSpace(a.Email))
}

// IsAdminRequest reports whether the request comes from the site owner.
func (a Admin) IsAdminRequest(r *http.Request) bool {
	s, _ := FromContext(r.Context())
	return a.IsAdmin(s)
}

// RequireAdmin redirects anyone but the site owner to /login, remembering
// where they were going.
func (a Admin) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.IsAdminRequest(r) {
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdminAPI rejects anyone but the site owner with a JSON error.
func (a Admin) RequireAdminAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			http.Error(w, `{"error":"not signed in"}`, http.StatusUnauthorized)
			return
		}
		if !a.IsAdminRequest(r) {
			http.Error(w, `{"error":"admin only"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SafeNext returns next when it is a local absolute path, otherwise def.
func SafeNext(next, def string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return def
	}
	return next
}
