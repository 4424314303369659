package site

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ziadkadry99/folio/internal/auth"
)

const (
	// verifierCookie carries the PKCE verifier from the login form to the
	// callback.
	verifierCookie = "folio_pkce"
	callbackPath   = "/auth/callback"
	defaultNext    = "/posts/admin"

	linkSentMessage = "Check your email for the magic link!"
)

type loginBody struct {
	Email   string
	Next    string
	Error   string
	Message string
}

func (s *Site) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	next := auth.SafeNext(q.Get("next"), defaultNext)
	if s.admin.IsAdminRequest(r) {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	body := loginBody{Next: next, Error: loginError(q.Get("error")), Message: q.Get("message")}
	s.render(w, http.StatusOK, "login", s.page(r, "Sign in", "", body))
}

func loginError(code string) string {
	switch code {
	case "":
		return ""
	case "auth_callback_failed":
		return "That sign-in link is invalid or has expired. Request a new one."
	}
	return code
}

func (s *Site) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	next := auth.SafeNext(r.PostFormValue("next"), defaultNext)
	if email == "" {
		s.render(w, http.StatusBadRequest, "login", s.page(r, "Sign in", "", loginBody{Next: next, Error: "Email is required."}))
		return
	}

	redirect := strings.TrimSuffix(s.cfg.Server.BaseURL, "/") + callbackPath + "?next=" + url.QueryEscape(next)
	verifier, err := s.provider.SendMagicLink(r.Context(), email, redirect)
	if err != nil {
		s.logger.Warn("sending magic link", zap.Error(err))
		body := loginBody{Email: email, Next: next, Error: "Could not send the sign-in link. Check the address and try again."}
		s.render(w, http.StatusBadRequest, "login", s.page(r, "Sign in", "", body))
		return
	}

	if verifier != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     verifierCookie,
			Value:    verifier,
			Path:     callbackPath,
			MaxAge:   600,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   s.cfg.Session.Secure,
		})
	}
	http.Redirect(w, r, "/login?message="+url.QueryEscape(linkSentMessage), http.StatusSeeOther)
}

func (s *Site) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	var verifier string
	if c, err := r.Cookie(verifierCookie); err == nil {
		verifier = c.Value
	}
	http.SetCookie(w, &http.Cookie{Name: verifierCookie, Path: callbackPath, MaxAge: -1, HttpOnly: true})

	id, err := s.provider.ExchangeCode(r.Context(), code, verifier)
	if err == nil {
		err = s.sessions.Issue(w, id)
	}
	if err != nil {
		s.logger.Info("sign-in callback failed", zap.Error(err))
		http.Redirect(w, r, "/login?error=auth_callback_failed", http.StatusSeeOther)
		return
	}
	s.logger.Info("signed in", zap.String("email", id.Email))
	http.Redirect(w, r, auth.SafeNext(r.URL.Query().Get("next"), defaultNext), http.StatusSeeOther)
}

func (s *Site) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := auth.FromContext(r.Context()); ok {
		if err := s.provider.SignOut(r.Context(), sess.AccessToken); err != nil {
			s.logger.Warn("signing out", zap.Error(err))
		}
	}
	s.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
