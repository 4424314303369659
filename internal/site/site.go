// Package site serves the public website: about pages with the tracked
// sidebar, the post feed and threads, the admin pages, the JSON API and
// the sign-in flow.
package site

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ziadkadry99/folio/internal/auth"
	"github.com/ziadkadry99/folio/internal/backend"
	"github.com/ziadkadry99/folio/internal/config"
	"github.com/ziadkadry99/folio/internal/content"
	"github.com/ziadkadry99/folio/internal/navspy"
	"github.com/ziadkadry99/folio/internal/posts"
)

// Metrics receives navigation session events.
type Metrics interface {
	NavSessionOpened()
	NavSessionClosed()
	NavActiveChanged(page string)
}

type noopMetrics struct{}

func (noopMetrics) NavSessionOpened()       {}
func (noopMetrics) NavSessionClosed()       {}
func (noopMetrics) NavActiveChanged(string) {}

// Options wires a Site.
type Options struct {
	Config   *config.Config
	Store    posts.Store
	Provider auth.Provider
	Sessions *auth.Manager
	Library  *content.Library
	Logger   *zap.Logger
	Metrics  Metrics
	// Clock drives navigation trackers. Defaults to the real clock.
	Clock navspy.Clock
}

// Site holds the handlers and their dependencies.
type Site struct {
	cfg      *config.Config
	store    posts.Store
	provider auth.Provider
	sessions *auth.Manager
	admin    auth.Admin
	library  *content.Library
	renderer *posts.Renderer
	logger   *zap.Logger
	metrics  Metrics
	clock    navspy.Clock
	now      func() time.Time
	pages    map[string]*template.Template
}

// New creates a Site and parses its templates.
func New(opts Options) (*Site, error) {
	if opts.Config == nil || opts.Store == nil || opts.Provider == nil || opts.Sessions == nil || opts.Library == nil {
		return nil, errors.New("site: config, store, provider, sessions and library are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Clock == nil {
		opts.Clock = navspy.RealClock()
	}
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Site{
		cfg:      opts.Config,
		store:    opts.Store,
		provider: opts.Provider,
		sessions: opts.Sessions,
		admin:    auth.Admin{Email: opts.Config.Site.AdminEmail},
		library:  opts.Library,
		renderer: posts.NewRenderer(),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		clock:    opts.Clock,
		now:      time.Now,
		pages:    pages,
	}, nil
}

// RegisterRoutes mounts every site route onto r behind the session
// middleware.
func (s *Site) RegisterRoutes(r chi.Router) {
	r.Get("/static/style.css", serveStatic("text/css; charset=utf-8", cssContent))
	r.Get("/static/site.js", serveStatic("application/javascript; charset=utf-8", jsContent))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.sessions, s.cfg.Server.PublicPaths, s.logger))

		r.Get("/", s.handleHome)
		r.Get("/about", s.handleAbout)
		r.Get("/about/{page}", s.handleAbout)
		r.Get("/ws/navspy", s.handleNavSocket)

		r.Get("/login", s.handleLoginForm)
		r.Post("/login", s.handleLogin)
		r.Get("/auth/callback", s.handleCallback)
		r.Post("/logout", s.handleLogout)

		r.Get("/posts", s.handleFeed)
		r.Route("/posts/admin", func(r chi.Router) {
			r.Use(s.admin.RequireAdmin)
			r.Get("/", s.handleAdmin)
			r.Get("/compose", s.handleComposeForm)
			r.Post("/compose", s.handleCompose)
			r.Post("/{id}/delete", s.handleAdminDelete)
			r.Get("/tags", s.handleTagsPage)
			r.Post("/tags", s.handleTagCreate)
			r.Post("/tags/{id}/delete", s.handleTagDelete)
		})
		r.Get("/posts/{id}", s.handleThread)

		s.registerAPI(r)
	})
}

// pageData is the layout data shared by every page.
type pageData struct {
	Title       string
	Description string
	SiteTitle   string
	Author      string
	Year        int
	Session     *auth.Session
	IsAdmin     bool
	Body        any
}

func (s *Site) page(r *http.Request, title, description string, body any) pageData {
	sess, _ := auth.FromContext(r.Context())
	if title == "" {
		title = s.cfg.Site.Title
	}
	return pageData{
		Title:       title,
		Description: description,
		SiteTitle:   s.cfg.Site.Title,
		Author:      s.cfg.Site.Author,
		Year:        s.now().Year(),
		Session:     sess,
		IsAdmin:     s.admin.IsAdmin(sess),
		Body:        body,
	}
}

func (s *Site) render(w http.ResponseWriter, status int, name string, data pageData) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("unknown template", zap.String("template", name))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Error("rendering page", zap.String("template", name), zap.Error(err))
	}
}

func (s *Site) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusNotFound, "notfound", s.page(r, "Not found", "", nil))
}

func (s *Site) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	s.render(w, http.StatusInternalServerError, "error", s.page(r, "Something went wrong", "", nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps store errors onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, posts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, posts.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrNoSession), errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (s *Site) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, trimSentinel(err))
}

// trimSentinel drops the package prefix of a posts error so API
// messages read naturally.
func trimSentinel(err error) string {
	return strings.TrimPrefix(err.Error(), "posts: ")
}
