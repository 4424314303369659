package site

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/folio/internal/content"
	"github.com/ziadkadry99/folio/internal/navspy"
	"github.com/ziadkadry99/folio/internal/posts"
)

// homePostLimit is how many recent posts the home page shows.
const homePostLimit = 5

type homeBody struct {
	Tabs  []content.Tab
	Posts []feedEntry
}

func (s *Site) handleHome(w http.ResponseWriter, r *http.Request) {
	items, err := posts.LoadFeed(r.Context(), s.store, "", homePostLimit)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	body := homeBody{Tabs: content.Tabs, Posts: s.feedEntries(r, items)}
	s.render(w, http.StatusOK, "home", s.page(r, "", "Portfolio and posts by "+s.cfg.Site.Author, body))
}

type aboutBody struct {
	Page    *content.Page
	Tabs    []content.Tab
	Current string
	Nav     template.HTML
	// Socket is the tracker session URL for this page.
	Socket         string
	TopButtonAfter float64
}

// handleAbout renders the combined about page or a single tab. The
// sidebar is pre-highlighted from ?section= when it names a nav item.
func (s *Site) handleAbout(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "page")

	var page *content.Page
	if slug == "" {
		page = s.library.All()
	} else {
		var ok bool
		if page, ok = s.library.Page(slug); !ok {
			s.notFound(w, r)
			return
		}
	}
	items, _ := content.NavTreeFor(slug)

	active := r.URL.Query().Get("section")
	if _, _, ok := navspy.Find(items, active); !ok {
		active = ""
	}

	basePath := "/about"
	socket := "/ws/navspy"
	if slug != "" {
		basePath += "/" + slug
		socket += "?page=" + slug
	}
	body := aboutBody{
		Page:           page,
		Tabs:           content.Tabs,
		Current:        slug,
		Nav:            RenderNav(items, active, basePath),
		Socket:         socket,
		TopButtonAfter: s.cfg.NavSpy.TopButtonAfter,
	}
	s.render(w, http.StatusOK, "about", s.page(r, page.Title, "About "+s.cfg.Site.Author, body))
}
