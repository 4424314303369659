package site

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/folio/internal/auth"
	"github.com/ziadkadry99/folio/internal/posts"
)

func (s *Site) registerAPI(r chi.Router) {
	r.Route("/api/posts", func(r chi.Router) {
		r.Get("/", s.apiListPosts)
		r.Get("/{id}", s.apiGetPost)
		r.Group(func(r chi.Router) {
			r.Use(s.admin.RequireAdminAPI)
			r.Post("/", s.apiCreatePost)
			r.Put("/{id}", s.apiUpdatePost)
			r.Delete("/{id}", s.apiDeletePost)
		})
	})
	r.Route("/api/tags", func(r chi.Router) {
		r.Get("/", s.apiListTags)
		r.Group(func(r chi.Router) {
			r.Use(s.admin.RequireAdminAPI)
			r.Post("/", s.apiCreateTag)
			r.Delete("/{id}", s.apiDeleteTag)
		})
	})
}

// apiListPosts returns the published feed, or every post for the admin.
func (s *Site) apiListPosts(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	limit := feedLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	if s.admin.IsAdminRequest(r) {
		list, err := s.store.List(r.Context(), posts.Filter{Tag: tag, Limit: limit})
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if list == nil {
			list = []posts.Post{}
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	items, err := posts.LoadFeed(r.Context(), s.store, tag, limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Site) apiGetPost(w http.ResponseWriter, r *http.Request) {
	th, err := posts.LoadThread(r.Context(), s.store, chi.URLParam(r, "id"), s.admin.IsAdminRequest(r))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, th)
}

func (s *Site) apiCreatePost(w http.ResponseWriter, r *http.Request) {
	var d posts.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess, _ := auth.FromContext(r.Context())
	p, err := s.createPost(r.Context(), d, sess.UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Site) apiUpdatePost(w http.ResponseWriter, r *http.Request) {
	var d posts.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p, err := s.updatePost(r.Context(), chi.URLParam(r, "id"), d)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Site) apiDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Site) apiListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.TagCounts(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if tags == nil {
		tags = []posts.TagCount{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Site) apiCreateTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	tag, err := s.createTag(r.Context(), req.Name)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (s *Site) apiDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tag id")
		return
	}
	if err := s.store.DeleteTag(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
