package site

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ziadkadry99/folio/internal/auth"
	"github.com/ziadkadry99/folio/internal/posts"
)

const (
	feedLimit     = 50
	parentExcerpt = 80
)

// feedEntry is a post prepared for display.
type feedEntry struct {
	Post       posts.Post
	HTML       template.HTML
	When       string
	Status     posts.Status
	Parent     *posts.Post
	ParentText string
	ReplyCount int
}

func (s *Site) entry(r *http.Request, p posts.Post) feedEntry {
	now := s.now()
	e := feedEntry{Post: p, When: posts.RelativeTime(p.SortTime(), now), Status: p.Status(now)}
	html, err := s.renderer.Render(p.Content)
	if err != nil {
		s.logger.Warn("rendering post", zap.String("post", p.ID), zap.Error(err))
		html = template.HTML(template.HTMLEscapeString(p.Content))
	}
	e.HTML = html
	return e
}

func (s *Site) feedEntries(r *http.Request, items []posts.FeedItem) []feedEntry {
	entries := make([]feedEntry, len(items))
	for i, item := range items {
		e := s.entry(r, item.Post)
		e.ReplyCount = item.ReplyCount
		if item.Parent != nil {
			e.Parent = item.Parent
			e.ParentText = posts.Excerpt(item.Parent.Content, parentExcerpt)
		}
		entries[i] = e
	}
	return entries
}

type feedBody struct {
	Entries []feedEntry
	Tags    []posts.TagCount
	Tag     string
}

func (s *Site) handleFeed(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	items, err := posts.LoadFeed(r.Context(), s.store, tag, feedLimit)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	tags, err := s.store.TagCounts(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	title := "Posts"
	if tag != "" {
		title = "#" + tag + " | Posts"
	}
	body := feedBody{Entries: s.feedEntries(r, items), Tags: tags, Tag: tag}
	s.render(w, http.StatusOK, "feed", s.page(r, title, "Short posts by "+s.cfg.Site.Author, body))
}

type threadBody struct {
	Ancestors []feedEntry
	Post      feedEntry
	Replies   []feedEntry
}

func (s *Site) handleThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	admin := s.admin.IsAdminRequest(r)

	th, err := posts.LoadThread(r.Context(), s.store, id, admin)
	if errors.Is(err, posts.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	if !admin && th.Post.Published {
		if err := s.store.IncrementViews(r.Context(), id); err != nil {
			s.logger.Warn("incrementing views", zap.String("post", id), zap.Error(err))
		}
	}

	body := threadBody{Post: s.entry(r, th.Post)}
	for _, p := range th.Ancestors {
		body.Ancestors = append(body.Ancestors, s.entry(r, p))
	}
	for _, p := range th.Replies {
		body.Replies = append(body.Replies, s.entry(r, p))
	}
	s.render(w, http.StatusOK, "thread", s.page(r, posts.Title(&th.Post), posts.Description(&th.Post), body))
}

// adminStats summarizes every post for the admin dashboard.
type adminStats struct {
	Total     int
	Published int
	Drafts    int
	Scheduled int
	Views     int
}

type adminRow struct {
	feedEntry
	Created string
}

type adminBody struct {
	Rows  []adminRow
	Stats adminStats
	Email string
}

func (s *Site) handleAdmin(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context(), posts.Filter{})
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	now := s.now()
	var body adminBody
	if sess, ok := auth.FromContext(r.Context()); ok {
		body.Email = sess.Email
	}
	for _, p := range list {
		body.Rows = append(body.Rows, adminRow{feedEntry: s.entry(r, p), Created: posts.AdminTime(p.CreatedAt)})
		body.Stats.Total++
		body.Stats.Views += p.ViewCount
		switch p.Status(now) {
		case posts.StatusPublished:
			body.Stats.Published++
		case posts.StatusScheduled:
			body.Stats.Scheduled++
		default:
			body.Stats.Drafts++
		}
	}
	s.render(w, http.StatusOK, "admin", s.page(r, "Admin | Posts", "", body))
}

type composeBody struct {
	Editing   *posts.Post
	ReplyTo   *feedEntry
	Content   string
	Media     []posts.MediaAttachment
	Mode      posts.Mode
	Schedule  string
	Tags      []posts.Tag
	Selected  map[int64]bool
	Error     string
	MaxLength int
}

func (s *Site) composeBody(r *http.Request) (*composeBody, error) {
	ctx := r.Context()
	tags, err := s.store.Tags(ctx)
	if err != nil {
		return nil, err
	}
	body := &composeBody{Tags: tags, Selected: map[int64]bool{}, Mode: posts.ModePublish, MaxLength: posts.MaxContentLength}

	q := r.URL.Query()
	if id := q.Get("edit"); id != "" {
		p, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		body.Editing = p
		body.Content = p.Content
		body.Media = p.Media
		for _, t := range p.Tags {
			body.Selected[t.ID] = true
		}
		switch p.Status(s.now()) {
		case posts.StatusScheduled:
			body.Mode = posts.ModeSchedule
			body.Schedule = p.PublishedAt.Format(scheduleLayout)
		case posts.StatusDraft:
			body.Mode = posts.ModeDraft
		}
	}
	if id := q.Get("reply_to"); id != "" {
		parent, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		e := s.entry(r, *parent)
		body.ReplyTo = &e
	}
	return body, nil
}

func (s *Site) handleComposeForm(w http.ResponseWriter, r *http.Request) {
	body, err := s.composeBody(r)
	if errors.Is(err, posts.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "compose", s.page(r, "Compose | Posts", "", body))
}

// draftFromForm reads the compose form.
func draftFromForm(r *http.Request) (posts.Draft, error) {
	d := posts.Draft{
		Content:  r.PostFormValue("content"),
		ParentID: r.PostFormValue("parent_id"),
		Mode:     posts.Mode(r.PostFormValue("mode")),
	}
	var err error
	if d.Mode == posts.ModeSchedule {
		if d.ScheduleAt, err = parseSchedule(r.PostFormValue("schedule_at"), r.PostFormValue("tz_offset")); err != nil {
			return d, err
		}
	}
	if d.TagIDs, err = parseTagIDs(r.PostForm["tag_ids"]); err != nil {
		return d, err
	}

	types, urls, alts := r.PostForm["media_type"], r.PostForm["media_url"], r.PostForm["media_alt"]
	for i, u := range urls {
		if u == "" {
			continue
		}
		m := posts.MediaAttachment{URL: u, Type: posts.MediaImage}
		if i < len(types) && types[i] != "" {
			m.Type = posts.MediaType(types[i])
		}
		if i < len(alts) {
			m.Alt = alts[i]
		}
		d.Media = append(d.Media, m)
	}
	return d, nil
}

func (s *Site) handleCompose(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	sess, _ := auth.FromContext(r.Context())

	d, err := draftFromForm(r)
	if err == nil {
		if id := r.PostFormValue("edit_id"); id != "" {
			_, err = s.updatePost(r.Context(), id, d)
		} else {
			_, err = s.createPost(r.Context(), d, sess.UserID)
		}
	}
	if err == nil {
		http.Redirect(w, r, "/posts/admin", http.StatusSeeOther)
		return
	}

	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.serverError(w, r, err)
		return
	}
	// Re-render the form with what the author typed.
	body, ferr := s.composeBody(r)
	if ferr != nil {
		body = &composeBody{Selected: map[int64]bool{}, MaxLength: posts.MaxContentLength}
	}
	body.Content = d.Content
	body.Media = d.Media
	body.Mode = d.Mode
	body.Schedule = r.PostFormValue("schedule_at")
	body.Selected = map[int64]bool{}
	for _, id := range d.TagIDs {
		body.Selected[id] = true
	}
	body.Error = trimSentinel(err)
	s.render(w, status, "compose", s.page(r, "Compose | Posts", "", body))
}

func (s *Site) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil && !errors.Is(err, posts.ErrNotFound) {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/posts/admin", http.StatusSeeOther)
}

type tagsBody struct {
	Tags  []posts.TagCount
	Error string
}

func (s *Site) handleTagsPage(w http.ResponseWriter, r *http.Request) {
	s.renderTags(w, r, http.StatusOK, r.URL.Query().Get("error"))
}

func (s *Site) renderTags(w http.ResponseWriter, r *http.Request, status int, msg string) {
	tags, err := s.store.TagCounts(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, status, "tags", s.page(r, "Tags | Posts", "", tagsBody{Tags: tags, Error: msg}))
}

func (s *Site) handleTagCreate(w http.ResponseWriter, r *http.Request) {
	_, err := s.createTag(r.Context(), r.PostFormValue("name"))
	if err == nil {
		http.Redirect(w, r, "/posts/admin/tags", http.StatusSeeOther)
		return
	}
	if errors.Is(err, posts.ErrInvalid) {
		s.renderTags(w, r, http.StatusBadRequest, trimSentinel(err))
		return
	}
	s.serverError(w, r, err)
}

func (s *Site) handleTagDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/posts/admin/tags?error="+url.QueryEscape("bad tag id"), http.StatusSeeOther)
		return
	}
	if err := s.store.DeleteTag(r.Context(), id); err != nil && !errors.Is(err, posts.ErrNotFound) {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/posts/admin/tags", http.StatusSeeOther)
}
