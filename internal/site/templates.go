package site

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/ziadkadry99/folio/internal/posts"
)

var templateFuncs = template.FuncMap{
	"statusLabel": func(s posts.Status) string {
		if s == "" {
			return ""
		}
		return strings.ToUpper(string(s[:1])) + string(s[1:])
	},
	"isImage": func(m posts.MediaAttachment) bool { return m.Type == posts.MediaImage },
	"isVideo": func(m posts.MediaAttachment) bool { return m.Type == posts.MediaVideo },
	"checked": func(selected map[int64]bool, id int64) bool { return selected[id] },
}

// parseTemplates builds one template set per page. Each set executes
// "layout", which calls the page's "content".
func parseTemplates() (map[string]*template.Template, error) {
	base, err := template.New("layout").Funcs(templateFuncs).Parse(layoutTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing layout template: %w", err)
	}
	if _, err := base.New("post").Parse(postPartial); err != nil {
		return nil, fmt.Errorf("parsing post template: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageTemplates))
	for name, src := range pageTemplates {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.New(name).Parse(src); err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

func serveStatic(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write([]byte(body))
	}
}

const layoutTemplate = `<!DOCTYPE html>
<html lang="en" data-theme="light">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{if eq .Title .SiteTitle}}{{.SiteTitle}}{{else}}{{.Title}} | {{.SiteTitle}}{{end}}</title>
  {{if .Description}}<meta name="description" content="{{.Description}}">{{end}}
  <link rel="stylesheet" href="/static/style.css">
</head>
<body>
  <header class="top-bar">
    <a class="brand" href="/">{{.SiteTitle}}</a>
    <nav class="top-links">
      <a href="/about">About</a>
      <a href="/posts">Posts</a>
      {{if .IsAdmin}}<a href="/posts/admin">Admin</a>{{end}}
      {{if .Session}}
      <form method="post" action="/logout" class="inline"><button type="submit" class="link-button">Sign out</button></form>
      {{end}}
    </nav>
    <button class="theme-toggle" id="theme-toggle" aria-label="Toggle theme">&#9680;</button>
  </header>
  <main class="content">
    {{template "content" .}}
  </main>
  <footer class="footer">&copy; {{.Year}} {{.Author}}</footer>
  <script src="/static/site.js"></script>
</body>
</html>`

const postPartial = `<article class="post" id="post-{{.Post.ID}}">
  {{if .Parent}}<a class="reply-context" href="/posts/{{.Parent.ID}}">Replying to: {{.ParentText}}</a>{{end}}
  <div class="post-body">{{.HTML}}</div>
  {{range .Post.Media}}
  <div class="media">
    {{if isImage .}}<img src="{{.URL}}" alt="{{.Alt}}" loading="lazy">
    {{else if isVideo .}}<video src="{{.URL}}" controls preload="metadata"{{if .Thumbnail}} poster="{{.Thumbnail}}"{{end}}></video>
    {{else}}<a href="{{.URL}}" rel="noopener nofollow" target="_blank">{{if .Alt}}{{.Alt}}{{else}}{{.URL}}{{end}}</a>{{end}}
  </div>
  {{end}}
  <footer class="post-meta">
    <a href="/posts/{{.Post.ID}}">{{.When}}</a>
    {{range .Post.Tags}}<a class="tag" href="/posts?tag={{.Slug}}">#{{.Name}}</a>{{end}}
    {{if .ReplyCount}}<span class="replies">{{.ReplyCount}} {{if eq .ReplyCount 1}}reply{{else}}replies{{end}}</span>{{end}}
  </footer>
</article>`

var pageTemplates = map[string]string{
	"home": `{{define "content"}}
<section class="hero">
  <h1>{{.Author}}</h1>
  {{with .Description}}<p class="lead">{{.}}</p>{{end}}
</section>
<section class="tab-cards">
  {{range .Body.Tabs}}<a class="tab-card" href="{{.Href}}">{{.Label}}</a>{{end}}
</section>
<section class="recent">
  <h2>Recent posts</h2>
  {{range .Body.Posts}}{{template "post" .}}{{else}}<p class="empty">Nothing posted yet.</p>{{end}}
  <a href="/posts">All posts &rarr;</a>
</section>
{{end}}`,

	"about": `{{define "content"}}
<nav class="about-tabs">
  <a href="/about"{{if eq .Body.Current ""}} class="current"{{end}}>All</a>
  {{range .Body.Tabs}}<a href="{{.Href}}"{{if eq .Slug $.Body.Current}} class="current"{{end}}>{{.Label}}</a>{{end}}
</nav>
<div class="about-layout">
  <aside class="sidebar" id="sidebar" data-navspy="{{.Body.Socket}}">
    {{.Body.Nav}}
  </aside>
  <article class="page-content">
    {{.Body.Page.HTML}}
  </article>
</div>
<button class="to-top" id="to-top" data-after="{{.Body.TopButtonAfter}}" aria-label="Back to top" hidden>&uarr;</button>
{{end}}`,

	"feed": `{{define "content"}}
<h1>{{if .Body.Tag}}#{{.Body.Tag}}{{else}}Posts{{end}}</h1>
<nav class="tag-chips">
  <a href="/posts"{{if not .Body.Tag}} class="current"{{end}}>All</a>
  {{range .Body.Tags}}{{if .Posts}}<a href="/posts?tag={{.Slug}}"{{if eq .Slug $.Body.Tag}} class="current"{{end}}>#{{.Name}} <span>{{.Posts}}</span></a>{{end}}{{end}}
</nav>
{{range .Body.Entries}}{{template "post" .}}{{else}}<p class="empty">No posts here yet.</p>{{end}}
{{end}}`,

	"thread": `{{define "content"}}
<a class="back" href="/posts">&larr; All posts</a>
{{if .Body.Ancestors}}<div class="ancestors">{{range .Body.Ancestors}}{{template "post" .}}{{end}}</div>{{end}}
<div class="focus">
  {{if ne .Body.Post.Status "published"}}<p class="badge">{{statusLabel .Body.Post.Status}}</p>{{end}}
  {{template "post" .Body.Post}}
  {{if .IsAdmin}}<p class="admin-actions"><a href="/posts/admin/compose?edit={{.Body.Post.Post.ID}}">Edit</a> <a href="/posts/admin/compose?reply_to={{.Body.Post.Post.ID}}">Reply</a></p>{{end}}
</div>
{{if .Body.Replies}}<h2>Replies</h2><div class="replies">{{range .Body.Replies}}{{template "post" .}}{{end}}</div>{{end}}
{{end}}`,

	"admin": `{{define "content"}}
<h1>Posts admin</h1>
{{if .Body.Email}}<p class="muted">Logged in as {{.Body.Email}}</p>{{end}}
<ul class="stats">
  <li><strong>{{.Body.Stats.Total}}</strong> total</li>
  <li><strong>{{.Body.Stats.Published}}</strong> published</li>
  <li><strong>{{.Body.Stats.Drafts}}</strong> drafts</li>
  <li><strong>{{.Body.Stats.Scheduled}}</strong> scheduled</li>
  <li><strong>{{.Body.Stats.Views}}</strong> views</li>
</ul>
<p><a class="button" href="/posts/admin/compose">New post</a> <a href="/posts/admin/tags">Manage tags</a></p>
<table class="admin-table">
  <thead><tr><th>Post</th><th>Status</th><th>Views</th><th>Created</th><th></th></tr></thead>
  <tbody>
  {{range .Body.Rows}}
  <tr>
    <td><a href="/posts/{{.Post.ID}}">{{.Post.Content}}</a></td>
    <td><span class="status status-{{.Status}}">{{statusLabel .Status}}</span></td>
    <td>{{.Post.ViewCount}}</td>
    <td>{{.Created}}</td>
    <td class="row-actions">
      <a href="/posts/admin/compose?edit={{.Post.ID}}">Edit</a>
      <form method="post" action="/posts/admin/{{.Post.ID}}/delete" class="inline" data-confirm="Delete this post?"><button type="submit" class="link-button danger">Delete</button></form>
    </td>
  </tr>
  {{else}}
  <tr><td colspan="5" class="empty">No posts yet.</td></tr>
  {{end}}
  </tbody>
</table>
{{end}}`,

	"compose": `{{define "content"}}
<h1>{{if .Body.Editing}}Edit post{{else if .Body.ReplyTo}}Reply{{else}}New post{{end}}</h1>
{{if .Body.Error}}<p class="error">{{.Body.Error}}</p>{{end}}
{{with .Body.ReplyTo}}<div class="reply-target">{{template "post" .}}</div>{{end}}
<form method="post" action="/posts/admin/compose" class="compose" id="compose">
  {{if .Body.Editing}}<input type="hidden" name="edit_id" value="{{.Body.Editing.ID}}">{{end}}
  {{with .Body.ReplyTo}}<input type="hidden" name="parent_id" value="{{.Post.ID}}">{{end}}
  <textarea name="content" rows="6" maxlength="{{.Body.MaxLength}}" data-counter="char-count">{{.Body.Content}}</textarea>
  <p class="muted"><span id="char-count">0</span> / {{.Body.MaxLength}}</p>

  <fieldset>
    <legend>Media</legend>
    {{range .Body.Media}}
    <div class="media-row">
      <select name="media_type"><option value="image"{{if eq .Type "image"}} selected{{end}}>Image</option><option value="video"{{if eq .Type "video"}} selected{{end}}>Video</option><option value="link"{{if eq .Type "link"}} selected{{end}}>Link</option></select>
      <input type="url" name="media_url" value="{{.URL}}" placeholder="https://">
      <input type="text" name="media_alt" value="{{.Alt}}" placeholder="Description">
    </div>
    {{end}}
    <div class="media-row">
      <select name="media_type"><option value="image">Image</option><option value="video">Video</option><option value="link">Link</option></select>
      <input type="url" name="media_url" placeholder="https://">
      <input type="text" name="media_alt" placeholder="Description">
    </div>
  </fieldset>

  {{if .Body.Tags}}
  <fieldset>
    <legend>Tags</legend>
    {{range .Body.Tags}}<label class="tag-option"><input type="checkbox" name="tag_ids" value="{{.ID}}"{{if checked $.Body.Selected .ID}} checked{{end}}> #{{.Name}}</label>{{end}}
  </fieldset>
  {{end}}

  <fieldset>
    <legend>Publishing</legend>
    <label><input type="radio" name="mode" value="publish"{{if eq .Body.Mode "publish"}} checked{{end}}> Publish now</label>
    <label><input type="radio" name="mode" value="draft"{{if eq .Body.Mode "draft"}} checked{{end}}> Save draft</label>
    <label><input type="radio" name="mode" value="schedule"{{if eq .Body.Mode "schedule"}} checked{{end}}> Schedule</label>
    <input type="datetime-local" name="schedule_at" value="{{.Body.Schedule}}">
    <input type="hidden" name="tz_offset" value="" data-tz-offset>
  </fieldset>

  <button type="submit" class="button">Save</button>
</form>
{{end}}`,

	"tags": `{{define "content"}}
<h1>Tags</h1>
{{if .Body.Error}}<p class="error">{{.Body.Error}}</p>{{end}}
<form method="post" action="/posts/admin/tags" class="inline-form">
  <input type="text" name="name" placeholder="New tag" required>
  <button type="submit" class="button">Add</button>
</form>
<table class="admin-table">
  <thead><tr><th>Tag</th><th>Slug</th><th>Posts</th><th></th></tr></thead>
  <tbody>
  {{range .Body.Tags}}
  <tr>
    <td>#{{.Name}}</td><td>{{.Slug}}</td><td>{{.Posts}}</td>
    <td><form method="post" action="/posts/admin/tags/{{.ID}}/delete" class="inline" data-confirm="Delete this tag?"><button type="submit" class="link-button danger">Delete</button></form></td>
  </tr>
  {{else}}
  <tr><td colspan="4" class="empty">No tags yet.</td></tr>
  {{end}}
  </tbody>
</table>
<p><a href="/posts/admin">&larr; Back to posts</a></p>
{{end}}`,

	"login": `{{define "content"}}
<div class="login">
  <h1>Sign in</h1>
  {{if .Body.Error}}<p class="error">{{.Body.Error}}</p>{{end}}
  {{if .Body.Message}}<p class="notice">{{.Body.Message}}</p>{{end}}
  <form method="post" action="/login">
    <input type="hidden" name="next" value="{{.Body.Next}}">
    <label for="email">Email</label>
    <input type="email" id="email" name="email" value="{{.Body.Email}}" required autofocus>
    <button type="submit" class="button">Send magic link</button>
  </form>
</div>
{{end}}`,

	"notfound": `{{define "content"}}
<div class="status-page">
  <h1>Not found</h1>
  <p>There is nothing at this address.</p>
  <a href="/">Go home</a>
</div>
{{end}}`,

	"error": `{{define "content"}}
<div class="status-page">
  <h1>Something went wrong</h1>
  <p>The page could not be loaded. Try again in a moment.</p>
</div>
{{end}}`,
}

const cssContent = `:root {
  --bg: #ffffff;
  --bg-secondary: #f8f9fa;
  --bg-sidebar: #f1f3f5;
  --text: #212529;
  --text-muted: #868e96;
  --border: #dee2e6;
  --accent: #228be6;
  --accent-light: #e7f5ff;
  --danger: #e03131;
  --sidebar-width: 260px;
  --content-max-width: 860px;
}

[data-theme="dark"] {
  --bg: #1a1b26;
  --bg-secondary: #1f2030;
  --bg-sidebar: #16171f;
  --text: #c0caf5;
  --text-muted: #565f89;
  --border: #292e42;
  --accent: #7aa2f7;
  --accent-light: #1a1b2e;
  --danger: #f7768e;
}

*, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
html { font-size: 16px; }
body {
  font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
  color: var(--text);
  background: var(--bg);
  line-height: 1.7;
}
a { color: var(--accent); text-decoration: none; }
a:hover { text-decoration: underline; }

.top-bar {
  display: flex;
  align-items: center;
  gap: 16px;
  padding: 12px 24px;
  border-bottom: 1px solid var(--border);
  position: sticky;
  top: 0;
  background: var(--bg);
  z-index: 50;
}
.brand { font-weight: 700; font-size: 1.1rem; }
.top-links { display: flex; gap: 16px; align-items: center; margin-left: auto; }
.theme-toggle, .link-button { background: none; border: none; color: var(--accent); cursor: pointer; font: inherit; }
.link-button.danger { color: var(--danger); }
.inline { display: inline; }

.content { max-width: var(--content-max-width); margin: 0 auto; padding: 32px 24px 64px; }
.footer { text-align: center; color: var(--text-muted); padding: 24px; border-top: 1px solid var(--border); }
.muted, .empty { color: var(--text-muted); }
.error { color: var(--danger); margin: 12px 0; }
.notice { background: var(--accent-light); padding: 8px 12px; border-radius: 6px; margin: 12px 0; }
.button { display: inline-block; background: var(--accent); color: #fff; border: none; border-radius: 6px; padding: 6px 14px; cursor: pointer; font: inherit; }

.hero { margin-bottom: 32px; }
.lead { color: var(--text-muted); font-size: 1.1rem; }
.tab-cards { display: grid; grid-template-columns: repeat(auto-fill, minmax(180px, 1fr)); gap: 12px; margin-bottom: 40px; }
.tab-card { display: block; padding: 16px; border: 1px solid var(--border); border-radius: 8px; background: var(--bg-secondary); }

.about-tabs { display: flex; flex-wrap: wrap; gap: 12px; margin-bottom: 24px; }
.about-tabs a.current, .tag-chips a.current { font-weight: 700; text-decoration: underline; }
.about-layout { display: grid; grid-template-columns: var(--sidebar-width) 1fr; gap: 32px; }
.sidebar {
  position: sticky;
  top: 72px;
  align-self: start;
  max-height: calc(100vh - 96px);
  overflow-y: auto;
  background: var(--bg-sidebar);
  border-radius: 8px;
  padding: 12px;
}
.sidebar ul { list-style: none; }
.sidebar .nav-level-1, .sidebar .nav-level-2 { padding-left: 14px; }
.sidebar .nav-item > a { display: block; padding: 2px 8px; border-radius: 4px; color: var(--text); }
.sidebar .nav-item.active > a { background: var(--accent-light); color: var(--accent); font-weight: 600; }
.page-content section { scroll-margin-top: 80px; }
.page-content h1, .page-content h2, .page-content h3 { margin: 24px 0 8px; }
.page-content p, .page-content ul { margin-bottom: 12px; }
.page-content ul { padding-left: 24px; }
.page-content pre { padding: 12px; border-radius: 6px; overflow-x: auto; margin-bottom: 12px; }
.to-top { position: fixed; right: 24px; bottom: 24px; width: 40px; height: 40px; border-radius: 50%; border: none; background: var(--accent); color: #fff; cursor: pointer; }

.tag-chips { display: flex; flex-wrap: wrap; gap: 10px; margin: 12px 0 24px; }
.tag-chips span { color: var(--text-muted); font-size: 0.85rem; }
.post { border-bottom: 1px solid var(--border); padding: 16px 0; }
.reply-context { display: block; font-size: 0.85rem; color: var(--text-muted); margin-bottom: 6px; }
.post-body p { margin-bottom: 8px; }
.media img, .media video { max-width: 100%; border-radius: 8px; margin: 8px 0; }
.post-meta { display: flex; gap: 12px; font-size: 0.85rem; color: var(--text-muted); }
.post-meta a { color: var(--text-muted); }
.post-meta a.tag { color: var(--accent); }
.ancestors .post { opacity: 0.8; }
.focus .post { font-size: 1.1rem; }
.badge { display: inline-block; font-size: 0.75rem; padding: 0 8px; border-radius: 10px; background: var(--accent-light); }

.stats { display: flex; gap: 24px; list-style: none; margin: 16px 0; }
.admin-table { width: 100%; border-collapse: collapse; margin-top: 16px; }
.admin-table th, .admin-table td { text-align: left; padding: 8px; border-bottom: 1px solid var(--border); vertical-align: top; }
.admin-table td:first-child { max-width: 360px; overflow: hidden; text-overflow: ellipsis; white-space: nowrap; }
.status-draft { color: var(--text-muted); }
.status-scheduled { color: #f59f00; }
.status-published { color: #37b24d; }
.row-actions { white-space: nowrap; }

.compose textarea, .compose input[type=url], .compose input[type=text], .login input[type=email], .inline-form input {
  width: 100%; padding: 8px; border: 1px solid var(--border); border-radius: 6px; background: var(--bg); color: var(--text); font: inherit;
}
.compose fieldset { border: 1px solid var(--border); border-radius: 6px; padding: 12px; margin: 16px 0; }
.media-row { display: grid; grid-template-columns: 100px 1fr 1fr; gap: 8px; margin-bottom: 8px; }
.tag-option { margin-right: 12px; }
.inline-form { display: flex; gap: 8px; margin: 16px 0; }
.login { max-width: 360px; margin: 40px auto; }
.login form { display: flex; flex-direction: column; gap: 8px; }
.status-page { text-align: center; padding: 80px 0; }

@media (max-width: 768px) {
  .about-layout { grid-template-columns: 1fr; }
  .sidebar { position: static; max-height: none; }
}
`

// jsContent is the browser half of the section tracker: it reports anchor
// geometry over the websocket and applies the highlighted ids it gets
// back.
const jsContent = `(function() {
  "use strict";

  var html = document.documentElement;

  // ===== Theme toggle =====
  function setTheme(theme) {
    html.setAttribute("data-theme", theme);
    try { localStorage.setItem("folio-theme", theme); } catch (e) {}
  }
  var stored = null;
  try { stored = localStorage.getItem("folio-theme"); } catch (e) {}
  if (stored) {
    setTheme(stored);
  } else if (window.matchMedia && window.matchMedia("(prefers-color-scheme: dark)").matches) {
    setTheme("dark");
  }
  var themeToggle = document.getElementById("theme-toggle");
  if (themeToggle) {
    themeToggle.addEventListener("click", function() {
      setTheme(html.getAttribute("data-theme") === "dark" ? "light" : "dark");
    });
  }

  // ===== Confirmations =====
  document.querySelectorAll("form[data-confirm]").forEach(function(form) {
    form.addEventListener("submit", function(e) {
      if (!window.confirm(form.getAttribute("data-confirm"))) e.preventDefault();
    });
  });

  // ===== Compose helpers =====
  document.querySelectorAll("[data-tz-offset]").forEach(function(input) {
    input.value = String(new Date().getTimezoneOffset());
  });
  document.querySelectorAll("textarea[data-counter]").forEach(function(area) {
    var counter = document.getElementById(area.getAttribute("data-counter"));
    function update() { if (counter) counter.textContent = String(Array.from(area.value).length); }
    area.addEventListener("input", update);
    update();
  });

  // ===== Section tracker =====
  var sidebar = document.querySelector("[data-navspy]");
  if (!sidebar || !window.WebSocket) return;

  var toTop = document.getElementById("to-top");
  var ids = Array.from(sidebar.querySelectorAll("[data-nav-id]")).map(function(li) {
    return li.getAttribute("data-nav-id");
  });

  function measure() {
    var anchors = [];
    ids.forEach(function(id) {
      var el = document.getElementById(id);
      if (!el) return;
      var rect = el.getBoundingClientRect();
      anchors.push({ id: id, top: rect.top, bottom: rect.bottom });
    });
    return anchors;
  }

  function highlight(activeIDs) {
    var set = {};
    (activeIDs || []).forEach(function(id) { set[id] = true; });
    sidebar.querySelectorAll("[data-nav-id]").forEach(function(li) {
      li.classList.toggle("active", !!set[li.getAttribute("data-nav-id")]);
    });
    var current = sidebar.querySelector(".nav-item.active:not(.nav-group) > a") ||
      sidebar.querySelector(".nav-item.active > a");
    if (current && current.scrollIntoView) current.scrollIntoView({ block: "nearest" });
  }

  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(scheme + location.host + sidebar.getAttribute("data-navspy"));

  function send(msg) {
    if (ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify(msg));
  }

  ws.addEventListener("open", function() {
    send({ type: "layout", viewport_height: window.innerHeight, anchors: measure() });
  });

  ws.addEventListener("message", function(e) {
    var msg;
    try { msg = JSON.parse(e.data); } catch (err) { return; }
    if (msg.type === "active") {
      highlight(msg.active_ids);
    } else if (msg.type === "top_button" && toTop) {
      toTop.hidden = !msg.show;
    } else if (msg.type === "error" && window.console) {
      console.warn("navspy:", msg.message);
    }
  });

  var pending = false;
  window.addEventListener("scroll", function() {
    if (pending) return;
    pending = true;
    window.requestAnimationFrame(function() {
      pending = false;
      send({ type: "scroll", viewport_height: window.innerHeight, anchors: measure(), scroll_y: window.scrollY });
    });
  }, { passive: true });

  window.addEventListener("resize", function() {
    send({ type: "layout", viewport_height: window.innerHeight, anchors: measure() });
  });

  sidebar.addEventListener("click", function(e) {
    var link = e.target.closest("[data-nav-link]");
    if (!link) return;
    var id = link.getAttribute("data-nav-link");
    var target = document.getElementById(id);
    if (!target) return;
    e.preventDefault();
    send({ type: "select", id: id });
    target.scrollIntoView({ behavior: "smooth", block: "start" });
    history.replaceState(null, "", "#" + id);
  });

  if (toTop) {
    toTop.addEventListener("click", function() {
      window.scrollTo({ top: 0, behavior: "smooth" });
    });
  }
})();
`
