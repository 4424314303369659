// Package content renders the about pages from Markdown and describes
// their navigation tree.
package content

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed pages/*.md
var embedded embed.FS

// Embedded returns the built-in about pages.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "pages")
	if err != nil {
		panic(err)
	}
	return sub
}

// Page is one rendered about page.
type Page struct {
	Slug  string
	Title string
	// HTML wraps every heading and its content in a section carrying the
	// heading's id, inside an outer <slug>-content section.
	HTML template.HTML
	// Anchors lists every element id in document order.
	Anchors []string
}

// Library holds the rendered about pages in tab order.
type Library struct {
	pages []*Page
	index map[string]*Page
}

// NewMarkdown returns the goldmark converter used for about pages.
func NewMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
}

// Load renders <slug>.md from fsys for every tab.
func Load(fsys fs.FS) (*Library, error) {
	md := NewMarkdown()
	lib := &Library{index: make(map[string]*Page)}
	for _, tab := range Tabs {
		src, err := fs.ReadFile(fsys, tab.Slug+".md")
		if err != nil {
			return nil, fmt.Errorf("reading %s page: %w", tab.Slug, err)
		}
		page, err := render(md, tab, src)
		if err != nil {
			return nil, fmt.Errorf("rendering %s page: %w", tab.Slug, err)
		}
		lib.pages = append(lib.pages, page)
		lib.index[page.Slug] = page
	}
	return lib, nil
}

func render(md goldmark.Markdown, tab Tab, src []byte) (*Page, error) {
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	body, err := Sectionize(buf.String(), tab.ContentID())
	if err != nil {
		return nil, err
	}
	anchors, err := Anchors(body)
	if err != nil {
		return nil, err
	}
	title := extractTitle(string(src))
	if title == "" {
		title = tab.Label
	}
	return &Page{
		Slug:    tab.Slug,
		Title:   title,
		HTML:    template.HTML(body),
		Anchors: anchors,
	}, nil
}

// Pages returns the pages in tab order.
func (l *Library) Pages() []*Page { return l.pages }

// Page returns the page with the given slug.
func (l *Library) Page(slug string) (*Page, bool) {
	p, ok := l.index[slug]
	return p, ok
}

// All concatenates every page into the combined about page.
func (l *Library) All() *Page {
	all := &Page{Slug: "", Title: "About"}
	var b strings.Builder
	for _, p := range l.pages {
		b.WriteString(string(p.HTML))
		b.WriteString("\n")
		all.Anchors = append(all.Anchors, p.Anchors...)
	}
	all.HTML = template.HTML(b.String())
	return all
}

// extractTitle pulls the first # heading, dropping any attribute block.
func extractTitle(src string) string {
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			title := strings.TrimPrefix(line, "# ")
			if i := strings.Index(title, "{"); i > 0 {
				title = title[:i]
			}
			return strings.TrimSpace(title)
		}
	}
	return ""
}
