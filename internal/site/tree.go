package site

import (
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/ziadkadry99/folio/internal/navspy"
)

// RenderNav renders the sidebar tree as nested <ul><li> HTML. Entries are
// marked active the way the tracker resolves them: top-level entries when
// activeID is the entry or inside it, nested entries on an exact match.
// basePath is the page the fragment links point into.
func RenderNav(items []navspy.NavItem, activeID, basePath string) template.HTML {
	var b strings.Builder
	renderNavItems(&b, items, items, activeID, basePath, 0)
	return template.HTML(b.String())
}

func renderNavItems(b *strings.Builder, tree, items []navspy.NavItem, activeID, basePath string, level int) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, `<ul class="nav-level-%d">`+"\n", level)
	for _, item := range items {
		classes := "nav-item"
		if len(item.Children) > 0 {
			classes += " nav-group"
		}
		if navspy.IsActive(tree, activeID, item.ID) {
			classes += " active"
		}
		id := html.EscapeString(item.ID)
		fmt.Fprintf(b, `<li class="%s" data-nav-id="%s"><a href="%s#%s" data-nav-link="%s">%s</a>`,
			classes, id, html.EscapeString(basePath), id, id, html.EscapeString(item.Label))
		if len(item.Children) > 0 {
			b.WriteString("\n")
			renderNavItems(b, tree, item.Children, activeID, basePath, level+1)
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ul>\n")
}

// ActiveIDs returns every id in the tree that renders as active for
// activeID, in document order.
func ActiveIDs(items []navspy.NavItem, activeID string) []string {
	ids := []string{}
	for _, id := range navspy.Flatten(items) {
		if navspy.IsActive(items, activeID, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
