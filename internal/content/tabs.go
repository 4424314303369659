package content

import (
	"github.com/ziadkadry99/folio/internal/navspy"
)

// Subtab is a section link within an about page.
type Subtab struct {
	Label    string
	Anchor   string
	Children []Subtab
}

// Tab is one about page.
type Tab struct {
	Label   string
	Slug    string
	Subtabs []Subtab
}

// Href is the page URL.
func (t Tab) Href() string { return "/about/" + t.Slug }

// ContentID is the id of the section wrapping the whole page.
func (t Tab) ContentID() string { return t.Slug + "-content" }

// Tabs is the about-page navigation in display order.
var Tabs = []Tab{
	{
		Label: "Coding",
		Slug:  "coding",
		Subtabs: []Subtab{
			{Label: "Projects", Anchor: "projects"},
			{Label: "Languages", Anchor: "languages", Children: []Subtab{
				{Label: "Python", Anchor: "python"},
				{Label: "Rust", Anchor: "rust"},
				{Label: "Others", Anchor: "others"},
			}},
			{Label: "Frameworks", Anchor: "frameworks"},
			{Label: "Tools", Anchor: "tools"},
		},
	},
	{
		Label: "Polyglot",
		Slug:  "language-nerd",
		Subtabs: []Subtab{
			{Label: "Mandarin", Anchor: "mandarin"},
			{Label: "English", Anchor: "english"},
			{Label: "German", Anchor: "german"},
			{Label: "French", Anchor: "french"},
			{Label: "Japanese", Anchor: "japanese"},
			{Label: "Latin", Anchor: "latin"},
			{Label: "Sanskrit", Anchor: "sanskrit"},
		},
	},
	{
		Label: "Social Activity",
		Slug:  "social-activity",
		Subtabs: []Subtab{
			{Label: "Kaifeng", Anchor: "kaifeng"},
			{Label: "Volunteering", Anchor: "volunteering"},
			{Label: "Animals on Campus", Anchor: "animal-on-campus"},
		},
	},
	{
		Label: "Life",
		Slug:  "life",
		Subtabs: []Subtab{
			{Label: "Mental Health", Anchor: "mental-health"},
			{Label: "Cooking", Anchor: "cooking"},
			{Label: "Travel", Anchor: "travel"},
			{Label: "Sports", Anchor: "sports"},
			{Label: "Gaming", Anchor: "gaming"},
			{Label: "Films", Anchor: "films"},
			{Label: "TV Series", Anchor: "tv-series"},
			{Label: "Ceramics", Anchor: "ceramics"},
		},
	},
}

// TabBySlug finds a tab.
func TabBySlug(slug string) (Tab, bool) {
	for _, t := range Tabs {
		if t.Slug == slug {
			return t, true
		}
	}
	return Tab{}, false
}

// NavTree returns the sidebar tree for every tab.
func NavTree() []navspy.NavItem {
	items := make([]navspy.NavItem, len(Tabs))
	for i, t := range Tabs {
		items[i] = t.NavItem()
	}
	return items
}

// NavTreeFor returns the sidebar tree for one page, or every tab when
// slug is empty.
func NavTreeFor(slug string) ([]navspy.NavItem, bool) {
	if slug == "" {
		return NavTree(), true
	}
	t, ok := TabBySlug(slug)
	if !ok {
		return nil, false
	}
	return []navspy.NavItem{t.NavItem()}, true
}

// NavItem converts the tab into a navigation group anchored at its
// content section.
func (t Tab) NavItem() navspy.NavItem {
	return navspy.NavItem{ID: t.ContentID(), Label: t.Label, Children: subtabItems(t.Subtabs)}
}

func subtabItems(subs []Subtab) []navspy.NavItem {
	if len(subs) == 0 {
		return nil
	}
	items := make([]navspy.NavItem, len(subs))
	for i, s := range subs {
		items[i] = navspy.NavItem{ID: s.Anchor, Label: s.Label, Children: subtabItems(s.Children)}
	}
	return items
}
