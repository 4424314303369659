package posts

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DescriptionLength is the meta description limit in characters.
const DescriptionLength = 160

// titleLength is how much of the description a page title keeps.
const titleLength = 60

// RelativeTime formats t for a timeline as seen at now.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 2")
	}
	return t.Format("Jan 2, 2006")
}

// AdminTime formats t for the admin listing.
func AdminTime(t time.Time) string {
	return t.Format("Jan 2, 2006, 03:04 PM")
}

// Description returns the meta description for a post.
func Description(p *Post) string {
	if p.Content == "" {
		return "A post"
	}
	return Excerpt(p.Content, DescriptionLength)
}

// Title returns the page title for a post.
func Title(p *Post) string {
	return truncate(Description(p), titleLength) + " | Posts"
}

// Excerpt collapses whitespace in s and cuts it to n characters, adding
// an ellipsis when anything was dropped.
func Excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return truncate(s, n) + "..."
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
