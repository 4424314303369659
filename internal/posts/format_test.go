package posts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m"},
		{59 * time.Minute, "59m"},
		{3 * time.Hour, "3h"},
		{2 * 24 * time.Hour, "2d"},
		{10 * 24 * time.Hour, "Jun 5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(now.Add(-tt.ago), now))
	}

	lastYear := time.Date(2024, 12, 24, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "Dec 24, 2024", RelativeTime(lastYear, now))
}

func TestAdminTime(t *testing.T) {
	assert.Equal(t, "Jun 15, 2025, 10:00 AM", AdminTime(now))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", Excerpt("short\n\n  text", 160))

	long := strings.Repeat("word ", 50)
	got := Excerpt(long, DescriptionLength)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, DescriptionLength+3, len([]rune(got)))
}

func TestDescriptionAndTitle(t *testing.T) {
	assert.Equal(t, "A post", Description(&Post{}))
	assert.Equal(t, "A post | Posts", Title(&Post{}))

	p := &Post{Content: strings.Repeat("x", 100)}
	assert.Equal(t, strings.Repeat("x", 60)+" | Posts", Title(p))
}

func TestRendererSanitizes(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("**bold** <script>alert(1)</script> [link](https://example.com)")
	assert.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, `href="https://example.com"`)
	assert.Contains(t, html, "nofollow")
}

func TestRendererHighlightsCode(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("```go\nfunc main() {}\n```")
	assert.NoError(t, err)
	assert.Contains(t, string(out), "<pre")
	assert.Contains(t, string(out), "main")
}
