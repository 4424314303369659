package posts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func TestComposeTrimsAndPublishes(t *testing.T) {
	p, err := Compose(Draft{Content: "  hello world \n", Mode: ModePublish}, "u1", now)
	require.NoError(t, err)

	assert.Equal(t, "hello world", p.Content)
	assert.Equal(t, "u1", p.UserID)
	assert.True(t, p.Published)
	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, now, *p.PublishedAt)
	assert.Equal(t, StatusPublished, p.Status(now))
}

func TestComposeDraft(t *testing.T) {
	p, err := Compose(Draft{Content: "later"}, "u1", now)
	require.NoError(t, err)
	assert.False(t, p.Published)
	assert.Nil(t, p.PublishedAt)
	assert.Equal(t, StatusDraft, p.Status(now))
}

func TestComposeSchedule(t *testing.T) {
	at := now.Add(48 * time.Hour)
	p, err := Compose(Draft{Content: "soon", Mode: ModeSchedule, ScheduleAt: at}, "u1", now)
	require.NoError(t, err)

	assert.False(t, p.Published)
	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, at, *p.PublishedAt)
	assert.Equal(t, StatusScheduled, p.Status(now))
	// Once the time passes without publishing it reads as a draft.
	assert.Equal(t, StatusDraft, p.Status(at.Add(time.Minute)))
}

func TestComposeSchedulePastPublishesNow(t *testing.T) {
	p, err := Compose(Draft{Content: "late", Mode: ModeSchedule, ScheduleAt: now.Add(-time.Hour)}, "u1", now)
	require.NoError(t, err)
	assert.True(t, p.Published)
	assert.Equal(t, now, *p.PublishedAt)
}

func TestComposeValidation(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
	}{
		{"empty", Draft{Content: "   "}},
		{"too long", Draft{Content: strings.Repeat("a", MaxContentLength+1)}},
		{"bad mode", Draft{Content: "x", Mode: "shout"}},
		{"schedule without time", Draft{Content: "x", Mode: ModeSchedule}},
		{"relative media url", Draft{Media: []MediaAttachment{{Type: MediaImage, URL: "/img.png"}}}},
		{"media scheme", Draft{Media: []MediaAttachment{{Type: MediaLink, URL: "javascript:alert(1)"}}}},
		{"media type", Draft{Media: []MediaAttachment{{Type: "gif", URL: "https://x.test/a.gif"}}}},
		{"thumbnail", Draft{Media: []MediaAttachment{{Type: MediaVideo, URL: "https://x.test/v", Thumbnail: "ftp://x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose(tt.draft, "u1", now)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestComposeLimitCountsCharacters(t *testing.T) {
	// 500 multi-byte characters are within the limit.
	_, err := Compose(Draft{Content: strings.Repeat("é", MaxContentLength)}, "u1", now)
	assert.NoError(t, err)
}

func TestComposeMediaOnly(t *testing.T) {
	p, err := Compose(Draft{Media: []MediaAttachment{{Type: MediaImage, URL: "https://img.test/a.png", Alt: "a"}}}, "u1", now)
	require.NoError(t, err)
	assert.Empty(t, p.Content)
	assert.Len(t, p.Media, 1)
}

func TestReviseKeepsIdentity(t *testing.T) {
	created := now.Add(-24 * time.Hour)
	existing := &Post{
		ID: "p1", UserID: "u1", ParentID: "root", Content: "old",
		CreatedAt: created, ViewCount: 7, Published: true, PublishedAt: &created,
	}
	p, err := Revise(existing, Draft{Content: "new", Mode: ModeDraft}, now)
	require.NoError(t, err)

	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "root", p.ParentID)
	assert.Equal(t, 7, p.ViewCount)
	assert.Equal(t, created, p.CreatedAt)
	assert.Equal(t, now, p.UpdatedAt)
	assert.False(t, p.Published)
	// The original is untouched.
	assert.Equal(t, "old", existing.Content)
	assert.True(t, existing.Published)
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Go":                 "go",
		"  Machine Learning ": "machine-learning",
		"C++ & Rust!":        "c-rust",
		"snake_case__name":   "snake-case-name",
		"--edge--":           "edge",
		"!!!":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), "Slug(%q)", in)
	}
}

func TestNewTag(t *testing.T) {
	existing := []Tag{{ID: 1, Name: "Travel", Slug: "travel"}}

	tag, err := NewTag(" Life Notes ", existing)
	require.NoError(t, err)
	assert.Equal(t, Tag{Name: "Life Notes", Slug: "life-notes"}, tag)

	_, err = NewTag("travel", existing)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = NewTag("TRAVEL!", existing)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = NewTag("", existing)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = NewTag("%%%", existing)
	assert.ErrorIs(t, err, ErrInvalid)
}
