// Package posts holds the short-post domain: composing, threading, tag
// management and the Store that persists them.
package posts

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a post or tag does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("posts: not found")
	// ErrInvalid is returned when input fails validation.
	ErrInvalid = errors.New("posts: invalid input")
)

// MediaType is the kind of a media attachment.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaLink  MediaType = "link"
)

// MediaAttachment is an image, video or link shown under a post.
type MediaAttachment struct {
	Type      MediaType `json:"type"`
	URL       string    `json:"url"`
	Alt       string    `json:"alt,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
}

// Tag labels posts. Slugs are used in URLs.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// TagCount is a tag with the number of posts carrying it.
type TagCount struct {
	Tag
	Posts int `json:"posts"`
}

// Post is a short post, optionally a reply to another post.
type Post struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Content     string            `json:"content"`
	Media       []MediaAttachment `json:"media_attachments"`
	ParentID    string            `json:"parent_tweet_id,omitempty"`
	Published   bool              `json:"is_published"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	ViewCount   int               `json:"view_count"`
	LikeCount   int               `json:"like_count"`
	Tags        []Tag             `json:"tags,omitempty"`
}

// Status is a post's lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

// Status derives the lifecycle state at now.
func (p *Post) Status(now time.Time) Status {
	if p.Published {
		return StatusPublished
	}
	if p.PublishedAt != nil && p.PublishedAt.After(now) {
		return StatusScheduled
	}
	return StatusDraft
}

// VisibleTo reports whether the post may be shown to a viewer.
func (p *Post) VisibleTo(admin bool) bool {
	return admin || p.Published
}

// SortTime is the time a post is ordered by: its publish time when set,
// otherwise its creation time.
func (p *Post) SortTime() time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

// TagIDs returns the ids of the post's tags.
func (p *Post) TagIDs() []int64 {
	ids := make([]int64, 0, len(p.Tags))
	for _, t := range p.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// Filter narrows List results.
type Filter struct {
	// Tag is a tag slug; empty means any tag.
	Tag string
	// PublishedOnly hides drafts and scheduled posts and orders by
	// publish time. Otherwise posts are ordered by creation time.
	PublishedOnly bool
	Limit         int
}

// Store persists posts and tags.
type Store interface {
	Get(ctx context.Context, id string) (*Post, error)
	List(ctx context.Context, f Filter) ([]Post, error)
	// Replies returns the direct replies to parentID, oldest first.
	Replies(ctx context.Context, parentID string, publishedOnly bool) ([]Post, error)
	// ReplyCounts returns the number of published replies per post id.
	ReplyCounts(ctx context.Context, ids []string) (map[string]int, error)
	// Create stores p, filling in ID and timestamps when empty.
	Create(ctx context.Context, p *Post) error
	Update(ctx context.Context, p *Post) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
	// PublishDue publishes scheduled posts whose publish time is at or
	// before now and returns how many changed.
	PublishDue(ctx context.Context, now time.Time) (int, error)

	Tags(ctx context.Context) ([]Tag, error)
	TagCounts(ctx context.Context) ([]TagCount, error)
	TagBySlug(ctx context.Context, slug string) (Tag, error)
	CreateTag(ctx context.Context, name, slug string) (Tag, error)
	DeleteTag(ctx context.Context, id int64) error
	// SetTags replaces the post's tags.
	SetTags(ctx context.Context, postID string, tagIDs []int64) error
}
