package posts

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxContentLength is the longest accepted post body, in characters.
const MaxContentLength = 500

// Mode is what the author asked to do with a draft.
type Mode string

const (
	ModeDraft    Mode = "draft"
	ModePublish  Mode = "publish"
	ModeSchedule Mode = "schedule"
)

// Draft is the author's input from the compose form or API.
type Draft struct {
	Content    string            `json:"content"`
	Media      []MediaAttachment `json:"media_attachments,omitempty"`
	ParentID   string            `json:"parent_tweet_id,omitempty"`
	Mode       Mode              `json:"mode"`
	ScheduleAt time.Time         `json:"schedule_at,omitempty"`
	TagIDs     []int64           `json:"tag_ids,omitempty"`
}

// Compose validates d and builds a new post owned by userID.
func Compose(d Draft, userID string, now time.Time) (*Post, error) {
	p := &Post{UserID: userID, ParentID: d.ParentID, CreatedAt: now}
	if err := apply(p, d, now); err != nil {
		return nil, err
	}
	return p, nil
}

// Revise applies d to a copy of existing. Identity, thread position and
// counters are kept.
func Revise(existing *Post, d Draft, now time.Time) (*Post, error) {
	p := *existing
	p.Media = nil
	if err := apply(&p, d, now); err != nil {
		return nil, err
	}
	return &p, nil
}

func apply(p *Post, d Draft, now time.Time) error {
	content := strings.TrimSpace(d.Content)
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return fmt.Errorf("%w: content is %d characters, limit is %d", ErrInvalid, n, MaxContentLength)
	}
	if content == "" && len(d.Media) == 0 {
		return fmt.Errorf("%w: a post needs content or media", ErrInvalid)
	}
	for i, m := range d.Media {
		if err := validateMedia(m); err != nil {
			return fmt.Errorf("%w: media %d: %v", ErrInvalid, i, err)
		}
	}

	p.Content = content
	p.Media = append([]MediaAttachment(nil), d.Media...)
	p.UpdatedAt = now

	switch d.Mode {
	case ModeDraft, "":
		p.Published = false
		p.PublishedAt = nil
	case ModePublish:
		p.Published = true
		p.PublishedAt = timePtr(now)
	case ModeSchedule:
		if d.ScheduleAt.IsZero() {
			return fmt.Errorf("%w: schedule requires a publish time", ErrInvalid)
		}
		if !d.ScheduleAt.After(now) {
			// A time already passed publishes immediately.
			p.Published = true
			p.PublishedAt = timePtr(now)
			break
		}
		p.Published = false
		p.PublishedAt = timePtr(d.ScheduleAt.UTC())
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, d.Mode)
	}
	return nil
}

func validateMedia(m MediaAttachment) error {
	switch m.Type {
	case MediaImage, MediaVideo, MediaLink:
	default:
		return fmt.Errorf("unknown type %q", m.Type)
	}
	if err := absoluteHTTP(m.URL); err != nil {
		return err
	}
	if m.Thumbnail != "" {
		if err := absoluteHTTP(m.Thumbnail); err != nil {
			return fmt.Errorf("thumbnail: %v", err)
		}
	}
	return nil
}

func absoluteHTTP(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("bad url %q", raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be absolute http(s)", raw)
	}
	return nil
}

func timePtr(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[\s_-]+`)
)

// Slug turns a tag name into a URL-safe slug.
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NewTag validates name against the existing tags and returns the tag to
// create. A tag with the same slug or the same name, ignoring case, is a
// duplicate.
func NewTag(name string, existing []Tag) (Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tag{}, fmt.Errorf("%w: tag name is required", ErrInvalid)
	}
	slug := Slug(name)
	if slug == "" {
		return Tag{}, fmt.Errorf("%w: tag name %q has no usable characters", ErrInvalid, name)
	}
	for _, t := range existing {
		if t.Slug == slug || strings.EqualFold(t.Name, name) {
			return Tag{}, fmt.Errorf("%w: tag %q already exists", ErrInvalid, t.Name)
		}
	}
	return Tag{Name: name, Slug: slug}, nil
}
