package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/folio/internal/posts"
)

const (
	tweetsPath    = "/rest/v1/tweets"
	tagsPath      = "/rest/v1/tags"
	tweetTagsPath = "/rest/v1/tweet_tags"
	rpcPath       = "/rest/v1/rpc/"
)

// tweetSelect embeds each tweet's tags.
const tweetSelect = "id,user_id,content,media_attachments,parent_tweet_id,is_published,published_at," +
	"created_at,updated_at,view_count,like_count,tweet_tags(tags(id,name,slug))"

// PostStore implements posts.Store on the hosted tables.
type PostStore struct {
	c   *Client
	now func() time.Time
}

// Posts returns a posts.Store backed by the client.
func (c *Client) Posts() *PostStore {
	return &PostStore{c: c, now: time.Now}
}

type tagRow struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// tagRef is one embedded tweet_tags row. The embedded tag may arrive as
// an object or as a one-element array depending on relationship
// detection.
type tagRef struct {
	Tag *tagRow
}

func (r *tagRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		Tags json.RawMessage `json:"tags"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Tags) == 0 || string(raw.Tags) == "null" {
		return nil
	}
	if raw.Tags[0] == '[' {
		var list []tagRow
		if err := json.Unmarshal(raw.Tags, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			r.Tag = &list[0]
		}
		return nil
	}
	r.Tag = &tagRow{}
	return json.Unmarshal(raw.Tags, r.Tag)
}

type tweetRow struct {
	ID               string                  `json:"id,omitempty"`
	UserID           string                  `json:"user_id"`
	Content          *string                 `json:"content"`
	MediaAttachments []posts.MediaAttachment `json:"media_attachments"`
	ParentTweetID    *string                 `json:"parent_tweet_id"`
	IsPublished      bool                    `json:"is_published"`
	PublishedAt      *time.Time              `json:"published_at"`
	CreatedAt        *time.Time              `json:"created_at,omitempty"`
	UpdatedAt        *time.Time              `json:"updated_at,omitempty"`
	ViewCount        int                     `json:"view_count"`
	LikeCount        int                     `json:"like_count"`
	TweetTags        []tagRef                `json:"tweet_tags,omitempty"`
}

func (r *tweetRow) post() posts.Post {
	p := posts.Post{
		ID:          r.ID,
		UserID:      r.UserID,
		Media:       r.MediaAttachments,
		Published:   r.IsPublished,
		PublishedAt: r.PublishedAt,
		ViewCount:   r.ViewCount,
		LikeCount:   r.LikeCount,
	}
	if r.Content != nil {
		p.Content = *r.Content
	}
	if r.ParentTweetID != nil {
		p.ParentID = *r.ParentTweetID
	}
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	if r.UpdatedAt != nil {
		p.UpdatedAt = *r.UpdatedAt
	}
	for _, ref := range r.TweetTags {
		if ref.Tag != nil {
			p.Tags = append(p.Tags, posts.Tag(*ref.Tag))
		}
	}
	return p
}

func rowFrom(p *posts.Post) tweetRow {
	content := p.Content
	row := tweetRow{
		ID:               p.ID,
		UserID:           p.UserID,
		Content:          &content,
		MediaAttachments: p.Media,
		IsPublished:      p.Published,
		PublishedAt:      p.PublishedAt,
	}
	if row.MediaAttachments == nil {
		row.MediaAttachments = []posts.MediaAttachment{}
	}
	if p.ParentID != "" {
		parent := p.ParentID
		row.ParentTweetID = &parent
	}
	if !p.CreatedAt.IsZero() {
		row.CreatedAt = &p.CreatedAt
	}
	if !p.UpdatedAt.IsZero() {
		row.UpdatedAt = &p.UpdatedAt
	}
	return row
}

func (s *PostStore) queryTweets(ctx context.Context, q url.Values) ([]posts.Post, error) {
	q.Set("select", tweetSelect)
	var rows []tweetRow
	if err := s.c.do(ctx, request{method: http.MethodGet, path: tweetsPath, query: q}, &rows); err != nil {
		return nil, fmt.Errorf("querying tweets: %w", err)
	}
	list := make([]posts.Post, len(rows))
	for i := range rows {
		list[i] = rows[i].post()
	}
	return list, nil
}

// Get returns one tweet with its tags.
func (s *PostStore) Get(ctx context.Context, id string) (*posts.Post, error) {
	list, err := s.queryTweets(ctx, url.Values{"id": {eq(id)}, "limit": {"1"}})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, posts.ErrNotFound
	}
	return &list[0], nil
}

// List returns tweets matching f.
func (s *PostStore) List(ctx context.Context, f posts.Filter) ([]posts.Post, error) {
	q := url.Values{}
	if f.PublishedOnly {
		q.Set("is_published", "eq.true")
		q.Set("order", "published_at.desc,created_at.desc")
	} else {
		q.Set("order", "created_at.desc")
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Tag != "" {
		tag, err := s.TagBySlug(ctx, f.Tag)
		if errors.Is(err, posts.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		ids, err := s.taggedIDs(ctx, tag.ID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, nil
		}
		q.Set("id", in(ids))
	}
	return s.queryTweets(ctx, q)
}

func (s *PostStore) taggedIDs(ctx context.Context, tagID int64) ([]string, error) {
	var rows []struct {
		TweetID string `json:"tweet_id"`
	}
	q := url.Values{"select": {"tweet_id"}, "tag_id": {eq(strconv.FormatInt(tagID, 10))}}
	if err := s.c.do(ctx, request{method: http.MethodGet, path: tweetTagsPath, query: q}, &rows); err != nil {
		return nil, fmt.Errorf("querying tweet tags: %w", err)
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.TweetID
	}
	return ids, nil
}

// Replies returns the direct replies to parentID, oldest first.
func (s *PostStore) Replies(ctx context.Context, parentID string, publishedOnly bool) ([]posts.Post, error) {
	q := url.Values{
		"parent_tweet_id": {eq(parentID)},
		"order":           {"published_at.asc.nullslast,created_at.asc"},
	}
	if publishedOnly {
		q.Set("is_published", "eq.true")
	}
	return s.queryTweets(ctx, q)
}

// ReplyCounts counts published replies per parent.
func (s *PostStore) ReplyCounts(ctx context.Context, ids []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(ids) == 0 {
		return counts, nil
	}
	var rows []struct {
		ParentTweetID string `json:"parent_tweet_id"`
	}
	q := url.Values{
		"select":          {"parent_tweet_id"},
		"parent_tweet_id": {in(ids)},
		"is_published":    {"eq.true"},
	}
	if err := s.c.do(ctx, request{method: http.MethodGet, path: tweetsPath, query: q}, &rows); err != nil {
		return nil, fmt.Errorf("counting replies: %w", err)
	}
	for _, r := range rows {
		counts[r.ParentTweetID]++
	}
	return counts, nil
}

// Create inserts p and links its tags.
func (s *PostStore) Create(ctx context.Context, p *posts.Post) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now().UTC()
	}
	var created []tweetRow
	err := s.c.do(ctx, request{
		method:         http.MethodPost,
		path:           tweetsPath,
		query:          url.Values{"select": {"id,created_at"}},
		body:           rowFrom(p),
		representation: true,
	}, &created)
	if err != nil {
		return fmt.Errorf("inserting tweet: %w", err)
	}
	if len(created) == 0 {
		return fmt.Errorf("inserting tweet: no row returned")
	}
	p.ID = created[0].ID
	if created[0].CreatedAt != nil {
		p.CreatedAt = *created[0].CreatedAt
	}
	if len(p.Tags) > 0 {
		return s.insertTags(ctx, p.ID, p.TagIDs())
	}
	return nil
}

// Update writes the editable fields of p.
func (s *PostStore) Update(ctx context.Context, p *posts.Post) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now().UTC()
	}
	content := p.Content
	media := p.Media
	if media == nil {
		media = []posts.MediaAttachment{}
	}
	patch := map[string]any{
		"content":           &content,
		"media_attachments": media,
		"is_published":      p.Published,
		"published_at":      p.PublishedAt,
		"updated_at":        p.UpdatedAt,
	}
	return s.mutateOne(ctx, http.MethodPatch, p.ID, patch)
}

// Delete removes a tweet. Tag links cascade on the server.
func (s *PostStore) Delete(ctx context.Context, id string) error {
	return s.mutateOne(ctx, http.MethodDelete, id, nil)
}

func (s *PostStore) mutateOne(ctx context.Context, method, id string, body any) error {
	var rows []struct {
		ID string `json:"id"`
	}
	err := s.c.do(ctx, request{
		method:         method,
		path:           tweetsPath,
		query:          url.Values{"id": {eq(id)}, "select": {"id"}},
		body:           body,
		representation: true,
	}, &rows)
	if err != nil {
		return fmt.Errorf("%s tweet %s: %w", strings.ToLower(method), id, err)
	}
	if len(rows) == 0 {
		return posts.ErrNotFound
	}
	return nil
}

// IncrementViews calls the increment_view_count function.
func (s *PostStore) IncrementViews(ctx context.Context, id string) error {
	err := s.c.do(ctx, request{
		method: http.MethodPost,
		path:   rpcPath + "increment_view_count",
		body:   map[string]string{"tweet_id": id},
	}, nil)
	if err != nil {
		return fmt.Errorf("incrementing views for %s: %w", id, err)
	}
	return nil
}

// PublishDue publishes scheduled tweets that are due.
func (s *PostStore) PublishDue(ctx context.Context, now time.Time) (int, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	q := url.Values{
		"is_published": {"eq.false"},
		"published_at": {"lte." + now.UTC().Format(time.RFC3339)},
		"select":       {"id"},
	}
	err := s.c.do(ctx, request{
		method:         http.MethodPatch,
		path:           tweetsPath,
		query:          q,
		body:           map[string]any{"is_published": true, "updated_at": now.UTC()},
		representation: true,
	}, &rows)
	if err != nil {
		return 0, fmt.Errorf("publishing due tweets: %w", err)
	}
	return len(rows), nil
}

// Tags returns all tags ordered by name.
func (s *PostStore) Tags(ctx context.Context) ([]posts.Tag, error) {
	var rows []tagRow
	q := url.Values{"select": {"id,name,slug"}, "order": {"name.asc"}}
	if err := s.c.do(ctx, request{method: http.MethodGet, path: tagsPath, query: q}, &rows); err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	tags := make([]posts.Tag, len(rows))
	for i, r := range rows {
		tags[i] = posts.Tag(r)
	}
	return tags, nil
}

// TagCounts returns every tag with its tweet count.
func (s *PostStore) TagCounts(ctx context.Context) ([]posts.TagCount, error) {
	var rows []struct {
		tagRow
		TweetTags []struct {
			Count int `json:"count"`
		} `json:"tweet_tags"`
	}
	q := url.Values{"select": {"id,name,slug,tweet_tags(count)"}, "order": {"name.asc"}}
	if err := s.c.do(ctx, request{method: http.MethodGet, path: tagsPath, query: q}, &rows); err != nil {
		return nil, fmt.Errorf("counting tags: %w", err)
	}
	counts := make([]posts.TagCount, len(rows))
	for i, r := range rows {
		counts[i] = posts.TagCount{Tag: posts.Tag(r.tagRow)}
		if len(r.TweetTags) > 0 {
			counts[i].Posts = r.TweetTags[0].Count
		}
	}
	return counts, nil
}

// TagBySlug looks a tag up by slug.
func (s *PostStore) TagBySlug(ctx context.Context, slug string) (posts.Tag, error) {
	var rows []tagRow
	q := url.Values{"select": {"id,name,slug"}, "slug": {eq(slug)}, "limit": {"1"}}
	if err := s.c.do(ctx, request{method: http.MethodGet, path: tagsPath, query: q}, &rows); err != nil {
		return posts.Tag{}, fmt.Errorf("getting tag %s: %w", slug, err)
	}
	if len(rows) == 0 {
		return posts.Tag{}, posts.ErrNotFound
	}
	return posts.Tag(rows[0]), nil
}

// CreateTag inserts a tag after checking for a duplicate slug or name.
func (s *PostStore) CreateTag(ctx context.Context, name, slug string) (posts.Tag, error) {
	existing, err := s.Tags(ctx)
	if err != nil {
		return posts.Tag{}, err
	}
	for _, t := range existing {
		if t.Slug == slug || strings.EqualFold(t.Name, name) {
			return posts.Tag{}, fmt.Errorf("%w: tag %q already exists", posts.ErrInvalid, t.Name)
		}
	}

	var rows []tagRow
	err = s.c.do(ctx, request{
		method:         http.MethodPost,
		path:           tagsPath,
		query:          url.Values{"select": {"id,name,slug"}},
		body:           map[string]string{"name": name, "slug": slug},
		representation: true,
	}, &rows)
	if err != nil {
		return posts.Tag{}, fmt.Errorf("inserting tag: %w", err)
	}
	if len(rows) == 0 {
		return posts.Tag{}, fmt.Errorf("inserting tag: no row returned")
	}
	return posts.Tag(rows[0]), nil
}

// DeleteTag removes a tag. Tag links cascade on the server.
func (s *PostStore) DeleteTag(ctx context.Context, id int64) error {
	var rows []struct {
		ID int64 `json:"id"`
	}
	err := s.c.do(ctx, request{
		method:         http.MethodDelete,
		path:           tagsPath,
		query:          url.Values{"id": {eq(strconv.FormatInt(id, 10))}, "select": {"id"}},
		representation: true,
	}, &rows)
	if err != nil {
		return fmt.Errorf("deleting tag %d: %w", id, err)
	}
	if len(rows) == 0 {
		return posts.ErrNotFound
	}
	return nil
}

// SetTags replaces a tweet's tags: delete all links, then insert.
func (s *PostStore) SetTags(ctx context.Context, postID string, tagIDs []int64) error {
	err := s.c.do(ctx, request{
		method: http.MethodDelete,
		path:   tweetTagsPath,
		query:  url.Values{"tweet_id": {eq(postID)}},
	}, nil)
	if err != nil {
		return fmt.Errorf("clearing tags of %s: %w", postID, err)
	}
	if len(tagIDs) == 0 {
		return nil
	}
	return s.insertTags(ctx, postID, tagIDs)
}

func (s *PostStore) insertTags(ctx context.Context, postID string, tagIDs []int64) error {
	type link struct {
		TweetID string `json:"tweet_id"`
		TagID   int64  `json:"tag_id"`
	}
	links := make([]link, len(tagIDs))
	for i, id := range tagIDs {
		links[i] = link{TweetID: postID, TagID: id}
	}
	if err := s.c.do(ctx, request{method: http.MethodPost, path: tweetTagsPath, body: links}, nil); err != nil {
		return fmt.Errorf("linking tags to %s: %w", postID, err)
	}
	return nil
}

var _ posts.Store = (*PostStore)(nil)
