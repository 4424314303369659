package site

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/folio/internal/posts"
)

// createPost validates d and stores it as a new post by userID.
func (s *Site) createPost(ctx context.Context, d posts.Draft, userID string) (*posts.Post, error) {
	if d.ParentID != "" {
		if _, err := s.store.Get(ctx, d.ParentID); err != nil {
			if errors.Is(err, posts.ErrNotFound) {
				return nil, fmt.Errorf("%w: reply target %s not found", posts.ErrInvalid, d.ParentID)
			}
			return nil, err
		}
	}
	p, err := posts.Compose(d, userID, s.now())
	if err != nil {
		return nil, err
	}
	p.Tags = tagRefs(d.TagIDs)
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// updatePost applies d to post id and replaces its tags.
func (s *Site) updatePost(ctx context.Context, id string, d posts.Draft) (*posts.Post, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := posts.Revise(existing, d, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}
	if err := s.store.SetTags(ctx, p.ID, d.TagIDs); err != nil {
		return nil, err
	}
	p.Tags = tagRefs(d.TagIDs)
	return p, nil
}

// createTag validates name against the existing tags and stores it.
func (s *Site) createTag(ctx context.Context, name string) (posts.Tag, error) {
	existing, err := s.store.Tags(ctx)
	if err != nil {
		return posts.Tag{}, err
	}
	tag, err := posts.NewTag(name, existing)
	if err != nil {
		return posts.Tag{}, err
	}
	return s.store.CreateTag(ctx, tag.Name, tag.Slug)
}

func tagRefs(ids []int64) []posts.Tag {
	if len(ids) == 0 {
		return nil
	}
	tags := make([]posts.Tag, len(ids))
	for i, id := range ids {
		tags[i] = posts.Tag{ID: id}
	}
	return tags
}

// scheduleLayout is the format of a datetime-local input.
const scheduleLayout = "2006-01-02T15:04"

// parseSchedule reads a datetime-local value in the author's time zone.
// offsetMinutes is the browser's getTimezoneOffset(): minutes to add to
// local time to reach UTC.
func parseSchedule(value, offsetMinutes string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(scheduleLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad schedule time %q", posts.ErrInvalid, value)
	}
	if offsetMinutes != "" {
		off, err := strconv.Atoi(offsetMinutes)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: bad time zone offset %q", posts.ErrInvalid, offsetMinutes)
		}
		t = t.Add(time.Duration(off) * time.Minute)
	}
	return t.UTC(), nil
}

// parseTagIDs converts form values into tag ids, skipping blanks.
func parseTagIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad tag id %q", posts.ErrInvalid, v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
