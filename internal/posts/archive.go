package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
)

// ArchiveVersion is the current export format.
const ArchiveVersion = 1

// Archive is a portable copy of every post and tag, used to move content
// between backends.
type Archive struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Tags       []Tag     `json:"tags"`
	Posts      []Post    `json:"posts"`
}

// Export reads every post and tag from store, oldest post first.
func Export(ctx context.Context, store Store, now time.Time) (*Archive, error) {
	tags, err := store.Tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	list, err := store.List(ctx, Filter{})
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	if tags == nil {
		tags = []Tag{}
	}
	if list == nil {
		list = []Post{}
	}
	return &Archive{Version: ArchiveVersion, ExportedAt: now.UTC(), Tags: tags, Posts: list}, nil
}

// Write encodes the archive as indented JSON.
func (a *Archive) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// ReadArchive decodes an archive and checks its version.
func ReadArchive(r io.Reader) (*Archive, error) {
	var a Archive
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding archive: %w", err)
	}
	if a.Version != ArchiveVersion {
		return nil, fmt.Errorf("%w: unsupported archive version %d", ErrInvalid, a.Version)
	}
	return &a, nil
}

// ImportResult counts what Import did.
type ImportResult struct {
	Created int
	Skipped int
	Tags    int
}

// Import writes the archive into store. Tags are matched by slug and
// created when missing. Posts that already exist are skipped; parents are
// written before their replies. progress, if set, is called after each
// post.
func Import(ctx context.Context, store Store, a *Archive, progress func(done int, p *Post)) (ImportResult, error) {
	var res ImportResult

	tagIDs := make(map[int64]int64, len(a.Tags))
	for _, t := range a.Tags {
		existing, err := store.TagBySlug(ctx, t.Slug)
		switch {
		case err == nil:
			tagIDs[t.ID] = existing.ID
		case errors.Is(err, ErrNotFound):
			created, err := store.CreateTag(ctx, t.Name, t.Slug)
			if err != nil {
				return res, fmt.Errorf("creating tag %q: %w", t.Slug, err)
			}
			tagIDs[t.ID] = created.ID
			res.Tags++
		default:
			return res, fmt.Errorf("looking up tag %q: %w", t.Slug, err)
		}
	}

	ordered, err := parentsFirst(a.Posts)
	if err != nil {
		return res, err
	}
	for i := range ordered {
		p := ordered[i]
		if _, err := store.Get(ctx, p.ID); err == nil {
			res.Skipped++
		} else if !errors.Is(err, ErrNotFound) {
			return res, fmt.Errorf("checking post %s: %w", p.ID, err)
		} else {
			p.Tags = remapTags(p.Tags, tagIDs)
			if err := store.Create(ctx, &p); err != nil {
				return res, fmt.Errorf("importing post %s: %w", p.ID, err)
			}
			res.Created++
		}
		if progress != nil {
			progress(i+1, &p)
		}
	}
	return res, nil
}

func remapTags(tags []Tag, ids map[int64]int64) []Tag {
	var out []Tag
	for _, t := range tags {
		if id, ok := ids[t.ID]; ok {
			out = append(out, Tag{ID: id, Name: t.Name, Slug: t.Slug})
		}
	}
	return out
}

// parentsFirst orders posts so every reply follows its parent. Replies to
// posts outside the archive keep their relative order. Every post needs
// an id.
func parentsFirst(list []Post) ([]Post, error) {
	index := make(map[string]int, len(list))
	for i, p := range list {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: archived post %d has no id", ErrInvalid, i)
		}
		index[p.ID] = i
	}

	out := make([]Post, 0, len(list))
	state := make([]uint8, len(list)) // 0 new, 1 visiting, 2 done
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case 1:
			return fmt.Errorf("%w: reply cycle at post %s", ErrInvalid, list[i].ID)
		case 2:
			return nil
		}
		state[i] = 1
		if j, ok := index[list[i].ParentID]; ok && list[i].ParentID != "" {
			if err := visit(j); err != nil {
				return err
			}
		}
		state[i] = 2
		out = append(out, list[i])
		return nil
	}
	for i := range list {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}
