package posts

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// maxAncestors bounds the parent walk.
const maxAncestors = 64

// Thread is a post with its visible parent chain and direct replies.
type Thread struct {
	// Ancestors runs from the thread root down to the post's parent.
	Ancestors []Post `json:"ancestors"`
	Post      Post   `json:"post"`
	// Replies are oldest first.
	Replies []Post `json:"replies"`
}

// LoadThread fetches post id with its ancestors and replies. Unpublished
// posts are ErrNotFound unless admin is set. The ancestor walk stops at
// the first missing or unpublished parent.
func LoadThread(ctx context.Context, store Store, id string, admin bool) (*Thread, error) {
	post, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.VisibleTo(admin) {
		return nil, ErrNotFound
	}

	th := &Thread{Post: *post}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ancestors, err := ancestorsOf(gctx, store, post)
		if err != nil {
			return fmt.Errorf("loading ancestors: %w", err)
		}
		th.Ancestors = ancestors
		return nil
	})
	g.Go(func() error {
		replies, err := store.Replies(gctx, post.ID, !admin)
		if err != nil {
			return fmt.Errorf("loading replies: %w", err)
		}
		sort.SliceStable(replies, func(i, j int) bool {
			return replies[i].SortTime().Before(replies[j].SortTime())
		})
		th.Replies = replies
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return th, nil
}

func ancestorsOf(ctx context.Context, store Store, post *Post) ([]Post, error) {
	var chain []Post
	seen := map[string]bool{post.ID: true}
	parentID := post.ParentID
	for parentID != "" && !seen[parentID] && len(chain) < maxAncestors {
		seen[parentID] = true
		parent, err := store.Get(ctx, parentID)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		if !parent.Published {
			break
		}
		chain = append(chain, *parent)
		parentID = parent.ParentID
	}
	// Walked nearest first; callers render root first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// FeedItem is a published post prepared for the feed.
type FeedItem struct {
	Post
	// Parent is set for replies whose parent is still visible.
	Parent     *Post `json:"parent,omitempty"`
	ReplyCount int   `json:"reply_count"`
}

// parentFetchLimit caps concurrent parent lookups for one feed page.
const parentFetchLimit = 8

// LoadFeed returns published posts, newest first, optionally filtered by
// tag slug. An unknown tag yields an empty feed.
func LoadFeed(ctx context.Context, store Store, tag string, limit int) ([]FeedItem, error) {
	if tag != "" {
		if _, err := store.TagBySlug(ctx, tag); err != nil {
			if errors.Is(err, ErrNotFound) {
				return []FeedItem{}, nil
			}
			return nil, fmt.Errorf("resolving tag %q: %w", tag, err)
		}
	}

	list, err := store.List(ctx, Filter{Tag: tag, PublishedOnly: true, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}

	var counts map[string]int
	parents := make(map[string]*Post)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = store.ReplyCounts(gctx, ids)
		return err
	})

	var parentIDs []string
	for _, p := range list {
		if p.ParentID != "" {
			if _, dup := parents[p.ParentID]; !dup {
				parents[p.ParentID] = nil
				parentIDs = append(parentIDs, p.ParentID)
			}
		}
	}
	fetched := make([]*Post, len(parentIDs))
	pg, pctx := errgroup.WithContext(gctx)
	pg.SetLimit(parentFetchLimit)
	for i, id := range parentIDs {
		i, id := i, id
		pg.Go(func() error {
			parent, err := store.Get(pctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if parent.Published {
				fetched[i] = parent
			}
			return nil
		})
	}
	g.Go(pg.Wait)

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading feed context: %w", err)
	}
	for i, id := range parentIDs {
		parents[id] = fetched[i]
	}

	items := make([]FeedItem, len(list))
	for i, p := range list {
		items[i] = FeedItem{Post: p, Parent: parents[p.ParentID], ReplyCount: counts[p.ID]}
	}
	return items, nil
}
