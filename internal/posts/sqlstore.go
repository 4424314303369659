package posts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/folio/internal/db"
)

// SQLStore is a Store backed by the local SQLite database.
type SQLStore struct {
	db  *db.DB
	now func() time.Time
}

// NewSQLStore creates a SQLStore.
func NewSQLStore(d *db.DB) *SQLStore {
	return &SQLStore{db: d, now: time.Now}
}

const postColumns = `id, user_id, content, media, parent_id, published, published_at,
	created_at, updated_at, view_count, like_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*Post, error) {
	var (
		p           Post
		media       string
		parentID    sql.NullString
		publishedAt sql.NullInt64
		created     int64
		updated     int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Content, &media, &parentID, &p.Published,
		&publishedAt, &created, &updated, &p.ViewCount, &p.LikeCount); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(media), &p.Media); err != nil {
		return nil, fmt.Errorf("decoding media for post %s: %w", p.ID, err)
	}
	p.ParentID = parentID.String
	if publishedAt.Valid {
		t := fromMillis(publishedAt.Int64)
		p.PublishedAt = &t
	}
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Get returns a post with its tags.
func (s *SQLStore) Get(ctx context.Context, id string) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting post %s: %w", id, err)
	}
	list := []Post{*p}
	if err := s.attachTags(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// List returns posts matching f.
func (s *SQLStore) List(ctx context.Context, f Filter) ([]Post, error) {
	var (
		where []string
		args  []any
	)
	if f.PublishedOnly {
		where = append(where, "p.published = 1")
	}
	if f.Tag != "" {
		where = append(where, `p.id IN (SELECT pt.post_id FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE t.slug = ?)`)
		args = append(args, f.Tag)
	}

	query := `SELECT ` + prefixed("p.", postColumns) + ` FROM posts p`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.PublishedOnly {
		query += " ORDER BY p.published_at DESC, p.created_at DESC"
	} else {
		query += " ORDER BY p.created_at DESC"
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return s.queryPosts(ctx, query, args...)
}

// Replies returns the direct replies to parentID, oldest first.
func (s *SQLStore) Replies(ctx context.Context, parentID string, publishedOnly bool) ([]Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE parent_id = ?`
	if publishedOnly {
		query += " AND published = 1"
	}
	query += " ORDER BY COALESCE(published_at, created_at) ASC"
	return s.queryPosts(ctx, query, parentID)
}

func (s *SQLStore) queryPosts(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	var list []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		list = append(list, *p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating posts: %w", err)
	}

	if err := s.attachTags(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// attachTags loads tags for every post in list in one query.
func (s *SQLStore) attachTags(ctx context.Context, list []Post) error {
	if len(list) == 0 {
		return nil
	}
	index := make(map[string]int, len(list))
	args := make([]any, len(list))
	for i := range list {
		index[list[i].ID] = i
		args[i] = list[i].ID
	}

	rows, err := s.db.QueryContext(ctx, `SELECT pt.post_id, t.id, t.name, t.slug
		FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id IN (`+placeholders(len(args))+`)
		ORDER BY t.name`, args...)
	if err != nil {
		return fmt.Errorf("querying post tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID string
		var t Tag
		if err := rows.Scan(&postID, &t.ID, &t.Name, &t.Slug); err != nil {
			return fmt.Errorf("scanning post tag: %w", err)
		}
		i := index[postID]
		list[i].Tags = append(list[i].Tags, t)
	}
	return rows.Err()
}

// ReplyCounts returns the number of published replies per post id.
func (s *SQLStore) ReplyCounts(ctx context.Context, ids []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(ids) == 0 {
		return counts, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT parent_id, COUNT(*) FROM posts
		WHERE published = 1 AND parent_id IN (`+placeholders(len(ids))+`)
		GROUP BY parent_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("counting replies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scanning reply count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// Create inserts p and its tags.
func (s *SQLStore) Create(ctx context.Context, p *Post) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	media, err := encodeMedia(p.Media)
	if err != nil {
		return err
	}

	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		if p.ParentID != "" {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, p.ParentID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: parent post %s does not exist", ErrInvalid, p.ParentID)
			}
			if err != nil {
				return fmt.Errorf("checking parent: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO posts (`+postColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.UserID, p.Content, media, nullString(p.ParentID), p.Published,
			nullMillis(p.PublishedAt), toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
			p.ViewCount, p.LikeCount)
		if err != nil {
			return fmt.Errorf("inserting post: %w", err)
		}
		return replaceTags(ctx, tx, p.ID, p.TagIDs())
	})
}

// Update writes the editable fields of p. Tags are left to SetTags.
func (s *SQLStore) Update(ctx context.Context, p *Post) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now().UTC()
	}
	media, err := encodeMedia(p.Media)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts
		SET content = ?, media = ?, published = ?, published_at = ?, updated_at = ?
		WHERE id = ?`,
		p.Content, media, p.Published, nullMillis(p.PublishedAt), toMillis(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("updating post %s: %w", p.ID, err)
	}
	return expectRow(res)
}

// Delete removes a post. Its tag links go with it and replies become
// top-level posts.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, id); err != nil {
			return fmt.Errorf("deleting post tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE posts SET parent_id = NULL WHERE parent_id = ?`, id); err != nil {
			return fmt.Errorf("detaching replies: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting post %s: %w", id, err)
		}
		return expectRow(res)
	})
}

// IncrementViews bumps the view counter of a published post.
func (s *SQLStore) IncrementViews(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET view_count = view_count + 1 WHERE id = ? AND published = 1`, id)
	if err != nil {
		return fmt.Errorf("incrementing views for %s: %w", id, err)
	}
	return expectRow(res)
}

// PublishDue publishes scheduled posts that are due at now.
func (s *SQLStore) PublishDue(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET published = 1, updated_at = ?
		WHERE published = 0 AND published_at IS NOT NULL AND published_at <= ?`,
		toMillis(now), toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("publishing due posts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Tags returns all tags ordered by name.
func (s *SQLStore) Tags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// TagCounts returns every tag with its post count.
func (s *SQLStore) TagCounts(ctx context.Context) ([]TagCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT t.id, t.name, t.slug, COUNT(pt.post_id)
		FROM tags t LEFT JOIN post_tags pt ON pt.tag_id = t.id
		GROUP BY t.id ORDER BY t.name`)
	if err != nil {
		return nil, fmt.Errorf("counting tags: %w", err)
	}
	defer rows.Close()

	var counts []TagCount
	for rows.Next() {
		var c TagCount
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Posts); err != nil {
			return nil, fmt.Errorf("scanning tag count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// TagBySlug looks a tag up by slug.
func (s *SQLStore) TagBySlug(ctx context.Context, slug string) (Tag, error) {
	var t Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, name, slug FROM tags WHERE slug = ?`, slug).
		Scan(&t.ID, &t.Name, &t.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return Tag{}, ErrNotFound
	}
	if err != nil {
		return Tag{}, fmt.Errorf("getting tag %s: %w", slug, err)
	}
	return t, nil
}

// CreateTag inserts a tag. Duplicate names or slugs are ErrInvalid.
func (s *SQLStore) CreateTag(ctx context.Context, name, slug string) (Tag, error) {
	t := Tag{Name: name, Slug: slug}
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE slug = ? OR name = ? COLLATE NOCASE`, slug, name).Scan(&exists)
		if err == nil {
			return fmt.Errorf("%w: tag %q already exists", ErrInvalid, name)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking tag: %w", err)
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO tags (name, slug, created_at) VALUES (?, ?, ?)`,
			name, slug, toMillis(s.now()))
		if err != nil {
			return fmt.Errorf("inserting tag: %w", err)
		}
		t.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return Tag{}, err
	}
	return t, nil
}

// DeleteTag removes a tag from every post and deletes it.
func (s *SQLStore) DeleteTag(ctx context.Context, id int64) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE tag_id = ?`, id); err != nil {
			return fmt.Errorf("unlinking tag: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting tag %d: %w", id, err)
		}
		return expectRow(res)
	})
}

// SetTags replaces the tags of a post.
func (s *SQLStore) SetTags(ctx context.Context, postID string, tagIDs []int64) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		return replaceTags(ctx, tx, postID, tagIDs)
	})
}

func replaceTags(ctx context.Context, tx *sql.Tx, postID string, tagIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("clearing tags: %w", err)
	}
	for _, id := range tagIDs {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: tag %d does not exist", ErrInvalid, id)
		}
		if err != nil {
			return fmt.Errorf("checking tag %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO post_tags (post_id, tag_id) VALUES (?, ?)`, postID, id); err != nil {
			return fmt.Errorf("linking tag %d: %w", id, err)
		}
	}
	return nil
}

func encodeMedia(media []MediaAttachment) (string, error) {
	if media == nil {
		media = []MediaAttachment{}
	}
	data, err := json.Marshal(media)
	if err != nil {
		return "", fmt.Errorf("encoding media: %w", err)
	}
	return string(data), nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
