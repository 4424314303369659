package posts

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	src := setupTestStore(t)
	ctx := context.Background()

	tag, err := src.CreateTag(ctx, "Go", "go")
	require.NoError(t, err)
	root := published("root", now.Add(-2*time.Hour))
	root.Tags = []Tag{tag}
	mustCreate(t, src, root)
	reply := published("reply", now.Add(-time.Hour))
	reply.ParentID = root.ID
	mustCreate(t, src, reply)

	a, err := Export(ctx, src, now)
	require.NoError(t, err)
	require.Len(t, a.Posts, 2)
	assert.Equal(t, root.ID, a.Posts[0].ID)

	var buf bytes.Buffer
	require.NoError(t, a.Write(&buf))
	decoded, err := ReadArchive(&buf)
	require.NoError(t, err)

	// Put the reply first to prove parents are written before replies.
	decoded.Posts[0], decoded.Posts[1] = decoded.Posts[1], decoded.Posts[0]

	dst := setupTestStore(t)
	_, err = dst.CreateTag(ctx, "Rust", "rust") // shifts tag ids
	require.NoError(t, err)

	var seen []string
	res, err := Import(ctx, dst, decoded, func(done int, p *Post) { seen = append(seen, p.Content) })
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 2, Tags: 1}, res)
	assert.Equal(t, []string{"root", "reply"}, seen)

	got, err := dst.Get(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "go", got.Tags[0].Slug)
	assert.NotEqual(t, tag.ID, got.Tags[0].ID)

	gotReply, err := dst.Get(ctx, reply.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(reply.Content, gotReply.Content); diff != "" {
		t.Errorf("reply content mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, root.ID, gotReply.ParentID)

	// A second import skips everything.
	res, err = Import(ctx, dst, decoded, nil)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Skipped: 2}, res)
}

func TestReadArchiveRejectsVersion(t *testing.T) {
	_, err := ReadArchive(strings.NewReader(`{"version": 9}`))
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = ReadArchive(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestParentsFirst(t *testing.T) {
	list := []Post{
		{ID: "c", ParentID: "b"},
		{ID: "b", ParentID: "a"},
		{ID: "x", ParentID: "elsewhere"},
		{ID: "a"},
	}
	out, err := parentsFirst(list)
	require.NoError(t, err)
	var ids []string
	for _, p := range out {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "x"}, ids)

	_, err = parentsFirst([]Post{{ID: "a", ParentID: "b"}, {ID: "b", ParentID: "a"}})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = parentsFirst([]Post{{Content: "no id"}})
	assert.ErrorIs(t, err, ErrInvalid)
}
