package content

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/folio/internal/navspy"
)

func TestSectionizeNestsByHeadingLevel(t *testing.T) {
	in := `<h1 id="t">T</h1><p>a</p><h2 id="x">X</h2><p>b</p><h3 id="y">Y</h3><p>c</p><h2 id="z">Z</h2><p>d</p>`
	got, err := Sectionize(in, "root")
	require.NoError(t, err)

	want := `<section id="root"><h1>T</h1><p>a</p>` +
		`<section id="x"><h2>X</h2><p>b</p><section id="y"><h3>Y</h3><p>c</p></section></section>` +
		`<section id="z"><h2>Z</h2><p>d</p></section></section>`
	assert.Equal(t, want, got)
}

func TestSectionizeSkipsHeadingsWithoutID(t *testing.T) {
	got, err := Sectionize(`<h2>Plain</h2><p>x</p>`, "root")
	require.NoError(t, err)
	assert.Equal(t, `<section id="root"><h2>Plain</h2><p>x</p></section>`, got)
}

func TestAnchorsInDocumentOrder(t *testing.T) {
	ids, err := Anchors(`<div id="a"><span id="b"></span><img id="c"/></div><p class="x">no id</p><br id="d">`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestMissing(t *testing.T) {
	items := []navspy.NavItem{
		{ID: "coding-content", Children: []navspy.NavItem{{ID: "projects"}, {ID: "others"}}},
	}
	assert.Equal(t, []string{"others"}, Missing(items, []string{"coding-content", "projects", "cpp"}))
	assert.Empty(t, Missing(items, []string{"others", "projects", "coding-content"}))
}

func TestLoadEmbeddedPages(t *testing.T) {
	lib, err := Load(Embedded())
	require.NoError(t, err)
	require.Len(t, lib.Pages(), len(Tabs))

	for _, tab := range Tabs {
		page, ok := lib.Page(tab.Slug)
		require.True(t, ok, tab.Slug)
		tree, _ := NavTreeFor(tab.Slug)
		assert.Empty(t, Missing(tree, page.Anchors), "every %s nav item should have an anchor", tab.Slug)
	}

	coding, _ := lib.Page("coding")
	assert.Equal(t, "Coding", coding.Title)
	tree, _ := NavTreeFor("coding")
	assert.Equal(t, navspy.Flatten(tree), coding.Anchors)
	assert.Contains(t, string(coding.HTML), `<section id="languages"><h2>Languages</h2>`)

	polyglot, _ := lib.Page("language-nerd")
	assert.Equal(t, "Polyglot", polyglot.Title)

	social, _ := lib.Page("social-activity")
	assert.Contains(t, social.Anchors, "animal-on-campus")
}

func TestLibraryAll(t *testing.T) {
	lib, err := Load(Embedded())
	require.NoError(t, err)

	all := lib.All()
	assert.Empty(t, Missing(NavTree(), all.Anchors))
	assert.Equal(t, "coding-content", all.Anchors[0])
	assert.True(t, strings.Index(string(all.HTML), `id="life-content"`) > strings.Index(string(all.HTML), `id="coding-content"`))
}

func TestLoadFromDirectory(t *testing.T) {
	fsys := fstest.MapFS{}
	for _, tab := range Tabs {
		fsys[tab.Slug+".md"] = &fstest.MapFile{Data: []byte("# Custom " + tab.Label + "\n\n## Only\n")}
	}
	lib, err := Load(fsys)
	require.NoError(t, err)

	life, _ := lib.Page("life")
	assert.Equal(t, "Custom Life", life.Title)
	assert.Equal(t, []string{"life-content", "only"}, life.Anchors)

	delete(fsys, "life.md")
	_, err = Load(fsys)
	assert.Error(t, err)
}

func TestNavTree(t *testing.T) {
	tree := NavTree()
	require.Len(t, tree, 4)
	assert.Equal(t, "coding-content", tree[0].ID)
	assert.NoError(t, navspy.Validate(tree))

	langs, depth, ok := navspy.Find(tree, "languages")
	require.True(t, ok)
	assert.Equal(t, 1, depth)
	assert.Len(t, langs.Children, 3)

	assert.True(t, navspy.IsActive(tree, "rust", "coding-content"))
	assert.False(t, navspy.IsActive(tree, "rust", "languages"))

	_, ok = NavTreeFor("nope")
	assert.False(t, ok)
	only, ok := NavTreeFor("life")
	require.True(t, ok)
	require.Len(t, only, 1)
	assert.Equal(t, "Life", only[0].Label)
}

func TestTabHelpers(t *testing.T) {
	tab, ok := TabBySlug("social-activity")
	require.True(t, ok)
	assert.Equal(t, "/about/social-activity", tab.Href())
	assert.Equal(t, "social-activity-content", tab.ContentID())
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Coding", extractTitle("# Coding\n\nx"))
	assert.Equal(t, "Hello", extractTitle("intro\n# Hello {#top}\n"))
	assert.Equal(t, "", extractTitle("## Not a title"))
}
