package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/projection"
	"github.com/roach88/selectapi/internal/schema"
)

func TestBuildBlog(t *testing.T) {
	cat, err := Build(compileBlog(t))
	require.NoError(t, err)

	var names []string
	for _, s := range cat.Models() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Timestamped", "User", "Post", "Comment"}, names)

	post, err := cat.Registry.Lookup("Post")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "created", "title", "author", "comments", "tags", "secret"}, schema.Names(post.Fields()))
	assert.Equal(t, []string{"id", "title", "author"}, schema.Names(post.Defaults()))
	assert.Equal(t, "posts", post.URLName)

	secret, ok := post.Field("secret")
	require.True(t, ok)
	assert.False(t, secret.Selectable)

	tags, ok := post.Field("tags")
	require.True(t, ok)
	require.NotNil(t, tags.Elem)
	assert.Equal(t, "of", tags.Elem.Name)

	created, ok := post.Field("created")
	require.True(t, ok)
	assert.Equal(t, []string{"ms", "iso"}, created.Formats)
}

func TestBuildBasesFirst(t *testing.T) {
	post := model("Post", fld("title", "string"))
	post.Extends = []string{"Base"}

	cat, err := Build([]ModelSpec{post, model("Base", fld("id", "long"))})
	require.NoError(t, err)

	var names []string
	for _, s := range cat.Models() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Base", "Post"}, names)
}

func TestBuildBindings(t *testing.T) {
	cat, err := Build(compileBlog(t))
	require.NoError(t, err)
	require.Len(t, cat.Bindings, 4)

	post := cat.Bindings[2]
	assert.Equal(t, "PostRow", post.Name)
	assert.Equal(t, "Post", post.Client.Name)
	assert.True(t, post.DefaultToNone)
	assert.Equal(t, projection.NestedByID{IDPath: "author_id"}, post.Fields["author"])
	assert.Equal(t, projection.RelationByFilter{FilterField: "post_id"}, post.Fields["comments"])

	assert.Empty(t, cat.Bindings[1].Fields)
}

func TestBuildInheritedStrategyOptions(t *testing.T) {
	owner := nested("owner", "nested_id", "User")
	owner.IDPath = "meta.owner_id"
	base := model("Owned", fld("id", "long"), owner)
	doc := model("Doc", fld("title", "string"))
	doc.Extends = []string{"Owned"}

	cat, err := Build([]ModelSpec{model("User", fld("id", "long")), base, doc})
	require.NoError(t, err)
	assert.Equal(t, projection.NestedByID{IDPath: "meta.owner_id"}, cat.Bindings[2].Fields["owner"])
}

func TestBuildBridge(t *testing.T) {
	cat, err := Build(compileBlog(t))
	require.NoError(t, err)

	b, err := cat.Bridge()
	require.NoError(t, err)

	post, err := cat.Registry.Lookup("Post")
	require.NoError(t, err)
	sm, err := b.Lookup(post)
	require.NoError(t, err)
	assert.Equal(t, "PostRow", sm.Name)
	require.NoError(t, b.Check(cat.Registry))
}

func TestBuildErrors(t *testing.T) {
	cycleA := model("A", fld("id", "long"))
	cycleA.Extends = []string{"B"}
	cycleB := model("B", fld("id", "long"))
	cycleB.Extends = []string{"A"}
	orphan := model("Orphan", fld("id", "long"))
	orphan.Extends = []string{"Missing"}

	tests := []struct {
		name  string
		specs []ModelSpec
		want  string
	}{
		{"duplicate", []ModelSpec{model("A", fld("id", "long")), model("A", fld("id", "long"))}, "declared more than once"},
		{"cycle", []ModelSpec{cycleA, cycleB}, "inheritance cycle: A -> B -> A"},
		{"unknown base", []ModelSpec{orphan}, "unknown base model"},
		{"unknown kind", []ModelSpec{model("A", fld("id", "decimal"))}, "unknown field kind"},
		{"unknown target", []ModelSpec{model("A", fld("id", "long"), nested("b", "nested", "B"))}, "unknown model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.specs)
			require.Error(t, err)
			assert.True(t, apierr.IsDefinitionError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCatalogSpec(t *testing.T) {
	cat, err := Build(compileBlog(t))
	require.NoError(t, err)

	spec, ok := cat.Spec("User")
	require.True(t, ok)
	assert.Equal(t, "A registered user", spec.Description)

	_, ok = cat.Spec("Ghost")
	assert.False(t, ok)
}
