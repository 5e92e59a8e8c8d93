package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/field"
	"github.com/roach88/selectapi/internal/schema"
)

type models struct {
	reg     *schema.Registry
	post    *schema.Schema
	user    *schema.Schema
	comment *schema.Schema
}

func newModels(t *testing.T) models {
	t.Helper()
	reg := schema.NewRegistry()
	post, err := reg.Define(schema.Definition{Name: "Post", Fields: []*field.Spec{
		field.New("id", field.Long, field.Default()),
		field.New("title", field.String, field.Default()),
		field.New("body", field.String),
		field.New("created", field.Timestamp, field.Default()),
		field.New("author", field.NestedID, field.Target("User"), field.Default()),
		field.New("comments", field.Relation, field.Target("Comment")),
	}})
	require.NoError(t, err)
	user, err := reg.Define(schema.Definition{Name: "User", Fields: []*field.Spec{
		field.New("id", field.Long, field.Default()),
		field.New("name", field.String, field.Default()),
		field.New("email", field.String),
		field.New("password", field.String, field.Hidden()),
	}})
	require.NoError(t, err)
	comment, err := reg.Define(schema.Definition{Name: "Comment", Fields: []*field.Spec{
		field.New("id", field.Long, field.Default()),
		field.New("body", field.String, field.Default()),
		field.New("post", field.NestedID, field.Target("Post")),
	}})
	require.NoError(t, err)
	require.NoError(t, reg.Check())
	return models{reg: reg, post: post, user: user, comment: comment}
}

func TestParse_NestedExample(t *testing.T) {
	m := newModels(t)

	fields, err := Parse("title,author(name)", m.post, m.reg, Options{})
	require.NoError(t, err)

	require.Equal(t, []string{"id", "title", "author"}, Keys(fields))
	author := fields[2]
	assert.Same(t, m.user, author.Schema)
	assert.Equal(t, []string{"name"}, Keys(author.Sub))
	assert.True(t, author.Known())
}

func TestParse_DistinctTermsPlusID(t *testing.T) {
	m := newModels(t)

	fields, err := Parse("title,body,title", m.post, m.reg, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title", "body"}, Keys(fields))

	fields, err = Parse("body,id", m.post, m.reg, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"body", "id"}, Keys(fields))
}

func TestParse_SingleInvalidField(t *testing.T) {
	m := newModels(t)

	_, err := Parse("bogus_field,title", m.post, m.reg, Options{})
	require.Error(t, err)
	assert.True(t, apierr.IsValidationError(err))

	var ae *apierr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "invalid field: bogus_field", ae.Message)
	assert.Equal(t, []string{"bogus_field"}, ae.Fields)
}

func TestParse_BatchesAllInvalidFields(t *testing.T) {
	m := newModels(t)

	_, err := Parse("nope,author(zip,name,password),comments(bad),other", m.post, m.reg, Options{})
	require.Error(t, err)

	var ae *apierr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"nope", "author.zip", "author.password", "comments.bad", "other"}, ae.Fields)
	assert.Equal(t, "invalid fields: nope,author.zip,author.password,comments.bad,other", ae.Message)
}

func TestParse_HiddenFieldIsInvalid(t *testing.T) {
	m := newModels(t)

	_, err := Parse("name,password", m.user, m.reg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid field: password")
}

func TestParse_DelimiterEquivalence(t *testing.T) {
	m := newModels(t)

	paren, err := Parse("comments(id,body)", m.post, m.reg, Options{})
	require.NoError(t, err)
	slash, err := Parse("comments/id,body", m.post, m.reg, Options{})
	require.NoError(t, err)

	assert.Equal(t, Format(paren), Format(slash))
	assert.Equal(t, []string{"id", "body"}, Keys(slash[1].Sub))

	mixed, err := Parse("title,author/name,email", m.post, m.reg, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "title", "author"}, Keys(mixed))
	assert.Equal(t, []string{"name", "email"}, Keys(mixed[2].Sub))
}

func TestParse_WhitespaceAroundDelimiters(t *testing.T) {
	m := newModels(t)

	want, err := Parse("title,author(name),created.iso", m.post, m.reg, Options{})
	require.NoError(t, err)

	for _, sel := range []string{
		"title , author (name), created . iso",
		" TITLE,Author ( name ) ,created.ISO ",
	} {
		got, err := Parse(sel, m.post, m.reg, Options{})
		require.NoError(t, err, sel)
		assert.Equal(t, Format(want), Format(got), sel)
	}

	slash, err := Parse("title , author / name , email", m.post, m.reg, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "title", "author"}, Keys(slash))
	assert.Equal(t, []string{"name", "email"}, Keys(slash[2].Sub))
}

func TestParse_RepeatedInvalidNameReportedOnce(t *testing.T) {
	m := newModels(t)

	_, err := Parse("bogus,title,bogus,author(zip,zip)", m.post, m.reg, Options{})
	require.Error(t, err)

	var ae *apierr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"bogus", "author.zip"}, ae.Fields)

	_, err = Parse("bogus,bogus", m.post, m.reg, Options{})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "invalid field: bogus", ae.Message)
}

func TestParse_RepeatedKey(t *testing.T) {
	m := newModels(t)

	fields, err := Parse("author(name),author/name", m.post, m.reg, Options{})
	require.NoError(t, err)
	assert.Equal(t, "id,author(name)", Format(fields))

	tests := []string{
		"author(name),author(email)",
		"author(name),author",
		"created.iso,created",
		"created.iso,created.unix",
	}
	for _, sel := range tests {
		t.Run(sel, func(t *testing.T) {
			_, err := Parse(sel, m.post, m.reg, Options{})
			require.Error(t, err)
			assert.True(t, apierr.IsValidationError(err))
			assert.Contains(t, err.Error(), "selected twice")
		})
	}
}

func TestParse_EmptySelectionUsesDefaults(t *testing.T) {
	m := newModels(t)

	fields, err := Parse("", m.post, m.reg, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "title", "created", "author"}, Keys(fields))
	assert.Equal(t, []string{"id", "name"}, Keys(fields[3].Sub))

	fields, err = Parse(" , ", m.post, m.reg, Options{})
	require.NoError(t, err)
	assert.Len(t, fields, 4)
}

func TestParse_NestedWithoutSubUsesTargetDefaults(t *testing.T) {
	m := newModels(t)

	fields, err := Parse("author,comments()", m.post, m.reg, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "author", "comments"}, Keys(fields))
	assert.Equal(t, []string{"id", "name"}, Keys(fields[1].Sub))
	assert.Equal(t, []string{"id", "body"}, Keys(fields[2].Sub))
}

func TestParse_Formats(t *testing.T) {
	m := newModels(t)

	fields, err := Parse("created.iso", m.post, m.reg, Options{})
	require.NoError(t, err)
	assert.Equal(t, "iso", fields[1].Format)

	tests := []struct {
		sel string
		msg string
	}{
		{"created.rfc822", `invalid format "rfc822" for field "created"`},
		{"bogus,title.iso", `invalid format "iso" for field "title"`},
		{"author.iso", `nested field "author" does not accept a format`},
		{"title(x)", `field "title" does not accept a sub-selection`},
		{"author(name.upper)", `invalid format "upper" for field "author.name"`},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			_, err := Parse(tt.sel, m.post, m.reg, Options{})
			require.Error(t, err)
			assert.True(t, apierr.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParse_NormalizesCaseAndSpace(t *testing.T) {
	m := newModels(t)

	fields, err := Parse(" Title , AUTHOR( Name ) ", m.post, m.reg, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "title", "author"}, Keys(fields))
	assert.Equal(t, []string{"name"}, Keys(fields[2].Sub))
}

func TestParse_IgnoreInvalid(t *testing.T) {
	m := newModels(t)

	fields, err := Parse("bogus,title,author(zip)", m.post, m.reg, Options{IgnoreInvalid: true})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "title", "author"}, Keys(fields))
	assert.Empty(t, fields[2].Sub)
}

func TestParse_Generic(t *testing.T) {
	m := newModels(t)

	fields, err := Parse("bogus(x,y),title", m.post, m.reg, Options{Generic: true})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "bogus", "title"}, Keys(fields))
	assert.False(t, fields[1].Known())
	assert.Equal(t, []string{"x", "y"}, Keys(fields[1].Sub))
	assert.True(t, fields[2].Known())

	free, err := Parse("a,b.c", nil, nil, Options{Generic: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, Keys(free))
	assert.Equal(t, "c", free[1].Format)

	_, err = Parse("a", nil, nil, Options{})
	require.Error(t, err)
}

func TestParse_OmitID(t *testing.T) {
	m := newModels(t)

	fields, err := Parse("title", m.post, m.reg, Options{OmitID: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"title"}, Keys(fields))
}

func TestParse_Structural(t *testing.T) {
	m := newModels(t)

	_, err := Parse("author(name", m.post, m.reg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbalanced parentheses")

	_, err = Parse("comments(post(author(name)))", m.post, m.reg, Options{MaxDepth: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deeper than 1")

	_, err = Parse("ti tle", m.post, m.reg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid field: ti tle")
}

func TestFormat_RoundTrip(t *testing.T) {
	m := newModels(t)

	fields, err := Parse("title,author(name),created.iso", m.post, m.reg, Options{})
	require.NoError(t, err)
	rendered := Format(fields)
	assert.Equal(t, "id,title,author(name),created.iso", rendered)

	again, err := Parse(rendered, m.post, m.reg, Options{})
	require.NoError(t, err)
	assert.Equal(t, rendered, Format(again))
}

func TestDefaultsAndSelectable(t *testing.T) {
	m := newModels(t)

	defaults, err := Defaults(m.post, m.reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title", "created", "author"}, Keys(defaults))

	all, err := Selectable(m.user, m.reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "email"}, Keys(all))
}

func TestSplitTerms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a,b(c,d),e", []string{"a", "b(c,d)", "e"}},
		{"a/b,c", []string{"a/b,c"}},
		{"x,a/b(c,d),e", []string{"x", "a/b(c,d),e"}},
		{"a,,b", []string{"a", "b"}},
		{"", nil},
		{"a(b/c),d", []string{"a(b/c)", "d"}},
	}
	for _, tt := range tests {
		got, err := SplitTerms(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := SplitTerms("a),b(")
	require.Error(t, err)
}
