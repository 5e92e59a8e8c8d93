package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func model(name string, fields ...FieldSpec) ModelSpec {
	return ModelSpec{Name: name, Fields: fields}
}

func fld(name, kind string) FieldSpec {
	return FieldSpec{Name: name, Kind: kind, Selectable: true}
}

func nested(name, kind, target string) FieldSpec {
	f := fld(name, kind)
	f.Target = target
	return f
}

func TestValidateValid(t *testing.T) {
	errs := Validate(compileBlog(t))
	assert.Empty(t, errs)
}

func TestValidateNoFields(t *testing.T) {
	errs := Validate([]ModelSpec{{Name: "Empty"}})
	assert.Contains(t, codes(errs), ErrModelNoFields)
}

func TestValidateUnknownKind(t *testing.T) {
	errs := Validate([]ModelSpec{model("User", fld("id", "long"), fld("score", "decimal"))})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownKind, errs[0].Code)
	assert.Equal(t, "User.fields.score.kind", errs[0].Field)
	assert.Contains(t, errs[0].Message, "decimal")
}

func TestValidateKindIsCaseInsensitive(t *testing.T) {
	errs := Validate([]ModelSpec{model("User", fld("id", "LONG"), fld("ref", "Nested-ID"))})
	assert.Equal(t, []string{ErrMissingTarget}, codes(errs))
}

func TestValidateTargets(t *testing.T) {
	errs := Validate([]ModelSpec{
		model("Post",
			fld("id", "long"),
			fld("author", "nested_id"),
			nested("editor", "nested", "Ghost"),
		),
	})
	assert.Equal(t, []string{ErrMissingTarget, ErrUnknownTarget}, codes(errs))
}

func TestValidateDuplicateModel(t *testing.T) {
	errs := Validate([]ModelSpec{
		model("User", fld("id", "long")),
		model("User", fld("id", "long")),
	})
	assert.Equal(t, []string{ErrDuplicateModel}, codes(errs))
}

func TestValidateFormats(t *testing.T) {
	name := fld("name", "string")
	name.Formats = []string{"iso"}
	created := fld("created", "timestamp")
	created.Formats = []string{"ms", "rfc822"}

	errs := Validate([]ModelSpec{model("User", fld("id", "long"), name, created)})
	require.Len(t, errs, 2)
	assert.Equal(t, ErrInvalidFormat, errs[0].Code)
	assert.Contains(t, errs[0].Message, "only valid on timestamp")
	assert.Equal(t, ErrInvalidFormat, errs[1].Code)
	assert.Contains(t, errs[1].Message, "rfc822")
}

func TestValidateIDField(t *testing.T) {
	hidden := fld("id", "long")
	hidden.Selectable = false
	custom := model("Tag", fld("slug", "string"))
	custom.IDField = "slug"
	ref := model("Ref", nested("id", "nested", "Tag"))

	errs := Validate([]ModelSpec{
		model("NoID", fld("name", "string")),
		model("Hidden", hidden),
		custom,
		ref,
	})
	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.Equal(t, ErrInvalidIDField, e.Code)
	}
	assert.Contains(t, errs[0].Message, "not declared")
	assert.Contains(t, errs[1].Message, "selectable")
	assert.Contains(t, errs[2].Message, "nested")
}

func TestValidateInheritedID(t *testing.T) {
	post := model("Post", fld("title", "string"))
	post.Extends = []string{"Base"}

	errs := Validate([]ModelSpec{model("Base", fld("id", "long")), post})
	assert.Empty(t, errs)
}

func TestValidateUnknownBase(t *testing.T) {
	post := model("Post", fld("id", "long"))
	post.Extends = []string{"Missing"}

	errs := Validate([]ModelSpec{post})
	assert.Equal(t, []string{ErrUnknownBase}, codes(errs))
}

func TestValidateInheritanceCycle(t *testing.T) {
	a := model("A", fld("id", "long"))
	a.Extends = []string{"B"}
	b := model("B", fld("id", "long"))
	b.Extends = []string{"A"}

	errs := Validate([]ModelSpec{a, b})
	require.Equal(t, []string{ErrInheritanceCycle}, codes(errs))
	assert.Equal(t, "inheritance cycle: A -> B -> A", errs[0].Message)
}

func TestValidateMisplacedOptions(t *testing.T) {
	title := fld("title", "string")
	title.IDPath = "x"
	author := nested("author", "nested_id", "User")
	author.FilterField = "post_id"
	name := fld("name", "string")
	name.Target = "User"
	count := fld("count", "integer")
	count.Of = &FieldSpec{Name: "count.of", Kind: "integer", Selectable: true}

	errs := Validate([]ModelSpec{
		model("User", fld("id", "long")),
		model("Post", fld("id", "long"), title, author, name, count),
	})
	assert.Equal(t, []string{ErrMisplacedOption, ErrMisplacedOption, ErrMisplacedOption, ErrMisplacedOption}, codes(errs))
}

func TestValidateChildKinds(t *testing.T) {
	tags := fld("tags", "array")
	tags.Of = &FieldSpec{Name: "tags.of", Kind: "blob", Selectable: true}

	errs := Validate([]ModelSpec{model("Post", fld("id", "long"), tags)})
	require.Equal(t, []string{ErrUnknownKind}, codes(errs))
	assert.Equal(t, "Post.fields.tags.of.kind", errs[0].Field)
}

func TestValidateDefaultSelectionCycle(t *testing.T) {
	posts := nested("posts", "relation", "Post")
	posts.Default = true
	author := nested("author", "nested_id", "User")
	author.Default = true

	errs := Validate([]ModelSpec{
		model("User", fld("id", "long"), posts),
		model("Post", fld("id", "long"), author),
	})
	require.Equal(t, []string{ErrDefaultSelectionLoop}, codes(errs))
	assert.True(t, strings.Contains(errs[0].Message, "User") || strings.Contains(errs[0].Message, "Post"))
}

func TestValidateInvalidNames(t *testing.T) {
	errs := Validate([]ModelSpec{
		model("9Lives", fld("id", "long")),
		model("User", fld("id", "long"), fld("FullName", "string")),
	})
	assert.Equal(t, []string{ErrInvalidName, ErrInvalidName}, codes(errs))
}

func TestValidateCollectsAll(t *testing.T) {
	errs := Validate([]ModelSpec{
		{Name: "Empty"},
		model("Post", fld("id", "long"), fld("x", "decimal"), fld("author", "nested_id")),
	})
	assert.Equal(t, []string{ErrModelNoFields, ErrInvalidIDField, ErrUnknownKind, ErrMissingTarget}, codes(errs))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "User.fields", Message: "at least one field is required", Code: ErrModelNoFields, Line: 3}
	assert.Equal(t, "[E101] line 3: User.fields: at least one field is required", e.Error())

	e.Line = 0
	assert.Equal(t, "[E101] User.fields: at least one field is required", e.Error())
}
