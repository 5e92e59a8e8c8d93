package projection

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/selectapi/internal/field"
	"github.com/roach88/selectapi/internal/query"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
	"github.com/roach88/selectapi/internal/testutil"
)

// blog is a small model graph:
//
//	User{id, name, zip, address(embedded Address)}
//	Post{id, title, author -> User by author_id, comments <- Comment.post_id, tags (association)}
type blog struct {
	reg      *schema.Registry
	users    *schema.Schema
	address  *schema.Schema
	posts    *schema.Schema
	comments *schema.Schema
	tags     *schema.Schema

	memory   *testutil.MemoryBackend
	counting *testutil.CountingBackend
	bridge   *Bridge
}

func newBlog(t *testing.T) *blog {
	t.Helper()
	b := &blog{reg: schema.NewRegistry()}

	var err error
	b.address, err = b.reg.Define(schema.Definition{
		Name: "Address",
		Fields: []*field.Spec{
			field.New("id", field.String),
			field.New("city", field.String, field.Default()),
			field.New("zip", field.String),
		},
	})
	require.NoError(t, err)

	b.users, err = b.reg.Define(schema.Definition{
		Name: "User",
		Fields: []*field.Spec{
			field.New("id", field.Long, field.Default()),
			field.New("name", field.String, field.Default()),
			field.New("zip", field.String),
			field.New("address", field.Nested, field.Target("Address")),
		},
	})
	require.NoError(t, err)

	b.posts, err = b.reg.Define(schema.Definition{
		Name: "Post",
		Fields: []*field.Spec{
			field.New("id", field.Long, field.Default()),
			field.New("title", field.String, field.Default(), field.Modifiable()),
			field.New("author", field.NestedID, field.Target("User"), field.Default()),
			field.New("comments", field.Relation, field.Target("Comment")),
			field.New("tags", field.Association, field.Target("Tag")),
			field.New("created", field.Timestamp),
			field.New("category", field.String, field.Filter()),
		},
	})
	require.NoError(t, err)

	b.comments, err = b.reg.Define(schema.Definition{
		Name: "Comment",
		Fields: []*field.Spec{
			field.New("id", field.Long, field.Default()),
			field.New("post_id", field.Long),
			field.New("body", field.String, field.Default()),
		},
	})
	require.NoError(t, err)

	b.tags, err = b.reg.Define(schema.Definition{
		Name: "Tag",
		Fields: []*field.Spec{
			field.New("id", field.String),
			field.New("label", field.String, field.Default()),
		},
	})
	require.NoError(t, err)
	require.NoError(t, b.reg.Check())

	b.memory = testutil.NewMemoryBackend()
	b.memory.Insert("User",
		record.Row{"id": int64(7), "name": "Ann", "zip": "10115", "address": map[string]any{"city": "Berlin"}},
		record.Row{"id": int64(8), "name": "Bob", "zip": "20095"},
	)
	b.memory.Insert("Post",
		record.Row{"id": int64(1), "title": "first", "author_id": int64(7), "category": "news"},
		record.Row{"id": int64(2), "title": "second", "author_id": int64(7), "category": "tech"},
		record.Row{"id": int64(3), "title": "third", "author_id": int64(8), "category": "news"},
	)
	b.memory.Insert("Comment",
		record.Row{"id": int64(100), "post_id": int64(1), "body": "nice"},
		record.Row{"id": int64(101), "post_id": int64(3), "body": "meh"},
		record.Row{"id": int64(102), "post_id": int64(1), "body": "+1"},
	)
	b.counting = testutil.NewCountingBackend(b.memory)

	b.bridge = NewBridge()
	require.NoError(t, b.bridge.BindAll(b.address, b.users, b.comments, b.tags))
	return b
}

// bindPosts binds Post with the relation filter field named explicitly.
func (b *blog) bindPosts(t *testing.T, gate Gate) {
	t.Helper()
	require.NoError(t, b.bridge.Bind(ServerModel{
		Name:   "PostRow",
		Client: b.posts,
		Fields: map[string]Resolver{
			"author":   NestedByID{IDPath: "author_id"},
			"comments": RelationByFilter{FilterField: "post_id"},
		},
		Gate: gate,
	}))
}

func (b *blog) engine(opts ...Option) *Engine {
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRequestIDs(testutil.NewFixedIDGenerator("req-1")),
	}, opts...)
	return New(b.bridge, b.counting, opts...)
}

func (b *blog) parse(t *testing.T, s *schema.Schema, sel string) []query.Field {
	t.Helper()
	fields, err := query.Parse(sel, s, b.reg, query.Options{})
	require.NoError(t, err)
	return fields
}

func (b *blog) serverRecords(t *testing.T, s *schema.Schema) []*record.ServerRecord {
	t.Helper()
	return record.NewServerRecords(s, b.memory.Rows(s.Name))
}

func (b *blog) project(t *testing.T, e *Engine, s *schema.Schema, sel string) ([]*record.ClientRecord, error) {
	t.Helper()
	return e.Project(context.Background(), nil, s, b.serverRecords(t, s), b.parse(t, s, sel))
}
