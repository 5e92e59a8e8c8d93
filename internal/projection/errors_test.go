package projection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/record"
)

func TestProject_GateFiltersKeys(t *testing.T) {
	b := newBlog(t)
	var seen []string
	b.bindPosts(t, func(ctx context.Context, req *Request, data map[string]any) (map[string]any, error) {
		seen = append(seen, req.ID)
		if req.Principal != "admin" {
			delete(data, "category")
			delete(data, "not_selected")
		}
		return data, nil
	})
	e := b.engine(WithConcurrency(1))
	sel := b.parse(t, b.posts, "title,category")

	out, err := e.Project(context.Background(), nil, b.posts, b.serverRecords(t, b.posts), sel)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title"}, out[0].Keys())
	assert.Equal(t, []string{"req-1", "req-1", "req-1"}, seen, "gate runs once per record")

	out, err = e.Project(context.Background(), &Request{ID: "admin-req", Principal: "admin"}, b.posts, b.serverRecords(t, b.posts), sel)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title", "category"}, out[0].Keys())
	assert.Equal(t, "admin-req", seen[len(seen)-1])
}

func TestProject_PermissionErrorPassesThroughUnchanged(t *testing.T) {
	b := newBlog(t)
	denied := apierr.Permission("Post", "not your post")
	b.bindPosts(t, func(ctx context.Context, req *Request, data map[string]any) (map[string]any, error) {
		return nil, denied
	})

	out, err := b.project(t, b.engine(), b.posts, "title")
	assert.Nil(t, out)
	require.Error(t, err)
	assert.Same(t, denied, err)
	assert.True(t, apierr.IsPermissionError(err))
}

func TestProject_NestedGateErrorNotWrapped(t *testing.T) {
	b := newBlog(t)
	sentinel := errors.New("no users for you")
	b.bridge = NewBridge()
	require.NoError(t, b.bridge.BindAll(b.address, b.comments, b.tags))
	require.NoError(t, b.bridge.Bind(ServerModel{
		Client: b.users,
		Gate: func(ctx context.Context, req *Request, data map[string]any) (map[string]any, error) {
			return nil, sentinel
		},
	}))
	b.bindPosts(t, nil)

	_, err := b.project(t, b.engine(), b.posts, "author")
	assert.Equal(t, sentinel, err)
}

func TestProject_BackendFailureIsResolutionError(t *testing.T) {
	b := newBlog(t)
	b.bindPosts(t, nil)
	down := errors.New("connection refused")
	b.counting.Err = down

	_, err := b.project(t, b.engine(), b.posts, "author")
	require.Error(t, err)
	assert.True(t, apierr.IsResolutionError(err))
	assert.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "field=author")
}

func TestProject_Cancelled(t *testing.T) {
	b := newBlog(t)
	b.bindPosts(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := b.engine().Project(ctx, nil, b.posts, b.serverRecords(t, b.posts), b.parse(t, b.posts, "title,author"))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProject_CancelledDuringResolution(t *testing.T) {
	b := newBlog(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.bridge.Bind(ServerModel{
		Client: b.posts,
		Fields: map[string]Resolver{"title": cancelling{cancel}},
	}))

	out, err := b.engine(WithConcurrency(1)).Project(ctx, nil, b.posts, b.serverRecords(t, b.posts), b.parse(t, b.posts, "title,author"))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, b.counting.Count("User"), "fields after cancellation must not resolve")
}

// cancelling resolves the field and then cancels the request.
type cancelling struct {
	cancel context.CancelFunc
}

func (cancelling) Strategy() string { return "cancelling" }

func (c cancelling) Resolve(ctx context.Context, b *Batch) error {
	for _, rec := range b.Records {
		b.Set(rec, "x")
	}
	c.cancel()
	return nil
}

func TestProject_UnboundModel(t *testing.T) {
	b := newBlog(t)

	_, err := b.project(t, b.engine(), b.posts, "title")
	require.Error(t, err)
	assert.True(t, apierr.IsDefinitionError(err))
	assert.Contains(t, err.Error(), "no server model bound")
}

func TestProject_UnboundNestedTarget(t *testing.T) {
	b := newBlog(t)
	b.bridge = NewBridge()
	require.NoError(t, b.bridge.BindAll(b.posts))

	_, err := b.project(t, b.engine(), b.posts, "author")
	require.Error(t, err)
	assert.True(t, apierr.IsDefinitionError(err))
}

func TestProject_MixedModelsRejected(t *testing.T) {
	b := newBlog(t)
	b.bindPosts(t, nil)
	recs := []*record.ServerRecord{
		record.NewServerRecord(b.posts, record.Row{"id": int64(1), "title": "t"}),
		record.NewServerRecord(b.users, record.Row{"id": int64(7)}),
	}

	_, err := b.engine().Project(context.Background(), nil, b.posts, recs, b.parse(t, b.posts, "title"))
	require.Error(t, err)
	assert.Equal(t, apierr.CodeInternal, apierr.CodeOf(err))
}

func TestProject_MaxDepth(t *testing.T) {
	b := newBlog(t)
	b.bindPosts(t, nil)

	_, err := b.project(t, b.engine(WithMaxDepth(0)), b.posts, "author(name)")
	require.Error(t, err)
	assert.True(t, apierr.IsValidationError(err))

	_, err = b.project(t, b.engine(WithMaxDepth(1)), b.posts, "author(name)")
	require.NoError(t, err)
}

func TestProject_EmptyBatch(t *testing.T) {
	b := newBlog(t)
	b.bindPosts(t, nil)

	out, err := b.engine().Project(context.Background(), nil, b.posts, nil, b.parse(t, b.posts, "author"))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, b.counting.Calls())
}
