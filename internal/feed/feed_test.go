package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashfydr/void-CLI/internal/models"
	"github.com/hashfydr/void-CLI/internal/store"
	"github.com/hashfydr/void-CLI/internal/stream"
)

type staticIdentity struct {
	principal models.Principal
	username  string
	err       error
}

func (s staticIdentity) CurrentUser(ctx context.Context) (models.Principal, error) {
	return s.principal, s.err
}

func (s staticIdentity) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	if s.username == "" {
		return nil, nil
	}
	return &models.Profile{UserID: userID, Username: s.username}, nil
}

func newTestService(id stream.Identity) (*Service, *store.MemoryItemStore) {
	items := store.NewMemoryItemStore()
	return NewService(store.NewMemoryDataStore(), items, id, zerolog.Nop()), items
}

var dee = models.Principal{UserID: "u-dee", Email: "dee@example.com"}

func TestCreatePostAndComments(t *testing.T) {
	svc, _ := newTestService(staticIdentity{principal: dee, username: "dee"})
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "  first post ")
	require.NoError(t, err)
	assert.Equal(t, "first post", post.Content)
	assert.Equal(t, "dee", post.Username)

	for _, text := range []string{"a", "b", "c"} {
		_, err := svc.CreateComment(ctx, post.ID, text)
		require.NoError(t, err)
	}

	comments, err := svc.Comments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "a", comments[0].Text)
	assert.Equal(t, "c", comments[2].Text)
	assert.Equal(t, "dee", comments[0].AuthorUsername)

	_, err = svc.CreateComment(ctx, post.ID, "   ")
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = svc.CreatePost(ctx, "")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestAuthorFallsBackToEmail(t *testing.T) {
	svc, _ := newTestService(staticIdentity{principal: dee})
	post, err := svc.CreatePost(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, dee.Email, post.Username)
}

func TestWritesRequireAuth(t *testing.T) {
	svc, _ := newTestService(staticIdentity{err: errors.New("not logged in")})
	_, err := svc.CreatePost(context.Background(), "hello")
	var authErr *stream.AuthRequiredFailure
	assert.ErrorAs(t, err, &authErr)

	_, err = svc.CreateComment(context.Background(), "p", "hello")
	assert.ErrorAs(t, err, &authErr)
}

func TestFeedLoadsCommentsPerPost(t *testing.T) {
	svc, _ := newTestService(staticIdentity{principal: dee, username: "dee"})
	svc.Concurrency = 2
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		p, err := svc.CreatePost(ctx, fmt.Sprintf("post %d", i))
		require.NoError(t, err)
		for j := 0; j < i; j++ {
			_, err := svc.CreateComment(ctx, p.ID, fmt.Sprintf("comment %d", j))
			require.NoError(t, err)
		}
	}

	entries, err := svc.Feed(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "post 4", entries[0].Post.Content)
	for _, e := range entries {
		var n int
		fmt.Sscanf(e.Post.Content, "post %d", &n)
		assert.Len(t, e.Comments, n, e.Post.Content)
	}
}

func TestFeedSurfacesFetchFailure(t *testing.T) {
	svc, items := newTestService(staticIdentity{principal: dee, username: "dee"})
	ctx := context.Background()
	_, err := svc.CreatePost(ctx, "post")
	require.NoError(t, err)

	items.FailPage = errors.New("down")
	_, err = svc.Feed(ctx)
	var ff *stream.FetchFailure
	assert.ErrorAs(t, err, &ff)
}
