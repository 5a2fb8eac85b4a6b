package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashfydr/void-CLI/internal/models"
	"github.com/hashfydr/void-CLI/internal/store"
)

func assertAscending(t *testing.T, items []models.Item) {
	t.Helper()
	for i := 1; i < len(items); i++ {
		assert.True(t, items[i].Newer(items[i-1]), "item %d out of order", i)
	}
}

func TestSessionEmptyStream(t *testing.T) {
	mem := store.NewMemoryItemStore()
	h := newHarness(t, mem, mem, DefaultOptions())
	h.runChat(context.Background())

	h.awaitInput(t, 1)
	assert.Empty(t, h.out.View())
	assert.Empty(t, h.out.Notices())
	assert.Equal(t, 1, mem.Subscribers(store.ChatScope))

	h.send(":q")
	require.NoError(t, h.finish(t))
	assert.Equal(t, 0, mem.Subscribers(store.ChatScope))
}

func TestSessionRequiresAuth(t *testing.T) {
	mem := store.NewMemoryItemStore()
	h := newHarness(t, mem, mem, DefaultOptions())
	h.identity.err = errors.New("not signed in")

	err := h.engine.RunChatSession(context.Background())
	var authErr *AuthRequiredFailure
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, int32(0), h.input.reads.Load())
	assert.Equal(t, 0, mem.Subscribers(store.ChatScope))
}

func TestSessionInitialLoad(t *testing.T) {
	mem := store.NewMemoryItemStore()
	seeded := seed(mem, store.ChatScope, 25)
	h := newHarness(t, mem, mem, DefaultOptions())
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	view := h.out.View()
	require.Len(t, view, 10)
	assert.Equal(t, ids(seeded[15:]), ids(view))

	close(h.input.ch)
	require.NoError(t, h.finish(t))
	assert.Equal(t, 0, mem.Subscribers(store.ChatScope))
}

func TestSessionSubmitEchoesOnce(t *testing.T) {
	mem := store.NewMemoryItemStore()
	seed(mem, store.ChatScope, 3)
	h := newHarness(t, mem, mem, DefaultOptions())
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	h.send("hello")
	h.awaitInput(t, 2)

	// The first rendering of the submission is the local echo.
	rendered := h.out.Rendered()
	require.Equal(t, 1, countText(rendered, "hello"))
	echoed := rendered[len(rendered)-1]
	assert.True(t, echoed.Pending)
	assert.Equal(t, "alice", echoed.AuthorUsername)
	assert.Empty(t, echoed.ID)

	// A later foreign message proves the store echo has been processed.
	require.NoError(t, mem.Write(context.Background(), store.ChatScope, &models.Item{
		AuthorID: "u-bob", AuthorUsername: "bob", Text: "ping",
	}))
	require.Eventually(t, func() bool { return countText(h.out.View(), "ping") == 1 }, waitFor, time.Millisecond)

	assert.Equal(t, 1, countText(h.out.Rendered(), "hello"))
	assert.Equal(t, 1, countText(h.out.View(), "hello"))

	stored, err := mem.Page(context.Background(), store.ChatScope, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, countText(stored, "hello"))

	h.send(":q")
	require.NoError(t, h.finish(t))
}

func TestSessionDisplayNameFallsBackToEmail(t *testing.T) {
	mem := store.NewMemoryItemStore()
	h := newHarness(t, mem, mem, DefaultOptions())
	h.identity.profile = nil
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	h.send("hi")
	h.awaitInput(t, 2)

	view := h.out.View()
	require.Len(t, view, 1)
	assert.Equal(t, alice.Email, view[0].AuthorUsername)

	h.send(":q")
	require.NoError(t, h.finish(t))
}

func TestSessionPagingScenario(t *testing.T) {
	mem := store.NewMemoryItemStore()
	seeded := seed(mem, store.ChatScope, 15)
	h := newHarness(t, mem, mem, DefaultOptions())
	h.runChat(context.Background())
	h.awaitInput(t, 1)
	require.Len(t, h.out.View(), 10)

	h.send("p")
	h.awaitInput(t, 2)
	view := h.out.View()
	require.Len(t, view, 15)
	assert.Equal(t, ids(seeded), ids(view))
	assertAscending(t, view)
	assert.Equal(t, 2, mem.Reads())

	h.send("P")
	h.awaitInput(t, 3)
	assert.True(t, h.out.hasNotice(msgNoMore))
	assert.Equal(t, 2, mem.Reads())
	assert.Len(t, h.out.View(), 15)

	h.send(":q")
	require.NoError(t, h.finish(t))
}

func TestSessionPagingExactMultiple(t *testing.T) {
	mem := store.NewMemoryItemStore()
	seed(mem, store.ChatScope, 20)
	h := newHarness(t, mem, mem, DefaultOptions())
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	h.send("p")
	h.awaitInput(t, 2)
	assert.Len(t, h.out.View(), 20)
	assert.False(t, h.out.hasNotice(msgNoMore))

	h.send("p")
	h.awaitInput(t, 3)
	assert.True(t, h.out.hasNotice(msgNoMore))
	assert.Equal(t, 3, mem.Reads())

	h.send("p")
	h.awaitInput(t, 4)
	assert.Equal(t, 3, mem.Reads())

	h.send(":q")
	require.NoError(t, h.finish(t))
}

func TestSessionFetchCeiling(t *testing.T) {
	mem := store.NewMemoryItemStore()
	seed(mem, store.ChatScope, 25)
	opts := DefaultOptions()
	opts.Ceiling = 10
	h := newHarness(t, mem, mem, opts)
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	h.send("p")
	h.awaitInput(t, 2)
	assert.True(t, h.out.hasNotice(msgLimitReached))
	assert.Equal(t, 1, mem.Reads())
	assert.Len(t, h.out.View(), 10)

	h.send(":q")
	require.NoError(t, h.finish(t))
}

func TestSessionQuitWhilePaging(t *testing.T) {
	mem := store.NewMemoryItemStore()
	seed(mem, store.ChatScope, 15)
	gated := newGatedStore(mem)
	h := newHarness(t, gated, mem, DefaultOptions())
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	gated.block.Store(true)
	h.send("p")
	select {
	case <-gated.entered:
	case <-time.After(waitFor):
		t.Fatal("page fetch not issued")
	}
	h.send(":q")

	select {
	case <-h.done:
		t.Fatal("session closed with a fetch outstanding")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, mem.Subscribers(store.ChatScope))

	close(gated.release)
	require.NoError(t, h.finish(t))
	assert.Equal(t, 0, mem.Subscribers(store.ChatScope))
	assert.Len(t, h.out.View(), 15)
}

func TestSessionWriteFailure(t *testing.T) {
	mem := store.NewMemoryItemStore()
	mem.FailWrite = errors.New("permission denied")
	h := newHarness(t, mem, mem, DefaultOptions())
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	h.send("hello")
	h.awaitInput(t, 2)
	assert.Empty(t, h.out.View())
	assert.True(t, h.out.hasNotice("permission denied"))

	h.send(":q")
	require.NoError(t, h.finish(t))
}

func TestSessionFetchFailureIsRetryable(t *testing.T) {
	mem := store.NewMemoryItemStore()
	seed(mem, store.ChatScope, 15)
	gated := newGatedStore(mem)
	h := newHarness(t, gated, mem, DefaultOptions())
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	// Fail the next page while the fetch is parked.
	gated.block.Store(true)
	h.send("p")
	<-gated.entered
	gated.block.Store(false)
	mem.FailPage = errors.New("unavailable")
	close(gated.release)
	h.awaitInput(t, 2)
	assert.True(t, h.out.hasNotice("unavailable"))
	assert.Len(t, h.out.View(), 10)

	mem.FailPage = nil
	h.send("p")
	h.awaitInput(t, 3)
	assert.Len(t, h.out.View(), 15)

	h.send(":q")
	require.NoError(t, h.finish(t))
}

func TestSessionRetryAfterFailedInitialLoad(t *testing.T) {
	mem := store.NewMemoryItemStore()
	seeded := seed(mem, store.ChatScope, 3)
	mem.FailPage = errors.New("unavailable")
	h := newHarness(t, mem, mem, DefaultOptions())
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	// The live feed still shows the newest item.
	require.Eventually(t, func() bool { return len(h.out.View()) == 1 }, waitFor, time.Millisecond)
	assert.True(t, h.out.hasNotice("unavailable"))

	mem.FailPage = nil
	h.send("p")
	h.awaitInput(t, 2)

	view := h.out.View()
	require.Len(t, view, 3)
	for i, it := range seeded {
		assert.Equal(t, it.ID, view[i].ID)
	}
	assertAscending(t, view)

	counts := make(map[string]int)
	for _, it := range h.out.Rendered() {
		counts[it.ID]++
	}
	for id, n := range counts {
		assert.Equal(t, 1, n, "item %s rendered %d times", id, n)
	}

	h.send(":q")
	require.NoError(t, h.finish(t))
}

func TestSessionLiveForeignMessages(t *testing.T) {
	mem := store.NewMemoryItemStore()
	seed(mem, store.ChatScope, 2)
	h := newHarness(t, mem, mem, DefaultOptions())
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	ctx := context.Background()
	require.NoError(t, mem.Write(ctx, store.ChatScope, &models.Item{AuthorID: "u-bob", AuthorUsername: "bob", Text: "one"}))
	require.NoError(t, mem.Write(ctx, store.ChatScope, &models.Item{AuthorID: "u-bob", AuthorUsername: "bob", Text: "two"}))
	require.Eventually(t, func() bool { return len(h.out.View()) == 4 }, waitFor, time.Millisecond)

	view := h.out.View()
	assert.Equal(t, "one", view[2].Text)
	assert.Equal(t, "two", view[3].Text)
	assertAscending(t, view)

	h.send(":q")
	require.NoError(t, h.finish(t))
}

// A second session of the same user is not shown live; the author check
// cannot tell the sessions apart.
func TestSessionSuppressesSameAuthorFromElsewhere(t *testing.T) {
	mem := store.NewMemoryItemStore()
	h := newHarness(t, mem, mem, DefaultOptions())
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	ctx := context.Background()
	require.NoError(t, mem.Write(ctx, store.ChatScope, &models.Item{AuthorID: alice.UserID, Text: "elsewhere"}))
	require.NoError(t, mem.Write(ctx, store.ChatScope, &models.Item{AuthorID: "u-bob", Text: "after"}))
	require.Eventually(t, func() bool { return countText(h.out.View(), "after") == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 0, countText(h.out.View(), "elsewhere"))

	h.send(":q")
	require.NoError(t, h.finish(t))
}

func TestSessionCancel(t *testing.T) {
	mem := store.NewMemoryItemStore()
	h := newHarness(t, mem, mem, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	h.runChat(ctx)
	h.awaitInput(t, 1)

	cancel()
	require.NoError(t, h.finish(t))
	assert.Equal(t, 0, mem.Subscribers(store.ChatScope))
}

func TestSessionThrottlesSubmissions(t *testing.T) {
	mem := store.NewMemoryItemStore()
	opts := DefaultOptions()
	opts.SubmitRate = 0.001
	opts.SubmitBurst = 1
	h := newHarness(t, mem, mem, opts)
	h.runChat(context.Background())
	h.awaitInput(t, 1)

	h.send("first")
	h.awaitInput(t, 2)
	h.send("second")
	h.awaitInput(t, 3)

	assert.True(t, h.out.hasNotice(ErrThrottled.Error()))
	stored, err := mem.Page(context.Background(), store.ChatScope, 0, nil)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "first", stored[0].Text)

	h.send(":q")
	require.NoError(t, h.finish(t))
}

func TestCommentSessionWindow(t *testing.T) {
	mem := store.NewMemoryItemStore()
	scope := store.CommentScope("post-1")
	seeded := seed(mem, scope, 12)
	h := newHarness(t, mem, mem, DefaultOptions())
	h.runComments(context.Background(), "post-1")
	h.awaitInput(t, 1)

	view := h.out.View()
	assert.Equal(t, ids(seeded[2:]), ids(view))
	renders := len(h.out.Rendered())

	// "p" is a comment here, not a command.
	h.send("p")
	h.awaitInput(t, 2)
	require.Eventually(t, func() bool {
		v := h.out.View()
		return len(v) == 10 && v[9].Text == "p" && !v[9].Pending
	}, waitFor, time.Millisecond)

	view = h.out.View()
	assert.Equal(t, ids(seeded[3:]), ids(view[:9]))
	assertAscending(t, view)
	assert.Equal(t, 1, countText(view, "p"))

	// Echo first, then the repainted window.
	rendered := h.out.Rendered()[renders:]
	require.NotEmpty(t, rendered)
	assert.Equal(t, "p", rendered[0].Text)
	assert.True(t, rendered[0].Pending)
	assert.Equal(t, 1, mem.Reads(), "only the initial load reads pages")

	h.send(":q")
	require.NoError(t, h.finish(t))
	assert.Equal(t, 0, mem.Subscribers(scope))
}

func TestCommentSessionRepeatedSnapshotsDoNotRepaint(t *testing.T) {
	mem := store.NewMemoryItemStore()
	scope := store.CommentScope("post-2")
	seed(mem, scope, 4)
	h := newHarness(t, mem, mem, DefaultOptions())
	h.runComments(context.Background(), "post-2")
	h.awaitInput(t, 1)

	// Give the initial snapshot time to arrive; it must not repaint.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, h.out.Rendered(), 4)

	require.NoError(t, mem.Write(context.Background(), scope, &models.Item{AuthorID: "u-bob", Text: "new"}))
	require.Eventually(t, func() bool { return len(h.out.View()) == 5 }, waitFor, time.Millisecond)
	assert.Len(t, h.out.Rendered(), 9)

	h.send(":q")
	require.NoError(t, h.finish(t))
}
