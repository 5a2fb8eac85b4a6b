package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hashfydr/void-CLI/internal/crypto"
	"github.com/hashfydr/void-CLI/internal/models"
	"github.com/hashfydr/void-CLI/internal/store"
)

const waitFor = 2 * time.Second

var alice = models.Principal{UserID: "u-alice", Email: "alice@example.com"}

// seed inserts n items authored by bob into scope, one second apart, and
// returns them oldest first.
func seed(st *store.MemoryItemStore, scope store.Scope, n int) []models.Item {
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	items := make([]models.Item, n)
	for i := range items {
		at := base.Add(time.Duration(i) * time.Second)
		items[i] = models.Item{
			ID:             crypto.NewItemID(at),
			Text:           fmt.Sprintf("message %d", i),
			AuthorID:       "u-bob",
			AuthorUsername: "bob",
			CreatedAt:      at,
		}
		st.Seed(scope, items[i])
	}
	return items
}

type fakeIdentity struct {
	principal models.Principal
	profile   *models.Profile
	err       error
}

func (f *fakeIdentity) CurrentUser(ctx context.Context) (models.Principal, error) {
	if f.err != nil {
		return models.Principal{}, f.err
	}
	return f.principal, nil
}

func (f *fakeIdentity) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	return f.profile, nil
}

// chanInput feeds lines from a channel; closing it ends input.
type chanInput struct {
	ch    chan string
	reads atomic.Int32
}

func newChanInput() *chanInput {
	return &chanInput{ch: make(chan string, 16)}
}

func (c *chanInput) ReadLine() (string, error) {
	c.reads.Add(1)
	line, ok := <-c.ch
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

// recorder is a Renderer that keeps every rendered item in order.
type recorder struct {
	mu       sync.Mutex
	view     []models.Item
	rendered []models.Item
	notices  []string
}

func (r *recorder) Begin(title, hint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = nil
}

func (r *recorder) Append(items ...models.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = append(r.view, items...)
	r.rendered = append(r.rendered, items...)
}

func (r *recorder) Prepend(items ...models.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = append(append([]models.Item(nil), items...), r.view...)
	r.rendered = append(r.rendered, items...)
}

func (r *recorder) Replace(items ...models.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = append([]models.Item(nil), items...)
	r.rendered = append(r.rendered, items...)
}

func (r *recorder) Notice(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, msg)
}

func (r *recorder) View() []models.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Item(nil), r.view...)
}

func (r *recorder) Rendered() []models.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Item(nil), r.rendered...)
}

func (r *recorder) Notices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notices...)
}

func (r *recorder) hasNotice(substr string) bool {
	for _, n := range r.Notices() {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

func countText(items []models.Item, text string) int {
	n := 0
	for _, it := range items {
		if it.Text == text {
			n++
		}
	}
	return n
}

// gatedStore blocks Page calls while block is set until release is closed.
type gatedStore struct {
	*store.MemoryItemStore
	block   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(mem *store.MemoryItemStore) *gatedStore {
	return &gatedStore{
		MemoryItemStore: mem,
		entered:         make(chan struct{}, 1),
		release:         make(chan struct{}),
	}
}

func (g *gatedStore) Page(ctx context.Context, scope store.Scope, limit int, before *store.Cursor) ([]models.Item, error) {
	if g.block.Load() {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.MemoryItemStore.Page(ctx, scope, limit, before)
}

type harness struct {
	mem      *store.MemoryItemStore
	input    *chanInput
	out      *recorder
	identity *fakeIdentity
	engine   *Engine
	done     chan error
}

func newHarness(t *testing.T, st store.ItemStore, mem *store.MemoryItemStore, opts Options) *harness {
	t.Helper()
	h := &harness{
		mem:   mem,
		input: newChanInput(),
		out:   &recorder{},
		identity: &fakeIdentity{
			principal: alice,
			profile:   &models.Profile{UserID: alice.UserID, Username: "alice"},
		},
		done: make(chan error, 1),
	}
	h.engine = NewEngine(st, h.identity, h.out, h.input, zerolog.Nop(), opts)
	return h
}

func (h *harness) runChat(ctx context.Context) {
	go func() { h.done <- h.engine.RunChatSession(ctx) }()
}

func (h *harness) runComments(ctx context.Context, postID string) {
	go func() { h.done <- h.engine.RunCommentSession(ctx, postID) }()
}

func (h *harness) send(line string) {
	h.input.ch <- line
}

// awaitInput waits until the session has asked for its n-th line.
func (h *harness) awaitInput(t *testing.T, n int32) {
	t.Helper()
	require.Eventually(t, func() bool { return h.input.reads.Load() >= n }, waitFor, time.Millisecond)
}

func (h *harness) finish(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(waitFor):
		t.Fatal("session did not close")
		return errors.New("timeout")
	}
}
