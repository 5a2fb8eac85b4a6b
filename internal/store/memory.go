package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashfydr/void-CLI/internal/crypto"
	"github.com/hashfydr/void-CLI/internal/models"
)

// MemoryItemStore is an in-process ItemStore. It backs tests and the
// single-process development mode.
type MemoryItemStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	last    time.Time
	streams map[Scope][]models.Item // newest first
	subs    map[Scope]map[*memorySub]struct{}

	// FailPage and FailWrite inject errors for tests.
	FailPage  error
	FailWrite error

	reads int
}

// NewMemoryItemStore creates an empty in-memory item store.
func NewMemoryItemStore() *MemoryItemStore {
	return &MemoryItemStore{
		now:     time.Now,
		streams: make(map[Scope][]models.Item),
		subs:    make(map[Scope]map[*memorySub]struct{}),
	}
}

// SetClock replaces the store clock.
func (s *MemoryItemStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Reads returns how many Page calls reached the store.
func (s *MemoryItemStore) Reads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads
}

// Ping always succeeds.
func (s *MemoryItemStore) Ping(ctx context.Context) error { return nil }

// Close closes every open subscription.
func (s *MemoryItemStore) Close() error {
	s.mu.Lock()
	var all []*memorySub
	for _, subs := range s.subs {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	s.subs = make(map[Scope]map[*memorySub]struct{})
	s.mu.Unlock()

	for _, sub := range all {
		sub.feed.close()
	}
	return nil
}

// tick returns a strictly increasing store timestamp.
func (s *MemoryItemStore) tick() time.Time {
	t := s.now().Truncate(time.Millisecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Millisecond)
	}
	s.last = t
	return t
}

// Write stores an item, assigning its ID and timestamp.
func (s *MemoryItemStore) Write(ctx context.Context, scope Scope, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrite != nil {
		return s.FailWrite
	}

	item.CreatedAt = s.tick()
	item.ID = crypto.NewItemID(item.CreatedAt)
	item.Scope = string(scope)
	item.Pending = false

	s.insertLocked(scope, *item)
	s.notifyLocked(scope)
	return nil
}

// Seed inserts an item with a caller-chosen ID and timestamp. Subscribers
// are notified as for Write.
func (s *MemoryItemStore) Seed(scope Scope, item models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.Scope = string(scope)
	if item.CreatedAt.After(s.last) {
		s.last = item.CreatedAt
	}
	s.insertLocked(scope, item)
	s.notifyLocked(scope)
}

func (s *MemoryItemStore) insertLocked(scope Scope, item models.Item) {
	list := s.streams[scope]
	i := sort.Search(len(list), func(i int) bool { return item.Newer(list[i]) })
	list = append(list, models.Item{})
	copy(list[i+1:], list[i:])
	list[i] = item
	s.streams[scope] = list
}

func (s *MemoryItemStore) notifyLocked(scope Scope) {
	for sub := range s.subs[scope] {
		sub.feed.push(sub.differ.next(s.topLocked(scope, sub.limit)))
	}
}

func (s *MemoryItemStore) topLocked(scope Scope, limit int) []models.Item {
	list := s.streams[scope]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]models.Item, limit)
	copy(out, list[:limit])
	return out
}

// Page returns items newest first, strictly older than before when set.
func (s *MemoryItemStore) Page(ctx context.Context, scope Scope, limit int, before *Cursor) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	if s.FailPage != nil {
		return nil, s.FailPage
	}

	list := s.streams[scope]
	start := 0
	if before != nil {
		start = sort.Search(len(list), func(i int) bool { return before.Before(list[i]) })
	}

	end := len(list)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	out := make([]models.Item, end-start)
	copy(out, list[start:end])
	return out, nil
}

// Subscribe registers a live view of the top-limit items of scope.
func (s *MemoryItemStore) Subscribe(ctx context.Context, scope Scope, limit int) (Subscription, error) {
	sub := &memorySub{store: s, scope: scope, limit: limit, feed: newFeed()}

	s.mu.Lock()
	if s.subs[scope] == nil {
		s.subs[scope] = make(map[*memorySub]struct{})
	}
	s.subs[scope][sub] = struct{}{}
	sub.feed.push(sub.differ.next(s.topLocked(scope, limit)))
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.feed.done:
		}
	}()

	return sub, nil
}

// Subscribers returns the number of open subscriptions on scope.
func (s *MemoryItemStore) Subscribers(scope Scope) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[scope])
}

type memorySub struct {
	store  *MemoryItemStore
	scope  Scope
	limit  int
	differ differ
	feed   *feed
}

func (m *memorySub) Snapshots() <-chan Snapshot { return m.feed.out }

func (m *memorySub) Close() error {
	m.store.mu.Lock()
	delete(m.store.subs[m.scope], m)
	m.store.mu.Unlock()

	m.feed.close()
	return nil
}

// MemoryDataStore is an in-process DataStore.
type MemoryDataStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	posts    []models.Post // newest first
}

// NewMemoryDataStore creates an empty in-memory data store.
func NewMemoryDataStore() *MemoryDataStore {
	return &MemoryDataStore{accounts: make(map[string]models.Account)}
}

func (s *MemoryDataStore) Close()                         {}
func (s *MemoryDataStore) Ping(ctx context.Context) error { return nil }

// CreateAccount stores a new account. Email and username must be unique.
func (s *MemoryDataStore) CreateAccount(ctx context.Context, acct *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, acct.Email) || a.Username == acct.Username {
			return ErrDuplicate
		}
	}
	if acct.ID == "" {
		acct.ID = crypto.NewUUIDv7().String()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now()
	}
	s.accounts[acct.ID] = *acct
	return nil
}

// GetAccountByID retrieves an account by ID.
func (s *MemoryDataStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// GetAccountByEmail retrieves an account by email, case-insensitively.
func (s *MemoryDataStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, nil
}

// GetAccountByUsername retrieves an account by username.
func (s *MemoryDataStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Username == username {
			return &a, nil
		}
	}
	return nil, nil
}

// MarkVerified flags an account's email as verified.
func (s *MemoryDataStore) MarkVerified(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Verified = true
	a.VerifyToken = ""
	s.accounts[id] = a
	return nil
}

// CreatePost stores a post, assigning its ID and timestamp.
func (s *MemoryDataStore) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post.CreatedAt = time.Now()
	if len(s.posts) > 0 && !post.CreatedAt.After(s.posts[0].CreatedAt) {
		post.CreatedAt = s.posts[0].CreatedAt.Add(time.Millisecond)
	}
	post.ID = crypto.NewItemID(post.CreatedAt)
	s.posts = append([]models.Post{*post}, s.posts...)
	return nil
}

// ListPosts returns posts newest first. A limit <= 0 returns all posts.
func (s *MemoryDataStore) ListPosts(ctx context.Context, limit int) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.posts) {
		limit = len(s.posts)
	}
	out := make([]models.Post, limit)
	copy(out, s.posts[:limit])
	return out, nil
}

// CountPosts returns the number of posts.
func (s *MemoryDataStore) CountPosts(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.posts)), nil
}
