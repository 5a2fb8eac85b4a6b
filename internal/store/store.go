package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashfydr/void-CLI/internal/models"
)

// DataStore defines the interface for persistent storage of accounts and posts.
// PostgresStore, SQLiteStore and MemoryDataStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Account operations
	CreateAccount(ctx context.Context, acct *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	MarkVerified(ctx context.Context, id string) error

	// Post operations
	CreatePost(ctx context.Context, post *models.Post) error
	ListPosts(ctx context.Context, limit int) ([]models.Post, error)
	CountPosts(ctx context.Context) (int64, error)
}

// ItemStore is an ordered, append-only document collection partitioned by
// scope. Every read is newest-first.
type ItemStore interface {
	// Page returns up to limit items, newest first. With a nil cursor it
	// starts at the newest item; otherwise only items strictly older than
	// the cursor are returned. A limit <= 0 returns the whole stream.
	Page(ctx context.Context, scope Scope, limit int, before *Cursor) ([]models.Item, error)

	// Subscribe delivers a snapshot of the current top-limit items every
	// time the scope changes. The first snapshot is delivered immediately.
	Subscribe(ctx context.Context, scope Scope, limit int) (Subscription, error)

	// Write stores an item, assigning its ID and authoritative CreatedAt.
	Write(ctx context.Context, scope Scope, item *models.Item) error

	Ping(ctx context.Context) error
	Close() error
}

// Subscription is a live view over one scope.
type Subscription interface {
	Snapshots() <-chan Snapshot
	// Close stops delivery. When it returns no further snapshot is sent
	// and the Snapshots channel is closed.
	Close() error
}

// Scope identifies a stream.
type Scope string

// ChatScope is the global chatroom stream.
const ChatScope Scope = "chat"

const commentPrefix = "comments:"

// CommentScope returns the stream of comments on a post.
func CommentScope(postID string) Scope {
	return Scope(commentPrefix + postID)
}

// Kind returns "chat" or "comments", used as a low-cardinality metric label.
func (s Scope) Kind() string {
	if strings.HasPrefix(string(s), commentPrefix) {
		return "comments"
	}
	return string(s)
}

// Cursor references the oldest item of the most recently fetched page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorOf returns a cursor positioned at it.
func CursorOf(it models.Item) *Cursor {
	return &Cursor{CreatedAt: it.CreatedAt, ID: it.ID}
}

// Before reports whether it is strictly older than the cursor.
func (c *Cursor) Before(it models.Item) bool {
	return models.Item{ID: c.ID, CreatedAt: c.CreatedAt}.Newer(it)
}

func (c *Cursor) String() string {
	return fmt.Sprintf("%d/%s", c.CreatedAt.UnixMilli(), c.ID)
}
