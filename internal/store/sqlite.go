package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hashfydr/void-CLI/internal/crypto"
	"github.com/hashfydr/void-CLI/internal/metrics"
	"github.com/hashfydr/void-CLI/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/void.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/void.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL COLLATE NOCASE UNIQUE,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		verified INTEGER NOT NULL DEFAULT 0,
		verify_token TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL REFERENCES accounts(id),
		username TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isSQLiteUnique(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateAccount creates a new account record.
func (s *SQLiteStore) CreateAccount(ctx context.Context, acct *models.Account) error {
	defer metrics.ObserveStore("sqlite", "create_account", time.Now())

	if acct.ID == "" {
		acct.ID = crypto.NewUUIDv7().String()
	}
	acct.CreatedAt = time.Now().Truncate(time.Millisecond)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, username, password_hash, verified, verify_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, acct.ID, acct.Email, acct.Username, acct.PasswordHash, boolToInt(acct.Verified), acct.VerifyToken, acct.CreatedAt.UnixMilli())
	if err != nil {
		if isSQLiteUnique(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *SQLiteStore) getAccount(ctx context.Context, where string, arg any) (*models.Account, error) {
	defer metrics.ObserveStore("sqlite", "get_account", time.Now())

	acct := &models.Account{}
	var verified int
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, username, password_hash, verified, verify_token, created_at
		FROM accounts WHERE `+where, arg).Scan(
		&acct.ID,
		&acct.Email,
		&acct.Username,
		&acct.PasswordHash,
		&verified,
		&acct.VerifyToken,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	acct.Verified = verified == 1
	acct.CreatedAt = time.UnixMilli(createdAt)
	return acct, nil
}

// GetAccountByID retrieves an account by ID.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.getAccount(ctx, "id = ?", id)
}

// GetAccountByEmail retrieves an account by email, case-insensitively.
func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getAccount(ctx, "email = ?", email)
}

// GetAccountByUsername retrieves an account by username.
func (s *SQLiteStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.getAccount(ctx, "username = ?", username)
}

// MarkVerified flags an account's email as verified.
func (s *SQLiteStore) MarkVerified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET verified = 1, verify_token = '' WHERE id = ?
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePost creates a new post.
func (s *SQLiteStore) CreatePost(ctx context.Context, post *models.Post) error {
	defer metrics.ObserveStore("sqlite", "create_post", time.Now())

	post.CreatedAt = time.Now().Truncate(time.Millisecond)
	post.ID = crypto.NewItemID(post.CreatedAt)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, author_id, username, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, post.ID, post.AuthorID, post.Username, post.Content, post.CreatedAt.UnixMilli())
	return err
}

// ListPosts retrieves posts newest first. A limit <= 0 returns all posts.
func (s *SQLiteStore) ListPosts(ctx context.Context, limit int) ([]models.Post, error) {
	defer metrics.ObserveStore("sqlite", "list_posts", time.Now())

	if limit <= 0 {
		limit = -1 // no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author_id, username, content, created_at
		FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Username, &p.Content, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = time.UnixMilli(createdAt)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CountPosts returns the total number of posts.
func (s *SQLiteStore) CountPosts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count)
	return count, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
