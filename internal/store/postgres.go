package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hashfydr/void-CLI/internal/crypto"
	"github.com/hashfydr/void-CLI/internal/metrics"
	"github.com/hashfydr/void-CLI/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RunMigrations creates the schema if it does not exist.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		verify_token TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email ON accounts (lower(email));

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL REFERENCES accounts(id),
		username TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at DESC);
	`)
	return err
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateAccount creates a new account record.
func (s *PostgresStore) CreateAccount(ctx context.Context, acct *models.Account) error {
	defer metrics.ObserveStore("postgres", "create_account", time.Now())

	if acct.ID == "" {
		acct.ID = crypto.NewUUIDv7().String()
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, username, password_hash, verified, verify_token)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, acct.ID, acct.Email, acct.Username, acct.PasswordHash, acct.Verified, acct.VerifyToken).Scan(&acct.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

const accountColumns = `id, email, username, password_hash, verified, verify_token, created_at`

func (s *PostgresStore) getAccount(ctx context.Context, where string, arg any) (*models.Account, error) {
	defer metrics.ObserveStore("postgres", "get_account", time.Now())

	acct := &models.Account{}
	err := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg).Scan(
		&acct.ID,
		&acct.Email,
		&acct.Username,
		&acct.PasswordHash,
		&acct.Verified,
		&acct.VerifyToken,
		&acct.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return acct, nil
}

// GetAccountByID retrieves an account by ID.
func (s *PostgresStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.getAccount(ctx, "id = $1", id)
}

// GetAccountByEmail retrieves an account by email, case-insensitively.
func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getAccount(ctx, "lower(email) = lower($1)", email)
}

// GetAccountByUsername retrieves an account by username.
func (s *PostgresStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.getAccount(ctx, "username = $1", username)
}

// MarkVerified flags an account's email as verified.
func (s *PostgresStore) MarkVerified(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET verified = TRUE, verify_token = '' WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePost creates a new post.
func (s *PostgresStore) CreatePost(ctx context.Context, post *models.Post) error {
	defer metrics.ObserveStore("postgres", "create_post", time.Now())

	post.ID = crypto.NewItemID(time.Now())
	return s.pool.QueryRow(ctx, `
		INSERT INTO posts (id, author_id, username, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, post.ID, post.AuthorID, post.Username, post.Content).Scan(&post.CreatedAt)
}

// ListPosts retrieves posts newest first. A limit <= 0 returns all posts.
func (s *PostgresStore) ListPosts(ctx context.Context, limit int) ([]models.Post, error) {
	defer metrics.ObserveStore("postgres", "list_posts", time.Now())

	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, author_id, username, content, created_at
		FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Username, &p.Content, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CountPosts returns the total number of posts.
func (s *PostgresStore) CountPosts(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count)
	return count, err
}
