package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hashfydr/void-CLI/internal/metrics"
	"github.com/hashfydr/void-CLI/internal/models"
	"github.com/hashfydr/void-CLI/internal/store"
	"github.com/hashfydr/void-CLI/internal/stream"
)

// ErrEmpty rejects blank posts and comments.
var ErrEmpty = errors.New("content is empty")

const defaultConcurrency = 8

// Entry is a post with its comments, oldest comment first.
type Entry struct {
	Post     models.Post
	Comments []models.Item
}

// Service reads and writes posts and one-shot comments.
type Service struct {
	data     store.DataStore
	items    store.ItemStore
	identity stream.Identity
	logger   zerolog.Logger

	// Concurrency bounds parallel comment loads in Feed.
	Concurrency int
}

func NewService(data store.DataStore, items store.ItemStore, identity stream.Identity, logger zerolog.Logger) *Service {
	return &Service{
		data:        data,
		items:       items,
		identity:    identity,
		logger:      logger,
		Concurrency: defaultConcurrency,
	}
}

// author resolves the signed-in user and the name shown on their content.
func (s *Service) author(ctx context.Context) (models.Principal, string, error) {
	p, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return models.Principal{}, "", &stream.AuthRequiredFailure{Err: err}
	}
	profile, err := s.identity.Profile(ctx, p.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", p.UserID).Msg("profile lookup failed")
	}
	return p, profile.DisplayName(p.Email), nil
}

// CreatePost publishes a post as the signed-in user.
func (s *Service) CreatePost(ctx context.Context, content string) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmpty
	}
	p, name, err := s.author(ctx)
	if err != nil {
		return nil, err
	}

	post := &models.Post{AuthorID: p.UserID, Username: name, Content: content}
	if err := s.data.CreatePost(ctx, post); err != nil {
		metrics.Failures.WithLabelValues("write").Inc()
		return nil, fmt.Errorf("create post: %w", err)
	}
	s.logger.Info().Str("post_id", post.ID).Msg("post created")
	return post, nil
}

// Posts lists every post, newest first.
func (s *Service) Posts(ctx context.Context) ([]models.Post, error) {
	posts, err := s.data.ListPosts(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Comments returns all comments on a post, oldest first.
func (s *Service) Comments(ctx context.Context, postID string) ([]models.Item, error) {
	scope := store.CommentScope(postID)
	items, err := s.items.Page(ctx, scope, 0, nil)
	if err != nil {
		metrics.Failures.WithLabelValues("fetch").Inc()
		return nil, &stream.FetchFailure{Scope: scope, Err: err}
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// CreateComment adds a comment to a post as the signed-in user.
func (s *Service) CreateComment(ctx context.Context, postID, text string) (*models.Item, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmpty
	}
	p, name, err := s.author(ctx)
	if err != nil {
		return nil, err
	}

	scope := store.CommentScope(postID)
	it := &models.Item{Text: text, AuthorID: p.UserID, AuthorUsername: name}
	if err := s.items.Write(ctx, scope, it); err != nil {
		metrics.Failures.WithLabelValues("write").Inc()
		return nil, &stream.WriteFailure{Scope: scope, Err: err}
	}
	metrics.ItemsWritten.WithLabelValues(scope.Kind()).Inc()
	return it, nil
}

// Feed returns every post, newest first, each with its comments.
func (s *Service) Feed(ctx context.Context) ([]Entry, error) {
	posts, err := s.Posts(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(posts))
	g, gctx := errgroup.WithContext(ctx)
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, post := range posts {
		i, post := i, post
		entries[i].Post = post
		g.Go(func() error {
			comments, err := s.Comments(gctx, post.ID)
			if err != nil {
				return err
			}
			entries[i].Comments = comments
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
