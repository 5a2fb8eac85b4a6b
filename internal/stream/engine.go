package stream

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hashfydr/void-CLI/internal/models"
	"github.com/hashfydr/void-CLI/internal/store"
)

// Identity resolves the signed-in user.
type Identity interface {
	// CurrentUser returns the signed-in user or an error when nobody is
	// signed in.
	CurrentUser(ctx context.Context) (models.Principal, error)
	// Profile returns the public profile of a user, nil when none is set.
	Profile(ctx context.Context, userID string) (*models.Profile, error)
}

// Options tunes sessions. Zero values fall back to defaults.
type Options struct {
	PageSize      int
	Ceiling       int
	WindowSize    int
	EchoTolerance time.Duration

	// SubmitRate is the sustained submissions per second; <= 0 disables
	// throttling.
	SubmitRate  float64
	SubmitBurst int
}

// DefaultOptions returns the standard session settings.
func DefaultOptions() Options {
	return Options{
		PageSize:      DefaultPageSize,
		Ceiling:       DefaultCeiling,
		WindowSize:    DefaultWindowSize,
		EchoTolerance: DefaultEchoTolerance,
		SubmitRate:    5,
		SubmitBurst:   10,
	}
}

// Engine runs chat and comment sessions against one store.
type Engine struct {
	store    store.ItemStore
	identity Identity
	renderer Renderer
	input    InputReader
	logger   zerolog.Logger
	opts     Options
	limiter  *rate.Limiter
}

// NewEngine creates an engine. All sessions share the renderer, the input
// and the submission limiter.
func NewEngine(st store.ItemStore, identity Identity, renderer Renderer, input InputReader, logger zerolog.Logger, opts Options) *Engine {
	limit := rate.Inf
	if opts.SubmitRate > 0 {
		limit = rate.Limit(opts.SubmitRate)
	}
	burst := opts.SubmitBurst
	if burst <= 0 {
		burst = 1
	}
	return &Engine{
		store:    st,
		identity: identity,
		renderer: renderer,
		input:    input,
		logger:   logger,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// RunChatSession runs the global chatroom until the user quits, input ends
// or ctx is cancelled.
func (e *Engine) RunChatSession(ctx context.Context) error {
	s := e.newSession(store.ChatScope, ModeAppend)
	s.title = "Chatroom"
	s.hint = "Type a message and press Enter. 'p' loads older messages, ':q' quits."
	return s.Run(ctx)
}

// RunCommentSession runs the comment thread of a post.
func (e *Engine) RunCommentSession(ctx context.Context, postID string) error {
	s := e.newSession(store.CommentScope(postID), ModeWindow)
	s.title = "Comments"
	s.hint = "Type a comment and press Enter. ':q' quits."
	return s.Run(ctx)
}

func (e *Engine) newSession(scope store.Scope, mode Mode) *Session {
	return &Session{
		store:    e.store,
		identity: e.identity,
		renderer: e.renderer,
		input:    e.input,
		limiter:  e.limiter,
		logger:   e.logger.With().Str("scope", string(scope)).Logger(),
		opts:     e.opts,
		scope:    scope,
		mode:     mode,
	}
}
