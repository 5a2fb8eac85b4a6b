package stream

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hashfydr/void-CLI/internal/metrics"
	"github.com/hashfydr/void-CLI/internal/models"
	"github.com/hashfydr/void-CLI/internal/store"
)

type lineResult struct {
	line string
	err  error
}

type pageResult struct {
	items []models.Item
	err   error
}

type submitResult struct {
	id   string
	echo models.Item
	err  error
}

// Session is one run of a stream view. It is single use.
//
// Input lines, live snapshots, page results and submit results are
// serialised onto one goroutine that drives Step. A line is only read
// while the session awaits input, so a finished session never leaves a
// read pending on the shared input.
type Session struct {
	store    store.ItemStore
	identity Identity
	renderer Renderer
	input    InputReader
	limiter  *rate.Limiter
	logger   zerolog.Logger
	opts     Options

	scope store.Scope
	mode  Mode
	title string
	hint  string

	principal  models.Principal
	pager      *Pager
	reconciler *Reconciler
	sub        store.Subscription
	snapshots  <-chan store.Snapshot

	want       chan struct{}
	stop       chan struct{}
	lines      chan lineResult
	pageDone   chan pageResult
	submitDone chan submitResult

	reading    bool
	inflight   bool
	onScreen   map[string]bool
	page       []models.Item
	lastSubmit submitResult
}

// Run blocks until the session is closed. It returns an
// *AuthRequiredFailure when nobody is signed in; every other failure is
// shown as a notice and the session continues.
func (s *Session) Run(ctx context.Context) error {
	principal, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return &AuthRequiredFailure{Err: err}
	}
	if principal.UserID == "" {
		return &AuthRequiredFailure{}
	}
	s.principal = principal
	s.logger = s.logger.With().Str("user_id", principal.UserID).Logger()

	s.pager = NewPager(s.store, s.scope, s.opts.PageSize, s.opts.Ceiling)
	s.reconciler = NewReconciler(s.mode, principal.UserID, s.opts.WindowSize, s.opts.EchoTolerance)
	s.want = make(chan struct{}, 1)
	s.stop = make(chan struct{})
	s.lines = make(chan lineResult)
	s.pageDone = make(chan pageResult, 1)
	s.submitDone = make(chan submitResult, 1)
	s.onScreen = make(map[string]bool)
	go s.readLoop()

	state := State{Phase: LoadingInitial, PagingEnabled: s.mode == ModeAppend}
	s.logger.Debug().Msg("session started")

	s.renderer.Begin(s.title, s.hint)
	items, err := s.pager.Next(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("initial load failed")
		s.renderer.Notice(LevelError, err.Error())
	} else if len(items) > 0 {
		s.renderer.Append(reversed(items)...)
		s.reconciler.MarkRendered(items...)
		s.markShown(items)
		metrics.Renders.WithLabelValues("append").Inc()
	}

	events := []Event{{
		Kind:         EvLoaded,
		Count:        len(items),
		Exhausted:    s.pager.Exhausted(),
		LimitReached: s.pager.LimitReached(),
		Err:          err,
	}}
	for state.Phase != Closed {
		if len(events) == 0 {
			events = append(events, s.wait(ctx, state))
		}
		ev := events[0]
		events = events[1:]

		var act Action
		state, act = Step(state, ev)
		if next, ok := s.perform(ctx, act); ok {
			events = append(events, next)
		}
	}

	s.logger.Debug().Int("fetched", s.pager.Fetched()).Msg("session closed")
	return nil
}

// wait blocks until the next event for the state machine. Snapshots are
// applied in place; they are held back while a submission is in flight so
// the local echo is drawn first.
func (s *Session) wait(ctx context.Context, state State) Event {
	for {
		if state.Phase == AwaitingInput && !s.reading {
			s.reading = true
			s.want <- struct{}{}
		}

		snapshots := s.snapshots
		if state.Phase == Submitting {
			snapshots = nil
		}

		select {
		case <-ctx.Done():
			return Event{Kind: EvCancel}

		case res := <-s.lines:
			s.reading = false
			if res.err != nil {
				if !errors.Is(res.err, io.EOF) {
					s.logger.Warn().Err(res.err).Msg("input read failed")
				}
				return Event{Kind: EvInputClosed}
			}
			return Event{Kind: EvLine, Line: res.line}

		case snap, ok := <-snapshots:
			if !ok {
				s.snapshots = nil
				continue
			}
			s.apply(snap)

		case res := <-s.pageDone:
			s.inflight = false
			s.page = res.items
			return Event{
				Kind:         EvPageDone,
				Count:        len(res.items),
				Exhausted:    s.pager.Exhausted(),
				LimitReached: s.pager.LimitReached(),
				Err:          res.err,
			}

		case res := <-s.submitDone:
			s.inflight = false
			s.lastSubmit = res
			return Event{Kind: EvSubmitDone, Err: res.err}
		}
	}
}

// perform carries out an action. Synchronous actions report their
// completion as a follow-up event.
func (s *Session) perform(ctx context.Context, act Action) (Event, bool) {
	switch act.Kind {
	case ActSubscribe:
		limit := 1
		if s.mode == ModeWindow {
			limit = 0
		}
		sub, err := s.store.Subscribe(ctx, s.scope, limit)
		if err != nil {
			metrics.Failures.WithLabelValues("fetch").Inc()
			s.logger.Warn().Err(err).Msg("subscribe failed")
			return Event{Kind: EvSubscribed, Err: &FetchFailure{Scope: s.scope, Err: err}}, true
		}
		s.sub = sub
		s.snapshots = sub.Snapshots()
		return Event{Kind: EvSubscribed}, true

	case ActFetchPage:
		s.inflight = true
		go func() {
			items, err := s.pager.Next(ctx)
			s.pageDone <- pageResult{items: items, err: err}
		}()

	case ActRenderPage:
		// After a failed initial load the first page starts at the newest
		// item, so it can overlap lines that arrived live in the meantime.
		page := s.unseen(s.page)
		s.reconciler.MarkRendered(s.page...)
		s.page = nil
		if len(page) > 0 {
			s.renderer.Prepend(reversed(page)...)
			s.markShown(page)
			metrics.Renders.WithLabelValues("prepend").Inc()
		}

	case ActSubmit:
		if !s.limiter.Allow() {
			s.submitDone <- submitResult{err: ErrThrottled}
			break
		}
		s.inflight = true
		go s.submit(ctx, act.Text)

	case ActEcho:
		s.reconciler.TrackEcho(s.lastSubmit.echo, s.lastSubmit.id)
		if s.lastSubmit.id != "" {
			s.onScreen[s.lastSubmit.id] = true
		}
		s.renderer.Append(s.lastSubmit.echo)
		metrics.Renders.WithLabelValues("echo").Inc()

	case ActNotice:
		s.renderer.Notice(act.Level, act.Text)

	case ActTeardown:
		s.teardown()
		return Event{Kind: EvTornDown}, true
	}
	return Event{}, false
}

func (s *Session) submit(ctx context.Context, text string) {
	profile, err := s.identity.Profile(ctx, s.principal.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("profile lookup failed")
	}
	name := profile.DisplayName(s.principal.Email)

	submittedAt := time.Now()
	item := &models.Item{
		Text:           text,
		AuthorID:       s.principal.UserID,
		AuthorUsername: name,
	}
	if err := s.store.Write(ctx, s.scope, item); err != nil {
		metrics.Failures.WithLabelValues("write").Inc()
		s.logger.Warn().Err(err).Msg("write failed")
		s.submitDone <- submitResult{err: &WriteFailure{Scope: s.scope, Err: err}}
		return
	}
	metrics.ItemsWritten.WithLabelValues(s.scope.Kind()).Inc()

	s.submitDone <- submitResult{
		id: item.ID,
		echo: models.Item{
			Scope:          string(s.scope),
			Text:           text,
			AuthorID:       s.principal.UserID,
			AuthorUsername: name,
			CreatedAt:      submittedAt,
			Pending:        true,
		},
	}
}

func (s *Session) apply(snap store.Snapshot) {
	metrics.SnapshotsReceived.WithLabelValues(s.scope.Kind()).Inc()

	d := s.reconciler.Reconcile(snap)
	if len(d.Append) > 0 {
		s.markShown(d.Append)
		s.renderer.Append(d.Append...)
		metrics.Renders.WithLabelValues("append").Inc()
	}
	if d.Window != nil {
		s.renderer.Replace(d.Window...)
		metrics.Renders.WithLabelValues("replace").Inc()
	}
}

func (s *Session) markShown(items []models.Item) {
	for _, it := range items {
		if it.ID != "" {
			s.onScreen[it.ID] = true
		}
	}
}

// unseen drops items that are already on screen.
func (s *Session) unseen(items []models.Item) []models.Item {
	out := make([]models.Item, 0, len(items))
	for _, it := range items {
		if !s.onScreen[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

// teardown lets an in-flight fetch or write settle, unsubscribes and stops
// the input reader.
func (s *Session) teardown() {
	if s.inflight {
		select {
		case res := <-s.pageDone:
			s.page = res.items
		case <-s.submitDone:
		}
		s.inflight = false
	}

	if s.sub != nil {
		if err := s.sub.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("unsubscribe failed")
		}
		s.sub = nil
	}
	s.snapshots = nil

	close(s.stop)
}

// readLoop reads one line per request until the session stops.
func (s *Session) readLoop() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.want:
		}

		line, err := s.input.ReadLine()
		select {
		case s.lines <- lineResult{line: line, err: err}:
		case <-s.stop:
			return
		}
		if err != nil {
			return
		}
	}
}
