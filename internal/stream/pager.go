package stream

import (
	"context"

	"github.com/hashfydr/void-CLI/internal/metrics"
	"github.com/hashfydr/void-CLI/internal/models"
	"github.com/hashfydr/void-CLI/internal/store"
)

const (
	DefaultPageSize = 10
	DefaultCeiling  = 5000
)

// Pager walks a stream backwards one bounded page at a time.
//
// A page shorter than the page size ends the walk: the cursor is cleared
// and every later call returns ErrExhausted without touching the store.
// Once the total number of fetched items reaches the ceiling, calls return
// ErrLimitReached. A Pager is not safe for concurrent use.
type Pager struct {
	store    store.ItemStore
	scope    store.Scope
	pageSize int
	ceiling  int

	cursor    *store.Cursor
	fetched   int
	exhausted bool
}

// NewPager creates a pager over scope. Non-positive sizes fall back to the
// defaults.
func NewPager(st store.ItemStore, scope store.Scope, pageSize, ceiling int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Pager{
		store:    st,
		scope:    scope,
		pageSize: pageSize,
		ceiling:  ceiling,
	}
}

// Next fetches the next older page, newest first.
func (p *Pager) Next(ctx context.Context) ([]models.Item, error) {
	if p.exhausted {
		return nil, ErrExhausted
	}
	if p.LimitReached() {
		return nil, ErrLimitReached
	}

	items, err := p.store.Page(ctx, p.scope, p.pageSize, p.cursor)
	if err != nil {
		metrics.Failures.WithLabelValues("fetch").Inc()
		return nil, &FetchFailure{Scope: p.scope, Err: err}
	}

	p.fetched += len(items)
	metrics.PagesFetched.WithLabelValues(p.scope.Kind()).Inc()
	metrics.ItemsFetched.WithLabelValues(p.scope.Kind()).Add(float64(len(items)))

	switch {
	case len(items) < p.pageSize:
		p.exhausted = true
		p.cursor = nil
	case p.LimitReached():
		p.cursor = nil
	default:
		p.cursor = store.CursorOf(items[len(items)-1])
	}
	return items, nil
}

// Exhausted reports whether the start of the stream has been reached.
func (p *Pager) Exhausted() bool { return p.exhausted }

// LimitReached reports whether the fetch ceiling has been reached.
func (p *Pager) LimitReached() bool { return p.fetched >= p.ceiling }

// Fetched returns the total number of items fetched so far.
func (p *Pager) Fetched() int { return p.fetched }

// Cursor returns the current resumption point, nil before the first fetch
// and after the walk ended.
func (p *Pager) Cursor() *store.Cursor { return p.cursor }
