package stream

import (
	"sort"
	"time"

	"github.com/hashfydr/void-CLI/internal/metrics"
	"github.com/hashfydr/void-CLI/internal/models"
	"github.com/hashfydr/void-CLI/internal/store"
)

// Mode selects how live snapshots turn into renders.
type Mode int

const (
	// ModeAppend follows the newest item (K=1) and appends new lines.
	ModeAppend Mode = iota
	// ModeWindow follows every item and repaints the latest window.
	ModeWindow
)

const (
	DefaultWindowSize    = 10
	DefaultEchoTolerance = time.Minute
)

// Decision is the outcome of reconciling one snapshot.
type Decision struct {
	// Append holds new items to add below the view, oldest first.
	Append []models.Item
	// Window holds the replacement view, oldest first. Nil when the view
	// is not repainted.
	Window []models.Item
	// Reason says why nothing was rendered.
	Reason string
}

// Render reports whether the decision changes the screen.
func (d Decision) Render() bool {
	return len(d.Append) > 0 || d.Window != nil
}

type echo struct {
	id       string
	authorID string
	text     string
	at       time.Time
}

// Reconciler decides, for each live snapshot, whether anything needs to be
// drawn. It owns the rendered-set marker of one session and is not safe
// for concurrent use.
type Reconciler struct {
	mode       Mode
	self       string
	windowSize int
	tolerance  time.Duration

	marker *models.Item
	window []string
	echoes []echo
}

// NewReconciler creates a reconciler for the user selfID.
func NewReconciler(mode Mode, selfID string, windowSize int, tolerance time.Duration) *Reconciler {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if tolerance <= 0 {
		tolerance = DefaultEchoTolerance
	}
	return &Reconciler{
		mode:       mode,
		self:       selfID,
		windowSize: windowSize,
		tolerance:  tolerance,
	}
}

// Marker returns the ID of the most recently rendered item.
func (r *Reconciler) Marker() string {
	if r.marker == nil {
		return ""
	}
	return r.marker.ID
}

// MarkRendered records items drawn outside the live feed, such as the
// initial page. Items may come in any order; pending items are ignored.
func (r *Reconciler) MarkRendered(items ...models.Item) {
	var confirmed []models.Item
	for _, it := range items {
		if it.Pending || it.ID == "" {
			continue
		}
		confirmed = append(confirmed, it)
		r.advance(it)
	}
	if r.mode == ModeWindow {
		r.window = ids(latest(confirmed, r.windowSize))
	}
}

// TrackEcho records a locally rendered submission. When the store
// returned an ID for the write, the echo matches on it; otherwise on
// author, text and a timestamp within the tolerance.
func (r *Reconciler) TrackEcho(it models.Item, confirmedID string) {
	r.echoes = append(r.echoes, echo{
		id:       confirmedID,
		authorID: it.AuthorID,
		text:     it.Text,
		at:       it.CreatedAt,
	})
}

// PendingEchoes returns the number of echoes not yet matched.
func (r *Reconciler) PendingEchoes() int { return len(r.echoes) }

// Reconcile decides what a snapshot means for the screen.
func (r *Reconciler) Reconcile(s store.Snapshot) Decision {
	var d Decision
	if r.mode == ModeWindow {
		d = r.reconcileWindow(s)
	} else {
		d = r.reconcileAppend(s)
	}
	if !d.Render() && d.Reason != "" {
		metrics.SnapshotsSuppressed.WithLabelValues(d.Reason).Inc()
	}
	return d
}

func (r *Reconciler) reconcileAppend(s store.Snapshot) Decision {
	if len(s.Items) == 0 {
		return Decision{Reason: "unchanged"}
	}
	if s.Items[0].ID == r.Marker() {
		return Decision{Reason: "seen"}
	}

	// Snapshots may coalesce, so every added item past the marker is a
	// candidate, not only the newest one.
	var fresh []models.Item
	seen := make(map[string]bool)
	for _, c := range s.Changes {
		if c.Type != store.Added || seen[c.Item.ID] {
			continue
		}
		seen[c.Item.ID] = true
		if r.marker == nil || c.Item.Newer(*r.marker) {
			fresh = append(fresh, c.Item)
		}
	}
	if !seen[s.Items[0].ID] && (r.marker == nil || s.Items[0].Newer(*r.marker)) {
		fresh = append(fresh, s.Items[0])
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[j].Newer(fresh[i]) })

	d := Decision{Reason: "seen"}
	for _, it := range fresh {
		r.advance(it)
		switch {
		case r.consumeEcho(it):
			d.Reason = "echo"
		case it.AuthorID == r.self:
			d.Reason = "own"
		default:
			d.Append = append(d.Append, it)
		}
	}
	return d
}

// reconcileWindow repaints the latest window on any modification or
// removal, and on additions only when they change which items the window
// holds. An addition that sorts below the window leaves the screen alone.
func (r *Reconciler) reconcileWindow(s store.Snapshot) Decision {
	if len(s.Changes) == 0 {
		return Decision{Reason: "unchanged"}
	}

	structural := false
	for _, c := range s.Changes {
		switch c.Type {
		case store.Added:
			r.consumeEcho(c.Item)
		case store.Modified, store.Removed:
			structural = true
		}
	}

	window := latest(s.Items, r.windowSize)
	next := ids(window)
	if !structural && equalIDs(next, r.window) {
		return Decision{Reason: "unchanged"}
	}

	r.window = next
	for _, it := range window {
		r.advance(it)
	}
	if window == nil {
		window = []models.Item{}
	}
	return Decision{Window: window}
}

func (r *Reconciler) advance(it models.Item) {
	if r.marker == nil || it.Newer(*r.marker) {
		m := it
		r.marker = &m
	}
}

func (r *Reconciler) consumeEcho(it models.Item) bool {
	for i, e := range r.echoes {
		if r.matches(e, it) {
			r.echoes = append(r.echoes[:i], r.echoes[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Reconciler) matches(e echo, it models.Item) bool {
	if e.id != "" {
		return e.id == it.ID
	}
	if e.authorID != it.AuthorID || e.text != it.Text {
		return false
	}
	delta := it.CreatedAt.Sub(e.at)
	if delta < 0 {
		delta = -delta
	}
	return delta <= r.tolerance
}

// latest returns the n newest items in ascending order.
func latest(items []models.Item, n int) []models.Item {
	sorted := make([]models.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Newer(sorted[j]) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return reversed(sorted)
}

func reversed(items []models.Item) []models.Item {
	if len(items) == 0 {
		return nil
	}
	out := make([]models.Item, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return out
}

func ids(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
