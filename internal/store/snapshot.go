package store

import (
	"sort"
	"sync"

	"github.com/hashfydr/void-CLI/internal/models"
)

// ChangeType classifies an entry of a snapshot diff.
type ChangeType int

const (
	Added ChangeType = iota
	Modified
	Removed
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one entry of a snapshot diff.
type Change struct {
	Type ChangeType
	Item models.Item
}

// Snapshot is the current top-K of a scope plus what changed since the
// previous snapshot of the same subscription.
type Snapshot struct {
	Items   []models.Item // newest first
	Changes []Change
}

// differ turns successive top-K reads into snapshots.
type differ struct {
	prev map[string]models.Item
}

func (d *differ) next(items []models.Item) Snapshot {
	cur := make(map[string]models.Item, len(items))
	var changes []Change

	for _, it := range items {
		cur[it.ID] = it
		old, ok := d.prev[it.ID]
		switch {
		case !ok:
			changes = append(changes, Change{Type: Added, Item: it})
		case old.Text != it.Text || !old.CreatedAt.Equal(it.CreatedAt):
			changes = append(changes, Change{Type: Modified, Item: it})
		}
	}

	var removed []models.Item
	for id, old := range d.prev {
		if _, ok := cur[id]; !ok {
			removed = append(removed, old)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Newer(removed[j]) })
	for _, it := range removed {
		changes = append(changes, Change{Type: Removed, Item: it})
	}

	d.prev = cur
	return Snapshot{Items: items, Changes: changes}
}

// feed delivers snapshots to one consumer without ever blocking the
// producer. Undelivered snapshots coalesce: the newest items win and the
// changes accumulate.
type feed struct {
	out  chan Snapshot
	wake chan struct{}
	done chan struct{}

	mu      sync.Mutex
	pending *Snapshot

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newFeed() *feed {
	f := &feed{
		out:  make(chan Snapshot),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	f.wg.Add(1)
	go f.pump()
	return f
}

func (f *feed) push(s Snapshot) {
	f.mu.Lock()
	if f.pending == nil {
		f.pending = &s
	} else {
		f.pending.Items = s.Items
		f.pending.Changes = append(f.pending.Changes, s.Changes...)
	}
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *feed) pump() {
	defer f.wg.Done()
	defer close(f.out)

	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
		}

		f.mu.Lock()
		s := f.pending
		f.pending = nil
		f.mu.Unlock()
		if s == nil {
			continue
		}

		select {
		case f.out <- *s:
		case <-f.done:
			return
		}
	}
}

// close stops the pump and waits for it to exit.
func (f *feed) close() {
	f.closeOnce.Do(func() { close(f.done) })
	f.wg.Wait()
}
