package watch

import (
	"sync"
	"time"
)

// DefaultMaxDebounceEntries caps the number of paths tracked by a Debouncer.
const DefaultMaxDebounceEntries = 65536

// sweepEvery is the number of accepted events between eviction sweeps.
const sweepEvery = 1024

// Debouncer drops an event when another event for the same path was
// accepted less than the window ago. Entries older than the window can no
// longer suppress anything and are evicted, and the table never holds more
// than max entries.
type Debouncer struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	now      func() time.Time
	last     map[string]time.Time
	accepted int
}

// NewDebouncer creates a Debouncer. A non-positive max uses
// DefaultMaxDebounceEntries.
func NewDebouncer(window time.Duration, max int) *Debouncer {
	if max <= 0 {
		max = DefaultMaxDebounceEntries
	}
	return &Debouncer{
		window: window,
		max:    max,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
}

// Allow reports whether an event for path should be processed. A dropped
// event does not extend the window.
func (d *Debouncer) Allow(path string) bool {
	if d.window <= 0 {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.last[path]; ok && now.Sub(last) < d.window {
		return false
	}

	d.last[path] = now
	d.accepted++
	if d.accepted%sweepEvery == 0 || len(d.last) > d.max {
		d.evict(now)
	}
	return true
}

// Len returns the number of tracked paths.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.last)
}

// evict removes expired entries, then the oldest ones while over max.
// Callers hold d.mu.
func (d *Debouncer) evict(now time.Time) {
	for p, t := range d.last {
		if now.Sub(t) >= d.window {
			delete(d.last, p)
		}
	}
	for len(d.last) > d.max {
		var (
			oldestPath string
			oldest     time.Time
			found      bool
		)
		for p, t := range d.last {
			if !found || t.Before(oldest) {
				oldestPath, oldest, found = p, t, true
			}
		}
		delete(d.last, oldestPath)
	}
}
