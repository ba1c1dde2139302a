package event

import (
	"sync"
	"time"

	"github.com/daemonp/ajax2mqtt/internal/types"
)

const (
	DefaultDedupWindow    = 5 * time.Second
	DefaultDedupRetention = 60 * time.Second
)

// Deduplicator suppresses repeated deliveries of the same logical event.
// The push channel redelivers on reconnect and the proxy occasionally
// duplicates frames, so equal keys within the window collapse to one.
type Deduplicator struct {
	mu        sync.Mutex
	window    time.Duration
	retention time.Duration
	seen      map[types.EventKey]time.Time
}

// NewDeduplicator builds a deduplicator. Non-positive arguments fall back
// to the defaults, and retention never drops below the window.
func NewDeduplicator(window, retention time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if retention <= 0 {
		retention = DefaultDedupRetention
	}
	if retention < window {
		retention = window
	}
	return &Deduplicator{
		window:    window,
		retention: retention,
		seen:      make(map[types.EventKey]time.Time),
	}
}

// ShouldProcess reports whether key is new within the window, recording it
// when it is. Expired entries are pruned opportunistically on each call so
// the map stays bounded without a timer.
func (d *Deduplicator) ShouldProcess(key types.EventKey, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return false
	}
	d.seen[key] = now

	for k, ts := range d.seen {
		if now.Sub(ts) >= d.retention {
			delete(d.seen, k)
		}
	}
	return true
}

// Len reports the number of retained keys.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
