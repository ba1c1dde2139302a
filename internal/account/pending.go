package account

import (
	"sync"
	"time"
)

// A command whose effect takes longer than this has effectively failed, so
// the stale mark must not claim an unrelated security event later.
const defaultPendingTTL = 30 * time.Second

// pendingTracker remembers hubs with a locally issued arm/disarm command in
// flight, so the resulting push event is attributed to the bridge rather
// than the raw cloud actor.
type pendingTracker struct {
	mu    sync.Mutex
	ttl   time.Duration
	marks map[string]time.Time
}

func newPendingTracker(ttl time.Duration) *pendingTracker {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &pendingTracker{
		ttl:   ttl,
		marks: make(map[string]time.Time),
	}
}

func (p *pendingTracker) Mark(hubID string, now time.Time) {
	p.mu.Lock()
	p.marks[hubID] = now
	p.mu.Unlock()
}

// Pending reports whether hubID has a live mark.
func (p *pendingTracker) Pending(hubID string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	mark, ok := p.marks[hubID]
	return ok && now.Sub(mark) < p.ttl
}

// Consume claims the mark if it is still live: one command attributes one
// event. The mark is removed either way.
func (p *pendingTracker) Consume(hubID string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	mark, ok := p.marks[hubID]
	if !ok {
		return false
	}
	delete(p.marks, hubID)
	return now.Sub(mark) < p.ttl
}
