package account

import (
	"sync"
	"time"
)

const defaultProtectionWindow = 5 * time.Second

// protectionTracker records the last push-derived write per hub. While the
// window is open, the slower snapshot channel must not roll the hub back.
type protectionTracker struct {
	mu     sync.Mutex
	window time.Duration
	marks  map[string]time.Time
}

func newProtectionTracker(window time.Duration) *protectionTracker {
	if window <= 0 {
		window = defaultProtectionWindow
	}
	return &protectionTracker{
		window: window,
		marks:  make(map[string]time.Time),
	}
}

func (p *protectionTracker) MarkUpdated(hubID string, now time.Time) {
	p.mu.Lock()
	p.marks[hubID] = now
	p.mu.Unlock()
}

func (p *protectionTracker) IsProtected(hubID string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	mark, ok := p.marks[hubID]
	return ok && now.Sub(mark) < p.window
}
