package middleware

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// OnlineWindow is how long after their last authenticated request a user counts as online
const OnlineWindow = 5 * time.Minute

// ActivityTracker records the last authenticated request per user
type ActivityTracker struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	window   time.Duration
	lastSeen map[int64]time.Time
}

// NewActivityTracker creates a tracker using OnlineWindow
func NewActivityTracker(clock clockwork.Clock) *ActivityTracker {
	return &ActivityTracker{
		clock:    clock,
		window:   OnlineWindow,
		lastSeen: make(map[int64]time.Time),
	}
}

// Touch marks the user as active now
func (t *ActivityTracker) Touch(userID int64) {
	t.mu.Lock()
	t.lastSeen[userID] = t.clock.Now()
	t.mu.Unlock()
}

// OnlineCount returns the number of users seen within the window and forgets the rest
func (t *ActivityTracker) OnlineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	count := 0
	for userID, seen := range t.lastSeen {
		if now.Sub(seen) <= t.window {
			count++
		} else {
			delete(t.lastSeen, userID)
		}
	}
	return count
}
