package dialer

import (
	"sync"
	"time"
)

// logThrottle suppresses repeated log lines for the same key within a
// window. Entries are evicted on use so the map stays bounded by the
// number of keys active inside one window.
type logThrottle struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func newLogThrottle(window time.Duration) *logThrottle {
	return &logThrottle{window: window, seen: make(map[string]time.Time)}
}

// Allow reports whether the key has not fired within the window.
func (t *logThrottle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for k, at := range t.seen {
		if now.Sub(at) > t.window {
			delete(t.seen, k)
		}
	}
	if at, ok := t.seen[key]; ok && now.Sub(at) <= t.window {
		return false
	}
	t.seen[key] = now
	return true
}
