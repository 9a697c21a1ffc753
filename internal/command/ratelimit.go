package command

import (
	"sync"
	"time"
)

type entry struct {
	count    int
	windowAt time.Time
}

// Limiter rate-limits command handling per member id.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewLimiter() *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
	}
}

// Allow returns true if the member has not exceeded limit commands in the
// given window.
func (l *Limiter) Allow(memberID string, limit int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, ok := l.entries[memberID]
	if !ok || now.After(e.windowAt) {
		l.entries[memberID] = &entry{count: 1, windowAt: now.Add(window)}
		return true
	}
	e.count++
	return e.count <= limit
}

// Cleanup removes expired entries.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for id, e := range l.entries {
		if now.After(e.windowAt) {
			delete(l.entries, id)
		}
	}
}
