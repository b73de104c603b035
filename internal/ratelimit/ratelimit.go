// Package ratelimit provides fixed-window request counters keyed by an
// arbitrary string such as a client IP or credential identity.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more request for key fits in the current
// window. Implementations must be safe for concurrent use and must not
// count a rejected request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Rule is a ceiling per window.
type Rule struct {
	Max    int
	Window time.Duration
}

type window struct {
	count   int
	resetAt time.Time
}

// Memory is an in-process fixed-window limiter. Expired windows are
// reclaimed by Sweep, not on the request path.
type Memory struct {
	rule Rule
	now  func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewMemory creates an in-process limiter for rule.
func NewMemory(rule Rule) *Memory {
	return &Memory{
		rule:    rule,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow increments key's counter and reports true while the counter is
// below the ceiling. Once the ceiling is reached it reports false
// without incrementing until the window elapses.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(m.rule.Window)}
		m.windows[key] = w
	}

	if w.count >= m.rule.Max {
		return false, nil
	}

	w.count++

	return true, nil
}

// Sweep removes windows that have elapsed. Returns the number removed.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0

	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
			removed++
		}
	}

	return removed
}

// Run calls Sweep every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}
