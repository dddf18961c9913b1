// Package ratelimit provides fixed-window counting per logical key. The
// same primitive protects login attempts, password-reset requests and bulk
// admin mutations; only the policy (limit, window) varies per call site.
package ratelimit

import (
	"sync"
	"time"
)

// Result reports one Check outcome. ResetIn is the time until the current
// window rolls over, usable as a Retry-After hint.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter is the injected abstraction: fixed window, atomic increment. A
// shared external counter store can implement the same contract for
// multi-process deployments.
type Limiter interface {
	Check(key string, limit int, window time.Duration) Result
}

type window struct {
	start time.Time
	count int
}

var _ Limiter = (*Memory)(nil)

// Memory is the in-process implementation. State is process-lifetime only
// and lost on restart (accepted tradeoff for a single-process deployment).
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// MemoryOption configures Memory.
type MemoryOption func(*Memory)

// WithClock overrides the time source for tests.
func WithClock(fn func() time.Time) MemoryOption {
	return func(m *Memory) {
		if fn != nil {
			m.now = fn
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		windows: make(map[string]*window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check opens a window at now on the first call for a key, increments the
// counter inside the window, and resets once the window has elapsed. The
// increment-and-compare runs under the lock, so concurrent callers on the
// same key never lose updates.
func (m *Memory) Check(key string, limit int, windowSize time.Duration) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w := m.windows[key]
	if w == nil || now.Sub(w.start) >= windowSize {
		m.windows[key] = &window{start: now, count: 1}
		return Result{Allowed: limit >= 1, Remaining: max(limit-1, 0), ResetIn: windowSize}
	}

	w.count++
	resetIn := windowSize - now.Sub(w.start)
	if w.count > limit {
		return Result{Allowed: false, Remaining: 0, ResetIn: resetIn}
	}
	return Result{Allowed: true, Remaining: limit - w.count, ResetIn: resetIn}
}

// Purge drops windows that ended before now. Callers may run it
// periodically to bound memory on long-running processes.
func (m *Memory) Purge(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, w := range m.windows {
		if now.Sub(w.start) >= maxAge {
			delete(m.windows, key)
		}
	}
}
