package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestCheckAllowsUpToLimit(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 5; i++ {
		res := m.Check("login:dana@example.org", 5, time.Minute)
		if !res.Allowed {
			t.Fatalf("attempt %d denied", i+1)
		}
		if res.Remaining != 4-i {
			t.Fatalf("attempt %d remaining = %d", i+1, res.Remaining)
		}
	}
	res := m.Check("login:dana@example.org", 5, time.Minute)
	if res.Allowed {
		t.Fatal("sixth attempt in the window allowed")
	}
	if res.ResetIn <= 0 || res.ResetIn > time.Minute {
		t.Fatalf("ResetIn = %v", res.ResetIn)
	}
}

func TestCheckKeysAreIndependent(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 5; i++ {
		m.Check("login:a@example.org", 5, time.Minute)
	}
	if res := m.Check("login:b@example.org", 5, time.Minute); !res.Allowed {
		t.Fatal("unrelated key throttled")
	}
}

func TestCheckWindowRollover(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(WithClock(func() time.Time { return clock }))

	for i := 0; i < 3; i++ {
		m.Check("forgot:dana@example.org", 3, 15*time.Minute)
	}
	if res := m.Check("forgot:dana@example.org", 3, 15*time.Minute); res.Allowed {
		t.Fatal("fourth request inside the window allowed")
	}

	// One second short of the boundary: still denied.
	clock = clock.Add(15*time.Minute - time.Second)
	if res := m.Check("forgot:dana@example.org", 3, 15*time.Minute); res.Allowed {
		t.Fatal("allowed just before window end")
	}

	// At the boundary a fresh window opens.
	clock = clock.Add(time.Second)
	if res := m.Check("forgot:dana@example.org", 3, 15*time.Minute); !res.Allowed {
		t.Fatal("denied after window rollover")
	}
}

func TestCheckZeroLimitDeniesEverything(t *testing.T) {
	m := NewMemory()
	if res := m.Check("k", 0, time.Minute); res.Allowed {
		t.Fatal("limit 0 allowed a request")
	}
}

// With limit 1, concurrent callers on one key must produce exactly one
// allow no matter the interleaving.
func TestCheckConcurrentSingleAdmit(t *testing.T) {
	m := NewMemory()
	const goroutines = 64

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Check("burst", 1, time.Minute).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 1 {
		t.Fatalf("allowed = %d, want exactly 1", allowed)
	}
}

func TestCheckConcurrentCountsExact(t *testing.T) {
	m := NewMemory()
	const goroutines = 100
	const limit = 40

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Check("bulk", limit, time.Minute).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != limit {
		t.Fatalf("allowed = %d, want %d", allowed, limit)
	}
}

func TestPurge(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(WithClock(func() time.Time { return clock }))

	m.Check("old", 5, time.Minute)
	clock = clock.Add(30 * time.Minute)
	m.Check("fresh", 5, time.Minute)

	m.Purge(10 * time.Minute)

	m.mu.Lock()
	_, oldKept := m.windows["old"]
	_, freshKept := m.windows["fresh"]
	m.mu.Unlock()
	if oldKept {
		t.Fatal("stale window survived purge")
	}
	if !freshKept {
		t.Fatal("live window purged")
	}
}
