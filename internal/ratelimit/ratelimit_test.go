package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testMemory(t *testing.T, rule Rule) (*Memory, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(rule)
	m.now = clock.Now
	return m, clock
}

func allow(t *testing.T, l Limiter, key string) bool {
	t.Helper()
	ok, err := l.Allow(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestMemory_CeilingAndRollover(t *testing.T) {
	m, clock := testMemory(t, Rule{Max: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		assert.True(t, allow(t, m, "1.2.3.4"), "request %d", i+1)
	}
	assert.False(t, allow(t, m, "1.2.3.4"))
	assert.False(t, allow(t, m, "1.2.3.4"))

	clock.Advance(time.Minute)
	assert.True(t, allow(t, m, "1.2.3.4"), "new window admits again")
}

func TestMemory_RejectDoesNotIncrement(t *testing.T) {
	m, _ := testMemory(t, Rule{Max: 1, Window: time.Minute})
	assert.True(t, allow(t, m, "k"))
	for i := 0; i < 5; i++ {
		assert.False(t, allow(t, m, "k"))
	}

	m.mu.Lock()
	assert.Equal(t, 1, m.windows["k"].count)
	m.mu.Unlock()
}

func TestMemory_KeysIndependent(t *testing.T) {
	m, _ := testMemory(t, Rule{Max: 1, Window: time.Minute})
	assert.True(t, allow(t, m, "a"))
	assert.True(t, allow(t, m, "b"))
	assert.False(t, allow(t, m, "a"))
}

func TestMemory_Sweep(t *testing.T) {
	m, clock := testMemory(t, Rule{Max: 5, Window: time.Minute})
	allow(t, m, "a")
	clock.Advance(30 * time.Second)
	allow(t, m, "b")
	require.Len(t, m.windows, 2)

	clock.Advance(31 * time.Second)
	assert.Equal(t, 1, m.Sweep())
	assert.Len(t, m.windows, 1)
	assert.Contains(t, m.windows, "b")
}

func TestMemory_ConcurrentCeiling(t *testing.T) {
	m := NewMemory(Rule{Max: 50, Window: time.Hour})

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.Allow(context.Background(), "shared"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), allowed.Load())
}

func TestMemory_RunStopsOnCancel(t *testing.T) {
	m := NewMemory(Rule{Max: 1, Window: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Millisecond) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
