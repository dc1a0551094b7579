package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiter(window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(window)
	l.now = clock.now
	return l, clock
}

func TestAllowUntilExhaustedThenRefill(t *testing.T) {
	l, clock := newLimiter(time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("guest:10.0.0.1", 3), "request %d", i)
	}
	assert.False(t, l.Allow("guest:10.0.0.1", 3))
	assert.True(t, l.Allow("guest:10.0.0.2", 3), "keys are independent")

	clock.advance(20 * time.Second)
	assert.True(t, l.Allow("guest:10.0.0.1", 3))
	assert.False(t, l.Allow("guest:10.0.0.1", 3))
}

func TestRefillIsCapped(t *testing.T) {
	l, clock := newLimiter(time.Minute)
	assert.True(t, l.Allow("k", 2))
	clock.advance(time.Hour)
	assert.True(t, l.Allow("k", 2))
	assert.True(t, l.Allow("k", 2))
	assert.False(t, l.Allow("k", 2))
}

func TestZeroLimitDisables(t *testing.T) {
	l, _ := newLimiter(time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("k", 0))
	}
	assert.Zero(t, l.Len())
}

func TestEvictIdleAndReset(t *testing.T) {
	l, clock := newLimiter(time.Minute)
	l.Allow("old", 5)
	clock.advance(3 * time.Minute)
	l.Allow("fresh", 5)

	l.evictIdle()
	assert.Equal(t, 1, l.Len())

	l.Reset("fresh")
	assert.Zero(t, l.Len())
}

func TestRetryAfter(t *testing.T) {
	l, _ := newLimiter(time.Minute)
	assert.Equal(t, time.Second, l.RetryAfter(60))
	assert.Zero(t, l.RetryAfter(0))
}
