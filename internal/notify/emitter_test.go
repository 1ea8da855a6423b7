package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/negmarket/pkg/schema"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)}
}

func TestEmitter_StartsIdle(t *testing.T) {
	e := NewEmitter(0)
	defer e.Stop()

	_, ok := e.Current()
	assert.False(t, ok)
	assert.Equal(t, DefaultTTL, e.TTL())
}

func TestEmitter_ExpiresAfterTTL(t *testing.T) {
	clk := newClock()
	e := NewEmitter(DefaultTTL, WithClock(clk.Now))
	defer e.Stop()

	shown := e.Error(schema.KeyInsufficientCredits, "")
	assert.Equal(t, schema.SeverityError, shown.Severity)
	assert.Equal(t, shown.CreatedAt.Add(3*time.Second), shown.ExpiresAt)

	clk.Advance(2999 * time.Millisecond)
	got, ok := e.Current()
	require.True(t, ok)
	assert.Equal(t, shown.ID, got.ID)

	clk.Advance(time.Millisecond)
	_, ok = e.Current()
	assert.False(t, ok, "notification must be gone at T+3000ms")
}

func TestEmitter_NewestReplacesPrior(t *testing.T) {
	clk := newClock()
	e := NewEmitter(DefaultTTL, WithClock(clk.Now))
	defer e.Stop()

	first := e.Success(schema.KeyPurchaseSuccess, "A")
	clk.Advance(2 * time.Second)
	second := e.Error(schema.KeyInsufficientCredits, "")

	got, ok := e.Current()
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)
	assert.NotEqual(t, first.ID, got.ID)

	// the replacement gets its own full TTL
	clk.Advance(2 * time.Second)
	got, ok = e.Current()
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)

	clk.Advance(time.Second)
	_, ok = e.Current()
	assert.False(t, ok)
}

func TestEmitter_TimerReturnsToIdle(t *testing.T) {
	idle := make(chan struct{}, 4)
	e := NewEmitter(20*time.Millisecond, WithIdleHook(func() { idle <- struct{}{} }))
	defer e.Stop()

	e.Success(schema.KeyUploadSuccess, "")

	select {
	case <-idle:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	_, ok := e.Current()
	assert.False(t, ok)
}

func TestEmitter_SupersededTimerDoesNotClearNewer(t *testing.T) {
	idle := make(chan struct{}, 4)
	e := NewEmitter(200*time.Millisecond, WithIdleHook(func() { idle <- struct{}{} }))
	defer e.Stop()

	e.Success("first", "")
	time.Sleep(120 * time.Millisecond)
	second := e.Success("second", "")

	// past the first deadline, before the second
	time.Sleep(120 * time.Millisecond)
	got, ok := e.Current()
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)

	select {
	case <-idle:
	case <-time.After(2 * time.Second):
		t.Fatal("second timer never fired")
	}
	assert.Len(t, idle, 0, "only one expiry expected")
}

func TestEmitter_Stop(t *testing.T) {
	e := NewEmitter(time.Hour)
	e.Success("k", "")
	e.Stop()

	_, ok := e.Current()
	assert.False(t, ok)
}
