// Package notify holds the single transient status message shown to the user.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/celerix-dev/negmarket/pkg/schema"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 3000 * time.Millisecond

// Emitter is either idle or showing one notification. A new notification
// replaces the current one and restarts the expiry timer; at most one timer
// is armed at any time.
type Emitter struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	current *schema.Notification
	timer   *time.Timer
	gen     uint64
	onIdle  func()
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithClock replaces time.Now when stamping and checking expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) { e.now = now }
}

// WithIdleHook registers fn to run each time a notification expires.
func WithIdleHook(fn func()) Option {
	return func(e *Emitter) { e.onIdle = fn }
}

// NewEmitter returns an idle emitter. A non-positive ttl means DefaultTTL.
func NewEmitter(ttl time.Duration, opts ...Option) *Emitter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	e := &Emitter{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TTL returns the configured time to live.
func (e *Emitter) TTL() time.Duration {
	return e.ttl
}

// Show displays a notification, superseding whatever was showing.
func (e *Emitter) Show(key, subject string, severity schema.Severity) schema.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	created := e.now()
	n := schema.Notification{
		ID:        uuid.NewString(),
		Key:       key,
		Subject:   subject,
		Severity:  severity,
		CreatedAt: created,
		ExpiresAt: created.Add(e.ttl),
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.current = &n
	e.timer = time.AfterFunc(e.ttl, func() { e.expire(gen) })

	return n
}

// Success is Show with SeveritySuccess.
func (e *Emitter) Success(key, subject string) schema.Notification {
	return e.Show(key, subject, schema.SeveritySuccess)
}

// Error is Show with SeverityError.
func (e *Emitter) Error(key, subject string) schema.Notification {
	return e.Show(key, subject, schema.SeverityError)
}

// Current returns the visible notification, if any.
func (e *Emitter) Current() (schema.Notification, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || !e.current.VisibleAt(e.now()) {
		return schema.Notification{}, false
	}
	return *e.current, true
}

// Stop disarms the timer and returns to idle.
func (e *Emitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	e.current = nil
}

// expire clears the notification armed as generation gen. A timer that lost
// the race against a newer Show finds a different generation and does nothing.
func (e *Emitter) expire(gen uint64) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.current = nil
	e.timer = nil
	hook := e.onIdle
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
}
