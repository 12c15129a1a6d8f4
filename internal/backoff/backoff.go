// Package backoff computes reconnect delays and holds the single pending
// reconnect timer of a camera.
package backoff

import (
	"math"
	"sync"
	"time"
)

// Policy describes exponential reconnect delays.
type Policy struct {
	Initial     time.Duration // delay before the first retry (default: 1s)
	Max         time.Duration // cap on any single delay (default: 30s)
	Multiplier  float64       // growth factor per attempt (default: 1.5)
	MaxAttempts int           // retries before giving up; 0 retries forever
}

// DefaultPolicy returns the reference policy: 1s, x1.5, capped at 30s, unbounded.
func DefaultPolicy() Policy {
	return Policy{
		Initial:    1000 * time.Millisecond,
		Max:        30000 * time.Millisecond,
		Multiplier: 1.5,
	}
}

// Normalize replaces unset or nonsensical fields with the defaults.
func (p Policy) Normalize() Policy {
	def := DefaultPolicy()
	if p.Initial <= 0 {
		p.Initial = def.Initial
	}
	if p.Max <= 0 {
		p.Max = def.Max
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	return p
}

// Delay returns min(Initial * Multiplier^attempt, Max), floored to whole
// milliseconds. Attempt 0 is the first retry.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	initialMs := float64(p.Initial.Milliseconds())
	maxMs := float64(p.Max.Milliseconds())

	ms := initialMs * math.Pow(p.Multiplier, float64(attempt))
	if math.IsInf(ms, 0) || math.IsNaN(ms) || ms > maxMs {
		ms = maxMs
	}
	return time.Duration(math.Floor(ms)) * time.Millisecond
}

// Exhausted reports whether attempt has reached the retry limit.
func (p Policy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

// Timer holds at most one pending callback. Schedule while a callback is
// pending is ignored, and Cancel guarantees the cancelled callback never runs
// even if its timer already fired.
type Timer struct {
	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
}

// Schedule arms fn to run after d. It returns false, leaving the existing
// timer untouched, if one is already pending.
func (t *Timer) Schedule(d time.Duration, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending {
		return false
	}

	t.gen++
	gen := t.gen
	t.pending = true
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if !t.pending || t.gen != gen {
			t.mu.Unlock()
			return
		}
		t.pending = false
		t.timer = nil
		t.mu.Unlock()

		fn()
	})
	return true
}

// Cancel disarms the pending callback. It reports whether one was pending.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.pending {
		return false
	}
	t.gen++
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return true
}

// Pending reports whether a callback is armed.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
