package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Tier names a preset admission-control profile.
type Tier string

const (
	// TierConservative suits interactive, user-triggered calls.
	TierConservative Tier = "conservative"
	// TierBalanced suits mixed workloads.
	TierBalanced Tier = "balanced"
	// TierThroughput favors bulk operations and is the pipeline default.
	TierThroughput Tier = "throughput"
)

// Limits is one admission-control profile: at most MaxRequests acquisitions in
// any trailing Window, and consecutive acquisitions spaced at least MinInterval.
type Limits struct {
	MaxRequests int
	Window      time.Duration
	MinInterval time.Duration
}

// LimitsForTier resolves a preset. Unknown tiers fall back to TierBalanced.
func LimitsForTier(tier Tier) Limits {
	switch tier {
	case TierConservative:
		return Limits{MaxRequests: 3, Window: time.Minute, MinInterval: 20 * time.Second}
	case TierThroughput:
		return Limits{MaxRequests: 30, Window: time.Minute, MinInterval: 500 * time.Millisecond}
	default:
		return Limits{MaxRequests: 10, Window: time.Minute, MinInterval: 3 * time.Second}
	}
}

// windowBuffer pads window-bound sleeps so a re-check after waking does not
// land exactly on the pruning boundary.
const windowBuffer = 50 * time.Millisecond

// Limiter is the single piece of state shared across pipeline tasks. The
// check-and-record sequence runs under one mutex; the mutex is never held
// across a sleep.
type Limiter struct {
	mu      sync.Mutex
	limits  Limits
	history []time.Time
	now     func() time.Time
}

func New(limits Limits) *Limiter {
	return &Limiter{limits: limits, now: time.Now}
}

// NewForTier builds a limiter from a preset.
func NewForTier(tier Tier) *Limiter {
	return New(LimitsForTier(tier))
}

// Acquire blocks until admission is granted or ctx is cancelled. On success
// the acquisition timestamp is recorded; cancellation never records anything.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		if len(l.history) >= l.limits.MaxRequests {
			wait := l.limits.Window - now.Sub(l.history[0]) + windowBuffer
			l.mu.Unlock()
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		if n := len(l.history); n > 0 {
			if since := now.Sub(l.history[n-1]); since < l.limits.MinInterval {
				wait := l.limits.MinInterval - since
				l.mu.Unlock()
				if err := sleep(ctx, wait); err != nil {
					return err
				}
				continue
			}
		}

		l.history = append(l.history, now)
		l.mu.Unlock()
		return nil
	}
}

// Status reports remaining slots in the current window and the time until the
// oldest recorded acquisition ages out. It does not consume a slot.
func (l *Limiter) Status() (remaining int, resetIn time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	remaining = l.limits.MaxRequests - len(l.history)
	if len(l.history) > 0 {
		resetIn = l.limits.Window - now.Sub(l.history[0])
		if resetIn < 0 {
			resetIn = 0
		}
	}
	return remaining, resetIn
}

// Reset clears the acquisition history.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = l.history[:0]
}

// prune drops entries older than the trailing window. Caller holds the mutex.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.limits.Window)
	i := 0
	for i < len(l.history) && !l.history[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.history = append(l.history[:0], l.history[i:]...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
