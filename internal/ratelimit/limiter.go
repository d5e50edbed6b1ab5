// Package ratelimit throttles outbound provider calls and tracks whether a
// provider is currently usable.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultWindow = time.Minute

// Limiter enforces a per-provider ceiling of calls per sliding window plus a
// minimum spacing of window/calls between consecutive calls. One Limiter is
// shared by every goroutine calling the same provider.
type Limiter struct {
	perWindow int
	window    time.Duration
	spacing   *rate.Limiter

	mu    sync.Mutex
	calls []time.Time
	now   func() time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithWindow overrides the sliding window length (one minute by default).
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// New builds a limiter allowing callsPerMinute calls per window.
// A non-positive value disables limiting.
func New(callsPerMinute int, opts ...Option) *Limiter {
	l := &Limiter{perWindow: callsPerMinute, window: defaultWindow, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	if l.perWindow > 0 {
		l.spacing = rate.NewLimiter(rate.Every(l.window/time.Duration(l.perWindow)), 1)
		l.calls = make([]time.Time, 0, l.perWindow)
	}
	return l
}

// Interval returns the minimum spacing between two calls.
func (l *Limiter) Interval() time.Duration {
	if l.perWindow <= 0 {
		return 0
	}
	return l.window / time.Duration(l.perWindow)
}

// Acquire blocks the calling goroutine until both the spacing and the window
// ceiling allow one more call, or until ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.perWindow <= 0 {
		return ctx.Err()
	}
	if err := l.spacing.Wait(ctx); err != nil {
		return err
	}

	for {
		wait := l.reserveSlot()
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserveSlot records a call when the window has room, otherwise returns how
// long until the oldest call leaves the window.
func (l *Limiter) reserveSlot() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	keep := 0
	for _, ts := range l.calls {
		if ts.After(cutoff) {
			l.calls[keep] = ts
			keep++
		}
	}
	l.calls = l.calls[:keep]

	if len(l.calls) < l.perWindow {
		l.calls = append(l.calls, now)
		return 0
	}
	return l.calls[0].Add(l.window).Sub(now)
}

// InWindow returns how many calls were made during the current window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	n := 0
	for _, ts := range l.calls {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
