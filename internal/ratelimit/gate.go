package ratelimit

import (
	"sync"
	"time"
)

// GateState is a snapshot of a provider's availability.
type GateState struct {
	Available        bool      `json:"available"`
	UnavailableUntil time.Time `json:"unavailable_until,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	Failures         int       `json:"consecutive_failures"`
}

// Gate tracks whether a provider may be called. Auth or quota errors close it
// immediately for the cool-down; a run of transient failures closes it too.
type Gate struct {
	cooldown         time.Duration
	failureThreshold int

	mu               sync.Mutex
	unavailableUntil time.Time
	reason           string
	failures         int
	now              func() time.Time
}

// NewGate returns an open gate. failureThreshold <= 0 disables the
// consecutive-failure trip.
func NewGate(cooldown time.Duration, failureThreshold int) *Gate {
	return &Gate{cooldown: cooldown, failureThreshold: failureThreshold, now: time.Now}
}

// Available reports whether the cool-down (if any) has elapsed.
func (g *Gate) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.now().Before(g.unavailableUntil)
}

// MarkUnavailable sidelines the provider for the cool-down window.
func (g *Gate) MarkUnavailable(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open(reason)
}

// RecordSuccess resets the failure streak.
func (g *Gate) RecordSuccess() {
	g.mu.Lock()
	g.failures = 0
	g.mu.Unlock()
}

// RecordTransient counts a transient failure and reports whether it tripped the gate.
func (g *Gate) RecordTransient() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures++
	if g.failureThreshold > 0 && g.failures >= g.failureThreshold {
		g.open("consecutive transient failures")
		return true
	}
	return false
}

// State returns the current availability snapshot.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	available := !g.now().Before(g.unavailableUntil)
	st := GateState{Available: available, Failures: g.failures}
	if !available {
		st.UnavailableUntil = g.unavailableUntil
		st.Reason = g.reason
	}
	return st
}

// open must be called with mu held.
func (g *Gate) open(reason string) {
	g.unavailableUntil = g.now().Add(g.cooldown)
	g.reason = reason
	g.failures = 0
}
