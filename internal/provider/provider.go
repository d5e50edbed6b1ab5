// Package provider wraps the external contact-data vendors behind one call
// contract. Every adapter is rate limited, gated on availability and never
// returns an error to its caller: failures are folded into the result.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/octobees/contact-enricher/internal/entity"
)

var (
	// ErrUnavailable marks auth or quota failures; the provider is sidelined for its cool-down.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrTransient marks network or 5xx failures that may succeed on retry.
	ErrTransient = errors.New("provider transient error")
	// ErrNoResult means the vendor answered but found nothing usable.
	ErrNoResult = errors.New("provider returned no result")
)

// Descriptor is the static metadata of one provider.
type Descriptor struct {
	ID           string
	BaseURL      string
	Cost         float64
	RateLimit    int
	Capability   entity.Capability
	PollSchedule []time.Duration
	PollTimeout  time.Duration
}

// Provider is the uniform call contract used by the cascade.
type Provider interface {
	Descriptor() Descriptor
	// Available is false while the provider is cooling down.
	Available() bool
	// Accepts reports whether the contact carries the inputs this provider needs.
	Accepts(contact entity.Contact) bool
	Enrich(ctx context.Context, contact entity.Contact) entity.ProviderResult
}

// Match is what a vendor client extracts from its own payload.
type Match struct {
	Email      string
	Phone      string
	Confidence float64
	Raw        []byte
}

// Found reports whether the match carries any contact data.
func (m Match) Found() bool {
	return m.Email != "" || m.Phone != ""
}

// Source is implemented by each vendor client. Errors must wrap one of
// ErrUnavailable, ErrTransient or ErrNoResult, or be a context error.
type Source interface {
	Lookup(ctx context.Context, contact entity.Contact) (Match, error)
}

// Observer receives call telemetry; metrics.Collector implements it.
type Observer interface {
	ProviderCall(provider string, outcome entity.FailureKind, elapsed time.Duration)
	RateLimitWait(provider string, waited time.Duration)
}

type nopObserver struct{}

func (nopObserver) ProviderCall(string, entity.FailureKind, time.Duration) {}
func (nopObserver) RateLimitWait(string, time.Duration)                    {}
