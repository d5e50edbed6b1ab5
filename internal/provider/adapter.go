package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/octobees/contact-enricher/internal/entity"
	"github.com/octobees/contact-enricher/internal/ratelimit"
)

var tracer = otel.Tracer("github.com/octobees/contact-enricher/internal/provider")

// Adapter turns a vendor Source into a Provider: it checks the availability
// gate, waits on the shared rate limiter, classifies failures and normalises
// the result.
type Adapter struct {
	desc     Descriptor
	source   Source
	limiter  *ratelimit.Limiter
	gate     *ratelimit.Gate
	accepts  func(entity.Contact) bool
	observer Observer
	log      *logrus.Entry
	// selfThrottled sources wait on the limiter per request themselves.
	selfThrottled bool
}

// AdapterOption customises an Adapter.
type AdapterOption func(*Adapter)

// WithObserver reports call telemetry to o.
func WithObserver(o Observer) AdapterOption {
	return func(a *Adapter) {
		if o != nil {
			a.observer = o
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(l *logrus.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.log = l.WithField("provider", a.desc.ID)
		}
	}
}

// WithAcceptor overrides which contacts the provider can look up.
func WithAcceptor(fn func(entity.Contact) bool) AdapterOption {
	return func(a *Adapter) {
		if fn != nil {
			a.accepts = fn
		}
	}
}

func withSelfThrottledSource() AdapterOption {
	return func(a *Adapter) {
		a.selfThrottled = true
	}
}

// NewAdapter wires a source to its limiter and gate. A nil limiter or gate
// gets a permissive default.
func NewAdapter(desc Descriptor, source Source, limiter *ratelimit.Limiter, gate *ratelimit.Gate, opts ...AdapterOption) *Adapter {
	if limiter == nil {
		limiter = ratelimit.New(desc.RateLimit)
	}
	if gate == nil {
		gate = ratelimit.NewGate(5*time.Minute, 0)
	}
	a := &Adapter{
		desc:     desc,
		source:   source,
		limiter:  limiter,
		gate:     gate,
		accepts:  entity.Contact.HasIdentity,
		observer: nopObserver{},
		log:      logrus.StandardLogger().WithField("provider", desc.ID),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Descriptor() Descriptor { return a.desc }

func (a *Adapter) Available() bool { return a.gate.Available() }

func (a *Adapter) Accepts(contact entity.Contact) bool { return a.accepts(contact) }

// State exposes the availability gate snapshot.
func (a *Adapter) State() ratelimit.GateState { return a.gate.State() }

// Enrich never fails: errors are folded into the result's Failure field.
func (a *Adapter) Enrich(ctx context.Context, contact entity.Contact) entity.ProviderResult {
	ctx, span := tracer.Start(ctx, "provider.enrich", trace.WithAttributes(attribute.String("provider.id", a.desc.ID)))
	defer span.End()

	start := time.Now()
	result := a.enrich(ctx, contact)
	result.Elapsed = time.Since(start)

	outcome := "found"
	if result.Failure != entity.FailureNone {
		outcome = string(result.Failure)
	}
	span.SetAttributes(attribute.String("provider.outcome", outcome))
	if result.Failure == entity.FailureTransient || result.Failure == entity.FailureUnavailable {
		span.SetStatus(codes.Error, result.Detail)
	}
	a.observer.ProviderCall(a.desc.ID, result.Failure, result.Elapsed)
	return result
}

func (a *Adapter) enrich(ctx context.Context, contact entity.Contact) entity.ProviderResult {
	id := a.desc.ID
	if !a.gate.Available() {
		return entity.EmptyResult(id, entity.FailureUnavailable, "provider cooling down")
	}

	if !a.selfThrottled {
		waitStart := time.Now()
		if err := a.limiter.Acquire(ctx); err != nil {
			return entity.EmptyResult(id, entity.FailureCancelled, err.Error())
		}
		a.observer.RateLimitWait(id, time.Since(waitStart))
		if !a.gate.Available() {
			return entity.EmptyResult(id, entity.FailureUnavailable, "provider cooling down")
		}
	}

	match, err := a.source.Lookup(ctx, contact)
	if err != nil {
		return a.failure(ctx, err)
	}
	a.gate.RecordSuccess()
	if !match.Found() {
		return entity.EmptyResult(id, entity.FailureNoResult, "empty match")
	}

	result := entity.ProviderResult{
		Provider:   id,
		Confidence: percent(match.Confidence),
		Cost:       a.desc.Cost,
	}
	if email := strings.ToLower(strings.TrimSpace(match.Email)); email != "" {
		result.Email = &email
	}
	if phone := strings.TrimSpace(match.Phone); phone != "" {
		result.Phone = &phone
	}
	if len(match.Raw) > 0 && json.Valid(match.Raw) {
		result.Raw = json.RawMessage(match.Raw)
	}
	return result
}

func (a *Adapter) failure(ctx context.Context, err error) entity.ProviderResult {
	id := a.desc.ID
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return entity.EmptyResult(id, entity.FailureCancelled, err.Error())
	case errors.Is(err, errCoolingDown):
		return entity.EmptyResult(id, entity.FailureUnavailable, "provider cooling down")
	case errors.Is(err, ErrUnavailable):
		a.gate.MarkUnavailable(err.Error())
		a.log.WithError(err).Warn("provider sidelined for cool-down")
		return entity.EmptyResult(id, entity.FailureUnavailable, err.Error())
	case errors.Is(err, ErrTransient):
		if a.gate.RecordTransient() {
			a.log.WithError(err).Warn("provider sidelined after repeated transient failures")
		} else {
			a.log.WithError(err).Debug("transient provider failure")
		}
		return entity.EmptyResult(id, entity.FailureTransient, err.Error())
	default:
		a.gate.RecordSuccess()
		return entity.EmptyResult(id, entity.FailureNoResult, err.Error())
	}
}
