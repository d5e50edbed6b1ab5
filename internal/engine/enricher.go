// Package engine resolves one contact end to end: cache lookup, tiered
// provider dispatch, verification, cache write, credit charge and
// persistence of the per-job outcome.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/octobees/contact-enricher/internal/cache"
	"github.com/octobees/contact-enricher/internal/cascade"
	"github.com/octobees/contact-enricher/internal/entity"
	"github.com/octobees/contact-enricher/internal/ledger"
	"github.com/octobees/contact-enricher/internal/scoring"
)

var tracer = otel.Tracer("github.com/octobees/contact-enricher/internal/engine")

// Failure reasons stored on failed and skipped outcomes.
const (
	ReasonNothingRequested    = "no data type requested"
	ReasonInsufficientCredits = "insufficient credits"
	ReasonNotFound            = "no provider returned the requested data"
	ReasonLedgerError         = "credit ledger unavailable"
)

// OutcomeStore persists per-job outcomes.
type OutcomeStore interface {
	SaveOutcome(ctx context.Context, outcome entity.EnrichmentOutcome) error
}

// EmailChecker verifies an email address.
type EmailChecker interface {
	Verify(ctx context.Context, email string) (entity.EmailVerification, error)
}

// PhoneChecker verifies a phone number.
type PhoneChecker interface {
	Verify(phone string) entity.PhoneVerification
}

// Recorder observes finished outcomes.
type Recorder interface {
	Outcome(outcome entity.EnrichmentOutcome)
}

type nopRecorder struct{}

func (nopRecorder) Outcome(entity.EnrichmentOutcome) {}

// Enricher is the inbound contract of the engine. It is safe for concurrent
// use; every call is scoped to one contact.
type Enricher struct {
	cache      *cache.Service
	credits    *ledger.Ledger
	dispatcher *cascade.Dispatcher
	tracker    *cascade.BatchTracker
	outcomes   OutcomeStore
	emails     EmailChecker
	phones     PhoneChecker
	recorder   Recorder
	pricing    ledger.Pricing
	scoring    scoring.Thresholds
	log        *logrus.Logger
	now        func() time.Time
}

// Option customises an Enricher.
type Option func(*Enricher)

// WithOutcomeStore persists every outcome that carries a job id.
func WithOutcomeStore(store OutcomeStore) Option {
	return func(e *Enricher) { e.outcomes = store }
}

// WithEmailChecker enables email verification.
func WithEmailChecker(checker EmailChecker) Option {
	return func(e *Enricher) { e.emails = checker }
}

// WithPhoneChecker enables phone verification.
func WithPhoneChecker(checker PhoneChecker) Option {
	return func(e *Enricher) { e.phones = checker }
}

// WithTracker shares a batch tracker across enrichers.
func WithTracker(tracker *cascade.BatchTracker) Option {
	return func(e *Enricher) {
		if tracker != nil {
			e.tracker = tracker
		}
	}
}

// WithRecorder attaches an outcome observer, typically metrics.Collector.
func WithRecorder(r Recorder) Option {
	return func(e *Enricher) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithPricing overrides the credit price table.
func WithPricing(p ledger.Pricing) Option {
	return func(e *Enricher) { e.pricing = p }
}

// WithScoring overrides the confidence thresholds used for lead scoring.
func WithScoring(th scoring.Thresholds) Option {
	return func(e *Enricher) { e.scoring = th }
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Enricher) {
		if logger != nil {
			e.log = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		if now != nil {
			e.now = now
		}
	}
}

// New wires an Enricher from its mandatory collaborators.
func New(cacheSvc *cache.Service, credits *ledger.Ledger, dispatcher *cascade.Dispatcher, opts ...Option) *Enricher {
	e := &Enricher{
		cache:      cacheSvc,
		credits:    credits,
		dispatcher: dispatcher,
		tracker:    cascade.NewBatchTracker(cascade.DefaultThresholds),
		recorder:   nopRecorder{},
		pricing:    ledger.DefaultPricing,
		scoring:    scoring.DefaultThresholds,
		log:        logrus.StandardLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tracker exposes the batch tracker so finished jobs can be forgotten.
func (e *Enricher) Tracker() *cascade.BatchTracker {
	return e.tracker
}

// Enrich resolves the requested data for one contact. It never returns an
// error: every failure is reported through the outcome status.
func (e *Enricher) Enrich(ctx context.Context, contact entity.Contact, jobID, userID string, opts entity.EnrichOptions) entity.EnrichmentOutcome {
	ctx, span := tracer.Start(ctx, "engine.Enrich")
	defer span.End()
	span.SetAttributes(
		attribute.String("job_id", jobID),
		attribute.String("user_id", userID),
		attribute.Bool("want_email", opts.WantEmail),
		attribute.Bool("want_phone", opts.WantPhone),
	)

	out := entity.EnrichmentOutcome{
		JobID:            jobID,
		UserID:           userID,
		Contact:          contact,
		EmailReliability: entity.ReliabilityNoEmail,
	}
	if !opts.Any() {
		out.Status = entity.OutcomeSkipped
		out.FailureReason = ReasonNothingRequested
		out.CompletedAt = e.now().UTC()
		e.recorder.Outcome(out)
		return out
	}

	logger := e.log.WithFields(logrus.Fields{"job_id": jobID, "user_id": userID})

	lookup, err := e.cache.Lookup(ctx, userID, contact)
	if err != nil {
		logger.WithError(err).Warn("cache lookup failed, falling through to providers")
	}
	out.Fingerprint = lookup.Primary()

	if lookup.Hit() && entryServes(*lookup.Entry, opts) {
		e.settleCacheHit(ctx, &out, lookup, opts, logger)
	} else {
		e.settleFresh(ctx, &out, lookup, opts, logger)
	}

	e.score(&out)
	out.CompletedAt = e.now().UTC()
	e.persist(ctx, out, logger)
	e.recorder.Outcome(out)

	span.SetAttributes(
		attribute.String("status", string(out.Status)),
		attribute.String("source", string(out.Source)),
		attribute.Int("credits", out.CreditsCharged),
	)
	if out.Status == entity.OutcomeFailed {
		span.SetStatus(codes.Error, out.FailureReason)
	}
	return out
}

func (e *Enricher) settleCacheHit(ctx context.Context, out *entity.EnrichmentOutcome, lookup cache.Result, opts entity.EnrichOptions, logger *logrus.Entry) {
	entry := *lookup.Entry
	out.Source = lookup.Source
	out.Provider = entry.Provider
	out.Confidence = entry.Confidence

	hasEmail := opts.WantEmail && entry.Email != nil && *entry.Email != ""
	hasPhone := opts.WantPhone && entry.Phone != nil && *entry.Phone != ""
	e.tracker.Record(out.JobID, hasEmail)

	charge := e.pricing.Charge(lookup.Source, opts, hasEmail, hasPhone)
	if charge > 0 {
		reason := fmt.Sprintf("cache hit %s for %s", entry.ID, out.Contact.FullName())
		if !e.consume(ctx, out, charge, 0, reason, logger) {
			return
		}
		if err := e.cache.RecordUserEnrichment(ctx, out.UserID, entry.ID, charge); err != nil {
			logger.WithError(err).Warn("record user enrichment failed")
		}
	}

	e.cache.ConfirmReuse(ctx, out.UserID, &lookup)
	out.CostSaved = lookup.CostSaved()
	out.Status = entity.OutcomeCompleted
	if hasEmail {
		out.Email = entry.Email
		out.EmailVerified = entry.EmailVerified
		out.EmailScore = entry.EmailScore
		out.EmailCheck = &entity.EmailVerification{
			Email:        *entry.Email,
			IsValid:      entry.EmailVerified,
			Score:        entry.EmailScore,
			IsDisposable: entry.IsDisposable,
			IsRoleBased:  entry.IsRoleBased,
			IsCatchAll:   entry.IsCatchAll,
		}
	}
	if hasPhone {
		out.Phone = entry.Phone
		out.PhoneVerified = entry.PhoneVerified
		out.PhoneScore = entry.PhoneScore
		out.PhoneType = entity.PhoneType(entry.PhoneType)
		out.PhoneCheck = &entity.PhoneVerification{
			Phone:   *entry.Phone,
			IsValid: entry.PhoneVerified,
			Score:   entry.PhoneScore,
			Type:    entity.PhoneType(entry.PhoneType),
			Region:  entry.PhoneCountry,
		}
	}
	logger.WithFields(logrus.Fields{"source": out.Source, "credits": out.CreditsCharged}).Debug("served from cache")
}

func (e *Enricher) settleFresh(ctx context.Context, out *entity.EnrichmentOutcome, lookup cache.Result, opts entity.EnrichOptions, logger *logrus.Entry) {
	out.Source = entity.SourceAPIFresh

	if ok, err := e.credits.CanAfford(ctx, out.UserID, e.minimumCharge(opts)); err != nil {
		logger.WithError(err).Error("credit precheck failed")
		out.Status = entity.OutcomeFailed
		out.FailureReason = ReasonLedgerError
		return
	} else if !ok {
		out.Status = entity.OutcomeFailed
		out.FailureReason = ReasonInsufficientCredits
		return
	}

	strategy := e.tracker.Strategy(out.JobID)
	result := e.dispatcher.Dispatch(ctx, out.Contact, opts, strategy)
	out.Strategy = string(result.Strategy)
	out.ProvidersTried = result.Tried()
	out.APICost = result.APICost
	e.cache.RecordSpend(ctx, result.APICost)

	if !result.Found {
		e.tracker.Record(out.JobID, false)
		out.Status = entity.OutcomeFailed
		out.FailureReason = ReasonNotFound
		if ctx.Err() != nil {
			out.FailureReason = ctx.Err().Error()
		}
		return
	}

	winner := result.Winner
	hasEmail := opts.WantEmail && winner.HasEmail()
	hasPhone := opts.WantPhone && winner.HasPhone()
	e.tracker.Record(out.JobID, hasEmail)
	out.Provider = winner.Provider
	out.Confidence = winner.Confidence

	emailCheck, phoneCheck := e.verify(ctx, winner, hasEmail, hasPhone, logger)

	var entryID string
	entry, err := e.cache.Save(ctx, cache.SaveInput{
		Contact:      out.Contact,
		Fingerprints: lookup.Fingerprints,
		Result:       winner,
		EmailCheck:   emailCheck,
		PhoneCheck:   phoneCheck,
	})
	if err != nil {
		logger.WithError(err).Warn("cache save failed")
	} else {
		entryID = entry.ID.String()
	}

	charge := e.pricing.Charge(entity.SourceAPIFresh, opts, hasEmail, hasPhone)
	if charge > 0 {
		reason := fmt.Sprintf("%s via %s", out.Contact.FullName(), winner.Provider)
		if !e.consume(ctx, out, charge, result.APICost, reason, logger) {
			return
		}
	}
	if entryID != "" {
		if err := e.cache.RecordUserEnrichment(ctx, out.UserID, entry.ID, charge); err != nil {
			logger.WithError(err).Warn("record user enrichment failed")
		}
	}

	out.Status = entity.OutcomeCompleted
	if hasEmail {
		out.Email = winner.Email
		out.EmailCheck = emailCheck
		if emailCheck != nil {
			out.EmailVerified = emailCheck.IsValid
			out.EmailScore = emailCheck.Score
		}
	}
	if hasPhone {
		out.Phone = winner.Phone
		out.PhoneCheck = phoneCheck
		if phoneCheck != nil {
			out.PhoneVerified = phoneCheck.IsValid
			out.PhoneScore = phoneCheck.Score
			out.PhoneType = phoneCheck.Type
		}
	}
	logger.WithFields(logrus.Fields{
		"provider": winner.Provider,
		"strategy": out.Strategy,
		"credits":  out.CreditsCharged,
		"entry_id": entryID,
	}).Info("contact enriched")
}

// consume charges the user; on failure the outcome is marked failed and any
// data is withheld.
func (e *Enricher) consume(ctx context.Context, out *entity.EnrichmentOutcome, credits int, externalCost float64, reason string, logger *logrus.Entry) bool {
	_, err := e.credits.Consume(ctx, ledger.ConsumeRequest{
		UserID:       out.UserID,
		JobID:        out.JobID,
		Amount:       credits,
		ExternalCost: externalCost,
		Reason:       reason,
	})
	if err == nil {
		out.CreditsCharged = credits
		return true
	}
	out.Status = entity.OutcomeFailed
	if errors.Is(err, ledger.ErrInsufficientCredits) {
		out.FailureReason = ReasonInsufficientCredits
	} else {
		logger.WithError(err).Error("credit charge failed")
		out.FailureReason = ReasonLedgerError
	}
	return false
}

func (e *Enricher) verify(ctx context.Context, winner entity.ProviderResult, hasEmail, hasPhone bool, logger *logrus.Entry) (*entity.EmailVerification, *entity.PhoneVerification) {
	var emailCheck *entity.EmailVerification
	var phoneCheck *entity.PhoneVerification
	if hasEmail && e.emails != nil {
		check, err := e.emails.Verify(ctx, *winner.Email)
		if err != nil {
			logger.WithError(err).Warn("email verification failed, leaving unverified")
		} else {
			emailCheck = &check
		}
	}
	if hasPhone && e.phones != nil {
		check := e.phones.Verify(*winner.Phone)
		phoneCheck = &check
	}
	return emailCheck, phoneCheck
}

func (e *Enricher) score(out *entity.EnrichmentOutcome) {
	var email, phone string
	if out.Email != nil {
		email = *out.Email
	}
	if out.Phone != nil {
		phone = *out.Phone
	}
	out.EmailReliability = scoring.EmailReliability(email, out.EmailCheck, out.Confidence, e.scoring)
	if out.Status != entity.OutcomeCompleted {
		return
	}
	out.LeadScore = scoring.ComputeScore(scoring.LeadFeatures{
		Email:      email,
		EmailCheck: out.EmailCheck,
		Phone:      phone,
		PhoneCheck: out.PhoneCheck,
		Confidence: out.Confidence,
		ProfileURL: out.Contact.ProfileURL,
		Domain:     out.Contact.Domain,
		Location:   out.Contact.Location,
		Industry:   out.Contact.Industry,
	}, e.scoring).Total
}

func (e *Enricher) persist(ctx context.Context, out entity.EnrichmentOutcome, logger *logrus.Entry) {
	if e.outcomes == nil || strings.TrimSpace(out.JobID) == "" || out.Fingerprint == "" {
		return
	}
	if err := e.outcomes.SaveOutcome(ctx, out); err != nil {
		logger.WithError(err).Warn("persist outcome failed")
	}
}

// minimumCharge is the cheapest successful outcome for opts.
func (e *Enricher) minimumCharge(opts entity.EnrichOptions) int {
	switch {
	case opts.WantEmail && opts.WantPhone:
		return min(e.pricing.EmailCredits, e.pricing.PhoneCredits)
	case opts.WantEmail:
		return e.pricing.EmailCredits
	default:
		return e.pricing.PhoneCredits
	}
}

func entryServes(entry entity.CacheEntry, opts entity.EnrichOptions) bool {
	return (opts.WantEmail && entry.Email != nil && *entry.Email != "") ||
		(opts.WantPhone && entry.Phone != nil && *entry.Phone != "")
}
