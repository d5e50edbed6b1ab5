// Package cache resolves contacts from earlier paid enrichments before any
// provider is called: first the requesting user's own history, then the
// shared knowledge base.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/octobees/contact-enricher/internal/entity"
	"github.com/octobees/contact-enricher/internal/fingerprint"
)

// ErrCacheWrite wraps every failed cache mutation. Callers log it and move on.
var ErrCacheWrite = errors.New("cache write failed")

// Store is the persistence contract behind the cache. Find methods report
// found=false with a nil error on a miss.
type Store interface {
	FindUserEntry(ctx context.Context, userID string, fingerprints []string) (entity.CacheEntry, bool, error)
	FindGlobalEntry(ctx context.Context, fingerprints []string) (entity.CacheEntry, bool, error)
	// InsertEntry stores the entry and links its fingerprints, ignoring
	// fingerprint values that already exist.
	InsertEntry(ctx context.Context, entry entity.CacheEntry, fingerprints []entity.Fingerprint) error
	RecordReuse(ctx context.Context, entryID uuid.UUID, costSaved float64, at time.Time) error
	// UpsertUserHistory creates the history row or bumps times_accessed and
	// adds credits to an existing one.
	UpsertUserHistory(ctx context.Context, userID string, entryID uuid.UUID, credits int, at time.Time) error
	IncrementPerformance(ctx context.Context, day time.Time, delta entity.CacheMetricDelta) error
}

// Observer receives one call per lookup.
type Observer interface {
	CacheLookup(source entity.CacheSource)
}

type nopObserver struct{}

func (nopObserver) CacheLookup(entity.CacheSource) {}

// Result is the answer to a cache lookup. Entry is nil on a miss.
type Result struct {
	Source       entity.CacheSource
	Entry        *entity.CacheEntry
	Fingerprints []entity.Fingerprint
}

// Hit reports whether the lookup was served from cache.
func (r Result) Hit() bool {
	return r.Entry != nil
}

// Primary is the fingerprint used to key per-job results.
func (r Result) Primary() string {
	return fingerprint.Primary(r.Fingerprints)
}

// CostSaved is the external spend avoided by this hit.
func (r Result) CostSaved() float64 {
	if r.Entry == nil {
		return 0
	}
	return r.Entry.OriginalCost
}

// Service implements the two-level lookup and the write-back path.
type Service struct {
	store    Store
	observer Observer
	now      func() time.Time
	log      *logrus.Entry
}

// Option customises a Service.
type Option func(*Service)

// WithObserver reports lookups to o.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.log = logger.WithField("component", "cache")
		}
	}
}

// NewService builds a cache service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		observer: nopObserver{},
		now:      time.Now,
		log:      logrus.StandardLogger().WithField("component", "cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup checks the user's history, then the global cache. A contact that
// yields no fingerprints is always a miss. A match found only through the
// initials fingerprint is rejected unless the first names agree. Read errors
// are returned with the fingerprints so the caller can fall through to a
// fresh lookup.
//
// Hits are not counted as reuse here; the caller confirms a served hit with
// ConfirmReuse.
func (s *Service) Lookup(ctx context.Context, userID string, contact entity.Contact) (Result, error) {
	fps := fingerprint.Generate(contact)
	result := Result{Source: entity.SourceAPIFresh, Fingerprints: fps}
	if len(fps) == 0 {
		return result, nil
	}
	values := fingerprint.Values(fps)
	firstName := fingerprint.CleanName(contact.FirstName)

	if strings.TrimSpace(userID) != "" {
		entry, found, err := s.store.FindUserEntry(ctx, userID, values)
		if err != nil {
			return result, fmt.Errorf("find user history: %w", err)
		}
		if found && samePerson(entry, firstName) {
			s.observer.CacheLookup(entity.SourceUserDuplicate)
			result.Source = entity.SourceUserDuplicate
			result.Entry = &entry
			return result, nil
		}
	}

	entry, found, err := s.store.FindGlobalEntry(ctx, values)
	if err != nil {
		return result, fmt.Errorf("find global entry: %w", err)
	}
	if found && samePerson(entry, firstName) {
		s.observer.CacheLookup(entity.SourceGlobalCache)
		result.Source = entity.SourceGlobalCache
		result.Entry = &entry
		return result, nil
	}

	s.rollup(ctx, s.now().UTC(), entity.CacheMetricDelta{Misses: 1})
	s.observer.CacheLookup(entity.SourceAPIFresh)
	return result, nil
}

// ConfirmReuse records that a hit was actually served to userID: the user's
// history is touched, a global entry's reuse counters grow and the savings
// land in the daily roll-up. Failures are logged.
func (s *Service) ConfirmReuse(ctx context.Context, userID string, res *Result) {
	if !res.Hit() {
		return
	}
	entry := res.Entry
	now := s.now().UTC()
	switch res.Source {
	case entity.SourceUserDuplicate:
		if err := s.store.UpsertUserHistory(ctx, userID, entry.ID, 0, now); err != nil {
			s.warn(err, "touch user history", entry.ID)
		}
		s.rollup(ctx, now, entity.CacheMetricDelta{UserHits: 1, APICostSaved: entry.OriginalCost})
	case entity.SourceGlobalCache:
		if err := s.store.RecordReuse(ctx, entry.ID, entry.OriginalCost, now); err != nil {
			s.warn(err, "record reuse", entry.ID)
		} else {
			entry.TimesReused++
			entry.TotalCostSaved += entry.OriginalCost
			entry.LastAccessedAt = now
		}
		s.rollup(ctx, now, entity.CacheMetricDelta{GlobalHits: 1, APICostSaved: entry.OriginalCost})
	}
}

func samePerson(entry entity.CacheEntry, firstName string) bool {
	if entry.MatchedBy != entity.FingerprintInitials {
		return true
	}
	return fingerprint.FirstNamesAgree(entry.FirstName, firstName)
}

// SaveInput carries a fresh paid resolution into the shared cache.
type SaveInput struct {
	Contact      entity.Contact
	Fingerprints []entity.Fingerprint
	Result       entity.ProviderResult
	EmailCheck   *entity.EmailVerification
	PhoneCheck   *entity.PhoneVerification
}

// Save inserts one cache entry and its fingerprints.
func (s *Service) Save(ctx context.Context, in SaveInput) (entity.CacheEntry, error) {
	if len(in.Fingerprints) == 0 {
		return entity.CacheEntry{}, fmt.Errorf("%w: contact has no fingerprints", ErrCacheWrite)
	}
	if !in.Result.HasEmail() && !in.Result.HasPhone() {
		return entity.CacheEntry{}, fmt.Errorf("%w: nothing resolved", ErrCacheWrite)
	}

	now := s.now().UTC()
	canon := fingerprint.Canonicalize(in.Contact)
	entry := entity.CacheEntry{
		ID:             uuid.New(),
		FirstName:      canon.FirstName,
		LastName:       canon.LastName,
		Company:        canon.Company,
		Domain:         canon.Domain,
		Provider:       in.Result.Provider,
		Confidence:     in.Result.Confidence,
		OriginalCost:   in.Result.Cost,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	if in.Result.HasEmail() {
		entry.Email = in.Result.Email
	}
	if in.Result.HasPhone() {
		entry.Phone = in.Result.Phone
	}
	if v := in.EmailCheck; v != nil {
		entry.EmailVerified = v.IsValid
		entry.EmailScore = v.Score
		entry.IsDisposable = v.IsDisposable
		entry.IsRoleBased = v.IsRoleBased
		entry.IsCatchAll = v.IsCatchAll
	}
	if v := in.PhoneCheck; v != nil {
		entry.PhoneVerified = v.IsValid
		entry.PhoneScore = v.Score
		entry.PhoneType = string(v.Type)
		entry.PhoneCountry = v.Region
	}

	if err := s.store.InsertEntry(ctx, entry, in.Fingerprints); err != nil {
		return entity.CacheEntry{}, fmt.Errorf("%w: insert entry: %v", ErrCacheWrite, err)
	}
	s.log.WithFields(logrus.Fields{
		"entry_id":     entry.ID,
		"provider":     entry.Provider,
		"fingerprints": len(in.Fingerprints),
	}).Debug("cache entry saved")
	return entry, nil
}

// RecordUserEnrichment links a user to an entry they paid for.
func (s *Service) RecordUserEnrichment(ctx context.Context, userID string, entryID uuid.UUID, credits int) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrCacheWrite)
	}
	if err := s.store.UpsertUserHistory(ctx, userID, entryID, credits, s.now().UTC()); err != nil {
		return fmt.Errorf("%w: user history: %v", ErrCacheWrite, err)
	}
	return nil
}

// RecordSpend adds external provider spend to today's roll-up.
func (s *Service) RecordSpend(ctx context.Context, cost float64) {
	if cost <= 0 {
		return
	}
	s.rollup(ctx, s.now().UTC(), entity.CacheMetricDelta{APICostSpent: cost})
}

func (s *Service) rollup(ctx context.Context, now time.Time, delta entity.CacheMetricDelta) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := s.store.IncrementPerformance(ctx, day, delta); err != nil {
		s.log.WithError(err).Warn("cache performance rollup failed")
	}
}

func (s *Service) warn(err error, op string, entryID uuid.UUID) {
	s.log.WithError(err).WithFields(logrus.Fields{"entry_id": entryID, "op": op}).Warn("cache write failed")
}
