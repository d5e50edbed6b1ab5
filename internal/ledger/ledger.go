// Package ledger keeps the per-user credit balance: time-bounded allocations
// consumed earliest-expiry first, with an append-only usage log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/octobees/contact-enricher/internal/entity"
)

var (
	// ErrInsufficientCredits is returned when spendable credits do not cover a charge.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvalidAmount rejects zero or negative credit movements.
	ErrInvalidAmount = errors.New("invalid credit amount")
)

// Store persists allocations and logs. SpendCredits must lock the user's
// allocations, plan with PlanFIFO, apply the deductions and append the log
// row in one transaction.
type Store interface {
	SpendCredits(ctx context.Context, userID string, amount int, entry entity.CreditLog, now time.Time) ([]entity.CreditDeduction, error)
	AddAllocation(ctx context.Context, alloc entity.CreditAllocation, entry entity.CreditLog) error
	ListAllocations(ctx context.Context, userID string) ([]entity.CreditAllocation, error)
	LifetimeTotal(ctx context.Context, userID string) (int, error)
}

// Ledger serialises credit movements per user on top of a Store.
type Ledger struct {
	store Store
	locks *userLocks
	now   func() time.Time
	log   *logrus.Entry
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.log = logger.WithField("component", "ledger")
		}
	}
}

// New builds a ledger backed by store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		locks: newUserLocks(),
		now:   time.Now,
		log:   logrus.StandardLogger().WithField("component", "ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ConsumeRequest describes one charge.
type ConsumeRequest struct {
	UserID       string
	JobID        string
	Amount       int
	ExternalCost float64
	Reason       string
}

// Consume deducts credits earliest-expiry first and records one log row.
func (l *Ledger) Consume(ctx context.Context, req ConsumeRequest) ([]entity.CreditDeduction, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, req.Amount)
	}

	unlock := l.locks.lock(userID)
	defer unlock()

	now := l.now()
	entry := entity.CreditLog{
		ID:           uuid.New(),
		UserID:       userID,
		JobID:        req.JobID,
		Operation:    entity.CreditOperationConsume,
		Credits:      req.Amount,
		ExternalCost: req.ExternalCost,
		Reason:       req.Reason,
		CreatedAt:    now,
	}
	plan, err := l.store.SpendCredits(ctx, userID, req.Amount, entry, now)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			l.log.WithFields(logrus.Fields{"user_id": userID, "job_id": req.JobID, "credits": req.Amount}).Info("charge rejected: insufficient credits")
			return nil, err
		}
		return nil, fmt.Errorf("spend credits: %w", err)
	}
	l.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"job_id":      req.JobID,
		"credits":     req.Amount,
		"allocations": len(plan),
	}).Debug("credits consumed")
	return plan, nil
}

// Allocate grants credits that expire at expiresAt.
func (l *Ledger) Allocate(ctx context.Context, userID string, credits int, source entity.CreditSource, expiresAt time.Time) (entity.CreditAllocation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return entity.CreditAllocation{}, fmt.Errorf("user_id is required")
	}
	if credits <= 0 {
		return entity.CreditAllocation{}, fmt.Errorf("%w: %d", ErrInvalidAmount, credits)
	}
	switch source {
	case entity.CreditSourceSubscription, entity.CreditSourceTopUp:
	default:
		return entity.CreditAllocation{}, fmt.Errorf("unknown credit source %q", source)
	}
	now := l.now()
	if !expiresAt.After(now) {
		return entity.CreditAllocation{}, fmt.Errorf("expires_at must be in the future")
	}

	unlock := l.locks.lock(userID)
	defer unlock()

	alloc := entity.CreditAllocation{
		ID:               uuid.New(),
		UserID:           userID,
		CreditsAllocated: credits,
		CreditsRemaining: credits,
		Source:           source,
		ExpiresAt:        expiresAt.UTC(),
		CreatedAt:        now,
	}
	entry := entity.CreditLog{
		ID:        uuid.New(),
		UserID:    userID,
		Operation: entity.CreditOperationAllocate,
		Credits:   credits,
		Reason:    fmt.Sprintf("%s allocation expiring %s", source, alloc.ExpiresAt.Format(time.RFC3339)),
		CreatedAt: now,
	}
	if err := l.store.AddAllocation(ctx, alloc, entry); err != nil {
		return entity.CreditAllocation{}, fmt.Errorf("add allocation: %w", err)
	}
	return alloc, nil
}

// Balance reports spendable credits and the lifetime total.
func (l *Ledger) Balance(ctx context.Context, userID string) (entity.CreditBalance, error) {
	allocs, err := l.store.ListAllocations(ctx, userID)
	if err != nil {
		return entity.CreditBalance{}, fmt.Errorf("list allocations: %w", err)
	}
	lifetime, err := l.store.LifetimeTotal(ctx, userID)
	if err != nil {
		return entity.CreditBalance{}, fmt.Errorf("lifetime total: %w", err)
	}
	now := l.now()
	active := 0
	for _, a := range allocs {
		if a.Spendable(now) {
			active++
		}
	}
	return entity.CreditBalance{
		UserID:        userID,
		Available:     Available(allocs, now),
		LifetimeTotal: lifetime,
		ActiveGrants:  active,
	}, nil
}

// CanAfford is an advisory check; Consume remains authoritative.
func (l *Ledger) CanAfford(ctx context.Context, userID string, amount int) (bool, error) {
	if amount <= 0 {
		return true, nil
	}
	allocs, err := l.store.ListAllocations(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list allocations: %w", err)
	}
	return Available(allocs, l.now()) >= amount, nil
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// userLocks hands out one mutex per user and drops it when unused.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (u *userLocks) lock(userID string) func() {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &userLock{}
		u.locks[userID] = l
	}
	l.refs++
	u.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		u.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(u.locks, userID)
		}
		u.mu.Unlock()
	}
}
