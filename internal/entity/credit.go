package entity

import (
	"time"

	"github.com/google/uuid"
)

// CreditSource identifies how an allocation was granted.
type CreditSource string

const (
	CreditSourceSubscription CreditSource = "subscription"
	CreditSourceTopUp        CreditSource = "topup"
)

// CreditAllocation is a time-bounded grant of spendable credits.
type CreditAllocation struct {
	ID               uuid.UUID    `json:"id"`
	UserID           string       `json:"user_id"`
	CreditsAllocated int          `json:"credits_allocated"`
	CreditsRemaining int          `json:"credits_remaining"`
	Source           CreditSource `json:"source"`
	ExpiresAt        time.Time    `json:"expires_at"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Spendable reports whether the allocation can fund a charge at the given instant.
func (a CreditAllocation) Spendable(now time.Time) bool {
	return a.CreditsRemaining > 0 && a.ExpiresAt.After(now)
}

// CreditOperation names a ledger movement.
type CreditOperation string

const (
	CreditOperationAllocate CreditOperation = "allocate"
	CreditOperationConsume  CreditOperation = "consume"
)

// CreditLog is an immutable ledger row.
type CreditLog struct {
	ID           uuid.UUID       `json:"id"`
	UserID       string          `json:"user_id"`
	JobID        string          `json:"job_id,omitempty"`
	Operation    CreditOperation `json:"operation"`
	Credits      int             `json:"credits"`
	ExternalCost float64         `json:"external_cost"`
	Reason       string          `json:"reason"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CreditDeduction is one planned decrement against a specific allocation.
type CreditDeduction struct {
	AllocationID uuid.UUID `json:"allocation_id"`
	Amount       int       `json:"amount"`
}

// CreditBalance summarises a user's spendable and lifetime credits.
type CreditBalance struct {
	UserID        string `json:"user_id"`
	Available     int    `json:"available"`
	LifetimeTotal int    `json:"lifetime_total"`
	ActiveGrants  int    `json:"active_grants"`
}
