package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/octobees/contact-enricher/internal/entity"
)

// PlanFIFO decides how to take amount credits from allocations, draining the
// allocation that expires first. Expired or empty allocations are ignored.
// It never mutates its input.
func PlanFIFO(allocations []entity.CreditAllocation, amount int, now time.Time) ([]entity.CreditDeduction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	spendable := make([]entity.CreditAllocation, 0, len(allocations))
	available := 0
	for _, a := range allocations {
		if a.Spendable(now) {
			spendable = append(spendable, a)
			available += a.CreditsRemaining
		}
	}
	if available < amount {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientCredits, amount, available)
	}

	sort.SliceStable(spendable, func(i, j int) bool {
		if !spendable[i].ExpiresAt.Equal(spendable[j].ExpiresAt) {
			return spendable[i].ExpiresAt.Before(spendable[j].ExpiresAt)
		}
		return spendable[i].CreatedAt.Before(spendable[j].CreatedAt)
	})

	remaining := amount
	plan := make([]entity.CreditDeduction, 0, 2)
	for _, a := range spendable {
		if remaining == 0 {
			break
		}
		take := min(a.CreditsRemaining, remaining)
		plan = append(plan, entity.CreditDeduction{AllocationID: a.ID, Amount: take})
		remaining -= take
	}
	return plan, nil
}

// Available sums the credits spendable at now.
func Available(allocations []entity.CreditAllocation, now time.Time) int {
	total := 0
	for _, a := range allocations {
		if a.Spendable(now) {
			total += a.CreditsRemaining
		}
	}
	return total
}
