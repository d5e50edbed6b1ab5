package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/octobees/contact-enricher/internal/entity"
	"github.com/octobees/contact-enricher/internal/ledger"
)

// ErrDuplicate is returned on a unique constraint violation.
var ErrDuplicate = errors.New("duplicate record")

// CreditStore implements ledger.Store on SQLite.
type CreditStore struct {
	db *gorm.DB
}

// NewCreditStore wraps db.
func NewCreditStore(db *gorm.DB) *CreditStore {
	return &CreditStore{db: db}
}

var _ ledger.Store = (*CreditStore)(nil)

// SpendCredits plans and applies the deduction inside one transaction.
// Expiry is evaluated in Go so the comparison does not depend on how the
// driver stores timestamps.
func (s *CreditStore) SpendCredits(ctx context.Context, userID string, amount int, entry entity.CreditLog, now time.Time) ([]entity.CreditDeduction, error) {
	var plan []entity.CreditDeduction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []allocationRow
		if err := tx.Where("user_id = ? AND credits_remaining > 0", userID).Find(&rows).Error; err != nil {
			return fmt.Errorf("load allocations: %w", err)
		}
		allocs, err := allocationsToEntity(rows)
		if err != nil {
			return err
		}
		plan, err = ledger.PlanFIFO(allocs, amount, now)
		if err != nil {
			return err
		}
		for _, d := range plan {
			res := tx.Model(&allocationRow{}).
				Where("id = ? AND credits_remaining >= ?", d.AllocationID.String(), d.Amount).
				Update("credits_remaining", gorm.Expr("credits_remaining - ?", d.Amount))
			if res.Error != nil {
				return fmt.Errorf("deduct allocation %s: %w", d.AllocationID, res.Error)
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("deduct allocation %s: %w", d.AllocationID, ledger.ErrInsufficientCredits)
			}
		}
		return createLog(tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *CreditStore) AddAllocation(ctx context.Context, alloc entity.CreditAllocation, entry entity.CreditLog) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := allocationRow{
			ID:               alloc.ID.String(),
			UserID:           alloc.UserID,
			CreditsAllocated: alloc.CreditsAllocated,
			CreditsRemaining: alloc.CreditsRemaining,
			Source:           string(alloc.Source),
			ExpiresAt:        alloc.ExpiresAt.UTC(),
			CreatedAt:        alloc.CreatedAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert allocation %s: %w", alloc.ID, ErrDuplicate)
			}
			return fmt.Errorf("insert allocation: %w", err)
		}

		total := creditTotalRow{UserID: alloc.UserID, LifetimeTotal: alloc.CreditsAllocated, UpdatedAt: row.CreatedAt}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"lifetime_total": gorm.Expr("lifetime_total + ?", alloc.CreditsAllocated),
				"updated_at":     row.CreatedAt,
			}),
		}).Create(&total).Error
		if err != nil {
			return fmt.Errorf("update lifetime total: %w", err)
		}
		return createLog(tx, entry)
	})
}

func (s *CreditStore) ListAllocations(ctx context.Context, userID string) ([]entity.CreditAllocation, error) {
	var rows []allocationRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("expires_at, created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	return allocationsToEntity(rows)
}

func (s *CreditStore) LifetimeTotal(ctx context.Context, userID string) (int, error) {
	var row creditTotalRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query lifetime total: %w", err)
	}
	return row.LifetimeTotal, nil
}

// ListLogs returns the most recent ledger rows for the user.
func (s *CreditStore) ListLogs(ctx context.Context, userID string, limit int) ([]entity.CreditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []creditLogRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query credit logs: %w", err)
	}
	out := make([]entity.CreditLog, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("parse credit log id: %w", err)
		}
		out = append(out, entity.CreditLog{
			ID:           id,
			UserID:       r.UserID,
			JobID:        r.JobID,
			Operation:    entity.CreditOperation(r.Operation),
			Credits:      r.Credits,
			ExternalCost: r.ExternalCost,
			Reason:       r.Reason,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}

func createLog(tx *gorm.DB, entry entity.CreditLog) error {
	row := creditLogRow{
		ID:           entry.ID.String(),
		UserID:       entry.UserID,
		JobID:        entry.JobID,
		Operation:    string(entry.Operation),
		Credits:      entry.Credits,
		ExternalCost: entry.ExternalCost,
		Reason:       entry.Reason,
		CreatedAt:    entry.CreatedAt.UTC(),
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("insert credit log: %w", err)
	}
	return nil
}

func allocationsToEntity(rows []allocationRow) ([]entity.CreditAllocation, error) {
	out := make([]entity.CreditAllocation, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("parse allocation id: %w", err)
		}
		out = append(out, entity.CreditAllocation{
			ID:               id,
			UserID:           r.UserID,
			CreditsAllocated: r.CreditsAllocated,
			CreditsRemaining: r.CreditsRemaining,
			Source:           entity.CreditSource(r.Source),
			ExpiresAt:        r.ExpiresAt,
			CreatedAt:        r.CreatedAt,
		})
	}
	return out, nil
}
