package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/contact-enricher/internal/entity"
	"github.com/octobees/contact-enricher/internal/ledger"
)

// PGXCreditRepository implements ledger.Store on PostgreSQL.
type PGXCreditRepository struct {
	pool pgxPool
}

// NewPGXCreditRepository wires a pgx backed credit store.
func NewPGXCreditRepository(pool *pgxpool.Pool) *PGXCreditRepository {
	return &PGXCreditRepository{pool: pool}
}

var _ ledger.Store = (*PGXCreditRepository)(nil)

const allocationColumns = `id, user_id, credits_allocated, credits_remaining, source, expires_at, created_at`

// SpendCredits locks the user's spendable allocations, drains them earliest
// expiry first and appends the log row, all in one transaction.
func (r *PGXCreditRepository) SpendCredits(ctx context.Context, userID string, amount int, entry entity.CreditLog, now time.Time) ([]entity.CreditDeduction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("start spend tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
        SELECT `+allocationColumns+`
        FROM credit_allocations
        WHERE user_id = $1 AND credits_remaining > 0 AND expires_at > $2
        ORDER BY expires_at, created_at
        FOR UPDATE
    `, userID, now)
	if err != nil {
		return nil, fmt.Errorf("lock allocations: %w", err)
	}
	allocs, err := scanAllocations(rows)
	if err != nil {
		return nil, err
	}

	plan, err := ledger.PlanFIFO(allocs, amount, now)
	if err != nil {
		return nil, err
	}

	for _, d := range plan {
		tag, err := tx.Exec(ctx, `
            UPDATE credit_allocations
            SET credits_remaining = credits_remaining - $2
            WHERE id = $1 AND credits_remaining >= $2
        `, d.AllocationID, d.Amount)
		if err != nil {
			return nil, fmt.Errorf("deduct allocation %s: %w", d.AllocationID, err)
		}
		if tag.RowsAffected() != 1 {
			return nil, fmt.Errorf("deduct allocation %s: %w", d.AllocationID, ledger.ErrInsufficientCredits)
		}
	}

	if err := insertCreditLog(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit spend: %w", err)
	}
	return plan, nil
}

// AddAllocation stores a grant, bumps the lifetime total and logs it.
func (r *PGXCreditRepository) AddAllocation(ctx context.Context, alloc entity.CreditAllocation, entry entity.CreditLog) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("start allocation tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO credit_allocations (`+allocationColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, alloc.ID, alloc.UserID, alloc.CreditsAllocated, alloc.CreditsRemaining, string(alloc.Source), alloc.ExpiresAt, alloc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert allocation %s: %w", alloc.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert allocation: %w", err)
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO user_credit_totals (user_id, lifetime_total, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO UPDATE SET
            lifetime_total = user_credit_totals.lifetime_total + EXCLUDED.lifetime_total,
            updated_at = EXCLUDED.updated_at
    `, alloc.UserID, alloc.CreditsAllocated, alloc.CreatedAt)
	if err != nil {
		return fmt.Errorf("update lifetime total: %w", err)
	}

	if err := insertCreditLog(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit allocation: %w", err)
	}
	return nil
}

// ListAllocations returns every allocation of the user, spendable or not.
func (r *PGXCreditRepository) ListAllocations(ctx context.Context, userID string) ([]entity.CreditAllocation, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+allocationColumns+`
        FROM credit_allocations
        WHERE user_id = $1
        ORDER BY expires_at, created_at
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	return scanAllocations(rows)
}

// LifetimeTotal returns the credits ever granted to the user.
func (r *PGXCreditRepository) LifetimeTotal(ctx context.Context, userID string) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT lifetime_total FROM user_credit_totals WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query lifetime total: %w", err)
	}
	return total, nil
}

// ListLogs returns the most recent ledger rows for the user.
func (r *PGXCreditRepository) ListLogs(ctx context.Context, userID string, limit int) ([]entity.CreditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
        SELECT id, user_id, job_id, operation, credits, external_cost, reason, created_at
        FROM credit_logs
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query credit logs: %w", err)
	}
	defer rows.Close()

	var out []entity.CreditLog
	for rows.Next() {
		var l entity.CreditLog
		var op string
		if err := rows.Scan(&l.ID, &l.UserID, &l.JobID, &op, &l.Credits, &l.ExternalCost, &l.Reason, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit log: %w", err)
		}
		l.Operation = entity.CreditOperation(op)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit logs: %w", err)
	}
	return out, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertCreditLog(ctx context.Context, db execer, entry entity.CreditLog) error {
	_, err := db.Exec(ctx, `
        INSERT INTO credit_logs (id, user_id, job_id, operation, credits, external_cost, reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, entry.ID, entry.UserID, entry.JobID, string(entry.Operation), entry.Credits, entry.ExternalCost, entry.Reason, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert credit log: %w", err)
	}
	return nil
}

func scanAllocations(rows pgx.Rows) ([]entity.CreditAllocation, error) {
	defer rows.Close()

	var out []entity.CreditAllocation
	for rows.Next() {
		var a entity.CreditAllocation
		var source string
		if err := rows.Scan(&a.ID, &a.UserID, &a.CreditsAllocated, &a.CreditsRemaining, &source, &a.ExpiresAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		a.Source = entity.CreditSource(source)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocations: %w", err)
	}
	return out, nil
}
