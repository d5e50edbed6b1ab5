package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/contact-enricher/internal/cache"
	"github.com/octobees/contact-enricher/internal/entity"
)

// PGXCacheRepository implements cache.Store on PostgreSQL.
type PGXCacheRepository struct {
	pool pgxPool
}

// NewPGXCacheRepository wires a pgx backed cache store.
func NewPGXCacheRepository(pool *pgxpool.Pool) *PGXCacheRepository {
	return &PGXCacheRepository{pool: pool}
}

var _ cache.Store = (*PGXCacheRepository)(nil)

const cacheEntryColumns = `
            g.id, g.first_name, g.last_name, g.company, g.domain, g.email, g.phone,
            g.email_verified, g.email_score, g.phone_verified, g.phone_score,
            g.phone_type, g.phone_country, g.is_disposable, g.is_role_based, g.is_catch_all,
            g.provider, g.confidence, g.original_cost, g.times_reused, g.total_cost_saved,
            g.created_at, g.last_accessed_at, f.type`

// matchRank orders joined fingerprints from the most to the least specific.
const matchRank = `
            CASE f.type
                WHEN 'exact' THEN 0
                WHEN 'name_domain' THEN 1
                WHEN 'name_email_domain' THEN 2
                WHEN 'name_hash' THEN 3
                WHEN 'initials' THEN 4
                ELSE 5
            END`

// FindUserEntry returns the entry the user already paid for, preferring the
// most specific fingerprint match.
func (r *PGXCacheRepository) FindUserEntry(ctx context.Context, userID string, fingerprints []string) (entity.CacheEntry, bool, error) {
	if len(fingerprints) == 0 {
		return entity.CacheEntry{}, false, nil
	}
	query := `
        SELECT` + cacheEntryColumns + `
        FROM contact_fingerprints f
        JOIN global_contact_cache g ON g.id = f.cache_entry_id
        JOIN user_contact_history h ON h.cache_entry_id = g.id AND h.user_id = $1
        WHERE f.value = ANY($2)
        ORDER BY` + matchRank + `, h.last_accessed_at DESC
        LIMIT 1
    `
	return r.findEntry(ctx, "find user cache entry", query, userID, fingerprints)
}

// FindGlobalEntry returns the shared entry behind the most specific matching
// fingerprint; confidence breaks ties.
func (r *PGXCacheRepository) FindGlobalEntry(ctx context.Context, fingerprints []string) (entity.CacheEntry, bool, error) {
	if len(fingerprints) == 0 {
		return entity.CacheEntry{}, false, nil
	}
	query := `
        SELECT` + cacheEntryColumns + `
        FROM contact_fingerprints f
        JOIN global_contact_cache g ON g.id = f.cache_entry_id
        WHERE f.value = ANY($1)
        ORDER BY` + matchRank + `, g.confidence DESC, g.created_at DESC
        LIMIT 1
    `
	return r.findEntry(ctx, "find global cache entry", query, fingerprints)
}

func (r *PGXCacheRepository) findEntry(ctx context.Context, op, query string, args ...any) (entity.CacheEntry, bool, error) {
	entry, err := scanMatchedEntry(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.CacheEntry{}, false, nil
		}
		return entity.CacheEntry{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return entry, true, nil
}

func scanMatchedEntry(row pgx.Row) (entity.CacheEntry, error) {
	var (
		e         entity.CacheEntry
		matchedBy string
	)
	err := row.Scan(
		&e.ID, &e.FirstName, &e.LastName, &e.Company, &e.Domain, &e.Email, &e.Phone,
		&e.EmailVerified, &e.EmailScore, &e.PhoneVerified, &e.PhoneScore,
		&e.PhoneType, &e.PhoneCountry, &e.IsDisposable, &e.IsRoleBased, &e.IsCatchAll,
		&e.Provider, &e.Confidence, &e.OriginalCost, &e.TimesReused, &e.TotalCostSaved,
		&e.CreatedAt, &e.LastAccessedAt, &matchedBy,
	)
	e.MatchedBy = entity.FingerprintType(matchedBy)
	return e, err
}

const insertFingerprintSQL = `
        INSERT INTO contact_fingerprints (value, type, cache_entry_id, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (value) DO NOTHING
    `

// InsertEntry stores the entry and its fingerprints in one transaction.
// Fingerprints already owned by another entry are left untouched.
func (r *PGXCacheRepository) InsertEntry(ctx context.Context, entry entity.CacheEntry, fingerprints []entity.Fingerprint) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("start cache insert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO global_contact_cache (
            id, first_name, last_name, company, domain, email, phone,
            email_verified, email_score, phone_verified, phone_score,
            phone_type, phone_country, is_disposable, is_role_based, is_catch_all,
            provider, confidence, original_cost, times_reused, total_cost_saved,
            created_at, last_accessed_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
            $13, $14, $15, $16, $17, $18, $19, 0, 0, $20, $20
        )
    `,
		entry.ID, entry.FirstName, entry.LastName, entry.Company, entry.Domain,
		stringOrNil(entry.Email), stringOrNil(entry.Phone),
		entry.EmailVerified, entry.EmailScore, entry.PhoneVerified, entry.PhoneScore,
		entry.PhoneType, entry.PhoneCountry, entry.IsDisposable, entry.IsRoleBased, entry.IsCatchAll,
		entry.Provider, entry.Confidence, entry.OriginalCost, entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert cache entry %s: %w", entry.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert cache entry: %w", err)
	}

	for _, fp := range fingerprints {
		if _, err := tx.Exec(ctx, insertFingerprintSQL, fp.Value, string(fp.Type), entry.ID, entry.CreatedAt); err != nil {
			return fmt.Errorf("insert fingerprint %s: %w", fp.Type, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cache insert: %w", err)
	}
	return nil
}

// RecordReuse bumps the reuse counter and the savings accumulator.
func (r *PGXCacheRepository) RecordReuse(ctx context.Context, entryID uuid.UUID, costSaved float64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE global_contact_cache
        SET times_reused = times_reused + 1,
            total_cost_saved = total_cost_saved + $2,
            last_accessed_at = $3
        WHERE id = $1
    `, entryID, costSaved, at)
	if err != nil {
		return fmt.Errorf("record cache reuse: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertUserHistory links a user to an entry, accumulating credits on repeat.
func (r *PGXCacheRepository) UpsertUserHistory(ctx context.Context, userID string, entryID uuid.UUID, credits int, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO user_contact_history (
            user_id, cache_entry_id, credits_charged, times_accessed, first_enriched_at, last_accessed_at
        ) VALUES ($1, $2, $3, 1, $4, $4)
        ON CONFLICT (user_id, cache_entry_id) DO UPDATE SET
            credits_charged = user_contact_history.credits_charged + EXCLUDED.credits_charged,
            times_accessed = user_contact_history.times_accessed + 1,
            last_accessed_at = EXCLUDED.last_accessed_at
    `, userID, entryID, credits, at)
	if err != nil {
		return fmt.Errorf("upsert user history: %w", err)
	}
	return nil
}

// IncrementPerformance adds delta to the daily roll-up row.
func (r *PGXCacheRepository) IncrementPerformance(ctx context.Context, day time.Time, delta entity.CacheMetricDelta) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO cache_performance_metrics (day, user_hits, global_hits, misses, api_cost_saved, api_cost_spent)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (day) DO UPDATE SET
            user_hits = cache_performance_metrics.user_hits + EXCLUDED.user_hits,
            global_hits = cache_performance_metrics.global_hits + EXCLUDED.global_hits,
            misses = cache_performance_metrics.misses + EXCLUDED.misses,
            api_cost_saved = cache_performance_metrics.api_cost_saved + EXCLUDED.api_cost_saved,
            api_cost_spent = cache_performance_metrics.api_cost_spent + EXCLUDED.api_cost_spent
    `, day, delta.UserHits, delta.GlobalHits, delta.Misses, delta.APICostSaved, delta.APICostSpent)
	if err != nil {
		return fmt.Errorf("increment cache performance: %w", err)
	}
	return nil
}

// Performance returns the roll-up rows between from and to, newest first.
func (r *PGXCacheRepository) Performance(ctx context.Context, from, to time.Time) ([]entity.CachePerformance, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT day, user_hits, global_hits, misses, api_cost_saved, api_cost_spent
        FROM cache_performance_metrics
        WHERE day BETWEEN $1 AND $2
        ORDER BY day DESC
    `, from, to)
	if err != nil {
		return nil, fmt.Errorf("query cache performance: %w", err)
	}
	defer rows.Close()

	var out []entity.CachePerformance
	for rows.Next() {
		var p entity.CachePerformance
		if err := rows.Scan(&p.Day, &p.UserHits, &p.GlobalHits, &p.Misses, &p.APICostSaved, &p.APICostSpent); err != nil {
			return nil, fmt.Errorf("scan cache performance: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache performance: %w", err)
	}
	return out, nil
}
